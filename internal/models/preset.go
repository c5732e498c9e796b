package models

// SizePreset lists the default sizes and heights offered for a product type.
type SizePreset struct {
	BaseModel
	Type    string   `gorm:"uniqueIndex;not null" json:"type"`
	Sizes   []string `gorm:"serializer:json;type:text" json:"sizes"`
	Heights []string `gorm:"serializer:json;type:text" json:"heights"`
}

// ClaspImage is a named clasp picture offered when editing products.
type ClaspImage struct {
	BaseModel
	Name     string `gorm:"not null" json:"name"`
	ImageURL string `gorm:"not null" json:"imageUrl"`
}
