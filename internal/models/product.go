package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a single catalog item. It belongs to exactly one catalog.
type Product struct {
	BaseModel
	Name             string          `gorm:"not null" json:"name"`
	Description      string          `json:"description"`
	Type             string          `gorm:"index" json:"type"`
	SerialNumber     string          `gorm:"uniqueIndex;not null" json:"serialNumber"`
	ImageURL         string          `json:"imageUrl"`
	Price            decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"price"`
	Weight           string          `json:"weight"`
	Height           string          `json:"height"`
	Clasp            string          `json:"clasp"`
	Size             string          `json:"size"`
	AvailableSizes   []string        `gorm:"serializer:json;type:text" json:"availableSizes"`
	AvailableHeights []string        `gorm:"serializer:json;type:text" json:"availableHeights"`
	CatalogID        uuid.UUID       `gorm:"type:uuid;index" json:"catalogId"`
	Position         int             `gorm:"index" json:"position"`
	CreatedBy        uuid.UUID       `gorm:"type:uuid" json:"createdBy"`
	AccessibleTo     []uuid.UUID     `gorm:"serializer:json;type:text" json:"accessibleTo,omitempty"`
	IsActive         bool            `json:"isActive"`
}
