package models

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Notification is a persisted message addressed to one user.
type Notification struct {
	BaseModel
	UserID uuid.UUID      `gorm:"type:uuid;index" json:"user"`
	Type   string         `gorm:"index" json:"type"`
	Title  string         `json:"title"`
	Body   string         `json:"body"`
	Data   datatypes.JSON `json:"data"`
	Read   bool           `gorm:"index" json:"read"`
}
