package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/jewelry/internal/policy"
)

// Catalog groups products under one visibility rule.
// Products are ordered by Product.Position; membership is Product.CatalogID.
type Catalog struct {
	BaseModel
	Name           string               `gorm:"not null" json:"name"`
	Description    string               `json:"description"`
	OwnerID        uuid.UUID            `gorm:"type:uuid;index" json:"ownerId"`
	Owner          *User                `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	IsPublic       bool                 `gorm:"index" json:"isPublic"`
	AllowedUsers   []CatalogAllowedUser `gorm:"foreignKey:CatalogID" json:"-"`
	AllowedUserIDs []uuid.UUID          `gorm:"-" json:"allowedUserIds"`
	Products       []Product            `gorm:"foreignKey:CatalogID" json:"products,omitempty"`
	ProductCount   int64                `gorm:"-" json:"productCount"`
}

// CatalogAllowedUser is one allow-list membership.
type CatalogAllowedUser struct {
	CatalogID uuid.UUID `gorm:"type:uuid;primaryKey" json:"catalogId"`
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey;index" json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
}

// AfterFind mirrors the preloaded allow-list into AllowedUserIDs.
func (c *Catalog) AfterFind(_ *gorm.DB) error {
	c.syncAllowedIDs()
	return nil
}

func (c *Catalog) syncAllowedIDs() {
	if c.AllowedUsers == nil {
		return
	}
	ids := make([]uuid.UUID, 0, len(c.AllowedUsers))
	for _, a := range c.AllowedUsers {
		ids = append(ids, a.UserID)
	}
	c.AllowedUserIDs = policy.DedupeIDs(ids)
}

// View returns the snapshot visibility decisions are made on.
// AllowedUsers must be preloaded.
func (c *Catalog) View() policy.CatalogView {
	c.syncAllowedIDs()
	return policy.CatalogView{
		ID:             c.ID,
		OwnerID:        c.OwnerID,
		IsPublic:       c.IsPublic,
		AllowedUserIDs: c.AllowedUserIDs,
	}
}

// SetAllowedUsers replaces the in-memory allow-list.
func (c *Catalog) SetAllowedUsers(ids []uuid.UUID) {
	ids = policy.DedupeIDs(ids)
	c.AllowedUsers = make([]CatalogAllowedUser, 0, len(ids))
	for _, id := range ids {
		c.AllowedUsers = append(c.AllowedUsers, CatalogAllowedUser{CatalogID: c.ID, UserID: id})
	}
	c.AllowedUserIDs = ids
}
