package models

import (
	"github.com/google/uuid"

	"github.com/example/jewelry/internal/policy"
)

// User is an account that can sign in. Email is stored lower-cased.
type User struct {
	BaseModel
	Email        string      `gorm:"uniqueIndex;not null" json:"email"`
	Name         string      `json:"name"`
	Phone        string      `json:"phone"`
	PasswordHash string      `json:"-"`
	Role         policy.Role `gorm:"type:varchar(16);index" json:"role"`
	IsActive     bool        `gorm:"index" json:"isActive"`
	PushTokens   []PushToken `json:"-"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == policy.RoleAdmin
}

// Subject converts the user into the identity policy decisions are made for.
func (u *User) Subject() policy.Subject {
	return policy.Subject{UserID: u.ID, Role: u.Role}
}

// Principal converts the user for recipient selection.
func (u *User) Principal() policy.Principal {
	return policy.Principal{ID: u.ID, Role: u.Role, IsActive: u.IsActive}
}

// PushToken is a device registration for external push delivery.
type PushToken struct {
	BaseModel
	UserID   uuid.UUID `gorm:"type:uuid;index" json:"userId"`
	Token    string    `gorm:"uniqueIndex" json:"token"`
	Platform string    `json:"platform"`
}
