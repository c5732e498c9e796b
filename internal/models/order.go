package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is a step of the order lifecycle.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderShipped   OrderStatus = "shipped"
	OrderDelivered OrderStatus = "delivered"
	OrderCancelled OrderStatus = "cancelled"
)

// Valid reports whether s is one of the known statuses.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderConfirmed, OrderShipped, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s OrderStatus) Terminal() bool {
	return s == OrderDelivered || s == OrderCancelled
}

// Order is a purchase placed against one catalog. Totals are server-computed.
type Order struct {
	BaseModel
	UserID      uuid.UUID       `gorm:"type:uuid;index" json:"userId"`
	User        *User           `gorm:"foreignKey:UserID" json:"user,omitempty"`
	CatalogID   uuid.UUID       `gorm:"type:uuid;index" json:"catalogId"`
	Catalog     *Catalog        `gorm:"foreignKey:CatalogID" json:"catalog,omitempty"`
	Status      OrderStatus     `gorm:"type:varchar(16);index" json:"status"`
	TotalAmount decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"totalAmount"`
	Notes       string          `json:"notes"`
	PlacedAt    time.Time       `gorm:"index" json:"placedAt"`
	Items       []OrderItem     `gorm:"foreignKey:OrderID" json:"items"`
}

// OrderItem snapshots product name, price and size at placement time.
type OrderItem struct {
	BaseModel
	OrderID   uuid.UUID       `gorm:"type:uuid;index" json:"orderId"`
	ProductID uuid.UUID       `gorm:"type:uuid;index" json:"productId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"price"`
	Quantity  int             `json:"quantity"`
	Size      string          `json:"size"`
	Position  int             `json:"-"`
}

// LineTotal is price times quantity.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
