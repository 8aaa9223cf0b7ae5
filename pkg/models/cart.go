package models

import (
	"time"
)

// CartItem is one (user, product) line of a shopping cart. Adding the same
// product again replaces the quantity rather than incrementing it.
type CartItem struct {
	UserID    string    `gorm:"primaryKey;type:varchar(36)" json:"user_id"`
	ProductID string    `gorm:"primaryKey;type:varchar(36)" json:"product_id"`
	Quantity  int       `gorm:"not null" json:"quantity"`
	Product   Product   `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (CartItem) TableName() string {
	return "shopping_carts"
}
