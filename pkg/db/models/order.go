package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ngmtien/velora-backend/pkg/enums"
)

// Order is the customer order header. Contact fields are snapshotted at
// checkout so later profile edits never rewrite history.
type Order struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	UserID          uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	CustomerName    string              `gorm:"column:customer_name;not null"`
	CustomerPhone   string              `gorm:"column:customer_phone;not null"`
	CustomerEmail   string              `gorm:"column:customer_email;not null"`
	ShippingAddress string              `gorm:"column:shipping_address;not null"`
	Status          enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'pending';index"`
	PaymentMethod   enums.PaymentMethod `gorm:"column:payment_method;type:text;not null"`
	TotalCents      int                 `gorm:"column:total_cents;not null"`
	PlacedAt        time.Time           `gorm:"column:placed_at;not null"`
	Details         []OrderDetail       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// BeforeCreate assigns the id when the caller did not.
func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
