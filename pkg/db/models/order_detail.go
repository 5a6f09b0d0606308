package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderDetail captures the price snapshot of each line within an order.
type OrderDetail struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	VariantID      uuid.UUID       `gorm:"column:variant_id;type:uuid;not null"`
	Quantity       int             `gorm:"column:quantity;not null"`
	UnitPriceCents int             `gorm:"column:unit_price_cents;not null"`
	TotalCents     int             `gorm:"column:total_cents;not null"`
	Variant        *ProductVariant `gorm:"foreignKey:VariantID"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (d *OrderDetail) BeforeCreate(*gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
