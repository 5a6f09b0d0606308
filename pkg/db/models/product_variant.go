package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProductVariant is the sellable unit (shade, size). StockQuantity is
// the single source of truth for availability and never goes negative;
// every decrement happens through the inventory ledger's guarded update.
type ProductVariant struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ProductID      uuid.UUID `gorm:"column:product_id;type:uuid;not null;index"`
	Name           string    `gorm:"column:name;not null"`
	SKU            string    `gorm:"column:sku;not null;uniqueIndex"`
	PriceCents     int       `gorm:"column:price_cents;not null"`
	SalePriceCents int       `gorm:"column:sale_price_cents;not null;default:0"`
	StockQuantity  int       `gorm:"column:stock_quantity;not null;default:0;check:stock_quantity >= 0"`
	IsActive       bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (v *ProductVariant) BeforeCreate(*gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

// EffectivePriceCents returns the sale price when one is set, otherwise
// the list price.
func (v ProductVariant) EffectivePriceCents() int {
	if v.SalePriceCents > 0 {
		return v.SalePriceCents
	}
	return v.PriceCents
}
