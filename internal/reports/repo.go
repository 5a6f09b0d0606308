package reports

import (
	"context"
	"time"

	"github.com/ngmtien/velora-backend/pkg/db/models"
	"github.com/ngmtien/velora-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// VariantSalesRow is one aggregated top-seller row.
type VariantSalesRow struct {
	VariantID    uuid.UUID `gorm:"column:variant_id"`
	Name         string    `gorm:"column:name"`
	SKU          string    `gorm:"column:sku"`
	UnitsSold    int       `gorm:"column:units_sold"`
	RevenueCents int64     `gorm:"column:revenue_cents"`
}

// Repository reads the paid-order slices the sales report is built from.
type Repository interface {
	ListPaidOrders(ctx context.Context, from, to time.Time) ([]models.Order, error)
	TopVariants(ctx context.Context, from, to time.Time, limit int) ([]VariantSalesRow, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository constructs a reporting repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) ListPaidOrders(ctx context.Context, from, to time.Time) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Select("id", "total_cents", "placed_at").
		Where("status = ? AND placed_at >= ? AND placed_at < ?", enums.OrderStatusPaid, from, to).
		Order("placed_at ASC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) TopVariants(ctx context.Context, from, to time.Time, limit int) ([]VariantSalesRow, error) {
	var rows []VariantSalesRow
	err := r.db.WithContext(ctx).
		Table("order_details").
		Select(
			"order_details.variant_id AS variant_id, " +
				"product_variants.name AS name, " +
				"product_variants.sku AS sku, " +
				"SUM(order_details.quantity) AS units_sold, " +
				"SUM(order_details.total_cents) AS revenue_cents",
		).
		Joins("JOIN orders ON orders.id = order_details.order_id").
		Joins("JOIN product_variants ON product_variants.id = order_details.variant_id").
		Where("orders.status = ? AND orders.placed_at >= ? AND orders.placed_at < ?", enums.OrderStatusPaid, from, to).
		Group("order_details.variant_id, product_variants.name, product_variants.sku").
		Order("units_sold DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
