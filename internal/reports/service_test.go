package reports

import (
	"context"
	"testing"
	"time"

	"github.com/ngmtien/velora-backend/pkg/db/models"
	"github.com/ngmtien/velora-backend/pkg/enums"
	pkgerrors "github.com/ngmtien/velora-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:reports_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = db.AutoMigrate(
		&models.Order{},
		&models.OrderDetail{},
		&models.ProductVariant{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedVariant(t *testing.T, db *gorm.DB, name, sku string) uuid.UUID {
	t.Helper()
	variant := models.ProductVariant{
		ID:         uuid.New(),
		ProductID:  uuid.New(),
		Name:       name,
		SKU:        sku,
		PriceCents: 19900,
		IsActive:   true,
	}
	if err := db.Create(&variant).Error; err != nil {
		t.Fatalf("seed variant: %v", err)
	}
	return variant.ID
}

func seedOrder(t *testing.T, db *gorm.DB, status enums.OrderStatus, totalCents int, placedAt time.Time, lines map[uuid.UUID]int) {
	t.Helper()
	order := models.Order{
		ID:              uuid.New(),
		UserID:          uuid.New(),
		CustomerName:    "Chi Nguyen",
		CustomerPhone:   "0900000000",
		CustomerEmail:   "chi@velora.test",
		ShippingAddress: "12 Hoa Mai, Da Nang",
		Status:          status,
		PaymentMethod:   enums.PaymentMethodCOD,
		TotalCents:      totalCents,
		PlacedAt:        placedAt,
	}
	if err := db.Create(&order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	for variantID, qty := range lines {
		unit := totalCents / max(1, len(lines)) / max(1, qty)
		detail := models.OrderDetail{
			ID:             uuid.New(),
			OrderID:        order.ID,
			VariantID:      variantID,
			Quantity:       qty,
			UnitPriceCents: unit,
			TotalCents:     unit * qty,
		}
		if err := db.Create(&detail).Error; err != nil {
			t.Fatalf("seed detail: %v", err)
		}
	}
}

func TestSalesSummary(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc, err := NewService(NewRepository(db))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	ctx := context.Background()

	serum := seedVariant(t, db, "Peony Serum 30ml", "SER-030")
	lipstick := seedVariant(t, db, "Velvet Lipstick 01", "LIP-001")

	day1 := time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 6, 2, 15, 30, 0, 0, time.UTC)

	seedOrder(t, db, enums.OrderStatusPaid, 40000, day1, map[uuid.UUID]int{serum: 2})
	seedOrder(t, db, enums.OrderStatusPaid, 20000, day1.Add(2*time.Hour), map[uuid.UUID]int{lipstick: 1})
	seedOrder(t, db, enums.OrderStatusPaid, 60000, day2, map[uuid.UUID]int{serum: 3})
	// outside the window and non-paid rows must not count
	seedOrder(t, db, enums.OrderStatusPaid, 99900, day2.AddDate(0, 1, 0), map[uuid.UUID]int{serum: 1})
	seedOrder(t, db, enums.OrderStatusPending, 15000, day1, map[uuid.UUID]int{lipstick: 1})
	seedOrder(t, db, enums.OrderStatusCancelled, 15000, day2, map[uuid.UUID]int{lipstick: 1})

	summary, err := svc.SalesSummary(ctx, SummaryInput{
		From: day1.Truncate(24 * time.Hour),
		To:   day2.AddDate(0, 0, 1).Truncate(24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("summary: %v", err)
	}

	if summary.TotalOrders != 3 {
		t.Fatalf("total orders = %d, want 3", summary.TotalOrders)
	}
	if summary.TotalRevenueCents != 120000 {
		t.Fatalf("total revenue cents = %d, want 120000", summary.TotalRevenueCents)
	}
	if summary.TotalRevenue.String() != "1200" {
		t.Fatalf("total revenue = %s, want 1200", summary.TotalRevenue)
	}
	if summary.AverageOrderValue.String() != "400" {
		t.Fatalf("aov = %s, want 400", summary.AverageOrderValue)
	}

	if len(summary.Days) != 2 {
		t.Fatalf("days = %d, want 2", len(summary.Days))
	}
	if summary.Days[0].Date != "2026-06-01" || summary.Days[0].OrderCount != 2 || summary.Days[0].RevenueCents != 60000 {
		t.Fatalf("unexpected day 1: %+v", summary.Days[0])
	}
	if summary.Days[1].Date != "2026-06-02" || summary.Days[1].OrderCount != 1 || summary.Days[1].RevenueCents != 60000 {
		t.Fatalf("unexpected day 2: %+v", summary.Days[1])
	}

	if len(summary.TopVariants) != 2 {
		t.Fatalf("top variants = %d, want 2", len(summary.TopVariants))
	}
	top := summary.TopVariants[0]
	if top.VariantID != serum || top.UnitsSold != 5 || top.SKU != "SER-030" {
		t.Fatalf("unexpected top seller: %+v", top)
	}
}

func TestSalesSummaryEmptyWindow(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc, err := NewService(NewRepository(db))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	summary, err := svc.SalesSummary(context.Background(), SummaryInput{})
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.TotalOrders != 0 || !summary.TotalRevenue.IsZero() || !summary.AverageOrderValue.IsZero() {
		t.Fatalf("expected zeroed summary: %+v", summary)
	}
	if len(summary.Days) != 0 || len(summary.TopVariants) != 0 {
		t.Fatalf("expected empty slices: %+v", summary)
	}
}

func TestSalesSummaryRejectsInvertedWindow(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc, err := NewService(NewRepository(db))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	now := time.Now().UTC()
	_, err = svc.SalesSummary(context.Background(), SummaryInput{From: now, To: now.Add(-time.Hour)})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error: %v", err)
	}
}
