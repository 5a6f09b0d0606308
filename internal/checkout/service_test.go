package checkout

import (
	"context"
	"strings"
	"testing"

	"github.com/ngmtien/velora-backend/internal/cart"
	"github.com/ngmtien/velora-backend/internal/inventory"
	"github.com/ngmtien/velora-backend/internal/orders"
	"github.com/ngmtien/velora-backend/pkg/config"
	"github.com/ngmtien/velora-backend/pkg/db/models"
	"github.com/ngmtien/velora-backend/pkg/enums"
	pkgerrors "github.com/ngmtien/velora-backend/pkg/errors"
	"github.com/ngmtien/velora-backend/pkg/outbox"
	"github.com/ngmtien/velora-backend/pkg/vnpay"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type recordingEmitter struct {
	events []outbox.DomainEvent
}

func (e *recordingEmitter) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	e.events = append(e.events, event)
	return nil
}

type fixture struct {
	svc     Service
	db      *gorm.DB
	emitter *recordingEmitter
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dsn := "file:checkout_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.ProductVariant{}, &models.CartItem{}, &models.Order{}, &models.OrderDetail{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	runner := gormTxRunner{db: db}
	invRepo := inventory.NewRepository(db)
	inv, err := inventory.NewService(invRepo, runner)
	if err != nil {
		t.Fatalf("inventory service: %v", err)
	}
	payments, err := vnpay.New(config.VNPayConfig{
		BaseURL:    "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
		TmnCode:    "VELORA01",
		HashSecret: "topsecretsharedkey",
		ReturnURL:  "https://shop.velora.vn/payment/return",
		Locale:     "vn",
		Currency:   "VND",
	})
	if err != nil {
		t.Fatalf("vnpay client: %v", err)
	}

	emitter := &recordingEmitter{}
	svc, err := NewService(runner, cart.NewRepository(db), orders.NewRepository(db), invRepo, inv, emitter, payments)
	if err != nil {
		t.Fatalf("checkout service: %v", err)
	}
	return fixture{svc: svc, db: db, emitter: emitter}
}

func (f fixture) seedVariant(t *testing.T, stock, priceCents, salePriceCents int) uuid.UUID {
	t.Helper()
	variant := models.ProductVariant{
		ID:             uuid.New(),
		ProductID:      uuid.New(),
		Name:           "Silk Foundation 21N",
		SKU:            "SKU-" + uuid.NewString()[:8],
		PriceCents:     priceCents,
		SalePriceCents: salePriceCents,
		StockQuantity:  stock,
		IsActive:       true,
	}
	if err := f.db.Create(&variant).Error; err != nil {
		t.Fatalf("seed variant: %v", err)
	}
	return variant.ID
}

func (f fixture) seedCartLine(t *testing.T, userID, variantID uuid.UUID, qty int) {
	t.Helper()
	item := models.CartItem{UserID: userID, VariantID: variantID, Quantity: qty}
	if err := f.db.Create(&item).Error; err != nil {
		t.Fatalf("seed cart line: %v", err)
	}
}

func (f fixture) stockOf(t *testing.T, variantID uuid.UUID) int {
	t.Helper()
	var variant models.ProductVariant
	if err := f.db.First(&variant, "id = ?", variantID).Error; err != nil {
		t.Fatalf("load variant: %v", err)
	}
	return variant.StockQuantity
}

func (f fixture) cartCount(t *testing.T, userID uuid.UUID) int64 {
	t.Helper()
	var count int64
	if err := f.db.Model(&models.CartItem{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		t.Fatalf("count cart: %v", err)
	}
	return count
}

func validInput(userID uuid.UUID, method enums.PaymentMethod) Input {
	return Input{
		UserID:          userID,
		CustomerName:    "Thu Ha",
		CustomerPhone:   "0912345678",
		CustomerEmail:   "thuha@example.com",
		ShippingAddress: "45 Nguyen Trai, Q1, TP HCM",
		PaymentMethod:   method,
		ClientIP:        "203.0.113.7",
	}
}

func TestExecuteCODReservesAndClearsCart(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	listPriced := f.seedVariant(t, 10, 19900, 0)
	salePriced := f.seedVariant(t, 5, 29900, 24900)
	f.seedCartLine(t, userID, listPriced, 2)
	f.seedCartLine(t, userID, salePriced, 1)

	result, err := f.svc.Execute(ctx, validInput(userID, enums.PaymentMethodCOD))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	order := result.Order
	if order.Status != enums.OrderStatusPending {
		t.Fatalf("status = %s, want pending", order.Status)
	}
	if want := 2*19900 + 24900; order.TotalCents != want {
		t.Fatalf("total = %d, want %d", order.TotalCents, want)
	}
	if len(order.Details) != 2 {
		t.Fatalf("expected 2 detail rows, got %d", len(order.Details))
	}
	if result.PaymentURL != "" {
		t.Fatalf("cod checkout must not return a payment url")
	}

	if got := f.stockOf(t, listPriced); got != 8 {
		t.Fatalf("stock = %d, want 8", got)
	}
	if got := f.stockOf(t, salePriced); got != 4 {
		t.Fatalf("stock = %d, want 4", got)
	}
	if got := f.cartCount(t, userID); got != 0 {
		t.Fatalf("cart not cleared: %d lines", got)
	}
	if len(f.emitter.events) != 1 || f.emitter.events[0].EventType != enums.EventOrderCreated {
		t.Fatalf("unexpected events: %+v", f.emitter.events)
	}
}

func TestExecuteGatewayDefersReservation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	variantID := f.seedVariant(t, 10, 19900, 0)
	f.seedCartLine(t, userID, variantID, 3)

	result, err := f.svc.Execute(ctx, validInput(userID, enums.PaymentMethodGateway))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	if result.Order.Status != enums.OrderStatusPendingPayment {
		t.Fatalf("status = %s, want pending_payment", result.Order.Status)
	}
	if result.PaymentURL == "" {
		t.Fatal("gateway checkout must return a payment url")
	}
	if !strings.Contains(result.PaymentURL, "vnp_TxnRef="+result.Order.ID.String()) {
		t.Fatalf("payment url missing txn ref: %s", result.PaymentURL)
	}

	// nothing reserved, cart intact
	if got := f.stockOf(t, variantID); got != 10 {
		t.Fatalf("stock = %d, want 10", got)
	}
	if got := f.cartCount(t, userID); got != 1 {
		t.Fatalf("cart changed: %d lines", got)
	}
}

func TestExecuteEmptyCart(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.svc.Execute(context.Background(), validInput(uuid.New(), enums.PaymentMethodCOD))
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestExecuteCODShortageRollsBack(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	plenty := f.seedVariant(t, 10, 9900, 0)
	scarce := f.seedVariant(t, 1, 9900, 0)
	f.seedCartLine(t, userID, plenty, 2)
	f.seedCartLine(t, userID, scarce, 3)

	_, err := f.svc.Execute(ctx, validInput(userID, enums.PaymentMethodCOD))
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("unexpected error: %v", err)
	}

	var orderCount int64
	if err := f.db.Model(&models.Order{}).Count(&orderCount).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if orderCount != 0 {
		t.Fatalf("order row leaked after rollback")
	}
	if got := f.stockOf(t, plenty); got != 10 {
		t.Fatalf("stock leaked: %d", got)
	}
	if got := f.cartCount(t, userID); got != 2 {
		t.Fatalf("cart changed after failed checkout: %d", got)
	}
}

func TestExecuteValidatesContactFields(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	input := validInput(uuid.New(), enums.PaymentMethodCOD)
	input.CustomerEmail = "  "

	_, err := f.svc.Execute(context.Background(), input)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error: %v", err)
	}
}

// The price snapshot must come from the transaction the order commits
// in. A variants repository bound to an unrelated empty database still
// works because checkout rebinds it to its own tx before reading.
func TestExecuteReadsVariantsThroughCheckoutTx(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	variantID := f.seedVariant(t, 10, 19900, 0)
	f.seedCartLine(t, userID, variantID, 2)

	decoy, err := gorm.Open(sqlite.Open("file:checkout_decoy_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open decoy db: %v", err)
	}
	if err := decoy.AutoMigrate(&models.ProductVariant{}); err != nil {
		t.Fatalf("migrate decoy db: %v", err)
	}

	runner := gormTxRunner{db: f.db}
	inv, err := inventory.NewService(inventory.NewRepository(f.db), runner)
	if err != nil {
		t.Fatalf("inventory service: %v", err)
	}
	payments, err := vnpay.New(config.VNPayConfig{
		BaseURL:    "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html",
		TmnCode:    "VELORA01",
		HashSecret: "topsecretsharedkey",
		ReturnURL:  "https://shop.velora.vn/payment/return",
		Locale:     "vn",
		Currency:   "VND",
	})
	if err != nil {
		t.Fatalf("vnpay client: %v", err)
	}
	svc, err := NewService(runner, cart.NewRepository(f.db), orders.NewRepository(f.db),
		inventory.NewRepository(decoy), inv, f.emitter, payments)
	if err != nil {
		t.Fatalf("checkout service: %v", err)
	}

	result, err := svc.Execute(ctx, validInput(userID, enums.PaymentMethodCOD))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(result.Order.Details) != 1 || result.Order.Details[0].UnitPriceCents != 19900 {
		t.Fatalf("unexpected snapshot: %+v", result.Order.Details)
	}
}
