package vnpaywebhook

import (
	"context"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/ngmtien/velora-backend/internal/cart"
	"github.com/ngmtien/velora-backend/internal/inventory"
	"github.com/ngmtien/velora-backend/internal/orders"
	"github.com/ngmtien/velora-backend/pkg/db/models"
	"github.com/ngmtien/velora-backend/pkg/enums"
	pkgerrors "github.com/ngmtien/velora-backend/pkg/errors"
	"github.com/ngmtien/velora-backend/pkg/logger"
	"github.com/ngmtien/velora-backend/pkg/outbox"
	"github.com/ngmtien/velora-backend/pkg/vnpay"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type fakeVerifier struct {
	result vnpay.CallbackResult
	err    error
}

func (f fakeVerifier) VerifyCallback(query url.Values) (vnpay.CallbackResult, error) {
	if f.err != nil {
		return vnpay.CallbackResult{}, f.err
	}
	return f.result, nil
}

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
	db      *gorm.DB
	emitter *recordingEmitter
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dsn := "file:vnpaywebhook_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.ProductVariant{}, &models.CartItem{}, &models.Order{}, &models.OrderDetail{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return fixture{db: db, emitter: &recordingEmitter{}}
}

func (f fixture) newService(t *testing.T, verifier callbackVerifier) *Service {
	t.Helper()
	runner := gormTxRunner{db: f.db}
	inv, err := inventory.NewService(inventory.NewRepository(f.db), runner)
	if err != nil {
		t.Fatalf("inventory service: %v", err)
	}
	svc, err := NewService(ServiceParams{
		Verifier:          verifier,
		OrdersRepo:        orders.NewRepository(f.db),
		CartRepo:          cart.NewRepository(f.db),
		Inventory:         inv,
		Outbox:            f.emitter,
		TransactionRunner: runner,
		Logger:            logger.New(logger.Options{ServiceName: "velora-test", Level: zerolog.ErrorLevel}),
	})
	if err != nil {
		t.Fatalf("webhook service: %v", err)
	}
	return svc
}

func (f fixture) seedVariant(t *testing.T, stock int) uuid.UUID {
	t.Helper()
	variant := models.ProductVariant{
		ID:            uuid.New(),
		ProductID:     uuid.New(),
		Name:          "Cica Repair Cream",
		SKU:           "SKU-" + uuid.NewString()[:8],
		PriceCents:    38900,
		StockQuantity: stock,
	}
	if err := f.db.Create(&variant).Error; err != nil {
		t.Fatalf("seed variant: %v", err)
	}
	return variant.ID
}

func (f fixture) seedPendingPaymentOrder(t *testing.T, userID, variantID uuid.UUID, qty int) uuid.UUID {
	t.Helper()
	order := models.Order{
		ID:              uuid.New(),
		UserID:          userID,
		CustomerName:    "Linh Chi",
		CustomerPhone:   "0987654321",
		CustomerEmail:   "linhchi@example.com",
		ShippingAddress: "8 Tran Phu, Da Nang",
		Status:          enums.OrderStatusPendingPayment,
		PaymentMethod:   enums.PaymentMethodGateway,
		TotalCents:      38900 * qty,
		PlacedAt:        time.Now(),
		Details: []models.OrderDetail{{
			VariantID:      variantID,
			Quantity:       qty,
			UnitPriceCents: 38900,
			TotalCents:     38900 * qty,
		}},
	}
	if err := f.db.Create(&order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return order.ID
}

func (f fixture) orderStatus(t *testing.T, orderID uuid.UUID) (enums.OrderStatus, bool) {
	t.Helper()
	var order models.Order
	err := f.db.First(&order, "id = ?", orderID).Error
	if err == gorm.ErrRecordNotFound {
		return "", false
	}
	if err != nil {
		t.Fatalf("load order: %v", err)
	}
	return order.Status, true
}

func TestHandleCallbackSuccess(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	userID := uuid.New()
	variantID := f.seedVariant(t, 5)
	orderID := f.seedPendingPaymentOrder(t, userID, variantID, 2)
	// the cart was kept through gateway checkout and must be cleared now
	if err := f.db.Create(&models.CartItem{UserID: userID, VariantID: variantID, Quantity: 2}).Error; err != nil {
		t.Fatalf("seed cart: %v", err)
	}

	svc := f.newService(t, fakeVerifier{result: vnpay.CallbackResult{
		OrderID:       orderID,
		ResponseCode:  vnpay.ResponseCodeSuccess,
		TransactionNo: "14422574",
		AmountCents:   77800,
	}})

	outcome, err := svc.HandleCallback(context.Background(), url.Values{})
	if err != nil {
		t.Fatalf("handle callback: %v", err)
	}
	if outcome != OutcomePaid {
		t.Fatalf("outcome = %s, want paid", outcome)
	}

	status, _ := f.orderStatus(t, orderID)
	if status != enums.OrderStatusPaid {
		t.Fatalf("status = %s, want paid", status)
	}

	var variant models.ProductVariant
	if err := f.db.First(&variant, "id = ?", variantID).Error; err != nil {
		t.Fatalf("load variant: %v", err)
	}
	if variant.StockQuantity != 3 {
		t.Fatalf("stock = %d, want 3", variant.StockQuantity)
	}

	var cartCount int64
	if err := f.db.Model(&models.CartItem{}).Where("user_id = ?", userID).Count(&cartCount).Error; err != nil {
		t.Fatalf("count cart: %v", err)
	}
	if cartCount != 0 {
		t.Fatalf("cart not cleared")
	}

	if len(f.emitter.events) != 1 || f.emitter.events[0].EventType != enums.EventOrderPaid {
		t.Fatalf("unexpected events: %+v", f.emitter.events)
	}
}

func TestHandleCallbackReplayIsIdempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	userID := uuid.New()
	variantID := f.seedVariant(t, 5)
	orderID := f.seedPendingPaymentOrder(t, userID, variantID, 2)

	svc := f.newService(t, fakeVerifier{result: vnpay.CallbackResult{
		OrderID:      orderID,
		ResponseCode: vnpay.ResponseCodeSuccess,
	}})

	if _, err := svc.HandleCallback(context.Background(), url.Values{}); err != nil {
		t.Fatalf("first callback: %v", err)
	}
	outcome, err := svc.HandleCallback(context.Background(), url.Values{})
	if err != nil {
		t.Fatalf("replayed callback: %v", err)
	}
	if outcome != OutcomeIgnored {
		t.Fatalf("outcome = %s, want ignored", outcome)
	}

	// stock decremented exactly once
	var variant models.ProductVariant
	if err := f.db.First(&variant, "id = ?", variantID).Error; err != nil {
		t.Fatalf("load variant: %v", err)
	}
	if variant.StockQuantity != 3 {
		t.Fatalf("stock = %d, want 3", variant.StockQuantity)
	}
}

func TestHandleCallbackDeclineDeletesOrder(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	userID := uuid.New()
	variantID := f.seedVariant(t, 5)
	orderID := f.seedPendingPaymentOrder(t, userID, variantID, 2)
	if err := f.db.Create(&models.CartItem{UserID: userID, VariantID: variantID, Quantity: 2}).Error; err != nil {
		t.Fatalf("seed cart: %v", err)
	}

	svc := f.newService(t, fakeVerifier{result: vnpay.CallbackResult{
		OrderID:      orderID,
		ResponseCode: "24", // customer cancelled at the gateway
	}})

	outcome, err := svc.HandleCallback(context.Background(), url.Values{})
	if err != nil {
		t.Fatalf("handle callback: %v", err)
	}
	if outcome != OutcomeDeclined {
		t.Fatalf("outcome = %s, want declined", outcome)
	}

	if _, exists := f.orderStatus(t, orderID); exists {
		t.Fatal("declined order should be deleted")
	}
	var detailCount int64
	if err := f.db.Model(&models.OrderDetail{}).Count(&detailCount).Error; err != nil {
		t.Fatalf("count details: %v", err)
	}
	if detailCount != 0 {
		t.Fatal("order details left behind")
	}

	// the cart survives a declined payment
	var cartCount int64
	if err := f.db.Model(&models.CartItem{}).Where("user_id = ?", userID).Count(&cartCount).Error; err != nil {
		t.Fatalf("count cart: %v", err)
	}
	if cartCount != 1 {
		t.Fatal("cart must be untouched on decline")
	}

	if len(f.emitter.events) != 1 || f.emitter.events[0].EventType != enums.EventOrderPaymentFailed {
		t.Fatalf("unexpected events: %+v", f.emitter.events)
	}
}

func TestHandleCallbackShortageKeepsOrderPending(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	userID := uuid.New()
	variantID := f.seedVariant(t, 1)
	orderID := f.seedPendingPaymentOrder(t, userID, variantID, 3)

	svc := f.newService(t, fakeVerifier{result: vnpay.CallbackResult{
		OrderID:      orderID,
		ResponseCode: vnpay.ResponseCodeSuccess,
	}})

	_, err := svc.HandleCallback(context.Background(), url.Values{})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		t.Fatalf("unexpected error: %v", err)
	}

	status, exists := f.orderStatus(t, orderID)
	if !exists || status != enums.OrderStatusPendingPayment {
		t.Fatalf("order must stay pending_payment, got %s (exists=%v)", status, exists)
	}
	var variant models.ProductVariant
	if err := f.db.First(&variant, "id = ?", variantID).Error; err != nil {
		t.Fatalf("load variant: %v", err)
	}
	if variant.StockQuantity != 1 {
		t.Fatalf("stock changed: %d", variant.StockQuantity)
	}
	if len(f.emitter.events) != 0 {
		t.Fatalf("no events expected, got %d", len(f.emitter.events))
	}
}

func TestHandleCallbackUnknownOrderIsIgnored(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	svc := f.newService(t, fakeVerifier{result: vnpay.CallbackResult{
		OrderID:      uuid.New(),
		ResponseCode: vnpay.ResponseCodeSuccess,
	}})

	outcome, err := svc.HandleCallback(context.Background(), url.Values{})
	if err != nil {
		t.Fatalf("handle callback: %v", err)
	}
	if outcome != OutcomeIgnored {
		t.Fatalf("outcome = %s, want ignored", outcome)
	}
}

func TestHandleCallbackBadSignature(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	svc := f.newService(t, fakeVerifier{err: fmt.Errorf("signature mismatch")})

	_, err := svc.HandleCallback(context.Background(), url.Values{"vnp_TxnRef": {uuid.NewString()}})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeSignatureMismatch {
		t.Fatalf("unexpected error: %v", err)
	}
}

// racingReserver moves the order away from pending_payment through the
// settlement tx before delegating, standing in for a writer that
// settled the order first.
type racingReserver struct {
	inner   stockReserver
	orderID uuid.UUID
}

func (m racingReserver) Reserve(ctx context.Context, tx *gorm.DB, lines []inventory.Line) error {
	if err := tx.Model(&models.Order{}).Where("id = ?", m.orderID).
		Update("status", enums.OrderStatusPaid).Error; err != nil {
		return err
	}
	return m.inner.Reserve(ctx, tx, lines)
}

func TestHandleCallbackRacingSettlementIsIgnored(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	userID := uuid.New()
	variantID := f.seedVariant(t, 5)
	orderID := f.seedPendingPaymentOrder(t, userID, variantID, 2)
	if err := f.db.Create(&models.CartItem{UserID: userID, VariantID: variantID, Quantity: 2}).Error; err != nil {
		t.Fatalf("seed cart: %v", err)
	}

	runner := gormTxRunner{db: f.db}
	inv, err := inventory.NewService(inventory.NewRepository(f.db), runner)
	if err != nil {
		t.Fatalf("inventory service: %v", err)
	}
	svc, err := NewService(ServiceParams{
		Verifier: fakeVerifier{result: vnpay.CallbackResult{
			OrderID:      orderID,
			ResponseCode: vnpay.ResponseCodeSuccess,
		}},
		OrdersRepo:        orders.NewRepository(f.db),
		CartRepo:          cart.NewRepository(f.db),
		Inventory:         racingReserver{inner: inv, orderID: orderID},
		Outbox:            f.emitter,
		TransactionRunner: runner,
		Logger:            logger.New(logger.Options{ServiceName: "velora-test", Level: zerolog.ErrorLevel}),
	})
	if err != nil {
		t.Fatalf("webhook service: %v", err)
	}

	outcome, err := svc.HandleCallback(context.Background(), url.Values{})
	if err != nil {
		t.Fatalf("handle callback: %v", err)
	}
	if outcome != OutcomeIgnored {
		t.Fatalf("outcome = %s, want ignored", outcome)
	}

	// the losing settlement rolled back whole: no stock taken, cart kept
	var variant models.ProductVariant
	if err := f.db.First(&variant, "id = ?", variantID).Error; err != nil {
		t.Fatalf("load variant: %v", err)
	}
	if variant.StockQuantity != 5 {
		t.Fatalf("stock = %d, want 5", variant.StockQuantity)
	}
	var cartCount int64
	if err := f.db.Model(&models.CartItem{}).Where("user_id = ?", userID).Count(&cartCount).Error; err != nil {
		t.Fatalf("count cart: %v", err)
	}
	if cartCount != 1 {
		t.Fatal("cart must be untouched by the losing settlement")
	}
	if len(f.emitter.events) != 0 {
		t.Fatalf("no events expected, got %d", len(f.emitter.events))
	}
}
