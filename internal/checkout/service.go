package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ngmtien/velora-backend/internal/cart"
	"github.com/ngmtien/velora-backend/internal/inventory"
	"github.com/ngmtien/velora-backend/internal/orders"
	"github.com/ngmtien/velora-backend/pkg/db/models"
	"github.com/ngmtien/velora-backend/pkg/enums"
	pkgerrors "github.com/ngmtien/velora-backend/pkg/errors"
	"github.com/ngmtien/velora-backend/pkg/outbox"
	"github.com/ngmtien/velora-backend/pkg/outbox/payloads"
	"github.com/ngmtien/velora-backend/pkg/vnpay"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type stockReserver interface {
	Reserve(ctx context.Context, tx *gorm.DB, lines []inventory.Line) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type paymentURLBuilder interface {
	BuildPaymentURL(req vnpay.PaymentRequest) (string, error)
}

// Input is everything checkout needs beyond the authenticated user's cart.
// Contact fields are snapshotted onto the order header verbatim.
type Input struct {
	UserID          uuid.UUID
	CustomerName    string
	CustomerPhone   string
	CustomerEmail   string
	ShippingAddress string
	PaymentMethod   enums.PaymentMethod
	ClientIP        string
}

// Result is the committed order plus, for gateway checkouts, the signed
// redirect URL the customer pays at.
type Result struct {
	Order      *models.Order
	PaymentURL string
}

// Service turns the authenticated user's cart into an order.
type Service interface {
	Execute(ctx context.Context, input Input) (*Result, error)
}

type service struct {
	tx        txRunner
	cartRepo  cart.Repository
	orderRepo orders.Repository
	variants  inventory.Repository
	inventory stockReserver
	outbox    outboxEmitter
	payments  paymentURLBuilder
}

// NewService builds the checkout orchestrator.
func NewService(
	tx txRunner,
	cartRepo cart.Repository,
	orderRepo orders.Repository,
	variants inventory.Repository,
	inv stockReserver,
	emitter outboxEmitter,
	payments paymentURLBuilder,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if cartRepo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if orderRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if variants == nil {
		return nil, fmt.Errorf("variant loader required")
	}
	if inv == nil {
		return nil, fmt.Errorf("inventory service required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if payments == nil {
		return nil, fmt.Errorf("payment url builder required")
	}
	return &service{
		tx:        tx,
		cartRepo:  cartRepo,
		orderRepo: orderRepo,
		variants:  variants,
		inventory: inv,
		outbox:    emitter,
		payments:  payments,
	}, nil
}

// Execute runs the whole checkout in one transaction: hydrate the cart,
// snapshot prices into order details, and branch on the payment method.
// COD reserves stock now and clears the cart; gateway defers both until
// the payment confirmation arrives, so the redirect URL is built only
// after the order has committed.
func (s *service) Execute(ctx context.Context, input Input) (*Result, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cartRepo := s.cartRepo.WithTx(tx)
		orderRepo := s.orderRepo.WithTx(tx)

		items, err := cartRepo.ListByUser(ctx, input.UserID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		if len(items) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}

		variantsByID, err := s.hydrateVariants(ctx, tx, items)
		if err != nil {
			return err
		}

		status := enums.OrderStatusPending
		if input.PaymentMethod == enums.PaymentMethodGateway {
			status = enums.OrderStatusPendingPayment
		}

		order = &models.Order{
			ID:              uuid.New(),
			UserID:          input.UserID,
			CustomerName:    strings.TrimSpace(input.CustomerName),
			CustomerPhone:   strings.TrimSpace(input.CustomerPhone),
			CustomerEmail:   strings.TrimSpace(input.CustomerEmail),
			ShippingAddress: strings.TrimSpace(input.ShippingAddress),
			Status:          status,
			PaymentMethod:   input.PaymentMethod,
			PlacedAt:        time.Now().UTC(),
		}

		var lines []inventory.Line
		for _, item := range items {
			variant := variantsByID[item.VariantID]
			unit := variant.EffectivePriceCents()
			order.Details = append(order.Details, models.OrderDetail{
				OrderID:        order.ID,
				VariantID:      item.VariantID,
				Quantity:       item.Quantity,
				UnitPriceCents: unit,
				TotalCents:     unit * item.Quantity,
			})
			order.TotalCents += unit * item.Quantity
			lines = append(lines, inventory.Line{VariantID: item.VariantID, Quantity: item.Quantity})
		}

		if err := orderRepo.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		// COD is committed to immediately; gateway orders reserve nothing
		// until the payment confirmation arrives.
		if input.PaymentMethod == enums.PaymentMethodCOD {
			if err := s.inventory.Reserve(ctx, tx, lines); err != nil {
				return err
			}
			if err := cartRepo.DeleteAllForUser(ctx, input.UserID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
			}
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.UserID, Role: enums.UserRoleCustomer.String()},
			Data: payloads.OrderCreatedEvent{
				OrderID:       order.ID,
				UserID:        order.UserID,
				Status:        order.Status,
				PaymentMethod: order.PaymentMethod,
				TotalCents:    order.TotalCents,
				LineCount:     len(order.Details),
				PlacedAt:      order.PlacedAt,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	result := &Result{Order: order}
	if input.PaymentMethod == enums.PaymentMethodGateway {
		url, err := s.payments.BuildPaymentURL(vnpay.PaymentRequest{
			OrderID:     order.ID,
			AmountCents: order.TotalCents,
			OrderInfo:   "Thanh toan don hang " + order.ID.String(),
			IPAddr:      input.ClientIP,
			CreatedAt:   order.PlacedAt,
		})
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build payment url")
		}
		result.PaymentURL = url
	}
	return result, nil
}

// hydrateVariants loads the cart's variants through the checkout
// transaction, so the prices and active flags snapshotted onto the
// order are the ones that commit with it.
func (s *service) hydrateVariants(ctx context.Context, tx *gorm.DB, items []models.CartItem) (map[uuid.UUID]models.ProductVariant, error) {
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.VariantID)
	}
	variants, err := s.variants.WithTx(tx).FindVariants(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variants")
	}

	byID := make(map[uuid.UUID]models.ProductVariant, len(variants))
	for _, variant := range variants {
		byID[variant.ID] = variant
	}
	for _, item := range items {
		variant, ok := byID[item.VariantID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart references a missing product variant")
		}
		if !variant.IsActive {
			return nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("product variant %s is no longer available", variant.SKU))
		}
	}
	return byID, nil
}

func validateInput(input Input) error {
	if input.UserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !input.PaymentMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	for field, value := range map[string]string{
		"customer_name":    input.CustomerName,
		"customer_phone":   input.CustomerPhone,
		"customer_email":   input.CustomerEmail,
		"shipping_address": input.ShippingAddress,
	} {
		if strings.TrimSpace(value) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, field+" is required")
		}
	}
	return nil
}
