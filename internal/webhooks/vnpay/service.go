package vnpaywebhook

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/ngmtien/velora-backend/internal/cart"
	"github.com/ngmtien/velora-backend/internal/inventory"
	"github.com/ngmtien/velora-backend/internal/orders"
	"github.com/ngmtien/velora-backend/pkg/enums"
	pkgerrors "github.com/ngmtien/velora-backend/pkg/errors"
	"github.com/ngmtien/velora-backend/pkg/logger"
	"github.com/ngmtien/velora-backend/pkg/outbox"
	"github.com/ngmtien/velora-backend/pkg/outbox/payloads"
	"github.com/ngmtien/velora-backend/pkg/vnpay"
	"gorm.io/gorm"
)

// errAlreadySettled aborts the settlement tx when a concurrent writer
// moved the order first; the callback is then acknowledged as a replay.
var errAlreadySettled = errors.New("order already settled by a concurrent writer")

type callbackVerifier interface {
	VerifyCallback(query url.Values) (vnpay.CallbackResult, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type stockReserver interface {
	Reserve(ctx context.Context, tx *gorm.DB, lines []inventory.Line) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Outcome tells the controller what the confirmation did, which drives
// the response code returned to the gateway.
type Outcome string

const (
	// OutcomePaid means the order was settled and marked paid.
	OutcomePaid Outcome = "paid"
	// OutcomeDeclined means the gateway reported a failure and the
	// order was removed.
	OutcomeDeclined Outcome = "declined"
	// OutcomeIgnored means the callback referenced an order that was
	// already processed or never existed; replays land here.
	OutcomeIgnored Outcome = "ignored"
)

// ServiceParams wires the confirmation handler's dependencies.
type ServiceParams struct {
	Verifier          callbackVerifier
	OrdersRepo        orders.Repository
	CartRepo          cart.Repository
	Inventory         stockReserver
	Outbox            outboxEmitter
	TransactionRunner txRunner
	Logger            *logger.Logger
}

// Service applies VNPay return/IPN callbacks to orders.
type Service struct {
	verifier  callbackVerifier
	orders    orders.Repository
	carts     cart.Repository
	inventory stockReserver
	outbox    outboxEmitter
	tx        txRunner
	logg      *logger.Logger
}

// NewService validates and wires the confirmation handler.
func NewService(params ServiceParams) (*Service, error) {
	if params.Verifier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "callback verifier required")
	}
	if params.OrdersRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repo required")
	}
	if params.CartRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "cart repo required")
	}
	if params.Inventory == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "inventory service required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox emitter required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		verifier:  params.Verifier,
		orders:    params.OrdersRepo,
		carts:     params.CartRepo,
		inventory: params.Inventory,
		outbox:    params.Outbox,
		tx:        params.TransactionRunner,
		logg:      params.Logger,
	}, nil
}

// HandleCallback verifies the gateway signature and settles the referenced
// order in a single transaction. Replayed callbacks and callbacks for
// unknown orders are acknowledged without side effects so the gateway
// stops retrying.
func (s *Service) HandleCallback(ctx context.Context, query url.Values) (Outcome, error) {
	result, err := s.verifier.VerifyCallback(query)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "vnp_txn_ref", query.Get("vnp_TxnRef")),
			"rejected payment callback with bad signature")
		return "", pkgerrors.Wrap(pkgerrors.CodeSignatureMismatch, err, "invalid payment callback signature")
	}

	ctx = s.logg.WithOrderID(ctx, result.OrderID.String())
	outcome := OutcomeIgnored

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		order, err := repo.FindByID(ctx, result.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.Status != enums.OrderStatusPendingPayment {
			return nil
		}

		if !result.Success() {
			deleted, err := repo.DeleteIfStatus(ctx, order.ID, enums.OrderStatusPendingPayment)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete declined order")
			}
			if !deleted {
				return errAlreadySettled
			}
			outcome = OutcomeDeclined
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderPaymentFailed,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Version:       1,
				Data: payloads.OrderPaymentFailedEvent{
					OrderID:      order.ID,
					UserID:       order.UserID,
					ResponseCode: result.ResponseCode,
					FailedAt:     time.Now().UTC(),
				},
			})
		}

		lines := make([]inventory.Line, 0, len(order.Details))
		for _, detail := range order.Details {
			lines = append(lines, inventory.Line{VariantID: detail.VariantID, Quantity: detail.Quantity})
		}
		// a shortage here fails the confirmation outright; the order stays
		// pending_payment and the reaper removes it later
		if err := s.inventory.Reserve(ctx, tx, lines); err != nil {
			return err
		}

		// the reservation above rolls back with the tx when a racing
		// writer (reaper, duplicate callback) already moved the order
		changed, err := repo.UpdateStatusFrom(ctx, order.ID, enums.OrderStatusPendingPayment, enums.OrderStatusPaid)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order paid")
		}
		if !changed {
			return errAlreadySettled
		}
		if err := s.carts.WithTx(tx).DeleteAllForUser(ctx, order.UserID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
		}

		outcome = OutcomePaid
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Data: payloads.OrderPaidEvent{
				OrderID:       order.ID,
				UserID:        order.UserID,
				TransactionNo: result.TransactionNo,
				AmountCents:   result.AmountCents,
				PaidAt:        time.Now().UTC(),
			},
		})
	})
	if errors.Is(err, errAlreadySettled) {
		return OutcomeIgnored, nil
	}
	if err != nil {
		return "", err
	}

	switch outcome {
	case OutcomePaid:
		s.logg.Info(ctx, "payment confirmed, order marked paid")
	case OutcomeDeclined:
		s.logg.Info(s.logg.WithField(ctx, "response_code", result.ResponseCode),
			"payment declined, order removed")
	}
	return outcome, nil
}
