package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ngmtien/velora-backend/internal/inventory"
	"github.com/ngmtien/velora-backend/pkg/db/models"
	"github.com/ngmtien/velora-backend/pkg/enums"
	pkgerrors "github.com/ngmtien/velora-backend/pkg/errors"
	"github.com/ngmtien/velora-backend/pkg/outbox"
	"github.com/ngmtien/velora-backend/pkg/outbox/payloads"
	"github.com/ngmtien/velora-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type inventoryMover interface {
	Reserve(ctx context.Context, tx *gorm.DB, lines []inventory.Line) error
	Release(ctx context.Context, tx *gorm.DB, lines []inventory.Line) error
}

// Page is one cursor-paginated slice of orders.
type Page struct {
	Orders     []models.Order
	NextCursor string
}

// AdminUpdateStatusInput carries an admin-initiated status transition.
type AdminUpdateStatusInput struct {
	OrderID     uuid.UUID
	NewStatus   enums.OrderStatus
	ActorUserID uuid.UUID
	Reason      string
}

// Service exposes order reads and lifecycle transitions.
type Service interface {
	GetOwn(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)
	ListOwn(ctx context.Context, userID uuid.UUID, params pagination.Params) (*Page, error)
	ListAdmin(ctx context.Context, status *enums.OrderStatus, params pagination.Params) (*Page, error)
	CancelOwn(ctx context.Context, userID, orderID uuid.UUID) error
	AdminUpdateStatus(ctx context.Context, input AdminUpdateStatusInput) error
}

type service struct {
	repo      Repository
	tx        txRunner
	outbox    outboxEmitter
	inventory inventoryMover
}

// NewService builds an order service with the required dependencies.
func NewService(repo Repository, tx txRunner, outbox outboxEmitter, inventory inventoryMover) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if inventory == nil {
		return nil, fmt.Errorf("inventory service required")
	}
	return &service{repo: repo, tx: tx, outbox: outbox, inventory: inventory}, nil
}

func (s *service) GetOwn(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	// other customers' orders look like missing orders
	if order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) ListOwn(ctx context.Context, userID uuid.UUID, params pagination.Params) (*Page, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	orders, err := s.repo.ListByUser(ctx, userID, cursor, limit+1)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return buildPage(orders, limit), nil
}

func (s *service) ListAdmin(ctx context.Context, status *enums.OrderStatus, params pagination.Params) (*Page, error) {
	if status != nil && !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	orders, err := s.repo.List(ctx, status, cursor, limit+1)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return buildPage(orders, limit), nil
}

// CancelOwn lets the owner cancel an order that has not shipped into a
// terminal state yet. A pending order holds reserved stock, so the cancel
// releases every line inside the same transaction.
func (s *service) CancelOwn(ctx context.Context, userID, orderID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.UserID != userID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		if !order.Status.CustomerCancellable() {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("order in status %q cannot be cancelled", order.Status))
		}

		if order.Status.HoldsStock() {
			if err := s.inventory.Release(ctx, tx, linesFromDetails(order.Details)); err != nil {
				return err
			}
		}
		// compare-and-set on the status we read: a racing transition
		// rolls this whole tx back, including the release above
		changed, err := repo.UpdateStatusFrom(ctx, order.ID, order.Status, enums.OrderStatusCancelled)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !changed {
			return pkgerrors.New(pkgerrors.CodeConflict, "order was modified concurrently")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: userID, Role: enums.UserRoleCustomer.String()},
			Data: payloads.OrderStatusChangedEvent{
				OrderID:    order.ID,
				UserID:     order.UserID,
				FromStatus: order.Status,
				ToStatus:   enums.OrderStatusCancelled,
				ChangedAt:  time.Now().UTC(),
				Reason:     "customer_cancelled",
			},
		})
	})
}

// AdminUpdateStatus applies an arbitrary transition within the closed
// status set. Stock moves with the transition: leaving a stock-holding
// status releases the lines, entering one re-reserves them, and a shortage
// aborts the whole transition so the order keeps its old status.
func (s *service) AdminUpdateStatus(ctx context.Context, input AdminUpdateStatusInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.NewStatus.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}
	if input.ActorUserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.Status == input.NewStatus {
			return nil
		}

		lines := linesFromDetails(order.Details)
		switch {
		case order.Status.HoldsStock() && !input.NewStatus.HoldsStock():
			if err := s.inventory.Release(ctx, tx, lines); err != nil {
				return err
			}
		case !order.Status.HoldsStock() && input.NewStatus.HoldsStock():
			if err := s.inventory.Reserve(ctx, tx, lines); err != nil {
				return err
			}
		}

		changed, err := repo.UpdateStatusFrom(ctx, order.ID, order.Status, input.NewStatus)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !changed {
			return pkgerrors.New(pkgerrors.CodeConflict, "order was modified concurrently")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         &outbox.ActorRef{UserID: input.ActorUserID, Role: enums.UserRoleAdmin.String()},
			Data: payloads.OrderStatusChangedEvent{
				OrderID:    order.ID,
				UserID:     order.UserID,
				FromStatus: order.Status,
				ToStatus:   input.NewStatus,
				ChangedAt:  time.Now().UTC(),
				Reason:     input.Reason,
			},
		})
	})
}

func buildPage(orders []models.Order, limit int) *Page {
	page := &Page{Orders: orders}
	if len(orders) > limit {
		page.Orders = orders[:limit]
		last := page.Orders[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.PlacedAt,
			ID:        last.ID,
		})
	}
	return page
}

func linesFromDetails(details []models.OrderDetail) []inventory.Line {
	lines := make([]inventory.Line, 0, len(details))
	for _, detail := range details {
		lines = append(lines, inventory.Line{
			VariantID: detail.VariantID,
			Quantity:  detail.Quantity,
		})
	}
	return lines
}
