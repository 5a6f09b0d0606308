package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/ngmtien/velora-backend/internal/orders"
	"github.com/ngmtien/velora-backend/pkg/db/models"
	"github.com/ngmtien/velora-backend/pkg/enums"
	"github.com/ngmtien/velora-backend/pkg/logger"
	"github.com/ngmtien/velora-backend/pkg/outbox"
	"github.com/ngmtien/velora-backend/pkg/outbox/payloads"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

const (
	defaultPendingPaymentTTL = 30 * time.Minute
	reaperBatchSize          = 100
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// AbandonedOrdersJobParams configure the pending-payment reaper.
type AbandonedOrdersJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	OrdersRepo orders.Repository
	Outbox     outboxEmitter
	TTL        time.Duration
}

// NewAbandonedOrdersJob builds the job that removes gateway orders whose
// payment never arrived. Those orders hold no stock, so deleting them
// moves no inventory.
func NewAbandonedOrdersJob(params AbandonedOrdersJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.OrdersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultPendingPaymentTTL
	}
	return &abandonedOrdersJob{
		logg:   params.Logger,
		db:     params.DB,
		orders: params.OrdersRepo,
		outbox: params.Outbox,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

type abandonedOrdersJob struct {
	logg   *logger.Logger
	db     txRunner
	orders orders.Repository
	outbox outboxEmitter
	ttl    time.Duration
	now    func() time.Time
}

func (j *abandonedOrdersJob) Name() string { return "abandoned-orders" }

func (j *abandonedOrdersJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	stale, err := j.orders.FindStalePendingPayment(ctx, cutoff, reaperBatchSize)
	if err != nil {
		return fmt.Errorf("query stale pending-payment orders: %w", err)
	}

	reaped := 0
	var errs []error
	for _, order := range stale {
		if err := j.reapOrder(ctx, order); err != nil {
			errs = append(errs, fmt.Errorf("reap order %s: %w", order.ID, err))
			continue
		}
		reaped++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff": cutoff,
		"found":  len(stale),
		"reaped": reaped,
	})
	j.logg.Info(logCtx, "abandoned order sweep complete")
	return multierr.Combine(errs...)
}

// reapOrder deletes inside its own transaction with a status guard: a
// payment confirmation may have raced the sweep between query and
// delete, and whoever commits first wins.
func (j *abandonedOrdersJob) reapOrder(ctx context.Context, order models.Order) error {
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		deleted, err := j.orders.WithTx(tx).DeleteIfStatus(ctx, order.ID, enums.OrderStatusPendingPayment)
		if err != nil {
			return err
		}
		if !deleted {
			// paid or already removed in the meantime
			return nil
		}

		now := j.now().UTC()
		return j.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderExpired,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			OccurredAt:    now,
			Data: payloads.OrderExpiredEvent{
				OrderID:      order.ID,
				UserID:       order.UserID,
				PendingSince: order.PlacedAt,
				ExpiredAt:    now,
			},
		})
	})
}
