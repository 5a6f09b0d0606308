package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/ngmtien/velora-backend/pkg/enums"
)

// OrderCreatedEvent signals a newly placed order.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	UserID        uuid.UUID           `json:"user_id"`
	Status        enums.OrderStatus   `json:"status"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	TotalCents    int                 `json:"total_cents"`
	LineCount     int                 `json:"line_count"`
	PlacedAt      time.Time           `json:"placed_at"`
}

// OrderPaidEvent is emitted when the gateway confirms settlement.
type OrderPaidEvent struct {
	OrderID       uuid.UUID `json:"order_id"`
	UserID        uuid.UUID `json:"user_id"`
	TransactionNo string    `json:"transaction_no,omitempty"`
	AmountCents   int       `json:"amount_cents"`
	PaidAt        time.Time `json:"paid_at"`
}

// OrderPaymentFailedEvent records a declined gateway payment. The order
// itself is deleted, so this event is the only durable trace.
type OrderPaymentFailedEvent struct {
	OrderID      uuid.UUID `json:"order_id"`
	UserID       uuid.UUID `json:"user_id"`
	ResponseCode string    `json:"response_code"`
	FailedAt     time.Time `json:"failed_at"`
}

// OrderStatusChangedEvent is emitted for admin and customer transitions.
type OrderStatusChangedEvent struct {
	OrderID    uuid.UUID         `json:"order_id"`
	UserID     uuid.UUID         `json:"user_id"`
	FromStatus enums.OrderStatus `json:"from_status"`
	ToStatus   enums.OrderStatus `json:"to_status"`
	ChangedAt  time.Time         `json:"changed_at"`
	Reason     string            `json:"reason,omitempty"`
}

// OrderExpiredEvent describes a stale pending-payment order removed by
// the reaper.
type OrderExpiredEvent struct {
	OrderID      uuid.UUID `json:"order_id"`
	UserID       uuid.UUID `json:"user_id"`
	PendingSince time.Time `json:"pending_since"`
	ExpiredAt    time.Time `json:"expired_at"`
}
