package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/ngmtien/velora-backend/api/responses"
	"github.com/ngmtien/velora-backend/internal/orders"
	"github.com/ngmtien/velora-backend/pkg/db/models"
	"github.com/ngmtien/velora-backend/pkg/logger"
	"github.com/ngmtien/velora-backend/pkg/pagination"
)

type orderLineResponse struct {
	VariantID      uuid.UUID `json:"variant_id"`
	VariantName    string    `json:"variant_name,omitempty"`
	SKU            string    `json:"sku,omitempty"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int       `json:"unit_price_cents"`
	TotalCents     int       `json:"total_cents"`
}

type orderResponse struct {
	ID              uuid.UUID           `json:"id"`
	Status          string              `json:"status"`
	PaymentMethod   string              `json:"payment_method"`
	CustomerName    string              `json:"customer_name"`
	CustomerPhone   string              `json:"customer_phone"`
	CustomerEmail   string              `json:"customer_email"`
	ShippingAddress string              `json:"shipping_address"`
	TotalCents      int                 `json:"total_cents"`
	PlacedAt        time.Time           `json:"placed_at"`
	Items           []orderLineResponse `json:"items"`
}

type orderPageResponse struct {
	Orders     []orderResponse `json:"orders"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

func newOrderResponse(order *models.Order) orderResponse {
	items := make([]orderLineResponse, 0, len(order.Details))
	for _, detail := range order.Details {
		line := orderLineResponse{
			VariantID:      detail.VariantID,
			Quantity:       detail.Quantity,
			UnitPriceCents: detail.UnitPriceCents,
			TotalCents:     detail.TotalCents,
		}
		if detail.Variant != nil {
			line.VariantName = detail.Variant.Name
			line.SKU = detail.Variant.SKU
		}
		items = append(items, line)
	}
	return orderResponse{
		ID:              order.ID,
		Status:          order.Status.String(),
		PaymentMethod:   order.PaymentMethod.String(),
		CustomerName:    order.CustomerName,
		CustomerPhone:   order.CustomerPhone,
		CustomerEmail:   order.CustomerEmail,
		ShippingAddress: order.ShippingAddress,
		TotalCents:      order.TotalCents,
		PlacedAt:        order.PlacedAt,
		Items:           items,
	}
}

func newOrderPageResponse(page *orders.Page) orderPageResponse {
	out := orderPageResponse{
		Orders:     make([]orderResponse, 0, len(page.Orders)),
		NextCursor: page.NextCursor,
	}
	for i := range page.Orders {
		out.Orders = append(out.Orders, newOrderResponse(&page.Orders[i]))
	}
	return out
}

func paginationParams(r *http.Request) pagination.Params {
	params := pagination.Params{Cursor: r.URL.Query().Get("cursor")}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil {
			params.Limit = limit
		}
	}
	return params
}

func OrdersList(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.ListOwn(r.Context(), userID, paginationParams(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderPageResponse(page))
	}
}

func OrderGet(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := parseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.GetOwn(r.Context(), userID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

func OrderCancel(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := parseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.CancelOwn(r.Context(), userID, orderID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "cancelled"})
	}
}
