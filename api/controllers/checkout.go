package controllers

import (
	"net/http"

	"github.com/ngmtien/velora-backend/api/responses"
	"github.com/ngmtien/velora-backend/api/validators"
	"github.com/ngmtien/velora-backend/internal/checkout"
	"github.com/ngmtien/velora-backend/pkg/enums"
	pkgerrors "github.com/ngmtien/velora-backend/pkg/errors"
	"github.com/ngmtien/velora-backend/pkg/logger"
)

type checkoutBody struct {
	CustomerName    string `json:"customer_name" validate:"required"`
	CustomerPhone   string `json:"customer_phone" validate:"required"`
	CustomerEmail   string `json:"customer_email" validate:"required,email"`
	ShippingAddress string `json:"shipping_address" validate:"required"`
	PaymentMethod   string `json:"payment_method" validate:"required"`
}

type checkoutResponse struct {
	Order      orderResponse `json:"order"`
	PaymentURL string        `json:"payment_url,omitempty"`
}

func Checkout(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body checkoutBody
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		method, err := enums.ParsePaymentMethod(body.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}

		result, err := svc.Execute(r.Context(), checkout.Input{
			UserID:          userID,
			CustomerName:    validators.SanitizeString(body.CustomerName, 255),
			CustomerPhone:   validators.SanitizeString(body.CustomerPhone, 32),
			CustomerEmail:   validators.SanitizeString(body.CustomerEmail, 255),
			ShippingAddress: validators.SanitizeString(body.ShippingAddress, 1024),
			PaymentMethod:   method,
			ClientIP:        clientIP(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, checkoutResponse{
			Order:      newOrderResponse(result.Order),
			PaymentURL: result.PaymentURL,
		})
	}
}
