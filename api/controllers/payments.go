package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/ngmtien/velora-backend/api/responses"
	vnpaywebhook "github.com/ngmtien/velora-backend/internal/webhooks/vnpay"
	pkgerrors "github.com/ngmtien/velora-backend/pkg/errors"
	"github.com/ngmtien/velora-backend/pkg/logger"
)

// vnpayIPNResponse is the acknowledgement shape VNPay expects. Anything
// other than RspCode "00" makes the gateway retry the IPN.
type vnpayIPNResponse struct {
	RspCode string `json:"RspCode"`
	Message string `json:"Message"`
}

// VNPayReturn handles the browser redirect after the customer leaves the
// gateway. It runs the same confirmation as the IPN so the customer sees
// the settled state even when the IPN is delayed.
func VNPayReturn(svc *vnpaywebhook.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		outcome, err := svc.HandleCallback(r.Context(), r.URL.Query())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"outcome": string(outcome)})
	}
}

// VNPayIPN handles the server-to-server confirmation. The gateway keys its
// retry behavior off RspCode, so every path answers 200 with the code it
// expects: settled and declined callbacks ack with "00", replays and
// unknown orders with "02", bad signatures with "97".
func VNPayIPN(svc *vnpaywebhook.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		outcome, err := svc.HandleCallback(r.Context(), r.URL.Query())

		resp := vnpayIPNResponse{RspCode: "00", Message: "Confirm Success"}
		switch {
		case err != nil && hasCode(err, pkgerrors.CodeSignatureMismatch):
			resp = vnpayIPNResponse{RspCode: "97", Message: "Invalid Signature"}
		case err != nil:
			logg.Error(r.Context(), "payment confirmation failed", err)
			resp = vnpayIPNResponse{RspCode: "99", Message: "Unknown Error"}
		case outcome == vnpaywebhook.OutcomeIgnored:
			resp = vnpayIPNResponse{RspCode: "02", Message: "Order Already Confirmed"}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func hasCode(err error, code pkgerrors.Code) bool {
	typed := pkgerrors.As(err)
	return typed != nil && typed.Code() == code
}
