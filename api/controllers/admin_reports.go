package controllers

import (
	"net/http"
	"time"

	"github.com/ngmtien/velora-backend/api/responses"
	"github.com/ngmtien/velora-backend/api/validators"
	"github.com/ngmtien/velora-backend/internal/reports"
	pkgerrors "github.com/ngmtien/velora-backend/pkg/errors"
	"github.com/ngmtien/velora-backend/pkg/logger"
)

// AdminSalesSummary reports revenue over ?from= / ?to= (RFC 3339) with an
// optional ?top= limit for the best-seller list.
func AdminSalesSummary(svc reports.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input reports.SummaryInput

		query := r.URL.Query()
		if raw := query.Get("from"); raw != "" {
			from, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid from timestamp"))
				return
			}
			input.From = from
		}
		if raw := query.Get("to"); raw != "" {
			to, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid to timestamp"))
				return
			}
			input.To = to
		}
		top, err := validators.ParseQueryInt(r, "top", 0, 0, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input.TopLimit = top

		summary, err := svc.SalesSummary(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}
