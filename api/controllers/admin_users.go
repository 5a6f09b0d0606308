package controllers

import (
	"net/http"

	"github.com/ngmtien/velora-backend/api/responses"
	"github.com/ngmtien/velora-backend/internal/users"
	"github.com/ngmtien/velora-backend/pkg/logger"
)

func AdminUsersList(svc users.AdminService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := svc.ListCustomers(r.Context(), paginationParams(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func AdminUserSetLocked(svc users.AdminService, logg *logger.Logger, locked bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actorID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		userID, err := parseUUIDParam(r, "userId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.SetLocked(r.Context(), actorID, userID, locked); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		state := "unlocked"
		if locked {
			state = "locked"
		}
		responses.WriteSuccess(w, map[string]string{"status": state})
	}
}
