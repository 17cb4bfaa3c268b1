package middleware

import (
	"net/http"

	"github.com/kicksnairobi/footwear-backend/api/responses"
	pkgerrors "github.com/kicksnairobi/footwear-backend/pkg/errors"
	"github.com/kicksnairobi/footwear-backend/pkg/logger"
)

// RequireStaff admits staff and admin callers. Counter operations such as
// issuing invoices, collecting cash and writing receipts sit behind it.
func RequireStaff(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if role := RoleFromContext(r.Context()); !role.IsStaff() {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "staff role required").
					WithDetails(map[string]any{"role": role}))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
