package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/plated-app/plated-api/internal/domain"
)

// ActiveChecker fails with domain.ErrForbidden for disabled accounts.
type ActiveChecker interface {
	CheckActive(ctx context.Context, userID string) error
}

// RequireActive rejects callers whose profile was disabled, for example by
// the verification expiry sweep. It must run after Auth.
func RequireActive(checker ActiveChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			err := checker.CheckActive(r.Context(), claims.UserID)
			switch {
			case err == nil:
				next.ServeHTTP(w, r)
			case errors.Is(err, domain.ErrForbidden):
				writeJSONError(w, http.StatusForbidden, "account disabled")
			default:
				slog.Error("check account active", "user_id", claims.UserID, "err", err)
				writeJSONError(w, http.StatusInternalServerError, "internal server error")
			}
		})
	}
}
