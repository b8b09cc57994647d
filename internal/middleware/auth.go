package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/splitbook/internal/auth"
	"github.com/dukerupert/splitbook/internal/model"
)

// AccountLoader loads the account a verified token points at.
type AccountLoader interface {
	GetByID(ctx context.Context, id string) (*model.Account, error)
}

// RequireAuth validates the bearer token, loads the account, and populates
// the request context with the caller. WebSocket upgrades can't set
// headers from the browser, so the token is also accepted as ?token=.
func RequireAuth(tokens *auth.TokenManager, accounts AccountLoader, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				unauthorized(w, auth.ErrMissingToken)
				return
			}

			claims, err := tokens.Validate(raw)
			if err != nil {
				unauthorized(w, auth.ErrInvalidToken)
				return
			}

			account, err := accounts.GetByID(r.Context(), claims.AccountID)
			if err != nil {
				logger.Error("load account for token", "account_id", claims.AccountID, "error", err)
				writeError(w, http.StatusInternalServerError, "internal error")
				return
			}
			if account == nil {
				unauthorized(w, auth.ErrInvalidToken)
				return
			}

			caller := auth.Caller{
				AccountID:      account.ID,
				Email:          account.Email,
				MemberID:       account.MemberID,
				AliasMemberIDs: account.AliasMemberIDs,
			}
			next.ServeHTTP(w, r.WithContext(auth.WithCaller(r.Context(), caller)))
		})
	}
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return ""
		}
		return strings.TrimSpace(token)
	}
	return r.URL.Query().Get("token")
}

func unauthorized(w http.ResponseWriter, err error) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="splitbook"`)
	writeError(w, http.StatusUnauthorized, err.Error())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
