// Package handler exposes the ledger over HTTP. Every handler reads the
// caller from the request context; nothing about the caller's identity is
// taken from the request body.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/dukerupert/splitbook/internal/auth"
	"github.com/dukerupert/splitbook/internal/guard"
	"github.com/dukerupert/splitbook/internal/ledger"
)

const maxBodyBytes = 8 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// decodeJSON reads the request body into v. An empty body leaves v as is.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	writeMessage(w, http.StatusBadRequest, "invalid JSON")
	return false
}

// caller returns the authenticated caller. Routes behind RequireAuth always
// have one; the 401 covers handlers mounted without it.
func caller(w http.ResponseWriter, r *http.Request) (auth.Caller, bool) {
	c, ok := auth.FromContext(r.Context())
	if !ok {
		writeMessage(w, http.StatusUnauthorized, auth.ErrMissingToken.Error())
	}
	return c, ok
}

type accountClaim struct {
	AccountEmail string `json:"account_email"`
}

func queryAccountEmail(r *http.Request) string {
	return r.URL.Query().Get("account_email")
}

// accountEmail reads the advisory account_email claim from the query string
// or, when the query has none, from a JSON body.
func accountEmail(w http.ResponseWriter, r *http.Request) (string, bool) {
	if email := queryAccountEmail(r); email != "" {
		return email, true
	}
	var claim accountClaim
	if !decodeJSON(w, r, &claim) {
		return "", false
	}
	return claim.AccountEmail, true
}

// writeError maps ledger errors onto HTTP statuses. Anything unexpected,
// including alias integrity failures, is logged and reported as a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, op string, err error) {
	var invalid *ledger.ValidationError
	switch {
	case errors.As(err, &invalid):
		writeJSON(w, http.StatusBadRequest, invalid)
	case errors.Is(err, guard.ErrForbidden):
		writeMessage(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, guard.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "not found")
	case errors.Is(err, ledger.ErrConflict):
		writeMessage(w, http.StatusConflict, err.Error())
	case errors.Is(err, ledger.ErrMemberIDImmutable):
		writeMessage(w, http.StatusConflict, ledger.ErrMemberIDImmutable.Error())
	case errors.Is(err, auth.ErrWeakPassword):
		writeMessage(w, http.StatusBadRequest, err.Error())
	default:
		logger.ErrorContext(r.Context(), op+" failed", "account_id", auth.AccountID(r.Context()), "error", err)
		writeMessage(w, http.StatusInternalServerError, "internal error")
	}
}
