package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/splitbook/internal/ledger"
)

type AccountHandler struct {
	ledger   *ledger.Service
	accounts AccountFinder
	logger   *slog.Logger
}

func NewAccountHandler(l *ledger.Service, accounts AccountFinder, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{ledger: l, accounts: accounts, logger: logger}
}

func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	account, err := h.accounts.GetByID(r.Context(), c.AccountID)
	if err != nil {
		writeError(w, r, h.logger, "get account", err)
		return
	}
	if account == nil {
		writeMessage(w, http.StatusNotFound, "account not found")
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (h *AccountHandler) SetMemberID(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	var req struct {
		MemberID string `json:"member_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	account, err := h.ledger.SetMemberID(r.Context(), c, req.MemberID)
	if err != nil {
		writeError(w, r, h.logger, "set member id", err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// Delete removes the caller's account and everything it owns.
func (h *AccountHandler) Delete(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	res, err := h.ledger.SelfDeleteAccount(r.Context(), c)
	if err != nil {
		writeError(w, r, h.logger, "self delete account", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
