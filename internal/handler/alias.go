package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/splitbook/internal/ledger"
	"github.com/dukerupert/splitbook/internal/model"
)

type AliasHandler struct {
	ledger *ledger.Service
	logger *slog.Logger
}

func NewAliasHandler(l *ledger.Service, logger *slog.Logger) *AliasHandler {
	return &AliasHandler{ledger: l, logger: logger}
}

func (h *AliasHandler) List(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	aliases, err := h.ledger.ListAliases(r.Context(), c)
	if err != nil {
		writeError(w, r, h.logger, "list aliases", err)
		return
	}
	if aliases == nil {
		aliases = []model.MemberAlias{}
	}
	writeJSON(w, http.StatusOK, aliases)
}

type mergeRequest struct {
	SourceMemberID string `json:"source_member_id"`
	TargetMemberID string `json:"target_member_id"`
	AccountEmail   string `json:"account_email"`
}

func (h *AliasHandler) Merge(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	var req mergeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.AccountEmail == "" {
		req.AccountEmail = queryAccountEmail(r)
	}
	a, err := h.ledger.MergeMemberIDs(r.Context(), c, req.SourceMemberID, req.TargetMemberID, req.AccountEmail)
	if err != nil {
		writeError(w, r, h.logger, "merge member ids", err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}
