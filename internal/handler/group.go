package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/splitbook/internal/ledger"
	"github.com/dukerupert/splitbook/internal/model"
)

type GroupHandler struct {
	ledger *ledger.Service
	logger *slog.Logger
}

func NewGroupHandler(l *ledger.Service, logger *slog.Logger) *GroupHandler {
	return &GroupHandler{ledger: l, logger: logger}
}

func (h *GroupHandler) List(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	groups, err := h.ledger.ListGroups(r.Context(), c)
	if err != nil {
		writeError(w, r, h.logger, "list groups", err)
		return
	}
	if groups == nil {
		groups = []model.Group{}
	}
	writeJSON(w, http.StatusOK, groups)
}

func (h *GroupHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	g, err := h.ledger.GetGroup(r.Context(), c, r.PathValue("id"))
	if err != nil {
		writeError(w, r, h.logger, "get group", err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (h *GroupHandler) Create(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	var req model.GroupInput
	if !decodeJSON(w, r, &req) {
		return
	}
	g, err := h.ledger.CreateGroup(r.Context(), c, req)
	if err != nil {
		writeError(w, r, h.logger, "create group", err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

func (h *GroupHandler) Update(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	var req model.GroupInput
	if !decodeJSON(w, r, &req) {
		return
	}
	g, err := h.ledger.UpdateGroup(r.Context(), c, r.PathValue("id"), req)
	if err != nil {
		writeError(w, r, h.logger, "update group", err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (h *GroupHandler) Delete(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	n, err := h.ledger.DeleteGroup(r.Context(), c, r.PathValue("id"))
	if err != nil {
		writeError(w, r, h.logger, "delete group", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "expenses_deleted": n})
}

// Clear deletes the caller's groups and leaves the ones they belong to.
func (h *GroupHandler) Clear(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	res, err := h.ledger.ClearGroupsForUser(r.Context(), c)
	if err != nil {
		writeError(w, r, h.logger, "clear groups", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
