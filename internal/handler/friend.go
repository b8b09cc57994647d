package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/splitbook/internal/ledger"
	"github.com/dukerupert/splitbook/internal/model"
)

type FriendHandler struct {
	ledger *ledger.Service
	logger *slog.Logger
}

func NewFriendHandler(l *ledger.Service, logger *slog.Logger) *FriendHandler {
	return &FriendHandler{ledger: l, logger: logger}
}

func (h *FriendHandler) List(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	friends, err := h.ledger.ListFriends(r.Context(), c)
	if err != nil {
		writeError(w, r, h.logger, "list friends", err)
		return
	}
	if friends == nil {
		friends = []model.Friend{}
	}
	writeJSON(w, http.StatusOK, friends)
}

func (h *FriendHandler) Create(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	var req model.FriendInput
	if !decodeJSON(w, r, &req) {
		return
	}
	f, err := h.ledger.AddFriend(r.Context(), c, req)
	if err != nil {
		writeError(w, r, h.logger, "add friend", err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

// DeleteLinked removes a linked friend together with every direct group and
// expense the two accounts share.
func (h *FriendHandler) DeleteLinked(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	claimed, ok := accountEmail(w, r)
	if !ok {
		return
	}
	res, err := h.ledger.DeleteLinkedFriend(r.Context(), c, r.PathValue("member_id"), claimed)
	if err != nil {
		writeError(w, r, h.logger, "delete linked friend", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *FriendHandler) DeleteUnlinked(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	claimed, ok := accountEmail(w, r)
	if !ok {
		return
	}
	res, err := h.ledger.DeleteUnlinkedFriend(r.Context(), c, r.PathValue("member_id"), claimed)
	if err != nil {
		writeError(w, r, h.logger, "delete unlinked friend", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
