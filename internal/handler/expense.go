package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/splitbook/internal/ledger"
	"github.com/dukerupert/splitbook/internal/model"
)

type ExpenseHandler struct {
	ledger *ledger.Service
	logger *slog.Logger
}

func NewExpenseHandler(l *ledger.Service, logger *slog.Logger) *ExpenseHandler {
	return &ExpenseHandler{ledger: l, logger: logger}
}

func (h *ExpenseHandler) List(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	expenses, err := h.ledger.ListExpenses(r.Context(), c)
	if err != nil {
		writeError(w, r, h.logger, "list expenses", err)
		return
	}
	if expenses == nil {
		expenses = []model.Expense{}
	}
	writeJSON(w, http.StatusOK, expenses)
}

func (h *ExpenseHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	e, err := h.ledger.GetExpense(r.Context(), c, r.PathValue("id"))
	if err != nil {
		writeError(w, r, h.logger, "get expense", err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *ExpenseHandler) Create(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	var req model.ExpenseInput
	if !decodeJSON(w, r, &req) {
		return
	}
	e, err := h.ledger.CreateExpense(r.Context(), c, req)
	if err != nil {
		writeError(w, r, h.logger, "create expense", err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (h *ExpenseHandler) Update(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	var patch ledger.ExpensePatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	e, err := h.ledger.UpdateExpense(r.Context(), c, r.PathValue("id"), patch)
	if err != nil {
		writeError(w, r, h.logger, "update expense", err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *ExpenseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	if err := h.ledger.DeleteExpense(r.Context(), c, r.PathValue("id")); err != nil {
		writeError(w, r, h.logger, "delete expense", err)
		return
	}
	writeJSON(w, http.StatusOK, ledger.Result{Success: true})
}

func (h *ExpenseHandler) Clear(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	res, err := h.ledger.ClearExpensesForUser(r.Context(), c)
	if err != nil {
		writeError(w, r, h.logger, "clear expenses", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type settleRequest struct {
	Settled *bool `json:"settled"`
}

// Settle marks one split settled. Without a body the split is settled;
// {"settled": false} reopens it.
func (h *ExpenseHandler) Settle(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	var req settleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	settled := req.Settled == nil || *req.Settled
	e, err := h.ledger.SettleSplit(r.Context(), c, r.PathValue("id"), r.PathValue("member_id"), settled)
	if err != nil {
		writeError(w, r, h.logger, "settle split", err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}
