package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/splitbook/internal/ledger"
	"github.com/dukerupert/splitbook/internal/model"
)

type ImportHandler struct {
	ledger *ledger.Service
	logger *slog.Logger
}

func NewImportHandler(l *ledger.Service, logger *slog.Logger) *ImportHandler {
	return &ImportHandler{ledger: l, logger: logger}
}

func (h *ImportHandler) Import(w http.ResponseWriter, r *http.Request) {
	c, ok := caller(w, r)
	if !ok {
		return
	}
	var batch model.ImportBatch
	if !decodeJSON(w, r, &batch) {
		return
	}
	if batch.AccountEmail == "" {
		batch.AccountEmail = queryAccountEmail(r)
	}
	res, err := h.ledger.ImportBatch(r.Context(), c, batch)
	if err != nil {
		writeError(w, r, h.logger, "import", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
