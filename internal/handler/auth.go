package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dukerupert/splitbook/internal/auth"
	"github.com/dukerupert/splitbook/internal/ledger"
	"github.com/dukerupert/splitbook/internal/model"
)

// AccountFinder looks up accounts for login and the account endpoint.
type AccountFinder interface {
	GetByID(ctx context.Context, id string) (*model.Account, error)
	GetByEmail(ctx context.Context, email string) (*model.Account, error)
}

type AuthHandler struct {
	ledger   *ledger.Service
	accounts AccountFinder
	tokens   *auth.TokenManager
	logger   *slog.Logger
}

func NewAuthHandler(l *ledger.Service, accounts AccountFinder, tokens *auth.TokenManager, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{ledger: l, accounts: accounts, tokens: tokens, logger: logger}
}

type signupRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	MemberID string `json:"member_id"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token   string         `json:"token"`
	Account *model.Account `json:"account"`
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, r, h.logger, "signup", err)
		return
	}
	account, err := h.ledger.Register(r.Context(), req.Email, req.Name, req.MemberID, hash)
	if err != nil {
		writeError(w, r, h.logger, "signup", err)
		return
	}
	h.issue(w, r, http.StatusCreated, account)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	account, err := h.accounts.GetByEmail(r.Context(), req.Email)
	if err != nil {
		writeError(w, r, h.logger, "login", err)
		return
	}
	hash := ""
	if account != nil {
		hash = account.PasswordHash
	}
	if err := auth.CheckPassword(hash, req.Password); err != nil {
		h.logger.InfoContext(r.Context(), "login rejected")
		writeMessage(w, http.StatusUnauthorized, err.Error())
		return
	}
	h.issue(w, r, http.StatusOK, account)
}

func (h *AuthHandler) issue(w http.ResponseWriter, r *http.Request, status int, account *model.Account) {
	token, err := h.tokens.Generate(account.ID)
	if err != nil {
		writeError(w, r, h.logger, "issue token", err)
		return
	}
	writeJSON(w, status, tokenResponse{Token: token, Account: account})
}
