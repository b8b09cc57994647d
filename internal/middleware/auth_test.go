package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/splitbook/internal/auth"
	"github.com/dukerupert/splitbook/internal/model"
)

type accountMap map[string]*model.Account

func (m accountMap) GetByID(_ context.Context, id string) (*model.Account, error) {
	if id == "broken" {
		return nil, errors.New("disk on fire")
	}
	return m[id], nil
}

func setupAuth(t *testing.T) (*auth.TokenManager, http.Handler, *auth.Caller) {
	t.Helper()
	tokens := auth.NewTokenManager("test-secret", time.Hour)
	accounts := accountMap{
		"acct-1": {ID: "acct-1", Email: "ann@example.com", MemberID: "ann", AliasMemberIDs: []string{"ann-old"}},
	}
	var seen auth.Caller
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := RequireAuth(tokens, accounts, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := auth.FromContext(r.Context())
		require.True(t, ok)
		seen = c
		w.WriteHeader(http.StatusNoContent)
	}))
	return tokens, h, &seen
}

func TestRequireAuthValidToken(t *testing.T) {
	tokens, h, seen := setupAuth(t)
	token, err := tokens.Generate("acct-1")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/friends", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, auth.Caller{
		AccountID:      "acct-1",
		Email:          "ann@example.com",
		MemberID:       "ann",
		AliasMemberIDs: []string{"ann-old"},
	}, *seen)
}

func TestRequireAuthQueryToken(t *testing.T) {
	tokens, h, seen := setupAuth(t)
	token, err := tokens.Generate("acct-1")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "acct-1", seen.AccountID)
}

func TestRequireAuthRejects(t *testing.T) {
	tokens, h, _ := setupAuth(t)
	unknown, err := tokens.Generate("acct-gone")
	require.NoError(t, err)
	foreign, err := auth.NewTokenManager("other-secret", time.Hour).Generate("acct-1")
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"wrong scheme", "Basic abc"},
		{"garbage", "Bearer not-a-jwt"},
		{"wrong secret", "Bearer " + foreign},
		{"deleted account", "Bearer " + unknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/friends", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
		})
	}
}

func TestRequireAuthLoadError(t *testing.T) {
	tokens, h, _ := setupAuth(t)
	token, err := tokens.Generate("broken")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
