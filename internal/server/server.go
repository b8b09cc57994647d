package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/splitbook/internal/auth"
	"github.com/dukerupert/splitbook/internal/backup"
	"github.com/dukerupert/splitbook/internal/handler"
	"github.com/dukerupert/splitbook/internal/ledger"
	"github.com/dukerupert/splitbook/internal/metrics"
	"github.com/dukerupert/splitbook/internal/middleware"
	"github.com/dukerupert/splitbook/internal/store"
	ws "github.com/dukerupert/splitbook/internal/websocket"
)

const (
	loginLimit  = 10
	loginWindow = time.Minute
)

type Server struct {
	authH       *handler.AuthHandler
	accountH    *handler.AccountHandler
	friendH     *handler.FriendHandler
	groupH      *handler.GroupHandler
	expenseH    *handler.ExpenseHandler
	importH     *handler.ImportHandler
	aliasH      *handler.AliasHandler
	hub         *ws.Hub
	accounts    *store.AccountStore
	tokens      *auth.TokenManager
	metrics     *metrics.Metrics
	rateLimiter *middleware.RateLimiter
	origins     []string
	backups     *backup.Manager
	logger      *slog.Logger
}

type Options struct {
	// OriginPatterns lists the hosts allowed to open WebSocket connections
	// from a browser, besides the server's own host.
	OriginPatterns []string
	// Backups, when set, runs with the server and reports in /health.
	Backups *backup.Manager
}

func New(st *store.Store, svc *ledger.Service, hub *ws.Hub, tokens *auth.TokenManager, m *metrics.Metrics, opts Options, logger *slog.Logger) *Server {
	return &Server{
		authH:       handler.NewAuthHandler(svc, st.Accounts, tokens, logger.With("component", "auth")),
		accountH:    handler.NewAccountHandler(svc, st.Accounts, logger.With("component", "account")),
		friendH:     handler.NewFriendHandler(svc, logger.With("component", "friend")),
		groupH:      handler.NewGroupHandler(svc, logger.With("component", "group")),
		expenseH:    handler.NewExpenseHandler(svc, logger.With("component", "expense")),
		importH:     handler.NewImportHandler(svc, logger.With("component", "import")),
		aliasH:      handler.NewAliasHandler(svc, logger.With("component", "alias")),
		hub:         hub,
		accounts:    st.Accounts,
		tokens:      tokens,
		metrics:     m,
		rateLimiter: middleware.NewRateLimiter(loginLimit, loginWindow),
		origins:     opts.OriginPatterns,
		backups:     opts.Backups,
		logger:      logger,
	}
}

// RunBackground runs housekeeping until ctx is done.
func (s *Server) RunBackground(ctx context.Context) {
	if s.backups != nil {
		go s.backups.Run(ctx)
	}
	s.rateLimiter.RunCleanup(ctx)
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes
	limit := middleware.RateLimit(s.rateLimiter, middleware.RealIP)
	outerMux.Handle("POST /signup", limit(http.HandlerFunc(s.authH.Signup)))
	outerMux.Handle("POST /login", limit(http.HandlerFunc(s.authH.Login)))
	outerMux.HandleFunc("GET /health", s.healthHandler)
	if s.metrics != nil {
		outerMux.Handle("GET /metrics", s.metrics.Handler())
	}

	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.tokens, s.accounts, s.logger.With("component", "auth"))
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"), s.metrics)(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{"status": "ok"}
	if s.backups != nil && s.backups.Enabled() {
		resp["backup"] = s.backups.Status()
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub, s.origins))

	// Account
	mux.HandleFunc("GET /api/account", s.accountH.Get)
	mux.HandleFunc("PUT /api/account/member-id", s.accountH.SetMemberID)
	mux.HandleFunc("DELETE /api/account", s.accountH.Delete)

	// Friends
	mux.HandleFunc("GET /api/friends", s.friendH.List)
	mux.HandleFunc("POST /api/friends", s.friendH.Create)
	mux.HandleFunc("DELETE /api/friends/{member_id}", s.friendH.DeleteUnlinked)
	mux.HandleFunc("DELETE /api/friends/{member_id}/linked", s.friendH.DeleteLinked)

	// Groups
	mux.HandleFunc("GET /api/groups", s.groupH.List)
	mux.HandleFunc("POST /api/groups", s.groupH.Create)
	mux.HandleFunc("POST /api/groups/clear", s.groupH.Clear)
	mux.HandleFunc("GET /api/groups/{id}", s.groupH.Get)
	mux.HandleFunc("PUT /api/groups/{id}", s.groupH.Update)
	mux.HandleFunc("DELETE /api/groups/{id}", s.groupH.Delete)

	// Expenses
	mux.HandleFunc("GET /api/expenses", s.expenseH.List)
	mux.HandleFunc("POST /api/expenses", s.expenseH.Create)
	mux.HandleFunc("POST /api/expenses/clear", s.expenseH.Clear)
	mux.HandleFunc("GET /api/expenses/{id}", s.expenseH.Get)
	mux.HandleFunc("PUT /api/expenses/{id}", s.expenseH.Update)
	mux.HandleFunc("DELETE /api/expenses/{id}", s.expenseH.Delete)
	mux.HandleFunc("POST /api/expenses/{id}/splits/{member_id}/settle", s.expenseH.Settle)

	// Import and aliases
	mux.HandleFunc("POST /api/import", s.importH.Import)
	mux.HandleFunc("GET /api/aliases", s.aliasH.List)
	mux.HandleFunc("POST /api/aliases/merge", s.aliasH.Merge)
}
