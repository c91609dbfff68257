package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/oddsworks/bigsmall/internal/domain"
	"github.com/oddsworks/bigsmall/internal/server/handler"
	"github.com/oddsworks/bigsmall/internal/server/middleware"
	"github.com/oddsworks/bigsmall/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	AdminToken  string // if empty, admin routes are unauthenticated

	// Per-client request rate limiting; disabled when RateLimit is zero or
	// no limiter is supplied.
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health  *handler.HealthHandler
	Rounds  *handler.RoundHandler
	Bids    *handler.BidHandler
	Admin   *handler.AdminHandler
	Status  *handler.StatusHandler
	Audit   *handler.AuditHandler
	Archive *handler.ArchiveHandler
}

// Server is the HTTP + WebSocket API server for the settlement engine.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (logging, CORS, optional rate limiting) and attaches
// the WebSocket hub. Routes that mutate rounds or the treasury act as the
// authority and sit behind token auth; queries are open.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	adminOnly := middleware.Auth(cfg.AdminToken)
	admin := func(h http.HandlerFunc) http.Handler {
		return adminOnly(h)
	}

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Round lifecycle (authority).
	mux.Handle("POST /api/rounds", admin(handlers.Admin.CreateRound))
	mux.Handle("POST /api/rounds/{id}/equalize", admin(handlers.Admin.Equalize))
	mux.Handle("POST /api/rounds/process", admin(handlers.Admin.Process))

	// Round and bid queries.
	mux.HandleFunc("GET /api/rounds/current", handlers.Rounds.GetCurrent)
	mux.HandleFunc("GET /api/rounds/{id}", handlers.Rounds.GetRound)
	mux.HandleFunc("GET /api/rounds/{id}/bids/{bidId}", handlers.Bids.GetBid)

	// Bid placement.
	mux.HandleFunc("POST /api/rounds/{id}/bids", handlers.Bids.PlaceBid)

	// Aggregates.
	mux.HandleFunc("GET /api/stats", handlers.Status.GetStats)
	mux.HandleFunc("GET /api/balance", handlers.Status.GetBalance)

	// Treasury administration (authority).
	mux.Handle("PUT /api/admin/fee", admin(handlers.Admin.SetFee))
	mux.Handle("POST /api/admin/authority", admin(handlers.Admin.TransferAuthority))
	mux.Handle("POST /api/admin/withdraw", admin(handlers.Admin.Withdraw))

	// Audit log (authority).
	if handlers.Audit != nil {
		mux.Handle("GET /api/audit", admin(handlers.Audit.List))
	}

	// Cold archive browsing (authority).
	if handlers.Archive != nil {
		mux.Handle("GET /api/archive", admin(handlers.Archive.List))
		mux.Handle("GET /api/archive/{key...}", admin(handlers.Archive.Download))
	}

	// WebSocket event feed.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain.
	var h http.Handler = mux

	if limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateWindow)(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
