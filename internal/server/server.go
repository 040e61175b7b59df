// Package server is the JSON HTTP and WebSocket surface of the answer
// market.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/answermarket/internal/domain"
	"github.com/alanyoungcy/answermarket/internal/server/handler"
	"github.com/alanyoungcy/answermarket/internal/server/middleware"
	"github.com/alanyoungcy/answermarket/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // plain key; empty together with APIKeyHash disables auth
	APIKeyHash  string // bcrypt hash of the key
	RateLimit   int    // requests per RateWindow per client, 0 disables
	RateWindow  time.Duration
	Mode        string
}

// Deps are the collaborators the server wires into routes and middleware.
// Limiter, Metrics, Observer and Hub may be nil.
type Deps struct {
	Service  handler.MarketService
	Limiter  domain.RateLimiter
	Metrics  http.Handler
	Observer middleware.Observer
	Hub      *ws.Hub
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers every route and builds the middleware chain.
func NewServer(cfg Config, deps Deps, logger *slog.Logger) *Server {
	logger = logger.With(slog.String("component", "server"))
	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      NewHandler(cfg, deps, logger),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// NewHandler returns the routed, middleware-wrapped handler.
func NewHandler(cfg Config, deps Deps, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	health := handler.NewHealthHandler(deps.Service, logger)
	status := handler.NewStatusHandler(deps.Service, cfg.Mode, time.Now())
	questions := handler.NewQuestionHandler(deps.Service, logger)
	answers := handler.NewAnswerHandler(deps.Service, logger)
	accounts := handler.NewAccountHandler(deps.Service, logger)
	admin := handler.NewAdminHandler(deps.Service, logger)

	mux.HandleFunc("GET /api/health", health.HealthCheck)
	mux.HandleFunc("GET /api/status", status.GetStatus)

	// Questions.
	mux.HandleFunc("GET /api/questions", questions.ListQuestions)
	mux.HandleFunc("POST /api/questions", questions.CreateQuestion)
	mux.HandleFunc("POST /api/questions/with-answer", questions.CreateQuestionWithAnswer)
	mux.HandleFunc("GET /api/questions/{id}", questions.GetQuestion)
	mux.HandleFunc("GET /api/questions/{id}/answers", questions.ListAnswers)
	mux.HandleFunc("GET /api/questions/{id}/limit", questions.AnswerLimit)
	mux.HandleFunc("POST /api/questions/{id}/answers", questions.ProposeAnswer)
	mux.HandleFunc("POST /api/questions/{id}/owner", questions.TransferOwnership)

	// Answers and trading.
	mux.HandleFunc("GET /api/answers/{id}", answers.GetAnswer)
	mux.HandleFunc("POST /api/answers/{id}/buy", answers.Buy)
	mux.HandleFunc("POST /api/answers/{id}/sell", answers.Sell)
	mux.HandleFunc("GET /api/answers/{id}/quote/buy", answers.QuoteBuy)
	mux.HandleFunc("GET /api/answers/{id}/quote/sell", answers.QuoteSell)
	mux.HandleFunc("POST /api/answers/{id}/claim-king-fees", answers.ClaimKingFees)
	mux.HandleFunc("GET /api/answers/{id}/trades", answers.ListTrades)

	// Accounts and history.
	mux.HandleFunc("GET /api/accounts/{address}", accounts.GetAccount)
	mux.HandleFunc("POST /api/accounts/withdraw", accounts.Withdraw)
	mux.HandleFunc("POST /api/fees/claim", accounts.ClaimCreatorFees)
	mux.HandleFunc("GET /api/events", accounts.ListEvents)

	// Admin.
	mux.HandleFunc("GET /api/admin/params", admin.GetParams)
	mux.HandleFunc("PUT /api/admin/params/{name}", admin.SetParam)
	mux.HandleFunc("POST /api/admin/pause", admin.Pause)
	mux.HandleFunc("POST /api/admin/unpause", admin.Unpause)
	mux.HandleFunc("POST /api/admin/roles/grant", admin.GrantRole)
	mux.HandleFunc("POST /api/admin/roles/revoke", admin.RevokeRole)
	mux.HandleFunc("POST /api/admin/treasury", admin.SetTreasury)
	mux.HandleFunc("POST /api/admin/deposit", admin.Deposit)
	mux.HandleFunc("GET /api/admin/audit", admin.AuditLog)

	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics)
	}
	if deps.Hub != nil {
		mux.HandleFunc("GET /ws", deps.Hub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey, cfg.APIKeyHash)(h)
	if cfg.RateLimit > 0 && deps.Limiter != nil {
		window := cfg.RateWindow
		if window <= 0 {
			window = time.Minute
		}
		h = middleware.RateLimit(deps.Limiter, cfg.RateLimit, window, logger)(h)
	}
	h = middleware.Logging(logger, deps.Observer)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	return h
}

// Start listens until the server fails or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
