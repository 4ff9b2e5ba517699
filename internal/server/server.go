package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/twaplab/hltwap/internal/server/handler"
	"github.com/twaplab/hltwap/internal/server/middleware"
)

// Config holds the HTTP server settings.
type Config struct {
	Host        string
	Port        int
	APIKey      string
	CORSOrigins []string

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Server exposes the read API and operational endpoints.
type Server struct {
	cfg    Config
	http   *http.Server
	logger *slog.Logger
}

// New builds the server and its route table. trigger may be nil when the
// instance runs without an ingestion scheduler.
func New(cfg Config, queries handler.TradeQueries, trigger chan<- struct{}, logger *slog.Logger) *Server {
	logger = logger.With("component", "server")

	health := handler.NewHealthHandler(queries, logger)
	trades := handler.NewTradeHandler(queries, logger)
	twaps := handler.NewTwapHandler(queries, logger)
	status := handler.NewStatusHandler(queries, logger)
	ingest := handler.NewIngestHandler(trigger, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", health.Health)
	mux.HandleFunc("GET /api/v1/trades", trades.List)
	mux.HandleFunc("GET /api/v1/twaps/{id}", twaps.Get)
	mux.HandleFunc("GET /api/v1/wallets/{address}/twaps", twaps.WalletTwaps)
	mux.HandleFunc("GET /api/v1/status", status.Get)
	mux.HandleFunc("POST /api/v1/ingest/trigger", ingest.Trigger)

	var root http.Handler = mux
	root = middleware.Auth(cfg.APIKey, "/api/health")(root)
	root = middleware.Logging(logger)(root)
	root = corsMiddleware(cfg.CORSOrigins)(root)

	readTimeout := cfg.ReadTimeout
	if readTimeout == 0 {
		readTimeout = 15 * time.Second
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout == 0 {
		writeTimeout = 30 * time.Second
	}

	return &Server{
		cfg: cfg,
		http: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:      root,
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
		},
		logger: logger,
	}
}

// Start serves until the listener fails or Shutdown is called. It returns
// nil on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests, bounded by the configured timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	timeout := s.cfg.ShutdownTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	s.logger.Info("http server shutting down")
	return s.http.Shutdown(ctx)
}

// corsMiddleware allows the configured origins, or any origin when none are
// configured.
func corsMiddleware(origins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			switch {
			case len(allowed) == 0:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			default:
				if _, ok := allowed[origin]; ok {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Vary", "Origin")
				}
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-API-Key")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
