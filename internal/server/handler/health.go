package handler

import (
	"log/slog"
	"net/http"
	"time"
)

// HealthHandler reports service liveness and database reachability.
type HealthHandler struct {
	queries TradeQueries
	logger  *slog.Logger
}

func NewHealthHandler(queries TradeQueries, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{queries: queries, logger: logger.With("component", "health_handler")}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	count, err := h.queries.CountTrades(r.Context())
	if err != nil {
		h.logger.Error("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":   "unhealthy",
			"database": "unreachable",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "healthy",
		"database":     "connected",
		"total_trades": count,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
	})
}
