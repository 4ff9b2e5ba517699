package handler

import (
	"log/slog"
	"net/http"
	"time"
)

// StatusHandler reports ingestion progress.
type StatusHandler struct {
	queries TradeQueries
	logger  *slog.Logger
}

func NewStatusHandler(queries TradeQueries, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{queries: queries, logger: logger.With("component", "status_handler")}
}

// Get handles GET /api/v1/status.
func (h *StatusHandler) Get(w http.ResponseWriter, r *http.Request) {
	st, err := h.queries.IngestionStatus(r.Context())
	if err != nil {
		h.logger.Error("ingestion status failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load ingestion status")
		return
	}

	resp := map[string]any{
		"status":        st.Status,
		"total_records": st.TotalRecords,
	}
	if st.LastIngestion != nil {
		resp["last_ingestion"] = st.LastIngestion.UTC().Format(time.RFC3339)
	} else {
		resp["last_ingestion"] = nil
	}
	if st.LastError != "" {
		resp["last_error"] = st.LastError
	}

	writeJSON(w, http.StatusOK, resp)
}
