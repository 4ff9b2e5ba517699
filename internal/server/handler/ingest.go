package handler

import (
	"log/slog"
	"net/http"
)

// IngestHandler lets operators kick off an out-of-schedule ingestion run.
// The trigger channel is drained by the scheduler; a full buffer means a run
// is already pending.
type IngestHandler struct {
	trigger chan<- struct{}
	logger  *slog.Logger
}

func NewIngestHandler(trigger chan<- struct{}, logger *slog.Logger) *IngestHandler {
	return &IngestHandler{trigger: trigger, logger: logger.With("component", "ingest_handler")}
}

// Trigger handles POST /api/v1/ingest/trigger.
func (h *IngestHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	if h.trigger == nil {
		writeError(w, http.StatusServiceUnavailable, "ingestion is not enabled on this instance")
		return
	}

	select {
	case h.trigger <- struct{}{}:
		h.logger.Info("manual ingestion run requested")
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "triggered"})
	default:
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "already_pending"})
	}
}
