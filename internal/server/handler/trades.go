package handler

import (
	"log/slog"
	"net/http"

	"github.com/twaplab/hltwap/internal/domain"
)

// TradeHandler serves filtered trade listings.
type TradeHandler struct {
	queries TradeQueries
	logger  *slog.Logger
}

func NewTradeHandler(queries TradeQueries, logger *slog.Logger) *TradeHandler {
	return &TradeHandler{queries: queries, logger: logger.With("component", "trade_handler")}
}

// List handles GET /api/v1/trades. Supported query parameters:
// wallet_addresses (comma separated), asset, twap_id, start_date, end_date,
// limit, offset.
func (h *TradeHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	since, ok := parseTimeParam(r, "start_date")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid start_date, expected RFC3339")
		return
	}
	until, ok := parseTimeParam(r, "end_date")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid end_date, expected RFC3339")
		return
	}

	limit, offset := parsePagination(r)

	filter := domain.TradeFilter{
		Wallets: splitCSV(q.Get("wallet_addresses")),
		Asset:   q.Get("asset"),
		TwapID:  q.Get("twap_id"),
		Since:   since,
		Until:   until,
		Limit:   limit,
		Offset:  offset,
	}

	trades, err := h.queries.ListTrades(r.Context(), filter)
	if err != nil {
		h.logger.Error("list trades failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list trades")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"trades": toTradeResponses(trades),
		"count":  len(trades),
		"limit":  limit,
		"offset": offset,
	})
}
