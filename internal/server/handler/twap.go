package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/twaplab/hltwap/internal/domain"
)

// TwapHandler serves TWAP-order groupings of trades.
type TwapHandler struct {
	queries TradeQueries
	logger  *slog.Logger
}

func NewTwapHandler(queries TradeQueries, logger *slog.Logger) *TwapHandler {
	return &TwapHandler{queries: queries, logger: logger.With("component", "twap_handler")}
}

// Get handles GET /api/v1/twaps/{id}: all fills of one TWAP order plus
// aggregates.
func (h *TwapHandler) Get(w http.ResponseWriter, r *http.Request) {
	twapID := r.PathValue("id")
	if twapID == "" {
		writeError(w, http.StatusBadRequest, "missing twap id")
		return
	}

	group, err := h.queries.TwapGroup(r.Context(), twapID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "twap not found")
			return
		}
		h.logger.Error("twap lookup failed", "twap_id", twapID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load twap")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"twap_id":      group.TwapID,
		"total_trades": group.TotalTrades,
		"total_volume": group.TotalVolume,
		"avg_price":    group.AvgPrice,
		"trades":       toTradeResponses(group.Trades),
	})
}

// WalletTwaps handles GET /api/v1/wallets/{address}/twaps: the distinct TWAP
// order ids a wallet participated in, optionally bounded by since/until.
func (h *TwapHandler) WalletTwaps(w http.ResponseWriter, r *http.Request) {
	wallet := r.PathValue("address")
	if wallet == "" {
		writeError(w, http.StatusBadRequest, "missing wallet address")
		return
	}

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

	ids, err := h.queries.WalletTwapIDs(r.Context(), wallet, since, until)
	if err != nil {
		h.logger.Error("wallet twap lookup failed", "wallet", wallet, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list wallet twaps")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"wallet_address": wallet,
		"twap_ids":       ids,
		"count":          len(ids),
	})
}
