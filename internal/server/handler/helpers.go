package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/twaplab/hltwap/internal/domain"
)

// TradeQueries is the read-side surface the handlers need. Implemented by
// service.TradeService.
type TradeQueries interface {
	ListTrades(ctx context.Context, f domain.TradeFilter) ([]domain.Trade, error)
	TwapGroup(ctx context.Context, twapID string) (domain.TwapGroup, error)
	WalletTwapIDs(ctx context.Context, wallet string, since, until *time.Time) ([]string, error)
	CountTrades(ctx context.Context) (int64, error)
	IngestionStatus(ctx context.Context) (domain.IngestionStatus, error)
}

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a JSON 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"internal server error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// tradeResponse is the wire shape of one trade.
type tradeResponse struct {
	ID            int64   `json:"id"`
	TwapID        string  `json:"twap_id"`
	WalletAddress string  `json:"wallet_address"`
	Timestamp     string  `json:"timestamp"`
	Asset         string  `json:"asset"`
	Quantity      float64 `json:"quantity"`
	Price         float64 `json:"price"`
	Side          string  `json:"side"`
	Fee           float64 `json:"fee"`
	Exchange      string  `json:"exchange"`
}

func toTradeResponse(t domain.Trade) tradeResponse {
	return tradeResponse{
		ID:            t.ID,
		TwapID:        t.TwapID,
		WalletAddress: t.WalletAddress,
		Timestamp:     t.Timestamp.UTC().Format(time.RFC3339Nano),
		Asset:         t.Asset,
		Quantity:      t.Quantity,
		Price:         t.Price,
		Side:          string(t.Side),
		Fee:           t.Fee,
		Exchange:      t.Exchange,
	}
}

func toTradeResponses(trades []domain.Trade) []tradeResponse {
	out := make([]tradeResponse, 0, len(trades))
	for _, t := range trades {
		out = append(out, toTradeResponse(t))
	}
	return out
}

// parseTimeParam parses an optional RFC3339 query parameter. The second
// return value reports a malformed (non-empty, unparsable) input.
func parseTimeParam(r *http.Request, name string) (*time.Time, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, false
	}
	t = t.UTC()
	return &t, true
}

// parsePagination extracts limit/offset from the query string.
// Defaults: limit=100, capped at 1000; offset=0.
func parsePagination(r *http.Request) (limit, offset int) {
	q := r.URL.Query()

	limit = 100
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 1000 {
		limit = 1000
	}

	offset = 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	return limit, offset
}

// splitCSV splits a comma-separated parameter into trimmed non-empty parts.
func splitCSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
