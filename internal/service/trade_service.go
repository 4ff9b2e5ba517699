// Package service provides the read-side query logic consumed by the HTTP
// handlers. It never writes trade rows; the ingestion coordinator owns all
// writes.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twaplab/hltwap/internal/domain"
)

// TradeService serves filtered trade queries, per-TWAP aggregation, wallet
// lookups, and ingestion status.
type TradeService struct {
	trades domain.TradeStore
	runs   domain.IngestionRunStore
	logger *slog.Logger
}

// NewTradeService creates a TradeService.
func NewTradeService(trades domain.TradeStore, runs domain.IngestionRunStore, logger *slog.Logger) *TradeService {
	return &TradeService{
		trades: trades,
		runs:   runs,
		logger: logger.With(slog.String("component", "trade_service")),
	}
}

// ListTrades returns trades matching the filter.
func (s *TradeService) ListTrades(ctx context.Context, f domain.TradeFilter) ([]domain.Trade, error) {
	trades, err := s.trades.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("trade_service: list trades: %w", err)
	}
	return trades, nil
}

// TwapGroup returns all trades for one TWAP order together with its
// aggregates: trade count, total volume (sum of quantities), and the
// quantity-weighted average price. Returns domain.ErrNotFound when the TWAP
// ID has no trades.
func (s *TradeService) TwapGroup(ctx context.Context, twapID string) (domain.TwapGroup, error) {
	trades, err := s.trades.ListByTwap(ctx, twapID)
	if err != nil {
		return domain.TwapGroup{}, fmt.Errorf("trade_service: twap %q: %w", twapID, err)
	}
	if len(trades) == 0 {
		return domain.TwapGroup{}, fmt.Errorf("trade_service: twap %q: %w", twapID, domain.ErrNotFound)
	}

	return aggregateTwap(twapID, trades), nil
}

// aggregateTwap computes the group aggregates over an already-fetched trade
// slice.
func aggregateTwap(twapID string, trades []domain.Trade) domain.TwapGroup {
	var totalVolume, weighted float64
	for _, t := range trades {
		totalVolume += t.Quantity
		weighted += t.Price * t.Quantity
	}

	avgPrice := 0.0
	if totalVolume > 0 {
		avgPrice = weighted / totalVolume
	}

	return domain.TwapGroup{
		TwapID:      twapID,
		TotalTrades: len(trades),
		TotalVolume: totalVolume,
		AvgPrice:    avgPrice,
		Trades:      trades,
	}
}

// WalletTwapIDs returns the distinct TWAP order IDs a wallet participated in,
// optionally bounded by time.
func (s *TradeService) WalletTwapIDs(ctx context.Context, wallet string, since, until *time.Time) ([]string, error) {
	ids, err := s.trades.TwapIDsByWallet(ctx, wallet, since, until)
	if err != nil {
		return nil, fmt.Errorf("trade_service: twap ids for wallet %q: %w", wallet, err)
	}
	return ids, nil
}

// CountTrades returns the total number of persisted trades.
func (s *TradeService) CountTrades(ctx context.Context) (int64, error) {
	count, err := s.trades.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("trade_service: count trades: %w", err)
	}
	return count, nil
}

// IngestionStatus reports the latest run's coarse outcome. When no run has
// ever been recorded the status is "no_data".
func (s *TradeService) IngestionStatus(ctx context.Context) (domain.IngestionStatus, error) {
	run, err := s.runs.Latest(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.IngestionStatus{Status: "no_data"}, nil
		}
		return domain.IngestionStatus{}, fmt.Errorf("trade_service: latest run: %w", err)
	}

	total, err := s.trades.Count(ctx)
	if err != nil {
		return domain.IngestionStatus{}, fmt.Errorf("trade_service: count trades: %w", err)
	}

	last := run.LastIngestionDate
	return domain.IngestionStatus{
		LastIngestion: &last,
		TotalRecords:  total,
		Status:        string(run.Status),
		LastError:     run.ErrorMessage,
	}, nil
}
