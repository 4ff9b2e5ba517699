package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/twaplab/hltwap/internal/domain"
)

// TradeStore implements domain.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a new TradeStore backed by the given connection pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

const tradeSelectCols = `id, twap_id, wallet_address, timestamp, asset,
	quantity, price, side, fee, exchange`

const tradeInsert = `
	INSERT INTO trades (
		twap_id, wallet_address, timestamp, asset,
		quantity, price, side, fee, exchange
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

func scanTradeRows(rows pgx.Rows) ([]domain.Trade, error) {
	var trades []domain.Trade
	for rows.Next() {
		var t domain.Trade
		if err := rows.Scan(
			&t.ID, &t.TwapID, &t.WalletAddress, &t.Timestamp, &t.Asset,
			&t.Quantity, &t.Price, &t.Side, &t.Fee, &t.Exchange,
		); err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// CommitRun inserts a run's trades and its success bookkeeping row in a
// single transaction. Readers observe the whole run or none of it. Inserts
// are pure appends of new surrogate rows: duplicate prevention is the
// pipeline's within-run dedup plus watermark-gated listing, not a storage
// constraint.
func (s *TradeStore) CommitRun(ctx context.Context, trades []domain.Trade, run domain.IngestionRun) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin commit run: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if len(trades) > 0 {
		batch := &pgx.Batch{}
		for _, t := range trades {
			batch.Queue(tradeInsert,
				t.TwapID, t.WalletAddress, t.Timestamp, t.Asset,
				t.Quantity, t.Price, t.Side, t.Fee, t.Exchange,
			)
		}

		br := tx.SendBatch(ctx, batch)
		for i := range trades {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return fmt.Errorf("postgres: insert trade batch item %d: %w", i, err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("postgres: close trade batch: %w", err)
		}
	}

	if err := insertRun(ctx, tx, run); err != nil {
		return fmt.Errorf("postgres: record run: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit run: %w", err)
	}
	return nil
}

// List returns trades matching the filter, ordered by timestamp descending.
func (s *TradeStore) List(ctx context.Context, f domain.TradeFilter) ([]domain.Trade, error) {
	query := `SELECT ` + tradeSelectCols + ` FROM trades WHERE 1=1`
	var args []any
	argIdx := 1

	if len(f.Wallets) > 0 {
		query += fmt.Sprintf(" AND wallet_address = ANY($%d)", argIdx)
		args = append(args, f.Wallets)
		argIdx++
	}
	if f.Since != nil {
		query += fmt.Sprintf(" AND timestamp >= $%d", argIdx)
		args = append(args, *f.Since)
		argIdx++
	}
	if f.Until != nil {
		query += fmt.Sprintf(" AND timestamp <= $%d", argIdx)
		args = append(args, *f.Until)
		argIdx++
	}
	if f.Asset != "" {
		query += fmt.Sprintf(" AND asset = $%d", argIdx)
		args = append(args, f.Asset)
		argIdx++
	}
	if f.TwapID != "" {
		query += fmt.Sprintf(" AND twap_id = $%d", argIdx)
		args = append(args, f.TwapID)
		argIdx++
	}

	query += " ORDER BY timestamp DESC"

	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, f.Limit)
		argIdx++
	}
	if f.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, f.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades: %w", err)
	}
	defer rows.Close()

	trades, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trades: %w", err)
	}
	return trades, nil
}

// ListByTwap returns all trades for the given TWAP order ID, oldest first.
func (s *TradeStore) ListByTwap(ctx context.Context, twapID string) ([]domain.Trade, error) {
	query := `SELECT ` + tradeSelectCols + ` FROM trades WHERE twap_id = $1 ORDER BY timestamp ASC`

	rows, err := s.pool.Query(ctx, query, twapID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades by twap %q: %w", twapID, err)
	}
	defer rows.Close()

	trades, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trades by twap %q: %w", twapID, err)
	}
	return trades, nil
}

// TwapIDsByWallet returns the distinct TWAP order IDs a wallet traded,
// optionally bounded by time.
func (s *TradeStore) TwapIDsByWallet(ctx context.Context, wallet string, since, until *time.Time) ([]string, error) {
	query := `SELECT DISTINCT twap_id FROM trades WHERE wallet_address = $1`
	args := []any{wallet}
	argIdx := 2

	if since != nil {
		query += fmt.Sprintf(" AND timestamp >= $%d", argIdx)
		args = append(args, *since)
		argIdx++
	}
	if until != nil {
		query += fmt.Sprintf(" AND timestamp <= $%d", argIdx)
		args = append(args, *until)
	}

	query += " ORDER BY twap_id"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: twap ids for wallet %q: %w", wallet, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("postgres: scan twap id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Count returns the total number of persisted trades.
func (s *TradeStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM trades").Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres: count trades: %w", err)
	}
	return count, nil
}

// Compile-time interface check.
var _ domain.TradeStore = (*TradeStore)(nil)
