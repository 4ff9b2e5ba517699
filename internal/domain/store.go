package domain

import (
	"context"
	"time"
)

// TradeFilter narrows trade list queries. Zero values mean "no filter".
type TradeFilter struct {
	Wallets []string
	Since   *time.Time
	Until   *time.Time
	Asset   string
	TwapID  string
	Limit   int
	Offset  int
}

// TradeStore persists canonical trades. CommitRun is the only write path for
// trade rows: it inserts the batch and appends the success run record in a
// single transaction, so API readers observe a run's rows atomically or not
// at all.
type TradeStore interface {
	CommitRun(ctx context.Context, trades []Trade, run IngestionRun) error
	List(ctx context.Context, filter TradeFilter) ([]Trade, error)
	ListByTwap(ctx context.Context, twapID string) ([]Trade, error)
	TwapIDsByWallet(ctx context.Context, wallet string, since, until *time.Time) ([]string, error)
	Count(ctx context.Context) (int64, error)
}

// IngestionRunStore persists append-only run bookkeeping rows.
// LatestSuccessful and Latest return ErrNotFound when no matching row exists.
type IngestionRunStore interface {
	Append(ctx context.Context, run IngestionRun) error
	LatestSuccessful(ctx context.Context) (IngestionRun, error)
	Latest(ctx context.Context) (IngestionRun, error)
}

// LockManager provides exclusive named locks so that only one ingestion pass
// runs at a time across all processes sharing the store. Acquire returns
// ErrLockHeld when another holder owns the lock; the returned unlock function
// is safe to call more than once.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}
