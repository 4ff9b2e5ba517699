package domain

import "time"

// RunStatus is the recorded outcome of an ingestion pass.
type RunStatus string

const (
	RunSuccess RunStatus = "success"
	RunFailed  RunStatus = "failed"
)

// IngestionRun is one append-only bookkeeping row written at the end of every
// coordinator invocation, success or failure. The watermark for the next run
// is the LastIngestionDate of the most recent successful row; failed runs
// never advance it.
type IngestionRun struct {
	ID                int64
	LastIngestionDate time.Time
	RecordsProcessed  int
	SourceReference   string
	Status            RunStatus
	ErrorMessage      string
	CreatedAt         time.Time
}

// RunResult is what one ingestion pass reports back to its trigger.
type RunResult struct {
	RecordsProcessed int
	Status           RunStatus
}

// IngestionStatus is the coarse ingestion state exposed to API clients.
type IngestionStatus struct {
	LastIngestion *time.Time
	TotalRecords  int64
	Status        string
	LastError     string
}

// TwapGroup aggregates all fills belonging to one TWAP order.
type TwapGroup struct {
	TwapID      string
	TotalTrades int
	TotalVolume float64
	AvgPrice    float64 // quantity-weighted
	Trades      []Trade
}
