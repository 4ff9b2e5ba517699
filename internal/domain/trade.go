package domain

import "time"

// Exchange is the fixed source identifier stamped on every ingested trade.
const Exchange = "hyperliquid"

// TradeSide is the direction of a fill from the wallet's perspective.
type TradeSide string

const (
	SideBuy     TradeSide = "buy"
	SideSell    TradeSide = "sell"
	SideUnknown TradeSide = "unknown"
)

// Trade is a single canonical trade execution within a TWAP order.
type Trade struct {
	ID            int64
	TwapID        string
	WalletAddress string
	Timestamp     time.Time // UTC, millisecond precision
	Asset         string
	Quantity      float64
	Price         float64
	Side          TradeSide
	Fee           float64
	Exchange      string
}

// RawFill is a loosely-typed fill record as decoded from one NDJSON line of
// a node fills object. Numeric values are json.Number so order IDs and
// timestamps survive without float rounding.
type RawFill map[string]any

// BlobFile is one fetched, already-decompressed object from the fills bucket.
type BlobFile struct {
	Key  string
	Data []byte
}

// BlobInfo describes a stored object.
type BlobInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}
