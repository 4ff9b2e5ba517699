package pipeline

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/twaplab/hltwap/internal/domain"
)

// Normalize maps heterogeneous source fill records into canonical trades:
//
//	user → wallet_address, coin → asset, px → price, sz → quantity,
//	time (epoch ms) → timestamp (UTC), oid → twap_id, side B/A → buy/sell,
//	fee → fee (default 0).
//
// Rows missing wallet_address, timestamp, or asset, or carrying an
// unparsable or negative price/quantity, are dropped and counted rather than
// failing the batch: partial garbage must not abort ingestion of the rest.
// Every surviving trade is stamped with the fixed exchange identifier.
func Normalize(fills []domain.RawFill) ([]domain.Trade, int) {
	trades := make([]domain.Trade, 0, len(fills))
	dropped := 0

	for _, fill := range fills {
		trade, ok := normalizeFill(fill)
		if !ok {
			dropped++
			continue
		}
		trades = append(trades, trade)
	}

	return trades, dropped
}

// normalizeFill converts one raw record, reporting ok=false when the record
// fails a required-field or type constraint.
func normalizeFill(fill domain.RawFill) (domain.Trade, bool) {
	wallet, ok := asString(fill["user"])
	if !ok || wallet == "" {
		return domain.Trade{}, false
	}

	asset, ok := asString(fill["coin"])
	if !ok || asset == "" {
		return domain.Trade{}, false
	}

	millis, ok := asInt64(fill["time"])
	if !ok {
		return domain.Trade{}, false
	}
	timestamp := time.UnixMilli(millis).UTC()

	price, ok := asFloat(fill["px"])
	if !ok || price < 0 {
		return domain.Trade{}, false
	}

	quantity, ok := asFloat(fill["sz"])
	if !ok || quantity < 0 {
		return domain.Trade{}, false
	}

	fee, ok := asFloat(fill["fee"])
	if !ok {
		fee = 0
	}

	return domain.Trade{
		TwapID:        stringify(fill["oid"]),
		WalletAddress: wallet,
		Timestamp:     timestamp,
		Asset:         asset,
		Quantity:      quantity,
		Price:         price,
		Side:          mapSide(fill["side"]),
		Fee:           fee,
		Exchange:      domain.Exchange,
	}, true
}

// mapSide translates the source's side encoding: "B" is a buy, "A" a sell,
// anything else is unknown.
func mapSide(v any) domain.TradeSide {
	side, _ := asString(v)
	switch side {
	case "B":
		return domain.SideBuy
	case "A":
		return domain.SideSell
	default:
		return domain.SideUnknown
	}
}

// asString returns v as a string when it is one.
func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

// asFloat parses a numeric value that may arrive as a json.Number or as a
// numeric string (the source encodes px/sz/fee as strings).
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// asInt64 parses an integer value that may arrive as a json.Number or a
// numeric string.
func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case string:
		i, err := strconv.ParseInt(n, 10, 64)
		return i, err == nil
	default:
		return 0, false
	}
}

// stringify renders the order ID as a string regardless of its JSON type.
func stringify(v any) string {
	switch n := v.(type) {
	case json.Number:
		return n.String()
	case string:
		return n
	case nil:
		return ""
	default:
		return ""
	}
}
