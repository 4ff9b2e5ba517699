package pipeline

import "github.com/twaplab/hltwap/internal/domain"

// tradeKey is the natural-key equivalence under which two fills are the same
// economic event. The key deliberately omits fee, side, and twap_id, matching
// the upstream source behavior.
type tradeKey struct {
	wallet   string
	millis   int64
	asset    string
	price    float64
	quantity float64
}

// Dedupe removes duplicate trades across the whole batch, which may span many
// source files. The first occurrence in arrival order wins; the order of
// survivors is otherwise preserved. It only inspects the given batch, never
// previously persisted rows — watermark discipline keeps committed ranges
// from being reprocessed.
func Dedupe(trades []domain.Trade) []domain.Trade {
	if len(trades) == 0 {
		return trades
	}

	seen := make(map[tradeKey]struct{}, len(trades))
	out := trades[:0:0]

	for _, t := range trades {
		key := tradeKey{
			wallet:   t.WalletAddress,
			millis:   t.Timestamp.UnixMilli(),
			asset:    t.Asset,
			price:    t.Price,
			quantity: t.Quantity,
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}

	return out
}
