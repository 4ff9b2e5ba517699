package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twaplab/hltwap/internal/domain"
)

func mkTrade(wallet, asset string, ts time.Time, price, qty float64) domain.Trade {
	return domain.Trade{
		WalletAddress: wallet,
		Asset:         asset,
		Timestamp:     ts,
		Price:         price,
		Quantity:      qty,
		Side:          domain.SideBuy,
		Exchange:      domain.Exchange,
	}
}

func TestDedupeRemovesDuplicatesFirstWins(t *testing.T) {
	ts := time.UnixMilli(1700000000000).UTC()

	first := mkTrade("0xa", "BTC", ts, 50000, 0.5)
	first.TwapID = "111"
	dup := mkTrade("0xa", "BTC", ts, 50000, 0.5)
	dup.TwapID = "222"
	other := mkTrade("0xb", "BTC", ts, 50000, 0.5)

	out := Dedupe([]domain.Trade{first, dup, other})
	require.Len(t, out, 2)

	// The key ignores twap_id, so the two records collapse onto the first
	// arrival.
	assert.Equal(t, "111", out[0].TwapID)
	assert.Equal(t, "0xb", out[1].WalletAddress)
}

func TestDedupeDistinguishesKeyFields(t *testing.T) {
	ts := time.UnixMilli(1700000000000).UTC()
	base := mkTrade("0xa", "BTC", ts, 50000, 0.5)

	variants := []domain.Trade{
		base,
		mkTrade("0xb", "BTC", ts, 50000, 0.5),
		mkTrade("0xa", "ETH", ts, 50000, 0.5),
		mkTrade("0xa", "BTC", ts.Add(time.Millisecond), 50000, 0.5),
		mkTrade("0xa", "BTC", ts, 50001, 0.5),
		mkTrade("0xa", "BTC", ts, 50000, 0.6),
	}

	out := Dedupe(variants)
	assert.Len(t, out, len(variants))
}

func TestDedupePreservesOrder(t *testing.T) {
	ts := time.UnixMilli(1700000000000).UTC()

	var trades []domain.Trade
	for i := 0; i < 5; i++ {
		trades = append(trades, mkTrade("0xa", "BTC", ts.Add(time.Duration(i)*time.Second), 50000, 0.5))
	}
	trades = append(trades, trades[1], trades[3])

	out := Dedupe(trades)
	require.Len(t, out, 5)
	for i := 1; i < len(out); i++ {
		assert.True(t, out[i-1].Timestamp.Before(out[i].Timestamp))
	}
}

func TestDedupeIdempotent(t *testing.T) {
	ts := time.UnixMilli(1700000000000).UTC()
	trades := []domain.Trade{
		mkTrade("0xa", "BTC", ts, 50000, 0.5),
		mkTrade("0xa", "BTC", ts, 50000, 0.5),
		mkTrade("0xb", "ETH", ts, 3000, 1),
	}

	once := Dedupe(trades)
	twice := Dedupe(once)
	assert.Equal(t, once, twice)
}

func TestDedupeEmpty(t *testing.T) {
	assert.Empty(t, Dedupe(nil))
	assert.Empty(t, Dedupe([]domain.Trade{}))
}
