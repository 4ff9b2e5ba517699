package pipeline

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twaplab/hltwap/internal/domain"
)

func TestNormalizeMapsFields(t *testing.T) {
	fills := []domain.RawFill{{
		"user": "0xAbC123",
		"coin": "BTC",
		"px":   "50000.5",
		"sz":   "0.25",
		"time": json.Number("1700000000000"),
		"oid":  json.Number("987654321"),
		"side": "B",
		"fee":  "1.23",
	}}

	trades, dropped := Normalize(fills)
	require.Len(t, trades, 1)
	assert.Zero(t, dropped)

	tr := trades[0]
	assert.Equal(t, "0xAbC123", tr.WalletAddress)
	assert.Equal(t, "BTC", tr.Asset)
	assert.Equal(t, 50000.5, tr.Price)
	assert.Equal(t, 0.25, tr.Quantity)
	assert.Equal(t, "987654321", tr.TwapID)
	assert.Equal(t, domain.SideBuy, tr.Side)
	assert.Equal(t, 1.23, tr.Fee)
	assert.Equal(t, domain.Exchange, tr.Exchange)

	want := time.UnixMilli(1700000000000).UTC()
	assert.Equal(t, want, tr.Timestamp)
	assert.Equal(t, time.UTC, tr.Timestamp.Location())
}

func TestNormalizeDefaults(t *testing.T) {
	fills := []domain.RawFill{{
		"user": "0xabc",
		"coin": "ETH",
		"px":   "3000",
		"sz":   "1",
		"time": json.Number("1700000000000"),
	}}

	trades, dropped := Normalize(fills)
	require.Len(t, trades, 1)
	assert.Zero(t, dropped)

	tr := trades[0]
	assert.Zero(t, tr.Fee)
	assert.Empty(t, tr.TwapID)
	assert.Equal(t, domain.SideUnknown, tr.Side)
}

func TestNormalizeDropsInvalidRows(t *testing.T) {
	base := func() domain.RawFill {
		return domain.RawFill{
			"user": "0xabc",
			"coin": "ETH",
			"px":   "3000",
			"sz":   "1",
			"time": json.Number("1700000000000"),
		}
	}

	tests := []struct {
		name   string
		mutate func(domain.RawFill)
	}{
		{"missing user", func(f domain.RawFill) { delete(f, "user") }},
		{"empty user", func(f domain.RawFill) { f["user"] = "" }},
		{"missing coin", func(f domain.RawFill) { delete(f, "coin") }},
		{"missing time", func(f domain.RawFill) { delete(f, "time") }},
		{"unparsable time", func(f domain.RawFill) { f["time"] = "soon" }},
		{"unparsable price", func(f domain.RawFill) { f["px"] = "abc" }},
		{"negative price", func(f domain.RawFill) { f["px"] = "-1" }},
		{"missing quantity", func(f domain.RawFill) { delete(f, "sz") }},
		{"negative quantity", func(f domain.RawFill) { f["sz"] = "-0.5" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fill := base()
			tt.mutate(fill)

			trades, dropped := Normalize([]domain.RawFill{fill})
			assert.Empty(t, trades)
			assert.Equal(t, 1, dropped)
		})
	}
}

func TestNormalizeKeepsGoodRowsAroundBadOnes(t *testing.T) {
	fills := []domain.RawFill{
		{"user": "0xa", "coin": "BTC", "px": "1", "sz": "1", "time": json.Number("1700000000000")},
		{"coin": "BTC", "px": "1", "sz": "1", "time": json.Number("1700000000000")},
		{"user": "0xb", "coin": "BTC", "px": "2", "sz": "2", "time": json.Number("1700000001000"), "side": "A"},
	}

	trades, dropped := Normalize(fills)
	require.Len(t, trades, 2)
	assert.Equal(t, 1, dropped)
	assert.Equal(t, "0xa", trades[0].WalletAddress)
	assert.Equal(t, "0xb", trades[1].WalletAddress)
	assert.Equal(t, domain.SideSell, trades[1].Side)
}

func TestMapSide(t *testing.T) {
	assert.Equal(t, domain.SideBuy, mapSide("B"))
	assert.Equal(t, domain.SideSell, mapSide("A"))
	assert.Equal(t, domain.SideUnknown, mapSide("X"))
	assert.Equal(t, domain.SideUnknown, mapSide(nil))
	assert.Equal(t, domain.SideUnknown, mapSide(json.Number("1")))
}
