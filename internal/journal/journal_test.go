package journal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	// Non-shared in-memory database for each test to ensure isolation.
	s, err := NewStore("file::memory:")
	assert.NoError(t, err)
	return s
}

func TestRecordAndRecent(t *testing.T) {
	s := newTestStore(t)

	assert.NoError(t, s.Record(&Trade{Pair: "METIS-USDC", UserID: "alice", Action: "SELL", TradeValueUSD: 530}))
	assert.NoError(t, s.Record(&Trade{Pair: "METIS-USDC", UserID: "alice", Action: "BUY", TradeValueUSD: 100}))
	assert.NoError(t, s.Record(&Trade{Pair: "WETH-USDC", UserID: "bob", Action: "SELL", TradeValueUSD: 250}))

	t.Run("All users", func(t *testing.T) {
		trades, err := s.Recent("", 10)
		assert.NoError(t, err)
		assert.Len(t, trades, 3)
	})

	t.Run("Filtered by user", func(t *testing.T) {
		trades, err := s.Recent("alice", 10)
		assert.NoError(t, err)
		assert.Len(t, trades, 2)
	})

	t.Run("Limit applies", func(t *testing.T) {
		trades, err := s.Recent("", 1)
		assert.NoError(t, err)
		assert.Len(t, trades, 1)
	})
}

func TestStatistics(t *testing.T) {
	s := newTestStore(t)

	assert.NoError(t, s.Record(&Trade{Pair: "METIS-USDC", UserID: "alice", Action: "SELL", TradeValueUSD: 530}))
	assert.NoError(t, s.Record(&Trade{Pair: "METIS-USDC", UserID: "alice", Action: "BUY", TradeValueUSD: 100}))
	assert.NoError(t, s.Record(&Trade{Pair: "WETH-USDC", UserID: "bob", Action: "SELL", TradeValueUSD: 250}))

	t.Run("All users", func(t *testing.T) {
		stats, err := s.Statistics("")
		assert.NoError(t, err)
		assert.EqualValues(t, 3, stats.TotalTrades)
		assert.EqualValues(t, 1, stats.BuyTrades)
		assert.EqualValues(t, 2, stats.SellTrades)
		assert.InDelta(t, 880.0, stats.TotalValueUSD, 1e-9)
	})

	t.Run("Per user", func(t *testing.T) {
		stats, err := s.Statistics("bob")
		assert.NoError(t, err)
		assert.EqualValues(t, 1, stats.TotalTrades)
		assert.InDelta(t, 250.0, stats.TotalValueUSD, 1e-9)
	})

	t.Run("Empty journal", func(t *testing.T) {
		empty := newTestStore(t)
		stats, err := empty.Statistics("")
		assert.NoError(t, err)
		assert.Zero(t, stats.TotalTrades)
		assert.Zero(t, stats.TotalValueUSD)
	})
}
