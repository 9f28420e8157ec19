package trader

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"lazaitrader-go/internal/ledger"
)

func TestApplyMultiplier(t *testing.T) {
	testCases := []struct {
		name           string
		basePct        float64
		multiplier     float64
		action         string
		lastAction     string
		lastStreak     int
		expectedPct    float64
		expectedStreak int
	}{
		{
			name:    "First trade resets streak",
			basePct: 0.05, multiplier: 1.1,
			action: ledger.ActionSell, lastAction: "", lastStreak: 0,
			expectedPct: 0.05, expectedStreak: 0,
		},
		{
			name:    "Direction change resets streak",
			basePct: 0.05, multiplier: 1.1,
			action: ledger.ActionBuy, lastAction: ledger.ActionSell, lastStreak: 4,
			expectedPct: 0.05, expectedStreak: 0,
		},
		{
			name:    "Third consecutive sell compounds geometrically",
			basePct: 0.05, multiplier: 1.1,
			action: ledger.ActionSell, lastAction: ledger.ActionSell, lastStreak: 2,
			// 0.05 * 1.1^3
			expectedPct: 0.066550, expectedStreak: 3,
		},
		{
			name:    "Long streak hits the 50 percent cap",
			basePct: 0.05, multiplier: 1.5,
			action: ledger.ActionBuy, lastAction: ledger.ActionBuy, lastStreak: 9,
			expectedPct: 0.5, expectedStreak: 10,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			pct, streak := ApplyMultiplier(tc.basePct, tc.multiplier, tc.action, tc.lastAction, tc.lastStreak)
			assert.InDelta(t, tc.expectedPct, pct, 1e-9)
			assert.Equal(t, tc.expectedStreak, streak)
		})
	}
}

func TestCalculateTradeAmounts_Sell(t *testing.T) {
	// USD-pegged quote: baseUSD is the pair price, quoteUSD is 1.
	t.Run("Uncapped", func(t *testing.T) {
		res := CalculateTradeAmounts(ledger.ActionSell, 10, 100, 2.0, 0.5, 0, 1, 2.0, 1.0)
		assert.InDelta(t, 5.0, res.Qty, 1e-9)
		assert.InDelta(t, 10.0, res.TradeValueUSD, 1e-9)
		assert.True(t, res.MeetsMinimum)
	})

	t.Run("Max amount clamps quantity", func(t *testing.T) {
		// 50% of 100 base would be 50, but max 20 USD at 2 USD/base caps at 10.
		res := CalculateTradeAmounts(ledger.ActionSell, 100, 0, 2.0, 0.5, 20, 1, 2.0, 1.0)
		assert.InDelta(t, 10.0, res.Qty, 1e-9)
		assert.InDelta(t, 20.0, res.TradeValueUSD, 1e-9)
	})

	t.Run("Zero max amount means no cap", func(t *testing.T) {
		res := CalculateTradeAmounts(ledger.ActionSell, 100, 0, 2.0, 0.5, 0, 1, 2.0, 1.0)
		assert.InDelta(t, 50.0, res.Qty, 1e-9)
	})

	t.Run("Below minimum is a recognized no-trade", func(t *testing.T) {
		// 3 USD of value against a 5 USD minimum.
		res := CalculateTradeAmounts(ledger.ActionSell, 3, 0, 1.0, 0.5, 0, 5, 1.0, 1.0)
		assert.InDelta(t, 1.5, res.TradeValueUSD, 1e-9)
		assert.False(t, res.MeetsMinimum)
	})

	t.Run("Zero balance yields zero quantity", func(t *testing.T) {
		res := CalculateTradeAmounts(ledger.ActionSell, 0, 100, 2.0, 0.5, 0, 1, 2.0, 1.0)
		assert.Zero(t, res.Qty)
		assert.False(t, res.MeetsMinimum)
	})
}

func TestCalculateTradeAmounts_Buy(t *testing.T) {
	t.Run("Quantity derived from quote spend", func(t *testing.T) {
		// Spend 50% of 100 quote = 50, at price 2 => 25 base.
		res := CalculateTradeAmounts(ledger.ActionBuy, 0, 100, 2.0, 0.5, 0, 1, 2.0, 1.0)
		assert.InDelta(t, 25.0, res.Qty, 1e-9)
		assert.InDelta(t, 50.0, res.TradeValueUSD, 1e-9)
	})

	t.Run("Max amount clamps quote spend", func(t *testing.T) {
		res := CalculateTradeAmounts(ledger.ActionBuy, 0, 100, 2.0, 0.5, 20, 1, 2.0, 1.0)
		assert.InDelta(t, 10.0, res.Qty, 1e-9)
		assert.InDelta(t, 20.0, res.TradeValueUSD, 1e-9)
	})
}

func TestCalculateNewBalances(t *testing.T) {
	base, quote := CalculateNewBalances(ledger.ActionSell, 10, 100, 5, 2.0)
	assert.InDelta(t, 5.0, base, 1e-9)
	assert.InDelta(t, 110.0, quote, 1e-9)

	base, quote = CalculateNewBalances(ledger.ActionBuy, 10, 100, 5, 2.0)
	assert.InDelta(t, 15.0, base, 1e-9)
	assert.InDelta(t, 90.0, quote, 1e-9)
}

func TestTotalBalanceUSD(t *testing.T) {
	t.Run("USD-pegged quote", func(t *testing.T) {
		total, baseUSD, quoteUSD := TotalBalanceUSD("quote", 10, 100, 2.0)
		assert.InDelta(t, 2.0, baseUSD, 1e-9)
		assert.InDelta(t, 1.0, quoteUSD, 1e-9)
		assert.InDelta(t, 120.0, total, 1e-9)
	})

	t.Run("USD-pegged base", func(t *testing.T) {
		// Pair price 0.5 quote per base => quote is worth 2 USD.
		total, baseUSD, quoteUSD := TotalBalanceUSD("base", 10, 100, 0.5)
		assert.InDelta(t, 1.0, baseUSD, 1e-9)
		assert.InDelta(t, 2.0, quoteUSD, 1e-9)
		assert.InDelta(t, 210.0, total, 1e-9)
	})
}
