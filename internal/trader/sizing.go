package trader

import (
	"math"

	"lazaitrader-go/internal/ledger"
)

// maxTradePercentage is the hard cap the consecutive-trade multiplier can
// never push the effective percentage past.
const maxTradePercentage = 0.5

// ApplyMultiplier scales the base trade percentage for consecutive
// same-direction trades. A repeat of the previous action extends the streak
// and multiplies geometrically; any direction change resets to the base
// percentage with a zero streak.
func ApplyMultiplier(basePct, multiplier float64, action, lastAction string, lastStreak int) (float64, int) {
	if action != lastAction {
		return basePct, 0
	}
	streak := lastStreak + 1
	pct := basePct * math.Pow(multiplier, float64(streak))
	return math.Min(pct, maxTradePercentage), streak
}

// SizeResult is the outcome of trade sizing. MeetsMinimum=false and Qty==0
// are recognized no-trade outcomes, not errors: the caller must skip
// execution but still advance the base price.
type SizeResult struct {
	Qty           float64
	TradeValueUSD float64
	MeetsMinimum  bool
}

// CalculateTradeAmounts derives the quantity of base asset to trade and its
// USD value from the balances and limits. maxAmountUSD == 0 means no cap.
func CalculateTradeAmounts(action string, baseBalance, quoteBalance, price, tradePct, maxAmountUSD, minimumUSD, baseUSD, quoteUSD float64) SizeResult {
	var qty, tradeValueUSD float64
	if action == ledger.ActionSell {
		qty = baseBalance * tradePct
		if maxAmountUSD > 0 {
			qty = math.Min(qty, maxAmountUSD/baseUSD)
		}
		tradeValueUSD = qty * baseUSD
	} else { // BUY
		quoteToSpend := quoteBalance * tradePct
		if maxAmountUSD > 0 {
			quoteToSpend = math.Min(quoteToSpend, maxAmountUSD/quoteUSD)
		}
		qty = quoteToSpend / price
		tradeValueUSD = quoteToSpend * quoteUSD
	}
	return SizeResult{
		Qty:           qty,
		TradeValueUSD: tradeValueUSD,
		MeetsMinimum:  tradeValueUSD >= minimumUSD,
	}
}

// CalculateNewBalances projects the balances after the trade settles.
func CalculateNewBalances(action string, baseBalance, quoteBalance, qty, price float64) (float64, float64) {
	if action == ledger.ActionSell {
		return baseBalance - qty, quoteBalance + qty*price
	}
	return baseBalance + qty, quoteBalance - qty*price
}

// TotalBalanceUSD values both sides of the pair in USD. usdPeggedSide names
// which side is the USD-pegged asset ("base" or "quote"); price is the pair
// price (base in quote terms). Returns total and the per-unit USD prices.
func TotalBalanceUSD(usdPeggedSide string, baseBalance, quoteBalance, price float64) (total, baseUSD, quoteUSD float64) {
	if usdPeggedSide == "quote" {
		baseUSD, quoteUSD = price, 1.0
	} else {
		baseUSD, quoteUSD = 1.0, 1.0/price
	}
	return baseBalance*baseUSD + quoteBalance*quoteUSD, baseUSD, quoteUSD
}
