// Package trader evaluates configured pairs against their reference prices
// and drives oracle updates and SCW trades when a trigger fires.
package trader

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"lazaitrader-go/internal/chain"
	"lazaitrader-go/internal/config"
	"lazaitrader-go/internal/journal"
	"lazaitrader-go/internal/ledger"
	"lazaitrader-go/internal/pricefeed"

	"go.uber.org/zap"
)

// PriceProvider serves pair quotes; satisfied by *pricefeed.Service.
type PriceProvider interface {
	Quote(ctx context.Context, base, quote string) (pricefeed.Quote, error)
}

// OracleUpdater pushes scaled prices on-chain; satisfied by *chain.Updater.
// Failure is reported, never returned: the cycle continues regardless.
type OracleUpdater interface {
	Update(ctx context.Context, base, quote string, baseToQuote, quoteToBase *big.Int) bool
}

// TradeExecutor performs the approve+swap sequence; satisfied by
// *chain.Executor.
type TradeExecutor interface {
	Execute(ctx context.Context, base, quote, action string, quantity, price float64, user config.UserAccount) (chain.TradeResult, error)
}

// BalanceReader reads both sides of a pair from a user's SCW; satisfied by
// *chain.Client.
type BalanceReader interface {
	Balances(ctx context.Context, scwAddr string, baseTok, quoteTok config.Token) (float64, float64, error)
}

// LedgerStore is the append-only price/trade series; satisfied by
// *ledger.Ledger.
type LedgerStore interface {
	AppendPrice(base, quote, user, date, timeStr string, price float64, isBase bool) error
	LastBasePrice(base, quote, user string) (float64, bool)
	LastTrade(base, quote, user string) (string, int)
	AppendTrade(rec ledger.TradeRecord) error
}

// Journal is the indexed trade store behind the reporting UI; satisfied by
// *journal.Store. Optional.
type Journal interface {
	Record(t *journal.Trade) error
}

// Notifier delivers user-facing messages; satisfied by *notify.Telegram.
// Optional.
type Notifier interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// Engine runs the per-pair evaluation cycle over all configured pairs.
type Engine struct {
	store     *config.Store
	pairs     []config.PairConfig
	prices    PriceProvider
	oracle    OracleUpdater
	executor  TradeExecutor
	balances  BalanceReader
	ledger    LedgerStore
	journal   Journal
	notifier  Notifier
	pairDelay time.Duration
	logger    *zap.Logger
}

// NewEngine wires the engine. journal and notifier may be nil.
func NewEngine(store *config.Store, pairs []config.PairConfig, prices PriceProvider, oracle OracleUpdater, executor TradeExecutor, balances BalanceReader, led LedgerStore, jrnl Journal, notifier Notifier, pairDelay time.Duration, logger *zap.Logger) *Engine {
	return &Engine{
		store:     store,
		pairs:     pairs,
		prices:    prices,
		oracle:    oracle,
		executor:  executor,
		balances:  balances,
		ledger:    led,
		journal:   jrnl,
		notifier:  notifier,
		pairDelay: pairDelay,
		logger:    logger,
	}
}

// RunBatch evaluates every configured pair once. A pair's failure is logged
// and counted; it never stops the remaining pairs. Pairs are spaced by the
// configured delay to stay friendly to the price APIs and the RPC endpoint.
func (e *Engine) RunBatch(ctx context.Context) (succeeded, failed int) {
	e.logger.Info("Starting trading batch", zap.Int("pairs", len(e.pairs)))
	for i, pair := range e.pairs {
		if err := e.processPair(ctx, pair); err != nil {
			e.logger.Error("Pair processing failed",
				zap.String("pair", pair.PairKey()),
				zap.String("user", pair.UserID),
				zap.Error(err))
			failed++
		} else {
			succeeded++
		}
		if i < len(e.pairs)-1 && e.pairDelay > 0 {
			select {
			case <-ctx.Done():
				e.logger.Warn("Batch interrupted", zap.Error(ctx.Err()))
				return succeeded, failed
			case <-time.After(e.pairDelay):
			}
		}
	}
	e.logger.Info("Trading batch finished",
		zap.Int("succeeded", succeeded), zap.Int("failed", failed))
	return succeeded, failed
}

// processPair runs one evaluation cycle for one (pair, user).
func (e *Engine) processPair(ctx context.Context, pair config.PairConfig) error {
	user, ok := e.store.User(pair.UserID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUserNotFound, pair.UserID)
	}
	info, ok := e.store.Pair(pair.Symbol1, pair.Symbol2)
	if !ok {
		return fmt.Errorf("%w: %s", ErrPairNotConfigured, pair.PairKey())
	}
	userID := user.LedgerID()

	quote, err := e.prices.Quote(ctx, pair.Symbol1, pair.Symbol2)
	if err != nil {
		return fmt.Errorf("fetching price for %s: %w", pair.PairKey(), err)
	}

	l := e.logger.With(
		zap.String("pair", pair.PairKey()),
		zap.String("user", userID),
		zap.Float64("price", quote.Price))

	basePrice, hasBase := e.ledger.LastBasePrice(pair.Symbol1, pair.Symbol2, userID)
	if !hasBase {
		// First observation for this series becomes the reference price.
		l.Info("No base price on record, initializing")
		if err := e.ledger.AppendPrice(pair.Symbol1, pair.Symbol2, userID,
			quote.Date, quote.Time, quote.Price, true); err != nil {
			return fmt.Errorf("initializing base price: %w", err)
		}
		return nil
	}

	change := (quote.Price - basePrice) / basePrice
	var action string
	switch {
	case change >= pair.TriggerPercentage:
		action = ledger.ActionSell
	case change <= -pair.TriggerPercentage:
		action = ledger.ActionBuy
	default:
		// Within the band: record the observation, keep the reference.
		if err := e.ledger.AppendPrice(pair.Symbol1, pair.Symbol2, userID,
			quote.Date, quote.Time, quote.Price, false); err != nil {
			return fmt.Errorf("appending price: %w", err)
		}
		return nil
	}

	l.Info("Trigger hit",
		zap.Float64("base_price", basePrice),
		zap.Float64("change", change),
		zap.String("action", action))

	// The oracle follows the trigger, not the trade: it is refreshed even when
	// sizing later decides the trade is too small to execute.
	if ok := e.oracle.Update(ctx, pair.Symbol1, pair.Symbol2, quote.BaseToQuote, quote.QuoteToBase); !ok {
		l.Warn("Oracle update failed, continuing with off-chain price")
	}

	baseTok, _ := e.store.Token(pair.Symbol1)
	quoteTok, _ := e.store.Token(pair.Symbol2)
	baseBal, quoteBal, err := e.balances.Balances(ctx, user.SCWAddress, baseTok, quoteTok)
	if err != nil {
		// Degrade to zero so the cycle lands in the insufficient-funds path.
		l.Warn("Balance read failed, assuming zero balances", zap.Error(err))
		baseBal, quoteBal = 0, 0
	}

	lastAction, lastStreak := e.ledger.LastTrade(pair.Symbol1, pair.Symbol2, userID)
	effPct, streak := ApplyMultiplier(pair.TradePercentage, pair.Multiplier, action, lastAction, lastStreak)

	_, baseUSD, quoteUSD := TotalBalanceUSD(info.USDPeggedSide, baseBal, quoteBal, quote.Price)
	size := CalculateTradeAmounts(action, baseBal, quoteBal, quote.Price,
		effPct, pair.MaxAmount, pair.MinimumAmount, baseUSD, quoteUSD)

	if size.Qty <= 0 || !size.MeetsMinimum {
		reason := "trade value below minimum"
		if size.Qty <= 0 {
			reason = "insufficient funds"
		}
		l.Info("Trigger hit but no trade executed",
			zap.String("reason", reason),
			zap.Float64("trade_value_usd", size.TradeValueUSD),
			zap.Float64("minimum_usd", pair.MinimumAmount))
		// The reference still moves: the next evaluation measures from here.
		if err := e.ledger.AppendPrice(pair.Symbol1, pair.Symbol2, userID,
			quote.Date, quote.Time, quote.Price, true); err != nil {
			return fmt.Errorf("appending base price: %w", err)
		}
		e.notify(ctx, user, fmt.Sprintf(
			"⚠️ <b>%s</b> trigger hit for %s at %.6f (%+.2f%%), but no trade was executed: %s.",
			action, pair.PairKey(), quote.Price, change*100, reason))
		return nil
	}

	result, err := e.executor.Execute(ctx, pair.Symbol1, pair.Symbol2, action,
		size.Qty, quote.Price, user)
	if err != nil {
		// Base price is left untouched: the same trigger re-fires next cycle.
		return fmt.Errorf("executing %s for %s: %w", action, pair.PairKey(), err)
	}

	newBase, newQuote := CalculateNewBalances(action, baseBal, quoteBal, size.Qty, quote.Price)
	newTotal := newBase*baseUSD + newQuote*quoteUSD

	if err := e.ledger.AppendTrade(ledger.TradeRecord{
		Base:            pair.Symbol1,
		Quote:           pair.Symbol2,
		UserID:          userID,
		Date:            quote.Date,
		Time:            quote.Time,
		Action:          action,
		Price:           quote.Price,
		Quantity:        size.Qty,
		BaseBalance:     newBase,
		QuoteBalance:    newQuote,
		BaseUSDPrice:    baseUSD,
		QuoteUSDPrice:   quoteUSD,
		TotalBalanceUSD: newTotal,
		Consecutive:     streak,
		TradePercentage: effPct,
		TxHash:          result.TxHash,
	}); err != nil {
		l.Error("Failed to record trade in ledger", zap.Error(err))
	}
	if err := e.ledger.AppendPrice(pair.Symbol1, pair.Symbol2, userID,
		quote.Date, quote.Time, quote.Price, true); err != nil {
		l.Error("Failed to record new base price", zap.Error(err))
	}

	if e.journal != nil {
		if err := e.journal.Record(&journal.Trade{
			Pair:            pair.PairKey(),
			UserID:          userID,
			Action:          action,
			Price:           quote.Price,
			Quantity:        size.Qty,
			TradeValueUSD:   size.TradeValueUSD,
			TotalBalanceUSD: newTotal,
			Consecutive:     streak,
			Status:          result.Status,
			TxHash:          result.TxHash,
		}); err != nil {
			l.Error("Failed to record trade in journal", zap.Error(err))
		}
	}

	l.Info("Trade completed",
		zap.String("action", action),
		zap.Float64("quantity", size.Qty),
		zap.Float64("trade_value_usd", size.TradeValueUSD),
		zap.String("status", result.Status),
		zap.String("tx_hash", result.TxHash))

	e.notify(ctx, user, fmt.Sprintf(
		"✅ <b>%s executed</b> for %s\nPrice: %.6f (%+.2f%%)\nQuantity: %.6f %s\nValue: $%.2f\nBalances: %.6f %s / %.6f %s\nTx: <code>%s</code>",
		action, pair.PairKey(), quote.Price, change*100,
		size.Qty, pair.Symbol1, size.TradeValueUSD,
		newBase, pair.Symbol1, newQuote, pair.Symbol2, result.TxHash))
	return nil
}

// notify delivers a message to the user's chat when a notifier is configured.
// Delivery failures are logged and ignored.
func (e *Engine) notify(ctx context.Context, user config.UserAccount, text string) {
	if e.notifier == nil || user.TelegramChatID == "" {
		return
	}
	chatID, err := strconv.ParseInt(user.TelegramChatID, 10, 64)
	if err != nil {
		e.logger.Warn("Invalid telegram chat id",
			zap.String("user", user.LedgerID()),
			zap.String("chat_id", user.TelegramChatID))
		return
	}
	if err := e.notifier.Send(ctx, chatID, text); err != nil {
		e.logger.Warn("Failed to send notification",
			zap.String("user", user.LedgerID()), zap.Error(err))
	}
}
