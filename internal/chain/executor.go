package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"

	"lazaitrader-go/internal/config"
	"lazaitrader-go/internal/ledger"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// TradeResult statuses. SimulationTxHash doubles as the ledger tx-hash value
// for trades that never touched the chain.
const (
	StatusSuccess    = "SUCCESS"
	StatusSimulation = "SIMULATION"
	SimulationTxHash = "SIMULATION"
)

// TradeResult reports a completed execution attempt.
type TradeResult struct {
	Status   string
	TxHash   string
	TokenIn  string
	TokenOut string
}

// Executor drives the two-step on-chain trade: approve token spend via the
// user's SCW, then hand the encoded DEX swap to the SCW's executeTrade entry
// point. All transactions are signed by the shared bot-operator key, which can
// only reach funds already inside a user's SCW and only through those two
// whitelisted entry points.
type Executor struct {
	client     *Client
	key        *ecdsa.PrivateKey
	store      *config.Store
	production bool
	approveGas uint64
	swapGas    uint64
	logger     *zap.Logger
}

// NewExecutor creates a trade executor signing with the bot-operator key.
func NewExecutor(client *Client, key *ecdsa.PrivateKey, store *config.Store, production bool, approveGas, swapGas uint64, logger *zap.Logger) *Executor {
	return &Executor{
		client:     client,
		key:        key,
		store:      store,
		production: production,
		approveGas: approveGas,
		swapGas:    swapGas,
		logger:     logger,
	}
}

// Execute performs the approve+swap sequence for one trade. quantity is the
// amount of base asset bought or sold; price is the pair price used to size
// the quote-side spend on a BUY. Any on-chain failure aborts the whole
// attempt — the caller must not record a trade for a returned error.
func (e *Executor) Execute(ctx context.Context, base, quote, action string, quantity, price float64, user config.UserAccount) (TradeResult, error) {
	baseTok, ok := e.store.Token(base)
	if !ok {
		return TradeResult{}, fmt.Errorf("token %s not configured", base)
	}
	quoteTok, ok := e.store.Token(quote)
	if !ok {
		return TradeResult{}, fmt.Errorf("token %s not configured", quote)
	}
	info, ok := e.store.Pair(base, quote)
	if !ok {
		return TradeResult{}, fmt.Errorf("no DEX configuration for %s-%s", base, quote)
	}
	if user.SCWAddress == "" {
		return TradeResult{}, fmt.Errorf("no SCW address for user %s", user.Username)
	}

	// BUY spends quote to receive base; SELL spends base to receive quote.
	tokenIn, tokenOut := baseTok, quoteTok
	amountIn := toUnits(quantity, baseTok.Decimals)
	if action == ledger.ActionBuy {
		tokenIn, tokenOut = quoteTok, baseTok
		amountIn = toUnits(quantity*price, quoteTok.Decimals)
	}

	if !e.production {
		e.logger.Info("SIMULATION: trade would be executed",
			zap.String("pair", base+"-"+quote),
			zap.String("action", action),
			zap.Float64("quantity", quantity),
			zap.String("scw", user.SCWAddress))
		return TradeResult{
			Status:   StatusSimulation,
			TxHash:   SimulationTxHash,
			TokenIn:  tokenIn.Symbol,
			TokenOut: tokenOut.Symbol,
		}, nil
	}

	scw := common.HexToAddress(user.SCWAddress)
	dex := common.HexToAddress(info.DEXAddress)

	l := e.logger.With(
		zap.String("pair", base+"-"+quote),
		zap.String("action", action),
		zap.String("scw", user.SCWAddress),
	)

	// Step 1: authorize the DEX to pull amountIn of tokenIn from the SCW.
	l.Info("Approving token spend via SCW",
		zap.String("token_in", tokenIn.Symbol),
		zap.String("amount_in", amountIn.String()))

	approveData, err := e.client.scwABI.Pack("approveToken",
		common.HexToAddress(tokenIn.Address), dex, amountIn)
	if err != nil {
		return TradeResult{}, fmt.Errorf("encoding approveToken: %w", err)
	}
	approveReceipt, err := e.client.submit(ctx, e.key, scw, approveData, e.approveGas)
	if err != nil {
		return TradeResult{}, fmt.Errorf("%w: %v", ErrApprovalFailed, err)
	}
	if approveReceipt.Status != 1 {
		return TradeResult{}, fmt.Errorf("%w: tx %s reverted", ErrApprovalFailed, approveReceipt.TxHash.Hex())
	}
	l.Info("Approval confirmed", zap.String("tx_hash", approveReceipt.TxHash.Hex()))

	// Step 2: hand the encoded swap to the SCW's generic execution entry point.
	swapData, err := e.client.dexABI.Pack("swap", common.HexToAddress(tokenIn.Address), amountIn)
	if err != nil {
		return TradeResult{}, fmt.Errorf("encoding swap: %w", err)
	}
	executeData, err := e.client.scwABI.Pack("executeTrade", dex, swapData)
	if err != nil {
		return TradeResult{}, fmt.Errorf("encoding executeTrade: %w", err)
	}
	swapReceipt, err := e.client.submit(ctx, e.key, scw, executeData, e.swapGas)
	if err != nil {
		return TradeResult{}, fmt.Errorf("%w: %v", ErrSwapFailed, err)
	}
	if swapReceipt.Status != 1 {
		return TradeResult{}, fmt.Errorf("%w: tx %s reverted", ErrSwapFailed, swapReceipt.TxHash.Hex())
	}

	txHash := swapReceipt.TxHash.Hex()
	l.Info("DEX trade executed via SCW", zap.String("tx_hash", txHash))

	return TradeResult{
		Status:   StatusSuccess,
		TxHash:   txHash,
		TokenIn:  tokenIn.Symbol,
		TokenOut: tokenOut.Symbol,
	}, nil
}
