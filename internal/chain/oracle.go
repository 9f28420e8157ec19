package chain

import (
	"context"
	"crypto/ecdsa"
	"math/big"

	"lazaitrader-go/internal/config"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Updater pushes 1e18-scaled prices to a pair's on-chain oracle, signed by
// the oracle-owner key. The trading bot-operator key is never used here:
// price authority and trade authority stay on separate credentials.
type Updater struct {
	client     *Client
	key        *ecdsa.PrivateKey
	store      *config.Store
	production bool
	gasLimit   uint64
	logger     *zap.Logger
}

// NewUpdater creates an oracle updater.
func NewUpdater(client *Client, key *ecdsa.PrivateKey, store *config.Store, production bool, gasLimit uint64, logger *zap.Logger) *Updater {
	return &Updater{
		client:     client,
		key:        key,
		store:      store,
		production: production,
		gasLimit:   gasLimit,
		logger:     logger,
	}
}

// Update submits setPrices to the pair's DEX contract. Failure is reported as
// false and logged, never returned: a lagging oracle must not stop the pair's
// cycle, the trade proceeds on the already-fetched off-chain price.
func (u *Updater) Update(ctx context.Context, base, quote string, baseToQuote, quoteToBase *big.Int) bool {
	info, ok := u.store.Pair(base, quote)
	if !ok {
		u.logger.Error("No DEX configuration found for pair",
			zap.String("pair", base+"-"+quote))
		return false
	}

	if !u.production {
		u.logger.Info("SIMULATION: oracle prices would be updated",
			zap.String("pair", base+"-"+quote),
			zap.String("base_to_quote", baseToQuote.String()),
			zap.String("quote_to_base", quoteToBase.String()))
		return true
	}

	data, err := u.client.dexABI.Pack("setPrices", baseToQuote, quoteToBase)
	if err != nil {
		u.logger.Error("Failed to encode setPrices", zap.Error(err))
		return false
	}

	receipt, err := u.client.submit(ctx, u.key, common.HexToAddress(info.DEXAddress), data, u.gasLimit)
	if err != nil {
		u.logger.Error("Failed to update oracle prices",
			zap.String("pair", base+"-"+quote), zap.Error(err))
		return false
	}
	if receipt.Status != 1 {
		u.logger.Error("Oracle price update reverted",
			zap.String("pair", base+"-"+quote),
			zap.String("tx_hash", receipt.TxHash.Hex()))
		return false
	}

	u.logger.Info("Oracle prices updated",
		zap.String("pair", base+"-"+quote),
		zap.String("tx_hash", receipt.TxHash.Hex()))
	return true
}
