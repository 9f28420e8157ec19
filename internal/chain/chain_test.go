package chain

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"lazaitrader-go/internal/config"
	"lazaitrader-go/internal/ledger"
)

func writeJSONFile(t *testing.T, path string, v interface{}) {
	t.Helper()
	data, err := json.Marshal(v)
	assert.NoError(t, err)
	assert.NoError(t, os.WriteFile(path, data, 0o644))
}

func testStore(t *testing.T) *config.Store {
	t.Helper()
	dir := t.TempDir()
	files := config.Files{
		Users:  filepath.Join(dir, "users.json"),
		Tokens: filepath.Join(dir, "tokens.json"),
		Pairs:  filepath.Join(dir, "pairs.json"),
	}
	writeJSONFile(t, files.Users, map[string]interface{}{
		"users": map[string]interface{}{
			"u1": map[string]interface{}{
				"user_wallet": "0x1000000000000000000000000000000000000001",
				"scw_address": "0x2000000000000000000000000000000000000002",
				"username":    "alice",
			},
		},
	})
	writeJSONFile(t, files.Tokens, map[string]interface{}{
		"tokens": map[string]interface{}{
			"METIS": map[string]interface{}{"address": "0x3000000000000000000000000000000000000003", "decimals": 18},
			"USDC":  map[string]interface{}{"address": "0x4000000000000000000000000000000000000004", "decimals": 6},
		},
		"pairs": map[string]interface{}{
			"METIS-USDC": map[string]interface{}{
				"dex_address":     "0x5000000000000000000000000000000000000005",
				"price_source":    "dexscreener",
				"price_api":       "http://localhost/pair",
				"usd_pegged_side": "quote",
			},
		},
	})
	writeJSONFile(t, files.Pairs, map[string]interface{}{"trading_pairs": []interface{}{}})

	store, err := config.LoadStore(files)
	assert.NoError(t, err)
	return store
}

func testClient(t *testing.T) *Client {
	t.Helper()
	client, err := NewClient(nil, big.NewInt(1), config.Chain{
		GasPriceGwei:   5,
		ReceiptTimeout: 1,
		RateLimit:      100,
		RateLimitBurst: 1,
	}, zap.NewNop())
	assert.NoError(t, err)
	return client
}

func TestParseKey(t *testing.T) {
	key, err := crypto.GenerateKey()
	assert.NoError(t, err)
	hexKey := "0x" + hex.EncodeToString(crypto.FromECDSA(key))

	t.Run("With 0x prefix", func(t *testing.T) {
		parsed, err := ParseKey(hexKey)
		assert.NoError(t, err)
		assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), crypto.PubkeyToAddress(parsed.PublicKey))
	})

	t.Run("Without prefix", func(t *testing.T) {
		parsed, err := ParseKey(hexKey[2:])
		assert.NoError(t, err)
		assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), crypto.PubkeyToAddress(parsed.PublicKey))
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := ParseKey("not-a-key")
		assert.Error(t, err)
	})
}

func TestUnitsConversion(t *testing.T) {
	t.Run("Round trip 18 decimals", func(t *testing.T) {
		raw := toUnits(1.5, 18)
		assert.Equal(t, "1500000000000000000", raw.String())
		assert.InDelta(t, 1.5, fromUnits(raw, 18), 1e-12)
	})

	t.Run("Round trip 6 decimals", func(t *testing.T) {
		raw := toUnits(123.456789, 6)
		assert.Equal(t, "123456789", raw.String())
		assert.InDelta(t, 123.456789, fromUnits(raw, 6), 1e-9)
	})

	t.Run("Zero", func(t *testing.T) {
		assert.Equal(t, "0", toUnits(0, 18).String())
	})
}

func TestExecutor_SimulationSkipsChain(t *testing.T) {
	store := testStore(t)
	key, err := crypto.GenerateKey()
	assert.NoError(t, err)
	// Simulation mode: the nil backend is never touched.
	exec := NewExecutor(testClient(t), key, store, false, 200_000, 500_000, zap.NewNop())
	user, _ := store.User("u1")

	result, err := exec.Execute(context.Background(), "METIS", "USDC",
		ledger.ActionSell, 5.0, 106.0, user)

	assert.NoError(t, err)
	assert.Equal(t, StatusSimulation, result.Status)
	assert.Equal(t, SimulationTxHash, result.TxHash)
	assert.Equal(t, "METIS", result.TokenIn)
	assert.Equal(t, "USDC", result.TokenOut)
}

func TestExecutor_BuySwapsTokenDirection(t *testing.T) {
	store := testStore(t)
	key, err := crypto.GenerateKey()
	assert.NoError(t, err)
	exec := NewExecutor(testClient(t), key, store, false, 200_000, 500_000, zap.NewNop())
	user, _ := store.User("u1")

	result, err := exec.Execute(context.Background(), "METIS", "USDC",
		ledger.ActionBuy, 5.0, 106.0, user)

	assert.NoError(t, err)
	assert.Equal(t, "USDC", result.TokenIn)
	assert.Equal(t, "METIS", result.TokenOut)
}

func TestExecutor_RejectsUnknownPair(t *testing.T) {
	store := testStore(t)
	key, err := crypto.GenerateKey()
	assert.NoError(t, err)
	exec := NewExecutor(testClient(t), key, store, false, 200_000, 500_000, zap.NewNop())
	user, _ := store.User("u1")

	_, err = exec.Execute(context.Background(), "WETH", "USDC",
		ledger.ActionSell, 5.0, 106.0, user)

	assert.Error(t, err)
}

func TestUpdater_SimulationReportsSuccess(t *testing.T) {
	store := testStore(t)
	key, err := crypto.GenerateKey()
	assert.NoError(t, err)
	u := NewUpdater(testClient(t), key, store, false, 200_000, zap.NewNop())

	ok := u.Update(context.Background(), "METIS", "USDC",
		big.NewInt(45_000_000), big.NewInt(22_000_000))

	assert.True(t, ok)
}

func TestUpdater_UnknownPairFailsSoft(t *testing.T) {
	store := testStore(t)
	key, err := crypto.GenerateKey()
	assert.NoError(t, err)
	u := NewUpdater(testClient(t), key, store, false, 200_000, zap.NewNop())

	ok := u.Update(context.Background(), "WETH", "USDC", big.NewInt(1), big.NewInt(1))

	assert.False(t, ok)
}
