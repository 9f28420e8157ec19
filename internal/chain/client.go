// Package chain wraps the JSON-RPC surface the trader needs: SCW view reads,
// and signed single-function transactions against the SCW and DEX contracts.
package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"lazaitrader-go/internal/config"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Error kinds callers can match with errors.Is.
var (
	ErrApprovalFailed = errors.New("approval failed")
	ErrSwapFailed     = errors.New("swap failed")
	ErrReceiptTimeout = errors.New("receipt wait timed out")
)

// Only the entry points the bot is whitelisted for: balances and the two
// trade functions on the SCW, setPrices and swap on the DEX.
const scwABIJSON = `[
  {"inputs":[{"name":"_token","type":"address"}],"name":"getTokenBalance","outputs":[{"name":"balance","type":"uint256"}],"stateMutability":"view","type":"function"},
  {"inputs":[{"name":"_token","type":"address"},{"name":"_dex","type":"address"},{"name":"_amount","type":"uint256"}],"name":"approveToken","outputs":[],"stateMutability":"nonpayable","type":"function"},
  {"inputs":[{"name":"_dex","type":"address"},{"name":"_data","type":"bytes"}],"name":"executeTrade","outputs":[{"name":"success","type":"bool"},{"name":"returnData","type":"bytes"}],"stateMutability":"nonpayable","type":"function"},
  {"inputs":[],"name":"botOperator","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"}
]`

const dexABIJSON = `[
  {"inputs":[{"name":"_baseToQuote","type":"uint256"},{"name":"_quoteToBase","type":"uint256"}],"name":"setPrices","outputs":[],"stateMutability":"nonpayable","type":"function"},
  {"inputs":[{"name":"tokenInAddr","type":"address"},{"name":"amountIn","type":"uint256"}],"name":"swap","outputs":[],"stateMutability":"nonpayable","type":"function"}
]`

// Backend is the subset of ethclient the Client uses; tests substitute it.
type Backend interface {
	bind.DeployBackend
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Client issues view calls and signed transactions over one RPC connection.
// The shared bot-operator and oracle-owner accounts are sequenced by fetching
// a fresh pending nonce immediately before each signing.
type Client struct {
	backend        Backend
	chainID        *big.Int
	scwABI         abi.ABI
	dexABI         abi.ABI
	defaultGas     *big.Int
	receiptTimeout time.Duration
	limiter        *rate.Limiter
	logger         *zap.Logger
}

// Dial connects to the RPC endpoint and verifies the chain id.
func Dial(ctx context.Context, cfg config.Chain, logger *zap.Logger) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dialing rpc: %w", err)
	}
	chainID, err := eth.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading chain id: %w", err)
	}
	if cfg.ChainID != 0 && chainID.Int64() != cfg.ChainID {
		return nil, fmt.Errorf("chain id mismatch: rpc reports %d, config expects %d", chainID, cfg.ChainID)
	}
	return NewClient(eth, chainID, cfg, logger)
}

// NewClient builds a client over an existing backend; used by Dial and tests.
func NewClient(backend Backend, chainID *big.Int, cfg config.Chain, logger *zap.Logger) (*Client, error) {
	scwABI, err := abi.JSON(strings.NewReader(scwABIJSON))
	if err != nil {
		return nil, fmt.Errorf("parsing scw abi: %w", err)
	}
	dexABI, err := abi.JSON(strings.NewReader(dexABIJSON))
	if err != nil {
		return nil, fmt.Errorf("parsing dex abi: %w", err)
	}
	return &Client{
		backend:        backend,
		chainID:        chainID,
		scwABI:         scwABI,
		dexABI:         dexABI,
		defaultGas:     new(big.Int).Mul(big.NewInt(cfg.GasPriceGwei), big.NewInt(1_000_000_000)),
		receiptTimeout: time.Duration(cfg.ReceiptTimeout) * time.Second,
		limiter:        rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst),
		logger:         logger,
	}, nil
}

// ParseKey loads a hex-encoded private key, with or without 0x prefix.
func ParseKey(hexKey string) (*ecdsa.PrivateKey, error) {
	return crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
}

// submit signs and sends a single-function call and waits for its receipt.
// The receipt wait has its own timeout, distinct from the RPC HTTP timeout.
func (c *Client) submit(ctx context.Context, key *ecdsa.PrivateKey, to common.Address, data []byte, gasLimit uint64) (*types.Receipt, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	from := crypto.PubkeyToAddress(key.PublicKey)
	nonce, err := c.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("fetching nonce: %w", err)
	}

	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		c.logger.Warn("eth_gasPrice failed, using configured default",
			zap.String("default", c.defaultGas.String()), zap.Error(err))
		gasPrice = c.defaultGas
	}

	tx := types.NewTransaction(nonce, to, big.NewInt(0), gasLimit, gasPrice, data)
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), key)
	if err != nil {
		return nil, fmt.Errorf("signing transaction: %w", err)
	}
	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("sending transaction: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, c.receiptTimeout)
	defer cancel()
	receipt, err := bind.WaitMined(waitCtx, c.backend, signed)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: tx %s", ErrReceiptTimeout, signed.Hash().Hex())
		}
		return nil, fmt.Errorf("waiting for receipt of %s: %w", signed.Hash().Hex(), err)
	}
	return receipt, nil
}

// view performs an eth_call against the SCW ABI and unpacks the outputs.
func (c *Client) view(ctx context.Context, to common.Address, method string, args ...interface{}) ([]interface{}, error) {
	data, err := c.scwABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("packing %s: %w", method, err)
	}
	out, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", method, err)
	}
	return c.scwABI.Unpack(method, out)
}

// TokenBalance reads one token balance held by a user's SCW, in raw units.
func (c *Client) TokenBalance(ctx context.Context, scw, token common.Address) (*big.Int, error) {
	out, err := c.view(ctx, scw, "getTokenBalance", token)
	if err != nil {
		return nil, err
	}
	bal, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected getTokenBalance return type %T", out[0])
	}
	return bal, nil
}

// Balances reads both sides of a pair from the SCW, scaled to float by each
// token's configured decimals. A read failure degrades to zero balances so
// the cycle lands in the insufficient-funds no-trade path instead of aborting.
func (c *Client) Balances(ctx context.Context, scwAddr string, baseTok, quoteTok config.Token) (float64, float64, error) {
	scw := common.HexToAddress(scwAddr)
	baseRaw, err := c.TokenBalance(ctx, scw, common.HexToAddress(baseTok.Address))
	if err != nil {
		c.logger.Error("Failed to read SCW base balance", zap.String("scw", scwAddr), zap.Error(err))
		return 0, 0, err
	}
	quoteRaw, err := c.TokenBalance(ctx, scw, common.HexToAddress(quoteTok.Address))
	if err != nil {
		c.logger.Error("Failed to read SCW quote balance", zap.String("scw", scwAddr), zap.Error(err))
		return 0, 0, err
	}
	return fromUnits(baseRaw, baseTok.Decimals), fromUnits(quoteRaw, quoteTok.Decimals), nil
}

// VerifyOperator checks that the SCW's registered bot operator matches the
// address derived from the given key.
func (c *Client) VerifyOperator(ctx context.Context, scwAddr string, key *ecdsa.PrivateKey) error {
	out, err := c.view(ctx, common.HexToAddress(scwAddr), "botOperator")
	if err != nil {
		return err
	}
	operator, ok := out[0].(common.Address)
	if !ok {
		return fmt.Errorf("unexpected botOperator return type %T", out[0])
	}
	expected := crypto.PubkeyToAddress(key.PublicKey)
	if operator != expected {
		return fmt.Errorf("scw %s bot operator mismatch: expected %s, got %s",
			scwAddr, expected.Hex(), operator.Hex())
	}
	return nil
}

// toUnits converts a float amount into raw token units for the given decimals,
// rounding to the nearest unit.
func toUnits(amount float64, decimals int) *big.Int {
	scale := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	f := new(big.Float).Mul(big.NewFloat(amount), scale)
	f.Add(f, big.NewFloat(0.5))
	i, _ := f.Int(nil)
	return i
}

// fromUnits converts raw token units into a float amount.
func fromUnits(raw *big.Int, decimals int) float64 {
	scale := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(raw), scale).Float64()
	return f
}
