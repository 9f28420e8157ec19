package pricefeed

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"lazaitrader-go/internal/config"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrUnavailable is returned when the configured upstream feed fails, returns
// a malformed payload, or the pair's price source type is unrecognized.
var ErrUnavailable = errors.New("price unavailable")

// Source fetches the current USD price for a pair from one upstream feed shape.
type Source interface {
	// FetchUSD returns the USD price of the pair's non-pegged asset.
	FetchUSD(ctx context.Context, info config.PairInfo) (float64, error)
}

// DexScreenerSource reads a DEX-pair style JSON response exposing pair.priceUsd.
type DexScreenerSource struct {
	client  *resty.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewDexScreenerSource creates a dexscreener-shaped price source.
func NewDexScreenerSource(client *resty.Client, limiter *rate.Limiter, logger *zap.Logger) *DexScreenerSource {
	return &DexScreenerSource{client: client, limiter: limiter, logger: logger}
}

var _ Source = (*DexScreenerSource)(nil)

type dexScreenerResponse struct {
	Pair struct {
		PriceUsd string `json:"priceUsd"`
	} `json:"pair"`
}

// FetchUSD fetches the pair's USD price from the configured dexscreener endpoint.
func (s *DexScreenerSource) FetchUSD(ctx context.Context, info config.PairInfo) (float64, error) {
	var out dexScreenerResponse
	req := s.client.R().SetContext(ctx).SetResult(&out)
	if _, err := doRequest(ctx, s.client, s.limiter, s.logger, req, info.PriceAPI); err != nil {
		return 0, fmt.Errorf("%w: dexscreener: %v", ErrUnavailable, err)
	}
	price, err := strconv.ParseFloat(out.Pair.PriceUsd, 64)
	if err != nil || price <= 0 {
		return 0, fmt.Errorf("%w: dexscreener returned malformed priceUsd %q", ErrUnavailable, out.Pair.PriceUsd)
	}
	return price, nil
}

// CoinGeckoSource reads a simple-asset JSON response exposing <assetKey>.usd.
type CoinGeckoSource struct {
	client  *resty.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewCoinGeckoSource creates a coingecko-shaped price source.
func NewCoinGeckoSource(client *resty.Client, limiter *rate.Limiter, logger *zap.Logger) *CoinGeckoSource {
	return &CoinGeckoSource{client: client, limiter: limiter, logger: logger}
}

var _ Source = (*CoinGeckoSource)(nil)

// FetchUSD fetches the asset's USD price from the configured coingecko endpoint.
func (s *CoinGeckoSource) FetchUSD(ctx context.Context, info config.PairInfo) (float64, error) {
	var out map[string]map[string]float64
	req := s.client.R().SetContext(ctx).SetResult(&out)
	if _, err := doRequest(ctx, s.client, s.limiter, s.logger, req, info.PriceAPI); err != nil {
		return 0, fmt.Errorf("%w: coingecko: %v", ErrUnavailable, err)
	}
	asset, ok := out[info.AssetKey]
	if !ok {
		return 0, fmt.Errorf("%w: coingecko response missing asset key %q", ErrUnavailable, info.AssetKey)
	}
	price, ok := asset["usd"]
	if !ok || price <= 0 {
		return 0, fmt.Errorf("%w: coingecko response missing usd price for %q", ErrUnavailable, info.AssetKey)
	}
	return price, nil
}

// doRequest executes a GET with rate limiting and retry logic.
func doRequest(ctx context.Context, client *resty.Client, limiter *rate.Limiter, logger *zap.Logger, req *resty.Request, url string) (*resty.Response, error) {
	var resp *resty.Response
	var err error
	const maxRetries = 3

	for i := 0; i < maxRetries; i++ {
		// Wait for the rate limiter
		if err := limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait failed: %w", err)
		}

		logger.Debug("Fetching price", zap.String("url", url))
		resp, err = req.Execute(http.MethodGet, url)

		if err == nil && !resp.IsError() {
			return resp, nil // Success
		}

		// Analyze error and decide whether to retry
		shouldRetry := false
		var retryAfter time.Duration

		if resp != nil {
			statusCode := resp.StatusCode()
			if statusCode == http.StatusTooManyRequests {
				shouldRetry = true
				retryAfterHeader := resp.Header().Get("Retry-After")
				if seconds, err := strconv.Atoi(retryAfterHeader); err == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			} else if statusCode >= 500 { // Server errors
				shouldRetry = true
			}
		} else { // Network or other client-side errors
			shouldRetry = true
		}

		if !shouldRetry {
			return nil, fmt.Errorf("request failed with status %s: %s", resp.Status(), resp.String())
		}

		if retryAfter == 0 {
			// Exponential backoff: 1s, 2s, 4s
			retryAfter = time.Duration(math.Pow(2, float64(i))) * time.Second
		}

		logger.Warn("Price request failed, retrying...",
			zap.Int("attempt", i+1),
			zap.Duration("retry_after", retryAfter),
			zap.Error(err),
		)

		select {
		case <-time.After(retryAfter):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, err)
}
