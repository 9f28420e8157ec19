package pricefeed

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"lazaitrader-go/internal/config"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Quote is one price observation for a trading pair.
type Quote struct {
	Date string // yymmdd
	Time string // hhmmss
	// PriceUSD is the upstream feed's raw USD price of the non-pegged asset.
	PriceUSD float64
	// Price is the pair price (base asset in quote terms) after applying the
	// pair's usd_pegged_side direction rule.
	Price float64
	// BaseToQuote/QuoteToBase are 1e18-scaled ratios for on-chain consumption.
	BaseToQuote *big.Int
	QuoteToBase *big.Int
}

// Service resolves a pair's configured source, applies caching and computes
// the scaled on-chain prices.
type Service struct {
	store   *config.Store
	cache   *Cache
	sources map[string]Source
	logger  *zap.Logger
}

// NewService creates a price service over the given configuration store.
// Both supported provider shapes share one resty client and one rate limiter.
func NewService(store *config.Store, cache *Cache, httpTimeout time.Duration, rl float64, burst int, logger *zap.Logger) *Service {
	client := resty.New().SetTimeout(httpTimeout)
	limiter := rate.NewLimiter(rate.Limit(rl), burst)
	return &Service{
		store: store,
		cache: cache,
		sources: map[string]Source{
			"dexscreener": NewDexScreenerSource(client, limiter, logger),
			"coingecko":   NewCoinGeckoSource(client, limiter, logger),
		},
		logger: logger,
	}
}

// NewServiceWithSources wires explicit sources; used by tests.
func NewServiceWithSources(store *config.Store, cache *Cache, sources map[string]Source, logger *zap.Logger) *Service {
	return &Service{store: store, cache: cache, sources: sources, logger: logger}
}

// Quote returns the current quote for base/quote. The timestamp is always
// fresh; only the USD price itself is served from cache within the TTL.
func (s *Service) Quote(ctx context.Context, base, quote string) (Quote, error) {
	info, ok := s.store.Pair(base, quote)
	if !ok {
		return Quote{}, fmt.Errorf("%w: no pair wiring for %s-%s", ErrUnavailable, base, quote)
	}

	symbol := base + "_" + quote
	priceUSD, cached := s.cache.Get(symbol)
	if !cached {
		src, ok := s.sources[info.PriceSource]
		if !ok {
			return Quote{}, fmt.Errorf("%w: unsupported price source %q for %s-%s", ErrUnavailable, info.PriceSource, base, quote)
		}
		var err error
		priceUSD, err = src.FetchUSD(ctx, info)
		if err != nil {
			return Quote{}, err
		}
		s.cache.Set(symbol, priceUSD)
		s.logger.Info("Fetched price",
			zap.String("pair", base+"-"+quote),
			zap.String("source", info.PriceSource),
			zap.Float64("price_usd", priceUSD))
	}

	// The pegged side determines which direction the feed price points.
	pairPrice := priceUSD
	if info.USDPeggedSide == "base" {
		pairPrice = 1.0 / priceUSD
	}

	now := time.Now()
	return Quote{
		Date:        now.Format("060102"),
		Time:        now.Format("150405"),
		PriceUSD:    priceUSD,
		Price:       pairPrice,
		BaseToQuote: scale1e18(pairPrice),
		QuoteToBase: scale1e18(1.0 / pairPrice),
	}, nil
}

// scale1e18 converts a float price into the contract's 1e18 fixed point.
func scale1e18(v float64) *big.Int {
	f := new(big.Float).Mul(big.NewFloat(v), big.NewFloat(1e18))
	i, _ := f.Int(nil)
	return i
}
