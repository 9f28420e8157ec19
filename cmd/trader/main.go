package main

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lazaitrader-go/internal/chain"
	"lazaitrader-go/internal/config"
	"lazaitrader-go/internal/journal"
	"lazaitrader-go/internal/ledger"
	"lazaitrader-go/internal/logger"
	"lazaitrader-go/internal/notify"
	"lazaitrader-go/internal/pricefeed"
	"lazaitrader-go/internal/trader"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format, cfg.Logger.File)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	mode := "SIMULATION"
	if cfg.Trading.Production {
		mode = "PRODUCTION"
	}
	log.Info("Starting trader", zap.String("mode", mode))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := chain.Dial(ctx, cfg.Chain, log)
	if err != nil {
		log.Fatal("Failed to connect to chain RPC", zap.Error(err))
	}
	operatorKey, err := chain.ParseKey(cfg.Chain.BotOperatorPK)
	if err != nil {
		log.Fatal("Invalid bot operator key", zap.Error(err))
	}
	oracleKey, err := chain.ParseKey(cfg.Chain.OracleOwnerPK)
	if err != nil {
		log.Fatal("Invalid oracle owner key", zap.Error(err))
	}

	led, err := ledger.New(cfg.Files.LedgerDir, log)
	if err != nil {
		log.Fatal("Failed to open ledger directory", zap.Error(err))
	}

	var jrnl trader.Journal
	if cfg.Database.DSN != "" {
		store, err := journal.NewStore(cfg.Database.DSN)
		if err != nil {
			log.Fatal("Failed to open trade journal", zap.Error(err))
		}
		jrnl = store
	}

	notifier := notify.NewTelegram(cfg.Telegram.BotToken,
		time.Duration(cfg.Trading.HTTPTimeout)*time.Second, log)
	if notifier == nil {
		log.Info("No telegram bot token configured, notifications disabled")
	}

	runBatch := func(ctx context.Context) {
		// Config documents are reloaded per batch: the chat front end owns
		// them and may rewrite them between runs.
		store, err := config.LoadStore(cfg.Files)
		if err != nil {
			log.Error("Failed to load trading configuration", zap.Error(err))
			return
		}
		pairs := store.ValidPairs(log)
		if len(pairs) == 0 {
			log.Warn("No valid trading pairs configured")
			return
		}

		if cfg.Trading.Production {
			verifyOperators(ctx, client, store, pairs, operatorKey, log)
		}

		cache := pricefeed.NewCache(time.Duration(cfg.Trading.PriceCacheTTL) * time.Second)
		prices := pricefeed.NewService(store, cache,
			time.Duration(cfg.Trading.HTTPTimeout)*time.Second,
			cfg.Trading.RateLimit, cfg.Trading.RateLimitBurst, log)
		oracle := chain.NewUpdater(client, oracleKey, store, cfg.Trading.Production, cfg.Chain.OracleGas, log)
		executor := chain.NewExecutor(client, operatorKey, store, cfg.Trading.Production,
			cfg.Chain.ApproveGas, cfg.Chain.SwapGas, log)

		engine := trader.NewEngine(store, pairs, prices, oracle, executor, client,
			led, jrnl, notifier, time.Duration(cfg.Trading.PairDelay)*time.Second, log)
		engine.RunBatch(ctx)
	}

	if cfg.Trading.TickInterval <= 0 {
		runBatch(ctx)
		return
	}

	ticker := time.NewTicker(time.Duration(cfg.Trading.TickInterval) * time.Second)
	defer ticker.Stop()
	runBatch(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Info("Shutting down trader")
			return
		case <-ticker.C:
			runBatch(ctx)
		}
	}
}

// verifyOperators checks that each traded SCW actually registers the bot
// operator key. A mismatch is reported up front; the pair itself still runs
// and fails at execution time rather than being silently skipped.
func verifyOperators(ctx context.Context, client *chain.Client, store *config.Store, pairs []config.PairConfig, key *ecdsa.PrivateKey, log *zap.Logger) {
	seen := make(map[string]bool)
	for _, pc := range pairs {
		user, ok := store.User(pc.UserID)
		if !ok || user.SCWAddress == "" || seen[user.SCWAddress] {
			continue
		}
		seen[user.SCWAddress] = true
		if err := client.VerifyOperator(ctx, user.SCWAddress, key); err != nil {
			log.Error("SCW operator verification failed",
				zap.String("user", pc.UserID),
				zap.String("scw", user.SCWAddress),
				zap.Error(err))
		}
	}
}
