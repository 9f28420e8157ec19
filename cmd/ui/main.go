package main

import (
	"fmt"
	"net/http"
	"os"

	"lazaitrader-go/internal/config"
	"lazaitrader-go/internal/journal"
	"lazaitrader-go/internal/ledger"
	"lazaitrader-go/internal/logger"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	store, err := journal.NewStore(cfg.Database.DSN)
	if err != nil {
		log.Fatal("Failed to open trade journal", zap.Error(err))
	}

	led, err := ledger.New(cfg.Files.LedgerDir, log)
	if err != nil {
		log.Fatal("Failed to open ledger directory", zap.Error(err))
	}

	mux := http.NewServeMux()
	apiHandler := NewAPIHandler(log, store, led)
	mux.HandleFunc("/api/trades", apiHandler.TradesHandler)
	mux.HandleFunc("/api/statistics", apiHandler.StatisticsHandler)
	mux.HandleFunc("/api/prices", apiHandler.PricesHandler)

	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir("web/static"))))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "web/templates/index.html")
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Info("Starting web server", zap.String("address", addr))

	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal("Web server failed", zap.Error(err))
	}
}
