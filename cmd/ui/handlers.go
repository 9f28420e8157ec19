package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"lazaitrader-go/internal/journal"
	"lazaitrader-go/internal/ledger"

	"go.uber.org/zap"
)

const defaultTradeLimit = 100

// APIHandler holds dependencies for the API endpoints.
type APIHandler struct {
	log    *zap.Logger
	store  *journal.Store
	ledger *ledger.Ledger
}

// NewAPIHandler creates a new APIHandler.
func NewAPIHandler(log *zap.Logger, store *journal.Store, led *ledger.Ledger) *APIHandler {
	return &APIHandler{log: log, store: store, ledger: led}
}

// TradesHandler returns recent trades, newest first. Optional query params:
// user (filter) and limit.
func (h *APIHandler) TradesHandler(w http.ResponseWriter, r *http.Request) {
	limit := defaultTradeLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	trades, err := h.store.Recent(r.URL.Query().Get("user"), limit)
	if err != nil {
		h.log.Error("Failed to get trades from journal", zap.Error(err))
		http.Error(w, "Failed to get trades", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(trades)
}

// StatisticsHandler returns trade counts and volume, optionally per user.
func (h *APIHandler) StatisticsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Statistics(r.URL.Query().Get("user"))
	if err != nil {
		h.log.Error("Failed to calculate statistics", zap.Error(err))
		http.Error(w, "Failed to calculate statistics", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

// PricesHandler serves the price series for one (pair, user) from the CSV
// ledger. Query params: pair=BASE-QUOTE, user.
func (h *APIHandler) PricesHandler(w http.ResponseWriter, r *http.Request) {
	pair := r.URL.Query().Get("pair")
	user := r.URL.Query().Get("user")
	base, quote, ok := strings.Cut(pair, "-")
	if !ok || user == "" {
		http.Error(w, "pair=BASE-QUOTE and user are required", http.StatusBadRequest)
		return
	}

	points, err := h.ledger.Prices(base, quote, user)
	if err != nil {
		h.log.Error("Failed to read price series",
			zap.String("pair", pair), zap.String("user", user), zap.Error(err))
		http.Error(w, "Failed to read price series", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(points)
}
