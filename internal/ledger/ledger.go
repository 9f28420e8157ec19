// Package ledger persists the append-only price and trade series, one pair of
// CSV files per (pair, user). The files are the authoritative audit artifact:
// the chat front end reads them directly for charting, so the layout (header
// row, zero-padded ids, 10-decimal prices) is an external contract.
package ledger

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"go.uber.org/zap"
)

// Trade actions recorded in the trade series.
const (
	ActionBuy  = "BUY"
	ActionSell = "SELL"
)

// TradeRecord is one executed trade, written once and never mutated.
type TradeRecord struct {
	Base            string
	Quote           string
	UserID          string
	Date            string
	Time            string
	Action          string
	Price           float64
	Quantity        float64
	BaseBalance     float64
	QuoteBalance    float64
	BaseUSDPrice    float64
	QuoteUSDPrice   float64
	TotalBalanceUSD float64
	Consecutive     int
	TradePercentage float64
	TxHash          string
}

// Ledger owns the per-(pair,user) series files under a root directory.
// Appends for the same key are serialized: the read-next-id-then-append
// sequence is not atomic, so each key gets its own lock.
type Ledger struct {
	dir    string
	logger *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a ledger rooted at dir, creating the directory if needed.
func New(dir string, logger *zap.Logger) (*Ledger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating ledger dir: %w", err)
	}
	return &Ledger{dir: dir, logger: logger, locks: make(map[string]*sync.Mutex)}, nil
}

func (l *Ledger) lockFor(key string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk, ok := l.locks[key]
	if !ok {
		lk = &sync.Mutex{}
		l.locks[key] = lk
	}
	return lk
}

func (l *Ledger) priceFile(base, quote, user string) string {
	return filepath.Join(l.dir, fmt.Sprintf("%s_%s_%s.csv", base, quote, user))
}

func (l *Ledger) tradeFile(base, quote, user string) string {
	return filepath.Join(l.dir, fmt.Sprintf("%s_%s_%s_trades.csv", base, quote, user))
}

// nextID returns the next 1-based id for a series by reading its last row.
// A missing or malformed series yields 1.
func nextID(path string) int {
	rows, err := readRows(path)
	if err != nil || len(rows) < 2 {
		return 1
	}
	last := rows[len(rows)-1]
	if len(last) == 0 {
		return 1
	}
	id, err := strconv.Atoi(last[0])
	if err != nil {
		return 1
	}
	return id + 1
}

func readRows(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	return r.ReadAll()
}

func appendRows(path string, header []string, row []string) error {
	_, statErr := os.Stat(path)
	isNew := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if isNew {
		if err := w.Write(header); err != nil {
			return err
		}
	}
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

// AppendPrice appends one price observation. isBase marks the observation as
// the new reference price for subsequent evaluations.
func (l *Ledger) AppendPrice(base, quote, user, date, timeStr string, price float64, isBase bool) error {
	fn := l.priceFile(base, quote, user)
	lk := l.lockFor(fn)
	lk.Lock()
	defer lk.Unlock()

	flag := "0"
	if isBase {
		flag = "1"
	}
	row := []string{
		fmt.Sprintf("%06d", nextID(fn)),
		date, timeStr,
		fmt.Sprintf("%.10f", price),
		flag,
	}
	header := []string{"ID", "Date", "Time", "Price", "Base"}
	if err := appendRows(fn, header, row); err != nil {
		return fmt.Errorf("appending price row: %w", err)
	}
	return nil
}

// LastBasePrice scans the price series for the most recent row with Base=1.
// Read or parse failures degrade to "no data": a corrupted series forces
// base-price reinitialization instead of blocking trading.
func (l *Ledger) LastBasePrice(base, quote, user string) (float64, bool) {
	fn := l.priceFile(base, quote, user)
	lk := l.lockFor(fn)
	lk.Lock()
	defer lk.Unlock()

	rows, err := readRows(fn)
	if err != nil || len(rows) < 2 {
		return 0, false
	}
	for i := len(rows) - 1; i >= 1; i-- {
		r := rows[i]
		if len(r) > 4 && r[4] == "1" {
			price, err := strconv.ParseFloat(r[3], 64)
			if err != nil {
				l.logger.Warn("Malformed base price row, ignoring series",
					zap.String("file", fn), zap.Int("row", i))
				return 0, false
			}
			return price, true
		}
	}
	return 0, false
}

// LastTrade returns the last recorded action and its consecutive streak count.
// An empty, absent or malformed series yields ("", 0) and never fails.
func (l *Ledger) LastTrade(base, quote, user string) (string, int) {
	fn := l.tradeFile(base, quote, user)
	lk := l.lockFor(fn)
	lk.Lock()
	defer lk.Unlock()

	rows, err := readRows(fn)
	if err != nil || len(rows) < 2 {
		return "", 0
	}
	last := rows[len(rows)-1]
	if len(last) < 17 {
		if len(last) > 4 {
			return last[4], 0
		}
		return "", 0
	}
	count, err := strconv.Atoi(last[15])
	if err != nil {
		l.logger.Warn("Malformed consecutive count in trade series",
			zap.String("file", fn))
		return last[4], 0
	}
	return last[4], count
}

// PricePoint is one row of the price series, as served to the chart UI.
type PricePoint struct {
	ID     string  `json:"id"`
	Date   string  `json:"date"`
	Time   string  `json:"time"`
	Price  float64 `json:"price"`
	IsBase bool    `json:"is_base"`
}

// Prices reads the full price series for a (pair, user). A missing series
// yields an empty slice; malformed rows are skipped.
func (l *Ledger) Prices(base, quote, user string) ([]PricePoint, error) {
	fn := l.priceFile(base, quote, user)
	lk := l.lockFor(fn)
	lk.Lock()
	defer lk.Unlock()

	rows, err := readRows(fn)
	if os.IsNotExist(err) {
		return []PricePoint{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading price series: %w", err)
	}

	points := make([]PricePoint, 0, len(rows))
	for i, r := range rows {
		if i == 0 || len(r) < 5 {
			continue
		}
		price, err := strconv.ParseFloat(r[3], 64)
		if err != nil {
			continue
		}
		points = append(points, PricePoint{
			ID:     r[0],
			Date:   r[1],
			Time:   r[2],
			Price:  price,
			IsBase: r[4] == "1",
		})
	}
	return points, nil
}

// AppendTrade appends one trade record with derived USD values.
func (l *Ledger) AppendTrade(rec TradeRecord) error {
	fn := l.tradeFile(rec.Base, rec.Quote, rec.UserID)
	lk := l.lockFor(fn)
	lk.Lock()
	defer lk.Unlock()

	baseValueUSD := rec.BaseBalance * rec.BaseUSDPrice
	quoteValueUSD := rec.QuoteBalance * rec.QuoteUSDPrice
	var tradeValueUSD float64
	if rec.Action == ActionSell {
		tradeValueUSD = rec.Quantity * rec.Price * rec.QuoteUSDPrice
	} else {
		tradeValueUSD = rec.Quantity * rec.BaseUSDPrice
	}

	row := []string{
		fmt.Sprintf("%06d", nextID(fn)),
		rec.Date, rec.Time, rec.UserID,
		rec.Action,
		fmt.Sprintf("%.10f", rec.Price),
		fmt.Sprintf("%.10f", rec.Quantity),
		fmt.Sprintf("%.10f", rec.BaseBalance),
		fmt.Sprintf("%.10f", rec.QuoteBalance),
		fmt.Sprintf("%.10f", rec.BaseUSDPrice),
		fmt.Sprintf("%.10f", rec.QuoteUSDPrice),
		fmt.Sprintf("%.2f", baseValueUSD),
		fmt.Sprintf("%.2f", quoteValueUSD),
		fmt.Sprintf("%.2f", tradeValueUSD),
		fmt.Sprintf("%.2f", rec.TotalBalanceUSD),
		strconv.Itoa(rec.Consecutive),
		fmt.Sprintf("%.10f", rec.TradePercentage),
		rec.TxHash,
	}
	header := []string{
		"ID", "Date", "Time", "UserID", "Action",
		"Price", "Quantity",
		rec.Base + "_Balance", rec.Quote + "_Balance",
		rec.Base + "_USD_Price", rec.Quote + "_USD_Price",
		rec.Base + "_USD_Value", rec.Quote + "_USD_Value",
		"Trade_USD_Value", "Total_Balance_USD",
		"Consecutive_Count", "Actual_Trade_Percentage", "TX_Hash",
	}
	if err := appendRows(fn, header, row); err != nil {
		return fmt.Errorf("appending trade row: %w", err)
	}
	return nil
}
