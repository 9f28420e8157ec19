package ledger

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := New(t.TempDir(), zap.NewNop())
	assert.NoError(t, err)
	return l
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	assert.NoError(t, err)
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	assert.NoError(t, err)
	return rows
}

func TestAppendPrice_IDsAreSequentialAndZeroPadded(t *testing.T) {
	l := newTestLedger(t)

	for i := 0; i < 3; i++ {
		err := l.AppendPrice("METIS", "USDC", "alice", "260828", "120000", 45.5, i == 0)
		assert.NoError(t, err)
	}

	rows := readCSV(t, filepath.Join(l.dir, "METIS_USDC_alice.csv"))
	assert.Len(t, rows, 4) // header + 3 rows
	assert.Equal(t, []string{"ID", "Date", "Time", "Price", "Base"}, rows[0])
	assert.Equal(t, "000001", rows[1][0])
	assert.Equal(t, "000002", rows[2][0])
	assert.Equal(t, "000003", rows[3][0])
	assert.Equal(t, "45.5000000000", rows[1][3])
	assert.Equal(t, "1", rows[1][4])
	assert.Equal(t, "0", rows[2][4])
}

func TestLastBasePrice(t *testing.T) {
	l := newTestLedger(t)

	t.Run("Missing series", func(t *testing.T) {
		_, ok := l.LastBasePrice("METIS", "USDC", "alice")
		assert.False(t, ok)
	})

	t.Run("Returns most recent base row", func(t *testing.T) {
		assert.NoError(t, l.AppendPrice("METIS", "USDC", "alice", "260828", "120000", 100.0, true))
		assert.NoError(t, l.AppendPrice("METIS", "USDC", "alice", "260828", "120100", 101.0, false))
		assert.NoError(t, l.AppendPrice("METIS", "USDC", "alice", "260828", "120200", 106.0, true))
		assert.NoError(t, l.AppendPrice("METIS", "USDC", "alice", "260828", "120300", 107.0, false))

		price, ok := l.LastBasePrice("METIS", "USDC", "alice")
		assert.True(t, ok)
		assert.InDelta(t, 106.0, price, 1e-9)
	})

	t.Run("Series are isolated per user", func(t *testing.T) {
		_, ok := l.LastBasePrice("METIS", "USDC", "bob")
		assert.False(t, ok)
	})
}

func TestTradeRoundTrip(t *testing.T) {
	l := newTestLedger(t)

	rec := TradeRecord{
		Base: "METIS", Quote: "USDC", UserID: "alice",
		Date: "260828", Time: "120000",
		Action:          ActionSell,
		Price:           106.0,
		Quantity:        5.0,
		BaseBalance:     5.0,
		QuoteBalance:    630.0,
		BaseUSDPrice:    106.0,
		QuoteUSDPrice:   1.0,
		TotalBalanceUSD: 1160.0,
		Consecutive:     2,
		TradePercentage: 0.605,
		TxHash:          "0xabc",
	}
	assert.NoError(t, l.AppendTrade(rec))

	action, streak := l.LastTrade("METIS", "USDC", "alice")
	assert.Equal(t, ActionSell, action)
	assert.Equal(t, 2, streak)

	rows := readCSV(t, filepath.Join(l.dir, "METIS_USDC_alice_trades.csv"))
	assert.Len(t, rows, 2)
	assert.Equal(t, "METIS_Balance", rows[0][7])
	assert.Equal(t, "USDC_Balance", rows[0][8])
	assert.Equal(t, "000001", rows[1][0])
	// SELL trade value = qty * price * quoteUSD = 5 * 106 * 1.
	assert.Equal(t, "530.00", rows[1][13])
	assert.Equal(t, "0xabc", rows[1][17])
}

func TestLastTrade_DegradesOnMissingOrMalformedSeries(t *testing.T) {
	l := newTestLedger(t)

	t.Run("Missing series", func(t *testing.T) {
		action, streak := l.LastTrade("METIS", "USDC", "alice")
		assert.Empty(t, action)
		assert.Zero(t, streak)
	})

	t.Run("Short row yields action with zero streak", func(t *testing.T) {
		path := filepath.Join(l.dir, "METIS_USDC_alice_trades.csv")
		content := "ID,Date,Time,UserID,Action\n000001,260828,120000,alice,BUY\n"
		assert.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		action, streak := l.LastTrade("METIS", "USDC", "alice")
		assert.Equal(t, ActionBuy, action)
		assert.Zero(t, streak)
	})
}

func TestNextID_MalformedSeriesRestartsAtOne(t *testing.T) {
	l := newTestLedger(t)
	path := filepath.Join(l.dir, "METIS_USDC_alice.csv")
	content := "ID,Date,Time,Price,Base\nnot-a-number,260828,120000,1.0,1\n"
	assert.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	// Append still works; the id sequence restarts rather than failing.
	assert.NoError(t, l.AppendPrice("METIS", "USDC", "alice", "260828", "120100", 2.0, false))
	rows := readCSV(t, path)
	assert.Equal(t, "000001", rows[len(rows)-1][0])
}

func TestPrices_ServesSeriesForCharting(t *testing.T) {
	l := newTestLedger(t)

	t.Run("Missing series yields empty slice", func(t *testing.T) {
		points, err := l.Prices("METIS", "USDC", "alice")
		assert.NoError(t, err)
		assert.Empty(t, points)
	})

	t.Run("Round trip", func(t *testing.T) {
		assert.NoError(t, l.AppendPrice("METIS", "USDC", "alice", "260828", "120000", 100.0, true))
		assert.NoError(t, l.AppendPrice("METIS", "USDC", "alice", "260828", "120100", 101.5, false))

		points, err := l.Prices("METIS", "USDC", "alice")
		assert.NoError(t, err)
		assert.Len(t, points, 2)
		assert.True(t, points[0].IsBase)
		assert.False(t, points[1].IsBase)
		assert.InDelta(t, 101.5, points[1].Price, 1e-9)
	})
}
