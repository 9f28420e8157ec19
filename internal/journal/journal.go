// Package journal keeps an indexed copy of executed trades in SQLite for the
// reporting UI. The CSV ledger stays the authoritative record; the journal is
// a queryable convenience and a journal write failure never fails a trade.
package journal

import (
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Trade is one executed trade as stored in the journal.
type Trade struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Pair            string    `gorm:"index" json:"pair"`
	UserID          string    `gorm:"index" json:"user_id"`
	Action          string    `json:"action"`
	Price           float64   `json:"price"`
	Quantity        float64   `json:"quantity"`
	TradeValueUSD   float64   `json:"trade_value_usd"`
	TotalBalanceUSD float64   `json:"total_balance_usd"`
	Consecutive     int       `json:"consecutive"`
	Status          string    `json:"status"`
	TxHash          string    `json:"tx_hash"`
	CreatedAt       time.Time `json:"created_at"`
}

// Store wraps the gorm handle.
type Store struct {
	db *gorm.DB
}

// NewStore opens (or creates) the SQLite journal at dsn and migrates the
// schema.
func NewStore(dsn string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening journal db: %w", err)
	}
	if err := db.AutoMigrate(&Trade{}); err != nil {
		return nil, fmt.Errorf("migrating journal schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Record inserts one trade row.
func (s *Store) Record(t *Trade) error {
	return s.db.Create(t).Error
}

// Recent returns the latest trades, newest first, optionally filtered by user.
func (s *Store) Recent(userID string, limit int) ([]Trade, error) {
	q := s.db.Order("created_at desc").Limit(limit)
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	var trades []Trade
	if err := q.Find(&trades).Error; err != nil {
		return nil, err
	}
	return trades, nil
}

// Stats summarizes the journal for the reporting endpoints.
type Stats struct {
	TotalTrades   int64   `json:"total_trades"`
	BuyTrades     int64   `json:"buy_trades"`
	SellTrades    int64   `json:"sell_trades"`
	TotalValueUSD float64 `json:"total_value_usd"`
}

// Statistics aggregates trade counts and volume, optionally per user.
func (s *Store) Statistics(userID string) (Stats, error) {
	var st Stats
	base := s.db.Model(&Trade{})
	if userID != "" {
		base = base.Where("user_id = ?", userID)
	}
	if err := base.Session(&gorm.Session{}).Count(&st.TotalTrades).Error; err != nil {
		return st, err
	}
	if err := base.Session(&gorm.Session{}).Where("action = ?", "BUY").Count(&st.BuyTrades).Error; err != nil {
		return st, err
	}
	if err := base.Session(&gorm.Session{}).Where("action = ?", "SELL").Count(&st.SellTrades).Error; err != nil {
		return st, err
	}
	row := base.Session(&gorm.Session{}).Select("COALESCE(SUM(trade_value_usd), 0)").Row()
	if err := row.Scan(&st.TotalValueUSD); err != nil {
		return st, err
	}
	return st, nil
}
