package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Chain    Chain    `mapstructure:"chain"`
	Trading  Trading  `mapstructure:"trading"`
	Telegram Telegram `mapstructure:"telegram"`
	Files    Files    `mapstructure:"files"`
	Logger   Logger   `mapstructure:"logger"`
	Server   Server   `mapstructure:"server"`
	Database Database `mapstructure:"database"`
}

// Chain holds the blockchain RPC and signing configuration.
type Chain struct {
	RPCURL         string  `mapstructure:"rpc_url"`
	ChainID        int64   `mapstructure:"chain_id"`
	BotOperatorPK  string  `mapstructure:"bot_operator_pk"`
	OracleOwnerPK  string  `mapstructure:"oracle_owner_pk"`
	GasPriceGwei   int64   `mapstructure:"gas_price_gwei"`
	ApproveGas     uint64  `mapstructure:"approve_gas"`
	SwapGas        uint64  `mapstructure:"swap_gas"`
	OracleGas      uint64  `mapstructure:"oracle_gas"`
	ReceiptTimeout int     `mapstructure:"receipt_timeout"` // seconds
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// Trading holds the configuration for the decision loop.
type Trading struct {
	Production     bool    `mapstructure:"production"`
	TickInterval   int     `mapstructure:"tick_interval"` // seconds; 0 = single batch run
	PairDelay      int     `mapstructure:"pair_delay"`    // seconds between pairs
	PriceCacheTTL  int     `mapstructure:"price_cache_ttl"`
	HTTPTimeout    int     `mapstructure:"http_timeout"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// Telegram holds the notification credentials.
type Telegram struct {
	BotToken string `mapstructure:"bot_token"`
}

// Files points at the externally-owned configuration store and the ledger root.
type Files struct {
	Users     string `mapstructure:"users"`
	Tokens    string `mapstructure:"tokens"`
	Pairs     string `mapstructure:"pairs"`
	LedgerDir string `mapstructure:"ledger_dir"`
}

// Server holds the configuration for the reporting web UI.
type Server struct {
	Port int `mapstructure:"port"`
}

// Database holds the configuration for the trade journal.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yml")

	// Allow environment variables to override config file
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("chain.gas_price_gwei", 5)
	viper.SetDefault("chain.approve_gas", 200_000)
	viper.SetDefault("chain.swap_gas", 500_000)
	viper.SetDefault("chain.oracle_gas", 200_000)
	viper.SetDefault("chain.receipt_timeout", 120)
	viper.SetDefault("chain.rate_limit", 3)
	viper.SetDefault("chain.rate_limit_burst", 1)
	viper.SetDefault("trading.pair_delay", 1)
	viper.SetDefault("trading.price_cache_ttl", 60)
	viper.SetDefault("trading.http_timeout", 10)
	viper.SetDefault("trading.rate_limit", 3)
	viper.SetDefault("trading.rate_limit_burst", 1)
	viper.SetDefault("files.users", "config/users.json")
	viper.SetDefault("files.tokens", "config/tokens.json")
	viper.SetDefault("files.pairs", "config/config.json")
	viper.SetDefault("files.ledger_dir", "logs")

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
