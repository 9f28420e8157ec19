package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// The trading pair, token and user documents are owned by the chat front end;
// the trader only ever reads them. One Store is loaded per batch run so a
// mid-run re-save by the front end cannot produce a half-applied config.

// UserAccount describes one registered user and their smart contract wallet.
type UserAccount struct {
	UserWallet     string `json:"user_wallet"`
	SCWAddress     string `json:"scw_address"`
	Username       string `json:"username"`
	TelegramChatID string `json:"telegram_chat_id"`
}

// LedgerID returns the identifier used to key this user's ledger series.
func (u UserAccount) LedgerID() string {
	if u.Username != "" {
		return u.Username
	}
	return u.TelegramChatID
}

// Token describes an ERC-20 token the bot can trade.
type Token struct {
	Symbol   string `json:"symbol"`
	Address  string `json:"address"`
	Decimals int    `json:"decimals"`
}

// PairInfo describes the on-chain and price-feed wiring for one trading pair.
type PairInfo struct {
	DEXAddress string `json:"dex_address"`
	// PriceSource selects the upstream feed shape: "dexscreener" or "coingecko".
	PriceSource string `json:"price_source"`
	PriceAPI    string `json:"price_api"`
	// AssetKey is the asset identifier inside a coingecko-style response
	// (e.g. "ethereum" for {"ethereum":{"usd":...}}). Unused by dexscreener.
	AssetKey string `json:"asset_key"`
	// USDPeggedSide names which side of the pair is the USD-pegged asset:
	// "quote" means the feed's USD price is the pair price directly,
	// "base" means the pair price is its inverse.
	USDPeggedSide string `json:"usd_pegged_side"`
}

// PairConfig is one user's trading strategy for one pair.
type PairConfig struct {
	UserID            string  `json:"userID"`
	Symbol1           string  `json:"symbol1"`
	Symbol2           string  `json:"symbol2"`
	TradePercentage   float64 `json:"trade_percentage"`
	TriggerPercentage float64 `json:"trigger_percentage"`
	Multiplier        float64 `json:"multiplier"`
	MaxAmount         float64 `json:"max_amount"`
	MinimumAmount     float64 `json:"minimum_amount"`
	DecimalPlaces     int     `json:"decimal"`
}

// PairKey returns the "BASE-QUOTE" key used throughout the config store.
func (p PairConfig) PairKey() string {
	return p.Symbol1 + "-" + p.Symbol2
}

// Store is the read-only view over the users/tokens/pairs JSON documents.
type Store struct {
	users  map[string]UserAccount
	tokens map[string]Token
	pairs  map[string]PairInfo
	cfgs   []PairConfig
}

type usersFile struct {
	Users map[string]UserAccount `json:"users"`
}

type tokensFile struct {
	Tokens map[string]Token    `json:"tokens"`
	Pairs  map[string]PairInfo `json:"pairs"`
}

type pairsFile struct {
	TradingPairs []PairConfig `json:"trading_pairs"`
}

// LoadStore reads and validates the three configuration documents.
// Address validation happens up front so a malformed entry is caught before
// any chain interaction (and is normalized to checksum form).
func LoadStore(files Files) (*Store, error) {
	var users usersFile
	if err := readJSON(files.Users, &users); err != nil {
		return nil, fmt.Errorf("loading users: %w", err)
	}
	var tokens tokensFile
	if err := readJSON(files.Tokens, &tokens); err != nil {
		return nil, fmt.Errorf("loading tokens: %w", err)
	}
	var pairs pairsFile
	if err := readJSON(files.Pairs, &pairs); err != nil {
		return nil, fmt.Errorf("loading trading pairs: %w", err)
	}

	s := &Store{
		users:  make(map[string]UserAccount, len(users.Users)),
		tokens: make(map[string]Token, len(tokens.Tokens)),
		pairs:  tokens.Pairs,
		cfgs:   pairs.TradingPairs,
	}

	for id, u := range users.Users {
		var err error
		if u.SCWAddress, err = checksum(u.SCWAddress); err != nil {
			return nil, fmt.Errorf("user %s scw address: %w", id, err)
		}
		if u.UserWallet, err = checksum(u.UserWallet); err != nil {
			return nil, fmt.Errorf("user %s wallet address: %w", id, err)
		}
		s.users[id] = u
	}
	for sym, tok := range tokens.Tokens {
		addr, err := checksum(tok.Address)
		if err != nil {
			return nil, fmt.Errorf("token %s address: %w", sym, err)
		}
		tok.Address = addr
		if tok.Symbol == "" {
			tok.Symbol = sym
		}
		s.tokens[sym] = tok
	}
	for key, info := range s.pairs {
		addr, err := checksum(info.DEXAddress)
		if err != nil {
			return nil, fmt.Errorf("pair %s dex address: %w", key, err)
		}
		info.DEXAddress = addr
		s.pairs[key] = info
	}

	return s, nil
}

func readJSON(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func checksum(addr string) (string, error) {
	if !common.IsHexAddress(addr) {
		return "", fmt.Errorf("invalid address %q", addr)
	}
	return common.HexToAddress(addr).Hex(), nil
}

// User returns the account for the given user id.
func (s *Store) User(id string) (UserAccount, bool) {
	u, ok := s.users[id]
	return u, ok
}

// Token returns the token definition for the given symbol.
func (s *Store) Token(symbol string) (Token, bool) {
	t, ok := s.tokens[symbol]
	return t, ok
}

// Pair returns the wiring for the given base/quote symbols.
func (s *Store) Pair(base, quote string) (PairInfo, bool) {
	p, ok := s.pairs[base+"-"+quote]
	return p, ok
}

// ValidPairs returns the trading pair configs that pass validation.
// Invalid entries are logged and dropped; the batch continues with the rest.
func (s *Store) ValidPairs(log *zap.Logger) []PairConfig {
	valid := make([]PairConfig, 0, len(s.cfgs))
	for _, pc := range s.cfgs {
		if err := s.validatePair(pc); err != nil {
			log.Error("Invalid trading pair configuration, skipping",
				zap.String("pair", pc.PairKey()),
				zap.String("user", pc.UserID),
				zap.Error(err))
			continue
		}
		if pc.Multiplier == 0 {
			pc.Multiplier = 1.1
		}
		valid = append(valid, pc)
	}
	return valid
}

func (s *Store) validatePair(pc PairConfig) error {
	if pc.UserID == "" || pc.Symbol1 == "" || pc.Symbol2 == "" {
		return fmt.Errorf("missing userID or symbols")
	}
	if pc.TradePercentage <= 0 || pc.TradePercentage > 1 {
		return fmt.Errorf("trade_percentage %v out of (0,1]", pc.TradePercentage)
	}
	if pc.TriggerPercentage <= 0 || pc.TriggerPercentage > 1 {
		return fmt.Errorf("trigger_percentage %v out of (0,1]", pc.TriggerPercentage)
	}
	if pc.Multiplier != 0 && pc.Multiplier < 1 {
		return fmt.Errorf("multiplier %v must be >= 1", pc.Multiplier)
	}
	if pc.MaxAmount < 0 || pc.MinimumAmount < 0 {
		return fmt.Errorf("negative amount limit")
	}
	if _, ok := s.tokens[pc.Symbol1]; !ok {
		return fmt.Errorf("unknown token %s", pc.Symbol1)
	}
	if _, ok := s.tokens[pc.Symbol2]; !ok {
		return fmt.Errorf("unknown token %s", pc.Symbol2)
	}
	info, ok := s.pairs[pc.PairKey()]
	if !ok {
		return fmt.Errorf("no pair wiring for %s", pc.PairKey())
	}
	if info.USDPeggedSide != "base" && info.USDPeggedSide != "quote" {
		return fmt.Errorf("usd_pegged_side must be \"base\" or \"quote\", got %q", info.USDPeggedSide)
	}
	if _, ok := s.users[pc.UserID]; !ok {
		return fmt.Errorf("unknown user %s", pc.UserID)
	}
	return nil
}
