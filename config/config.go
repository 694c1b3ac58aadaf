package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"pairsniper/internal/adapters/logger" // Import the logger package for LogLevel
	"pairsniper/internal/domain"
)

// TakeProfitTier is one configured (multiplier, percentage) exit rule.
// Percentage is the fraction of the remaining balance to sell, 0..1.
type TakeProfitTier struct {
	Multiplier float64
	Percentage float64
}

// Config holds all application configuration.
type Config struct {
	// Wallet / chain
	PrivateKey   string
	RPCEndpoints []string // prioritized fallback list

	FactoryAddress domain.Address
	RouterAddress  domain.Address
	WBNBAddress    domain.Address
	BUSDAddress    domain.Address
	USDTAddress    domain.Address

	// Risk-data providers
	GoPlusBaseURL  string
	GoPlusAPIKey   string
	BscScanBaseURL string
	BscScanAPIKey  string

	// Notifications (optional; empty token disables the notifier)
	TelegramToken  string
	TelegramChatID int64

	// Trading parameters
	BuyAmountBNB    float64
	MaxBuyAmountBNB float64 // ceiling for compounded buy amounts
	GasReserveBNB   float64
	SlippagePct     float64 // e.g. 15 for 15%
	MaxPositions    int
	CompoundRate    float64 // fraction of net profit folded back into the buy amount

	// Security thresholds
	MaxBuyTaxPct            float64
	MaxSellTaxPct           float64
	MinHolders              int
	MinLiquidityUSD         float64
	MaxHolderShare          float64 // largest plain wallet, fraction of supply
	MaxCreatorShare         float64 // dev wallet holdings, fraction of supply
	RequireVerifiedContract bool
	RequireRenouncedOwner   bool
	WhitelistCountsAsOpen   bool // whitelisted flag satisfies the open-source requirement
	HoneypotProbeBNB        float64
	MaxRoundTripImpact      float64 // reject above this loss fraction, e.g. 0.90
	FallbackBNBPriceUSD     float64

	// Exit strategy
	Tiers           []TakeProfitTier
	TrailingStopPct float64 // e.g. 0.30 for 30% retracement from peak
	MaxHoldDuration time.Duration
	DustThreshold   float64 // remaining-token balance below this closes the position

	// Loop scheduling
	PairPollInterval     time.Duration
	PositionPollInterval time.Duration
	SummaryInterval      time.Duration
	CallTimeout          time.Duration
	LoopErrorBackoff     time.Duration

	// Gas
	GasPriceMultiplier float64
	MaxGasPriceGwei    float64

	// Persistence
	LedgerPath string
	DBPath     string

	// Logging
	LogLevel logger.LogLevel
}

// Default BSC mainnet contract addresses (PancakeSwap V2).
const (
	defaultFactory = "0xcA143Ce32Fe78f1f7019d7d551a6402fC5350c73"
	defaultRouter  = "0x10ED43C718714eb63d5aA57B78B54704E256024E"
	defaultWBNB    = "0xbb4CdB9CBd36B01bD1cBaEBF2De08d9173bc095c"
	defaultBUSD    = "0xe9e7CEA3DedcA5984780Bafc599bD69ADd087D56"
	defaultUSDT    = "0x55d398326f99059fF775485246999027B3197955"
)

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// Wallet / chain
	cfg.PrivateKey = strings.TrimSpace(getEnv("PRIVATE_KEY", ""))
	if cfg.PrivateKey == "" {
		errs = append(errs, "PRIVATE_KEY must be set")
	}

	endpoints := getEnv("RPC_ENDPOINTS",
		"https://bsc-dataseed.binance.org,https://bsc-dataseed1.defibit.io,https://bsc-dataseed1.ninicoin.io")
	for _, e := range strings.Split(endpoints, ",") {
		if e = strings.TrimSpace(e); e != "" {
			cfg.RPCEndpoints = append(cfg.RPCEndpoints, e)
		}
	}
	if len(cfg.RPCEndpoints) == 0 {
		errs = append(errs, "RPC_ENDPOINTS must list at least one endpoint")
	}

	cfg.FactoryAddress, err = addressEnv("FACTORY_ADDRESS", defaultFactory)
	if err != nil {
		errs = append(errs, err.Error())
	}
	cfg.RouterAddress, err = addressEnv("ROUTER_ADDRESS", defaultRouter)
	if err != nil {
		errs = append(errs, err.Error())
	}
	cfg.WBNBAddress, err = addressEnv("WBNB_ADDRESS", defaultWBNB)
	if err != nil {
		errs = append(errs, err.Error())
	}
	cfg.BUSDAddress, err = addressEnv("BUSD_ADDRESS", defaultBUSD)
	if err != nil {
		errs = append(errs, err.Error())
	}
	cfg.USDTAddress, err = addressEnv("USDT_ADDRESS", defaultUSDT)
	if err != nil {
		errs = append(errs, err.Error())
	}

	// Risk-data providers
	cfg.GoPlusBaseURL = getEnv("GOPLUS_BASE_URL", "https://api.gopluslabs.io")
	cfg.GoPlusAPIKey = getEnv("GOPLUS_API_KEY", "")
	cfg.BscScanBaseURL = getEnv("BSCSCAN_BASE_URL", "https://api.bscscan.com")
	cfg.BscScanAPIKey = getEnv("BSCSCAN_API_KEY", "")

	// Notifications
	cfg.TelegramToken = getEnv("TELEGRAM_BOT_TOKEN", "")
	chatIDStr := getEnv("TELEGRAM_CHAT_ID", "0")
	cfg.TelegramChatID, err = strconv.ParseInt(chatIDStr, 10, 64)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid TELEGRAM_CHAT_ID: %v", err))
	}

	// Trading parameters
	cfg.BuyAmountBNB, err = getEnvAsFloatRequired("BUY_AMOUNT_BNB", 0.05)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid BUY_AMOUNT_BNB: %v", err))
	} else if cfg.BuyAmountBNB <= 0 {
		errs = append(errs, "BUY_AMOUNT_BNB must be positive")
	}

	cfg.MaxBuyAmountBNB, err = getEnvAsFloatRequired("MAX_BUY_AMOUNT_BNB", 1.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_BUY_AMOUNT_BNB: %v", err))
	} else if cfg.MaxBuyAmountBNB < cfg.BuyAmountBNB {
		errs = append(errs, "MAX_BUY_AMOUNT_BNB must not be below BUY_AMOUNT_BNB")
	}

	cfg.GasReserveBNB, err = getEnvAsFloatRequired("GAS_RESERVE_BNB", 0.01)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid GAS_RESERVE_BNB: %v", err))
	} else if cfg.GasReserveBNB < 0 {
		errs = append(errs, "GAS_RESERVE_BNB cannot be negative")
	}

	cfg.SlippagePct, err = getEnvAsFloatRequired("SLIPPAGE_PCT", 15)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid SLIPPAGE_PCT: %v", err))
	} else if cfg.SlippagePct <= 0 || cfg.SlippagePct >= 100 {
		errs = append(errs, "SLIPPAGE_PCT must be between 0 and 100 (exclusive)")
	}

	cfg.MaxPositions, err = getEnvAsIntRequired("MAX_CONCURRENT_POSITIONS", 3)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_CONCURRENT_POSITIONS: %v", err))
	} else if cfg.MaxPositions <= 0 {
		errs = append(errs, "MAX_CONCURRENT_POSITIONS must be positive")
	}

	cfg.CompoundRate = getEnvAsFloat("COMPOUND_RATE", 0.5)
	if cfg.CompoundRate < 0 || cfg.CompoundRate > 1 {
		errs = append(errs, "COMPOUND_RATE must be between 0.0 and 1.0")
	}

	// Security thresholds
	cfg.MaxBuyTaxPct = getEnvAsFloat("MAX_BUY_TAX_PCT", 10)
	cfg.MaxSellTaxPct = getEnvAsFloat("MAX_SELL_TAX_PCT", 10)
	cfg.MinHolders = getEnvAsInt("MIN_HOLDERS", 10)
	cfg.MinLiquidityUSD = getEnvAsFloat("MIN_LIQUIDITY_USD", 10000)
	cfg.MaxHolderShare = getEnvAsFloat("MAX_HOLDER_SHARE", 0.20)
	cfg.MaxCreatorShare = getEnvAsFloat("MAX_CREATOR_SHARE", 0.10)
	cfg.RequireVerifiedContract = getEnvAsBool("REQUIRE_VERIFIED_CONTRACT", true)
	cfg.RequireRenouncedOwner = getEnvAsBool("REQUIRE_RENOUNCED_OWNER", false)
	cfg.WhitelistCountsAsOpen = getEnvAsBool("WHITELIST_COUNTS_AS_OPEN_SOURCE", true)

	cfg.HoneypotProbeBNB, err = getEnvAsFloatRequired("HONEYPOT_PROBE_BNB", 0.01)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid HONEYPOT_PROBE_BNB: %v", err))
	} else if cfg.HoneypotProbeBNB <= 0 {
		errs = append(errs, "HONEYPOT_PROBE_BNB must be positive")
	}

	cfg.MaxRoundTripImpact = getEnvAsFloat("MAX_ROUND_TRIP_IMPACT", 0.90)
	if cfg.MaxRoundTripImpact <= 0 || cfg.MaxRoundTripImpact > 1 {
		errs = append(errs, "MAX_ROUND_TRIP_IMPACT must be between 0.0 and 1.0")
	}

	cfg.FallbackBNBPriceUSD = getEnvAsFloat("FALLBACK_BNB_PRICE_USD", 300.0)

	// Exit strategy
	tiersStr := getEnv("TAKE_PROFIT_TIERS", "2.0:0.25,5.0:0.30,10.0:0.50")
	cfg.Tiers, err = ParseTiers(tiersStr)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid TAKE_PROFIT_TIERS: %v", err))
	}

	cfg.TrailingStopPct, err = getEnvAsFloatRequired("TRAILING_STOP_PCT", 0.30)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid TRAILING_STOP_PCT: %v", err))
	} else if cfg.TrailingStopPct <= 0 || cfg.TrailingStopPct >= 1 {
		errs = append(errs, "TRAILING_STOP_PCT must be between 0.0 and 1.0 (exclusive)")
	}

	maxHoldMinutes := getEnvAsInt("MAX_HOLD_MINUTES", 240)
	if maxHoldMinutes <= 0 {
		errs = append(errs, "MAX_HOLD_MINUTES must be positive")
	}
	cfg.MaxHoldDuration = time.Duration(maxHoldMinutes) * time.Minute

	cfg.DustThreshold = getEnvAsFloat("DUST_THRESHOLD_TOKENS", 1e-9)
	if cfg.DustThreshold < 0 {
		errs = append(errs, "DUST_THRESHOLD_TOKENS cannot be negative")
	}

	// Loop scheduling
	cfg.PairPollInterval = secondsEnv("PAIR_POLL_SECONDS", 2, &errs)
	cfg.PositionPollInterval = secondsEnv("POSITION_POLL_SECONDS", 10, &errs)
	cfg.SummaryInterval = secondsEnv("SUMMARY_INTERVAL_SECONDS", 3600, &errs)
	cfg.CallTimeout = secondsEnv("CALL_TIMEOUT_SECONDS", 15, &errs)
	cfg.LoopErrorBackoff = secondsEnv("LOOP_ERROR_BACKOFF_SECONDS", 5, &errs)

	// Gas
	cfg.GasPriceMultiplier = getEnvAsFloat("GAS_PRICE_MULTIPLIER", 1.2)
	if cfg.GasPriceMultiplier < 1 {
		errs = append(errs, "GAS_PRICE_MULTIPLIER must be at least 1.0")
	}
	cfg.MaxGasPriceGwei = getEnvAsFloat("MAX_GAS_PRICE_GWEI", 20)
	if cfg.MaxGasPriceGwei <= 0 {
		errs = append(errs, "MAX_GAS_PRICE_GWEI must be positive")
	}

	// Persistence
	cfg.LedgerPath = getEnv("LEDGER_PATH", "./data/ledger.json")
	if cfg.LedgerPath == "" {
		errs = append(errs, "LEDGER_PATH must be set")
	}
	cfg.DBPath = getEnv("DB_PATH", "./data/trade_history.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	// Logging
	logLevelStr := getEnv("LOG_LEVEL", "INFO")
	cfg.LogLevel = logger.ParseLevel(logLevelStr) // Use the parser from the logger package

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// References returns the configured reference-currency set used to pick
// the candidate token out of a new pair.
func (c *Config) References() domain.ReferenceSet {
	return domain.ReferenceSet{
		WrappedNative: c.WBNBAddress,
		Stables:       []domain.Address{c.BUSDAddress, c.USDTAddress},
	}
}

// ParseTiers parses a "mult:pct,mult:pct,..." tier list. Tiers must be
// listed in ascending multiplier order; percentages are fractions of
// the remaining balance.
func ParseTiers(s string) ([]TakeProfitTier, error) {
	parts := strings.Split(s, ",")
	tiers := make([]TakeProfitTier, 0, len(parts))
	prevMult := 0.0
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.SplitN(part, ":", 2)
		if len(fields) != 2 {
			return nil, fmt.Errorf("tier %q must be multiplier:percentage", part)
		}
		mult, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("tier %q has invalid multiplier: %w", part, err)
		}
		pct, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("tier %q has invalid percentage: %w", part, err)
		}
		if mult <= 1 {
			return nil, fmt.Errorf("tier %q multiplier must be above 1.0", part)
		}
		if pct <= 0 || pct > 1 {
			return nil, fmt.Errorf("tier %q percentage must be in (0.0, 1.0]", part)
		}
		if mult <= prevMult {
			return nil, fmt.Errorf("tier multipliers must be strictly ascending, got %v after %v", mult, prevMult)
		}
		prevMult = mult
		tiers = append(tiers, TakeProfitTier{Multiplier: mult, Percentage: pct})
	}
	if len(tiers) == 0 {
		return nil, fmt.Errorf("at least one take-profit tier is required")
	}
	return tiers, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func addressEnv(key, defaultValue string) (domain.Address, error) {
	addr, err := domain.ParseAddress(getEnv(key, defaultValue))
	if err != nil {
		return "", fmt.Errorf("invalid %s: %w", key, err)
	}
	return addr, nil
}

func secondsEnv(key string, defaultValue int, errs *[]string) time.Duration {
	v := getEnvAsInt(key, defaultValue)
	if v <= 0 {
		*errs = append(*errs, key+" must be positive")
		return time.Duration(defaultValue) * time.Second
	}
	return time.Duration(v) * time.Second
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Log warning? For non-required fields, default is often acceptable.
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		// Use default if env var is not set at all
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Return error if env var is set but invalid
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
