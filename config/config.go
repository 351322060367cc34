package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all process-lifetime settings. Loaded once at startup,
// immutable afterwards.
type Config struct {
	BinanceAPIKey    string
	BinanceSecretKey string
	Testnet          bool
	DryRun           bool
	PaperBalance     float64

	Symbols         []string
	Timeframe       string
	CandleLimit     int
	Leverage        int
	ReferenceSymbol string // empty disables volatility-adaptive sizing

	MaxSlots          int
	BaseTakeProfit    float64
	BaseStopLoss      float64
	ReverseOnOpposite bool

	RetryAttempts int
	RetryWaitMin  time.Duration
	RetryWaitMax  time.Duration

	CycleInterval time.Duration
	RecoverySleep time.Duration

	TradeLogPath string

	TelegramToken  string
	TelegramChatID int64
}

// Load reads configuration from the environment (and .env if present).
// Missing credentials or malformed values are fatal: no retry is
// meaningful for a misconfigured process.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment variables")
	}

	cfg := &Config{
		BinanceAPIKey:    os.Getenv("BINANCE_API_KEY"),
		BinanceSecretKey: os.Getenv("BINANCE_SECRET_KEY"),
		Testnet:          envBool("TESTNET", false),
		DryRun:           envBool("DRY_RUN", false),
		PaperBalance:     envFloat("PAPER_BALANCE", 5000.0),

		Symbols:         splitSymbols(envString("SYMBOLS", "BTCUSDT,ETHUSDT,SOLUSDT")),
		Timeframe:       envString("TIMEFRAME", "1h"),
		CandleLimit:     envInt("CANDLE_LIMIT", 200),
		Leverage:        envInt("LEVERAGE", 10),
		ReferenceSymbol: os.Getenv("REFERENCE_SYMBOL"),

		MaxSlots:          envInt("MAX_SLOTS", 3),
		BaseTakeProfit:    envFloat("BASE_TAKE_PROFIT", 0.025),
		BaseStopLoss:      envFloat("BASE_STOP_LOSS", 0.015),
		ReverseOnOpposite: envBool("REVERSE_ON_OPPOSITE", false),

		RetryAttempts: envInt("RETRY_ATTEMPTS", 3),
		RetryWaitMin:  envDuration("RETRY_WAIT_MIN", 1*time.Second),
		RetryWaitMax:  envDuration("RETRY_WAIT_MAX", 5*time.Second),

		RecoverySleep: envDuration("RECOVERY_SLEEP", 30*time.Second),
		TradeLogPath:  envString("TRADE_LOG_PATH", "trades.csv"),

		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
	}

	if !cfg.DryRun && (cfg.BinanceAPIKey == "" || cfg.BinanceSecretKey == "") {
		log.Fatal("BINANCE_API_KEY and BINANCE_SECRET_KEY are required (set DRY_RUN=true for paper trading)")
	}
	if len(cfg.Symbols) == 0 {
		log.Fatal("SYMBOLS must name at least one trading pair")
	}
	if cfg.MaxSlots < 1 {
		log.Fatal("MAX_SLOTS must be at least 1")
	}
	if cfg.BaseTakeProfit <= 0 || cfg.BaseStopLoss <= 0 {
		log.Fatal("BASE_TAKE_PROFIT and BASE_STOP_LOSS must be positive fractions")
	}
	if cfg.RetryAttempts < 1 {
		log.Fatal("RETRY_ATTEMPTS must be at least 1")
	}
	if cfg.RetryWaitMax < cfg.RetryWaitMin {
		log.Fatal("RETRY_WAIT_MAX must not be smaller than RETRY_WAIT_MIN")
	}

	// The cycle cadence follows the candle timeframe unless overridden.
	tfDur, err := TimeframeDuration(cfg.Timeframe)
	if err != nil {
		log.Fatalf("invalid TIMEFRAME: %v", err)
	}
	cfg.CycleInterval = envDuration("CYCLE_INTERVAL", tfDur)

	if chat := os.Getenv("TELEGRAM_CHAT_ID"); chat != "" {
		id, err := strconv.ParseInt(chat, 10, 64)
		if err != nil {
			log.Fatal("invalid TELEGRAM_CHAT_ID")
		}
		cfg.TelegramChatID = id
	}

	return cfg
}

// SlotFraction is the share of the account allocated to one position slot.
func (c *Config) SlotFraction() float64 {
	return 1.0 / float64(c.MaxSlots)
}

// TimeframeDuration converts an exchange timeframe string ("1m", "2h",
// "1d") into a duration.
func TimeframeDuration(tf string) (time.Duration, error) {
	if len(tf) < 2 {
		return 0, fmt.Errorf("timeframe %q too short", tf)
	}
	n, err := strconv.Atoi(tf[:len(tf)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("timeframe %q has no positive count", tf)
	}
	switch tf[len(tf)-1] {
	case 'm':
		return time.Duration(n) * time.Minute, nil
	case 'h':
		return time.Duration(n) * time.Hour, nil
	case 'd':
		return time.Duration(n) * 24 * time.Hour, nil
	case 'w':
		return time.Duration(n) * 7 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("timeframe %q has unknown unit", tf)
	}
}

func splitSymbols(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		sym := strings.ToUpper(strings.TrimSpace(part))
		if sym != "" {
			out = append(out, sym)
		}
	}
	return out
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			log.Fatalf("invalid %s: %v", key, err)
		}
		return n
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			log.Fatalf("invalid %s: %v", key, err)
		}
		return f
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			log.Fatalf("invalid %s: %v", key, err)
		}
		return b
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			log.Fatalf("invalid %s: %v", key, err)
		}
		return d
	}
	return def
}
