package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/Alias1177/SignalScanner/internal/analyze"
	"github.com/Alias1177/SignalScanner/internal/model"
)

// Config holds all application configuration
type Config struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	BinanceBaseURL string `env:"BINANCE_BASE_URL" envDefault:"https://fapi.binance.com"`
	ProxyURL       string `env:"HTTP_PROXY_URL"`
	RequestTimeout int    `env:"REQUEST_TIMEOUT" envDefault:"10"` // seconds
	RequestsPerSec int    `env:"REQUESTS_PER_SEC" envDefault:"5"`

	Interval           string        `env:"INTERVAL" envDefault:"1h"`
	CandleCount        int           `env:"CANDLE_COUNT" envDefault:"500"`
	Pairs              []string      `env:"PAIRS"`
	PairsFile          string        `env:"PAIRS_FILE"`
	PairDelay          time.Duration `env:"PAIR_DELAY_MS" envDefault:"200"`
	CycleEvery         time.Duration `env:"CYCLE_EVERY" envDefault:"15m"`
	ContinuationWindow time.Duration `env:"CONTINUATION_WINDOW" envDefault:"12h"`
	Location           *time.Location
	SignalLogMaxRows   int `env:"SIGNAL_LOG_MAX_ROWS" envDefault:"10000"`

	DBDriver   string `env:"DB_DRIVER" envDefault:"sqlite"`
	DBHost     string `env:"DB_HOST" envDefault:"localhost"`
	DBPort     string `env:"DB_PORT" envDefault:"5432"`
	DBUser     string `env:"DB_USER"`
	DBPassword string `env:"DB_PASSWORD"`
	DBName     string `env:"DB_NAME" envDefault:"signals"`
	DBSSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`
	SQLitePath string `env:"SQLITE_PATH" envDefault:"data/signals.db"`

	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   int64  `env:"TELEGRAM_CHAT_ID"`

	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`
}

// Watchlist is the YAML pairs file
type Watchlist struct {
	Pairs []string `yaml:"pairs"`
}

// Load initializes configuration from environment variables
func Load() (*Config, error) {
	// Load environment variables from .env file if present
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, relying on actual environment variables")
	}

	return FromEnv()
}

// FromEnv reads the configuration from the process environment only
func FromEnv() (*Config, error) {
	var cfg Config
	var err error

	cfg.LogLevel = getEnvWithDefault("LOG_LEVEL", "info")

	cfg.BinanceBaseURL = getEnvWithDefault("BINANCE_BASE_URL", "https://fapi.binance.com")
	cfg.ProxyURL = os.Getenv("HTTP_PROXY_URL")
	cfg.RequestTimeout = getEnvIntWithDefault("REQUEST_TIMEOUT", 10)
	cfg.RequestsPerSec = getEnvIntWithDefault("REQUESTS_PER_SEC", 5)

	cfg.Interval = getEnvWithDefault("INTERVAL", "1h")
	cfg.CandleCount = getEnvIntWithDefault("CANDLE_COUNT", 500)
	cfg.Pairs = splitPairs(os.Getenv("PAIRS"))
	cfg.PairsFile = os.Getenv("PAIRS_FILE")
	cfg.PairDelay = time.Duration(getEnvIntWithDefault("PAIR_DELAY_MS", 200)) * time.Millisecond
	if cfg.CycleEvery, err = getEnvDurationWithDefault("CYCLE_EVERY", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.ContinuationWindow, err = getEnvDurationWithDefault("CONTINUATION_WINDOW", 12*time.Hour); err != nil {
		return nil, err
	}
	cfg.SignalLogMaxRows = getEnvIntWithDefault("SIGNAL_LOG_MAX_ROWS", 10000)

	cfg.Location = time.Local
	if tz := os.Getenv("TIMEZONE"); tz != "" {
		if cfg.Location, err = time.LoadLocation(tz); err != nil {
			return nil, fmt.Errorf("loading timezone %q: %w", tz, err)
		}
	}

	cfg.DBDriver = getEnvWithDefault("DB_DRIVER", "sqlite")
	cfg.DBHost = getEnvWithDefault("DB_HOST", "localhost")
	cfg.DBPort = getEnvWithDefault("DB_PORT", "5432")
	cfg.DBUser = os.Getenv("DB_USER")
	cfg.DBPassword = os.Getenv("DB_PASSWORD")
	cfg.DBName = getEnvWithDefault("DB_NAME", "signals")
	cfg.DBSSLMode = getEnvWithDefault("DB_SSLMODE", "disable")
	cfg.SQLitePath = getEnvWithDefault("SQLITE_PATH", "data/signals.db")

	cfg.TelegramBotToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	if raw := os.Getenv("TELEGRAM_CHAT_ID"); raw != "" {
		if cfg.TelegramChatID, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return nil, fmt.Errorf("parsing TELEGRAM_CHAT_ID: %w", err)
		}
	}

	cfg.HTTPAddr = getEnvWithDefault("HTTP_ADDR", ":8080")

	if len(cfg.Pairs) == 0 && cfg.PairsFile != "" {
		w, err := LoadWatchlist(cfg.PairsFile)
		if err != nil {
			return nil, err
		}
		cfg.Pairs = w.Pairs
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// LoadWatchlist reads a YAML pairs file
func LoadWatchlist(path string) (*Watchlist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pairs file '%s': %w", path, err)
	}

	var w Watchlist
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to parse pairs file: %w", err)
	}
	w.Pairs = splitPairs(strings.Join(w.Pairs, ","))
	return &w, nil
}

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	if _, err := model.IntervalDuration(c.Interval); err != nil {
		return err
	}
	if c.CandleCount < analyze.MinBars || c.CandleCount > 500 {
		return fmt.Errorf("candle count must be between %d and 500, got %d", analyze.MinBars, c.CandleCount)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be greater than 0")
	}
	if c.RequestsPerSec <= 0 {
		return fmt.Errorf("requests per second must be greater than 0")
	}
	if c.CycleEvery <= 0 {
		return fmt.Errorf("cycle period must be greater than 0")
	}
	switch c.DBDriver {
	case "sqlite":
		if c.SQLitePath == "" {
			return fmt.Errorf("database path cannot be empty for sqlite")
		}
	case "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.DBDriver)
	}
	if c.TelegramBotToken != "" && c.TelegramChatID == 0 {
		return fmt.Errorf("TELEGRAM_CHAT_ID is required when TELEGRAM_BOT_TOKEN is set")
	}
	return nil
}

// splitPairs parses a comma separated list, upper-cased and de-duplicated
func splitPairs(raw string) []string {
	var pairs []string
	seen := make(map[string]bool)
	for _, p := range strings.Split(raw, ",") {
		p = strings.ToUpper(strings.TrimSpace(p))
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		pairs = append(pairs, p)
	}
	return pairs
}

// Helper functions for environment variable handling
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDurationWithDefault(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return d, nil
}
