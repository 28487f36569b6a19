package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const (
	DefaultPriceEndpoint = "https://api.coingecko.com/api/v3/simple/price"
	DefaultQuoteCurrency = "usd"

	BackendFile     = "file"
	BackendPostgres = "postgres"
)

// Config carries every setting the binaries need. It is built once in main
// and handed to constructors.
type Config struct {
	StorePath     string
	HistoryPath   string
	PriceEndpoint string
	QuoteCurrency string
	PriceTimeout  time.Duration
	PriceRetries  int
	PriceBackoff  time.Duration
	Port          string
	LogLevel      string
	LedgerBackend string
	PostgresURL   string
}

func Default() Config {
	return Config{
		StorePath:     "dane.json",
		HistoryPath:   "history.json",
		PriceEndpoint: DefaultPriceEndpoint,
		QuoteCurrency: DefaultQuoteCurrency,
		PriceTimeout:  10 * time.Second,
		PriceRetries:  2,
		PriceBackoff:  500 * time.Millisecond,
		Port:          "8080",
		LogLevel:      "info",
		LedgerBackend: BackendFile,
	}
}

// Load reads an optional .env file and overlays environment variables on the
// defaults. Malformed numeric values keep the default.
func Load() Config {
	// .env is optional, production sets the environment directly
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function such as os.Getenv.
func FromEnv(getenv func(string) string) Config {
	c := Default()
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v := getenv(key); v != "" {
			if d, err := time.ParseDuration(v); err == nil && d > 0 {
				*dst = d
			}
		}
	}

	str("STORE_PATH", &c.StorePath)
	str("HISTORY_PATH", &c.HistoryPath)
	str("PRICE_ENDPOINT", &c.PriceEndpoint)
	str("QUOTE_CURRENCY", &c.QuoteCurrency)
	str("PORT", &c.Port)
	str("LOG_LEVEL", &c.LogLevel)
	str("LEDGER_BACKEND", &c.LedgerBackend)
	str("POSTGRES_URL", &c.PostgresURL)
	dur("PRICE_TIMEOUT", &c.PriceTimeout)
	dur("PRICE_BACKOFF", &c.PriceBackoff)
	if v := getenv("PRICE_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.PriceRetries = n
		}
	}

	c.QuoteCurrency = strings.ToLower(c.QuoteCurrency)
	c.LedgerBackend = strings.ToLower(c.LedgerBackend)
	return c
}

// NewLogger returns a logrus logger at the configured level, falling back to
// info for unknown names.
func (c Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		logger.Warnf("unknown LOG_LEVEL %q, using info", c.LogLevel)
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	return logger
}
