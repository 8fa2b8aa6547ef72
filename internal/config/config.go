package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/dvloznov/txn-aggregator/internal/aggregator"
)

// Config holds the process configuration read from the environment.
type Config struct {
	LargeTransactionThreshold float64
	UncommonCurrencies        []string

	LogLevel  string
	LogFormat string
	LogFile   string

	GCSBucket   string
	BQProjectID string
	BQDataset   string

	Port     string
	APIToken string
}

// LoadConfig reads an optional .env file and then the environment.
// A missing .env file is not an error.
func LoadConfig(files ...string) (*Config, error) {
	// godotenv never overrides variables already present in the environment
	_ = godotenv.Load(files...)

	threshold, err := getFloat("LARGE_TRANSACTION_THRESHOLD", aggregator.DefaultLargeTransactionThreshold)
	if err != nil {
		return nil, fmt.Errorf("LoadConfig: %w", err)
	}

	return &Config{
		LargeTransactionThreshold: threshold,
		UncommonCurrencies:        splitList(getEnv("UNCOMMON_CURRENCIES", strings.Join(aggregator.DefaultUncommonCurrencies, ","))),
		LogLevel:                  getEnv("LOG_LEVEL", "info"),
		LogFormat:                 getEnv("LOG_FORMAT", "console"),
		LogFile:                   getEnv("LOG_FILE", ""),
		GCSBucket:                 getEnv("GCS_BUCKET", ""),
		BQProjectID:               getEnv("BQ_PROJECT_ID", ""),
		BQDataset:                 getEnv("BQ_DATASET", "finance_reports"),
		Port:                      getEnv("PORT", "8080"),
		APIToken:                  getEnv("API_TOKEN", ""),
	}, nil
}

// AggregatorConfig returns the rule set for a new aggregator.
func (c *Config) AggregatorConfig() aggregator.Config {
	currencies := make([]string, len(c.UncommonCurrencies))
	copy(currencies, c.UncommonCurrencies)
	return aggregator.Config{
		LargeTransactionThreshold: c.LargeTransactionThreshold,
		UncommonCurrencies:        currencies,
	}
}

// BigQueryEnabled reports whether a warehouse project is configured.
func (c *Config) BigQueryEnabled() bool {
	return c.BQProjectID != ""
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getFloat(key string, fallback float64) (float64, error) {
	raw, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return v, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
