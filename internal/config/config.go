// Package config loads environment configuration for the API server and
// the summary worker.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP server
	Port string

	// Database
	SQLiteDBPath string

	// Backend selection
	DataBackend string

	// AMQP; empty URL disables summary events
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Exchange rates; empty key disables live lookups
	ExchangeRateBaseURL string
	ExchangeRateAPIKey  string
	ExchangeRateTimeout time.Duration

	// Worker
	RefreshInterval time.Duration
}

func Load() *Config {
	return &Config{
		Port:         getEnv("PORT", "8080"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/spendtrack.db"),
		DataBackend:  getEnv("DATA_BACKEND", "sqlite"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "spendtrack"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "ledger_events"),

		ExchangeRateBaseURL: getEnv("EXCHANGE_RATE_BASE_URL", "https://v6.exchangerate-api.com/v6"),
		ExchangeRateAPIKey:  getEnv("EXCHANGE_RATE_API_KEY", ""),
		ExchangeRateTimeout: getEnvDuration("EXCHANGE_RATE_TIMEOUT", 10*time.Second),

		RefreshInterval: getEnvDuration("REFRESH_INTERVAL", 10*time.Minute),
	}
}

// Validate collects every configuration problem into one error so a bad
// deployment fails fast with the full list.
func (c *Config) Validate() error {
	var problems []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		problems = append(problems, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.DataBackend {
	case "sqlite":
		if c.SQLiteDBPath == "" {
			problems = append(problems, "SQLite database path cannot be empty when using sqlite backend")
		}
	case "memory":
	default:
		problems = append(problems, fmt.Sprintf("invalid data backend '%s': must be 'sqlite' or 'memory'", c.DataBackend))
	}

	if c.AMQPURL != "" {
		if parsed, err := url.Parse(c.AMQPURL); err != nil {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsed.Scheme != "amqp" && parsed.Scheme != "amqps" {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsed.Scheme))
		}
		if c.AMQPExchange == "" {
			problems = append(problems, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			problems = append(problems, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.ExchangeRateAPIKey != "" && c.ExchangeRateBaseURL == "" {
		problems = append(problems, "exchange rate base URL cannot be empty when an API key is provided")
	}
	if c.ExchangeRateTimeout < time.Second {
		problems = append(problems, fmt.Sprintf("invalid exchange rate timeout %v: must be at least 1 second", c.ExchangeRateTimeout))
	}

	if c.RefreshInterval < time.Second {
		problems = append(problems, fmt.Sprintf("invalid refresh interval %v: must be at least 1 second", c.RefreshInterval))
	} else if c.RefreshInterval > 24*time.Hour {
		problems = append(problems, fmt.Sprintf("invalid refresh interval %v: must be at most 24 hours", c.RefreshInterval))
	}

	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
