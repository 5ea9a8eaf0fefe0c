package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port      string
	AppOrigin string

	// Aggregator
	Provider       string
	BackendURL     string
	BackendTimeout time.Duration
	LinkMode       string
	LinkTimeout    time.Duration

	// Plaid
	PlaidMode     string
	PlaidClientID string
	PlaidSecret   string
	PlaidEnv      string

	// Storage
	StoreBackend string
	SQLiteDBPath string
	DatabaseURL  string

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
	RelaySecret  string

	// Spending
	ExcludedDescriptions []string
	CurrencySymbol       string
	CacheTTL             time.Duration
	CacheMaxItems        int

	// Google Sheets
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Worker
	SummaryInterval time.Duration

	LogLevel string
}

var (
	validProviders     = []string{"truelayer", "plaid"}
	validLinkModes     = []string{"redirect", "popup"}
	validStoreBackends = []string{"memory", "sqlite", "postgres"}
	validPlaidModes    = []string{"backend", "direct"}
	validPlaidEnvs     = []string{"sandbox", "production"}
	validLogLevels     = []string{"debug", "info", "warn", "error"}
)

func Load() *Config {
	cfg := &Config{
		Port:      getEnv("PORT", "8080"),
		AppOrigin: strings.TrimRight(getEnv("APP_ORIGIN", "http://localhost:8080"), "/"),

		Provider:       strings.ToLower(getEnv("PROVIDER", "truelayer")),
		BackendURL:     strings.TrimRight(getEnv("BACKEND_URL", "http://localhost:3000"), "/"),
		BackendTimeout: getEnvDuration("BACKEND_TIMEOUT", 30*time.Second),
		LinkMode:       strings.ToLower(getEnv("LINK_MODE", "popup")),
		LinkTimeout:    getEnvDuration("LINK_TIMEOUT", 5*time.Minute),

		PlaidMode:     strings.ToLower(getEnv("PLAID_MODE", "backend")),
		PlaidClientID: getEnv("PLAID_CLIENT_ID", ""),
		PlaidSecret:   getEnv("PLAID_SECRET", ""),
		PlaidEnv:      strings.ToLower(getEnv("PLAID_ENV", "sandbox")),

		StoreBackend: strings.ToLower(getEnv("STORE_BACKEND", "sqlite")),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/banklink.db"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "banklink"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "account_linked"),
		RelaySecret:  getEnv("RELAY_SECRET", ""),

		ExcludedDescriptions: getEnvList("EXCLUDED_DESCRIPTIONS", []string{"GLOBAL MONEY"}),
		CurrencySymbol:       getEnv("CURRENCY_SYMBOL", "£"),
		CacheTTL:             getEnvDuration("CACHE_TTL", 5*time.Minute),
		CacheMaxItems:        getEnvInt("CACHE_MAX_ITEMS", 1000),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Spending"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),

		SummaryInterval: getEnvDuration("SUMMARY_INTERVAL", time.Hour),

		LogLevel: strings.ToLower(getEnv("LOG_LEVEL", "info")),
	}

	return cfg
}

// UsesAMQP reports whether a broker is configured.
func (c *Config) UsesAMQP() bool {
	return c.AMQPURL != ""
}

// UsesSheets reports whether snapshots go to a Google spreadsheet.
func (c *Config) UsesSheets() bool {
	return c.GoogleSpreadsheetID != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	// The origin is compared verbatim against relay messages, so it must be bare.
	if u, err := url.Parse(c.AppOrigin); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errors = append(errors, fmt.Sprintf("invalid app origin '%s': must be an http(s) URL", c.AppOrigin))
	} else if u.Path != "" || u.RawQuery != "" {
		errors = append(errors, fmt.Sprintf("invalid app origin '%s': must not have a path or query", c.AppOrigin))
	}

	errors = appendIfInvalid(errors, "provider", c.Provider, validProviders)
	errors = appendIfInvalid(errors, "link mode", c.LinkMode, validLinkModes)
	errors = appendIfInvalid(errors, "store backend", c.StoreBackend, validStoreBackends)
	errors = appendIfInvalid(errors, "log level", c.LogLevel, validLogLevels)

	needsBackend := c.Provider == "truelayer" || (c.Provider == "plaid" && c.PlaidMode == "backend")
	if needsBackend {
		if u, err := url.Parse(c.BackendURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errors = append(errors, fmt.Sprintf("invalid backend URL '%s': must be an http(s) URL", c.BackendURL))
		}
	}

	if c.Provider == "plaid" {
		errors = appendIfInvalid(errors, "plaid mode", c.PlaidMode, validPlaidModes)
		if c.PlaidMode == "direct" {
			errors = appendIfInvalid(errors, "plaid environment", c.PlaidEnv, validPlaidEnvs)
			if c.PlaidClientID == "" || c.PlaidSecret == "" {
				errors = append(errors, "PLAID_CLIENT_ID and PLAID_SECRET are required when PLAID_MODE is direct")
			}
		}
	}

	// Validate storage configuration
	switch c.StoreBackend {
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			// Check if directory exists or can be created
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	case "postgres":
		if c.DatabaseURL == "" {
			errors = append(errors, "DATABASE_URL is required when using postgres backend")
		} else if u, err := url.Parse(c.DatabaseURL); err != nil || (u.Scheme != "postgres" && u.Scheme != "postgresql") {
			errors = append(errors, "invalid DATABASE_URL: must be a postgres:// URL")
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
		if len(c.RelaySecret) < 32 {
			errors = append(errors, "RELAY_SECRET must be at least 32 characters when AMQP URL is provided")
		}
	}

	// Validate Google Sheets configuration if a spreadsheet is set
	if c.GoogleSpreadsheetID != "" {
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when exporting to a spreadsheet")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if c.CurrencySymbol == "" {
		errors = append(errors, "currency symbol cannot be empty")
	}
	if c.CacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must not be negative", c.CacheTTL))
	}
	if c.CacheMaxItems < 1 {
		errors = append(errors, fmt.Sprintf("invalid cache size %d: must be at least 1", c.CacheMaxItems))
	}
	if c.BackendTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid backend timeout %v: must be at least 1 second", c.BackendTimeout))
	}
	if c.LinkTimeout < 10*time.Second {
		errors = append(errors, fmt.Sprintf("invalid link timeout %v: must be at least 10 seconds", c.LinkTimeout))
	}

	if c.SummaryInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid summary interval %v: must be at least 1 minute", c.SummaryInterval))
	} else if c.SummaryInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid summary interval %v: must be at most 24 hours", c.SummaryInterval))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func appendIfInvalid(errors []string, name, value string, valid []string) []string {
	if slices.Contains(valid, value) {
		return errors
	}
	return append(errors, fmt.Sprintf("invalid %s '%s': must be one of %v", name, value, valid))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
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

// getEnvList splits a comma separated value, dropping empty items.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
