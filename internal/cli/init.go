// Package cli provides common CLI initialization utilities shared by
// cmd/banklink, cmd/banklink-worker and cmd/banklink-link.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"banklink/internal/aggregator"
	"banklink/internal/backend"
	"banklink/internal/cache"
	"banklink/internal/config"
	"banklink/internal/core"
	"banklink/internal/export/sheets"
	"banklink/internal/log"
	"banklink/internal/services"
)

// SetupLogger initializes structured logging at the given level.
// Returns the configured logger and sets it as the default logger.
func SetupLogger(level, component string) *log.Logger {
	cfg := log.DefaultConfig()
	cfg.Level = log.ParseLevel(level)
	cfg.Component = component
	logger := log.New(cfg)
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// InitBackend builds the provider clients, store and relay.
// Returns the result or exits the process on failure.
func InitBackend(ctx context.Context, logger *log.Logger, cfg *config.Config) *backend.Result {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err)
		os.Exit(1)
	}
	res, err := backend.NewFactory(logger).Create(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err, "store", cfg.StoreBackend)
		os.Exit(1)
	}
	return res
}

// NewSpendingService wires the spending service over an initialized backend.
func NewSpendingService(logger *log.Logger, cfg *config.Config, res *backend.Result) (*services.SpendingService, func()) {
	txCache, err := cache.NewRistretto[[]core.Transaction](int64(cfg.CacheMaxItems), cfg.CacheTTL)
	if err != nil {
		logger.Error("Failed to create transaction cache", log.FieldError, err)
		os.Exit(1)
	}

	var events services.EventPublisher
	if res.AMQP != nil {
		events = res.AMQP
	}

	svc := services.NewSpendingService(services.SpendingConfig{
		Provider: res.Provider.Name,
		Source:   res.Provider.Source,
		Tokens:   res.Sessions,
		Cache:    txCache,
		Events:   events,
		Rule: core.SpendRule{
			Convention: res.Provider.Name.SpendConvention(),
			Excluded:   cfg.ExcludedDescriptions,
		},
		Currency:     cfg.CurrencySymbol,
		FetchTimeout: aggregator.DefaultRetryPolicy().Budget(cfg.BackendTimeout),
		Logger:       logger,
	})
	return svc, txCache.Close
}

// NewSnapshotWriter returns the Google Sheets writer when a spreadsheet is
// configured, otherwise an in-memory one.
func NewSnapshotWriter(ctx context.Context, logger *log.Logger, cfg *config.Config) sheets.SnapshotWriter {
	if !cfg.UsesSheets() {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided")
		return sheets.NewMemory()
	}
	client, err := sheets.NewGoogle(ctx, sheets.GoogleConfig{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	return client
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(ctx context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()

		if cleanup != nil {
			cleanup(shutdownCtx)
		}

		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
