package backend

import (
	"fmt"

	"banklink/internal/config"
	"banklink/internal/core"
	"banklink/internal/storage"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	provider, err := core.ParseProvider(appConfig.Provider)
	if err != nil {
		return Config{}, fmt.Errorf("invalid provider in config: %s", appConfig.Provider)
	}

	cfg := Config{
		Provider:       provider,
		BackendURL:     appConfig.BackendURL,
		BackendTimeout: appConfig.BackendTimeout,

		PlaidMode:     PlaidMode(appConfig.PlaidMode),
		PlaidClientID: appConfig.PlaidClientID,
		PlaidSecret:   appConfig.PlaidSecret,
		PlaidEnv:      appConfig.PlaidEnv,

		Store: storage.Options{
			Backend:     appConfig.StoreBackend,
			SQLitePath:  appConfig.SQLiteDBPath,
			PostgresURL: appConfig.DatabaseURL,
		},

		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,
		RelaySecret:  appConfig.RelaySecret,
	}
	return cfg, cfg.Validate()
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Provider.IsValid() {
		return fmt.Errorf("invalid provider: %s", c.Provider)
	}

	switch c.Provider {
	case core.ProviderTrueLayer:
		if c.BackendURL == "" {
			return fmt.Errorf("backend URL is required for truelayer")
		}
	case core.ProviderPlaid:
		if !c.PlaidMode.IsValid() {
			return fmt.Errorf("invalid plaid mode: %s", c.PlaidMode)
		}
		if c.PlaidMode == PlaidViaBackend && c.BackendURL == "" {
			return fmt.Errorf("backend URL is required for plaid in backend mode")
		}
		if c.PlaidMode == PlaidDirect && (c.PlaidClientID == "" || c.PlaidSecret == "") {
			return fmt.Errorf("plaid client id and secret are required in direct mode")
		}
	}

	if c.AMQPURL != "" && c.RelaySecret == "" {
		return fmt.Errorf("relay secret is required when AMQP is configured")
	}
	return nil
}
