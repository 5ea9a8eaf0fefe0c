package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"banklink/internal/aggregator"
	"banklink/internal/aggregator/plaid"
	"banklink/internal/aggregator/truelayer"
	"banklink/internal/amqp"
	"banklink/internal/core"
	"banklink/internal/log"
	"banklink/internal/relay"
	"banklink/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Discard()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentAggregator),
	}
}

// Create implements Factory.Create
func (f *DefaultFactory) Create(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	provider, err := f.createProvider(config)
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(ctx, config.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", config.Store.Backend, err)
	}
	f.logger.Info("Initialized store", "backend", config.Store.Backend)

	res := &Result{
		Store:    store,
		Sessions: storage.NewSessionStore(store),
		Provider: provider,
	}

	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to initialize AMQP client: %w", err)
		}
		f.logger.Info("Initialized AMQP client",
			"exchange", config.AMQPExchange,
			"queue", config.AMQPQueue)
		res.AMQP = client
		res.Relay = amqp.NewRelay(client, config.RelaySecret)
	} else {
		res.Relay = relay.NewMemory()
	}

	res.Cleanup = func() error {
		var errs []error
		if res.AMQP != nil {
			errs = append(errs, res.AMQP.Close())
		}
		errs = append(errs, store.Close())
		return errors.Join(errs...)
	}
	return res, nil
}

func (f *DefaultFactory) createProvider(config Config) (Provider, error) {
	timeout := config.BackendTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout}

	switch config.Provider {
	case core.ProviderTrueLayer:
		tl := truelayer.New(config.BackendURL, httpClient)
		f.logger.Info("Initialized TrueLayer provider", "backend_url", config.BackendURL)
		return Provider{Name: core.ProviderTrueLayer, Auth: tl, Source: tl}, nil

	case core.ProviderPlaid:
		var src plaid.Source
		if config.PlaidMode == PlaidDirect {
			direct, err := plaid.NewDirect(plaid.DirectConfig{
				ClientID:    config.PlaidClientID,
				Secret:      config.PlaidSecret,
				Environment: config.PlaidEnv,
				HTTPClient:  httpClient,
			}, aggregator.DefaultRetryPolicy())
			if err != nil {
				return Provider{}, fmt.Errorf("failed to initialize Plaid client: %w", err)
			}
			src = direct
		} else {
			src = plaid.NewBackendClient(config.BackendURL, httpClient, aggregator.DefaultRetryPolicy())
		}
		f.logger.Info("Initialized Plaid provider", "mode", config.PlaidMode.String())
		return Provider{Name: core.ProviderPlaid, Source: src, Linker: src}, nil

	default:
		return Provider{}, fmt.Errorf("unsupported provider: %s", config.Provider)
	}
}
