package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"banklink/internal/aggregator"
	"banklink/internal/cache"
	"banklink/internal/core"
	"banklink/internal/log"
)

// ErrNotLinked is returned when no access token is stored.
var ErrNotLinked = errors.New("no bank account linked")

// TokenStore persists the provider tokens.
type TokenStore interface {
	Tokens(ctx context.Context, p core.Provider) (core.AuthTokens, error)
	SaveTokens(ctx context.Context, p core.Provider, t core.AuthTokens) error
	ClearTokens(ctx context.Context, p core.Provider) error
}

// EventPublisher announces completed links to other processes.
type EventPublisher interface {
	PublishAccountLinked(ctx context.Context, provider string) error
}

type SpendingConfig struct {
	Provider core.Provider
	Source   aggregator.DataSource
	Tokens   TokenStore
	Cache    cache.Cache[[]core.Transaction]
	Events   EventPublisher // optional
	Rule     core.SpendRule
	Currency string
	// FetchTimeout bounds one shared backend fetch, retries included.
	FetchTimeout time.Duration
	Now          func() time.Time
	Logger       *log.Logger
}

// SpendingService owns the linked account's tokens and turns its
// transactions into spending views.
type SpendingService struct {
	provider core.Provider
	source   aggregator.DataSource
	tokens   TokenStore
	cache    cache.Cache[[]core.Transaction]
	events   EventPublisher
	rule     core.SpendRule
	currency string
	timeout  time.Duration
	now      func() time.Time
	logger   *log.Logger
	group    singleflight.Group
}

func NewSpendingService(cfg SpendingConfig) *SpendingService {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Discard()
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = aggregator.DefaultRetryPolicy().Budget(30 * time.Second)
	}
	return &SpendingService{
		provider: cfg.Provider,
		source:   cfg.Source,
		tokens:   cfg.Tokens,
		cache:    cfg.Cache,
		events:   cfg.Events,
		rule:     cfg.Rule,
		currency: cfg.Currency,
		timeout:  cfg.FetchTimeout,
		now:      cfg.Now,
		logger:   cfg.Logger.WithComponent(log.ComponentSpending),
	}
}

func (s *SpendingService) Provider() core.Provider { return s.provider }

// IsLinked reports whether an access token is stored.
func (s *SpendingService) IsLinked(ctx context.Context) (bool, error) {
	t, err := s.tokens.Tokens(ctx, s.provider)
	if err != nil {
		return false, err
	}
	return !t.IsZero(), nil
}

// StoreTokens is the success callback of a handshake.
func (s *SpendingService) StoreTokens(ctx context.Context, t core.AuthTokens) error {
	if err := s.tokens.SaveTokens(ctx, s.provider, t); err != nil {
		return fmt.Errorf("store tokens: %w", err)
	}
	s.clearCache()
	s.logger.InfoContext(ctx, "Bank account linked", log.FieldProvider, s.provider.String())

	if s.events == nil {
		return nil
	}
	if err := s.events.PublishAccountLinked(ctx, s.provider.String()); err != nil {
		// Tokens are stored; the worker catches up on its next tick.
		s.logger.WarnContext(ctx, "Failed to publish account linked event", log.FieldError, err)
	}
	return nil
}

// Unlink forgets the tokens and anything cached for them.
func (s *SpendingService) Unlink(ctx context.Context) error {
	if err := s.tokens.ClearTokens(ctx, s.provider); err != nil {
		return fmt.Errorf("clear tokens: %w", err)
	}
	s.clearCache()
	s.logger.InfoContext(ctx, "Bank account unlinked", log.FieldProvider, s.provider.String())
	return nil
}

// Transactions returns the linked account's transactions. Concurrent callers
// share one backend request and results are cached per token.
func (s *SpendingService) Transactions(ctx context.Context) ([]core.Transaction, error) {
	tokens, err := s.tokens.Tokens(ctx, s.provider)
	if err != nil {
		return nil, err
	}
	if tokens.IsZero() {
		return nil, ErrNotLinked
	}

	key := s.cacheKey(tokens)
	if s.cache != nil {
		if txs, ok := s.cache.Get(key); ok {
			return txs, nil
		}
	}

	// The flight is shared, so it runs on its own deadline rather than the
	// context of whichever caller started it.
	flight := s.group.DoChan(key, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		txs, err := s.source.Transactions(fetchCtx, tokens)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			s.cache.Set(key, txs)
		}
		return txs, nil
	})

	var res singleflight.Result
	select {
	case res = <-flight:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if err := res.Err; err != nil {
		s.logger.WarnContext(ctx, "Failed to fetch transactions",
			log.FieldError, err,
			log.FieldTextCode, aggregator.TextCode(err))
		return nil, err
	}
	return res.Val.([]core.Transaction), nil
}

// View builds what the dashboard shows. Fetch failures become an error view
// and ErrNotLinked is returned when there is nothing to show.
func (s *SpendingService) View(ctx context.Context) (core.SpendingView, error) {
	txs, err := s.Transactions(ctx)
	if errors.Is(err, ErrNotLinked) {
		return core.SpendingView{}, err
	}
	if err != nil {
		return core.SpendingView{
			State:    core.ViewError,
			Currency: s.currency,
			Message:  aggregator.UserMessage(err, aggregator.MsgTransactionsFailed),
		}, nil
	}
	return core.NewSpendingView(txs, s.now(), s.rule, s.currency), nil
}

// Summary fetches and summarises in one step.
func (s *SpendingService) Summary(ctx context.Context) (core.Summary, error) {
	txs, err := s.Transactions(ctx)
	if err != nil {
		return core.Summary{}, err
	}
	return core.Summarize(txs, s.now(), s.rule), nil
}

// Refresh drops cached transactions so the next read hits the backend.
func (s *SpendingService) Refresh() {
	s.clearCache()
}

func (s *SpendingService) clearCache() {
	if s.cache != nil {
		s.cache.Clear()
	}
}

// cacheKey avoids keeping raw tokens as cache keys.
func (s *SpendingService) cacheKey(t core.AuthTokens) string {
	sum := sha256.Sum256([]byte(t.AccessToken))
	return s.provider.String() + ":" + hex.EncodeToString(sum[:8])
}
