package storage

import (
	"context"
	"fmt"

	"banklink/internal/core"
)

// Fixed keys shared with the browser-era layout of the application state.
const (
	KeyTrueLayerState        = "truelayer_state"
	KeyTrueLayerNonce        = "truelayer_nonce"
	KeyTrueLayerAccessToken  = "truelayer_access_token"
	KeyTrueLayerRefreshToken = "truelayer_refresh_token"
	KeyPlaidAccessToken      = "plaid_access_token"
)

// SessionStore maps link sessions and tokens onto a KeyValueStore.
type SessionStore struct {
	kv KeyValueStore
}

func NewSessionStore(kv KeyValueStore) *SessionStore {
	return &SessionStore{kv: kv}
}

// SaveLinkSession persists state and nonce, replacing any earlier attempt.
func (s *SessionStore) SaveLinkSession(ctx context.Context, sess core.LinkSession) error {
	if err := sess.Validate(); err != nil {
		return err
	}
	if err := s.kv.Set(ctx, KeyTrueLayerState, sess.State); err != nil {
		return fmt.Errorf("save link state: %w", err)
	}
	if err := s.kv.Set(ctx, KeyTrueLayerNonce, sess.Nonce); err != nil {
		return fmt.Errorf("save link nonce: %w", err)
	}
	return nil
}

// LinkSession returns the pending session. ok is false when no state is stored.
func (s *SessionStore) LinkSession(ctx context.Context) (core.LinkSession, bool, error) {
	state, ok, err := s.kv.Get(ctx, KeyTrueLayerState)
	if err != nil {
		return core.LinkSession{}, false, fmt.Errorf("load link state: %w", err)
	}
	if !ok || state == "" {
		return core.LinkSession{}, false, nil
	}
	nonce, _, err := s.kv.Get(ctx, KeyTrueLayerNonce)
	if err != nil {
		return core.LinkSession{}, false, fmt.Errorf("load link nonce: %w", err)
	}
	return core.LinkSession{State: state, Nonce: nonce}, true, nil
}

func (s *SessionStore) ClearLinkSession(ctx context.Context) error {
	return s.kv.Delete(ctx, KeyTrueLayerState, KeyTrueLayerNonce)
}

// SaveTokens stores the tokens under the provider's keys. A missing refresh
// token removes any stale one.
func (s *SessionStore) SaveTokens(ctx context.Context, p core.Provider, t core.AuthTokens) error {
	if err := t.Validate(); err != nil {
		return err
	}
	switch p {
	case core.ProviderPlaid:
		return s.kv.Set(ctx, KeyPlaidAccessToken, t.AccessToken)
	case core.ProviderTrueLayer:
		if err := s.kv.Set(ctx, KeyTrueLayerAccessToken, t.AccessToken); err != nil {
			return fmt.Errorf("save access token: %w", err)
		}
		if t.RefreshToken == "" {
			return s.kv.Delete(ctx, KeyTrueLayerRefreshToken)
		}
		if err := s.kv.Set(ctx, KeyTrueLayerRefreshToken, t.RefreshToken); err != nil {
			return fmt.Errorf("save refresh token: %w", err)
		}
		return nil
	default:
		return core.ErrUnknownProvider
	}
}

// Tokens loads the provider's tokens. The zero value means not linked.
func (s *SessionStore) Tokens(ctx context.Context, p core.Provider) (core.AuthTokens, error) {
	switch p {
	case core.ProviderPlaid:
		access, _, err := s.kv.Get(ctx, KeyPlaidAccessToken)
		if err != nil {
			return core.AuthTokens{}, fmt.Errorf("load plaid token: %w", err)
		}
		return core.AuthTokens{AccessToken: access}, nil
	case core.ProviderTrueLayer:
		access, _, err := s.kv.Get(ctx, KeyTrueLayerAccessToken)
		if err != nil {
			return core.AuthTokens{}, fmt.Errorf("load access token: %w", err)
		}
		refresh, _, err := s.kv.Get(ctx, KeyTrueLayerRefreshToken)
		if err != nil {
			return core.AuthTokens{}, fmt.Errorf("load refresh token: %w", err)
		}
		return core.AuthTokens{AccessToken: access, RefreshToken: refresh}, nil
	default:
		return core.AuthTokens{}, core.ErrUnknownProvider
	}
}

func (s *SessionStore) ClearTokens(ctx context.Context, p core.Provider) error {
	switch p {
	case core.ProviderPlaid:
		return s.kv.Delete(ctx, KeyPlaidAccessToken)
	case core.ProviderTrueLayer:
		return s.kv.Delete(ctx, KeyTrueLayerAccessToken, KeyTrueLayerRefreshToken)
	default:
		return core.ErrUnknownProvider
	}
}
