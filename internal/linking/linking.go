// Package linking runs the bank-linking handshake: it starts an authorization
// attempt and validates the provider's return before exchanging the code.
package linking

import (
	"context"
	"fmt"
	"strings"

	"banklink/internal/core"
)

type Mode string

const (
	ModeRedirect Mode = "redirect"
	ModePopup    Mode = "popup"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeRedirect, ModePopup:
		return m, nil
	default:
		return "", fmt.Errorf("unknown link mode %q", s)
	}
}

// SessionStore keeps the anti-forgery parameters of the pending attempt.
type SessionStore interface {
	SaveLinkSession(ctx context.Context, s core.LinkSession) error
	LinkSession(ctx context.Context) (core.LinkSession, bool, error)
	ClearLinkSession(ctx context.Context) error
}

// TokenSink receives the tokens of a successful handshake.
type TokenSink interface {
	StoreTokens(ctx context.Context, t core.AuthTokens) error
}

// TokenSinkFunc adapts a function to TokenSink.
type TokenSinkFunc func(ctx context.Context, t core.AuthTokens) error

func (f TokenSinkFunc) StoreTokens(ctx context.Context, t core.AuthTokens) error { return f(ctx, t) }
