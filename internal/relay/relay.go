// Package relay delivers one-shot messages between the window (or process)
// that completes an authorization and the one that started it.
package relay

import (
	"context"
	"errors"
)

// TypeAuthSuccess is sent by the callback page once tokens are obtained.
const TypeAuthSuccess = "TRUELAYER_AUTH_SUCCESS"

var (
	// ErrClosed is returned by Wait after the subscription was disposed.
	ErrClosed = errors.New("relay subscription closed")
	// ErrNoOrigin is returned when sending or subscribing without an origin.
	ErrNoOrigin = errors.New("relay origin required")
)

// Message is the payload exchanged over the relay.
type Message struct {
	Type         string `json:"type"`
	Origin       string `json:"-"`
	AccessToken  string `json:"accessToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
}

// Filter scopes a subscription to a single origin and message type.
type Filter struct {
	Origin string
	Type   string
}

// Accepts reports whether m passes the origin check and type match.
func (f Filter) Accepts(m Message) bool {
	if f.Origin == "" || m.Origin != f.Origin {
		return false
	}
	return f.Type == "" || m.Type == f.Type
}

// Subscription receives at most one message and unsubscribes itself after it.
type Subscription interface {
	// Wait blocks until a matching message arrives, ctx ends or Close is called.
	// It always disposes the subscription before returning.
	Wait(ctx context.Context) (Message, error)
	Close() error
}

// Channel is a one-shot message relay.
type Channel interface {
	Send(ctx context.Context, m Message) error
	Subscribe(ctx context.Context, f Filter) (Subscription, error)
}
