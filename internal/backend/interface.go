// Package backend assembles the configured provider, storage and relay.
package backend

import (
	"context"
	"time"

	"banklink/internal/aggregator"
	"banklink/internal/aggregator/plaid"
	"banklink/internal/amqp"
	"banklink/internal/core"
	"banklink/internal/relay"
	"banklink/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Provider bundles the clients of one bank data provider.
type Provider struct {
	Name core.Provider
	// Auth runs the redirect handshake. Nil for Plaid, which links through
	// Plaid Link and a public token instead.
	Auth   aggregator.AuthBackend
	Source aggregator.DataSource
	// Linker is set for Plaid only.
	Linker plaid.Linker
}

// Result contains everything the binaries wire together.
type Result struct {
	Store    storage.KeyValueStore
	Sessions *storage.SessionStore
	Provider Provider
	Relay    relay.Channel
	// AMQP is nil unless a broker is configured.
	AMQP    *amqp.Client
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	Create(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for backend creation
type Config struct {
	Provider       core.Provider
	BackendURL     string
	BackendTimeout time.Duration

	// Plaid specific
	PlaidMode     PlaidMode
	PlaidClientID string
	PlaidSecret   string
	PlaidEnv      string

	// Storage
	Store storage.Options

	// AMQP, optional
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
	RelaySecret  string
}

// PlaidMode selects how Plaid is reached.
type PlaidMode string

const (
	// PlaidViaBackend goes through the companion backend service.
	PlaidViaBackend PlaidMode = "backend"
	// PlaidDirect calls the Plaid API with the SDK.
	PlaidDirect PlaidMode = "direct"
)

// String implements fmt.Stringer
func (m PlaidMode) String() string {
	return string(m)
}

// IsValid returns true if the mode is known
func (m PlaidMode) IsValid() bool {
	switch m {
	case PlaidViaBackend, PlaidDirect:
		return true
	default:
		return false
	}
}
