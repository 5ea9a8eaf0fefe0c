// Package worker reacts to account link events published by the web server.
package worker

import (
	"context"
	"fmt"

	"banklink/internal/amqp"
	"banklink/internal/core"
	"banklink/internal/log"
)

// Refresher is the part of the snapshot processor the worker drives.
type Refresher interface {
	Trigger()
}

// SummaryWorker turns account.linked events into an immediate snapshot.
type SummaryWorker struct {
	provider  core.Provider
	refresher Refresher
	logger    *log.Logger
}

func NewSummaryWorker(provider core.Provider, refresher Refresher, logger *log.Logger) *SummaryWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &SummaryWorker{
		provider:  provider,
		refresher: refresher,
		logger:    logger.WithComponent(log.ComponentWorker),
	}
}

// HandleAccountLinked processes a single account linked message from AMQP.
// Events for another provider are acknowledged and ignored.
func (w *SummaryWorker) HandleAccountLinked(ctx context.Context, msg *amqp.AccountLinkedMessage) error {
	if msg == nil {
		return fmt.Errorf("nil account linked message")
	}

	p, err := core.ParseProvider(msg.Provider)
	if err != nil {
		w.logger.WarnContext(ctx, "Ignoring account linked message",
			log.FieldProvider, msg.Provider,
			log.FieldError, err)
		return nil
	}
	if p != w.provider {
		w.logger.DebugContext(ctx, "Account linked for another provider",
			log.FieldProvider, p.String())
		return nil
	}

	w.logger.InfoContext(ctx, "Account linked, refreshing summary",
		log.FieldProvider, p.String(),
		"linked_at", msg.Timestamp)
	w.refresher.Trigger()
	return nil
}

// Run consumes account linked events until ctx is done.
func (w *SummaryWorker) Run(ctx context.Context, client *amqp.Client) error {
	return client.ConsumeAccountLinked(ctx, func(msg *amqp.AccountLinkedMessage) error {
		return w.HandleAccountLinked(ctx, msg)
	})
}
