package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"banklink/internal/core"
	"banklink/internal/export/sheets"
	"banklink/internal/log"
)

// SummarySource produces the current spending summary.
type SummarySource interface {
	Provider() core.Provider
	Summary(ctx context.Context) (core.Summary, error)
	Refresh()
}

// SnapshotProcessorConfig holds configuration for the snapshot processor
type SnapshotProcessorConfig struct {
	// Interval is how often a snapshot is exported (default: 1h)
	Interval time.Duration

	// Timeout bounds a single export run (default: 2m)
	Timeout time.Duration
}

// DefaultSnapshotProcessorConfig returns sensible defaults
func DefaultSnapshotProcessorConfig() SnapshotProcessorConfig {
	return SnapshotProcessorConfig{
		Interval: time.Hour,
		Timeout:  2 * time.Minute,
	}
}

// SnapshotProcessor periodically exports the spending summary.
type SnapshotProcessor struct {
	source SummarySource
	writer sheets.SnapshotWriter
	config SnapshotProcessorConfig
	now    func() time.Time
	logger *log.Logger

	triggerCh chan struct{}

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewSnapshotProcessor creates a new snapshot processor
func NewSnapshotProcessor(source SummarySource, writer sheets.SnapshotWriter, config SnapshotProcessorConfig, logger *log.Logger) *SnapshotProcessor {
	if config.Interval <= 0 {
		config.Interval = DefaultSnapshotProcessorConfig().Interval
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultSnapshotProcessorConfig().Timeout
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &SnapshotProcessor{
		source:    source,
		writer:    writer,
		config:    config,
		now:       time.Now,
		logger:    logger.WithComponent(log.ComponentWorker),
		triggerCh: make(chan struct{}, 1),
	}
}

// Start begins the processing loop. Returns an error if already running.
func (p *SnapshotProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("snapshot processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	p.logger.InfoContext(ctx, "Snapshot processor started", "interval", p.config.Interval)
	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *SnapshotProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		p.logger.InfoContext(ctx, "Snapshot processor stopped gracefully")
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "Snapshot processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	return nil
}

// IsRunning returns whether the processor is currently running
func (p *SnapshotProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Trigger asks for a fresh snapshot without waiting for the next tick.
// Triggers coalesce while a run is pending.
func (p *SnapshotProcessor) Trigger() {
	select {
	case p.triggerCh <- struct{}{}:
	default:
	}
}

func (p *SnapshotProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	// Export immediately on startup
	p.runOnce(ctx, false)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.runOnce(ctx, false)
		case <-p.triggerCh:
			p.runOnce(ctx, true)
		}
	}
}

func (p *SnapshotProcessor) runOnce(ctx context.Context, refresh bool) {
	runCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	if _, err := p.Export(runCtx, refresh); err != nil && !errors.Is(err, ErrNotLinked) {
		p.logger.ErrorContext(ctx, "Snapshot export failed", log.FieldError, err)
	}
}

// Export summarises and appends one snapshot. refresh drops cached
// transactions first.
func (p *SnapshotProcessor) Export(ctx context.Context, refresh bool) (string, error) {
	if refresh {
		p.source.Refresh()
	}

	summary, err := p.source.Summary(ctx)
	if errors.Is(err, ErrNotLinked) {
		p.logger.DebugContext(ctx, "No linked account, skipping snapshot")
		return "", err
	}
	if err != nil {
		return "", fmt.Errorf("summarize: %w", err)
	}

	ref, err := p.writer.Append(ctx, sheets.Snapshot{
		TakenAt:  p.now(),
		Provider: p.source.Provider(),
		Summary:  summary,
	})
	if err != nil {
		return "", fmt.Errorf("append snapshot: %w", err)
	}

	p.logger.InfoContext(ctx, "Exported spending snapshot",
		log.FieldSheetsRef, ref,
		log.FieldTxCount, summary.Count)
	return ref, nil
}
