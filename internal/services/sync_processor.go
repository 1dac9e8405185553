package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"accounting/internal/core"
	"accounting/internal/sheets"
)

// SyncProcessorConfig holds configuration for the sync processor
type SyncProcessorConfig struct {
	// PollInterval is how often the change journal is checked (default: 30s)
	PollInterval time.Duration
}

// DefaultSyncProcessorConfig returns sensible defaults
func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		PollInterval: 30 * time.Second,
	}
}

// ChangeCounter reports how many changes have been recorded so far.
type ChangeCounter interface {
	Count(ctx context.Context) (int64, error)
}

// SnapshotFunc reads the current ledger contents.
type SnapshotFunc func(ctx context.Context) ([]core.Entry, error)

// SyncProcessor mirrors the ledger to an exporter whenever the change
// journal grows, or immediately when triggered.
type SyncProcessor struct {
	counter  ChangeCounter
	snapshot SnapshotFunc
	exporter sheets.Exporter
	config   SyncProcessorConfig

	// synced is the journal count at the last successful export; -1 forces
	// an export on the first cycle.
	synced int64

	// Lifecycle management
	mu        sync.Mutex
	running   bool
	stopCh    chan struct{}
	doneCh    chan struct{}
	triggerCh chan struct{}
}

// NewSyncProcessor creates a new sync processor. counter may be nil, in
// which case only Trigger and the first cycle export.
func NewSyncProcessor(
	counter ChangeCounter,
	snapshot SnapshotFunc,
	exporter sheets.Exporter,
	config SyncProcessorConfig,
) *SyncProcessor {
	return &SyncProcessor{
		counter:   counter,
		snapshot:  snapshot,
		exporter:  exporter,
		config:    config,
		synced:    -1,
		triggerCh: make(chan struct{}, 1),
	}
}

// Start begins the processing loop. Returns an error if already running.
func (p *SyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("sync processor is already running")
	}
	if p.snapshot == nil || p.exporter == nil {
		p.mu.Unlock()
		return fmt.Errorf("sync processor needs a snapshot source and an exporter")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Sync processor started",
		"poll_interval", p.config.PollInterval)

	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	// Signal stop
	close(p.stopCh)

	// Wait for completion or context cancellation
	select {
	case <-p.doneCh:
		slog.InfoContext(ctx, "Sync processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Sync processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	return nil
}

// IsRunning returns whether the processor is currently running
func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Trigger requests an export on the next loop iteration regardless of the
// journal count. Repeated triggers before that iteration collapse into one.
func (p *SyncProcessor) Trigger() {
	select {
	case p.triggerCh <- struct{}{}:
	default:
	}
}

// runLoop is the main processing loop
func (p *SyncProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	pollTicker := time.NewTicker(p.config.PollInterval)
	defer pollTicker.Stop()

	// Process immediately on startup
	p.syncOnce(ctx, false)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-pollTicker.C:
			p.syncOnce(ctx, false)
		case <-p.triggerCh:
			p.syncOnce(ctx, true)
		}
	}
}

// syncOnce exports the ledger if the journal moved since the last export
// or force is set. Failures are logged and retried on the next cycle.
func (p *SyncProcessor) syncOnce(ctx context.Context, force bool) {
	count := p.synced
	if p.counter != nil {
		n, err := p.counter.Count(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to read change journal", "error", err)
			return
		}
		count = n
	}
	if !force && p.synced >= 0 && count == p.synced {
		return
	}

	entries, err := p.snapshot(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to read ledger", "error", err)
		return
	}
	n, err := p.exporter.Export(ctx, entries)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to export ledger", "error", err)
		return
	}
	if count < 0 {
		count = 0
	}
	p.synced = count

	slog.InfoContext(ctx, "Exported ledger", "rows", n, "journal_count", count)
}
