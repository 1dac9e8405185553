package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"accounting/internal/core"
	"accounting/internal/log"
	"accounting/internal/sheets"
)

// sinkTimeout bounds how long a single mutation waits for its sinks.
const sinkTimeout = 10 * time.Second

// Sink receives a change event after a mutation has been flushed.
type Sink interface {
	Publish(ctx context.Context, ev core.ChangeEvent) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev core.ChangeEvent) error

func (f SinkFunc) Publish(ctx context.Context, ev core.ChangeEvent) error { return f(ctx, ev) }

type namedSink struct {
	name string
	sink Sink
}

// LedgerService runs ledger operations against a store and notifies the
// configured sinks. Sink failures are logged and never fail an operation.
type LedgerService struct {
	store   sheets.Ledger
	sinks   []namedSink
	closers []func() error
	log     *log.Logger
}

// Option configures a LedgerService.
type Option func(*LedgerService)

// WithSink registers a sink under name.
func WithSink(name string, s Sink) Option {
	return func(svc *LedgerService) {
		svc.sinks = append(svc.sinks, namedSink{name: name, sink: s})
	}
}

// WithCloser registers a resource released by Close.
func WithCloser(fn func() error) Option {
	return func(svc *LedgerService) {
		svc.closers = append(svc.closers, fn)
	}
}

func WithLogger(l *log.Logger) Option {
	return func(svc *LedgerService) {
		if l != nil {
			svc.log = l.WithComponent(log.ComponentLedger)
		}
	}
}

// NewLedgerService creates a service over store.
func NewLedgerService(store sheets.Ledger, opts ...Option) *LedgerService {
	svc := &LedgerService{
		store: store,
		log:   log.Discard(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Add appends e and persists the ledger. It returns the row e was written to.
func (s *LedgerService) Add(ctx context.Context, e core.Entry) (int, error) {
	if err := e.Validate(); err != nil {
		return 0, err
	}
	if err := s.store.Append(e); err != nil {
		return 0, fmt.Errorf("append entry: %w", err)
	}
	if err := s.flush(ctx); err != nil {
		return 0, err
	}
	row, err := s.store.LastRow()
	if err != nil {
		return 0, fmt.Errorf("locate appended row: %w", err)
	}

	s.log.InfoContext(ctx, "entry added", log.NewFields().WithOperation(log.OpAppend).WithRow(row).WithEntry(e).ToSlice()...)
	s.publish(ctx, core.NewChangeEvent(core.OpAppend, row, &e))
	return row, nil
}

// Update replaces the entry at row and persists the ledger.
func (s *LedgerService) Update(ctx context.Context, row int, e core.Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if err := s.store.Replace(row, e); err != nil {
		return fmt.Errorf("replace entry: %w", err)
	}
	if err := s.flush(ctx); err != nil {
		return err
	}

	s.log.InfoContext(ctx, "entry updated", log.NewFields().WithOperation(log.OpReplace).WithRow(row).WithEntry(e).ToSlice()...)
	s.publish(ctx, core.NewChangeEvent(core.OpReplace, row, &e))
	return nil
}

// Delete removes row and persists the ledger. Later rows shift up by one.
func (s *LedgerService) Delete(ctx context.Context, row int) error {
	var removed *core.Entry
	if e, ok := s.store.Get(row); ok {
		removed = &e
	}
	if err := s.store.Remove(row); err != nil {
		return fmt.Errorf("remove entry: %w", err)
	}
	if err := s.flush(ctx); err != nil {
		return err
	}

	s.log.InfoContext(ctx, "entry deleted", log.FieldOperation, log.OpRemove, log.FieldRow, row)
	s.publish(ctx, core.NewChangeEvent(core.OpRemove, row, removed))
	return nil
}

// List returns every readable entry with its row.
func (s *LedgerService) List(ctx context.Context) (sheets.Listing, error) {
	listing, err := s.store.List()
	if err != nil {
		return sheets.Listing{}, fmt.Errorf("list entries: %w", err)
	}
	s.log.DebugContext(ctx, "listed entries", log.FieldRows, len(listing.Records), log.FieldSkipped, len(listing.Skipped))
	return listing, nil
}

// Get returns the entry at row, or false when there is none.
func (s *LedgerService) Get(row int) (core.Entry, bool) {
	return s.store.Get(row)
}

// Push copies every readable entry to exp and returns how many were written.
func (s *LedgerService) Push(ctx context.Context, exp sheets.Exporter) (int, error) {
	listing, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	start := time.Now()
	n, err := exp.Export(ctx, listing.Entries())
	if err != nil {
		return 0, fmt.Errorf("export entries: %w", err)
	}
	s.log.InfoContext(ctx, "ledger exported",
		log.FieldOperation, log.OpExport,
		log.FieldRows, n,
		log.FieldDuration, time.Since(start).Milliseconds())
	return n, nil
}

// Close releases every registered resource, returning the combined error.
func (s *LedgerService) Close() error {
	var errs []error
	for _, fn := range s.closers {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// flush persists the pending mutation. When that fails the mutation is
// discarded, so the loaded ledger keeps matching the file.
func (s *LedgerService) flush(ctx context.Context) error {
	err := s.store.Flush()
	if err == nil {
		return nil
	}
	if derr := s.store.Discard(); derr != nil {
		s.log.ErrorContext(ctx, "unsaved change could not be discarded", log.FieldError, derr)
		err = errors.Join(err, derr)
	}
	return fmt.Errorf("save ledger: %w", err)
}

// publish delivers ev to every sink concurrently and waits for them.
func (s *LedgerService) publish(ctx context.Context, ev core.ChangeEvent) {
	if len(s.sinks) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sinkTimeout)
	defer cancel()

	var g errgroup.Group
	for _, ns := range s.sinks {
		g.Go(func() error {
			if err := ns.sink.Publish(ctx, ev); err != nil {
				s.log.WarnContext(ctx, "change event not delivered",
					log.FieldSink, ns.name,
					log.FieldEventID, ev.ID.String(),
					log.FieldError, err)
				return fmt.Errorf("%s: %w", ns.name, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.log.DebugContext(ctx, "sink fan-out finished with errors", log.FieldEventID, ev.ID.String(), log.FieldError, err)
	}
}
