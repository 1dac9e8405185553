package memory

import (
	"fmt"
	"sync"

	"accounting/internal/core"
	"accounting/internal/sheets"
)

// Store keeps entries in memory with the same row numbering as the
// spreadsheet store: the first entry lives at row 2.
type Store struct {
	mu      sync.Mutex
	items   []core.Entry
	saved   []core.Entry
	flushes int
}

var _ sheets.Ledger = (*Store)(nil)

func New(seed ...core.Entry) *Store {
	items := append([]core.Entry(nil), seed...)
	return &Store{items: items, saved: append([]core.Entry(nil), items...)}
}

// List returns every entry with its row position.
func (s *Store) List() (sheets.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out sheets.Listing
	for i, e := range s.items {
		out.Records = append(out.Records, sheets.Record{Row: i + sheets.FirstEntryRow, Entry: e})
	}
	return out, nil
}

func (s *Store) Get(row int) (core.Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sheets.CheckRow(row, s.lastRow()) != nil {
		return core.Entry{}, false
	}
	return s.items[row-sheets.FirstEntryRow], true
}

func (s *Store) LastRow() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRow(), nil
}

// Append stores the entry after the last row.
func (s *Store) Append(e core.Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, e)
	return nil
}

func (s *Store) Replace(row int, e core.Entry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := sheets.CheckRow(row, s.lastRow()); err != nil {
		return fmt.Errorf("row %d: %w", row, err)
	}
	s.items[row-sheets.FirstEntryRow] = e
	return nil
}

func (s *Store) Remove(row int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := sheets.CheckRow(row, s.lastRow()); err != nil {
		return fmt.Errorf("row %d: %w", row, err)
	}
	i := row - sheets.FirstEntryRow
	s.items = append(s.items[:i], s.items[i+1:]...)
	return nil
}

// Flush counts calls and marks the current entries as saved.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushes++
	s.saved = append([]core.Entry(nil), s.items...)
	return nil
}

// Discard restores the entries as of the last Flush.
func (s *Store) Discard() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append([]core.Entry(nil), s.saved...)
	return nil
}

// Flushes reports how many times Flush was called.
func (s *Store) Flushes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushes
}

func (s *Store) lastRow() int {
	return len(s.items) + sheets.FirstEntryRow - 1
}
