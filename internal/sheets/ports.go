package sheets

import (
	"context"
	"errors"

	"accounting/internal/core"
)

// FirstEntryRow is the 1-based position of the first entry; row 1 is the header.
const FirstEntryRow = 2

var (
	ErrNotLoaded     = errors.New("ledger not loaded")
	ErrHeaderRow     = errors.New("row 1 is the header")
	ErrRowOutOfRange = errors.New("row out of range")
)

// Ports for ledger storage adapters.
type (
	EntryReader interface {
		// List decodes every entry row. Rows that fail to decode or validate
		// are reported in Listing.Skipped instead of failing the call.
		List() (Listing, error)
		// Get returns the entry at row, or false if it is absent or invalid.
		Get(row int) (core.Entry, bool)
		// LastRow is the position of the last used row; 1 when only the
		// header exists.
		LastRow() (int, error)
	}

	EntryWriter interface {
		Append(e core.Entry) error
		Replace(row int, e core.Entry) error
		// Remove deletes row and shifts later rows up by one.
		Remove(row int) error
		Flush() error
		// Discard drops every change made since the last successful Flush,
		// or since the ledger was opened.
		Discard() error
	}

	Ledger interface {
		EntryReader
		EntryWriter
	}

	// Exporter copies a full set of entries to an external destination.
	Exporter interface {
		Export(ctx context.Context, entries []core.Entry) (int, error)
	}
)

// Record is a decoded entry and the row it was read from.
type Record struct {
	Row   int
	Entry core.Entry
}

// SkippedRow is a non-blank row that could not be decoded.
type SkippedRow struct {
	Row int
	Err error
}

// Listing is the result of EntryReader.List.
type Listing struct {
	Records []Record
	Skipped []SkippedRow
}

// Entries returns the decoded entries in row order.
func (l Listing) Entries() []core.Entry {
	out := make([]core.Entry, len(l.Records))
	for i, r := range l.Records {
		out[i] = r.Entry
	}
	return out
}

// CheckRow validates a row position against a store holding last rows,
// header included.
func CheckRow(row, last int) error {
	if row == 1 {
		return ErrHeaderRow
	}
	if row < FirstEntryRow || row > last {
		return ErrRowOutOfRange
	}
	return nil
}
