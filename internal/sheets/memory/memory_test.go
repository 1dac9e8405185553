package memory

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"accounting/internal/core"
	"accounting/internal/sheets"
)

func entry(t *testing.T, platform string) core.Entry {
	t.Helper()
	e, err := core.Construct(core.Fields{
		OccurredAt:    time.Date(2024, 1, 2, 3, 4, 5, 0, time.Local),
		Platform:      platform,
		ProductName:   "Widget",
		OrderQuantity: 1,
		TotalSales:    decimal.NewFromInt(10),
		PlatformFee:   decimal.NewFromInt(1),
	})
	if err != nil {
		t.Fatalf("construct: %v", err)
	}
	return e
}

func TestMemoryStoreRows(t *testing.T) {
	s := New()
	if err := s.Append(entry(t, "A")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Append(entry(t, "B")); err != nil {
		t.Fatalf("append: %v", err)
	}

	listing, _ := s.List()
	if len(listing.Records) != 2 || listing.Records[0].Row != 2 || listing.Records[1].Row != 3 {
		t.Fatalf("unexpected listing: %+v", listing.Records)
	}

	if err := s.Replace(3, entry(t, "C")); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if e, ok := s.Get(3); !ok || e.Platform != "C" {
		t.Fatalf("get after replace: %+v %v", e, ok)
	}

	if err := s.Remove(2); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if e, ok := s.Get(2); !ok || e.Platform != "C" {
		t.Fatalf("rows should shift up: %+v %v", e, ok)
	}
	if _, ok := s.Get(3); ok {
		t.Fatalf("row 3 should be gone")
	}
}

func TestMemoryStoreBounds(t *testing.T) {
	s := New(entry(t, "A"))
	if err := s.Remove(1); !errors.Is(err, sheets.ErrHeaderRow) {
		t.Fatalf("expected ErrHeaderRow, got %v", err)
	}
	if err := s.Replace(5, entry(t, "B")); !errors.Is(err, sheets.ErrRowOutOfRange) {
		t.Fatalf("expected ErrRowOutOfRange, got %v", err)
	}
	if err := s.Append(core.Entry{}); err == nil {
		t.Fatalf("expected validation error")
	}
	_ = s.Flush()
	if s.Flushes() != 1 {
		t.Fatalf("flushes = %d", s.Flushes())
	}
}

func TestMemoryStoreLastRow(t *testing.T) {
	s := New()
	if last, _ := s.LastRow(); last != 1 {
		t.Errorf("empty store last row = %d, want 1", last)
	}
	if err := s.Append(entry(t, "A")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if last, _ := s.LastRow(); last != 2 {
		t.Errorf("last row = %d, want 2", last)
	}
}

func TestMemoryStoreDiscard(t *testing.T) {
	s := New(entry(t, "A"))
	if err := s.Append(entry(t, "B")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Discard(); err != nil {
		t.Fatalf("discard: %v", err)
	}
	if last, _ := s.LastRow(); last != 2 {
		t.Fatalf("discard should restore the seed, last row = %d", last)
	}

	if err := s.Append(entry(t, "C")); err != nil {
		t.Fatalf("append: %v", err)
	}
	_ = s.Flush()
	if err := s.Remove(2); err != nil {
		t.Fatalf("remove: %v", err)
	}
	_ = s.Discard()
	listing, _ := s.List()
	if len(listing.Records) != 2 || listing.Records[0].Entry.Platform != "A" || listing.Records[1].Entry.Platform != "C" {
		t.Fatalf("discard should restore the last flush: %+v", listing.Records)
	}
}
