package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"accounting/internal/core"

	_ "modernc.org/sqlite"
)

// AuditRecord is a journaled change event with its sequence number.
type AuditRecord struct {
	Seq        int64
	Event      core.ChangeEvent
	RecordedAt time.Time
}

// AuditRepository journals every persisted ledger change in SQLite.
type AuditRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewAuditRepository(dbPath string) (*AuditRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &AuditRepository{db: db, queries: New(db)}, nil
}

func (r *AuditRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Record stores ev. Event IDs are unique; recording the same event twice fails.
func (r *AuditRepository) Record(ctx context.Context, ev core.ChangeEvent) error {
	arg := InsertEventParams{
		EventID:     ev.ID.String(),
		Op:          string(ev.Op),
		RowPosition: int64(ev.Row),
		RecordedAt:  time.Now().UTC().Format(time.RFC3339Nano),
	}
	if e := ev.Entry; e != nil {
		arg.OccurredAt = sql.NullString{String: core.FormatTimestamp(e.OccurredAt), Valid: true}
		arg.Platform = sql.NullString{String: e.Platform, Valid: true}
		arg.ProductName = sql.NullString{String: e.ProductName, Valid: true}
		arg.OrderQuantity = sql.NullInt64{Int64: int64(e.OrderQuantity), Valid: true}
		arg.TotalSales = sql.NullString{String: e.TotalSales.String(), Valid: true}
		arg.PlatformFee = sql.NullString{String: e.PlatformFee.String(), Valid: true}
		arg.ActualIncome = sql.NullString{String: e.ActualIncome().String(), Valid: true}
		arg.InvoiceRequired = sql.NullBool{Bool: e.InvoiceRequired, Valid: true}
		arg.Taxable = sql.NullBool{Bool: e.Taxable, Valid: true}
	}

	seq, err := r.queries.InsertEvent(ctx, arg)
	if err != nil {
		return fmt.Errorf("insert ledger event: %w", err)
	}

	slog.DebugContext(ctx, "Ledger event journaled",
		"seq", seq,
		"event_id", arg.EventID,
		"op", arg.Op,
		"row", ev.Row)
	return nil
}

// Recent returns up to limit events, newest first.
func (r *AuditRepository) Recent(ctx context.Context, limit int) ([]AuditRecord, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be positive")
	}
	rows, err := r.queries.ListRecentEvents(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list ledger events: %w", err)
	}
	out := make([]AuditRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := toAuditRecord(row)
		if err != nil {
			return nil, fmt.Errorf("decode ledger event %d: %w", row.Seq, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// Count returns the number of journaled events.
func (r *AuditRepository) Count(ctx context.Context) (int64, error) {
	n, err := r.queries.CountEvents(ctx)
	if err != nil {
		return 0, fmt.Errorf("count ledger events: %w", err)
	}
	return n, nil
}

func toAuditRecord(row LedgerEvent) (AuditRecord, error) {
	id, err := uuid.Parse(row.EventID)
	if err != nil {
		return AuditRecord{}, fmt.Errorf("event id: %w", err)
	}
	recordedAt, err := time.Parse(time.RFC3339Nano, row.RecordedAt)
	if err != nil {
		return AuditRecord{}, fmt.Errorf("recorded_at: %w", err)
	}
	rec := AuditRecord{
		Seq: row.Seq,
		Event: core.ChangeEvent{
			ID:  id,
			Op:  core.ChangeOp(row.Op),
			Row: int(row.RowPosition),
			At:  recordedAt,
		},
		RecordedAt: recordedAt,
	}
	if !row.OccurredAt.Valid {
		return rec, nil
	}

	occurred, err := core.ParseTimestamp(row.OccurredAt.String)
	if err != nil {
		return AuditRecord{}, err
	}
	sales, err := decimal.NewFromString(row.TotalSales.String)
	if err != nil {
		return AuditRecord{}, fmt.Errorf("total_sales: %w", err)
	}
	fee, err := decimal.NewFromString(row.PlatformFee.String)
	if err != nil {
		return AuditRecord{}, fmt.Errorf("platform_fee: %w", err)
	}
	taxable := row.Taxable.Bool
	e, err := core.Construct(core.Fields{
		OccurredAt:      occurred,
		Platform:        row.Platform.String,
		ProductName:     row.ProductName.String,
		OrderQuantity:   int(row.OrderQuantity.Int64),
		TotalSales:      sales,
		PlatformFee:     fee,
		InvoiceRequired: row.InvoiceRequired.Bool,
		Taxable:         &taxable,
	})
	if err != nil {
		return AuditRecord{}, err
	}
	rec.Event.Entry = &e
	return rec, nil
}
