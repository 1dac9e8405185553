package storage

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

type LedgerEvent struct {
	Seq             int64
	EventID         string
	Op              string
	RowPosition     int64
	OccurredAt      sql.NullString
	Platform        sql.NullString
	ProductName     sql.NullString
	OrderQuantity   sql.NullInt64
	TotalSales      sql.NullString
	PlatformFee     sql.NullString
	ActualIncome    sql.NullString
	InvoiceRequired sql.NullBool
	Taxable         sql.NullBool
	RecordedAt      string
}

const insertEvent = `
INSERT INTO ledger_events (
    event_id, op, row_position, occurred_at, platform, product_name,
    order_quantity, total_sales, platform_fee, actual_income,
    invoice_required, taxable, recorded_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

type InsertEventParams struct {
	EventID         string
	Op              string
	RowPosition     int64
	OccurredAt      sql.NullString
	Platform        sql.NullString
	ProductName     sql.NullString
	OrderQuantity   sql.NullInt64
	TotalSales      sql.NullString
	PlatformFee     sql.NullString
	ActualIncome    sql.NullString
	InvoiceRequired sql.NullBool
	Taxable         sql.NullBool
	RecordedAt      string
}

func (q *Queries) InsertEvent(ctx context.Context, arg InsertEventParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, insertEvent,
		arg.EventID,
		arg.Op,
		arg.RowPosition,
		arg.OccurredAt,
		arg.Platform,
		arg.ProductName,
		arg.OrderQuantity,
		arg.TotalSales,
		arg.PlatformFee,
		arg.ActualIncome,
		arg.InvoiceRequired,
		arg.Taxable,
		arg.RecordedAt,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const listRecentEvents = `
SELECT seq, event_id, op, row_position, occurred_at, platform, product_name,
       order_quantity, total_sales, platform_fee, actual_income,
       invoice_required, taxable, recorded_at
FROM ledger_events
ORDER BY seq DESC
LIMIT ?
`

func (q *Queries) ListRecentEvents(ctx context.Context, limit int64) ([]LedgerEvent, error) {
	rows, err := q.db.QueryContext(ctx, listRecentEvents, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []LedgerEvent
	for rows.Next() {
		var i LedgerEvent
		if err := rows.Scan(
			&i.Seq,
			&i.EventID,
			&i.Op,
			&i.RowPosition,
			&i.OccurredAt,
			&i.Platform,
			&i.ProductName,
			&i.OrderQuantity,
			&i.TotalSales,
			&i.PlatformFee,
			&i.ActualIncome,
			&i.InvoiceRequired,
			&i.Taxable,
			&i.RecordedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countEvents = `SELECT COUNT(*) FROM ledger_events`

func (q *Queries) CountEvents(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countEvents).Scan(&n)
	return n, err
}
