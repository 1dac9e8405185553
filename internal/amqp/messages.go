package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"accounting/internal/core"
)

// ChangeMessage is the wire form of a ledger change event.
type ChangeMessage struct {
	EventID   string        `json:"event_id"`
	Op        string        `json:"op"`
	Row       int           `json:"row"`
	Entry     *EntryPayload `json:"entry,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// EntryPayload carries an entry snapshot. Amounts are decimal strings.
type EntryPayload struct {
	OccurredAt      string          `json:"occurred_at"`
	Platform        string          `json:"platform"`
	ProductName     string          `json:"product_name"`
	OrderQuantity   int             `json:"order_quantity"`
	TotalSales      decimal.Decimal `json:"total_sales"`
	PlatformFee     decimal.Decimal `json:"platform_fee"`
	ActualIncome    decimal.Decimal `json:"actual_income"`
	InvoiceRequired bool            `json:"invoice_required"`
	Taxable         bool            `json:"taxable"`
}

// NewChangeMessage converts an event into its wire form.
func NewChangeMessage(ev core.ChangeEvent) *ChangeMessage {
	msg := &ChangeMessage{
		EventID:   ev.ID.String(),
		Op:        string(ev.Op),
		Row:       ev.Row,
		Timestamp: ev.At,
	}
	if e := ev.Entry; e != nil {
		msg.Entry = &EntryPayload{
			OccurredAt:      core.FormatTimestamp(e.OccurredAt),
			Platform:        e.Platform,
			ProductName:     e.ProductName,
			OrderQuantity:   e.OrderQuantity,
			TotalSales:      e.TotalSales,
			PlatformFee:     e.PlatformFee,
			ActualIncome:    e.ActualIncome(),
			InvoiceRequired: e.InvoiceRequired,
			Taxable:         e.Taxable,
		}
	}
	return msg
}

// ToJSON converts the message to JSON bytes
func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ChangeMessageFromJSON creates a message from JSON bytes
func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Event converts the message back into a change event. The entry snapshot
// is validated again; a stale actual income in the payload is ignored.
func (m *ChangeMessage) Event() (core.ChangeEvent, error) {
	id, err := uuid.Parse(m.EventID)
	if err != nil {
		return core.ChangeEvent{}, fmt.Errorf("event id: %w", err)
	}
	ev := core.ChangeEvent{ID: id, Op: core.ChangeOp(m.Op), Row: m.Row, At: m.Timestamp}
	if p := m.Entry; p != nil {
		occurred, err := core.ParseTimestamp(p.OccurredAt)
		if err != nil {
			return core.ChangeEvent{}, err
		}
		taxable := p.Taxable
		e, err := core.Construct(core.Fields{
			OccurredAt:      occurred,
			Platform:        p.Platform,
			ProductName:     p.ProductName,
			OrderQuantity:   p.OrderQuantity,
			TotalSales:      p.TotalSales,
			PlatformFee:     p.PlatformFee,
			InvoiceRequired: p.InvoiceRequired,
			Taxable:         &taxable,
		})
		if err != nil {
			return core.ChangeEvent{}, err
		}
		ev.Entry = &e
	}
	return ev, nil
}
