package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Field keys shared by every schema.
const (
	KeyYear            = "year"
	KeyMonth           = "month"
	KeyDay             = "day"
	KeyTime            = "time"
	KeyDate            = "date"
	KeyPlatform        = "platform"
	KeyProductName     = "product_name"
	KeyOrderQuantity   = "order_quantity"
	KeyTotalSales      = "total_sales"
	KeyPlatformFee     = "platform_fee"
	KeyActualIncome    = "actual_income"
	KeyInvoiceRequired = "invoice_required"
	KeyTaxable         = "taxable"
)

// Schema is an ordered list of header columns and the field each one holds.
type Schema struct {
	Name    string
	Columns []string
	keys    []string
}

var (
	// SplitSchema is the current file layout: date in four text columns.
	SplitSchema = Schema{
		Name: "split",
		Columns: []string{
			"年份", "月份", "日期", "時間",
			"平台", "商品名稱", "訂單數量",
			"銷售總額", "平台費用", "實收金額",
			"需要發票", "應稅",
		},
		keys: []string{
			KeyYear, KeyMonth, KeyDay, KeyTime,
			KeyPlatform, KeyProductName, KeyOrderQuantity,
			KeyTotalSales, KeyPlatformFee, KeyActualIncome,
			KeyInvoiceRequired, KeyTaxable,
		},
	}

	// CombinedSchema is the legacy layout with a single timestamp column.
	CombinedSchema = Schema{
		Name: "combined",
		Columns: []string{
			"date", "platform", "product_name", "order_quantity",
			"total_sales", "platform_fee", "actual_income",
			"invoice_required", "taxable",
		},
		keys: []string{
			KeyDate, KeyPlatform, KeyProductName, KeyOrderQuantity,
			KeyTotalSales, KeyPlatformFee, KeyActualIncome,
			KeyInvoiceRequired, KeyTaxable,
		},
	}

	// Canonical is the schema new files and rewritten rows use.
	Canonical = SplitSchema
)

// columnKeys resolves any known header spelling to its field key.
var columnKeys = func() map[string]string {
	m := map[string]string{}
	for _, s := range []Schema{SplitSchema, CombinedSchema} {
		for i, c := range s.Columns {
			m[normalizeColumn(c)] = s.keys[i]
		}
	}
	for _, k := range []string{KeyYear, KeyMonth, KeyDay, KeyTime} {
		m[k] = k
	}
	return m
}()

func normalizeColumn(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Header returns a copy of the schema's column names.
func (s Schema) Header() []string {
	return append([]string(nil), s.Columns...)
}

// Matches reports whether header equals the schema name by name, in order.
// Trailing blank cells are ignored.
func (s Schema) Matches(header []string) bool {
	n := len(header)
	for n > 0 && strings.TrimSpace(header[n-1]) == "" {
		n--
	}
	if n != len(s.Columns) {
		return false
	}
	for i, c := range s.Columns {
		if strings.TrimSpace(header[i]) != c {
			return false
		}
	}
	return true
}

// Field is one column of a serialized row.
type Field struct {
	Column string
	Value  any
}

// Serialize produces the canonical row for e in header order.
func Serialize(e Entry) []Field {
	return SerializeAs(Canonical, e)
}

// SerializeAs produces the row for e laid out as schema s.
func SerializeAs(s Schema, e Entry) []Field {
	p := SplitTimestamp(e.OccurredAt)
	values := map[string]any{
		KeyYear:            p.Year,
		KeyMonth:           p.Month,
		KeyDay:             p.Day,
		KeyTime:            p.Time,
		KeyDate:            FormatTimestamp(e.OccurredAt),
		KeyPlatform:        e.Platform,
		KeyProductName:     e.ProductName,
		KeyOrderQuantity:   e.OrderQuantity,
		KeyTotalSales:      e.TotalSales.InexactFloat64(),
		KeyPlatformFee:     e.PlatformFee.InexactFloat64(),
		KeyActualIncome:    e.ActualIncome().InexactFloat64(),
		KeyInvoiceRequired: e.InvoiceRequired,
		KeyTaxable:         e.Taxable,
	}
	out := make([]Field, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = Field{Column: c, Value: values[s.keys[i]]}
	}
	return out
}

// Values flattens serialized fields into cell values.
func Values(fields []Field) []any {
	out := make([]any, len(fields))
	for i, f := range fields {
		out[i] = f.Value
	}
	return out
}

// DecodeError reports a cell that could not be coerced to its field type.
type DecodeError struct {
	Column string
	Value  any
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode column %s (%v): %v", e.Column, e.Value, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Deserialize builds an Entry from a row laid out as header. Cells are
// matched by column name, so both the split and the combined schema are
// understood. A stored actual income is ignored and recomputed.
func Deserialize(header []string, row []any) (Entry, error) {
	cells := map[string]any{}
	columns := map[string]string{}
	for i, name := range header {
		key, ok := columnKeys[normalizeColumn(name)]
		if !ok {
			continue
		}
		columns[key] = name
		if i < len(row) {
			cells[key] = row[i]
		} else {
			cells[key] = nil
		}
	}
	colName := func(key string) string {
		if name, ok := columns[key]; ok {
			return name
		}
		return key
	}

	var f Fields
	occurred, err := decodeOccurredAt(cells)
	if err != nil {
		return Entry{}, &DecodeError{Column: colName(KeyDate), Value: cells[KeyDate], Err: err}
	}
	f.OccurredAt = occurred
	f.Platform = textOf(cells[KeyPlatform])
	f.ProductName = textOf(cells[KeyProductName])

	if f.OrderQuantity, err = intOf(cells[KeyOrderQuantity]); err != nil {
		return Entry{}, &DecodeError{Column: colName(KeyOrderQuantity), Value: cells[KeyOrderQuantity], Err: err}
	}
	if f.TotalSales, err = decimalOf(cells[KeyTotalSales]); err != nil {
		return Entry{}, &DecodeError{Column: colName(KeyTotalSales), Value: cells[KeyTotalSales], Err: err}
	}
	if f.PlatformFee, err = decimalOf(cells[KeyPlatformFee]); err != nil {
		return Entry{}, &DecodeError{Column: colName(KeyPlatformFee), Value: cells[KeyPlatformFee], Err: err}
	}
	if stored, err := decimalOf(cells[KeyActualIncome]); err == nil {
		f.ActualIncome = &stored
	}

	invoice, ok, err := boolOf(cells[KeyInvoiceRequired])
	if err != nil {
		return Entry{}, &DecodeError{Column: colName(KeyInvoiceRequired), Value: cells[KeyInvoiceRequired], Err: err}
	}
	f.InvoiceRequired = ok && invoice

	taxable, ok, err := boolOf(cells[KeyTaxable])
	if err != nil {
		return Entry{}, &DecodeError{Column: colName(KeyTaxable), Value: cells[KeyTaxable], Err: err}
	}
	if ok {
		f.Taxable = &taxable
	}

	return Construct(f)
}

func decodeOccurredAt(cells map[string]any) (time.Time, error) {
	_, hasYear := cells[KeyYear]
	_, hasMonth := cells[KeyMonth]
	_, hasDay := cells[KeyDay]
	_, hasTime := cells[KeyTime]
	if hasYear || hasMonth || hasDay || hasTime {
		return JoinTimestamp(DateParts{
			Year:  textOf(cells[KeyYear]),
			Month: textOf(cells[KeyMonth]),
			Day:   textOf(cells[KeyDay]),
			Time:  textOf(cells[KeyTime]),
		})
	}
	if v, ok := cells[KeyDate]; ok {
		if t, isTime := v.(time.Time); isTime {
			return NormalizeTime(t), nil
		}
		return ParseTimestamp(textOf(v))
	}
	return time.Time{}, ErrMissingDate
}

// UpgradeRow remaps a row laid out as header into the canonical layout.
// A combined timestamp is split when it parses; otherwise its raw value is
// kept in the year column so the row stays visible as unreadable rather
// than silently disappearing.
func UpgradeRow(header []string, row []any) []any {
	cells := map[string]any{}
	for i, name := range header {
		key, ok := columnKeys[normalizeColumn(name)]
		if !ok || i >= len(row) {
			continue
		}
		cells[key] = row[i]
	}
	if raw, ok := cells[KeyDate]; ok {
		if _, split := cells[KeyYear]; !split {
			if t, err := ParseTimestamp(textOf(raw)); err == nil {
				p := SplitTimestamp(t)
				cells[KeyYear], cells[KeyMonth], cells[KeyDay], cells[KeyTime] = p.Year, p.Month, p.Day, p.Time
			} else {
				cells[KeyYear] = raw
			}
		}
	}
	out := make([]any, len(Canonical.keys))
	for i, key := range Canonical.keys {
		out[i] = cells[key]
	}
	return out
}

// IsBlankRow reports whether every cell is empty after trimming.
func IsBlankRow(row []any) bool {
	for _, v := range row {
		if textOf(v) != "" {
			return false
		}
	}
	return true
}

func textOf(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case decimal.Decimal:
		return x.String()
	case time.Time:
		return FormatTimestamp(x)
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}

func intOf(v any) (int, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case int64:
		return int(x), nil
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) || math.IsNaN(x) {
			return 0, fmt.Errorf("%w: %v is not an integer", ErrInvalidQuantity, x)
		}
		return int(x), nil
	}
	s := textOf(v)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidQuantity)
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("%w %q", ErrInvalidQuantity, s)
	}
	return int(f), nil
}

func decimalOf(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x, nil
	case float64:
		return decimal.NewFromFloat(x), nil
	case int:
		return decimal.NewFromInt(int64(x)), nil
	case int64:
		return decimal.NewFromInt(x), nil
	}
	s := textOf(v)
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w %q", ErrInvalidAmount, s)
	}
	return d, nil
}

func boolOf(v any) (value bool, ok bool, err error) {
	switch x := v.(type) {
	case bool:
		return x, true, nil
	case int:
		return x != 0, true, nil
	case int64:
		return x != 0, true, nil
	case float64:
		return x != 0, true, nil
	}
	return ParseYesNo(textOf(v))
}
