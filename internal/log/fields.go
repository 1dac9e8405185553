package log

import "accounting/internal/core"

// Common field names for structured logging
const (
	FieldComponent   = "component"
	FieldError       = "error"
	FieldOperation   = "operation"
	FieldPath        = "path"
	FieldRow         = "row"
	FieldRows        = "rows"
	FieldPlatform    = "platform"
	FieldProduct     = "product_name"
	FieldOccurredAt  = "occurred_at"
	FieldTotalSales  = "total_sales"
	FieldHeader      = "header"
	FieldHeaderState = "header_status"
	FieldBackup      = "backup_path"
	FieldEventID     = "event_id"
	FieldSink        = "sink"
	FieldSkipped     = "skipped"
	FieldDuration    = "duration_ms"
)

// Components defines standard component names
const (
	ComponentApp     = "app"
	ComponentCLI     = "cli"
	ComponentStore   = "store"
	ComponentLedger  = "ledger"
	ComponentStorage = "storage"
	ComponentAMQP    = "amqp"
	ComponentSheets  = "sheets"
)

// Operations defines standard operation names
const (
	OpInit     = "init"
	OpOpen     = "open"
	OpList     = "list"
	OpGet      = "get"
	OpAppend   = "append"
	OpReplace  = "replace"
	OpRemove   = "remove"
	OpFlush    = "flush"
	OpPublish  = "publish"
	OpExport   = "export"
	OpValidate = "validate"
	OpStartup  = "startup"
	OpShutdown = "shutdown"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithComponent adds component field
func (f LogFields) WithComponent(component string) LogFields {
	f[FieldComponent] = component
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithRow adds the 1-based row position
func (f LogFields) WithRow(row int) LogFields {
	f[FieldRow] = row
	return f
}

// WithEntry adds the identifying fields of a ledger entry
func (f LogFields) WithEntry(e core.Entry) LogFields {
	f[FieldOccurredAt] = core.FormatTimestamp(e.OccurredAt)
	f[FieldPlatform] = e.Platform
	f[FieldProduct] = e.ProductName
	f[FieldTotalSales] = e.TotalSales.String()
	return f
}

// ToSlice converts LogFields to a slice for slog
func (f LogFields) ToSlice() []any {
	slice := make([]any, 0, len(f)*2)
	for k, v := range f {
		slice = append(slice, k, v)
	}
	return slice
}
