package core

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

type (
	// Entry is one recorded sales transaction. Actual income is not stored;
	// it is derived from TotalSales and PlatformFee on every read.
	Entry struct {
		OccurredAt      time.Time
		Platform        string          `validate:"notblank"`
		ProductName     string          `validate:"notblank"`
		OrderQuantity   int             `validate:"gte=0"`
		TotalSales      decimal.Decimal `validate:"gte=0"`
		PlatformFee     decimal.Decimal `validate:"gte=0"`
		InvoiceRequired bool
		Taxable         bool
	}

	// Fields is the constructor input for an Entry.
	Fields struct {
		OccurredAt    time.Time
		Platform      string
		ProductName   string
		OrderQuantity int
		TotalSales    decimal.Decimal
		PlatformFee   decimal.Decimal
		// ActualIncome is accepted for round-tripping stored rows and then
		// discarded; the value is always recomputed.
		ActualIncome    *decimal.Decimal
		InvoiceRequired bool
		// Taxable defaults to true when nil.
		Taxable *bool
	}
)

var (
	ErrMissingDate       = errors.New("missing transaction date")
	ErrEmptyPlatform     = errors.New("empty platform")
	ErrEmptyProductName  = errors.New("empty product name")
	ErrNegativeQuantity  = errors.New("negative order quantity")
	ErrNegativeSales     = errors.New("negative total sales")
	ErrNegativeFee       = errors.New("negative platform fee")
	ErrFeeExceedsSales   = errors.New("platform fee exceeds total sales")
	errUnknownConstraint = errors.New("constraint violated")
)

// ValidationError reports the first invariant an entry violates.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

var fieldErrors = map[string]error{
	"Platform":      ErrEmptyPlatform,
	"ProductName":   ErrEmptyProductName,
	"OrderQuantity": ErrNegativeQuantity,
	"TotalSales":    ErrNegativeSales,
	"PlatformFee":   ErrNegativeFee,
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// Construct builds a validated Entry. The occurrence time is truncated to
// whole seconds and re-anchored as a wall-clock time in time.Local so that
// it survives the split year/month/day/time columns unchanged.
func Construct(f Fields) (Entry, error) {
	taxable := true
	if f.Taxable != nil {
		taxable = *f.Taxable
	}
	e := Entry{
		OccurredAt:      NormalizeTime(f.OccurredAt),
		Platform:        strings.TrimSpace(f.Platform),
		ProductName:     strings.TrimSpace(f.ProductName),
		OrderQuantity:   f.OrderQuantity,
		TotalSales:      f.TotalSales,
		PlatformFee:     f.PlatformFee,
		InvoiceRequired: f.InvoiceRequired,
		Taxable:         taxable,
	}
	if err := e.Validate(); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// ActualIncome returns total sales minus the platform fee.
func (e Entry) ActualIncome() decimal.Decimal {
	return e.TotalSales.Sub(e.PlatformFee)
}

// Validate returns a *ValidationError for the first violated invariant.
func (e Entry) Validate() error {
	if e.OccurredAt.IsZero() {
		return &ValidationError{Field: "OccurredAt", Err: ErrMissingDate}
	}
	if err := validate.Struct(e); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			sentinel, ok := fieldErrors[fe.StructField()]
			if !ok {
				sentinel = errUnknownConstraint
			}
			return &ValidationError{Field: fe.StructField(), Err: sentinel}
		}
		return &ValidationError{Field: "Entry", Err: err}
	}
	if AmountDigits(e.TotalSales) > MaxAmountDigits {
		return &ValidationError{Field: "TotalSales", Err: ErrAmountPrecision}
	}
	if AmountDigits(e.PlatformFee) > MaxAmountDigits {
		return &ValidationError{Field: "PlatformFee", Err: ErrAmountPrecision}
	}
	if e.PlatformFee.GreaterThan(e.TotalSales) {
		return &ValidationError{Field: "PlatformFee", Err: ErrFeeExceedsSales}
	}
	return nil
}

// Valid reports whether Validate succeeds.
func (e Entry) Valid() bool {
	return e.Validate() == nil
}

// Equal compares every field, including the derived actual income.
func (e Entry) Equal(o Entry) bool {
	return e.OccurredAt.Equal(o.OccurredAt) &&
		e.Platform == o.Platform &&
		e.ProductName == o.ProductName &&
		e.OrderQuantity == o.OrderQuantity &&
		e.TotalSales.Equal(o.TotalSales) &&
		e.PlatformFee.Equal(o.PlatformFee) &&
		e.ActualIncome().Equal(o.ActualIncome()) &&
		e.InvoiceRequired == o.InvoiceRequired &&
		e.Taxable == o.Taxable
}

// Fields returns the constructor input that reproduces e.
func (e Entry) Fields() Fields {
	taxable := e.Taxable
	return Fields{
		OccurredAt:      e.OccurredAt,
		Platform:        e.Platform,
		ProductName:     e.ProductName,
		OrderQuantity:   e.OrderQuantity,
		TotalSales:      e.TotalSales,
		PlatformFee:     e.PlatformFee,
		InvoiceRequired: e.InvoiceRequired,
		Taxable:         &taxable,
	}
}

// NormalizeTime drops sub-second precision and location, keeping the wall clock.
func NormalizeTime(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.Local)
}
