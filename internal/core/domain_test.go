package core

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func sampleFields() Fields {
	return Fields{
		OccurredAt:    time.Date(2023, 8, 15, 14, 30, 0, 0, time.Local),
		Platform:      "Shopee",
		ProductName:   "Widget",
		OrderQuantity: 10,
		TotalSales:    decimal.NewFromInt(1000),
		PlatformFee:   decimal.NewFromInt(100),
	}
}

func TestConstructDefaults(t *testing.T) {
	e, err := Construct(sampleFields())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !e.ActualIncome().Equal(decimal.NewFromInt(900)) {
		t.Fatalf("actual income = %s, want 900", e.ActualIncome())
	}
	if e.InvoiceRequired {
		t.Fatalf("invoice required should default to false")
	}
	if !e.Taxable {
		t.Fatalf("taxable should default to true")
	}
}

func TestConstructDiscardsSuppliedIncome(t *testing.T) {
	f := sampleFields()
	bogus := decimal.NewFromInt(5)
	f.ActualIncome = &bogus
	e, err := Construct(f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !e.ActualIncome().Equal(decimal.NewFromInt(900)) {
		t.Fatalf("actual income = %s, want 900", e.ActualIncome())
	}
}

func TestConstructTrimsAndNormalizes(t *testing.T) {
	f := sampleFields()
	f.Platform = "  Shopee "
	f.OccurredAt = time.Date(2023, 8, 15, 14, 30, 0, 999, time.UTC)
	e, err := Construct(f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Platform != "Shopee" {
		t.Fatalf("platform = %q", e.Platform)
	}
	if e.OccurredAt.Nanosecond() != 0 || e.OccurredAt.Location() != time.Local {
		t.Fatalf("time not normalized: %v", e.OccurredAt)
	}
	if e.OccurredAt.Hour() != 14 || e.OccurredAt.Minute() != 30 {
		t.Fatalf("wall clock changed: %v", e.OccurredAt)
	}
}

func TestConstructRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Fields)
		want   error
	}{
		{"zero date", func(f *Fields) { f.OccurredAt = time.Time{} }, ErrMissingDate},
		{"blank platform", func(f *Fields) { f.Platform = "   " }, ErrEmptyPlatform},
		{"empty product", func(f *Fields) { f.ProductName = "" }, ErrEmptyProductName},
		{"negative quantity", func(f *Fields) { f.OrderQuantity = -1 }, ErrNegativeQuantity},
		{"negative sales", func(f *Fields) {
			f.TotalSales = decimal.NewFromInt(-1)
			f.PlatformFee = decimal.Zero
		}, ErrNegativeSales},
		{"negative fee", func(f *Fields) { f.PlatformFee = decimal.NewFromInt(-1) }, ErrNegativeFee},
		{"sales too precise", func(f *Fields) {
			f.TotalSales = decimal.RequireFromString("12345678901234567.89")
		}, ErrAmountPrecision},
		{"fee too precise", func(f *Fields) {
			f.PlatformFee = decimal.RequireFromString("0.1234567890123456")
		}, ErrAmountPrecision},
		{"fee exceeds sales", func(f *Fields) {
			f.TotalSales = decimal.NewFromInt(100)
			f.PlatformFee = decimal.NewFromInt(150)
		}, ErrFeeExceedsSales},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := sampleFields()
			tc.mutate(&f)
			_, err := Construct(f)
			if !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
		})
	}
}

func TestConstructBoundaries(t *testing.T) {
	f := sampleFields()
	f.OrderQuantity = 0
	f.TotalSales = decimal.Zero
	f.PlatformFee = decimal.Zero
	e, err := Construct(f)
	if err != nil {
		t.Fatalf("zero amounts should be valid: %v", err)
	}
	if !e.ActualIncome().IsZero() {
		t.Fatalf("actual income = %s, want 0", e.ActualIncome())
	}

	f = sampleFields()
	f.PlatformFee = f.TotalSales
	if _, err := Construct(f); err != nil {
		t.Fatalf("fee equal to sales should be valid: %v", err)
	}
}

func TestEqualAndFields(t *testing.T) {
	a, err := Construct(sampleFields())
	if err != nil {
		t.Fatal(err)
	}
	b, err := Construct(a.Fields())
	if err != nil {
		t.Fatal(err)
	}
	if !a.Equal(b) {
		t.Fatalf("entries built from Fields() should be equal")
	}
	f := a.Fields()
	f.OrderQuantity++
	c, _ := Construct(f)
	if a.Equal(c) {
		t.Fatalf("different quantities compared equal")
	}
	if !a.Valid() {
		t.Fatalf("constructed entry should be valid")
	}
	if (Entry{}).Valid() {
		t.Fatalf("zero entry should be invalid")
	}
}
