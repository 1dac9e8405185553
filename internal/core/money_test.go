package core

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1000", "1000", true},
		{"99.5", "99.5", true},
		{" 2.50 ", "2.5", true},
		{"0", "0", true},
		{"-1", "", false},
		{"+1", "", false},
		{"1,000", "", false},
		{"1e3", "", false},
		{"abc", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || !got.Equal(decimal.RequireFromString(tc.out)) {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else if !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("%q expected ErrInvalidAmount, got %v", tc.in, err)
		}
	}
}

func TestParseAmountPrecision(t *testing.T) {
	for _, in := range []string{"123456789012345", "1234567890.12345", "0.000000000000123456789012345"} {
		if _, err := ParseAmount(in); err != nil {
			t.Fatalf("%q: unexpected error %v", in, err)
		}
	}
	for _, in := range []string{"1234567890123456", "12345678901234567.89", "0.1234567890123456"} {
		_, err := ParseAmount(in)
		if !errors.Is(err, ErrInvalidAmount) || !errors.Is(err, ErrAmountPrecision) {
			t.Fatalf("%q: expected ErrAmountPrecision, got %v", in, err)
		}
	}
}

func TestAmountDigits(t *testing.T) {
	cases := map[string]int{"0": 0, "0.05": 1, "2.50": 2, "1000": 4, "1234.5678": 8}
	for in, want := range cases {
		if got := AmountDigits(decimal.RequireFromString(in)); got != want {
			t.Errorf("AmountDigits(%s) = %d, want %d", in, got, want)
		}
	}
}

func TestParseQuantity(t *testing.T) {
	if n, err := ParseQuantity(" 10 "); err != nil || n != 10 {
		t.Fatalf("got %d, %v", n, err)
	}
	for _, in := range []string{"-1", "1.5", "", "ten"} {
		if _, err := ParseQuantity(in); !errors.Is(err, ErrInvalidQuantity) {
			t.Fatalf("%q expected ErrInvalidQuantity, got %v", in, err)
		}
	}
}

func TestParseYesNo(t *testing.T) {
	cases := []struct {
		in        string
		value, ok bool
		err       bool
	}{
		{"y", true, true, false},
		{"YES", true, true, false},
		{"是", true, true, false},
		{"n", false, true, false},
		{"0", false, true, false},
		{"否", false, true, false},
		{"", false, false, false},
		{"maybe", false, false, true},
	}
	for _, tc := range cases {
		v, ok, err := ParseYesNo(tc.in)
		if (err != nil) != tc.err || v != tc.value || ok != tc.ok {
			t.Fatalf("%q: got (%v, %v, %v)", tc.in, v, ok, err)
		}
	}
}
