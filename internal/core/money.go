// Package core provides the ledger entry model.
//
// This file contains helpers for parsing the loosely formatted numbers,
// quantities and yes/no answers typed at a prompt or found in a cell.
package core

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidQuantity = errors.New("invalid quantity")
	ErrInvalidBool     = errors.New("invalid yes/no value")
	ErrAmountPrecision = errors.New("amount has more than 15 significant digits")
)

// MaxAmountDigits is the most significant digits an amount may carry. Any
// such value survives a numeric spreadsheet cell unchanged.
const MaxAmountDigits = 15

// ParseAmount converts a decimal string into a non-negative amount.
//
// Surrounding spaces are ignored. Signs, thousands separators and exponents
// are rejected: the ledger carries no locale handling. So are amounts with
// more than MaxAmountDigits significant digits.
//
// Examples:
//
//	ParseAmount("1000")   -> 1000, nil
//	ParseAmount("99.5")   -> 99.5, nil
//	ParseAmount("-1")     -> 0, ErrInvalidAmount
//	ParseAmount("1,000")  -> 0, ErrInvalidAmount
//	ParseAmount("12345678901234567.89") -> 0, ErrAmountPrecision
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, "+-eE,") {
		return decimal.Zero, fmt.Errorf("%w %q", ErrInvalidAmount, s)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w %q", ErrInvalidAmount, s)
	}
	if AmountDigits(d) > MaxAmountDigits {
		return decimal.Zero, fmt.Errorf("%w %q: %w", ErrInvalidAmount, s, ErrAmountPrecision)
	}
	return d, nil
}

// AmountDigits counts the significant digits of d written out in full,
// ignoring leading zeros.
func AmountDigits(d decimal.Decimal) int {
	digits := strings.ReplaceAll(d.Abs().String(), ".", "")
	return len(strings.TrimLeft(digits, "0"))
}

// ParseQuantity converts an integer string into a non-negative quantity.
func ParseQuantity(s string) (int, error) {
	s = strings.TrimSpace(s)
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w %q", ErrInvalidQuantity, s)
	}
	return n, nil
}

// ParseYesNo reads the boolean spellings accepted at prompts and in cells.
// ok is false for an empty input so callers can apply their own default.
func ParseYesNo(s string) (value bool, ok bool, err error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return false, false, nil
	case "y", "yes", "t", "true", "1", "是", "要":
		return true, true, nil
	case "n", "no", "f", "false", "0", "否", "不":
		return false, true, nil
	}
	return false, false, fmt.Errorf("%w %q", ErrInvalidBool, s)
}
