package core

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

var (
	ErrInvalidYear  = errors.New("invalid year")
	ErrInvalidMonth = errors.New("invalid month")
	ErrInvalidDay   = errors.New("invalid day")
	ErrInvalidClock = errors.New("invalid time of day")
	ErrInvalidDate  = errors.New("invalid date")
)

// DateParts is the four-column representation of an occurrence time used by
// the spreadsheet schema. Components stay strings so "8" and "08" or
// "14:30" and "14:30:00" are both accepted.
type DateParts struct {
	Year  string
	Month string
	Day   string
	Time  string
}

// SplitTimestamp converts a time into zero-padded components.
func SplitTimestamp(t time.Time) DateParts {
	return DateParts{
		Year:  fmt.Sprintf("%04d", t.Year()),
		Month: fmt.Sprintf("%02d", int(t.Month())),
		Day:   fmt.Sprintf("%02d", t.Day()),
		Time:  t.Format(time.TimeOnly),
	}
}

// JoinTimestamp is the inverse of SplitTimestamp. The result is a wall-clock
// time in time.Local.
func JoinTimestamp(p DateParts) (time.Time, error) {
	year, err := atoiRange(p.Year, 1, 9999)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w %q", ErrInvalidYear, p.Year)
	}
	month, err := atoiRange(p.Month, 1, 12)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w %q", ErrInvalidMonth, p.Month)
	}
	day, err := atoiRange(p.Day, 1, 31)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w %q", ErrInvalidDay, p.Day)
	}
	hour, minute, second, err := parseClock(p.Time)
	if err != nil {
		return time.Time{}, err
	}
	t := time.Date(year, time.Month(month), day, hour, minute, second, 0, time.Local)
	// time.Date normalizes overflow such as 31 February; reject it instead.
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, fmt.Errorf("%w %s-%s-%s", ErrInvalidDate, p.Year, p.Month, p.Day)
	}
	// A wall clock skipped by a daylight saving jump is moved by time.Date.
	if t.Hour() != hour || t.Minute() != minute || t.Second() != second {
		return time.Time{}, fmt.Errorf("%w %s-%s-%s %s: skipped by a clock change", ErrInvalidDate, p.Year, p.Month, p.Day, p.Time)
	}
	return t, nil
}

func atoiRange(s string, lo, hi int) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		// Spreadsheets hand back integral numbers as "8.0" now and then.
		f, ferr := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if ferr != nil || f != float64(int(f)) {
			return 0, err
		}
		n = int(f)
	}
	if n < lo || n > hi {
		return 0, fmt.Errorf("%d out of range [%d, %d]", n, lo, hi)
	}
	return n, nil
}

func parseClock(s string) (hour, minute, second int, err error) {
	s = strings.TrimSpace(s)
	// A cell formatted as a time holds a fraction of a day.
	if !strings.Contains(s, ":") {
		if f, ferr := strconv.ParseFloat(s, 64); ferr == nil && f >= 0 && f < 1 {
			secs := int(f*86400 + 0.5)
			if secs >= 86400 {
				secs = 86399
			}
			return secs / 3600, secs % 3600 / 60, secs % 60, nil
		}
	}
	parts := strings.Split(s, ":")
	if s == "" || len(parts) < 2 || len(parts) > 3 {
		return 0, 0, 0, fmt.Errorf("%w %q", ErrInvalidClock, s)
	}
	limits := []int{23, 59, 59}
	vals := make([]int, 3)
	for i, part := range parts {
		v, aerr := strconv.Atoi(part)
		if aerr != nil || v < 0 || v > limits[i] {
			return 0, 0, 0, fmt.Errorf("%w %q", ErrInvalidClock, s)
		}
		vals[i] = v
	}
	return vals[0], vals[1], vals[2], nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	time.DateTime,
	"2006-01-02 15:04",
	time.DateOnly,
	"2006/01/02 15:04:05",
	"2006/01/02",
}

// ParseTimestamp reads a combined timestamp as written by the legacy schema:
// ISO-8601 text in several precisions, or an Excel serial date number.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrMissingDate
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return NormalizeTime(t), nil
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial > 0 {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w %q: %v", ErrInvalidDate, s, err)
		}
		return NormalizeTime(t.Round(time.Second)), nil
	}
	return time.Time{}, fmt.Errorf("%w %q", ErrInvalidDate, s)
}

// FormatTimestamp writes the combined form used by the legacy schema.
func FormatTimestamp(t time.Time) string {
	return t.Format("2006-01-02T15:04:05")
}
