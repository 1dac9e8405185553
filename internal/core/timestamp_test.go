package core

import (
	"errors"
	"testing"
	"time"
	_ "time/tzdata"
)

func TestSplitTimestamp(t *testing.T) {
	p := SplitTimestamp(time.Date(2023, 8, 5, 9, 3, 7, 0, time.Local))
	want := DateParts{Year: "2023", Month: "08", Day: "05", Time: "09:03:07"}
	if p != want {
		t.Fatalf("got %+v, want %+v", p, want)
	}
}

func TestJoinTimestampRoundTrip(t *testing.T) {
	orig := time.Date(2024, 2, 29, 23, 59, 59, 0, time.Local)
	got, err := JoinTimestamp(SplitTimestamp(orig))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(orig) {
		t.Fatalf("got %v, want %v", got, orig)
	}
}

func TestJoinTimestampLoose(t *testing.T) {
	got, err := JoinTimestamp(DateParts{Year: "2023", Month: "8", Day: "15.0", Time: "14:30"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2023, 8, 15, 14, 30, 0, 0, time.Local)
	if !got.Equal(want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	// A time-formatted cell holds a fraction of a day.
	got, err = JoinTimestamp(DateParts{Year: "2023", Month: "08", Day: "15", Time: "0.5"})
	if err != nil || got.Hour() != 12 || got.Minute() != 0 {
		t.Fatalf("fractional clock: got %v, %v", got, err)
	}
}

func TestJoinTimestampRejects(t *testing.T) {
	cases := []struct {
		p    DateParts
		want error
	}{
		{DateParts{Year: "", Month: "08", Day: "15", Time: "14:30:00"}, ErrInvalidYear},
		{DateParts{Year: "2023", Month: "13", Day: "15", Time: "14:30:00"}, ErrInvalidMonth},
		{DateParts{Year: "2023", Month: "08", Day: "x", Time: "14:30:00"}, ErrInvalidDay},
		{DateParts{Year: "2023", Month: "08", Day: "15", Time: "25:00"}, ErrInvalidClock},
		{DateParts{Year: "2023", Month: "02", Day: "30", Time: "10:00"}, ErrInvalidDate},
	}
	for _, tc := range cases {
		if _, err := JoinTimestamp(tc.p); !errors.Is(err, tc.want) {
			t.Fatalf("%+v: got %v, want %v", tc.p, err, tc.want)
		}
	}
}

func TestJoinTimestampRejectsSkippedClock(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatal(err)
	}
	saved := time.Local
	time.Local = loc
	t.Cleanup(func() { time.Local = saved })

	// 2024-03-10 02:00 jumps to 03:00 in New York.
	_, err = JoinTimestamp(DateParts{Year: "2024", Month: "03", Day: "10", Time: "02:30:00"})
	if !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate for a skipped clock, got %v", err)
	}

	got, err := JoinTimestamp(DateParts{Year: "2024", Month: "03", Day: "10", Time: "03:30:00"})
	if err != nil || got.Hour() != 3 || got.Minute() != 30 {
		t.Fatalf("clock after the jump: got %v, %v", got, err)
	}
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2023, 8, 15, 14, 30, 0, 0, time.Local)
	for _, in := range []string{
		"2023-08-15T14:30:00",
		"2023-08-15T14:30:00.000",
		"2023-08-15 14:30:00",
		"2023-08-15T14:30",
	} {
		got, err := ParseTimestamp(in)
		if err != nil || !got.Equal(want) {
			t.Fatalf("%q: got %v, %v", in, got, err)
		}
	}
	if got, err := ParseTimestamp("2023-08-15"); err != nil || got.Day() != 15 || got.Hour() != 0 {
		t.Fatalf("date only: got %v, %v", got, err)
	}
	if _, err := ParseTimestamp(""); !errors.Is(err, ErrMissingDate) {
		t.Fatalf("empty: got %v", err)
	}
	if _, err := ParseTimestamp("yesterday"); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("garbage: got %v", err)
	}
}

func TestFormatTimestamp(t *testing.T) {
	got := FormatTimestamp(time.Date(2023, 8, 15, 14, 30, 0, 0, time.Local))
	if got != "2023-08-15T14:30:00" {
		t.Fatalf("got %q", got)
	}
}
