package util

import (
	"strconv"
	"testing"
	"time"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.UTC().Format(time.RFC3339) != s {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeDateOnly(t *testing.T) {
	got, ok := ParseTime("2024-10-10")
	if !ok {
		t.Fatalf("expected ok")
	}
	if !got.Equal(time.Date(2024, 10, 10, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected time %v", got)
	}
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Unix() != ts {
		t.Fatalf("unexpected unix %v", got.Unix())
	}
}

func TestParseTimeDefault(t *testing.T) {
	def := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	got := ParseTimeDefault("", def)
	if !got.Equal(def) {
		t.Fatalf("expected default")
	}
}

func TestTradingDay(t *testing.T) {
	// 2024-01-02 14:30 UTC is 09:30 in New York (UTC-5).
	open := time.Date(2024, 1, 2, 14, 30, 0, 0, time.UTC).Unix()
	got := TradingDay(open, -5*3600)
	if !got.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected day %v", got)
	}

	// 23:00 UTC on Jan 2 is already Jan 3 in Tokyo.
	late := time.Date(2024, 1, 2, 23, 0, 0, 0, time.UTC).Unix()
	got = TradingDay(late, 9*3600)
	if !got.Equal(time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected day %v", got)
	}
}

func TestNormalizeTicker(t *testing.T) {
	if got := NormalizeTicker("  brk.b "); got != "BRK.B" {
		t.Fatalf("unexpected ticker %q", got)
	}
	got := SplitCSV(" AAPL, ,msft,")
	if len(got) != 2 || got[0] != "AAPL" || got[1] != "msft" {
		t.Fatalf("unexpected split %v", got)
	}
}
