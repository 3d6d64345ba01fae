package memory

import (
	"testing"
	"time"
)

func TestNormalizeTimestamp_EpochMillis(t *testing.T) {
	var ts int64 = 1_700_000_000_123
	if got := NormalizeTimestamp(ts); got != ts {
		t.Errorf("epoch-ms input should pass through: got %d, want %d", got, ts)
	}
	if got := NormalizeTimestamp(float64(ts)); got != ts {
		t.Errorf("epoch-ms float should pass through: got %d, want %d", got, ts)
	}
}

func TestNormalizeTimestamp_EpochSeconds(t *testing.T) {
	var ts int64 = 1_700_000_000
	want := ts * 1000
	if got := NormalizeTimestamp(ts); got != want {
		t.Errorf("epoch-seconds input should scale: got %d, want %d", got, want)
	}
	if got := NormalizeTimestamp(int(ts)); got != want {
		t.Errorf("epoch-seconds int should scale: got %d, want %d", got, want)
	}
}

func TestNormalizeTimestamp_Time(t *testing.T) {
	now := time.Now()
	if got := NormalizeTimestamp(now); got != now.UnixMilli() {
		t.Errorf("time.Time should use its native epoch: got %d, want %d", got, now.UnixMilli())
	}
}

func TestNormalizeTimestamp_Strings(t *testing.T) {
	cases := map[string]int64{
		"2023-06-19T14:20:00Z": time.Date(2023, 6, 19, 14, 20, 0, 0, time.UTC).UnixMilli(),
		"2023-06-19":           time.Date(2023, 6, 19, 0, 0, 0, 0, time.UTC).UnixMilli(),
		"1700000000":           1_700_000_000_000,
		"1700000000123":        1_700_000_000_123,
	}
	for input, want := range cases {
		if got := NormalizeTimestamp(input); got != want {
			t.Errorf("NormalizeTimestamp(%q) = %d, want %d", input, got, want)
		}
	}
}

// Unparseable values must fall back to the current time, silently.
func TestNormalizeTimestamp_FallbackToNow(t *testing.T) {
	for _, input := range []any{nil, "not a date", "", 42, -5, struct{}{}, time.Time{}} {
		before := time.Now().UnixMilli()
		got := NormalizeTimestamp(input)
		after := time.Now().UnixMilli()
		if got < before || got > after {
			t.Errorf("NormalizeTimestamp(%v) = %d, want current time in [%d, %d]", input, got, before, after)
		}
	}
}

func TestFormatDate(t *testing.T) {
	ts := time.Date(2024, 3, 7, 23, 59, 0, 0, time.UTC).UnixMilli()
	if got := FormatDate(ts); got != "2024-03-07" {
		t.Errorf("FormatDate = %q, want 2024-03-07", got)
	}
}

func TestFormatDate_InvalidFallsBackToToday(t *testing.T) {
	want := time.Now().UTC().Format("2006-01-02")
	for _, ts := range []int64{0, -1} {
		if got := FormatDate(ts); got != want {
			t.Errorf("FormatDate(%d) = %q, want today %q", ts, got, want)
		}
	}
}
