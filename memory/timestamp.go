package memory

import (
	"strconv"
	"strings"
	"time"
)

// Epoch-ms values are > 1e12 for any modern date; epoch-seconds values
// land between 1e9 and 1e12. Anything outside both ranges is garbage.
const (
	epochSecondsFloor = 1_000_000_000
	epochMillisFloor  = 1_000_000_000_000
)

// dateLayouts are tried in order when normalizing a string timestamp.
// Hosts record send dates in wildly different shapes; this list covers
// the ones seen in the field.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123,
	time.RFC1123Z,
	"January 2, 2006 3:04pm",
	"January 2, 2006 15:04",
	"Jan 2, 2006 3:04pm",
}

// NormalizeTimestamp canonicalizes a heterogeneous date value into epoch
// milliseconds. It accepts numbers (epoch seconds or millis), time.Time,
// and strings. It never fails: anything unparseable falls back to the
// current wall-clock time, silently. Callers get a best-effort instant,
// not an error.
func NormalizeTimestamp(v any) int64 {
	switch t := v.(type) {
	case int64:
		return normalizeNumeric(float64(t))
	case int:
		return normalizeNumeric(float64(t))
	case int32:
		return normalizeNumeric(float64(t))
	case uint64:
		return normalizeNumeric(float64(t))
	case float64:
		return normalizeNumeric(t)
	case float32:
		return normalizeNumeric(float64(t))
	case time.Time:
		if !t.IsZero() {
			return t.UnixMilli()
		}
	case *time.Time:
		if t != nil && !t.IsZero() {
			return t.UnixMilli()
		}
	case string:
		if ms, ok := parseStringTimestamp(t); ok {
			return ms
		}
	}
	return time.Now().UnixMilli()
}

func normalizeNumeric(v float64) int64 {
	switch {
	case v > epochMillisFloor:
		return int64(v)
	case v > epochSecondsFloor:
		return int64(v) * 1000
	default:
		return time.Now().UnixMilli()
	}
}

func parseStringTimestamp(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	// Numeric strings get the same range treatment as numbers.
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		if n > epochSecondsFloor {
			return normalizeNumeric(n), true
		}
		return 0, false
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli(), true
		}
	}
	return 0, false
}

// FormatDate renders an epoch-ms instant as "YYYY-MM-DD" (UTC) for chunk
// headers. Invalid input formats the current date instead of failing.
func FormatDate(epochMs int64) string {
	if epochMs <= 0 {
		return time.Now().UTC().Format("2006-01-02")
	}
	return time.UnixMilli(epochMs).UTC().Format("2006-01-02")
}
