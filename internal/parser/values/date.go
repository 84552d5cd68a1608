// Package values holds the low-level field parsers shared by row coercion
// and reporting: ISO-8601 timestamps with a not-in-the-future rule, and
// fixed-precision decimals.
package values

import (
	"strings"
	"time"

	"hringest/internal/errs"
)

// isoLayouts are tried first. Layouts without a zone are parsed as UTC.
var isoLayouts = []string{
	"2006-01-02T15:04:05-07:00",
	"2006-01-02 15:04:05-07:00",
	"2006-01-02T15:04-07:00",
	"2006-01-02 15:04-07:00",
	"2006-01-02T15:04:05-07",
	"2006-01-02 15:04:05-07",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// fallbackLayouts accept a compact numeric offset without a colon.
var fallbackLayouts = []string{
	"2006-01-02 15:04:05-0700",
	"2006-01-02T15:04:05-0700",
}

// ParseDate parses s as an ISO-8601 timestamp and rejects values later than
// the current instant.
func ParseDate(s string) (time.Time, error) {
	return ParseDateAt(s, time.Now())
}

// ParseDateAt is ParseDate with an explicit "now".
//
// A trailing Z is read as +00:00 and a value without an offset is taken as
// UTC. The returned time keeps the parsed offset.
func ParseDateAt(s string, now time.Time) (time.Time, error) {
	txt := strings.TrimSpace(s)
	if txt == "" {
		return time.Time{}, &errs.DateParseError{Input: s}
	}
	if strings.HasSuffix(txt, "Z") {
		txt = strings.TrimSuffix(txt, "Z") + "+00:00"
	}

	t, ok := parseLayouts(txt, isoLayouts)
	if !ok {
		t, ok = parseLayouts(txt, fallbackLayouts)
	}
	if !ok {
		return time.Time{}, &errs.DateParseError{Input: s}
	}

	if t.After(now.UTC()) {
		return time.Time{}, &errs.DateParseError{Input: s, Future: true}
	}
	return t, nil
}

func parseLayouts(txt string, layouts []string) (time.Time, bool) {
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, txt, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatUTC renders t as an ISO-8601 UTC timestamp, the form written to
// bulk-copy streams and text-typed date columns.
func FormatUTC(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
