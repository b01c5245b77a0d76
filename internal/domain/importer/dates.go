package importer

import (
	"strings"
	"time"
)

// timestampLayouts are tried in order for inputs that are not one of the two
// 10-character date shapes. The space-separated layout covers exports that
// drop the "T".
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseDate best-effort parses a date string in one of three shapes: ISO
// YYYY-MM-DD, US MM/DD/YYYY, or a full ISO-8601 timestamp (trailing Z treated
// as UTC). Unparseable input yields nil, never an error.
func ParseDate(s string) *time.Time {
	if s == "" {
		return nil
	}

	var t time.Time
	var err error
	switch {
	case len(s) == 10 && strings.Contains(s, "-"):
		t, err = time.Parse("2006-01-02", s)
	case len(s) == 10 && strings.Contains(s, "/"):
		t, err = time.Parse("01/02/2006", s)
	default:
		err = nil
		for i, layout := range timestampLayouts {
			t, err = time.Parse(layout, s)
			if err == nil {
				break
			}
			if i == len(timestampLayouts)-1 {
				return nil
			}
		}
	}
	if err != nil {
		return nil
	}

	// Keep only the date portion.
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}
