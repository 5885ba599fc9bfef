package sample

import (
	"fmt"
	"strings"
	"time"
)

// TimeLayout is the layout used when writing timestamps to tabular files.
const TimeLayout = "2006-01-02 15:04:05.000"

var parseLayouts = []string{
	TimeLayout,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	time.RFC3339Nano,
	"2006-01-02 15:04",
	"2006-01-02T15:04",
}

// ParseTime parses a timestamp written by this tool or typed by a user.
// Timestamps without a zone are taken as UTC.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range parseLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// FormatTime renders t in TimeLayout (UTC).
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// FromEpochMillis converts a Unix millisecond timestamp to UTC time.
func FromEpochMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// RoundSecond rounds t to the nearest whole second. Exact half seconds go to
// the even second.
func RoundSecond(t time.Time) time.Time {
	t = t.UTC()
	base := t.Truncate(time.Second)
	rem := t.Sub(base)
	switch {
	case rem < 500*time.Millisecond:
		return base
	case rem > 500*time.Millisecond:
		return base.Add(time.Second)
	}
	if base.Unix()%2 == 0 {
		return base
	}
	return base.Add(time.Second)
}
