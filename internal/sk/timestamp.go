package sk

import (
	"regexp"
	"time"
)

// timestampLayout is the snapshot directory name layout: YYYYMMDD-HHMMSS-mmm.
// The name doubles as the sort key, so it is fixed-width and local time.
const timestampLayout = "20060102-150405.000"

var timestampPattern = regexp.MustCompile(`^\d{8}-\d{6}-\d{3}$`)

// FormatTimestamp returns the snapshot name for t, truncated to milliseconds.
func FormatTimestamp(t time.Time) string {
	s := t.In(time.Local).Format(timestampLayout)
	// Go only accepts '.' or ',' before fractional seconds.
	return s[:15] + "-" + s[16:]
}

// ParseTimestamp is the inverse of FormatTimestamp. It reports false for any
// string that is not a snapshot name; callers treat that as "not a snapshot".
func ParseTimestamp(s string) (time.Time, bool) {
	if !timestampPattern.MatchString(s) {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(timestampLayout, s[:15]+"."+s[16:], time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
