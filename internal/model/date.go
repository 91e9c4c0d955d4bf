package model

import "time"

// DateLayout is the wire/storage form of calendar dates (UTC).
const DateLayout = "2006-01-02"

// DateUTC formats an instant as its UTC calendar date.
func DateUTC(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// ParseDate parses a stored calendar date. An empty or malformed value
// reports ok=false; it is treated as "no prior claim", never as an error.
func ParseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
