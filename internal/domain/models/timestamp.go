package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// Zoneless layouts are read in local time.
var timestampLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// Timestamp is a server time that decodes leniently. RFC 3339 and zoneless
// ISO-8601 date-times are accepted; an empty, null or unparseable value
// decodes to the zero time, which callers show as an unknown date.
type Timestamp struct {
	time.Time
}

func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	ts.Time = time.Time{}

	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '"' {
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil
	}
	ts.Time, _ = ParseTimestamp(s)
	return nil
}

// ParseTimestamp parses s with the layouts Timestamp accepts.
func ParseTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
