package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// OpaqueID is an identifier assigned by a remote service. It may arrive as a
// JSON string or a JSON number; numbers keep their literal text and null
// decodes to "".
type OpaqueID string

func (id *OpaqueID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*id = ""
		return nil
	}

	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		*id = OpaqueID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err == nil {
		*id = OpaqueID(n.String())
		return nil
	}

	return fmt.Errorf("identifier must be a string or a number, got %s", trimmed)
}

func (id OpaqueID) String() string {
	return string(id)
}

// timestampLayouts are tried in order. Fractional seconds are accepted by all
// of them. Layouts without a zone are read as UTC.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05-07",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp reads a creation time written as RFC 3339, as an SQL
// datetime ("2024-01-01 10:00:00") or as Unix seconds or milliseconds.
// Anything else, including null, yields the zero time.
func ParseTimestamp(raw json.RawMessage) time.Time {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return time.Time{}
	}

	var s string
	if err := json.Unmarshal(trimmed, &s); err != nil {
		var n json.Number
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return time.Time{}
		}
		return fromEpoch(n.String())
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return fromEpoch(s)
}

func fromEpoch(s string) time.Time {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return time.Time{}
	}
	if n >= 1e12 {
		return time.UnixMilli(n).UTC()
	}
	return time.Unix(n, 0).UTC()
}
