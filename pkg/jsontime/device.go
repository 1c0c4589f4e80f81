// Package jsontime provides time types with lenient JSON decoding for
// payloads written by field devices.
package jsontime

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Layouts are the string layouts Device accepts, tried in order. Strings
// without a zone are taken as UTC.
var Layouts = []string{time.RFC3339Nano, time.DateTime}

// millisThreshold separates Unix seconds from Unix milliseconds; 1e12
// seconds is far past year 30000.
const millisThreshold = 1e12

// Device is a time.Time decoded from whatever a device sends: Unix
// seconds or milliseconds as a number or a string, an RFC 3339 string, or
// "YYYY-MM-DD HH:MM:SS". It marshals as RFC 3339 in UTC.
type Device time.Time

// Time returns the underlying time.Time value.
func (d Device) Time() time.Time {
	return time.Time(d)
}

// IsZero reports whether d represents the zero time instant.
func (d Device) IsZero() bool {
	return time.Time(d).IsZero()
}

// String returns the time formatted as a string.
func (d Device) String() string {
	return time.Time(d).String()
}

// MarshalJSON implements json.Marshaler.
func (d Device) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(time.Time(d).UTC().Format(time.RFC3339Nano))
}

// UnmarshalJSON implements json.Unmarshaler. null and "" leave d unchanged.
func (d *Device) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	s := string(b)
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			return nil
		}
		for _, layout := range Layouts {
			if t, err := time.Parse(layout, s); err == nil {
				*d = Device(t.UTC())
				return nil
			}
		}
	}
	t, err := ParseEpoch(s)
	if err != nil {
		return err
	}
	*d = Device(t)
	return nil
}

// ParseEpoch parses Unix seconds, possibly fractional, or Unix
// milliseconds.
func ParseEpoch(s string) (time.Time, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("jsontime: invalid timestamp %q", s)
	}
	if f > millisThreshold {
		return time.UnixMilli(int64(f)).UTC(), nil
	}
	sec := int64(f)
	return time.Unix(sec, int64((f-float64(sec))*1e9)).UTC(), nil
}
