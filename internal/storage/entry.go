// Defines the persisted Entry row and its timestamp encoding.

package storage

import (
	"encoding/json"
	"fmt"
	"time"
)

// timestampLayout is ISO-8601 in UTC with millisecond precision.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// Timestamp is a UTC instant encoded in JSON as an ISO-8601 string.
type Timestamp time.Time

// ToTimestamp truncates v to millisecond precision in UTC.
func ToTimestamp(v time.Time) Timestamp {
	return Timestamp(v.UTC().Truncate(time.Millisecond))
}

// AsTime returns the timestamp as a time.Time.
func (t Timestamp) AsTime() time.Time {
	return time.Time(t)
}

// IsZero reports whether the timestamp is unset.
func (t Timestamp) IsZero() bool {
	return time.Time(t).IsZero()
}

// After reports whether t is strictly after u.
func (t Timestamp) After(u Timestamp) bool {
	return time.Time(t).After(time.Time(u))
}

// String returns the ISO-8601 representation.
func (t Timestamp) String() string {
	return time.Time(t).UTC().Format(timestampLayout)
}

// MarshalJSON encodes the timestamp as an ISO-8601 string.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON accepts any RFC 3339 string. An empty string or null leaves the
// zero value.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var s *string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	if s == nil || *s == "" {
		*t = Timestamp{}
		return nil
	}
	v, err := time.Parse(time.RFC3339Nano, *s)
	if err != nil {
		return fmt.Errorf("invalid timestamp %q: %w", *s, err)
	}
	*t = Timestamp(v.UTC())
	return nil
}

// Entry is a key/content record.
//
// Key is unique within a Store. Modified is only ever written by the Store.
type Entry struct {
	Key      string    `json:"key"`
	Content  string    `json:"content"`
	Modified Timestamp `json:"modified"`
}
