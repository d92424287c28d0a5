package models

import (
	"bytes"
	"encoding/json"
	"math"
	"time"
)

// SchemaVersion is the version of the local schema and of the bundle format.
const SchemaVersion = 1

const timeLayout = "2006-01-02T15:04:05.000Z"

// Record is one stored entity.
type Record map[string]any

// FormatTime renders t the way records store timestamps.
func FormatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// ParseTime accepts RFC 3339 strings (with or without fractional seconds)
// and Unix milliseconds as a JSON number.
func ParseTime(v any) (time.Time, bool) {
	switch val := v.(type) {
	case string:
		if val == "" {
			return time.Time{}, false
		}
		if t, err := time.Parse(time.RFC3339Nano, val); err == nil {
			return t.UTC(), true
		}
		return time.Time{}, false
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return time.Time{}, false
		}
		return time.UnixMilli(int64(val)).UTC(), true
	case int64:
		return time.UnixMilli(val).UTC(), true
	case int:
		return time.UnixMilli(int64(val)).UTC(), true
	case time.Time:
		return val.UTC(), !val.IsZero()
	default:
		return time.Time{}, false
	}
}

// Key returns the string value of field, or "" when it is missing or not a
// string.
func (r Record) Key(field string) string {
	s, _ := r[field].(string)
	return s
}

// UpdatedAt parses the updatedAt field.
func (r Record) UpdatedAt() (time.Time, bool) {
	return ParseTime(r["updatedAt"])
}

// Canonical is the byte form used for content equality.
func (r Record) Canonical() []byte {
	b, err := json.Marshal(r)
	if err != nil {
		// values come from JSON or from RecordFrom, both always encodable
		panic(err)
	}
	return b
}

// Equal reports content equality.
func (r Record) Equal(o Record) bool {
	return bytes.Equal(r.Canonical(), o.Canonical())
}

// Clone returns a deep copy.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	var out Record
	if err := json.Unmarshal(r.Canonical(), &out); err != nil {
		panic(err)
	}
	return out
}

// Merge returns a copy of r with every key of patch applied on top. A nil
// value in patch removes the key.
func (r Record) Merge(patch map[string]any) Record {
	out := r.Clone()
	if out == nil {
		out = Record{}
	}
	for k, v := range patch {
		if v == nil {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	return out.Clone()
}

// Decode unmarshals r into v, typically a pointer to an entity.
func (r Record) Decode(v any) error {
	return json.Unmarshal(r.Canonical(), v)
}

// RecordFrom converts an entity into a Record through its JSON form.
func RecordFrom(v any) (Record, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var r Record
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, err
	}
	return r, nil
}
