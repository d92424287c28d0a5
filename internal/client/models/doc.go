// Package models defines the data shapes shared by the daybook client: the
// schemaless Record every collection stores, the declared collections, the
// typed entities the repositories hand out, and the sync bookkeeping types
// (Conflict, Delta).
//
// Records are plain JSON objects. Two records are the same entity when their
// key fields match and the same content when their canonical JSON encodings
// are byte-equal; encoding/json sorts map keys, so Canonical is stable.
//
// Timestamps are written as RFC 3339 UTC strings with millisecond precision
// (see FormatTime). Readers also accept full RFC 3339 and Unix milliseconds.
package models
