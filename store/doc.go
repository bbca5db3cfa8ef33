// Package store defines the document database contract consumed by saasAuth and
// ships in-memory and Redis implementations of it.
//
// A [Database] holds named collections of JSON documents keyed by their "id"
// field plus a flat key/value space used for aggregate values such as the IP
// blacklist and usage counters. Filters are equality-only on top-level fields.
//
// [Collection] wraps a Database with a typed view so callers work with structs
// instead of maps.
//
// # What this package must NOT do
//
//   - Import saasAuth or any engine package.
//   - Interpret document contents beyond the "id" field and filter equality.
package store
