// Package session issues, resolves, refreshes and ends login sessions stored as
// documents in a store.Database.
//
// A session id is an opaque random string that doubles as the bearer
// credential. Every session carries an absolute expiration; nothing slides.
// Optionally a session is bound to a fingerprint of the client IP and/or
// User-Agent and is rejected when presented from a different client.
//
// # Architecture boundaries
//
// This package owns the [Manager] and the [Session] model. It does NOT load
// users, check passwords or decide which credential a request presented.
//
// # What this package must NOT do
//
//   - Import saasAuth (no upward imports).
//   - Store raw User-Agent strings; only their hash is persisted.
package session
