// Package internal contains helpers that are private to saasAuth: random id,
// key and token generation and client fingerprinting.
//
// # Sub-packages
//
//   - abuse: offending-path heuristic and the persisted IP blacklist
//   - rate: fixed-window request limiters used by the HTTP adapter
//   - stores: password-reset and email-verification tokens, and
//     short-lived two-factor enrollment attempts with code replay marks
//   - usage: per-day request and endpoint counters
//
// # What this package must NOT do
//
//   - Export types that appear in the public saasAuth API.
//   - Be imported by any package outside the saasAuth module.
package internal
