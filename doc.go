// Package saasAuth is an embeddable multi-tenant authentication core: account
// registration and login, opaque server-side sessions, API key identities,
// password reset and email verification links, TOTP two-factor enrollment and
// a scanner-probe abuse heuristic.
//
// Storage, cache and mail are injected through [Builder]; the engine never
// opens connections itself. Engine methods are safe to call from multiple
// goroutines after [Builder.Build].
//
// # Architecture boundaries
//
// saasAuth is the public surface. It exposes [Engine], [Builder], [Config],
// the request/result value types and the transport-neutral action table
// returned by [Engine.Actions]. Persistence contracts live in store, cache and
// mail; session bookkeeping in session; token, attempt, abuse and usage
// bookkeeping under internal/.
//
// # Identity resolution
//
// [Engine.ResolveIdentity] checks the public key, then the private key, then
// the session id. The first credential present decides; a credential that
// matches nothing yields an anonymous caller rather than an error.
//
// # Errors
//
// Every caller-facing failure is an [*Error] with a [Kind] that maps to an
// HTTP status. Unexpected backend failures are logged and reported as
// [ErrInternal].
package saasAuth
