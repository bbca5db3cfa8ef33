// Package stores provides the short-lived record stores behind password reset,
// email verification and two-factor enrollment.
//
// # Design
//
// Reset and verification tokens are durable documents in the tenant's tokens
// collection. A token is single-use: [Tokens.Consume] stamps "used" and every
// later presentation fails. Issuing a token first removes the user's
// unconsumed tokens of the same type, so at most one is live.
//
// Two-factor enrollment attempts and the single-use code markers live only in
// the ephemeral cache. Losing them just means the user starts over.
//
// # What this package must NOT do
//
//   - Import saasAuth or any sibling internal package.
//   - Generate TOTP secrets or validate codes.
//   - Log token ids or secrets.
package stores
