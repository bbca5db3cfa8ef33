// Package httpapi serves [saasAuth.Engine.Actions] over net/http with a chi
// router.
//
// # Request pipeline
//
//  1. RealIP, RequestID and Recoverer from chi.
//  2. Identity: the `session` header, a private key from the Authorization
//     header or the `key`/`apiKey` query, or a public key from the
//     `Public-Key` header or `public_key` query.
//  3. Usage tracking, fired without waiting.
//  4. Abuse gate for anonymous callers. Banned and blacklisted IPs get a 404.
//  5. Per-IP rate limit on login, register, forgot and reset.
//  6. The action, with its JSON or form body decoded into Request.Body.
//
// Unknown routes answer 404 and are still counted.
//
// # What this package must NOT do
//
//   - Make authentication decisions (the Engine does).
//   - Touch the store directly.
package httpapi
