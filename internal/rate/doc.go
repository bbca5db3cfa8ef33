// Package rate provides the request limiters used in front of the brute-force
// surface (login, register, forgot, reset), and the per-user [Failures]
// counter that locks out repeated two-factor code misses.
//
// # Window semantics
//
// [Redis] uses fixed-window counters: INCR + EXPIRE on the first hit of the
// window. [Local] is a per-key token bucket for single-process deployments;
// buckets left idle for a full window are pruned. Both satisfy [Limiter].
//
// [Failures] counts misses in the engine cache with a TTL set on the first
// failure, so a lockout lifts a cooldown after it began.
//
// # What this package must NOT do
//
//   - Decide which routes are limited (the router does that).
//   - Be imported outside the saasAuth module.
package rate
