package httpapi

import (
	"context"
	"errors"
	"net/http"

	saasAuth "github.com/MrEthical07/saasAuth"
	"github.com/MrEthical07/saasAuth/internal/rate"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

const (
	bannedMessage      = "You've been banned from using this service."
	blacklistedMessage = "Nope"
)

func requestID(ctx context.Context) string {
	return chimiddleware.GetReqID(ctx)
}

func (s *server) trackUsage(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var user *saasAuth.User
		if id := IdentityFromContext(r.Context()); id != nil {
			user = id.User
		}
		s.engine.TrackUsage(r.Context(), r.URL.Path, user)
		next.ServeHTTP(w, r)
	})
}

// abuseGate answers 404 to banned callers so scanners learn nothing.
func (s *server) abuseGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authenticated := IdentityFromContext(r.Context()) != nil
		verdict, err := s.engine.CheckRequest(r.Context(), clientIP(r), r.URL.RequestURI(), authenticated)
		if err != nil {
			s.logger.WarnContext(r.Context(), "abuse check failed", "error", err)
			next.ServeHTTP(w, r)
			return
		}

		switch verdict {
		case saasAuth.AbuseBlacklisted:
			writeJSON(w, http.StatusNotFound, saasAuth.MessageBody{Error: true, Message: blacklistedMessage})
		case saasAuth.AbuseBanned:
			writeJSON(w, http.StatusNotFound, saasAuth.MessageBody{Error: true, Message: bannedMessage})
		default:
			next.ServeHTTP(w, r)
		}
	})
}

// rateLimit keys the budget by route and client IP. Limiter backend failures
// let the request through.
func (s *server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.URL.Path + ":" + clientIP(r)
		if err := s.limiter.Allow(r.Context(), key); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				writeJSON(w, http.StatusTooManyRequests, saasAuth.ErrorBody{
					Error:   true,
					Code:    http.StatusTooManyRequests,
					Reason:  "rate_limited",
					Message: "Too many requests. Please try again later.",
				})
				return
			}
			s.logger.WarnContext(r.Context(), "rate limiter unavailable", "key", key, "error", err)
		}
		next.ServeHTTP(w, r)
	})
}
