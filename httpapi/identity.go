package httpapi

import (
	"context"
	"net"
	"net/http"
	"strings"

	saasAuth "github.com/MrEthical07/saasAuth"
)

type identityContextKey struct{}

// IdentityFromContext returns the caller resolved for this request. It is nil
// for anonymous callers.
func IdentityFromContext(ctx context.Context) *saasAuth.Identity {
	id, _ := ctx.Value(identityContextKey{}).(*saasAuth.Identity)
	return id
}

func credentials(r *http.Request) saasAuth.Credentials {
	q := r.URL.Query()

	privateKey := bearer(r.Header.Get("Authorization"))
	if privateKey == "" {
		privateKey = q.Get("key")
	}
	if privateKey == "" {
		privateKey = q.Get("apiKey")
	}

	publicKey := r.Header.Get("Public-Key")
	if publicKey == "" {
		publicKey = q.Get("public_key")
	}

	return saasAuth.Credentials{
		SessionID:  r.Header.Get("session"),
		PrivateKey: privateKey,
		PublicKey:  publicKey,
		Client:     saasAuth.Client{IP: clientIP(r), UserAgent: r.UserAgent()},
	}
}

// bearer accepts both a raw key and "Bearer <key>".
func bearer(value string) string {
	value = strings.TrimSpace(value)
	const prefix = "Bearer "
	if len(value) > len(prefix) && strings.EqualFold(value[:len(prefix)], prefix) {
		return strings.TrimSpace(value[len(prefix):])
	}
	return value
}

// clientIP strips the port RealIP leaves on RemoteAddr when no proxy header
// was present.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *server) identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		creds := credentials(r)
		ctx := saasAuth.WithClientIP(r.Context(), creds.Client.IP)
		ctx = saasAuth.WithUserAgent(ctx, creds.Client.UserAgent)
		if id := requestID(ctx); id != "" {
			ctx = saasAuth.WithRequestID(ctx, id)
		}

		identity, err := s.engine.ResolveIdentity(ctx, creds)
		if err != nil {
			writeResponse(w, r, saasAuth.ErrorResponse(err))
			return
		}
		if identity != nil {
			ctx = context.WithValue(ctx, identityContextKey{}, identity)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
