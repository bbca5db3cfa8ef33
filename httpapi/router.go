package httpapi

import (
	"log/slog"
	"net/http"
	"sort"
	"time"

	saasAuth "github.com/MrEthical07/saasAuth"
	"github.com/MrEthical07/saasAuth/internal/rate"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

const notFoundMessage = "Not found. This request has been recorded."

// Options configures NewRouter. Zero values are usable.
type Options struct {
	// Limiter guards the brute-force routes. Nil uses an in-process limiter
	// of five hits per minute per IP.
	Limiter rate.Limiter
	Logger  *slog.Logger
	// BodyLimit caps decoded request bodies. Zero means 1 MiB.
	BodyLimit int64
}

type server struct {
	engine    *saasAuth.Engine
	limiter   rate.Limiter
	logger    *slog.Logger
	bodyLimit int64
}

// limited lists the routes that pass through the rate limiter.
var limited = map[saasAuth.Route]bool{
	{Method: http.MethodPost, Path: "/login"}:    true,
	{Method: http.MethodPost, Path: "/register"}: true,
	{Method: http.MethodPost, Path: "/forgot"}:   true,
	{Method: http.MethodPost, Path: "/reset"}:    true,
}

// NewRouter mounts every engine action.
func NewRouter(engine *saasAuth.Engine, opts Options) http.Handler {
	s := &server{
		engine:    engine,
		limiter:   opts.Limiter,
		logger:    opts.Logger,
		bodyLimit: opts.BodyLimit,
	}
	if s.limiter == nil {
		s.limiter = rate.NewLocal(rate.DefaultConfig())
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	if s.bodyLimit <= 0 {
		s.bodyLimit = 1 << 20
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(s.identify)
	r.Use(s.trackUsage)
	r.Use(s.abuseGate)

	actions := engine.Actions()
	routes := make([]saasAuth.Route, 0, len(actions))
	for route := range actions {
		routes = append(routes, route)
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path != routes[j].Path {
			return routes[i].Path < routes[j].Path
		}
		return routes[i].Method < routes[j].Method
	})

	for _, route := range routes {
		var h http.Handler = s.action(actions[route])
		if limited[route] {
			h = s.rateLimit(h)
		}
		r.Method(route.Method, route.Path, h)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, saasAuth.MessageBody{Error: true, Message: notFoundMessage})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, saasAuth.MessageBody{Error: true, Message: notFoundMessage})
	})

	return r
}

func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.InfoContext(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", chimiddleware.GetReqID(r.Context()),
		)
	})
}
