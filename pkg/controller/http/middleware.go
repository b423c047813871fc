package http

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/time/rate"

	"github.com/secmon-lab/grcops/pkg/domain/interfaces"
	"github.com/secmon-lab/grcops/pkg/domain/model/auth"
	"github.com/secmon-lab/grcops/pkg/utils/logging"
)

// ActorHeader names the caller on whose behalf a request runs
const ActorHeader = "X-Actor"

// accessLogger is a middleware that logs HTTP requests
func accessLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			logging.From(r.Context()).Info("access",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("duration", time.Since(start)),
				slog.String("request_id", middleware.GetReqID(r.Context())),
				slog.String("remote", r.RemoteAddr),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// actorMiddleware puts the caller named by the X-Actor header into the context
func actorMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := strings.TrimSpace(r.Header.Get(ActorHeader))
		if actor == "" {
			actor = auth.AnonymousActor
		}
		ctx := auth.WithActor(r.Context(), actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func actionOf(method string) interfaces.Action {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return interfaces.ActionRead
	case http.MethodDelete:
		return interfaces.ActionDelete
	default:
		return interfaces.ActionWrite
	}
}

// authzMiddleware asks the authorizer about every request under /api. The resource is
// the first path segment after /api, e.g. "frameworks" or "catalog".
func authzMiddleware(authorizer interfaces.Authorizer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			resource := strings.TrimPrefix(r.URL.Path, "/api/")
			if i := strings.Index(resource, "/"); i >= 0 {
				resource = resource[:i]
			}

			actor := auth.ActorFromContext(r.Context())
			if err := authorizer.Authorize(r.Context(), actor, actionOf(r.Method), resource); err != nil {
				writeError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientLimiters manages per-client rate limiters. Idle entries are swept lazily.
type clientLimiters struct {
	mu        sync.Mutex
	rps       float64
	burst     int
	limiters  map[string]*clientLimiter
	lastSweep time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const limiterIdleTTL = 5 * time.Minute

func newClientLimiters(rps float64, burst int) *clientLimiters {
	return &clientLimiters{
		rps:       rps,
		burst:     burst,
		limiters:  make(map[string]*clientLimiter),
		lastSweep: time.Now(),
	}
}

func (m *clientLimiters) allow(client string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if now.Sub(m.lastSweep) > time.Minute {
		for key, l := range m.limiters {
			if now.Sub(l.lastSeen) > limiterIdleTTL {
				delete(m.limiters, key)
			}
		}
		m.lastSweep = now
	}

	l, ok := m.limiters[client]
	if !ok {
		l = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(m.rps), m.burst)}
		m.limiters[client] = l
	}
	l.lastSeen = now
	return l.limiter.Allow()
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func rateLimitMiddleware(limiters *clientLimiters) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if !limiters.allow(ip) {
				w.Header().Set("Retry-After", "1")
				writeError(w, r, goerr.Wrap(errRateLimited, "rate limit exceeded", goerr.V("client", ip)))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
