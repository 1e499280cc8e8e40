package controllers

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"
)

// TokenValidator checks a bearer token and returns its subject.
type TokenValidator interface {
	Validate(token string) (string, error)
}

type contextKey struct{}

// CurrentUser returns the authenticated subject stored by RequireAuth.
func CurrentUser(ctx context.Context) (string, bool) {
	user, ok := ctx.Value(contextKey{}).(string)
	return user, ok
}

// RequireAuth rejects requests without a valid bearer token.
// Invalid and expired tokens get the same response.
func RequireAuth(v TokenValidator) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				unauthorized(w, "Not authenticated")
				return
			}
			user, err := v.Validate(token)
			if err != nil {
				unauthorized(w, "Invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextKey{}, user)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeError(w, http.StatusUnauthorized, detail)
}

// visitorTTL is how long an idle client keeps its bucket.
const visitorTTL = 10 * time.Minute

// RateLimiter limits each client address to r requests per second with burst b.
// A zero rate returns a pass-through middleware.
func RateLimiter(r rate.Limit, b int) mux.MiddlewareFunc {
	if r <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return newVisitors(r, b, visitorTTL).middleware
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// visitors holds one token bucket per client. Buckets idle for longer than
// ttl are dropped, at most one sweep per ttl.
type visitors struct {
	mu        sync.Mutex
	r         rate.Limit
	b         int
	ttl       time.Duration
	now       func() time.Time
	lastSweep time.Time
	byIP      map[string]*visitor
}

func newVisitors(r rate.Limit, b int, ttl time.Duration) *visitors {
	return &visitors{r: r, b: b, ttl: ttl, now: time.Now, byIP: make(map[string]*visitor)}
}

func (v *visitors) allow(ip string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	now := v.now()
	if now.Sub(v.lastSweep) >= v.ttl {
		for key, vis := range v.byIP {
			if now.Sub(vis.lastSeen) >= v.ttl {
				delete(v.byIP, key)
			}
		}
		v.lastSweep = now
	}

	vis, ok := v.byIP[ip]
	if !ok {
		vis = &visitor{limiter: rate.NewLimiter(v.r, v.b)}
		v.byIP[ip] = vis
	}
	vis.lastSeen = now
	return vis.limiter.AllowN(now, 1)
}

func (v *visitors) size() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.byIP)
}

func (v *visitors) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if !v.allow(clientIP(req)) {
			writeError(w, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}
		next.ServeHTTP(w, req)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
