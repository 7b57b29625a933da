package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/httprate"
	"golang.org/x/time/rate"
)

type clientLimiter struct {
	general  *rate.Limiter
	lastSeen time.Time
}

// RateLimitMiddleware applies a per-client token bucket to all traffic and a stricter fixed
// window to the /auth endpoints. A negative rate disables the corresponding limit.
type RateLimitMiddleware struct {
	generalRPM int
	authRPM    int
	mu         sync.Mutex
	clients    map[string]*clientLimiter
}

func NewRateLimitMiddleware(generalRPM int, authRPM int) *RateLimitMiddleware {
	if generalRPM == 0 {
		generalRPM = 100
	}
	if authRPM == 0 {
		authRPM = 10
	}

	return &RateLimitMiddleware{
		generalRPM: generalRPM,
		authRPM:    authRPM,
		clients:    map[string]*clientLimiter{},
	}
}

func (m *RateLimitMiddleware) Handler(next http.Handler) http.Handler {
	auth := next
	if m.authRPM > 0 {
		auth = httprate.Limit(m.authRPM, time.Minute,
			httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
				return extractClientIP(r), nil
			}),
			httprate.WithLimitHandler(writeRateLimited),
		)(next)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.generalRPM > 0 && !m.getLimiter(extractClientIP(r)).general.Allow() {
			writeRateLimited(w, r)
			return
		}

		if isAuthPath(r.URL.Path) {
			auth.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func isAuthPath(p string) bool {
	p = strings.ToLower(p)
	return p == "/auth" || strings.HasPrefix(p, "/auth/")
}

func writeRateLimited(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Retry-After", "60")
	writeJSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests")
}

func (m *RateLimitMiddleware) getLimiter(clientIP string) *clientLimiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	if limiter, exists := m.clients[clientIP]; exists {
		limiter.lastSeen = time.Now()
		m.gcLocked()
		return limiter
	}

	general := rate.NewLimiter(rate.Every(time.Minute/time.Duration(m.generalRPM)), m.generalRPM)
	created := &clientLimiter{general: general, lastSeen: time.Now()}
	m.clients[clientIP] = created
	m.gcLocked()

	return created
}

func (m *RateLimitMiddleware) gcLocked() {
	if len(m.clients) < 1000 {
		return
	}

	cutoff := time.Now().Add(-10 * time.Minute)
	for ip, limiter := range m.clients {
		if limiter.lastSeen.Before(cutoff) {
			delete(m.clients, ip)
		}
	}
}

func extractClientIP(r *http.Request) string {
	forwarded := strings.TrimSpace(r.Header.Get("X-Forwarded-For"))
	if forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}

	realIP := strings.TrimSpace(r.Header.Get("X-Real-IP"))
	if realIP != "" {
		return realIP
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}

	if strings.TrimSpace(r.RemoteAddr) == "" {
		return "unknown"
	}

	return r.RemoteAddr
}
