package ratelimit

import (
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
)

// KeyFunc derives the caller identity used as the limiter key.
type KeyFunc func(r *http.Request) string

// Middleware rejects requests with 429 once the caller's window is full.
func (l *Limiter) Middleware(keyFn KeyFunc, logger *log.Logger) func(http.Handler) http.Handler {
	if keyFn == nil {
		keyFn = ClientIP
	}
	if logger == nil {
		logger = log.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFn(r)
			allowed := l.Allow(key)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.maxRequests))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(l.Remaining(key)))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(l.ResetTime(key).Unix(), 10))
			if !allowed {
				logger.Printf("rate limit exceeded: client=%s path=%s", key, r.URL.Path)
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP identifies a caller by X-Real-IP, the first X-Forwarded-For hop,
// or the connection's remote host.
func ClientIP(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		first = strings.TrimSpace(first)
		if parsed := net.ParseIP(first); parsed != nil {
			return parsed.String()
		}
		if first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
