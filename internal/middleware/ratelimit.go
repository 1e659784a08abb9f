package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

type window struct {
	count   int
	resetAt time.Time
}

// ConnectLimiter counts requests per key in fixed windows. It guards the
// websocket endpoint against a client reconnecting in a tight loop.
type ConnectLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	limit   int
	period  time.Duration
	now     func() time.Time
}

func NewConnectLimiter(limit int, period time.Duration) *ConnectLimiter {
	return &ConnectLimiter{
		windows: make(map[string]*window),
		limit:   limit,
		period:  period,
		now:     time.Now,
	}
}

// Allow records one request for key and reports whether it is within the limit.
// A limit of zero or less disables limiting.
func (l *ConnectLimiter) Allow(key string) bool {
	if l.limit <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || now.After(w.resetAt) {
		l.windows[key] = &window{count: 1, resetAt: now.Add(l.period)}
		return true
	}
	w.count++
	return w.count <= l.limit
}

// Sweep removes windows that have ended.
func (l *ConnectLimiter) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, w := range l.windows {
		if now.After(w.resetAt) {
			delete(l.windows, key)
		}
	}
}

// RunSweeper calls Sweep every period until ctx is done.
func (l *ConnectLimiter) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(l.period)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.Sweep()
		case <-ctx.Done():
			return
		}
	}
}

// LimitByIP returns middleware that rejects a client IP once it exceeds the
// limiter. The IP comes from proxy headers only when the peer is in proxies.
func LimitByIP(limiter *ConnectLimiter, proxies TrustedProxies, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := proxies.ClientIP(r)
			if !limiter.Allow(ip) {
				logger.Warn("connect limit exceeded", "remote", ip, "path", r.URL.Path)
				http.Error(w, "Too many requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
