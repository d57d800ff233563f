package ratelimit

import (
	"io"
	"math"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"service-dispatcher/internal/logx"
)

// Middleware rejects requests whose bucket is empty.
type Middleware struct {
	logger  logx.Logger
	counter prometheus.Counter
	limiter Limiter
	scope   string
	key     KeyFunc
}

// Option customizes a Middleware.
type Option func(*Middleware)

// WithKey charges requests to the bucket chosen by key. scope names the
// limit in logs. The default is per client address.
func WithKey(scope string, key KeyFunc) Option {
	return func(m *Middleware) {
		if key != nil {
			m.scope, m.key = scope, key
		}
	}
}

// New creates a new Middleware. counter may be nil.
func New(logger logx.Logger, counter prometheus.Counter, limiter Limiter, opts ...Option) *Middleware {
	if limiter == nil {
		limiter = NopLimiter{}
	}
	if logger == nil {
		logger = logx.Nop()
	}
	m := &Middleware{
		logger:  logger,
		counter: counter,
		limiter: limiter,
		scope:   "client",
		key:     ByClientIP,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Handler returns chi-style middleware.
func (m *Middleware) Handler() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, ok := m.key(r)
			if !ok || m.limiter.Allow(key) {
				next.ServeHTTP(w, r)
				return
			}

			if m.counter != nil {
				m.counter.Inc()
			}
			m.logger.Warn("rate limit exceeded",
				logx.String("scope", m.scope),
				logx.String("key", key),
				logx.String("method", r.Method),
				logx.String("path", r.URL.Path),
			)
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", m.retryAfter(key))
			w.WriteHeader(http.StatusTooManyRequests)
			if _, err := io.WriteString(w, `{"error":"too many requests"}`+"\n"); err != nil {
				// client went away
				m.logger.Debug("rate limit response write failed", logx.String("key", key), logx.Err(err))
			}
		})
	}
}

// retryAfter rounds the limiter's backoff up to whole seconds, never below one.
func (m *Middleware) retryAfter(key string) string {
	secs := 1
	if d, ok := m.limiter.(delayer); ok {
		secs = max(secs, int(math.Ceil(d.Delay(key).Seconds())))
	}
	return strconv.Itoa(secs)
}
