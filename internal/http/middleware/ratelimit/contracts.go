package ratelimit

import (
	"net/http"
	"time"
)

// Limiter decides whether the request identified by key may proceed.
type Limiter interface {
	Allow(key string) bool
}

// delayer is implemented by limiters that can tell how long a refused key should back off.
type delayer interface {
	Delay(key string) time.Duration
}

// KeyFunc picks the bucket a request is charged to. ok=false lets the request through uncharged.
type KeyFunc func(r *http.Request) (key string, ok bool)
