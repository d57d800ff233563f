package app

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/dig"

	"service-dispatcher/internal/config"
	"service-dispatcher/internal/http/handlers"
	"service-dispatcher/internal/http/middleware/ratelimit"
	"service-dispatcher/internal/http/router"
	"service-dispatcher/internal/logx"
)

// newRateLimiter builds the per-client limiter guarding the dispatch API.
func newRateLimiter(cfg *config.Config, clock ratelimit.Clock, logger logx.Logger) ratelimit.Limiter {
	rl := cfg.RateLimit
	if !rl.Enabled {
		logger.Info("rate limiting disabled")
		return ratelimit.NopLimiter{}
	}
	return ratelimit.NewTokenBucketLimiter(clock, ratelimit.Config{
		Rate:       rl.Rate,
		Burst:      rl.Burst,
		TTL:        rl.TTL,
		MaxBuckets: rl.MaxBuckets,
	})
}

func newRateLimitClock() ratelimit.Clock {
	return ratelimit.RealClock{}
}

type rateLimitIn struct {
	dig.In

	Logger  logx.Logger
	Counter prometheus.Counter `name:"rate_limit_exceeded_total"`
	Limiter ratelimit.Limiter
}

func newRateLimitMiddleware(in rateLimitIn) *ratelimit.Middleware {
	return ratelimit.New(in.Logger, in.Counter, in.Limiter)
}

type deliveryLimitIn struct {
	dig.In

	Cfg     *config.Config
	Clock   ratelimit.Clock
	Logger  logx.Logger
	Counter prometheus.Counter `name:"rate_limit_exceeded_total"`
}

type deliveryLimitOut struct {
	dig.Out

	Middleware *ratelimit.Middleware `name:"per_delivery_limit"`
}

// newDeliveryRateLimit throttles commands aimed at one delivery across all
// callers, so a retry storm on one delivery cannot keep its driver locks busy.
func newDeliveryRateLimit(in deliveryLimitIn) deliveryLimitOut {
	rl := in.Cfg.RateLimit
	if !rl.Enabled || rl.DeliveryBurst <= 0 {
		return deliveryLimitOut{}
	}
	limiter := ratelimit.NewTokenBucketLimiter(in.Clock, ratelimit.Config{
		Rate:       rl.DeliveryRate,
		Burst:      rl.DeliveryBurst,
		TTL:        rl.TTL,
		MaxBuckets: rl.MaxBuckets,
	})
	return deliveryLimitOut{Middleware: ratelimit.New(in.Logger, in.Counter, limiter,
		ratelimit.WithKey("delivery", ratelimit.ByURLParam("id")))}
}

type routerIn struct {
	dig.In

	Logger      logx.Logger
	Base        *handlers.Handlers
	Dispatch    *handlers.DispatchHandler
	Drivers     *handlers.DriverHandler
	PerClient   *ratelimit.Middleware
	PerDelivery *ratelimit.Middleware `name:"per_delivery_limit" optional:"true"`
}

func newRouter(in routerIn) http.Handler {
	return router.New(in.Logger, in.Base, in.Dispatch, in.Drivers, in.PerClient, in.PerDelivery)
}
