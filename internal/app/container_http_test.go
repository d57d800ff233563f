package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/dig"

	"service-dispatcher/internal/cache"
	"service-dispatcher/internal/config"
	"service-dispatcher/internal/domain"
	"service-dispatcher/internal/http/handlers"
	"service-dispatcher/internal/http/middleware/ratelimit"
	"service-dispatcher/internal/logx"
	"service-dispatcher/internal/metrics"
	"service-dispatcher/internal/repository"
	"service-dispatcher/internal/service/dispatch"
	"service-dispatcher/internal/service/finder"
)

type httpServersIn struct {
	dig.In

	Main  *http.Server
	Admin *http.Server `name:"admin_server" optional:"true"`
}

func setupHTTPContainerWithCfg(t *testing.T, cfg *config.Config) *dig.Container {
	t.Helper()

	c := dig.New()

	require.NoError(t, c.Provide(func() *config.Config { return cfg }))
	require.NoError(t, c.Provide(logx.Nop))
	require.NoError(t, c.Provide(func() *dispatch.Service {
		return dispatch.NewService(nil, nil, nil, nil, dispatch.Scorer{}, nil, dispatch.Config{}, nil, nil)
	}))
	require.NoError(t, c.Provide(func() *finder.Finder { return finder.New(nil, nil, nil) }))
	require.NoError(t, c.Provide(func() *repository.Store { return repository.NewStore(nil) }))

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, c.Provide(func() *cache.CapacityCache { return cache.NewCapacityCache(client, time.Minute) }))
	require.NoError(t, c.Provide(func() *cache.NearbyCache { return cache.NewNearbyCache(client, time.Minute) }))
	require.NoError(t, c.Provide(func() prometheus.Gatherer { return prometheus.NewRegistry() }))
	require.NoError(t, c.Provide(func() prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rate_limit_exceeded_total_unit",
			Help: "stub",
		})
	}, dig.Name("rate_limit_exceeded_total")))

	require.NoError(t, registerHTTP(c))

	return c
}

func TestRegisterHTTP_AdminDisabled_ReturnsNilAdminServer(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Port = 8080
	cfg.Admin = config.Admin{Port: 0}

	c := setupHTTPContainerWithCfg(t, cfg)
	err := c.Invoke(func(in httpServersIn) {
		require.NotNil(t, in.Main)
		require.Equal(t, ":8080", in.Main.Addr)
		require.Greater(t, in.Main.ReadHeaderTimeout, time.Duration(0))
		require.Greater(t, in.Main.ReadTimeout, time.Duration(0))
		require.Greater(t, in.Main.WriteTimeout, time.Duration(0))
		require.Greater(t, in.Main.IdleTimeout, time.Duration(0))
		require.Nil(t, in.Admin)
	})
	require.NoError(t, err)
}

func TestRegisterHTTP_AdminEnabled_ProvidesAdminServer(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Admin = config.Admin{Port: 6060, User: "u", Pass: "p"}

	c := setupHTTPContainerWithCfg(t, cfg)
	err := c.Invoke(func(in httpServersIn) {
		require.NotNil(t, in.Main)
		require.NotNil(t, in.Admin)
		require.Equal(t, ":6060", in.Admin.Addr)
		require.NotNil(t, in.Admin.Handler)
	})
	require.NoError(t, err)
}

func TestRegisterHTTP_RoutesPing(t *testing.T) {
	t.Parallel()

	c := setupHTTPContainerWithCfg(t, testConfig())
	err := c.Invoke(func(mux http.Handler) {
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ping", nil))
		require.Equal(t, http.StatusOK, rr.Code)
	})
	require.NoError(t, err)
}

func TestRegisterHTTP_NearbyDefaultsFollowDispatchConfig(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Dispatch.SearchRadiusMeters = 1200
	cfg.Dispatch.CandidateLimit = 7

	c := setupHTTPContainerWithCfg(t, cfg)
	err := c.Invoke(func(d handlers.NearbyDefaults) {
		require.Equal(t, 1200.0, d.RadiusMeters)
		require.Equal(t, 7, d.Limit)
		require.Equal(t, 100, d.MaxLimit)
	})
	require.NoError(t, err)
}

func TestRegisterHTTP_CapacityServedFromCache(t *testing.T) {
	t.Parallel()

	c := setupHTTPContainerWithCfg(t, testConfig())
	err := c.Invoke(func(capacity *cache.CapacityCache, mux http.Handler) {
		_, err := capacity.Store(context.Background(), domain.CapacityView{
			DriverID: "D1", Available: true, Capacity: 3, CurrentLoad: 1, Version: 2,
		})
		require.NoError(t, err)

		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/drivers/D1/capacity", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		require.Contains(t, rr.Body.String(), `"cached":true`)
		require.Contains(t, rr.Body.String(), `"current_load":1`)
	})
	require.NoError(t, err)
}

func TestRegisterHTTP_PerDeliveryLimit(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.RateLimit.DeliveryRate = 0.001
	cfg.RateLimit.DeliveryBurst = 1

	c := setupHTTPContainerWithCfg(t, cfg)
	err := c.Invoke(func(mux http.Handler) {
		do := func(path string) int {
			rr := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, path, strings.NewReader("{"))
			mux.ServeHTTP(rr, req)
			return rr.Code
		}
		// The first command reaches the handler and is rejected for its body.
		require.Equal(t, http.StatusBadRequest, do("/deliveries/L1/cancel"))
		require.Equal(t, http.StatusTooManyRequests, do("/deliveries/L1/cancel"))
		require.Equal(t, http.StatusBadRequest, do("/deliveries/L2/cancel"))
	})
	require.NoError(t, err)
}

func TestNewDeliveryRateLimit_Disabled(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.RateLimit.DeliveryBurst = 0
	out := newDeliveryRateLimit(deliveryLimitIn{Cfg: cfg, Clock: ratelimit.RealClock{}, Logger: logx.Nop()})
	require.Nil(t, out.Middleware)

	cfg.RateLimit.DeliveryBurst = 2
	cfg.RateLimit.Enabled = false
	out = newDeliveryRateLimit(deliveryLimitIn{Cfg: cfg, Clock: ratelimit.RealClock{}, Logger: logx.Nop()})
	require.Nil(t, out.Middleware)
}

func TestFlushCaches(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	capacity := cache.NewCapacityCache(client, time.Minute)
	nearby := cache.NewNearbyCache(client, time.Minute)
	for _, id := range []string{"D1", "D2"} {
		_, err := capacity.Store(ctx, domain.CapacityView{DriverID: id, Version: 1})
		require.NoError(t, err)
	}
	require.NoError(t, nearby.Store(ctx, cache.NearbyKey(domain.Location{}, 1000, 5, ""), nil))
	require.NoError(t, mr.Set("unrelated", "x"))

	n, err := flushCaches(capacity, nearby)(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.True(t, mr.Exists("unrelated"))

	mr.Close()
	_, err = flushCaches(capacity, nearby)(ctx)
	require.Error(t, err)
}

func TestNewRateLimiter_DisabledReturnsNop(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.RateLimit.Enabled = false

	l := newRateLimiter(cfg, ratelimit.RealClock{}, logx.Nop())
	require.IsType(t, ratelimit.NopLimiter{}, l)

	cfg.RateLimit.Enabled = true
	l = newRateLimiter(cfg, ratelimit.RealClock{}, logx.Nop())
	require.IsType(t, &ratelimit.TokenBucketLimiter{}, l)
}

func swapRegistry(t *testing.T) *prometheus.Registry {
	t.Helper()

	oldReg := prometheus.DefaultRegisterer
	oldGath := prometheus.DefaultGatherer
	reg := prometheus.NewRegistry()
	prometheus.DefaultRegisterer = reg
	prometheus.DefaultGatherer = reg
	t.Cleanup(func() {
		prometheus.DefaultRegisterer = oldReg
		prometheus.DefaultGatherer = oldGath
	})
	return reg
}

func TestProvideMetrics_Success_RegistersAndReturnsCounters(t *testing.T) {
	swapRegistry(t)

	out, err := provideMetrics()
	require.NoError(t, err)
	require.NotNil(t, out.RateLimitExceededTotal)
	require.NotNil(t, out.EventsDroppedTotal)
	require.NotNil(t, out.ReservationsTotal)
	require.NotNil(t, out.AssignmentsTotal)
	require.NotNil(t, out.RetriesTotal)
	require.NotNil(t, out.StatusEventsTotal)
}

func TestProvideMetrics_AlreadyRegistered_ReturnsExistingCounters(t *testing.T) {
	reg := swapRegistry(t)

	existingRL := metrics.NewRateLimitExceededTotal()
	existingRetries := metrics.NewRetriesTotal()

	require.NoError(t, reg.Register(existingRL))
	require.NoError(t, reg.Register(existingRetries))

	out, err := provideMetrics()
	require.NoError(t, err)

	require.Same(t, existingRL, out.RateLimitExceededTotal)
	require.Same(t, existingRetries, out.RetriesTotal)
}

type errRegisterer struct{ err error }

func (e errRegisterer) Register(prometheus.Collector) error  { return e.err }
func (e errRegisterer) MustRegister(...prometheus.Collector) {}
func (e errRegisterer) Unregister(prometheus.Collector) bool { return false }

func TestProvideMetrics_RegisterError_NotAlreadyRegistered(t *testing.T) {
	oldReg := prometheus.DefaultRegisterer
	prometheus.DefaultRegisterer = errRegisterer{err: errors.New("boom")}
	t.Cleanup(func() { prometheus.DefaultRegisterer = oldReg })

	_, err := provideMetrics()
	require.Error(t, err)
	require.Contains(t, err.Error(), "register rate_limit_exceeded_total")
}

func TestRetryObserver_CountsByOp(t *testing.T) {
	t.Parallel()

	retries := metrics.NewRetriesTotal()
	observe := retryObserver(retries, "release")
	observe(1, time.Millisecond, errors.New("busy"))
	observe(2, time.Millisecond, errors.New("busy"))

	require.NotPanics(t, func() { retryObserver(nil, "noop")(1, 0, nil) })

	c, err := retries.GetMetricWithLabelValues("release")
	require.NoError(t, err)
	require.Equal(t, 2.0, promtest.ToFloat64(c))
}
