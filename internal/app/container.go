package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/dig"

	"service-dispatcher/internal/cache"
	"service-dispatcher/internal/config"
	"service-dispatcher/internal/events"
	"service-dispatcher/internal/http/admin"
	"service-dispatcher/internal/http/handlers"
	"service-dispatcher/internal/jobs"
	"service-dispatcher/internal/lock"
	"service-dispatcher/internal/logx"
	"service-dispatcher/internal/repository"
	"service-dispatcher/internal/retry"
	"service-dispatcher/internal/service/dispatch"
	"service-dispatcher/internal/service/finder"
	"service-dispatcher/internal/service/reservation"
	"service-dispatcher/internal/service/statusevents"
	"service-dispatcher/internal/transport/kafka"
)

type (
	dbConnectFunc    func(context.Context, logx.Logger, string, retry.Policy) (*pgxpool.Pool, error)
	redisConnectFunc func(context.Context, logx.Logger, config.Redis, retry.Policy) (*redis.Client, error)
)

// ContainerBuilder is a dig container builder.
type ContainerBuilder struct {
	loadConfig   func() (*config.Config, error)
	dbConnect    dbConnectFunc
	redisConnect redisConnectFunc
	logFatalf    func(string, ...interface{})
}

// NewContainerBuilder returns a new dig container builder
func NewContainerBuilder() *ContainerBuilder {
	return &ContainerBuilder{
		loadConfig:   config.Load,
		dbConnect:    connectDbWithRetry,
		redisConnect: connectRedisWithRetry,
		logFatalf:    log.Fatalf,
	}
}

// WithConfigLoader sets the configuration source
func (b *ContainerBuilder) WithConfigLoader(fn func() (*config.Config, error)) *ContainerBuilder {
	if fn != nil {
		b.loadConfig = fn
	}
	return b
}

// WithDBConnect sets the database connection function
func (b *ContainerBuilder) WithDBConnect(fn dbConnectFunc) *ContainerBuilder {
	if fn != nil {
		b.dbConnect = fn
	}
	return b
}

// WithRedisConnect sets the Redis connection function
func (b *ContainerBuilder) WithRedisConnect(fn redisConnectFunc) *ContainerBuilder {
	if fn != nil {
		b.redisConnect = fn
	}
	return b
}

// WithLogFatalf sets the log.Fatalf function
func (b *ContainerBuilder) WithLogFatalf(fn func(string, ...interface{})) *ContainerBuilder {
	if fn != nil {
		b.logFatalf = fn
	}
	return b
}

// MustBuild builds the API container
func (b *ContainerBuilder) MustBuild(ctx context.Context) *dig.Container {
	container, err := b.build(ctx)
	if err != nil {
		b.logFatalf("failed to build container: %v", err)
	}
	return container
}

// MustBuildWorker builds the worker container
func (b *ContainerBuilder) MustBuildWorker(ctx context.Context) *dig.Container {
	container, err := b.buildWorker(ctx)
	if err != nil {
		b.logFatalf("failed to build worker container: %v", err)
	}
	return container
}

func (b *ContainerBuilder) base(ctx context.Context) (*dig.Container, error) {
	container := dig.New()

	if err := registerCore(container, ctx, b.loadConfig); err != nil {
		return nil, fmt.Errorf("core: %w", err)
	}
	if err := registerMetrics(container); err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	if err := registerInfra(container, b.dbConnect, b.redisConnect); err != nil {
		return nil, fmt.Errorf("infra: %w", err)
	}
	if err := registerDispatch(container); err != nil {
		return nil, fmt.Errorf("dispatch: %w", err)
	}
	return container, nil
}

func (b *ContainerBuilder) build(ctx context.Context) (*dig.Container, error) {
	container, err := b.base(ctx)
	if err != nil {
		return nil, err
	}
	if err := registerHTTP(container); err != nil {
		return nil, fmt.Errorf("http: %w", err)
	}
	return container, nil
}

func (b *ContainerBuilder) buildWorker(ctx context.Context) (*dig.Container, error) {
	container, err := b.base(ctx)
	if err != nil {
		return nil, err
	}
	if err := registerWorker(container); err != nil {
		return nil, fmt.Errorf("worker: %w", err)
	}
	return container, nil
}

// MustBuildContainer builds the API container with production dependencies
func MustBuildContainer(ctx context.Context) *dig.Container {
	return NewContainerBuilder().MustBuild(ctx)
}

// MustBuildWorkerContainer builds the worker container with production dependencies
func MustBuildWorkerContainer(ctx context.Context) *dig.Container {
	return NewContainerBuilder().MustBuildWorker(ctx)
}

func provideAll(container *dig.Container, providers ...any) error {
	for _, provider := range providers {
		if err := container.Provide(provider); err != nil {
			return fmt.Errorf("provide %T: %w", provider, err)
		}
	}
	return nil
}

func registerCore(container *dig.Container, ctx context.Context, loadConfig func() (*config.Config, error)) error {
	return provideAll(container,
		func() context.Context { return ctx },
		loadConfig,
		NewLogger,
		func(cfg *config.Config) (config.Scoring, error) {
			return config.LoadScoring(cfg.TuningFile)
		},
	)
}

type infraIn struct {
	dig.In

	Ctx     context.Context
	Cfg     *config.Config
	Logger  logx.Logger
	Retries *prometheus.CounterVec `name:"retries_total"`
}

type producerIn struct {
	dig.In

	Ctx     context.Context
	Cfg     *config.Config
	Logger  logx.Logger
	Dropped prometheus.Counter     `name:"events_dropped_total"`
	Retries *prometheus.CounterVec `name:"retries_total"`
}

func registerInfra(container *dig.Container, dbConnect dbConnectFunc, redisConnect redisConnectFunc) error {
	return provideAll(container,
		func(in infraIn) (*pgxpool.Pool, error) {
			return dbConnect(in.Ctx, in.Logger, in.Cfg.DB.DSN(), startupPolicy(retryObserver(in.Retries, "db_connect")))
		},
		func(in infraIn) (*redis.Client, error) {
			return redisConnect(in.Ctx, in.Logger, in.Cfg.Redis, startupPolicy(retryObserver(in.Retries, "redis_connect")))
		},
		func(c *redis.Client) redis.UniversalClient { return c },
		repository.NewStore,
		func(in producerIn) (*kafka.Producer, error) {
			return kafka.NewProducer(in.Ctx, in.Logger, in.Cfg.Kafka.Brokers, in.Cfg.Kafka.EventsTopic,
				in.Dropped, startupPolicy(retryObserver(in.Retries, "kafka_connect")))
		},
		newEmitter,
	)
}

func newEmitter(logger logx.Logger, producer *kafka.Producer) events.Emitter {
	if producer == nil {
		return events.NewLogEmitter(logger)
	}
	return events.Multi{events.NewLogEmitter(logger), producer}
}

type engineIn struct {
	dig.In

	Locks    *lock.Manager
	Store    *repository.Store
	Capacity *cache.CapacityCache
	Nearby   *cache.NearbyCache
	Cfg      *config.Config
	Logger   logx.Logger
	Counter  *prometheus.CounterVec `name:"reservations_total"`
}

func newEngine(in engineIn) *reservation.Engine {
	return reservation.NewEngine(in.Locks, in.Store, in.Capacity, in.Nearby, reservation.Config{
		LockTTL:   in.Cfg.Dispatch.LockTTL,
		TxTimeout: in.Cfg.Dispatch.TxTimeout,
	}, in.Logger, in.Counter)
}

func newScorer(s config.Scoring) dispatch.Scorer {
	return dispatch.NewScorer(dispatch.Weights{
		DistanceCapMeters:   s.DistanceCapMeters,
		DistanceWeight:      s.DistanceWeight,
		LoadWeight:          s.LoadWeight,
		RatingWeight:        s.RatingWeight,
		MaxRating:           s.MaxRating,
		PriorityBonus:       s.PriorityBonus,
		ExperienceThreshold: s.ExperienceThreshold,
	})
}

type dispatchIn struct {
	dig.In

	Engine      *reservation.Engine
	Finder      *finder.Finder
	Store       *repository.Store
	Scorer      dispatch.Scorer
	Emitter     events.Emitter
	Cfg         *config.Config
	Logger      logx.Logger
	Assignments *prometheus.CounterVec `name:"assignments_total"`
	Retries     *prometheus.CounterVec `name:"retries_total"`
}

func newDispatchService(in dispatchIn) *dispatch.Service {
	d := in.Cfg.Dispatch
	return dispatch.NewService(in.Engine, in.Finder, in.Store, in.Store, in.Scorer, in.Emitter, dispatch.Config{
		SearchRadiusMeters: d.SearchRadiusMeters,
		CandidateLimit:     d.CandidateLimit,
		MaxAttempts:        d.MaxAttempts,
		WalkTimeout:        d.WalkTimeout,
		Release:            retry.Policy{OnRetry: retryObserver(in.Retries, "release")},
	}, in.Logger, in.Assignments)
}

func registerDispatch(container *dig.Container) error {
	return provideAll(container,
		lock.NewManager,
		func(c redis.UniversalClient, cfg *config.Config) *cache.CapacityCache {
			return cache.NewCapacityCache(c, cfg.Dispatch.CapacityTTL)
		},
		func(c redis.UniversalClient, cfg *config.Config) *cache.NearbyCache {
			return cache.NewNearbyCache(c, cfg.Dispatch.NearbyTTL)
		},
		newEngine,
		func(store *repository.Store, nearby *cache.NearbyCache, logger logx.Logger) *finder.Finder {
			return finder.New(store, nearby, logger)
		},
		newScorer,
		newDispatchService,
	)
}

type adminServerOut struct {
	dig.Out

	Server *http.Server `name:"admin_server"`
}

func newAdminServer(
	cfg *config.Config,
	gatherer prometheus.Gatherer,
	capacity *cache.CapacityCache,
	nearby *cache.NearbyCache,
) adminServerOut {
	if cfg.Admin.Port <= 0 {
		return adminServerOut{}
	}
	return adminServerOut{Server: &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Admin.Port),
		Handler: admin.Handler(admin.Config{
			User:        cfg.Admin.User,
			Pass:        cfg.Admin.Pass,
			FlushCaches: flushCaches(capacity, nearby),
		}, gatherer),
		ReadHeaderTimeout: 5 * time.Second,
	}}
}

// flushCaches drops every capacity and nearby entry. Both caches are
// advisory, so the next reads rebuild them from Postgres.
func flushCaches(capacity *cache.CapacityCache, nearby *cache.NearbyCache) func(context.Context) (int, error) {
	return func(ctx context.Context) (int, error) {
		views, err := capacity.InvalidatePattern(ctx, "*")
		if err != nil {
			return views, fmt.Errorf("flush capacity cache: %w", err)
		}
		searches, err := nearby.InvalidateAll(ctx)
		if err != nil {
			return views + searches, fmt.Errorf("flush nearby cache: %w", err)
		}
		return views + searches, nil
	}
}

func registerHTTP(container *dig.Container) error {
	serverProvider := func(cfg *config.Config, mux http.Handler) *http.Server {
		return &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
	}
	return provideAll(container,
		handlers.New,
		handlers.NewDispatchUsecase,
		handlers.NewDispatchHandler,
		handlers.NewNearbyUsecase,
		func(store *repository.Store, capacity *cache.CapacityCache, logger logx.Logger) *finder.CapacityReader {
			return finder.NewCapacityReader(store, capacity, logger)
		},
		handlers.NewCapacityUsecase,
		func(cfg *config.Config) handlers.NearbyDefaults {
			return handlers.NearbyDefaults{
				RadiusMeters: cfg.Dispatch.SearchRadiusMeters,
				Limit:        cfg.Dispatch.CandidateLimit,
				MaxLimit:     100,
			}
		},
		handlers.NewDriverHandler,
		newRateLimitClock,
		newRateLimiter,
		newRateLimitMiddleware,
		newDeliveryRateLimit,
		newRouter,
		serverProvider,
		newAdminServer,
	)
}

type processorIn struct {
	dig.In

	Dispatch *dispatch.Service
	Store    *repository.Store
	Logger   logx.Logger
	Counter  *prometheus.CounterVec `name:"status_events_total"`
}

func registerWorker(container *dig.Container) error {
	return provideAll(container,
		func(in processorIn) *statusevents.Processor {
			return statusevents.NewProcessor(in.Dispatch, in.Store, in.Logger, in.Counter)
		},
		func(cfg *config.Config, logger logx.Logger, p *statusevents.Processor) (*kafka.Consumer, error) {
			return kafka.NewConsumer(logger, cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.StatusTopic, p.Handle)
		},
		func(cfg *config.Config, store *repository.Store, svc *dispatch.Service, logger logx.Logger) *jobs.PendingAssignmentJob {
			return jobs.NewPendingAssignmentJob(store, svc, cfg.Dispatch.PendingSchedule, cfg.Dispatch.PendingBatch, logger)
		},
	)
}
