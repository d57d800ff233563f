package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/dig"

	"service-dispatcher/internal/logx"
	"service-dispatcher/internal/transport/kafka"
)

const shutdownTimeout = 15 * time.Second

// Runner runs the dispatch API
type Runner struct {
	runFn     func(*dig.Container) error
	logFatalf func(string, ...interface{})
}

// NewRunner returns a new Runner
func NewRunner() *Runner {
	return &Runner{runFn: run, logFatalf: log.Fatalf}
}

// MustRun starts the HTTP servers using the provided DI container and blocks until shutdown
func (r *Runner) MustRun(container *dig.Container) {
	err := r.runFn(container)
	if err == nil {
		return
	}
	logger := containerLogger(container)
	switch {
	case errors.Is(err, context.Canceled):
		logger.Info("shutdown requested, exiting")
	case errors.Is(err, context.DeadlineExceeded):
		logger.Warn("startup aborted: startup timeout exceeded")
	default:
		logFatalf := r.logFatalf
		if logFatalf == nil {
			logFatalf = log.Fatalf
		}
		logFatalf("run error: %v", err)
	}
}

func containerLogger(container *dig.Container) logx.Logger {
	logger := logx.Nop()
	_ = container.Invoke(func(l logx.Logger) { logger = l })
	return logger
}

type apiIn struct {
	dig.In

	Ctx      context.Context
	Logger   logx.Logger
	Server   *http.Server
	Admin    *http.Server `name:"admin_server" optional:"true"`
	Pool     *pgxpool.Pool
	Redis    *redis.Client
	Producer *kafka.Producer
}

func run(container *dig.Container) error {
	return container.Invoke(apiRun)
}

func apiRun(in apiIn) error {
	servers := []*http.Server{in.Server}
	if in.Admin != nil {
		servers = append(servers, in.Admin)
	}

	errCh := make(chan error, len(servers))
	for _, srv := range servers {
		startServer(srv, in.Logger, errCh)
	}

	var runErr error
	select {
	case <-in.Ctx.Done():
		in.Logger.Info("shutting down service-dispatcher")
		runErr = in.Ctx.Err()
	case err := <-errCh:
		in.Logger.Error("server failed, shutting down", logx.Err(err))
		runErr = err
	}

	for _, srv := range servers {
		gracefulShutdown(srv, in.Logger, shutdownTimeout)
	}
	closeResources(in.Logger, in.Pool, in.Redis, in.Producer)
	return runErr
}

func startServer(server *http.Server, logger logx.Logger, errCh chan<- error) {
	go func() {
		logger.Info("listening", logx.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("listen %s: %w", server.Addr, err)
		}
	}()
}

func gracefulShutdown(srv *http.Server, logger logx.Logger, timeout time.Duration) {
	shCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shCtx); err != nil {
		logger.Warn("graceful shutdown error", logx.String("addr", srv.Addr), logx.Err(err))
	}
}

// closeResources releases shared infrastructure. Any argument may be nil.
func closeResources(logger logx.Logger, pool *pgxpool.Pool, rdb *redis.Client, producer *kafka.Producer) {
	if producer != nil {
		if err := producer.Close(); err != nil {
			logger.Warn("kafka producer close error", logx.Err(err))
		}
	}
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			logger.Warn("redis close error", logx.Err(err))
		}
	}
	if pool != nil {
		pool.Close()
	}
	_ = logger.Sync()
}
