package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// Config stores service settings.
type Config struct {
	Port       int
	Admin      Admin
	DB         DB
	Redis      Redis
	Kafka      Kafka
	Dispatch   Dispatch
	RateLimit  RateLimit
	Log        Log
	TuningFile string
}

// Admin configures the pprof/metrics server.
type Admin struct {
	Port int
	User string
	Pass string
}

// DB stores Postgres connection settings.
type DB struct {
	Host    string
	Port    string
	User    string
	Pass    string
	Name    string
	SSLMode string
}

// DSN builds a postgres:// connection string.
func (d DB) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Pass),
		Host:   d.Host + ":" + d.Port,
		Path:   "/" + d.Name,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Redis stores the fast shared store settings.
type Redis struct {
	Addr     string
	Password string
	DB       int
}

// Kafka stores broker and topic settings. Empty Brokers disables Kafka.
type Kafka struct {
	Brokers     []string
	EventsTopic string
	StatusTopic string
	GroupID     string
}

// Dispatch stores the timing and search parameters of the dispatcher.
type Dispatch struct {
	LockTTL            time.Duration
	TxTimeout          time.Duration
	SearchRadiusMeters float64
	CandidateLimit     int
	MaxAttempts        int
	WalkTimeout        time.Duration
	CapacityTTL        time.Duration
	NearbyTTL          time.Duration
	PendingSchedule    string
	PendingBatch       int
}

// RateLimit stores the HTTP rate limiter settings.
type RateLimit struct {
	Enabled    bool
	Rate       float64
	Burst      int
	TTL        time.Duration
	MaxBuckets int
	// DeliveryRate and DeliveryBurst throttle commands aimed at one delivery
	// regardless of caller. A zero burst turns that throttle off.
	DeliveryRate  float64
	DeliveryBurst int
}

// Log stores logger settings.
type Log struct {
	Backend string
	Level   string
}

// Load reads configuration in order: .env (if present) → environment → flags.
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("warning: .env not loaded: %v", err)
	}

	cfg := Default()
	var err error
	p := envParser{}

	cfg.Port = p.int("PORT", cfg.Port)
	cfg.Admin.Port = p.int("ADMIN_PORT", cfg.Admin.Port)
	cfg.Admin.User = p.str("ADMIN_USER", cfg.Admin.User)
	cfg.Admin.Pass = p.str("ADMIN_PASSWORD", cfg.Admin.Pass)

	cfg.DB.Host = p.str("POSTGRES_HOST", cfg.DB.Host)
	cfg.DB.Port = p.str("POSTGRES_PORT", cfg.DB.Port)
	cfg.DB.User = p.str("POSTGRES_USER", cfg.DB.User)
	cfg.DB.Pass = p.str("POSTGRES_PASSWORD", cfg.DB.Pass)
	cfg.DB.Name = p.str("POSTGRES_DB", cfg.DB.Name)
	cfg.DB.SSLMode = p.str("POSTGRES_SSLMODE", cfg.DB.SSLMode)
	if _, perr := strconv.Atoi(cfg.DB.Port); perr != nil {
		p.fail("POSTGRES_PORT", perr)
	}

	cfg.Redis.Addr = p.str("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = p.str("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = p.int("REDIS_DB", cfg.Redis.DB)

	cfg.Kafka.Brokers = p.list("KAFKA_BROKERS", cfg.Kafka.Brokers)
	cfg.Kafka.EventsTopic = p.str("KAFKA_EVENTS_TOPIC", cfg.Kafka.EventsTopic)
	cfg.Kafka.StatusTopic = p.str("KAFKA_STATUS_TOPIC", cfg.Kafka.StatusTopic)
	cfg.Kafka.GroupID = p.str("KAFKA_GROUP_ID", cfg.Kafka.GroupID)

	d := &cfg.Dispatch
	d.LockTTL = p.duration("DISPATCH_LOCK_TTL", d.LockTTL)
	d.TxTimeout = p.duration("DISPATCH_TX_TIMEOUT", d.TxTimeout)
	d.SearchRadiusMeters = p.float("DISPATCH_SEARCH_RADIUS_METERS", d.SearchRadiusMeters)
	d.CandidateLimit = p.int("DISPATCH_CANDIDATE_LIMIT", d.CandidateLimit)
	d.MaxAttempts = p.int("DISPATCH_MAX_ATTEMPTS", d.MaxAttempts)
	d.WalkTimeout = p.duration("DISPATCH_WALK_TIMEOUT", d.WalkTimeout)
	d.CapacityTTL = p.duration("DISPATCH_CAPACITY_TTL", d.CapacityTTL)
	d.NearbyTTL = p.duration("DISPATCH_NEARBY_TTL", d.NearbyTTL)
	d.PendingSchedule = p.str("DISPATCH_PENDING_SCHEDULE", d.PendingSchedule)
	d.PendingBatch = p.int("DISPATCH_PENDING_BATCH", d.PendingBatch)

	cfg.RateLimit.Enabled = p.bool("RATE_LIMIT_ENABLED", cfg.RateLimit.Enabled)
	cfg.RateLimit.Rate = p.float("RATE_LIMIT_RATE", cfg.RateLimit.Rate)
	cfg.RateLimit.Burst = p.int("RATE_LIMIT_BURST", cfg.RateLimit.Burst)
	cfg.RateLimit.TTL = p.duration("RATE_LIMIT_TTL", cfg.RateLimit.TTL)
	cfg.RateLimit.MaxBuckets = p.int("RATE_LIMIT_MAX_BUCKETS", cfg.RateLimit.MaxBuckets)
	cfg.RateLimit.DeliveryRate = p.float("RATE_LIMIT_DELIVERY_RATE", cfg.RateLimit.DeliveryRate)
	cfg.RateLimit.DeliveryBurst = p.int("RATE_LIMIT_DELIVERY_BURST", cfg.RateLimit.DeliveryBurst)

	cfg.Log.Backend = p.str("LOG_BACKEND", cfg.Log.Backend)
	cfg.Log.Level = p.str("LOG_LEVEL", cfg.Log.Level)
	cfg.TuningFile = p.str("DISPATCH_TUNING_FILE", cfg.TuningFile)

	if p.err != nil {
		return nil, p.err
	}

	fs := pflag.CommandLine
	fs.IntVarP(&cfg.Port, "port", "p", cfg.Port, "port to listen on")
	fs.IntVar(&cfg.Admin.Port, "admin-port", cfg.Admin.Port, "pprof/metrics port")
	fs.StringVar(&cfg.TuningFile, "tuning", cfg.TuningFile, "path to the scoring tuning YAML file")
	if err = fs.Parse(os.Args[1:]); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.Admin.Port < 0 || c.Admin.Port > 65535 {
		return fmt.Errorf("invalid admin port: %d", c.Admin.Port)
	}
	d := c.Dispatch
	if d.LockTTL <= 0 {
		return fmt.Errorf("lock ttl must be positive, got %s", d.LockTTL)
	}
	if d.TxTimeout <= 0 || d.TxTimeout >= d.LockTTL {
		return fmt.Errorf("tx timeout %s must be positive and shorter than lock ttl %s", d.TxTimeout, d.LockTTL)
	}
	if d.CandidateLimit <= 0 || d.MaxAttempts <= 0 {
		return fmt.Errorf("candidate limit and max attempts must be positive")
	}
	if d.SearchRadiusMeters <= 0 {
		return fmt.Errorf("search radius must be positive, got %v", d.SearchRadiusMeters)
	}
	return nil
}

type envParser struct{ err error }

func (p *envParser) fail(key string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("env %s: %w", key, err)
	}
}

func (p *envParser) str(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func (p *envParser) int(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, err)
		return def
	}
	return n
}

func (p *envParser) float(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		p.fail(key, err)
		return def
	}
	return f
}

func (p *envParser) bool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, err)
		return def
	}
	return b
}

func (p *envParser) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		p.fail(key, err)
		return def
	}
	return d
}

func (p *envParser) list(key string, def []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}
