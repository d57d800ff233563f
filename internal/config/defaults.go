package config

import "time"

const defaultPort = 8080

var defaultDB = DB{
	Host:    "127.0.0.1",
	Port:    "5432",
	User:    "myuser",
	Pass:    "mypassword",
	Name:    "dispatch_db",
	SSLMode: "disable",
}

var defaultRedis = Redis{
	Addr: "127.0.0.1:6379",
}

var defaultKafka = Kafka{
	EventsTopic: "dispatch.events",
	StatusTopic: "delivery.status",
	GroupID:     "service-dispatcher",
}

var defaultDispatch = Dispatch{
	LockTTL:            5 * time.Second,
	TxTimeout:          3 * time.Second,
	SearchRadiusMeters: 5000,
	CandidateLimit:     5,
	MaxAttempts:        5,
	WalkTimeout:        2 * time.Second,
	CapacityTTL:        60 * time.Second,
	NearbyTTL:          30 * time.Second,
	PendingSchedule:    "@every 10s",
	PendingBatch:       50,
}

var defaultRateLimit = RateLimit{
	Enabled:    true,
	Rate:       20,
	Burst:      40,
	TTL:        time.Minute,
	MaxBuckets: 10000,

	DeliveryRate:  1,
	DeliveryBurst: 5,
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Port:      defaultPort,
		Admin:     Admin{Port: 6060},
		DB:        defaultDB,
		Redis:     defaultRedis,
		Kafka:     defaultKafka,
		Dispatch:  defaultDispatch,
		RateLimit: defaultRateLimit,
		Log:       Log{Backend: "slog", Level: "info"},
	}
}

// DefaultDispatch returns the default dispatcher settings.
func DefaultDispatch() Dispatch {
	return defaultDispatch
}
