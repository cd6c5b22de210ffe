package app

import "time"

// Config contains the process-level configuration: HTTP, logging and backends.
// Session behavior is configured separately by session.LoadConfigFromEnv.
type Config struct {
	HTTPAddr  string
	LogLevel  string
	LogFormat string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	ShutdownTimeout   time.Duration

	// Empty DatabaseURL selects the in-memory session store.
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// MigrateOnStart applies the embedded migrations before serving.
	MigrateOnStart bool

	// Only needed by the redis capacity lock.
	RedisURL string

	// If true, /readyz returns 503 unless Postgres is configured and reachable.
	ReadinessRequireDB bool
}

// LoadConfig loads Config from .env and environment variables with defaults.
// Invalid values fall back to their default.
func LoadConfig() Config {
	v := newEnv()

	return Config{
		HTTPAddr:  envString(v, "BAKERY_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel:  envString(v, "BAKERY_LOG_LEVEL", "info"),
		LogFormat: envString(v, "BAKERY_LOG_FORMAT", "json"),

		ReadHeaderTimeout: envDuration(v, "BAKERY_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       envDuration(v, "BAKERY_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      envDuration(v, "BAKERY_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       envDuration(v, "BAKERY_HTTP_IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    envInt(v, "BAKERY_HTTP_MAX_HEADER_BYTES", 1<<20),
		ShutdownTimeout:   envDuration(v, "BAKERY_SHUTDOWN_TIMEOUT", 10*time.Second),

		DatabaseURL:    envString(v, "BAKERY_DATABASE_URL", ""),
		DBMaxConns:     envInt32(v, "BAKERY_DB_MAX_CONNS", 10),
		DBMinConns:     envInt32(v, "BAKERY_DB_MIN_CONNS", 0),
		MigrateOnStart: envBool(v, "BAKERY_MIGRATE_ON_START", false),

		RedisURL: envString(v, "BAKERY_REDIS_URL", ""),

		ReadinessRequireDB: envBool(v, "BAKERY_READINESS_REQUIRE_DB", false),
	}
}
