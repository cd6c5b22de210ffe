package session

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Capacity lock modes accepted by Config.CapacityLock.
const (
	LockNone     = "none"
	LockMemory   = "memory"
	LockPostgres = "postgres"
	LockRedis    = "redis"
)

// Config defines all runtime configuration for the session subsystem.
//
// It is injected at construction; nothing here is mutated at runtime.
type Config struct {
	// SessionTTL is the lifetime of a refresh session from creation.
	SessionTTL time.Duration

	// MaxSessionsPerUser is the per-user capacity of usable sessions.
	MaxSessionsPerUser int

	// SweepInterval drives the expired-session sweep job.
	SweepInterval time.Duration

	// ReportInterval drives the statistics and anomaly report job.
	ReportInterval time.Duration

	// Deep cleanup purges revoked sessions unused for DeepCleanupAfter.
	DeepCleanupEnabled  bool
	DeepCleanupInterval time.Duration
	DeepCleanupAfter    time.Duration

	// CapacityLock selects the per-user serialization used while issuing.
	CapacityLock string

	// LockTTL bounds how long a distributed capacity lock may be held.
	LockTTL time.Duration
}

// DefaultConfig returns the production defaults: 7 day sessions, 5 per user,
// hourly sweep, 6-hourly report, weekly deep cleanup of 30 day old revocations.
func DefaultConfig() Config {
	return Config{
		SessionTTL:          7 * 24 * time.Hour,
		MaxSessionsPerUser:  5,
		SweepInterval:       time.Hour,
		ReportInterval:      6 * time.Hour,
		DeepCleanupEnabled:  true,
		DeepCleanupInterval: 7 * 24 * time.Hour,
		DeepCleanupAfter:    30 * 24 * time.Hour,
		CapacityLock:        LockNone,
		LockTTL:             10 * time.Second,
	}
}

// LoadConfigFromEnv loads session configuration from an optional .env file and
// the environment.
//
// Optional:
//   - BAKERY_SESSION_TTL_MINUTES
//   - BAKERY_SESSION_MAX_PER_USER
//   - BAKERY_SESSION_SWEEP_INTERVAL
//   - BAKERY_SESSION_REPORT_INTERVAL
//   - BAKERY_SESSION_DEEP_CLEANUP_ENABLED
//   - BAKERY_SESSION_DEEP_CLEANUP_INTERVAL
//   - BAKERY_SESSION_DEEP_CLEANUP_DAYS
//   - BAKERY_SESSION_CAPACITY_LOCK (none, memory, postgres, redis)
//   - BAKERY_SESSION_LOCK_TTL
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	def := DefaultConfig()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // a missing .env is fine
	v.AutomaticEnv()

	v.SetDefault("BAKERY_SESSION_TTL_MINUTES", int(def.SessionTTL/time.Minute))
	v.SetDefault("BAKERY_SESSION_MAX_PER_USER", def.MaxSessionsPerUser)
	v.SetDefault("BAKERY_SESSION_SWEEP_INTERVAL", def.SweepInterval.String())
	v.SetDefault("BAKERY_SESSION_REPORT_INTERVAL", def.ReportInterval.String())
	v.SetDefault("BAKERY_SESSION_DEEP_CLEANUP_ENABLED", def.DeepCleanupEnabled)
	v.SetDefault("BAKERY_SESSION_DEEP_CLEANUP_INTERVAL", def.DeepCleanupInterval.String())
	v.SetDefault("BAKERY_SESSION_DEEP_CLEANUP_DAYS", int(def.DeepCleanupAfter/(24*time.Hour)))
	v.SetDefault("BAKERY_SESSION_CAPACITY_LOCK", def.CapacityLock)
	v.SetDefault("BAKERY_SESSION_LOCK_TTL", def.LockTTL.String())

	cfg := def

	ttlMinutes, err := positiveInt(v, "BAKERY_SESSION_TTL_MINUTES")
	if err != nil {
		return Config{}, err
	}
	cfg.SessionTTL = time.Duration(ttlMinutes) * time.Minute

	if cfg.MaxSessionsPerUser, err = positiveInt(v, "BAKERY_SESSION_MAX_PER_USER"); err != nil {
		return Config{}, err
	}
	if cfg.SweepInterval, err = positiveDuration(v, "BAKERY_SESSION_SWEEP_INTERVAL"); err != nil {
		return Config{}, err
	}
	if cfg.ReportInterval, err = positiveDuration(v, "BAKERY_SESSION_REPORT_INTERVAL"); err != nil {
		return Config{}, err
	}
	if cfg.DeepCleanupInterval, err = positiveDuration(v, "BAKERY_SESSION_DEEP_CLEANUP_INTERVAL"); err != nil {
		return Config{}, err
	}
	days, err := positiveInt(v, "BAKERY_SESSION_DEEP_CLEANUP_DAYS")
	if err != nil {
		return Config{}, err
	}
	cfg.DeepCleanupAfter = time.Duration(days) * 24 * time.Hour
	if cfg.LockTTL, err = positiveDuration(v, "BAKERY_SESSION_LOCK_TTL"); err != nil {
		return Config{}, err
	}

	enabled := strings.TrimSpace(v.GetString("BAKERY_SESSION_DEEP_CLEANUP_ENABLED"))
	switch strings.ToLower(enabled) {
	case "1", "t", "true", "yes", "on":
		cfg.DeepCleanupEnabled = true
	case "0", "f", "false", "no", "off":
		cfg.DeepCleanupEnabled = false
	default:
		return Config{}, ErrConfig
	}

	cfg.CapacityLock = strings.ToLower(strings.TrimSpace(v.GetString("BAKERY_SESSION_CAPACITY_LOCK")))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks the invariants the components rely on.
func (c Config) Validate() error {
	if c.SessionTTL <= 0 || c.MaxSessionsPerUser <= 0 {
		return ErrConfig
	}
	switch c.CapacityLock {
	case LockNone, LockMemory, LockPostgres, LockRedis:
	default:
		return ErrConfig
	}
	return nil
}

func positiveInt(v *viper.Viper, key string) (int, error) {
	raw := strings.TrimSpace(v.GetString(key))
	n := v.GetInt(key)
	// viper's cast returns 0 for garbage, which is rejected with the negatives.
	if raw == "" || n <= 0 {
		return 0, ErrConfig
	}
	return n, nil
}

func positiveDuration(v *viper.Viper, key string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(v.GetString(key)))
	if err != nil || d <= 0 {
		return 0, ErrConfig
	}
	return d, nil
}
