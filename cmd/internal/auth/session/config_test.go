package session

import (
	"testing"
	"time"
)

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg != DefaultConfig() {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
	if cfg.SessionTTL != 10080*time.Minute {
		t.Fatalf("ttl mismatch: %v", cfg.SessionTTL)
	}
}

func TestLoadConfigFromEnv_Valid(t *testing.T) {
	t.Setenv("BAKERY_SESSION_TTL_MINUTES", "60")
	t.Setenv("BAKERY_SESSION_MAX_PER_USER", "2")
	t.Setenv("BAKERY_SESSION_SWEEP_INTERVAL", "15m")
	t.Setenv("BAKERY_SESSION_REPORT_INTERVAL", "1h")
	t.Setenv("BAKERY_SESSION_DEEP_CLEANUP_ENABLED", "false")
	t.Setenv("BAKERY_SESSION_DEEP_CLEANUP_INTERVAL", "24h")
	t.Setenv("BAKERY_SESSION_DEEP_CLEANUP_DAYS", "14")
	t.Setenv("BAKERY_SESSION_CAPACITY_LOCK", "Redis")
	t.Setenv("BAKERY_SESSION_LOCK_TTL", "3s")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.SessionTTL != time.Hour {
		t.Fatalf("ttl mismatch: %v", cfg.SessionTTL)
	}
	if cfg.MaxSessionsPerUser != 2 {
		t.Fatalf("capacity mismatch: %d", cfg.MaxSessionsPerUser)
	}
	if cfg.SweepInterval != 15*time.Minute || cfg.ReportInterval != time.Hour {
		t.Fatalf("interval mismatch: %v %v", cfg.SweepInterval, cfg.ReportInterval)
	}
	if cfg.DeepCleanupEnabled {
		t.Fatalf("expected deep cleanup disabled")
	}
	if cfg.DeepCleanupInterval != 24*time.Hour || cfg.DeepCleanupAfter != 14*24*time.Hour {
		t.Fatalf("deep cleanup mismatch: %v %v", cfg.DeepCleanupInterval, cfg.DeepCleanupAfter)
	}
	if cfg.CapacityLock != LockRedis {
		t.Fatalf("lock mismatch: %q", cfg.CapacityLock)
	}
	if cfg.LockTTL != 3*time.Second {
		t.Fatalf("lock ttl mismatch: %v", cfg.LockTTL)
	}
}

func TestLoadConfigFromEnv_Invalid(t *testing.T) {
	cases := []struct {
		key string
		val string
	}{
		{"BAKERY_SESSION_TTL_MINUTES", "0"},
		{"BAKERY_SESSION_TTL_MINUTES", "-5"},
		{"BAKERY_SESSION_TTL_MINUTES", "week"},
		{"BAKERY_SESSION_MAX_PER_USER", "0"},
		{"BAKERY_SESSION_SWEEP_INTERVAL", "hourly"},
		{"BAKERY_SESSION_REPORT_INTERVAL", "-1h"},
		{"BAKERY_SESSION_DEEP_CLEANUP_DAYS", "0"},
		{"BAKERY_SESSION_DEEP_CLEANUP_ENABLED", "maybe"},
		{"BAKERY_SESSION_CAPACITY_LOCK", "zookeeper"},
		{"BAKERY_SESSION_LOCK_TTL", "0s"},
	}

	for _, tc := range cases {
		t.Run(tc.key+"="+tc.val, func(t *testing.T) {
			t.Setenv(tc.key, tc.val)
			if _, err := LoadConfigFromEnv(); err != ErrConfig {
				t.Fatalf("expected ErrConfig, got %v", err)
			}
		})
	}
}
