package app

import (
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := LoadConfig()

	if cfg.HTTPAddr != "0.0.0.0:8080" || cfg.LogLevel != "info" || cfg.LogFormat != "json" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.DatabaseURL != "" || cfg.RedisURL != "" {
		t.Fatalf("backends should be off by default: %+v", cfg)
	}
	if cfg.DBMaxConns != 10 || cfg.ShutdownTimeout != 10*time.Second {
		t.Fatalf("unexpected pool/shutdown defaults: %+v", cfg)
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("BAKERY_HTTP_ADDR", "127.0.0.1:9090")
	t.Setenv("BAKERY_LOG_FORMAT", "text")
	t.Setenv("BAKERY_HTTP_READ_TIMEOUT", "3s")
	t.Setenv("BAKERY_DB_MAX_CONNS", "25")
	t.Setenv("BAKERY_READINESS_REQUIRE_DB", "true")
	t.Setenv("BAKERY_REDIS_URL", "redis://localhost:6379/0")

	cfg := LoadConfig()

	if cfg.HTTPAddr != "127.0.0.1:9090" || cfg.LogFormat != "text" {
		t.Fatalf("string overrides not applied: %+v", cfg)
	}
	if cfg.ReadTimeout != 3*time.Second || cfg.DBMaxConns != 25 {
		t.Fatalf("numeric overrides not applied: %+v", cfg)
	}
	if !cfg.ReadinessRequireDB || cfg.RedisURL != "redis://localhost:6379/0" {
		t.Fatalf("readiness/redis overrides not applied: %+v", cfg)
	}
}

func TestLoadConfig_InvalidFallsBack(t *testing.T) {
	t.Setenv("BAKERY_HTTP_READ_TIMEOUT", "soon")
	t.Setenv("BAKERY_HTTP_MAX_HEADER_BYTES", "-1")
	t.Setenv("BAKERY_DB_MIN_CONNS", "-3")
	t.Setenv("BAKERY_READINESS_REQUIRE_DB", "perhaps")

	cfg := LoadConfig()

	if cfg.ReadTimeout != 15*time.Second || cfg.MaxHeaderBytes != 1<<20 {
		t.Fatalf("expected fallbacks, got %+v", cfg)
	}
	if cfg.DBMinConns != 0 || cfg.ReadinessRequireDB {
		t.Fatalf("expected fallbacks, got %+v", cfg)
	}
}
