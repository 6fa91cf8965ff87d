package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("Port default = %q, want 8080", cfg.Port)
	}
	if cfg.BlockCacheTTL != 30*time.Second {
		t.Errorf("BlockCacheTTL default = %v, want 30s", cfg.BlockCacheTTL)
	}
	if cfg.SlotGranularity != 30*time.Minute {
		t.Errorf("SlotGranularity default = %v, want 30m", cfg.SlotGranularity)
	}
	if cfg.RescheduleCutoff != time.Hour {
		t.Errorf("RescheduleCutoff default = %v, want 1h", cfg.RescheduleCutoff)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("SLOT_GRANULARITY", "15m")
	t.Setenv("REDIS_TLS", "true")

	cfg := Load()

	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want 9090", cfg.Port)
	}
	if cfg.SlotGranularity != 15*time.Minute {
		t.Errorf("SlotGranularity = %v, want 15m", cfg.SlotGranularity)
	}
	if !cfg.RedisTLS {
		t.Error("RedisTLS should be true")
	}
}

func TestMalformedDurationFallsBack(t *testing.T) {
	t.Setenv("BLOCK_CACHE_TTL", "not-a-duration")

	cfg := Load()
	if cfg.BlockCacheTTL != 30*time.Second {
		t.Errorf("BlockCacheTTL = %v, want default 30s", cfg.BlockCacheTTL)
	}
}
