package config

import (
	"os"
	"testing"
	"time"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		old, had := os.LookupEnv(k)
		os.Unsetenv(k)
		t.Cleanup(func() {
			if had {
				os.Setenv(k, old)
			}
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t, "WS_ENDPOINT", "MAX_ORDERBOOK_DEPTH", "SERVER_PORT", "DEFAULT_QUANTITY_USD")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Simulation.MaxOrderbookDepth != 50 {
		t.Errorf("MaxOrderbookDepth = %d, want 50", cfg.Simulation.MaxOrderbookDepth)
	}
	if cfg.Simulation.MetricsTTL != 100*time.Millisecond {
		t.Errorf("MetricsTTL = %v, want 100ms", cfg.Simulation.MetricsTTL)
	}
	if cfg.Parameters.QuantityUSD != 100.0 {
		t.Errorf("QuantityUSD = %v, want 100", cfg.Parameters.QuantityUSD)
	}
	if cfg.Parameters.FeeTier != "VIP0" {
		t.Errorf("FeeTier = %q, want VIP0", cfg.Parameters.FeeTier)
	}
}

func TestLoad_Overrides(t *testing.T) {
	clearEnv(t, "SERVER_PORT", "MAX_ORDERBOOK_DEPTH", "DEFAULT_VOLATILITY", "WS_ENDPOINT")
	os.Setenv("SERVER_PORT", "9000")
	os.Setenv("MAX_ORDERBOOK_DEPTH", "25")
	os.Setenv("DEFAULT_VOLATILITY", "0.5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Simulation.MaxOrderbookDepth != 25 {
		t.Errorf("MaxOrderbookDepth = %d, want 25", cfg.Simulation.MaxOrderbookDepth)
	}
	if cfg.Parameters.Volatility != 0.5 {
		t.Errorf("Volatility = %v, want 0.5", cfg.Parameters.Volatility)
	}
}

func TestLoad_EmptyEndpointFallsBackToDefault(t *testing.T) {
	clearEnv(t, "WS_ENDPOINT")
	os.Setenv("WS_ENDPOINT", "")

	if _, err := Load(); err != nil {
		t.Fatalf("Load() with unset WS_ENDPOINT should fall back to default, got error: %v", err)
	}
}

func TestLoad_RejectsBadDepth(t *testing.T) {
	clearEnv(t, "MAX_ORDERBOOK_DEPTH")
	os.Setenv("MAX_ORDERBOOK_DEPTH", "0")

	if _, err := Load(); err == nil {
		t.Fatal("Load() with MAX_ORDERBOOK_DEPTH=0 should error")
	}
}
