package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// Test_hydrateSections_withEnv verifies env expansion and market section
// hydration without going through go-zero conf.Load.
func Test_hydrateSections_withEnv(t *testing.T) {
	dir := t.TempDir()

	marketYAML := []byte(`
proxy:
  base_url: ${BITFROST_PROXY}
  provider: hyperliquid
dexes: [xyz, flx]
default_dex: xyz
timeout: ${BITFROST_TIMEOUT}
live:
  throttle: 500ms
`)
	if err := os.WriteFile(filepath.Join(dir, "market.yaml"), marketYAML, 0o600); err != nil {
		t.Fatalf("write market.yaml: %v", err)
	}
	t.Setenv("BITFROST_PROXY", "https://proxy.example.com")
	t.Setenv("BITFROST_TIMEOUT", "7s")

	cfg := &Config{
		TTL:     CacheTTL{Aggregate: 30, Metrics: 90, FundingRetention: 24},
		baseDir: dir,
	}
	cfg.Market.File = "market.yaml"
	if err := cfg.hydrateSections(); err != nil {
		t.Fatalf("hydrateSections: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	mkt := cfg.MarketConfig()
	if got := mkt.Proxy.BaseURL; got != "https://proxy.example.com" {
		t.Fatalf("proxy base url not expanded, got %q", got)
	}
	if mkt.Timeout != 7*time.Second {
		t.Fatalf("timeout not parsed, got %s", mkt.Timeout)
	}
	if mkt.Live.Throttle != 500*time.Millisecond {
		t.Fatalf("throttle not parsed, got %s", mkt.Live.Throttle)
	}
	if cfg.Env != "test" {
		t.Fatalf("env should default to test, got %q", cfg.Env)
	}
}

func TestLoad_MainConfig(t *testing.T) {
	dir := t.TempDir()
	marketYAML := []byte("proxy:\n  base_url: https://proxy.example.com\n")
	if err := os.WriteFile(filepath.Join(dir, "market.yaml"), marketYAML, 0o600); err != nil {
		t.Fatalf("write market.yaml: %v", err)
	}
	mainYAML := []byte(`
Name: bitfrost-api
Host: 127.0.0.1
Port: 8888
Env: dev
TTL:
  Aggregate: 15
Ingest:
  WatchList: ["xyz:GOLD", "BTC"]
Market:
  File: market.yaml
`)
	mainPath := filepath.Join(dir, "bitfrost.yaml")
	if err := os.WriteFile(mainPath, mainYAML, 0o600); err != nil {
		t.Fatalf("write bitfrost.yaml: %v", err)
	}

	cfg, err := Load(mainPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TTL.Aggregate != 15 || cfg.TTL.Metrics != 90 || cfg.TTL.FundingRetention != 168 {
		t.Fatalf("unexpected ttl %+v", cfg.TTL)
	}
	if cfg.Ingest.Interval != 60 || len(cfg.Ingest.WatchList) != 2 {
		t.Fatalf("unexpected ingest %+v", cfg.Ingest)
	}
	if cfg.Market.Value == nil || cfg.Market.File != filepath.Join(dir, "market.yaml") {
		t.Fatalf("market section not hydrated: %+v", cfg.Market)
	}
	if cfg.BaseDir() != dir || cfg.MainPath() != mainPath {
		t.Fatalf("paths not recorded: base=%s main=%s", cfg.BaseDir(), cfg.MainPath())
	}
	if cfg.IsTestEnv() {
		t.Fatalf("dev env reported as test")
	}
}

func TestValidate_TTLBounds(t *testing.T) {
	cfg := &Config{}
	cfg.TTL.Aggregate = 0
	cfg.TTL.Metrics = 90
	cfg.TTL.FundingRetention = 24
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected ttl.aggregate validation error")
	}
}

func TestValidate_Env(t *testing.T) {
	cfg := &Config{Env: "staging", TTL: CacheTTL{Aggregate: 1, Metrics: 1, FundingRetention: 1}}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected env validation error")
	}
}

func TestMarketConfig_Default(t *testing.T) {
	cfg := &Config{}
	if got := cfg.MarketConfig(); got == nil || got.DefaultDex != "xyz" {
		t.Fatalf("expected default market config, got %+v", got)
	}
}
