package market_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	market "bitfrost-api/pkg/market"
)

func TestLoadMarketConfig(t *testing.T) {
	dir := t.TempDir()
	configYAML := `
info_url: https://api.hyperliquid.xyz/info
proxy:
  base_url: https://bitfrost.example/api/
  provider: hyperliquid
dexes: [xyz, FLX, xyz]
default_dex: XYZ
crypto_symbols: [btc, eth]
timeout: 6s
http_timeout: 12s
max_retries: 4
live:
  throttle: 500ms
  poll_orderbook: 2s
`
	path := filepath.Join(dir, "market.yaml")
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := market.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Proxy.BaseURL != "https://bitfrost.example/api" {
		t.Fatalf("trailing slash not trimmed: %s", cfg.Proxy.BaseURL)
	}
	if strings.Join(cfg.Dexes, ",") != "xyz,flx" {
		t.Fatalf("unexpected dexes: %v", cfg.Dexes)
	}
	if cfg.DefaultDex != "xyz" {
		t.Fatalf("unexpected default dex: %s", cfg.DefaultDex)
	}
	if strings.Join(cfg.CryptoSymbols, ",") != "BTC,ETH" {
		t.Fatalf("crypto symbols not upper-cased: %v", cfg.CryptoSymbols)
	}
	if cfg.Timeout != 6*time.Second || cfg.HTTPTimeout != 12*time.Second {
		t.Fatalf("durations not parsed: timeout=%s http_timeout=%s", cfg.Timeout, cfg.HTTPTimeout)
	}
	if cfg.Live.Throttle != 500*time.Millisecond || cfg.Live.PollOrderBook != 2*time.Second {
		t.Fatalf("live durations not parsed: %+v", cfg.Live)
	}
	if cfg.Live.PollMetrics != 10*time.Second || cfg.Live.PollPrice != 10*time.Second {
		t.Fatalf("live defaults missing: %+v", cfg.Live)
	}
	if cfg.WSURL != market.DefaultWSURL {
		t.Fatalf("ws url default missing: %s", cfg.WSURL)
	}
}

func TestMarketConfigDefaultsDexes(t *testing.T) {
	cfg, err := market.LoadConfigFromReader(strings.NewReader("proxy:\n  base_url: http://localhost:8000\n"))
	if err != nil {
		t.Fatalf("LoadConfigFromReader error: %v", err)
	}
	if len(cfg.Dexes) != len(market.DefaultDexes) {
		t.Fatalf("expected default dexes, got %v", cfg.Dexes)
	}
	if cfg.DefaultDex != market.DefaultDex {
		t.Fatalf("expected default dex %s, got %s", market.DefaultDex, cfg.DefaultDex)
	}
	if cfg.RateLimitRPS <= 0 || cfg.RateLimitBurst <= 0 {
		t.Fatalf("rate limit defaults missing: rps=%v burst=%d", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
}

func TestMarketConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing proxy",
			yaml:    "dexes: [xyz]\n",
			wantErr: "proxy.base_url",
		},
		{
			name:    "non http proxy",
			yaml:    "proxy:\n  base_url: ftp://nope\n",
			wantErr: "http(s)",
		},
		{
			name:    "default dex not listed",
			yaml:    "proxy:\n  base_url: http://x\ndexes: [flx]\ndefault_dex: xyz\n",
			wantErr: "default_dex",
		},
		{
			name:    "bad duration",
			yaml:    "proxy:\n  base_url: http://x\ntimeout: soon\n",
			wantErr: "invalid timeout",
		},
		{
			name:    "negative duration",
			yaml:    "proxy:\n  base_url: http://x\nlive:\n  throttle: -1s\n",
			wantErr: "must be positive",
		},
		{
			name:    "reconnect window inverted",
			yaml:    "proxy:\n  base_url: http://x\nlive:\n  reconnect_base: 10s\n  reconnect_max: 1s\n",
			wantErr: "reconnect_max",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := market.LoadConfigFromReader(strings.NewReader(tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
