package market

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"bitfrost-api/pkg/confkit"
)

const (
	DefaultInfoURL = "https://api.hyperliquid.xyz/info"
	DefaultWSURL   = "wss://api.hyperliquid.xyz/ws"
)

// Default HIP-3 DEX codes and fallback DEX for unprefixed RWA symbols.
var (
	DefaultDexes       = []string{"xyz", "flx", "vntl", "hyna", "km", "cash"}
	DefaultDex         = "xyz"
	defaultTimeout     = 8 * time.Second
	defaultHTTPTimeout = 10 * time.Second
)

// Config describes the upstreams and tuning of the market-data core.
type Config struct {
	InfoURL       string      `yaml:"info_url"`
	WSURL         string      `yaml:"ws_url"`
	Proxy         ProxyConfig `yaml:"proxy"`
	Dexes         []string    `yaml:"dexes"`
	DefaultDex    string      `yaml:"default_dex"`
	CryptoSymbols []string    `yaml:"crypto_symbols"`

	TimeoutRaw        string        `yaml:"timeout"`
	Timeout           time.Duration `yaml:"-"`
	HTTPTimeoutRaw    string        `yaml:"http_timeout"`
	HTTPTimeout       time.Duration `yaml:"-"`
	MaxRetries        int           `yaml:"max_retries"`
	RateLimitRPS      float64       `yaml:"rate_limit_rps"`
	RateLimitBurst    int           `yaml:"rate_limit_burst"`
	BreakerTimeoutRaw string        `yaml:"breaker_timeout"`
	BreakerTimeout    time.Duration `yaml:"-"`

	Live LiveConfig `yaml:"live"`
}

// ProxyConfig locates the serverless proxy that fronts the HIP-3 REST endpoints.
type ProxyConfig struct {
	BaseURL  string `yaml:"base_url"`
	Provider string `yaml:"provider"`
}

// LiveConfig tunes the live update channel.
type LiveConfig struct {
	ThrottleRaw      string        `yaml:"throttle"`
	Throttle         time.Duration `yaml:"-"`
	PollMetricsRaw   string        `yaml:"poll_metrics"`
	PollMetrics      time.Duration `yaml:"-"`
	PollOrderBookRaw string        `yaml:"poll_orderbook"`
	PollOrderBook    time.Duration `yaml:"-"`
	PollPriceRaw     string        `yaml:"poll_price"`
	PollPrice        time.Duration `yaml:"-"`
	ReconnectBaseRaw string        `yaml:"reconnect_base"`
	ReconnectBase    time.Duration `yaml:"-"`
	ReconnectMaxRaw  string        `yaml:"reconnect_max"`
	ReconnectMax     time.Duration `yaml:"-"`
}

// LoadConfig reads configuration from disk.
func LoadConfig(path string) (*Config, error) {
	confkit.LoadDotenvOnce()
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open market config: %w", err)
	}
	defer file.Close()
	return LoadConfigFromReader(file)
}

// MustLoad reads market configuration from the default project location and panics on error.
func MustLoad() *Config {
	path := confkit.MustEtcPath("market.yaml")
	cfg, err := LoadConfig(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadConfigFromReader constructs a Config from an io.Reader.
func LoadConfigFromReader(r io.Reader) (*Config, error) {
	confkit.LoadDotenvOnce()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read market config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal market config: %w", err)
	}
	if err := cfg.normalise(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultConfig returns a normalised config pointing at the public Hyperliquid endpoints.
// The proxy base URL still has to be filled in by the caller.
func DefaultConfig() *Config {
	cfg := &Config{}
	_ = cfg.normalise()
	return cfg
}

func (c *Config) normalise() error {
	c.expandEnv()
	if c.InfoURL == "" {
		c.InfoURL = DefaultInfoURL
	}
	if c.WSURL == "" {
		c.WSURL = DefaultWSURL
	}
	if c.Proxy.Provider == "" {
		c.Proxy.Provider = "hyperliquid"
	}
	c.Proxy.BaseURL = strings.TrimRight(c.Proxy.BaseURL, "/")

	dexes := make([]string, 0, len(c.Dexes))
	seen := make(map[string]struct{}, len(c.Dexes))
	for _, dex := range c.Dexes {
		dex = strings.ToLower(strings.TrimSpace(dex))
		if dex == "" {
			continue
		}
		if _, ok := seen[dex]; ok {
			continue
		}
		seen[dex] = struct{}{}
		dexes = append(dexes, dex)
	}
	if len(dexes) == 0 {
		dexes = append(dexes, DefaultDexes...)
	}
	c.Dexes = dexes
	c.DefaultDex = strings.ToLower(c.DefaultDex)
	if c.DefaultDex == "" {
		c.DefaultDex = DefaultDex
	}
	for i, sym := range c.CryptoSymbols {
		c.CryptoSymbols[i] = strings.ToUpper(strings.TrimSpace(sym))
	}
	if c.RateLimitRPS <= 0 {
		c.RateLimitRPS = 10
	}
	if c.RateLimitBurst <= 0 {
		c.RateLimitBurst = 5
	}

	durations := []struct {
		field    string
		raw      string
		dst      *time.Duration
		fallback time.Duration
	}{
		{"timeout", c.TimeoutRaw, &c.Timeout, defaultTimeout},
		{"http_timeout", c.HTTPTimeoutRaw, &c.HTTPTimeout, defaultHTTPTimeout},
		{"breaker_timeout", c.BreakerTimeoutRaw, &c.BreakerTimeout, 30 * time.Second},
		{"live.throttle", c.Live.ThrottleRaw, &c.Live.Throttle, time.Second},
		{"live.poll_metrics", c.Live.PollMetricsRaw, &c.Live.PollMetrics, 10 * time.Second},
		{"live.poll_orderbook", c.Live.PollOrderBookRaw, &c.Live.PollOrderBook, time.Second},
		{"live.poll_price", c.Live.PollPriceRaw, &c.Live.PollPrice, 10 * time.Second},
		{"live.reconnect_base", c.Live.ReconnectBaseRaw, &c.Live.ReconnectBase, time.Second},
		{"live.reconnect_max", c.Live.ReconnectMaxRaw, &c.Live.ReconnectMax, 30 * time.Second},
	}
	for _, d := range durations {
		if d.raw == "" {
			*d.dst = d.fallback
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("market config: invalid %s %q: %w", d.field, d.raw, err)
		}
		if parsed <= 0 {
			return fmt.Errorf("market config: %s must be positive, got %s", d.field, parsed)
		}
		*d.dst = parsed
	}
	return nil
}

func (c *Config) expandEnv() {
	c.InfoURL = strings.TrimSpace(os.ExpandEnv(c.InfoURL))
	c.WSURL = strings.TrimSpace(os.ExpandEnv(c.WSURL))
	c.Proxy.BaseURL = strings.TrimSpace(os.ExpandEnv(c.Proxy.BaseURL))
	c.Proxy.Provider = strings.TrimSpace(os.ExpandEnv(c.Proxy.Provider))
	c.DefaultDex = strings.TrimSpace(os.ExpandEnv(c.DefaultDex))
	c.TimeoutRaw = strings.TrimSpace(os.ExpandEnv(c.TimeoutRaw))
	c.HTTPTimeoutRaw = strings.TrimSpace(os.ExpandEnv(c.HTTPTimeoutRaw))
	c.BreakerTimeoutRaw = strings.TrimSpace(os.ExpandEnv(c.BreakerTimeoutRaw))
	c.Live.ThrottleRaw = strings.TrimSpace(os.ExpandEnv(c.Live.ThrottleRaw))
	c.Live.PollMetricsRaw = strings.TrimSpace(os.ExpandEnv(c.Live.PollMetricsRaw))
	c.Live.PollOrderBookRaw = strings.TrimSpace(os.ExpandEnv(c.Live.PollOrderBookRaw))
	c.Live.PollPriceRaw = strings.TrimSpace(os.ExpandEnv(c.Live.PollPriceRaw))
	c.Live.ReconnectBaseRaw = strings.TrimSpace(os.ExpandEnv(c.Live.ReconnectBaseRaw))
	c.Live.ReconnectMaxRaw = strings.TrimSpace(os.ExpandEnv(c.Live.ReconnectMaxRaw))
}

// Validate ensures the configuration is structurally sound.
func (c *Config) Validate() error {
	if c.Proxy.BaseURL == "" {
		return fmt.Errorf("market config: proxy.base_url is required")
	}
	if !strings.HasPrefix(c.Proxy.BaseURL, "http://") && !strings.HasPrefix(c.Proxy.BaseURL, "https://") {
		return fmt.Errorf("market config: proxy.base_url must be an http(s) URL, got %q", c.Proxy.BaseURL)
	}
	if !c.HasDex(c.DefaultDex) {
		return fmt.Errorf("market config: default_dex %q not listed in dexes", c.DefaultDex)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("market config: max_retries cannot be negative")
	}
	if c.Live.ReconnectMax < c.Live.ReconnectBase {
		return fmt.Errorf("market config: live.reconnect_max (%s) below live.reconnect_base (%s)", c.Live.ReconnectMax, c.Live.ReconnectBase)
	}
	return nil
}

// HasDex reports whether dex is one of the configured DEX codes.
func (c *Config) HasDex(dex string) bool {
	dex = strings.ToLower(strings.TrimSpace(dex))
	for _, d := range c.Dexes {
		if d == dex {
			return true
		}
	}
	return false
}
