package cli

import (
	"fmt"
	"strings"

	"github.com/zeromicro/go-zero/core/logx"

	"bitfrost-api/internal/config"
	"bitfrost-api/pkg/confkit"
)

// ConfigSummaryLines returns human readable lines describing the loaded app config.
func ConfigSummaryLines(cfg *config.Config) []string {
	if cfg == nil {
		return []string{"Configuration: <nil>"}
	}

	lines := []string{
		fmt.Sprintf("Environment: %s", cfg.Env),
		fmt.Sprintf("Postgres: %s", presence(cfg.Postgres.DSN != "")),
		fmt.Sprintf("Redis: %s", presence(strings.TrimSpace(cfg.Redis.Host) != "")),
		fmt.Sprintf("TTL (aggregate/metrics/funding): %ds / %ds / %dh", cfg.TTL.Aggregate, cfg.TTL.Metrics, cfg.TTL.FundingRetention),
		fmt.Sprintf("Ingest: every %ds, watch list %v", cfg.Ingest.Interval, cfg.Ingest.WatchList),
		sectionLine("Market config", cfg.Market),
	}
	if mc := cfg.MarketConfig(); mc != nil {
		lines = append(lines,
			fmt.Sprintf("Market dexes: %s (default %s)", strings.Join(mc.Dexes, ","), mc.DefaultDex),
			fmt.Sprintf("Market proxy: %s", presence(mc.Proxy.BaseURL != "")),
		)
	}

	return lines
}

// LogConfigSummary emits the configuration summary using logx.
func LogConfigSummary(cfg *config.Config) {
	lines := ConfigSummaryLines(cfg)
	if len(lines) == 0 {
		return
	}
	logx.Info("configuration summary")
	for _, line := range lines {
		logx.Infof("config • %s", line)
	}
}

func presence(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}

func sectionLine[T any](name string, section confkit.Section[T]) string {
	switch {
	case strings.TrimSpace(section.File) != "":
		return fmt.Sprintf("%s: %s", name, section.File)
	case section.Value != nil:
		return fmt.Sprintf("%s: inline", name)
	default:
		return fmt.Sprintf("%s: not configured", name)
	}
}
