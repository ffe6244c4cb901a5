package config

import (
	"fmt"
	"log/slog"
	"strings"

	"cryptoseries/internal/market"
)

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if err := c.App.validate(); err != nil {
		return err
	}
	if err := c.Market.validate(); err != nil {
		return err
	}
	if err := c.Acquire.validate(); err != nil {
		return err
	}
	if err := c.Indicators.validate(); err != nil {
		return err
	}
	return nil
}

func (a *AppConfig) validate() error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(a.LogLevel))); err != nil {
		return fmt.Errorf("app.log_level invalid: %s", a.LogLevel)
	}
	if strings.TrimSpace(a.HTTPAddr) == "" {
		return fmt.Errorf("app.http_addr cannot be empty")
	}
	return nil
}

func (m *MarketConfig) validate() error {
	if len(m.EnabledSources()) == 0 {
		return fmt.Errorf("market.sources requires at least one enabled source")
	}
	seen := make(map[string]struct{}, len(m.Sources))
	for i, src := range m.Sources {
		if src.Name == "" {
			return fmt.Errorf("market.sources[%d] missing name", i)
		}
		if _, dup := seen[src.Name]; dup {
			return fmt.Errorf("market.sources contains duplicate name: %s", src.Name)
		}
		seen[src.Name] = struct{}{}
		if _, ok := defaultRESTBase[src.Kind]; !ok {
			return fmt.Errorf("market.sources.%s unsupported kind: %s", src.Name, src.Kind)
		}
		if src.MaxLength < 0 {
			return fmt.Errorf("market.sources.%s.max_length must be >= 0", src.Name)
		}
		if src.Proxy.Enabled && src.Proxy.RESTURL == "" {
			return fmt.Errorf("market.sources.%s.proxy.rest_url cannot be empty when proxy is enabled", src.Name)
		}
	}
	active := strings.ToLower(strings.TrimSpace(m.ActiveSource))
	if active != "" {
		if src := m.ResolveActiveSource(); src.Name != active {
			return fmt.Errorf("market.active_source %s is not an enabled source", m.ActiveSource)
		}
	}
	return nil
}

func (a *AcquireConfig) validate() error {
	if a.MaxConcurrent <= 0 {
		return fmt.Errorf("acquire.max_concurrent must be > 0")
	}
	if a.RateLimitPerMin < 0 {
		return fmt.Errorf("acquire.rate_limit_per_min must be >= 0")
	}
	for key, size := range a.WindowSizes {
		if _, err := market.ParseTimeframe(key); err != nil {
			return fmt.Errorf("acquire.window_sizes: %w", err)
		}
		if size < 0 {
			return fmt.Errorf("acquire.window_sizes.%s must be >= 0", key)
		}
	}
	return nil
}

func (i *IndicatorConfig) validate() error {
	if i.SuperTrend.ATRWindow <= 0 {
		return fmt.Errorf("indicators.super_trend.atr_window must be > 0")
	}
	if i.SuperTrend.Multiplier <= 0 {
		return fmt.Errorf("indicators.super_trend.multiplier must be > 0")
	}
	return nil
}
