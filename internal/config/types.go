package config

import (
	"strings"
	"time"
)

// Config 是 cryptoseries 的主配置载体。
type Config struct {
	App        AppConfig       `toml:"app"`
	Market     MarketConfig    `toml:"market"`
	Acquire    AcquireConfig   `toml:"acquire"`
	Indicators IndicatorConfig `toml:"indicators"`
	Chart      ChartConfig     `toml:"chart"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	// LogPath 为空时只输出到 stdout。
	LogPath string `toml:"log_path"`
}

type MarketConfig struct {
	ActiveSource string         `toml:"active_source"`
	Sources      []MarketSource `toml:"sources"`
}

// MarketSource 描述一个交易所数据源。
type MarketSource struct {
	Name           string        `toml:"name"`
	Kind           string        `toml:"kind"` // binance | binance-spot | gate
	Enabled        bool          `toml:"enabled"`
	RESTBaseURL    string        `toml:"rest_base_url"`
	TimeoutSeconds int           `toml:"timeout_seconds"`
	MaxLength      int           `toml:"max_length"` // 单次请求允许的最大总 K 线数，0 表示不限制
	Proxy          ProxyConfig   `toml:"proxy"`
	Breaker        BreakerConfig `toml:"breaker"`
}

type ProxyConfig struct {
	Enabled bool   `toml:"enabled"`
	RESTURL string `toml:"rest_url"`
}

func (p *ProxyConfig) normalize() {
	if p == nil {
		return
	}
	p.RESTURL = strings.TrimSpace(p.RESTURL)
}

// BreakerConfig 控制数据源熔断。
type BreakerConfig struct {
	FailureThreshold int `toml:"failure_threshold"`
	CooldownSeconds  int `toml:"cooldown_seconds"`
}

func (b BreakerConfig) Cooldown() time.Duration {
	return time.Duration(b.CooldownSeconds) * time.Second
}

func (s MarketSource) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// ResolveActiveSource returns the source used when a request names no exchange.
func (m MarketConfig) ResolveActiveSource() MarketSource {
	active := strings.ToLower(strings.TrimSpace(m.ActiveSource))
	var fallback MarketSource
	for _, src := range m.Sources {
		if !src.Enabled {
			continue
		}
		if fallback.Name == "" {
			fallback = src
		}
		if active == "" || strings.ToLower(src.Name) == active {
			return src
		}
	}
	return fallback
}

// EnabledSources 返回启用的数据源，保持配置顺序。
func (m MarketConfig) EnabledSources() []MarketSource {
	out := make([]MarketSource, 0, len(m.Sources))
	for _, src := range m.Sources {
		if src.Enabled {
			out = append(out, src)
		}
	}
	return out
}

// AcquireConfig 控制分块与并发拉取。
type AcquireConfig struct {
	MaxConcurrent         int `toml:"max_concurrent"`
	RateLimitPerMin       int `toml:"rate_limit_per_min"`
	RequestTimeoutSeconds int `toml:"request_timeout_seconds"`
	// WindowSizes 按周期覆盖单次请求的 K 线上限，0 表示该周期不分块。
	WindowSizes map[string]int `toml:"window_sizes"`
}

func (a AcquireConfig) RequestTimeout() time.Duration {
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

type IndicatorConfig struct {
	SuperTrend      SuperTrendConfig `toml:"super_trend"`
	WarnUnsupported bool             `toml:"warn_unsupported"`
}

type SuperTrendConfig struct {
	ATRWindow  int     `toml:"atr_window"`
	Multiplier float64 `toml:"multiplier"`
}

// ChartConfig 控制图表渲染与截图。
type ChartConfig struct {
	Width                int    `toml:"width"`
	Height               int    `toml:"height"`
	Theme                string `toml:"theme"`
	RenderTimeoutSeconds int    `toml:"render_timeout_seconds"`
}

func (c ChartConfig) RenderTimeout() time.Duration {
	return time.Duration(c.RenderTimeoutSeconds) * time.Second
}

// keySet 用于追踪配置文件中显式设置的字段路径。
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault 描述单个字段的默认值设置规则。
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
