package config

import (
	"strings"
)

// 默认值常量
const (
	defaultAppEnv           = "dev"
	defaultAppLogLevel      = "info"
	defaultAppHTTPAddr      = ":9991"
	defaultMarketName       = "binance"
	defaultSourceTimeout    = 15
	defaultBreakerThreshold = 5
	defaultBreakerCooldown  = 30
	defaultMaxConcurrent    = 4
	defaultRequestTimeout   = 20
	defaultSuperTrendWindow = 15
	defaultSuperTrendMult   = 5
	defaultChartWidth       = 1280
	defaultChartHeight      = 640
	defaultChartTheme       = "white"
	defaultChartTimeout     = 30
)

// defaultRESTBase 为各类数据源的默认 REST 地址。
var defaultRESTBase = map[string]string{
	KindBinance:     "https://fapi.binance.com",
	KindBinanceSpot: "https://api.binance.com",
	KindGate:        "https://api.gateio.ws/api/v4",
}

// 支持的数据源类型。
const (
	KindBinance     = "binance"
	KindBinanceSpot = "binance-spot"
	KindGate        = "gate"
)

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Market.applyDefaults(keys)
	c.Acquire.applyDefaults(keys)
	c.Indicators.applyDefaults(keys)
	c.Chart.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
	)
}

func (m *MarketConfig) applyDefaults(keys keySet) {
	if m == nil {
		return
	}
	if len(m.Sources) == 0 && !keys.isSet("market.sources") {
		m.Sources = []MarketSource{{Name: defaultMarketName, Kind: KindBinance, Enabled: true}}
	}
	for i := range m.Sources {
		m.Sources[i].applyDefaults()
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "market.active_source",
			need:  func() bool { return strings.TrimSpace(m.ActiveSource) == "" },
			apply: func() { m.ActiveSource = firstEnabledMarket(m.Sources) },
		},
	)
}

// 列表元素无法按 key 追踪，零值即视为未设置。
func (s *MarketSource) applyDefaults() {
	s.Name = strings.ToLower(strings.TrimSpace(s.Name))
	s.Kind = strings.ToLower(strings.TrimSpace(s.Kind))
	if s.Kind == "" {
		s.Kind = s.Name
	}
	if strings.TrimSpace(s.RESTBaseURL) == "" {
		s.RESTBaseURL = defaultRESTBase[s.Kind]
	}
	s.RESTBaseURL = strings.TrimRight(strings.TrimSpace(s.RESTBaseURL), "/")
	if s.TimeoutSeconds <= 0 {
		s.TimeoutSeconds = defaultSourceTimeout
	}
	if s.Breaker.FailureThreshold <= 0 {
		s.Breaker.FailureThreshold = defaultBreakerThreshold
	}
	if s.Breaker.CooldownSeconds <= 0 {
		s.Breaker.CooldownSeconds = defaultBreakerCooldown
	}
	s.Proxy.normalize()
}

func (a *AcquireConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "acquire.max_concurrent",
			need:  func() bool { return a.MaxConcurrent <= 0 },
			apply: func() { a.MaxConcurrent = defaultMaxConcurrent },
		},
		fieldDefault{
			key:   "acquire.request_timeout_seconds",
			need:  func() bool { return a.RequestTimeoutSeconds <= 0 },
			apply: func() { a.RequestTimeoutSeconds = defaultRequestTimeout },
		},
	)
	if len(a.WindowSizes) > 0 {
		normalized := make(map[string]int, len(a.WindowSizes))
		for k, v := range a.WindowSizes {
			normalized[strings.ToLower(strings.TrimSpace(k))] = v
		}
		a.WindowSizes = normalized
	}
}

func (i *IndicatorConfig) applyDefaults(keys keySet) {
	if i == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "indicators.super_trend.atr_window",
			need:  func() bool { return i.SuperTrend.ATRWindow <= 0 },
			apply: func() { i.SuperTrend.ATRWindow = defaultSuperTrendWindow },
		},
		fieldDefault{
			key:   "indicators.super_trend.multiplier",
			need:  func() bool { return i.SuperTrend.Multiplier <= 0 },
			apply: func() { i.SuperTrend.Multiplier = defaultSuperTrendMult },
		},
		boolFieldDefault("indicators.warn_unsupported", &i.WarnUnsupported, true),
	)
}

func (c *ChartConfig) applyDefaults(keys keySet) {
	if c == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "chart.width",
			need:  func() bool { return c.Width <= 0 },
			apply: func() { c.Width = defaultChartWidth },
		},
		fieldDefault{
			key:   "chart.height",
			need:  func() bool { return c.Height <= 0 },
			apply: func() { c.Height = defaultChartHeight },
		},
		stringFieldDefault("chart.theme", &c.Theme, defaultChartTheme),
		fieldDefault{
			key:   "chart.render_timeout_seconds",
			need:  func() bool { return c.RenderTimeoutSeconds <= 0 },
			apply: func() { c.RenderTimeoutSeconds = defaultChartTimeout },
		},
	)
}

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func firstEnabledMarket(sources []MarketSource) string {
	for _, src := range sources {
		name := strings.TrimSpace(src.Name)
		if src.Enabled && name != "" {
			return name
		}
	}
	if len(sources) > 0 {
		if name := strings.TrimSpace(sources[0].Name); name != "" {
			return name
		}
	}
	return defaultMarketName
}
