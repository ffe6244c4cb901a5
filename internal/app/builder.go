package app

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"cryptoseries/internal/acquire"
	"cryptoseries/internal/analysis/indicator"
	"cryptoseries/internal/analysis/visual"
	"cryptoseries/internal/config"
	"cryptoseries/internal/gateway"
	"cryptoseries/internal/logger"
	"cryptoseries/internal/market"
	serieshttp "cryptoseries/internal/transport/http/series"
)

type AppBuilder struct {
	cfg *config.Config

	sourcesFn  func(*config.Config) (map[string]market.Source, error)
	httpFn     func(config.AppConfig, serieshttp.SeriesService, serieshttp.ChartRenderer) (*serieshttp.Server, error)
	headlessFn func(context.Context) error
}

type AppBuilderOption func(*AppBuilder)

// WithSources replaces the exchange sources, mostly for tests.
func WithSources(fn func(*config.Config) (map[string]market.Source, error)) AppBuilderOption {
	return func(b *AppBuilder) {
		if fn != nil {
			b.sourcesFn = fn
		}
	}
}

// WithHeadlessProbe replaces the chromedp availability check.
func WithHeadlessProbe(fn func(context.Context) error) AppBuilderOption {
	return func(b *AppBuilder) {
		if fn != nil {
			b.headlessFn = fn
		}
	}
}

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:       cfg,
		sourcesFn:  gateway.NewSourcesFromConfig,
		httpFn:     buildSeriesHTTPServer,
		headlessFn: visual.EnsureHeadlessAvailable,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if b == nil || b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := b.cfg

	sources, err := b.sourcesFn(cfg)
	if err != nil {
		return nil, fmt.Errorf("初始化行情源失败: %w", err)
	}
	svc := acquire.NewService(sources, serviceConfig(cfg))

	renderer := visual.NewRenderer(visual.Options{
		Width:         cfg.Chart.Width,
		Height:        cfg.Chart.Height,
		Theme:         cfg.Chart.Theme,
		RenderTimeout: cfg.Chart.RenderTimeout(),
	})
	if err := b.headlessFn(ctx); err != nil {
		logger.Warnf("PNG 图表不可用，仅提供 HTML: %v", err)
	}

	server, err := b.httpFn(cfg.App, svc, renderer)
	if err != nil {
		return nil, err
	}
	return &App{
		cfg:     cfg,
		service: svc,
		http:    server,
		Summary: buildSummary(cfg, svc),
	}, nil
}

func serviceConfig(cfg *config.Config) acquire.ServiceConfig {
	maxLength := make(map[string]int)
	for _, src := range cfg.Market.EnabledSources() {
		if src.MaxLength > 0 {
			maxLength[strings.ToLower(src.Name)] = src.MaxLength
		}
	}
	return acquire.ServiceConfig{
		DefaultExchange: cfg.Market.ActiveSource,
		WindowSizes:     cfg.Acquire.WindowSizes,
		MaxLength:       maxLength,
		Fetcher: acquire.FetcherConfig{
			MaxConcurrent:   cfg.Acquire.MaxConcurrent,
			RateLimitPerMin: cfg.Acquire.RateLimitPerMin,
			RequestTimeout:  cfg.Acquire.RequestTimeout(),
		},
		Indicators: indicator.Settings{
			SuperTrend: indicator.SuperTrendSettings{
				ATRWindow:  cfg.Indicators.SuperTrend.ATRWindow,
				Multiplier: cfg.Indicators.SuperTrend.Multiplier,
			},
			WarnUnsupported: cfg.Indicators.WarnUnsupported,
		},
	}
}

func buildSeriesHTTPServer(cfg config.AppConfig, svc serieshttp.SeriesService, charts serieshttp.ChartRenderer) (*serieshttp.Server, error) {
	server, err := serieshttp.NewServer(serieshttp.Config{
		Addr:    cfg.HTTPAddr,
		Service: svc,
		Charts:  charts,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 series HTTP 失败: %w", err)
	}
	logger.Infof("✓ Series HTTP 接口监听 %s", cfg.HTTPAddr)
	return server, nil
}

func buildSummary(cfg *config.Config, svc *acquire.Service) *StartupSummary {
	s := &StartupSummary{
		Env:          cfg.App.Env,
		HTTPAddr:     cfg.App.HTTPAddr,
		ActiveSource: cfg.Market.ActiveSource,
		Exchanges:    svc.Exchanges(),
		Timeframes:   market.SupportedTimeframes(),
		Indicators:   svc.Engine().Patterns(),
		Acquire: AcquireSummary{
			MaxConcurrent:   cfg.Acquire.MaxConcurrent,
			RateLimitPerMin: cfg.Acquire.RateLimitPerMin,
			RequestTimeout:  cfg.Acquire.RequestTimeout().String(),
		},
	}
	for tf, size := range cfg.Acquire.WindowSizes {
		s.Acquire.WindowSizes = append(s.Acquire.WindowSizes, fmt.Sprintf("%s=%d", tf, size))
	}
	sort.Strings(s.Acquire.WindowSizes)
	return s
}
