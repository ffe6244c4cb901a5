package acquire

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cryptoseries/internal/logger"
	"cryptoseries/internal/market"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

var log = logger.Component("acquire")

// WindowResult holds either the bars or the error of one window.
type WindowResult struct {
	Window  Window
	Bars    []market.Bar
	Err     error
	Elapsed time.Duration
}

// FetcherConfig 控制并发拉取。
type FetcherConfig struct {
	MaxConcurrent   int
	RateLimitPerMin int
	// RequestTimeout bounds each window's call; 0 disables it.
	RequestTimeout time.Duration
}

// Fetcher issues one request per window on a bounded pool. It never retries.
type Fetcher struct {
	maxConcurrent  int
	limiter        *rate.Limiter
	requestTimeout time.Duration
}

func NewFetcher(cfg FetcherConfig) *Fetcher {
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	limit := rate.Inf
	burst := maxConcurrent
	if cfg.RateLimitPerMin > 0 {
		limit = rate.Limit(float64(cfg.RateLimitPerMin) / 60.0)
	}
	return &Fetcher{
		maxConcurrent:  maxConcurrent,
		limiter:        rate.NewLimiter(limit, burst),
		requestTimeout: cfg.RequestTimeout,
	}
}

// FetchAll runs every window and returns results keyed by Window.Since.
// A failing window never cancels its siblings; the caller decides what a failure means.
func (f *Fetcher) FetchAll(ctx context.Context, src market.Source, symbol string, tf market.Timeframe, windows []Window) map[int64]WindowResult {
	results := make(map[int64]WindowResult, len(windows))
	var mu sync.Mutex
	record := func(res WindowResult) {
		mu.Lock()
		results[res.Window.Since] = res
		mu.Unlock()
	}

	var group errgroup.Group
	group.SetLimit(f.maxConcurrent)
	for _, w := range windows {
		w := w
		group.Go(func() error {
			record(f.fetchWindow(ctx, src, symbol, tf, w))
			return nil
		})
	}
	_ = group.Wait()
	return results
}

func (f *Fetcher) fetchWindow(ctx context.Context, src market.Source, symbol string, tf market.Timeframe, w Window) (res WindowResult) {
	res.Window = w
	start := time.Now()
	defer func() { res.Elapsed = time.Since(start) }()

	if err := f.limiter.Wait(ctx); err != nil {
		res.Err = market.MarkTransient(err)
		return res
	}
	callCtx := ctx
	if f.requestTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, f.requestTimeout)
		defer cancel()
	}
	bars, err := src.FetchBars(callCtx, symbol, tf.SourceInterval, w.Since, w.Limit)
	if err != nil {
		res.Err = market.ClassifyError(err)
		log.Warnf("%s %s %s window since=%d limit=%d failed: %v", src.Name(), symbol, tf.Key, w.Since, w.Limit, res.Err)
		return res
	}
	if len(bars) == 0 {
		res.Err = market.MarkUnavailable(fmt.Errorf("%s returned no bars for %s %s since=%d", src.Name(), symbol, tf.Key, w.Since))
		return res
	}
	res.Bars = bars
	log.Debugf("%s %s %s window since=%d limit=%d got=%d", src.Name(), symbol, tf.Key, w.Since, w.Limit, len(bars))
	return res
}
