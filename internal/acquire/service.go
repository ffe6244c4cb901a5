package acquire

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"cryptoseries/internal/analysis/indicator"
	"cryptoseries/internal/market"
	"cryptoseries/internal/pkg/symbol"

	"github.com/google/uuid"
)

const defaultSymbolsTTL = 10 * time.Minute

// Request describes one series acquisition. Length takes precedence over End;
// with neither, the range runs up to the current bar.
type Request struct {
	Exchange          string
	Symbol            string
	Start             time.Time
	End               *time.Time
	Length            int
	Timeframe         string
	Indicators        []string
	KeepOnlyRequested bool
}

// Plan is the validated, grid-aligned form of a Request.
type Plan struct {
	RequestID string   `json:"request_id"`
	Exchange  string   `json:"exchange"`
	Symbol    string   `json:"symbol"`
	Timeframe string   `json:"timeframe"`
	Start     int64    `json:"start"`
	End       int64    `json:"end"`
	Limit     int      `json:"limit"`
	Windows   []Window `json:"windows"`

	tf     market.Timeframe
	source market.Source
}

// Acquisition is a finished request plus what it took to build it.
type Acquisition struct {
	Plan       Plan             `json:"plan"`
	Gaps       int              `json:"gaps"`
	Indicators indicator.Result `json:"indicators"`
	Elapsed    time.Duration    `json:"elapsed"`
	Series     *market.Series   `json:"series"`
}

// ServiceConfig 汇总获取服务的可调参数。
type ServiceConfig struct {
	DefaultExchange string
	// WindowSizes overrides the per-request bar cap by timeframe key; 0 disables chunking.
	WindowSizes map[string]int
	// MaxLength is the hard cap on total bars per request, keyed by exchange.
	MaxLength  map[string]int
	Fetcher    FetcherConfig
	Indicators indicator.Settings
	SymbolsTTL time.Duration
}

type symbolCache struct {
	symbols map[string]struct{}
	fetched time.Time
}

// Service runs the split → fetch → assemble → enrich pipeline against named sources.
type Service struct {
	sources         map[string]market.Source
	defaultExchange string
	windowSizes     map[string]int
	maxLength       map[string]int
	fetcher         *Fetcher
	engine          *indicator.Engine
	symbolsTTL      time.Duration
	now             func() time.Time

	mu      sync.Mutex
	symbols map[string]symbolCache
}

func NewService(sources map[string]market.Source, cfg ServiceConfig) *Service {
	normalized := make(map[string]market.Source, len(sources))
	for name, src := range sources {
		normalized[strings.ToLower(strings.TrimSpace(name))] = src
	}
	ttl := cfg.SymbolsTTL
	if ttl <= 0 {
		ttl = defaultSymbolsTTL
	}
	return &Service{
		sources:         normalized,
		defaultExchange: strings.ToLower(strings.TrimSpace(cfg.DefaultExchange)),
		windowSizes:     cfg.WindowSizes,
		maxLength:       cfg.MaxLength,
		fetcher:         NewFetcher(cfg.Fetcher),
		engine:          indicator.NewEngine(cfg.Indicators),
		symbolsTTL:      ttl,
		now:             time.Now,
		symbols:         make(map[string]symbolCache),
	}
}

// Exchanges lists the configured source names.
func (s *Service) Exchanges() []string {
	out := make([]string, 0, len(s.sources))
	for name := range s.sources {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Engine exposes the indicator engine so callers can enrich series they already hold.
func (s *Service) Engine() *indicator.Engine {
	return s.engine
}

// GetSeries returns the enriched series for req or an error; never a partial series.
func (s *Service) GetSeries(ctx context.Context, req Request) (*market.Series, error) {
	acq, err := s.Acquire(ctx, req)
	if err != nil {
		return nil, err
	}
	return acq.Series, nil
}

// Acquire is GetSeries with the plan and bookkeeping attached.
func (s *Service) Acquire(ctx context.Context, req Request) (*Acquisition, error) {
	started := s.now()
	plan, err := s.Plan(ctx, req)
	if err != nil {
		return nil, err
	}
	log.Infof("req=%s %s %s %s start=%d end=%d limit=%d windows=%d",
		plan.RequestID, plan.Exchange, plan.Symbol, plan.Timeframe, plan.Start, plan.End, plan.Limit, len(plan.Windows))

	results := s.fetcher.FetchAll(ctx, plan.source, plan.Symbol, plan.tf, plan.Windows)
	if err := collectFailures(plan.Windows, results); err != nil {
		log.Warnf("req=%s aborted: %v", plan.RequestID, err)
		return nil, err
	}

	bars, err := Assemble(plan.Windows, results, plan.tf.Grid(plan.Start, plan.End))
	if err != nil {
		return nil, err
	}
	series := market.NewSeries(plan.Symbol, plan.Timeframe, bars)
	ind, err := s.engine.Compute(series, req.Indicators, req.KeepOnlyRequested)
	if err != nil {
		return nil, fmt.Errorf("compute indicators: %w", err)
	}
	acq := &Acquisition{
		Plan:       plan,
		Gaps:       CountGaps(bars),
		Indicators: ind,
		Elapsed:    s.now().Sub(started),
		Series:     series,
	}
	log.Infof("req=%s done rows=%d gaps=%d columns=%d elapsed=%s",
		plan.RequestID, series.Len(), acq.Gaps, len(series.Columns()), acq.Elapsed.Round(time.Millisecond))
	return acq, nil
}

// Plan validates req and computes the windows without fetching any bars.
// Configuration problems are reported before the symbol is looked up.
func (s *Service) Plan(ctx context.Context, req Request) (Plan, error) {
	exchange := strings.ToLower(strings.TrimSpace(req.Exchange))
	if exchange == "" {
		exchange = s.defaultExchange
	}
	src, ok := s.sources[exchange]
	if !ok {
		return Plan{}, configError("exchange", "exchange not found: %q", req.Exchange)
	}
	tf, err := market.ParseTimeframe(req.Timeframe)
	if err != nil {
		return Plan{}, configError("timeframe", "%v", err)
	}
	if size, ok := s.windowSizes[tf.Key]; ok {
		tf = tf.WithMaxWindow(size)
	}
	if req.Start.IsZero() {
		return Plan{}, configError("start", "start is required")
	}
	if req.Length < 0 {
		return Plan{}, configError("length", "length must be positive, got %d", req.Length)
	}

	start := tf.AlignDown(req.Start.UnixMilli())
	var end int64
	var limit int
	switch {
	case req.Length > 0:
		limit = req.Length
		end = start + int64(limit)*tf.StepMillis()
	case req.End != nil:
		if !req.End.After(req.Start) {
			return Plan{}, configError("end", "end %s must be after start %s", req.End.Format(time.RFC3339), req.Start.Format(time.RFC3339))
		}
		// limit counts whole elapsed days; the grid ends where those bars end so
		// a partial trailing day is neither requested nor gap-filled.
		limit = tf.BarsBetween(time.UnixMilli(start), time.UnixMilli(tf.AlignDown(req.End.UnixMilli())))
		end = start + int64(limit)*tf.StepMillis()
	default:
		end = tf.AlignDown(s.now().UnixMilli())
		limit = int((end - start) / tf.StepMillis())
	}
	if limit <= 0 || end <= start {
		return Plan{}, configError("range", "range covers no complete %s bar", tf.Key)
	}
	if hardCap := s.maxLength[exchange]; hardCap > 0 && limit > hardCap {
		return Plan{}, configError("length", "for %s, length must be in [1, %d], got %d", exchange, hardCap, limit)
	}

	sym := symbol.Normalize(req.Symbol)
	if sym == "" {
		return Plan{}, fmt.Errorf("%w: %q", ErrSymbolNotFound, req.Symbol)
	}
	if err := s.checkSymbol(ctx, exchange, src, sym); err != nil {
		return Plan{}, err
	}

	return Plan{
		RequestID: uuid.NewString(),
		Exchange:  exchange,
		Symbol:    sym,
		Timeframe: tf.Key,
		Start:     start,
		End:       end,
		Limit:     limit,
		Windows:   Split(start, tf, limit, EffectiveWindow(tf, src.MaxLimit())),
		tf:        tf,
		source:    src,
	}, nil
}

// ListSymbols returns the exchange's symbols, optionally restricted to one quote currency.
func (s *Service) ListSymbols(ctx context.Context, exchange, quote string) ([]string, error) {
	exchange = strings.ToLower(strings.TrimSpace(exchange))
	if exchange == "" {
		exchange = s.defaultExchange
	}
	src, ok := s.sources[exchange]
	if !ok {
		return nil, configError("exchange", "exchange not found: %q", exchange)
	}
	if !src.HasCapability(market.CapListSymbols) {
		return nil, configError("exchange", "%s cannot list symbols", exchange)
	}
	set, err := s.symbolSet(ctx, exchange, src)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(set))
	for sym := range set {
		out = append(out, sym)
	}
	sort.Strings(out)
	return symbol.FilterQuote(out, quote), nil
}

func (s *Service) checkSymbol(ctx context.Context, exchange string, src market.Source, sym string) error {
	if !src.HasCapability(market.CapFetchOHLCV) {
		return fmt.Errorf("%w: %s does not serve OHLCV data", ErrSymbolNotFound, exchange)
	}
	if !src.HasCapability(market.CapListSymbols) {
		return nil
	}
	set, err := s.symbolSet(ctx, exchange, src)
	if err != nil {
		return err
	}
	if _, ok := set[sym]; !ok {
		return fmt.Errorf("%w: %s on %s", ErrSymbolNotFound, sym, exchange)
	}
	return nil
}

func (s *Service) symbolSet(ctx context.Context, exchange string, src market.Source) (map[string]struct{}, error) {
	s.mu.Lock()
	cached, ok := s.symbols[exchange]
	s.mu.Unlock()
	if ok && s.now().Sub(cached.fetched) < s.symbolsTTL {
		return cached.symbols, nil
	}
	list, err := src.ListSymbols(ctx)
	if err != nil {
		return nil, &FetchError{Err: fmt.Errorf("list symbols on %s: %w", exchange, market.ClassifyError(err))}
	}
	set := make(map[string]struct{}, len(list))
	for _, sym := range symbol.NormalizeList(list) {
		set[sym] = struct{}{}
	}
	s.mu.Lock()
	s.symbols[exchange] = symbolCache{symbols: set, fetched: s.now()}
	s.mu.Unlock()
	return set, nil
}

// collectFailures walks windows in submission order; the last failure wins.
func collectFailures(windows []Window, results map[int64]WindowResult) error {
	var (
		last   error
		since  int64
		failed int
	)
	for _, w := range windows {
		res, ok := results[w.Since]
		if !ok {
			res.Err = errors.New("window was not fetched")
		}
		if res.Err == nil {
			continue
		}
		failed++
		last = res.Err
		since = w.Since
	}
	if failed == 0 {
		return nil
	}
	return &FetchError{Since: since, Failed: failed, Total: len(windows), Err: last}
}
