// Package gate serves futures candlesticks from Gate.io through gateapi-go.
package gate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cryptoseries/internal/logger"
	"cryptoseries/internal/market"
	"cryptoseries/internal/pkg/convert"
	symbolpkg "cryptoseries/internal/pkg/symbol"

	"github.com/antihax/optional"
	gateapi "github.com/gateio/gateapi-go/v7"
)

const (
	defaultSettle       = "usdt"
	gateMaxHistoryLimit = 2000
	defaultGateREST     = "https://api.gateio.ws/api/v4"
)

var log = logger.Component("gate")

// intervalDurations lists the candle intervals Gate accepts for futures.
var intervalDurations = map[string]time.Duration{
	"1m":  time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"4h":  4 * time.Hour,
	"8h":  8 * time.Hour,
	"1d":  24 * time.Hour,
}

type Source struct {
	name string
	cfg  Config
	rest *gateapi.APIClient
}

func New(name string, cfg Config) *Source {
	final := cfg.withDefaults()
	conf := gateapi.NewConfiguration()
	conf.BasePath = final.RESTBaseURL
	conf.HTTPClient = final.HTTPClient
	if strings.TrimSpace(name) == "" {
		name = "gate"
	}
	return &Source{name: name, cfg: final, rest: gateapi.NewAPIClient(conf)}
}

func (s *Source) Name() string { return s.name }

func (s *Source) MaxLimit() int { return gateMaxHistoryLimit }

func (s *Source) HasCapability(name string) bool {
	return name == market.CapFetchOHLCV || name == market.CapListSymbols
}

// FetchBars asks for the [since, since+limit*interval) range. Gate rejects limit
// combined with from/to, so the range is expressed with from/to only.
func (s *Source) FetchBars(ctx context.Context, symbol, interval string, since int64, limit int) ([]market.Bar, error) {
	if limit <= 0 || limit > gateMaxHistoryLimit {
		return nil, fmt.Errorf("limit must be in [1, %d], got %d", gateMaxHistoryLimit, limit)
	}
	contract := symbolpkg.Gate.ToExchange(symbol)
	if contract == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	interval = strings.ToLower(strings.TrimSpace(interval))
	step, ok := intervalDurations[interval]
	if !ok {
		return nil, fmt.Errorf("unsupported gate interval: %s", interval)
	}
	from := since / 1000
	to := from + int64(limit-1)*int64(step/time.Second)
	opts := &gateapi.ListFuturesCandlesticksOpts{
		From:     optional.NewInt64(from),
		To:       optional.NewInt64(to),
		Interval: optional.NewString(interval),
	}
	kls, _, err := s.rest.FuturesApi.ListFuturesCandlesticks(ctx, s.cfg.Settle, contract, opts)
	if err != nil {
		log.Errorf("fetch kline failed %s %s since=%d limit=%d: %v", contract, interval, since, limit, err)
		return nil, err
	}
	out := make([]market.Bar, 0, len(kls))
	for _, kl := range kls {
		vals, err := convert.ParseFields(kl.O, kl.H, kl.L, kl.C, kl.Sum)
		if err != nil {
			return nil, market.MarkUnavailable(fmt.Errorf("candle %s@%v: %w", contract, kl.T, err))
		}
		out = append(out, market.Bar{
			OpenTime: int64(kl.T) * 1000,
			Open:     vals[0],
			High:     vals[1],
			Low:      vals[2],
			Close:    vals[3],
			Volume:   vals[4],
		})
	}
	return out, nil
}

// ListSymbols lists contracts with a live ticker under the configured settlement currency.
func (s *Source) ListSymbols(ctx context.Context) ([]string, error) {
	tickers, _, err := s.rest.FuturesApi.ListFuturesTickers(ctx, s.cfg.Settle, nil)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		if name := symbolpkg.Gate.FromExchange(t.Contract); name != "" {
			out = append(out, name)
		}
	}
	return out, nil
}
