// Package binance serves USDT-M futures klines through the go-binance SDK.
package binance

import (
	"context"
	"fmt"
	"strings"

	"cryptoseries/internal/logger"
	"cryptoseries/internal/market"
	"cryptoseries/internal/pkg/convert"
	symbolpkg "cryptoseries/internal/pkg/symbol"

	"github.com/adshao/go-binance/v2/futures"
)

const maxHistoryLimit = 1500

var log = logger.Component("binance")

// Source 基于 go-binance SDK 实现 market.Source。
type Source struct {
	name   string
	cfg    Config
	client *futures.Client
}

func New(name string, cfg Config) *Source {
	final := cfg.withDefaults()
	client := futures.NewClient("", "")
	client.BaseURL = final.RESTBaseURL
	client.HTTPClient = final.HTTPClient
	if strings.TrimSpace(name) == "" {
		name = "binance"
	}
	return &Source{name: name, cfg: final, client: client}
}

func (s *Source) Name() string { return s.name }

func (s *Source) MaxLimit() int { return maxHistoryLimit }

func (s *Source) HasCapability(name string) bool {
	switch name {
	case market.CapFetchOHLCV, market.CapListSymbols:
		return true
	default:
		return false
	}
}

func (s *Source) FetchBars(ctx context.Context, symbol, interval string, since int64, limit int) ([]market.Bar, error) {
	if limit <= 0 || limit > maxHistoryLimit {
		return nil, fmt.Errorf("limit must be in [1, %d], got %d", maxHistoryLimit, limit)
	}
	// Binance requires symbols without slashes (e.g., ETHUSDT)
	cleanSymbol := symbolpkg.Binance.ToExchange(symbol)
	if cleanSymbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	interval = strings.ToLower(strings.TrimSpace(interval))
	if interval == "" {
		return nil, fmt.Errorf("interval is required")
	}
	kls, err := s.client.NewKlinesService().
		Symbol(cleanSymbol).
		Interval(interval).
		StartTime(since).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]market.Bar, 0, len(kls))
	for _, kl := range kls {
		if kl == nil {
			continue
		}
		vals, err := convert.ParseFields(kl.Open, kl.High, kl.Low, kl.Close, kl.Volume)
		if err != nil {
			return nil, market.MarkUnavailable(fmt.Errorf("kline %s@%d: %w", cleanSymbol, kl.OpenTime, err))
		}
		out = append(out, market.Bar{
			OpenTime: kl.OpenTime,
			Open:     vals[0],
			High:     vals[1],
			Low:      vals[2],
			Close:    vals[3],
			Volume:   vals[4],
		})
	}
	log.Debugf("%s %s since=%d limit=%d -> %d bars", cleanSymbol, interval, since, limit, len(out))
	return out, nil
}

// ListSymbols returns every trading perpetual contract as BASE/QUOTE.
func (s *Source) ListSymbols(ctx context.Context) ([]string, error) {
	info, err := s.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(info.Symbols))
	for _, sym := range info.Symbols {
		if !strings.EqualFold(sym.Status, "TRADING") {
			continue
		}
		if name := symbolpkg.Binance.FromParts(sym.BaseAsset, sym.QuoteAsset); name != "" {
			out = append(out, name)
		}
	}
	return out, nil
}
