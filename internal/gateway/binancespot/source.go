// Package binancespot reads spot klines from Binance's public REST API.
package binancespot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cryptoseries/internal/logger"
	"cryptoseries/internal/market"
	"cryptoseries/internal/pkg/convert"
	symbolpkg "cryptoseries/internal/pkg/symbol"

	"github.com/tidwall/gjson"
)

const (
	defaultBaseURL  = "https://api.binance.com"
	maxHistoryLimit = 1000
	klinesPath      = "/api/v3/klines"
	exchangeInfo    = "/api/v3/exchangeInfo"
)

var log = logger.Component("binance-spot")

// Source 基于 Binance 现货 REST /api/v3/klines。
type Source struct {
	name    string
	baseURL string
	client  *http.Client
}

func New(name, base string, client *http.Client) *Source {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		base = defaultBaseURL
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if strings.TrimSpace(name) == "" {
		name = "binance-spot"
	}
	return &Source{name: name, baseURL: base, client: client}
}

func (s *Source) Name() string { return s.name }

func (s *Source) MaxLimit() int { return maxHistoryLimit }

func (s *Source) HasCapability(name string) bool {
	return name == market.CapFetchOHLCV || name == market.CapListSymbols
}

func (s *Source) FetchBars(ctx context.Context, symbol, interval string, since int64, limit int) ([]market.Bar, error) {
	if limit <= 0 || limit > maxHistoryLimit {
		return nil, fmt.Errorf("limit must be in [1, %d], got %d", maxHistoryLimit, limit)
	}
	pair := symbolpkg.Binance.ToExchange(symbol)
	if pair == "" || strings.TrimSpace(interval) == "" {
		return nil, fmt.Errorf("symbol/interval cannot be empty")
	}
	q := url.Values{}
	q.Set("symbol", pair)
	q.Set("interval", strings.TrimSpace(interval))
	q.Set("startTime", strconv.FormatInt(since, 10))
	q.Set("limit", strconv.Itoa(limit))
	body, err := s.get(ctx, klinesPath, q)
	if err != nil {
		return nil, err
	}
	rows := gjson.ParseBytes(body)
	if !rows.IsArray() {
		return nil, market.MarkUnavailable(fmt.Errorf("unexpected klines payload for %s", pair))
	}
	out := make([]market.Bar, 0, len(rows.Array()))
	var parseErr error
	rows.ForEach(func(_, row gjson.Result) bool {
		bar, err := parseKline(row)
		if err != nil {
			parseErr = fmt.Errorf("kline %s: %w", pair, err)
			return false
		}
		out = append(out, bar)
		return true
	})
	if parseErr != nil {
		return nil, market.MarkUnavailable(parseErr)
	}
	log.Debugf("%s %s since=%d limit=%d -> %d bars", pair, interval, since, limit, len(out))
	return out, nil
}

// parseKline reads [openTime, "open", "high", "low", "close", "volume", closeTime, ...].
func parseKline(row gjson.Result) (market.Bar, error) {
	fields := row.Array()
	if len(fields) < 6 {
		return market.Bar{}, fmt.Errorf("kline row has %d fields", len(fields))
	}
	vals, err := convert.ParseFields(fields[1].String(), fields[2].String(), fields[3].String(), fields[4].String(), fields[5].String())
	if err != nil {
		return market.Bar{}, err
	}
	return market.Bar{
		OpenTime: fields[0].Int(),
		Open:     vals[0],
		High:     vals[1],
		Low:      vals[2],
		Close:    vals[3],
		Volume:   vals[4],
	}, nil
}

// ListSymbols returns the spot pairs currently trading.
func (s *Source) ListSymbols(ctx context.Context) ([]string, error) {
	body, err := s.get(ctx, exchangeInfo, nil)
	if err != nil {
		return nil, err
	}
	symbols := gjson.GetBytes(body, "symbols")
	out := make([]string, 0, len(symbols.Array()))
	symbols.ForEach(func(_, sym gjson.Result) bool {
		if sym.Get("status").String() != "TRADING" {
			return true
		}
		if name := symbolpkg.Binance.FromParts(sym.Get("baseAsset").String(), sym.Get("quoteAsset").String()); name != "" {
			out = append(out, name)
		}
		return true
	})
	return out, nil
}

func (s *Source) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	u, err := url.Parse(s.baseURL + path)
	if err != nil {
		return nil, err
	}
	if len(q) > 0 {
		u.RawQuery = q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return nil, apiError(resp.StatusCode, body)
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("binance spot returned invalid json from %s", path)
	}
	return body, nil
}

// apiError keeps Binance's numeric code in the message so rate-limit codes classify as transient.
func apiError(status int, body []byte) error {
	code := gjson.GetBytes(body, "code")
	msg := gjson.GetBytes(body, "msg").String()
	if code.Exists() {
		return fmt.Errorf("binance spot status %d: code=%d, msg=%s", status, code.Int(), msg)
	}
	return fmt.Errorf("binance spot status %d", status)
}
