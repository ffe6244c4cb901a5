package acquire

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"cryptoseries/internal/market"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSource struct {
	mock.Mock
	caps     map[string]bool
	maxLimit int
}

func (m *mockSource) Name() string { return "mock" }

func (m *mockSource) FetchBars(ctx context.Context, symbol, interval string, since int64, limit int) ([]market.Bar, error) {
	args := m.Called(ctx, symbol, interval, since, limit)
	bars, _ := args.Get(0).([]market.Bar)
	return bars, args.Error(1)
}

func (m *mockSource) HasCapability(name string) bool {
	if m.caps == nil {
		return true
	}
	return m.caps[name]
}

func (m *mockSource) ListSymbols(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	symbols, _ := args.Get(0).([]string)
	return symbols, args.Error(1)
}

func (m *mockSource) MaxLimit() int { return m.maxLimit }

var jan1 = time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)

func newService(src *mockSource, cfg ServiceConfig) *Service {
	if cfg.DefaultExchange == "" {
		cfg.DefaultExchange = "mock"
	}
	return NewService(map[string]market.Source{"Mock": src}, cfg)
}

func TestGetSeries_ChunksAndAssembles(t *testing.T) {
	src := &mockSource{maxLimit: 5}
	src.On("ListSymbols", mock.Anything).Return([]string{"BTCUSDT", "ETHUSDT"}, nil).Once()
	day := int64(24 * time.Hour / time.Millisecond)
	first := dailyBars(jan1.UnixMilli(), 5)
	// day 6 missing from the second window
	second := append(dailyBars(jan1.UnixMilli()+5*day, 1), dailyBars(jan1.UnixMilli()+7*day, 2)...)
	src.On("FetchBars", mock.Anything, "BTC/USDT", "1d", jan1.UnixMilli(), 5).Return(first, nil).Once()
	src.On("FetchBars", mock.Anything, "BTC/USDT", "1d", jan1.UnixMilli()+5*day, 4).Return(second, nil).Once()

	svc := newService(src, ServiceConfig{})
	end := jan1.AddDate(0, 0, 9)
	acq, err := svc.Acquire(context.Background(), Request{
		Symbol:     "btc/usdt",
		Start:      jan1,
		End:        &end,
		Timeframe:  "day",
		Indicators: []string{"super_trend", "trend_1d"},
	})
	require.NoError(t, err)
	src.AssertExpectations(t)

	assert.NotEmpty(t, acq.Plan.RequestID)
	assert.Equal(t, "mock", acq.Plan.Exchange)
	assert.Equal(t, []Window{{Since: jan1.UnixMilli(), Limit: 5}, {Since: jan1.UnixMilli() + 5*day, Limit: 4}}, acq.Plan.Windows)
	s := acq.Series
	require.Equal(t, 9, s.Len())
	assert.Equal(t, 1, acq.Gaps)
	closes, _ := s.Column(market.ColClose)
	assert.True(t, math.IsNaN(closes[6]))
	for _, col := range []string{"super_trend", "super_trend_lower", "super_trend_upper", "trend_1d"} {
		assert.True(t, s.HasColumn(col), col)
	}

	// symbol list is cached
	_, err = svc.Plan(context.Background(), Request{Symbol: "ETHUSDT", Start: jan1, Length: 5, Timeframe: "1d"})
	require.NoError(t, err)
	src.AssertNumberOfCalls(t, "ListSymbols", 1)
}

func TestGetSeries_LengthTakesPrecedence(t *testing.T) {
	src := &mockSource{caps: map[string]bool{market.CapFetchOHLCV: true}}
	src.On("FetchBars", mock.Anything, "ETH/USDT", "1h", jan1.UnixMilli(), 3).
		Return(dailyBars(jan1.UnixMilli(), 1), nil).Once()
	svc := newService(src, ServiceConfig{})
	end := jan1.AddDate(1, 0, 0)
	s, err := svc.GetSeries(context.Background(), Request{Symbol: "ETH/USDT", Start: jan1, End: &end, Length: 3, Timeframe: "hour"})
	require.NoError(t, err)
	assert.Equal(t, 3, s.Len())
	src.AssertNotCalled(t, "ListSymbols", mock.Anything)
}

func TestGetSeries_DefaultsEndToNow(t *testing.T) {
	src := &mockSource{caps: map[string]bool{market.CapFetchOHLCV: true}}
	svc := newService(src, ServiceConfig{})
	svc.now = func() time.Time { return jan1.Add(5*time.Hour + 30*time.Minute) }
	src.On("FetchBars", mock.Anything, "BTC/USDT", "1h", jan1.UnixMilli(), 5).
		Return(dailyBars(jan1.UnixMilli(), 1), nil).Once()

	plan, err := svc.Plan(context.Background(), Request{Symbol: "BTC/USDT", Start: jan1, Timeframe: "1h"})
	require.NoError(t, err)
	assert.Equal(t, 5, plan.Limit)
	assert.Equal(t, jan1.Add(5*time.Hour).UnixMilli(), plan.End)

	s, err := svc.GetSeries(context.Background(), Request{Symbol: "BTC/USDT", Start: jan1, Timeframe: "1h"})
	require.NoError(t, err)
	assert.Equal(t, 5, s.Len())
}

func TestGetSeries_ConfigurationErrors(t *testing.T) {
	before := jan1.AddDate(0, 0, -1)
	cases := []struct {
		name  string
		req   Request
		field string
	}{
		{"unknown exchange", Request{Exchange: "ftx", Symbol: "BTC/USDT", Start: jan1, Length: 5, Timeframe: "1d"}, "exchange"},
		{"bad timeframe", Request{Symbol: "BTC/USDT", Start: jan1, Length: 5, Timeframe: "2w"}, "timeframe"},
		{"missing start", Request{Symbol: "BTC/USDT", Length: 5, Timeframe: "1d"}, "start"},
		{"end before start", Request{Symbol: "BTC/USDT", Start: jan1, End: &before, Timeframe: "1d"}, "end"},
		{"range too short", Request{Symbol: "BTC/USDT", Start: jan1, End: ptr(jan1.Add(12 * time.Hour)), Timeframe: "1d"}, "range"},
		{"length above cap", Request{Symbol: "BTC/USDT", Start: jan1, Length: 1001, Timeframe: "1d"}, "length"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			src := &mockSource{}
			svc := newService(src, ServiceConfig{MaxLength: map[string]int{"mock": 1000}})
			_, err := svc.GetSeries(context.Background(), tc.req)
			var cfgErr *ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tc.field, cfgErr.Field)
			src.AssertNotCalled(t, "FetchBars", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			src.AssertNotCalled(t, "ListSymbols", mock.Anything)
		})
	}
}

func ptr[T any](v T) *T { return &v }

func TestGetSeries_SymbolNotFound(t *testing.T) {
	src := &mockSource{}
	src.On("ListSymbols", mock.Anything).Return([]string{"ETH/USDT"}, nil)
	svc := newService(src, ServiceConfig{})
	_, err := svc.GetSeries(context.Background(), Request{Symbol: "BTC/USDT", Start: jan1, Length: 3, Timeframe: "1d"})
	assert.ErrorIs(t, err, ErrSymbolNotFound)

	noOHLCV := &mockSource{caps: map[string]bool{market.CapListSymbols: true}}
	svc = newService(noOHLCV, ServiceConfig{})
	_, err = svc.GetSeries(context.Background(), Request{Symbol: "BTC/USDT", Start: jan1, Length: 3, Timeframe: "1d"})
	assert.ErrorIs(t, err, ErrSymbolNotFound)
	noOHLCV.AssertNotCalled(t, "ListSymbols", mock.Anything)
}

func TestGetSeries_AnyWindowFailureAborts(t *testing.T) {
	src := &mockSource{caps: map[string]bool{market.CapFetchOHLCV: true}, maxLimit: 2}
	day := int64(24 * time.Hour / time.Millisecond)
	src.On("FetchBars", mock.Anything, "BTC/USDT", "1d", jan1.UnixMilli(), 2).Return(dailyBars(jan1.UnixMilli(), 2), nil)
	src.On("FetchBars", mock.Anything, "BTC/USDT", "1d", jan1.UnixMilli()+2*day, 2).Return(nil, errors.New("HTTP 429 Too Many Requests"))
	svc := newService(src, ServiceConfig{})
	s, err := svc.GetSeries(context.Background(), Request{Symbol: "BTC/USDT", Start: jan1, Length: 4, Timeframe: "1d"})
	assert.Nil(t, s)
	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, 1, fetchErr.Failed)
	assert.Equal(t, 2, fetchErr.Total)
	assert.ErrorIs(t, err, market.ErrTransient)
}

func TestGetSeries_WindowSizeOverride(t *testing.T) {
	src := &mockSource{caps: map[string]bool{market.CapFetchOHLCV: true}}
	src.On("FetchBars", mock.Anything, "BTC/USDT", "1d", jan1.UnixMilli(), 30).
		Return(dailyBars(jan1.UnixMilli(), 30), nil).Once()
	svc := newService(src, ServiceConfig{WindowSizes: map[string]int{"1d": 0}})
	plan, err := svc.Plan(context.Background(), Request{Symbol: "BTC/USDT", Start: jan1, Length: 30, Timeframe: "1d"})
	require.NoError(t, err)
	assert.Len(t, plan.Windows, 1)
	_, err = svc.GetSeries(context.Background(), Request{Symbol: "BTC/USDT", Start: jan1, Length: 30, Timeframe: "1d"})
	require.NoError(t, err)
}

func TestGetSeries_KeepOnlyRequested(t *testing.T) {
	src := &mockSource{caps: map[string]bool{market.CapFetchOHLCV: true}}
	src.On("FetchBars", mock.Anything, "BTC/USDT", "1d", jan1.UnixMilli(), 20).
		Return(dailyBars(jan1.UnixMilli(), 20), nil).Once()
	svc := newService(src, ServiceConfig{})
	s, err := svc.GetSeries(context.Background(), Request{
		Symbol: "BTC/USDT", Start: jan1, Length: 20, Timeframe: "1d",
		Indicators: []string{"close", "sma_5"}, KeepOnlyRequested: true,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{market.ColClose, "sma_5"}, s.Columns())
}

func TestListSymbols(t *testing.T) {
	src := &mockSource{}
	src.On("ListSymbols", mock.Anything).Return([]string{"ETHBTC", "BTCUSDT", "SOL_USDT"}, nil).Once()
	svc := newService(src, ServiceConfig{})
	all, err := svc.ListSymbols(context.Background(), "", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"BTC/USDT", "ETH/BTC", "SOL/USDT"}, all)
	usdt, err := svc.ListSymbols(context.Background(), "MOCK", "usdt")
	require.NoError(t, err)
	assert.Equal(t, []string{"BTC/USDT", "SOL/USDT"}, usdt)
	assert.Equal(t, []string{"mock"}, svc.Exchanges())

	src.On("ListSymbols", mock.Anything).Return(nil, errors.New("boom"))
	svc = newService(src, ServiceConfig{})
	_, err = svc.ListSymbols(context.Background(), "", "")
	var fetchErr *FetchError
	assert.ErrorAs(t, err, &fetchErr)
}

func TestPlan_EndMidDayCoversWholeDaysOnly(t *testing.T) {
	src := &mockSource{caps: map[string]bool{market.CapFetchOHLCV: true}}
	src.On("FetchBars", mock.Anything, "BTC/USDT", "1h", jan1.UnixMilli(), 24).
		Return(dailyBars(jan1.UnixMilli(), 1), nil).Once()
	svc := newService(src, ServiceConfig{})
	end := jan1.Add(36 * time.Hour)
	req := Request{Symbol: "BTC/USDT", Start: jan1, End: &end, Timeframe: "1h"}

	plan, err := svc.Plan(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 24, plan.Limit)
	assert.Equal(t, jan1.Add(24*time.Hour).UnixMilli(), plan.End)
	total := 0
	for _, w := range plan.Windows {
		total += w.Limit
	}
	assert.Equal(t, plan.Limit, total)

	acq, err := svc.Acquire(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, plan.Limit, acq.Series.Len())
	src.AssertExpectations(t)
}
