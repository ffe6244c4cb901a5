package gateway

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"cryptoseries/internal/config"
	"cryptoseries/internal/market"
	"cryptoseries/internal/pkg/circuit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockSource struct {
	mock.Mock
}

func (m *mockSource) Name() string { return "mock" }

func (m *mockSource) FetchBars(ctx context.Context, symbol, interval string, since int64, limit int) ([]market.Bar, error) {
	args := m.Called(ctx, symbol, interval, since, limit)
	bars, _ := args.Get(0).([]market.Bar)
	return bars, args.Error(1)
}

func (m *mockSource) HasCapability(name string) bool { return true }

func (m *mockSource) ListSymbols(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	symbols, _ := args.Get(0).([]string)
	return symbols, args.Error(1)
}

func (m *mockSource) MaxLimit() int { return 10 }

func newBreaker() *circuit.CircuitBreaker {
	cb := circuit.NewCircuitBreaker("mock", 2, time.Hour)
	cb.SetStateChangeHandler(func(string, circuit.State, circuit.State) {})
	return cb
}

func TestGuarded_OpensOnTransientErrors(t *testing.T) {
	src := new(mockSource)
	src.On("FetchBars", mock.Anything, "BTC/USDT", "1d", int64(0), 5).
		Return(nil, errors.New("503 service unavailable")).Twice()
	g := NewGuarded(src, newBreaker())

	for i := 0; i < 2; i++ {
		_, err := g.FetchBars(context.Background(), "BTC/USDT", "1d", 0, 5)
		require.Error(t, err)
		assert.ErrorIs(t, err, market.ErrTransient)
	}
	assert.Equal(t, circuit.StateOpen, g.Breaker())

	_, err := g.FetchBars(context.Background(), "BTC/USDT", "1d", 0, 5)
	assert.ErrorIs(t, err, circuit.ErrOpen)
	assert.ErrorIs(t, err, market.ErrTransient)
	src.AssertNumberOfCalls(t, "FetchBars", 2)
}

func TestGuarded_PermanentErrorsDoNotTrip(t *testing.T) {
	src := new(mockSource)
	src.On("FetchBars", mock.Anything, "XYZ/USDT", "1d", int64(0), 5).
		Return(nil, errors.New("invalid symbol"))
	g := NewGuarded(src, newBreaker())

	for i := 0; i < 3; i++ {
		_, err := g.FetchBars(context.Background(), "XYZ/USDT", "1d", 0, 5)
		require.Error(t, err)
		assert.NotErrorIs(t, err, market.ErrTransient)
	}
	assert.Equal(t, circuit.StateClosed, g.Breaker())
}

func TestGuarded_PassesThroughSuccess(t *testing.T) {
	src := new(mockSource)
	bars := []market.Bar{{OpenTime: 1, Close: 2}}
	src.On("FetchBars", mock.Anything, "BTC/USDT", "1h", int64(1), 1).Return(bars, nil)
	src.On("ListSymbols", mock.Anything).Return([]string{"BTC/USDT"}, nil)
	g := NewGuarded(src, newBreaker())

	got, err := g.FetchBars(context.Background(), "BTC/USDT", "1h", 1, 1)
	require.NoError(t, err)
	assert.Equal(t, bars, got)
	symbols, err := g.ListSymbols(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"BTC/USDT"}, symbols)
	assert.Equal(t, 10, g.MaxLimit())
}

func TestNewSourcesFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Market.Sources = []config.MarketSource{
		{Name: "binance", Kind: config.KindBinance, Enabled: true, RESTBaseURL: "https://fapi.binance.com", TimeoutSeconds: 5, Breaker: config.BreakerConfig{FailureThreshold: 3, CooldownSeconds: 10}},
		{Name: "spot", Kind: config.KindBinanceSpot, Enabled: true, TimeoutSeconds: 5},
		{Name: "gate", Kind: config.KindGate, Enabled: false},
	}
	sources, err := NewSourcesFromConfig(cfg)
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, 1500, sources["binance"].MaxLimit())
	assert.Equal(t, "spot", sources["spot"].Name())
	assert.NotContains(t, sources, "gate")
}

func TestNewSource_UnknownKind(t *testing.T) {
	_, err := NewSource(config.MarketSource{Name: "x", Kind: "kraken"})
	assert.Error(t, err)
}

func TestHTTPClient_Proxy(t *testing.T) {
	entry := config.MarketSource{Name: "binance", TimeoutSeconds: 7}
	client, err := httpClient(entry)
	require.NoError(t, err)
	assert.Equal(t, 7*time.Second, client.Timeout)
	assert.Nil(t, client.Transport)

	entry.Proxy = config.ProxyConfig{Enabled: true, RESTURL: "http://127.0.0.1:7890"}
	client, err = httpClient(entry)
	require.NoError(t, err)
	transport, ok := client.Transport.(*http.Transport)
	require.True(t, ok)
	req, _ := http.NewRequest(http.MethodGet, "https://fapi.binance.com/fapi/v1/klines", nil)
	proxy, err := transport.Proxy(req)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7890", proxy.Host)

	entry.Proxy.RESTURL = "http://[::1"
	_, err = httpClient(entry)
	assert.Error(t, err)
}
