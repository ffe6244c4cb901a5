package serieshttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cryptoseries/internal/acquire"
	"cryptoseries/internal/analysis/visual"
	"cryptoseries/internal/market"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const day = int64(24 * time.Hour / time.Millisecond)

// stubSource serves a fixed daily history and can be told to fail.
type stubSource struct {
	bars    []market.Bar
	symbols []string
	err     error
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) FetchBars(_ context.Context, _, _ string, since int64, limit int) ([]market.Bar, error) {
	if s.err != nil {
		return nil, s.err
	}
	var out []market.Bar
	for _, b := range s.bars {
		if b.OpenTime >= since && len(out) < limit {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *stubSource) HasCapability(string) bool { return true }

func (s *stubSource) ListSymbols(context.Context) ([]string, error) { return s.symbols, nil }

func (s *stubSource) MaxLimit() int { return 3 }

type stubCharts struct{}

func (stubCharts) HTML(s *market.Series) ([]byte, error) {
	return []byte("<html>" + s.Symbol + "</html>"), nil
}

func (stubCharts) PNG(context.Context, *market.Series) (visual.ImageResult, error) {
	return visual.ImageResult{Bytes: []byte{0x89, 'P', 'N', 'G'}, Filename: "x.png"}, nil
}

func newTestServer(t *testing.T, src *stubSource) *Server {
	t.Helper()
	start := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	if src.bars == nil {
		for i := int64(0); i < 10; i++ {
			if i == 4 {
				continue
			}
			px := 100 + float64(i)
			src.bars = append(src.bars, market.Bar{OpenTime: start + i*day, Open: px, High: px + 1, Low: px - 1, Close: px + 0.5, Volume: 10})
		}
	}
	if src.symbols == nil {
		src.symbols = []string{"BTC/USDT", "ETH/USDT", "ETH/BTC"}
	}
	svc := acquire.NewService(map[string]market.Source{"stub": src}, acquire.ServiceConfig{DefaultExchange: "stub"})
	srv, err := NewServer(Config{Service: svc, Charts: stubCharts{}})
	require.NoError(t, err)
	return srv
}

func do(t *testing.T, srv *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &stubSource{})
	rec := do(t, srv, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"stub"`)
}

func TestSeries_FillsGapAndComputesIndicators(t *testing.T) {
	srv := newTestServer(t, &stubSource{})
	rec := do(t, srv, "/api/series?symbol=BTC/USDT&start=01_01_2021&end=10_01_2021&indicators=sma_2,bogus")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Plan struct {
			Limit   int              `json:"limit"`
			Windows []acquire.Window `json:"windows"`
		} `json:"plan"`
		Gaps       int `json:"gaps"`
		Indicators struct {
			Computed []string `json:"computed"`
			Ignored  []string `json:"ignored"`
		} `json:"indicators"`
		Series struct {
			Count   int              `json:"count"`
			Columns []string         `json:"columns"`
			Rows    []map[string]any `json:"rows"`
		} `json:"series"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 9, body.Plan.Limit)
	assert.Len(t, body.Plan.Windows, 3)
	assert.Equal(t, 1, body.Gaps)
	assert.Equal(t, []string{"sma_2"}, body.Indicators.Computed)
	assert.Equal(t, []string{"bogus"}, body.Indicators.Ignored)
	assert.Equal(t, 9, body.Series.Count)
	assert.Contains(t, body.Series.Columns, "sma_2")
	assert.Nil(t, body.Series.Rows[4]["close"])
}

func TestSeries_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		src    *stubSource
		target string
		status int
	}{
		{"missing symbol", &stubSource{}, "/api/series?start=2021-01-01&length=3", http.StatusBadRequest},
		{"bad date", &stubSource{}, "/api/series?symbol=BTC/USDT&start=yesterday", http.StatusBadRequest},
		{"unknown exchange", &stubSource{}, "/api/series?exchange=ftx&symbol=BTC/USDT&start=2021-01-01&length=3", http.StatusBadRequest},
		{"bad timeframe", &stubSource{}, "/api/series?symbol=BTC/USDT&start=2021-01-01&length=3&timeframe=7d", http.StatusBadRequest},
		{"unknown symbol", &stubSource{}, "/api/series?symbol=DOGE/EUR&start=2021-01-01&length=3", http.StatusNotFound},
		{"fetch failure", &stubSource{err: errors.New("503 service unavailable")}, "/api/series?symbol=BTC/USDT&start=2021-01-01&length=3", http.StatusBadGateway},
		{"empty range", &stubSource{bars: []market.Bar{}}, "/api/series?symbol=BTC/USDT&start=2021-01-01&length=3", http.StatusBadGateway},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newTestServer(t, tc.src)
			rec := do(t, srv, tc.target)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
		})
	}
}

func TestSymbols_QuoteFilter(t *testing.T) {
	srv := newTestServer(t, &stubSource{})
	rec := do(t, srv, "/api/symbols?quote=usdt")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Symbols []string `json:"symbols"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"BTC/USDT", "ETH/USDT"}, body.Symbols)
}

func TestTrend(t *testing.T) {
	srv := newTestServer(t, &stubSource{})
	rec := do(t, srv, "/api/series/trend?symbol=BTC/USDT&start=2021-01-01&length=10&horizon=2")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"report"`)
	assert.Contains(t, rec.Body.String(), `"horizon":2`)

	rec = do(t, srv, "/api/series/trend?symbol=BTC/USDT&start=2021-01-01&length=10&horizon=0")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChart(t *testing.T) {
	srv := newTestServer(t, &stubSource{})
	rec := do(t, srv, "/api/series/chart?symbol=BTC/USDT&start=2021-01-01&length=5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<html>BTC/USDT</html>", rec.Body.String())

	rec = do(t, srv, "/api/series/chart?symbol=BTC/USDT&start=2021-01-01&length=5&format=png")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
}

func TestParseDate(t *testing.T) {
	want := time.Date(2021, 1, 10, 0, 0, 0, 0, time.UTC)
	for _, raw := range []string{"10_01_2021", "2021-01-10", "2021-01-10T00:00:00Z", "1610236800000"} {
		got, err := parseDate(raw)
		require.NoError(t, err, raw)
		assert.True(t, want.Equal(got), raw)
	}
	_, err := parseDate("10/01/2021")
	assert.Error(t, err)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"sma_5", "rsi_14", "atr"}, splitList([]string{"sma_5, rsi_14", "atr", " "}))
}
