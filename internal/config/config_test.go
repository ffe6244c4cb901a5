package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
app:
  log_level: debug
market:
  sources:
    - name: binance
      enabled: true
      max_length: 5000
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, defaultAppHTTPAddr, cfg.App.HTTPAddr)
	require.Len(t, cfg.Market.Sources, 1)
	src := cfg.Market.Sources[0]
	assert.Equal(t, KindBinance, src.Kind)
	assert.Equal(t, "https://fapi.binance.com", src.RESTBaseURL)
	assert.Equal(t, 5000, src.MaxLength)
	assert.Equal(t, defaultBreakerThreshold, src.Breaker.FailureThreshold)
	assert.Equal(t, "binance", cfg.Market.ActiveSource)
	assert.Equal(t, defaultMaxConcurrent, cfg.Acquire.MaxConcurrent)
	assert.Equal(t, defaultSuperTrendWindow, cfg.Indicators.SuperTrend.ATRWindow)
	assert.Equal(t, float64(defaultSuperTrendMult), cfg.Indicators.SuperTrend.Multiplier)
	assert.True(t, cfg.Indicators.WarnUnsupported)
}

func TestLoad_ExplicitFalseIsKept(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.yaml", `
indicators:
  warn_unsupported: false
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.Indicators.WarnUnsupported)
}

func TestLoad_IncludeChain(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
acquire:
  max_concurrent: 2
  window_sizes:
    1D: 5
market:
  sources:
    - name: gate
      enabled: true
`)
	path := writeFile(t, dir, "config.yaml", `
include:
  - base.yaml
acquire:
  max_concurrent: 8
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Acquire.MaxConcurrent)
	assert.Equal(t, 5, cfg.Acquire.WindowSizes["1d"])
	require.Len(t, cfg.Market.Sources, 1)
	assert.Equal(t, KindGate, cfg.Market.Sources[0].Kind)
	assert.Equal(t, "https://api.gateio.ws/api/v4", cfg.Market.Sources[0].RESTBaseURL)
}

func TestLoad_IncludeCycle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "include:\n  - b.yaml\n")
	writeFile(t, dir, "b.yaml", "include:\n  - a.yaml\n")
	_, err := Load(filepath.Join(dir, "a.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "include cycle")
}

func TestLoad_Validation(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{
			name: "unknown kind",
			body: "market:\n  sources:\n    - name: kraken\n      enabled: true\n",
			want: "unsupported kind",
		},
		{
			name: "no enabled source",
			body: "market:\n  sources:\n    - name: binance\n      enabled: false\n",
			want: "at least one enabled source",
		},
		{
			name: "bad window size key",
			body: "acquire:\n  window_sizes:\n    3w: 10\n",
			want: "unsupported timeframe",
		},
		{
			name: "bad log level",
			body: "app:\n  log_level: loud\n",
			want: "app.log_level",
		},
		{
			name: "proxy without url",
			body: "market:\n  sources:\n    - name: binance\n      enabled: true\n      proxy:\n        enabled: true\n",
			want: "proxy.rest_url",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "config.yaml", tc.body)
			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("CRYPTOSERIES_APP_HTTP_ADDR", ":7000")
	path := writeFile(t, t.TempDir(), "config.yaml", "app:\n  env: test\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.App.HTTPAddr)
	assert.Equal(t, "test", cfg.App.Env)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, validate(cfg))
	src := cfg.Market.ResolveActiveSource()
	assert.Equal(t, "binance", src.Name)
	assert.True(t, src.Enabled)
}
