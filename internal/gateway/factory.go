// Package gateway builds market sources from configuration.
package gateway

import (
	"fmt"
	"net/http"
	"net/url"

	"cryptoseries/internal/config"
	"cryptoseries/internal/gateway/binance"
	"cryptoseries/internal/gateway/binancespot"
	"cryptoseries/internal/gateway/gate"
	"cryptoseries/internal/logger"
	"cryptoseries/internal/market"
	"cryptoseries/internal/pkg/circuit"
)

var log = logger.Component("gateway")

// NewSourcesFromConfig builds one breaker-guarded source per enabled entry, keyed by name.
func NewSourcesFromConfig(cfg *config.Config) (map[string]market.Source, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	out := make(map[string]market.Source)
	for _, entry := range cfg.Market.EnabledSources() {
		src, err := NewSource(entry)
		if err != nil {
			return nil, fmt.Errorf("market source %s: %w", entry.Name, err)
		}
		breaker := circuit.NewCircuitBreaker(entry.Name, entry.Breaker.FailureThreshold, entry.Breaker.Cooldown())
		out[entry.Name] = NewGuarded(src, breaker)
		log.Infof("source %s ready (kind=%s, rest=%s, max_limit=%d)", entry.Name, entry.Kind, entry.RESTBaseURL, src.MaxLimit())
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no enabled market source")
	}
	return out, nil
}

// NewSource builds the unguarded source for one config entry.
func NewSource(entry config.MarketSource) (market.Source, error) {
	client, err := httpClient(entry)
	if err != nil {
		return nil, err
	}
	switch entry.Kind {
	case config.KindBinance:
		return binance.New(entry.Name, binance.Config{RESTBaseURL: entry.RESTBaseURL, HTTPClient: client}), nil
	case config.KindGate:
		return gate.New(entry.Name, gate.Config{RESTBaseURL: entry.RESTBaseURL, HTTPClient: client}), nil
	case config.KindBinanceSpot:
		return binancespot.New(entry.Name, entry.RESTBaseURL, client), nil
	default:
		return nil, fmt.Errorf("unsupported market source kind: %s", entry.Kind)
	}
}

// httpClient applies the per-source timeout and optional REST proxy.
func httpClient(entry config.MarketSource) (*http.Client, error) {
	client := &http.Client{Timeout: entry.Timeout()}
	if !entry.Proxy.Enabled || entry.Proxy.RESTURL == "" {
		return client, nil
	}
	proxyURL, err := url.Parse(entry.Proxy.RESTURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REST proxy url: %w", err)
	}
	baseTransport, ok := http.DefaultTransport.(*http.Transport)
	if !ok || baseTransport == nil {
		return nil, fmt.Errorf("http DefaultTransport is not *http.Transport")
	}
	transport := baseTransport.Clone()
	transport.Proxy = http.ProxyURL(proxyURL)
	client.Transport = transport
	return client, nil
}
