package binance

import (
	"net/http"
	"strings"
	"time"
)

const defaultRESTBase = "https://fapi.binance.com"

// Config 描述 U 本位合约行情源；HTTPClient 由调用方注入（代理在那里配置）。
type Config struct {
	RESTBaseURL string
	HTTPClient  *http.Client
}

func (c Config) withDefaults() Config {
	c.RESTBaseURL = strings.TrimRight(strings.TrimSpace(c.RESTBaseURL), "/")
	if c.RESTBaseURL == "" {
		c.RESTBaseURL = defaultRESTBase
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	return c
}
