package gate

import (
	"net/http"
	"strings"
	"time"
)

type Config struct {
	RESTBaseURL string
	HTTPClient  *http.Client
	// Settle is the futures settlement currency, "usdt" unless set.
	Settle string
}

func (c Config) withDefaults() Config {
	c.RESTBaseURL = strings.TrimRight(strings.TrimSpace(c.RESTBaseURL), "/")
	if c.RESTBaseURL == "" {
		c.RESTBaseURL = defaultGateREST
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	c.Settle = strings.ToLower(strings.TrimSpace(c.Settle))
	if c.Settle == "" {
		c.Settle = defaultSettle
	}
	return c
}
