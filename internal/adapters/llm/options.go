package llm

import (
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/okian/cadhub/pkg/logger"
)

// Option applies a configuration option to the Gateway.
type Option func(*Gateway)

// WithModel sets the default model name.
func WithModel(name string) Option {
	return func(g *Gateway) {
		if name != "" {
			g.model = name
		}
	}
}

// WithAPIKey sets the default bearer token. Local backends ignore it.
func WithAPIKey(key string) Option {
	return func(g *Gateway) { g.apiKey = key }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float32) Option {
	return func(g *Gateway) {
		if t >= 0 {
			g.temperature = t
		}
	}
}

// WithTimeout bounds each call, including any rate-limit wait.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithRateLimit throttles calls. A non-positive rate disables throttling.
func WithRateLimit(perSec float64, burst int) Option {
	return func(g *Gateway) {
		if perSec <= 0 {
			g.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(perSec), burst)
	}
}

// WithHTTPClient replaces the transport client.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Gateway) {
		if c != nil {
			g.httpClient = c
		}
	}
}

// WithLogger sets the gateway logger.
func WithLogger(l logger.Logger) Option {
	return func(g *Gateway) {
		if l != nil {
			g.log = l
		}
	}
}
