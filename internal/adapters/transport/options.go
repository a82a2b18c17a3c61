package transport

import (
	"net/http"
	"time"

	"github.com/okian/cadhub/pkg/logger"
)

// Option applies a configuration option to the Dispatcher.
type Option func(*Dispatcher)

// WithListenerURL sets the HTTP fallback target. Empty disables the fallback.
func WithListenerURL(url string) Option {
	return func(d *Dispatcher) { d.listenerURL = url }
}

// WithTimeout bounds the HTTP fallback call.
func WithTimeout(t time.Duration) Option {
	return func(d *Dispatcher) {
		if t > 0 {
			d.timeout = t
		}
	}
}

// WithHTTPClient replaces the fallback client.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Dispatcher) {
		if c != nil {
			d.httpClient = c
		}
	}
}

// WithLogger sets the dispatcher logger.
func WithLogger(l logger.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.log = l
		}
	}
}
