package transcribe

import (
	"net/http"
	"time"

	"github.com/okian/cadhub/pkg/logger"
)

type settings struct {
	model      string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
	log        logger.Logger
}

// Option configures a Transcriber.
type Option func(*settings)

// WithModel sets the model size, e.g. "base" or "small".
func WithModel(m string) Option {
	return func(s *settings) {
		if m != "" {
			s.model = m
		}
	}
}

// WithAPIKey sets the bearer token.
func WithAPIKey(k string) Option {
	return func(s *settings) { s.apiKey = k }
}

// WithTimeout bounds one transcription.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithHTTPClient replaces the transport client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *settings) {
		if c != nil {
			s.httpClient = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) { s.log = l }
}
