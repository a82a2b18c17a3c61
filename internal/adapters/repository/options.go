package repository

import (
	"time"

	"github.com/okian/cadhub/pkg/logger"
)

// Option applies a configuration option to the ResultStore.
type Option func(*ResultStore)

// WithTTL sets how long a request stays retrievable after creation.
func WithTTL(ttl time.Duration) Option {
	return func(s *ResultStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithSweepInterval sets the period of the background eviction sweep.
func WithSweepInterval(interval time.Duration) Option {
	return func(s *ResultStore) {
		if interval > 0 {
			s.sweepInterval = interval
		}
	}
}

// WithClock replaces the time source; tests use it to step time.
func WithClock(now func() time.Time) Option {
	return func(s *ResultStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) Option {
	return func(s *ResultStore) {
		if l != nil {
			s.log = l
		}
	}
}
