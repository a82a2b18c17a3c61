package registry

import "time"

// Option applies a configuration option to the Registry.
type Option func(*Registry)

// WithClock sets the time source used for connected-since stamps.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}
