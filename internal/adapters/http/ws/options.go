package ws

import (
	"net/http"

	"github.com/okian/cadhub/pkg/logger"
)

// Option configures a Handler.
type Option func(*Handler)

// WithSendBuffer sets the per-connection outbound queue size.
func WithSendBuffer(n int) Option {
	return func(h *Handler) {
		if n > 0 {
			h.sendBuffer = n
		}
	}
}

// WithAllowedOrigins restricts upgrades to the given origins. "*" or an
// empty list allows any origin.
func WithAllowedOrigins(origins []string) Option {
	return func(h *Handler) {
		allowed := make(map[string]bool, len(origins))
		for _, o := range origins {
			if o == "*" {
				return
			}
			allowed[o] = true
		}
		if len(allowed) == 0 {
			return
		}
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowed[origin]
		}
	}
}

// WithIDGenerator overrides connection id generation.
func WithIDGenerator(gen func() string) Option {
	return func(h *Handler) {
		if gen != nil {
			h.newID = gen
		}
	}
}

// WithLogger sets the handler logger.
func WithLogger(l logger.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.log = l
		}
	}
}
