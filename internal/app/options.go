package service

import (
	"time"

	"github.com/okian/cadhub/internal/adapters/repository"
	"github.com/okian/cadhub/internal/domain/registry"
	"github.com/okian/cadhub/internal/domain/scene"
	"github.com/okian/cadhub/pkg/logger"
)

// Option applies a configuration option to the Hub.
type Option func(*Hub)

// WithRegistry shares a registry with other components, e.g. the dispatcher.
func WithRegistry(r *registry.Registry) Option {
	return func(h *Hub) { h.registry = r }
}

// WithResultStore sets the request store.
func WithResultStore(s *repository.ResultStore) Option {
	return func(h *Hub) { h.results = s }
}

// WithScene sets the schema and geometry holder.
func WithScene(s *scene.Scene) Option {
	return func(h *Hub) { h.scene = s }
}

// WithGateway sets the completion backend.
func WithGateway(g Completer) Option {
	return func(h *Hub) { h.gateway = g }
}

// WithDispatcher sets the CAD delivery path.
func WithDispatcher(d Deliverer) Option {
	return func(h *Hub) { h.dispatcher = d }
}

// WithTranscriber enables POST /transcribe.
func WithTranscriber(t Transcriber) Option {
	return func(h *Hub) { h.transcriber = t }
}

// WithJobQueue runs push chat_request frames off the read goroutine.
// Without it they run inline.
func WithJobQueue(q JobQueue) Option {
	return func(h *Hub) { h.jobs = q }
}

// WithClampValues toggles clamping of accepted values into their bounds.
func WithClampValues(clamp bool) Option {
	return func(h *Hub) { h.clamp = clamp }
}

// WithIDGenerator replaces uuid request ids; tests use it for stable ids.
func WithIDGenerator(gen func() string) Option {
	return func(h *Hub) {
		if gen != nil {
			h.newID = gen
		}
	}
}

// WithClock sets the time source for chat timestamps and uptime.
func WithClock(now func() time.Time) Option {
	return func(h *Hub) {
		if now != nil {
			h.now = now
		}
	}
}

// WithLogger sets a custom logger for the hub.
func WithLogger(l logger.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}
