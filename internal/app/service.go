// Package service provides the Hub: the coordinator that routes parameters
// and geometry between web clients, CAD clients and the completion backend.
package service

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/cadhub/internal/adapters/llm"
	"github.com/okian/cadhub/internal/adapters/mq/queue"
	"github.com/okian/cadhub/internal/adapters/repository"
	"github.com/okian/cadhub/internal/adapters/transcribe"
	"github.com/okian/cadhub/internal/adapters/transport"
	"github.com/okian/cadhub/internal/domain/model"
	"github.com/okian/cadhub/internal/domain/registry"
	"github.com/okian/cadhub/internal/domain/scene"
	"github.com/okian/cadhub/pkg/logger"
)

// NoChangesMessage is stored on requests whose completion proposed nothing
// applicable to the current schema.
const NoChangesMessage = "No parameter changes applicable to the current parameters."

// Completer is the completion backend.
type Completer interface {
	Complete(ctx context.Context, prompt string, schema model.Schema, ov llm.Overrides) (string, error)
}

// Deliverer carries parameter updates to the CAD side.
type Deliverer interface {
	Deliver(ctx context.Context, requestID string, params model.ParameterUpdate) (transport.Outcome, error)
}

// Transcriber turns uploaded audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, filename string, r io.Reader) (transcribe.Result, error)
}

// JobQueue accepts prompts from push connections so a slow completion
// does not stall the connection's read loop. Enqueue must not block.
type JobQueue interface {
	Enqueue(ctx context.Context, j queue.Job) bool
}

// Origin identifies where an inbound call came from. ConnID is empty for
// plain HTTP callers, which have no push channel to answer on.
type Origin struct {
	ConnID string
	Source string
}

// HTTPOrigin is the origin of every REST call.
var HTTPOrigin = Origin{Source: model.SourceHTTP}

// Hub coordinates clients, requests and the shared scene. Each inbound
// call runs on the caller's goroutine; the owned state objects carry
// their own locks.
type Hub struct {
	mu sync.RWMutex

	registry    *registry.Registry
	results     *repository.ResultStore
	scene       *scene.Scene
	gateway     Completer
	dispatcher  Deliverer
	transcriber Transcriber
	jobs        JobQueue

	clamp bool
	newID func() string
	now   func() time.Time

	started   bool
	startedAt time.Time
	cancel    context.CancelFunc
	wg        sync.WaitGroup

	logger logger.Logger
}

// New constructs a Hub. Components not supplied through options get
// in-memory defaults; the gateway and dispatcher must be supplied before
// prompts or updates are accepted.
func New(opts ...Option) *Hub {
	h := &Hub{
		clamp: true,
		newID: uuid.NewString,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = logger.Get().Named("hub")
	}
	if h.registry == nil {
		h.registry = registry.New()
	}
	if h.results == nil {
		h.results = repository.NewResultStore(repository.WithLogger(h.logger.Named("results")))
	}
	if h.scene == nil {
		h.scene = scene.New(h.now)
	}
	if h.dispatcher == nil {
		h.dispatcher = transport.NewDispatcher(h.registry, transport.WithLogger(h.logger.Named("transport")))
	}
	return h
}

// Registry exposes the client registry for transport adapters.
func (h *Hub) Registry() *registry.Registry { return h.registry }

// Start launches the result sweep.
func (h *Hub) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.started {
		return nil
	}

	sweepCtx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		_ = h.results.Run(sweepCtx)
	}()

	h.started = true
	h.startedAt = h.now()
	h.logger.Info(ctx, "hub started",
		logger.Duration("result_ttl", h.results.TTL()),
		logger.Bool("clamp_values", h.clamp))
	return nil
}

// Stop halts the sweep. Connections are closed by their transport.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.started {
		return
	}
	h.cancel()
	h.wg.Wait()
	h.started = false
	h.logger.Info(context.Background(), "hub stopped")
}

// Result returns a stored request, or repository.ErrNotFound.
func (h *Hub) Result(ctx context.Context, id string) (model.Request, error) {
	return h.results.Get(ctx, id)
}

// Schema returns the current parameter schema.
func (h *Hub) Schema() model.Schema { return h.scene.Schema() }

// Transcribe forwards audio to the transcription collaborator.
func (h *Hub) Transcribe(ctx context.Context, filename string, r io.Reader) (transcribe.Result, error) {
	if h.transcriber == nil {
		return transcribe.Result{}, transcribe.ErrDisabled
	}
	return h.transcriber.Transcribe(ctx, filename, r)
}

// GetStats returns hub statistics for health and monitoring endpoints.
func (h *Hub) GetStats() map[string]interface{} {
	h.mu.RLock()
	started, startedAt := h.started, h.startedAt
	h.mu.RUnlock()

	web, cad := h.registry.Counts()
	snap := h.scene.Snapshot()
	stats := map[string]interface{}{
		"started":           started,
		"web_clients":       web,
		"cad_clients":       cad,
		"stored_results":    h.results.Len(),
		"schema_parameters": len(snap.Schema),
		"has_geometry":      snap.Geometry != nil,
		"transcription":     h.transcriber != nil,
		"async_prompts":     h.jobs != nil,
	}
	if started {
		stats["uptime_seconds"] = h.now().Sub(startedAt).Seconds()
	}
	return stats
}
