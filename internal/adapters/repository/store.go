// Package repository holds request state between creation and TTL expiry.
package repository

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/okian/cadhub/internal/domain/model"
	"github.com/okian/cadhub/pkg/logger"
	"github.com/okian/cadhub/pkg/metrics"
)

// Completion is the payload of a successful result. Nil fields leave the
// stored value untouched.
type Completion struct {
	Params   model.ParameterUpdate
	Geometry json.RawMessage
	Message  string
	Source   string
}

// ResultStore is a TTL-expiring map of request id to Request. One mutex
// serialises every mutation and the sweep.
type ResultStore struct {
	mu      sync.Mutex
	records map[string]*model.Request

	ttl           time.Duration
	sweepInterval time.Duration
	now           func() time.Time
	log           logger.Logger
}

// NewResultStore creates an empty store.
func NewResultStore(opts ...Option) *ResultStore {
	s := &ResultStore{
		records:       make(map[string]*model.Request),
		ttl:           300 * time.Second,
		sweepInterval: 60 * time.Second,
		now:           time.Now,
		log:           logger.Get().Named("results"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL returns the configured retention.
func (s *ResultStore) TTL() time.Duration { return s.ttl }

// Create records a new Processing request.
func (s *ResultStore) Create(_ context.Context, id, source string) model.Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := &model.Request{
		RequestID: id,
		Status:    model.StatusProcessing,
		CreatedAt: s.now(),
		Source:    source,
	}
	s.records[id] = r
	metrics.RecordRequestCreated(source)
	metrics.UpdateStoredResults(len(s.records))
	return r.Clone()
}

// Complete marks id complete. An unknown or expired id is recreated as a
// late completion. Repeated completions overwrite params and geometry.
// An Error request keeps its status but takes the new payload.
func (s *ResultStore) Complete(ctx context.Context, id string, c Completion) model.Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	r := s.liveLocked(id, now)
	if r == nil {
		r = &model.Request{RequestID: id, Status: model.StatusProcessing, CreatedAt: now, Source: c.Source}
		s.records[id] = r
		s.log.Debug(ctx, "late completion for unknown request", logger.String("request_id", id))
		metrics.RecordRequestCreated(c.Source)
		metrics.UpdateStoredResults(len(s.records))
	}

	if c.Params != nil {
		r.Params = c.Params.Clone()
	}
	if model.Present(c.Geometry) {
		r.Geometry = append(json.RawMessage(nil), c.Geometry...)
	}
	if c.Message != "" {
		r.Message = c.Message
	}
	r.CompletedAt = &now

	if r.Status == model.StatusProcessing {
		r.Status = model.StatusComplete
		metrics.RecordRequestFinished(string(model.StatusComplete))
	}
	return r.Clone()
}

// Fail marks id as Error with cause. A terminal request is left as it is.
// An unknown or expired id is recreated directly in Error.
func (s *ResultStore) Fail(ctx context.Context, id string, cause error) model.Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	r := s.liveLocked(id, now)
	if r == nil {
		r = &model.Request{RequestID: id, Status: model.StatusProcessing, CreatedAt: now}
		s.records[id] = r
		metrics.UpdateStoredResults(len(s.records))
	}
	if r.Status.Terminal() {
		s.log.Debug(ctx, "ignoring failure of finished request",
			logger.String("request_id", id), logger.String("status", string(r.Status)))
		return r.Clone()
	}

	r.Status = model.StatusError
	if cause != nil {
		r.Error = cause.Error()
	}
	r.CompletedAt = &now
	metrics.RecordRequestFinished(string(model.StatusError))
	return r.Clone()
}

// Get returns the stored request, or ErrNotFound when it never existed or
// is older than the TTL.
func (s *ResultStore) Get(_ context.Context, id string) (model.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.liveLocked(id, s.now())
	if r == nil {
		return model.Request{}, ErrNotFound
	}
	return r.Clone(), nil
}

// Len returns the number of stored records, expired or not.
func (s *ResultStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// EvictExpired drops every record older than the TTL at now, whatever its
// status, and returns how many were removed.
func (s *ResultStore) EvictExpired(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, r := range s.records {
		if s.expired(r, now) {
			delete(s.records, id)
			n++
		}
	}
	if n > 0 {
		metrics.RecordEvictedResults(n)
	}
	metrics.UpdateStoredResults(len(s.records))
	return n
}

// Run sweeps expired records every sweep interval until ctx is done.
func (s *ResultStore) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := s.EvictExpired(s.now()); n > 0 {
				s.log.Debug(ctx, "evicted expired results", logger.Int("count", n))
			}
		}
	}
}

// liveLocked returns the record for id unless it has expired; expired
// records are removed on the spot.
func (s *ResultStore) liveLocked(id string, now time.Time) *model.Request {
	r, ok := s.records[id]
	if !ok {
		return nil
	}
	if s.expired(r, now) {
		delete(s.records, id)
		metrics.RecordEvictedResults(1)
		metrics.UpdateStoredResults(len(s.records))
		return nil
	}
	return r
}

func (s *ResultStore) expired(r *model.Request, now time.Time) bool {
	return now.Sub(r.CreatedAt) > s.ttl
}
