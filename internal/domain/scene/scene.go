// Package scene owns the process-wide parameter schema and the most recent
// geometry. Both are replaced wholesale; there is no versioning.
package scene

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/okian/cadhub/internal/domain/model"
	"github.com/okian/cadhub/pkg/metrics"
)

// Snapshot is a consistent copy of the scene.
type Snapshot struct {
	Schema            model.Schema
	Geometry          json.RawMessage
	GeometryRequestID string
	SchemaUpdatedAt   time.Time
	GeometryUpdatedAt time.Time
}

// Scene is safe for concurrent use.
type Scene struct {
	mu                sync.RWMutex
	schema            model.Schema
	geometry          json.RawMessage
	geometryRequestID string
	schemaAt          time.Time
	geometryAt        time.Time
	now               func() time.Time
}

// New returns an empty scene.
func New(now func() time.Time) *Scene {
	if now == nil {
		now = time.Now
	}
	return &Scene{now: now}
}

// Schema returns a copy of the current schema.
func (s *Scene) Schema() model.Schema {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.schema.Clone()
}

// ReplaceSchema installs schema as the current one.
func (s *Scene) ReplaceSchema(schema model.Schema) {
	s.mu.Lock()
	s.schema = schema.Clone()
	s.schemaAt = s.now()
	n := len(s.schema)
	s.mu.Unlock()
	metrics.UpdateSchemaParameters(n)
}

// ApplyValues writes accepted values into the current schema so that
// new web clients start from the latest known state.
func (s *Scene) ApplyValues(u model.ParameterUpdate) {
	if u.Empty() {
		return
	}
	s.mu.Lock()
	s.schema = s.schema.Apply(u)
	s.mu.Unlock()
}

// Geometry returns the cached geometry and the request it belongs to.
func (s *Scene) Geometry() (json.RawMessage, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.geometry == nil {
		return nil, "", false
	}
	return append(json.RawMessage(nil), s.geometry...), s.geometryRequestID, true
}

// SetGeometry caches geometry produced for requestID.
func (s *Scene) SetGeometry(requestID string, geometry json.RawMessage) {
	s.mu.Lock()
	s.geometry = append(json.RawMessage(nil), geometry...)
	s.geometryRequestID = requestID
	s.geometryAt = s.now()
	s.mu.Unlock()
}

// Snapshot copies the whole scene under one lock.
func (s *Scene) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		Schema:            s.schema.Clone(),
		GeometryRequestID: s.geometryRequestID,
		SchemaUpdatedAt:   s.schemaAt,
		GeometryUpdatedAt: s.geometryAt,
	}
	if s.geometry != nil {
		snap.Geometry = append(json.RawMessage(nil), s.geometry...)
	}
	return snap
}
