package model

import (
	"bytes"
	"encoding/json"
	"time"
)

// Status is the lifecycle state of a Request.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusComplete   Status = "complete"
	StatusError      Status = "error"
)

// Terminal reports whether no further status transition is allowed.
func (s Status) Terminal() bool { return s == StatusComplete || s == StatusError }

// Origin tags where a request came from.
const (
	SourceWebSocket   = "websocket"
	SourceHTTP        = "http"
	SourceGrasshopper = "grasshopper"
)

// Request is the tracked state of one prompt or parameter change.
// Field names are part of the polling API.
type Request struct {
	RequestID   string          `json:"request_id"`
	Status      Status          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	Params      ParameterUpdate `json:"params,omitempty"`
	Geometry    json.RawMessage `json:"geometry,omitempty"`
	Error       string          `json:"error,omitempty"`
	Message     string          `json:"message,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Source      string          `json:"source,omitempty"`
}

// Clone returns a deep copy safe to hand out of a lock.
func (r Request) Clone() Request {
	out := r
	out.Params = r.Params.Clone()
	if r.Geometry != nil {
		out.Geometry = append(json.RawMessage(nil), r.Geometry...)
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		out.CompletedAt = &t
	}
	return out
}

// Present reports whether raw carries a non-null JSON value.
func Present(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
}
