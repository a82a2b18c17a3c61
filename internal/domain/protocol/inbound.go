// Package protocol defines the push-channel wire format. Every frame is an
// envelope {"event": name, "data": {...}}. Inbound frames are decoded once
// into a closed set of variants so routing never matches on strings.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/okian/cadhub/internal/domain/model"
)

// Envelope is the frame shape in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Inbound event names.
const (
	EventParamsUpdate     = "params_update"
	EventChatRequest      = "chat_request"
	EventGHConnect        = "gh_connect"
	EventGHParamsRegister = "gh_params_register"
	EventGHGeometry       = "gh_geometry"
)

// Inbound is implemented by every hub-bound variant.
type Inbound interface {
	inbound()
}

// ParamsUpdate is a direct slider change from a web client.
type ParamsUpdate struct {
	Params model.ParameterUpdate `json:"params"`
}

// ChatRequest asks the completion backend to interpret a prompt.
// Params optionally carries the client's view of the schema.
type ChatRequest struct {
	Prompt   string          `json:"prompt"`
	Params   json.RawMessage `json:"params,omitempty"`
	APIKey   string          `json:"api_key,omitempty"`
	Model    string          `json:"model,omitempty"`
	Username string          `json:"username,omitempty"`
}

// GHConnect identifies the sender as a CAD client.
type GHConnect struct {
	ClientType string `json:"client_type,omitempty"`
}

// GHParamsRegister replaces the schema.
type GHParamsRegister struct {
	Params json.RawMessage `json:"params"`
}

// GHGeometry carries a solved model, optionally with the matching schema.
type GHGeometry struct {
	RequestID string          `json:"request_id"`
	Geometry  json.RawMessage `json:"geometry"`
	Params    json.RawMessage `json:"params,omitempty"`
}

func (ParamsUpdate) inbound()     {}
func (ChatRequest) inbound()      {}
func (GHConnect) inbound()        {}
func (GHParamsRegister) inbound() {}
func (GHGeometry) inbound()       {}

// Decode parses one inbound frame.
func Decode(frame []byte) (Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}
	event := strings.TrimSpace(env.Event)
	if event == "" {
		return nil, fmt.Errorf("%w: missing event", ErrMalformedFrame)
	}

	switch event {
	case EventParamsUpdate:
		return decodeAs[ParamsUpdate](event, env.Data)
	case EventChatRequest:
		return decodeAs[ChatRequest](event, env.Data)
	case EventGHConnect:
		return decodeAs[GHConnect](event, env.Data)
	case EventGHParamsRegister:
		return decodeAs[GHParamsRegister](event, env.Data)
	case EventGHGeometry:
		return decodeAs[GHGeometry](event, env.Data)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownEvent, event)
	}
}

func decodeAs[T Inbound](event string, data json.RawMessage) (Inbound, error) {
	var m T
	if err := decodeData(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformedFrame, event, err)
	}
	return m, nil
}

// decodeData treats absent or null data as an empty object.
func decodeData(data json.RawMessage, v any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	return json.Unmarshal(data, v)
}
