package protocol

import (
	"encoding/json"

	"github.com/okian/cadhub/internal/domain/model"
)

// Outbound event names.
const (
	EventParamsInit      = "params_init"
	EventParamsSync      = "params_sync"
	EventGeometryResult  = "geometry_result"
	EventChatMessage     = "chat_message"
	EventChatProcessing  = "chat_processing"
	EventChatLLMResponse = "chat_llm_response"
	EventError           = "error"
	EventUpdateAck       = "update_ack"
	EventParamsToGH      = "params_to_gh"
	EventGHConnectAck    = "gh_connect_ack"
	EventParamsAck       = "params_ack"
	EventGeometryAck     = "geometry_ack"
)

// Outbound is implemented by every client-bound message.
type Outbound interface {
	EventName() string
}

// Encode wraps msg in an envelope.
func Encode(msg Outbound) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: msg.EventName(), Data: data})
}

// ParamsInit seeds a new connection with the current schema.
type ParamsInit struct {
	Params model.Schema `json:"params"`
}

// ParamsSync announces a replaced schema to web clients.
type ParamsSync struct {
	Params model.Schema `json:"params"`
	Source string       `json:"source"`
}

// GeometryResult delivers solved geometry to web clients.
type GeometryResult struct {
	RequestID string          `json:"request_id"`
	Geometry  json.RawMessage `json:"geometry"`
	Status    string          `json:"status"`
}

// ChatMessage echoes a prompt into every web client's transcript.
type ChatMessage struct {
	RequestID string `json:"request_id"`
	Username  string `json:"username,omitempty"`
	Message   string `json:"message"`
	Own       bool   `json:"own"`
	Timestamp int64  `json:"timestamp"`
}

// ChatProcessing tells web clients the completion backend is being called.
type ChatProcessing struct {
	RequestID string `json:"request_id"`
	Username  string `json:"username,omitempty"`
	Own       bool   `json:"own"`
}

// ChatLLMResponse shares the proposed update with every web client.
type ChatLLMResponse struct {
	RequestID string                `json:"request_id"`
	Params    model.ParameterUpdate `json:"params"`
	Message   string                `json:"message,omitempty"`
	Own       bool                  `json:"own"`
}

// Error reports a failure to the originating client.
type Error struct {
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// UpdateAck acknowledges a direct parameter update.
type UpdateAck struct {
	RequestID string                `json:"request_id"`
	Status    model.Status          `json:"status"`
	Params    model.ParameterUpdate `json:"params"`
}

// ParamsToGH asks CAD clients to apply values.
type ParamsToGH struct {
	RequestID string                `json:"request_id"`
	Params    model.ParameterUpdate `json:"params"`
}

// GHConnectAck confirms CAD identification.
type GHConnectAck struct {
	Status string `json:"status"`
}

// ParamsAck confirms a schema registration.
type ParamsAck struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
}

// GeometryAck confirms receipt of geometry.
type GeometryAck struct {
	Status    string `json:"status"`
	RequestID string `json:"request_id"`
	MeshCount int    `json:"mesh_count"`
}

func (ParamsInit) EventName() string      { return EventParamsInit }
func (ParamsSync) EventName() string      { return EventParamsSync }
func (GeometryResult) EventName() string  { return EventGeometryResult }
func (ChatMessage) EventName() string     { return EventChatMessage }
func (ChatProcessing) EventName() string  { return EventChatProcessing }
func (ChatLLMResponse) EventName() string { return EventChatLLMResponse }
func (Error) EventName() string           { return EventError }
func (UpdateAck) EventName() string       { return EventUpdateAck }
func (ParamsToGH) EventName() string      { return EventParamsToGH }
func (GHConnectAck) EventName() string    { return EventGHConnectAck }
func (ParamsAck) EventName() string       { return EventParamsAck }
func (GeometryAck) EventName() string     { return EventGeometryAck }

// MeshCount returns the element count when geometry is a JSON list, else 0
// for null/absent geometry and 1 for any other value.
func MeshCount(geometry json.RawMessage) int {
	if !model.Present(geometry) {
		return 0
	}
	var items []json.RawMessage
	if err := json.Unmarshal(geometry, &items); err != nil {
		return 1
	}
	return len(items)
}
