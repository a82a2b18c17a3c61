package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/okian/cadhub/internal/adapters/llm"
	"github.com/okian/cadhub/internal/adapters/repository"
	"github.com/okian/cadhub/internal/domain/model"
	"github.com/okian/cadhub/internal/domain/normalize"
	"github.com/okian/cadhub/internal/domain/protocol"
	"github.com/okian/cadhub/pkg/logger"
	"github.com/okian/cadhub/pkg/metrics"
)

// ChatInput is a natural-language change request.
type ChatInput struct {
	Prompt   string
	Params   json.RawMessage // optional schema sent by the client
	Model    string
	APIKey   string
	Username string
}

// ChatResult is returned to the prompt's originator. Params is never nil
// so that an empty proposal encodes as {}.
type ChatResult struct {
	RequestID string                `json:"request_id"`
	Status    model.Status          `json:"status"`
	Params    model.ParameterUpdate `json:"params"`
	Message   string                `json:"message,omitempty"`
}

// SubmitPrompt runs the prompt flow: create request, ask the completion
// backend, normalise and validate its answer, then share it with web
// clients and dispatch it to CAD. Failures after creation leave the
// request in Error and are returned alongside the partial result.
func (h *Hub) SubmitPrompt(ctx context.Context, origin Origin, in ChatInput) (ChatResult, error) {
	prompt := strings.TrimSpace(in.Prompt)
	if prompt == "" {
		return ChatResult{}, invalid("No prompt")
	}
	schema, err := h.promptSchema(in.Params)
	if err != nil {
		return ChatResult{}, err
	}
	if h.gateway == nil {
		return ChatResult{}, ErrNoGateway
	}

	id := h.newID()
	h.results.Create(ctx, id, origin.Source)
	log := h.logger.Named("chat")
	log.Info(ctx, "prompt accepted",
		logger.String("request_id", id),
		logger.String("source", origin.Source),
		logger.Int("parameters", len(schema)))

	ts := h.now().UnixMilli()
	h.broadcastChat(ctx, origin.ConnID, func(own bool) protocol.Outbound {
		return protocol.ChatMessage{RequestID: id, Username: in.Username, Message: prompt, Own: own, Timestamp: ts}
	})
	h.broadcastChat(ctx, origin.ConnID, func(own bool) protocol.Outbound {
		return protocol.ChatProcessing{RequestID: id, Username: in.Username, Own: own}
	})

	raw, err := h.gateway.Complete(ctx, prompt, schema, llm.Overrides{Model: in.Model, APIKey: in.APIKey})
	if err != nil {
		return h.failPrompt(ctx, origin, id, "llm", err)
	}

	proposed, err := normalize.Normalize(raw)
	if err != nil {
		return h.failPrompt(ctx, origin, id, "normalize", err)
	}

	accepted, dropped := schema.Filter(proposed, h.clamp)
	if len(dropped) > 0 {
		log.Debug(ctx, "dropped unknown parameters",
			logger.String("request_id", id), logger.Any("keys", dropped))
	}

	if accepted.Empty() {
		h.results.Complete(ctx, id, repository.Completion{Params: accepted, Message: NoChangesMessage})
		h.broadcastChat(ctx, origin.ConnID, func(own bool) protocol.Outbound {
			return protocol.ChatLLMResponse{RequestID: id, Params: accepted, Message: NoChangesMessage, Own: own}
		})
		log.Info(ctx, "no applicable changes", logger.String("request_id", id))
		return ChatResult{RequestID: id, Status: model.StatusComplete, Params: accepted, Message: NoChangesMessage}, nil
	}

	h.broadcastChat(ctx, origin.ConnID, func(own bool) protocol.Outbound {
		return protocol.ChatLLMResponse{RequestID: id, Params: accepted, Own: own}
	})

	outcome, err := h.dispatcher.Deliver(ctx, id, accepted)
	if err != nil {
		res, err := h.failPrompt(ctx, origin, id, "transport", err)
		res.Params = accepted
		return res, err
	}

	h.scene.ApplyValues(accepted)
	log.Info(ctx, "update dispatched",
		logger.String("request_id", id),
		logger.String("outcome", string(outcome)),
		logger.Int("parameters", len(accepted)))
	return ChatResult{RequestID: id, Status: model.StatusProcessing, Params: accepted}, nil
}

// promptSchema prefers the schema the client sent and falls back to the
// registered one.
func (h *Hub) promptSchema(raw json.RawMessage) (model.Schema, error) {
	if model.Present(raw) {
		schema, err := model.DecodeSchema(raw)
		if err != nil {
			return nil, invalid("%v", err)
		}
		if len(schema) > 0 {
			return schema, nil
		}
	}
	return h.scene.Schema(), nil
}

func (h *Hub) failPrompt(ctx context.Context, origin Origin, id, component string, cause error) (ChatResult, error) {
	h.results.Fail(ctx, id, cause)
	metrics.RecordErrorByComponent(component, "request_failed")
	h.logger.Named("chat").Warn(ctx, "prompt failed",
		logger.String("request_id", id), logger.String("component", component), logger.Error(cause))
	h.notifyError(ctx, origin, id, cause)
	return ChatResult{RequestID: id, Status: model.StatusError, Params: model.ParameterUpdate{}}, cause
}
