package service

import (
	"context"
	"errors"
	"time"

	"github.com/okian/cadhub/internal/adapters/mq/queue"
	"github.com/okian/cadhub/internal/domain/model"
	"github.com/okian/cadhub/internal/domain/protocol"
	"github.com/okian/cadhub/internal/domain/registry"
	"github.com/okian/cadhub/pkg/logger"
)

// geometryCached marks a geometry_result replayed from the cache.
const geometryCached = "cached"

// Connect registers a new push connection as a web client and greets it
// with the current schema and, when known, the last geometry.
func (h *Hub) Connect(ctx context.Context, connID string, sender registry.Sender) {
	h.registry.Add(connID, sender)
	h.logger.Debug(ctx, "client connected", logger.String("conn_id", connID))

	h.sendTo(ctx, connID, protocol.ParamsInit{Params: h.scene.Schema()})
	if geometry, requestID, ok := h.scene.Geometry(); ok {
		h.sendTo(ctx, connID, protocol.GeometryResult{RequestID: requestID, Geometry: geometry, Status: geometryCached})
	}
}

// Disconnect forgets a connection whatever its role.
func (h *Hub) Disconnect(ctx context.Context, connID string) {
	c, ok := h.registry.Get(connID)
	if !ok || !h.registry.Remove(connID) {
		return
	}
	h.logger.Debug(ctx, "client disconnected",
		logger.String("conn_id", connID),
		logger.String("role", c.Role.String()),
		logger.Duration("connected_for", time.Since(c.Since)))
}

// HandleFrame decodes one inbound push frame and routes it. It runs on the
// connection's read goroutine.
func (h *Hub) HandleFrame(ctx context.Context, connID string, frame []byte) {
	msg, err := protocol.Decode(frame)
	if err != nil {
		h.logger.Warn(ctx, "dropping inbound frame", logger.String("conn_id", connID), logger.Error(err))
		h.sendTo(ctx, connID, protocol.Error{Message: err.Error()})
		return
	}

	origin := Origin{ConnID: connID, Source: model.SourceWebSocket}
	switch m := msg.(type) {
	case protocol.ParamsUpdate:
		_, err = h.UpdateParams(ctx, origin, m.Params)
	case protocol.ChatRequest:
		in := ChatInput{
			Prompt:   m.Prompt,
			Params:   m.Params,
			Model:    m.Model,
			APIKey:   m.APIKey,
			Username: m.Username,
		}
		if h.jobs != nil {
			err = h.enqueuePrompt(ctx, origin, in)
			break
		}
		_, err = h.SubmitPrompt(ctx, origin, in)
	case protocol.GHConnect:
		err = h.IdentifyCAD(ctx, connID)
	case protocol.GHParamsRegister:
		_, err = h.RegisterSchema(ctx, origin, m.Params)
	case protocol.GHGeometry:
		err = h.SubmitGeometry(ctx, origin, GeometryInput{RequestID: m.RequestID, Geometry: m.Geometry, Params: m.Params})
	}

	h.reportFrameError(ctx, connID, err)
}

// enqueuePrompt hands a push prompt to the job queue. The job gets the
// worker's context so the request finishes even if the client leaves.
func (h *Hub) enqueuePrompt(ctx context.Context, origin Origin, in ChatInput) error {
	job := queue.Job{
		Name: "chat_request",
		Run: func(jobCtx context.Context) {
			_, err := h.SubmitPrompt(jobCtx, origin, in)
			h.reportFrameError(jobCtx, origin.ConnID, err)
		},
	}
	if !h.jobs.Enqueue(ctx, job) {
		h.logger.Warn(ctx, "prompt queue full", logger.String("conn_id", origin.ConnID))
		return ErrBusy
	}
	return nil
}

// reportFrameError answers a push frame that failed before a request
// existed. Failures tied to a request were already reported with its id.
func (h *Hub) reportFrameError(ctx context.Context, connID string, err error) {
	var verr *ValidationError
	if errors.As(err, &verr) || errors.Is(err, ErrNoGateway) || errors.Is(err, ErrUnknownClient) || errors.Is(err, ErrBusy) {
		h.sendTo(ctx, connID, protocol.Error{Message: err.Error()})
	}
}
