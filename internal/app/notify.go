package service

import (
	"context"

	"github.com/okian/cadhub/internal/domain/protocol"
	"github.com/okian/cadhub/pkg/logger"
	"github.com/okian/cadhub/pkg/metrics"
)

// sendTo pushes msg to a single connection. HTTP origins have no
// connection and are skipped.
func (h *Hub) sendTo(ctx context.Context, connID string, msg protocol.Outbound) {
	if connID == "" {
		return
	}
	frame, err := protocol.Encode(msg)
	if err != nil {
		h.logger.Error(ctx, "encode push message", logger.String("event", msg.EventName()), logger.Error(err))
		return
	}
	if h.registry.Send(connID, frame) {
		metrics.RecordPushMessage(msg.EventName())
	}
}

// broadcastWeb pushes msg to every web client. CAD clients never receive
// web broadcasts.
func (h *Hub) broadcastWeb(ctx context.Context, msg protocol.Outbound) {
	frame, err := protocol.Encode(msg)
	if err != nil {
		h.logger.Error(ctx, "encode push message", logger.String("event", msg.EventName()), logger.Error(err))
		return
	}
	ids := h.registry.WebClients()
	if n := h.registry.SendAll(ids, frame); n > 0 {
		metrics.RecordPushMessage(msg.EventName())
	}
}

// broadcastChat pushes an informational chat event to all web clients,
// marking the originator's copy with own=true.
func (h *Hub) broadcastChat(ctx context.Context, originConn string, build func(own bool) protocol.Outbound) {
	frames := make(map[bool][]byte, 2)
	event, sent := "", 0
	for _, id := range h.registry.WebClients() {
		own := id == originConn
		frame, ok := frames[own]
		if !ok {
			msg := build(own)
			event = msg.EventName()
			var err error
			if frame, err = protocol.Encode(msg); err != nil {
				h.logger.Error(ctx, "encode chat message", logger.String("event", event), logger.Error(err))
				return
			}
			frames[own] = frame
		}
		if h.registry.Send(id, frame) {
			sent++
		}
	}
	if sent > 0 {
		metrics.RecordPushMessage(event)
	}
}

// notifyError tells the originator about a failure tied to requestID.
func (h *Hub) notifyError(ctx context.Context, origin Origin, requestID string, err error) {
	h.sendTo(ctx, origin.ConnID, protocol.Error{Message: err.Error(), RequestID: requestID})
}
