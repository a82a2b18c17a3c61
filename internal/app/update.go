package service

import (
	"context"

	"github.com/okian/cadhub/internal/domain/model"
	"github.com/okian/cadhub/internal/domain/protocol"
	"github.com/okian/cadhub/pkg/logger"
	"github.com/okian/cadhub/pkg/metrics"
)

// UpdateResult acknowledges a direct parameter update.
type UpdateResult struct {
	RequestID string                `json:"request_id"`
	Status    model.Status          `json:"status"`
	Params    model.ParameterUpdate `json:"params"`
}

// UpdateParams sends slider values straight to CAD, bypassing the
// completion backend. When a schema is registered, unknown keys are
// dropped and values clamped like completion output.
func (h *Hub) UpdateParams(ctx context.Context, origin Origin, params model.ParameterUpdate) (UpdateResult, error) {
	if params.Empty() {
		return UpdateResult{}, invalid("No params")
	}
	accepted := params.Clone()
	if schema := h.scene.Schema(); len(schema) > 0 {
		var dropped []string
		accepted, dropped = schema.Filter(params, h.clamp)
		if accepted.Empty() {
			return UpdateResult{}, invalid("no known parameters in update: %v", dropped)
		}
	}

	id := h.newID()
	h.results.Create(ctx, id, origin.Source)

	outcome, err := h.dispatcher.Deliver(ctx, id, accepted)
	if err != nil {
		h.results.Fail(ctx, id, err)
		metrics.RecordErrorByComponent("transport", "request_failed")
		h.logger.Warn(ctx, "direct update failed", logger.String("request_id", id), logger.Error(err))
		h.notifyError(ctx, origin, id, err)
		return UpdateResult{RequestID: id, Status: model.StatusError, Params: accepted}, err
	}

	h.scene.ApplyValues(accepted)
	h.logger.Debug(ctx, "direct update dispatched",
		logger.String("request_id", id), logger.String("outcome", string(outcome)))
	res := UpdateResult{RequestID: id, Status: model.StatusProcessing, Params: accepted}
	h.sendTo(ctx, origin.ConnID, protocol.UpdateAck{RequestID: id, Status: res.Status, Params: accepted})
	return res, nil
}
