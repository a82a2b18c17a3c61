package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"github.com/okian/cadhub/internal/adapters/repository"
	"github.com/okian/cadhub/internal/domain/model"
	"github.com/okian/cadhub/internal/domain/protocol"
	"github.com/okian/cadhub/pkg/logger"
	"github.com/okian/cadhub/pkg/metrics"
)

// cadSource tags schema syncs and requests that originate on the CAD side.
const cadSource = model.SourceGrasshopper

// GeometryInput is a solved model reported by the CAD side.
type GeometryInput struct {
	RequestID string
	Geometry  json.RawMessage
	Params    json.RawMessage // optional replacement schema
}

// IdentifyCAD promotes a connection to the CAD role, acknowledges it and
// sends it the current schema to reconcile against.
func (h *Hub) IdentifyCAD(ctx context.Context, connID string) error {
	if err := h.registry.PromoteToCAD(connID); err != nil {
		return ErrUnknownClient
	}
	h.logger.Info(ctx, "CAD client identified", logger.String("conn_id", connID))
	h.sendTo(ctx, connID, protocol.GHConnectAck{Status: "connected"})
	h.sendTo(ctx, connID, protocol.ParamsInit{Params: h.scene.Schema()})
	return nil
}

// RegisterSchema replaces the schema wholesale and syncs it to web
// clients. The registering CAD connection gets params_ack, never an echo.
func (h *Hub) RegisterSchema(ctx context.Context, origin Origin, raw json.RawMessage) (int, error) {
	schema, err := model.DecodeSchema(raw)
	if err != nil {
		metrics.RecordErrorByComponent("cad", "malformed_schema")
		h.logger.Warn(ctx, "dropping malformed schema",
			logger.String("conn_id", origin.ConnID), logger.Error(err))
		return 0, invalid("%v", err)
	}

	h.scene.ReplaceSchema(schema)
	h.logger.Info(ctx, "schema registered",
		logger.Int("count", len(schema)), logger.String("source", origin.Source))

	h.broadcastWeb(ctx, protocol.ParamsSync{Params: schema, Source: cadSource})
	h.sendTo(ctx, origin.ConnID, protocol.ParamsAck{Status: "ok", Count: len(schema)})
	return len(schema), nil
}

// SubmitGeometry completes the matching request, caches the geometry and
// shares it with web clients. A malformed accompanying schema is logged
// and dropped; the geometry itself is still applied.
func (h *Hub) SubmitGeometry(ctx context.Context, origin Origin, in GeometryInput) error {
	id := strings.TrimSpace(in.RequestID)
	if id == "" {
		if origin.ConnID == "" {
			return invalid("Missing request_id")
		}
		// Push clients may report geometry they solved on their own.
		id = "gh-" + uuid.NewString()[:8]
	}
	if !model.Present(in.Geometry) {
		return invalid("Missing geometry")
	}

	var synced model.Schema
	if model.Present(in.Params) {
		schema, err := model.DecodeSchema(in.Params)
		switch {
		case err != nil:
			metrics.RecordErrorByComponent("cad", "malformed_schema")
			h.logger.Warn(ctx, "dropping malformed params with geometry",
				logger.String("request_id", id), logger.Error(err))
		case len(schema) == 0:
			h.logger.Warn(ctx, "dropping empty params with geometry", logger.String("request_id", id))
		default:
			h.scene.ReplaceSchema(schema)
			synced = schema
		}
	}

	req := h.results.Complete(ctx, id, repository.Completion{Geometry: in.Geometry, Source: cadSource})
	h.scene.SetGeometry(id, in.Geometry)
	meshes := protocol.MeshCount(in.Geometry)
	h.logger.Info(ctx, "geometry received",
		logger.String("request_id", id),
		logger.String("status", string(req.Status)),
		logger.Int("meshes", meshes),
		logger.Bool("params_synced", synced != nil))

	h.broadcastWeb(ctx, protocol.GeometryResult{RequestID: id, Geometry: in.Geometry, Status: string(model.StatusComplete)})
	if synced != nil {
		h.broadcastWeb(ctx, protocol.ParamsSync{Params: synced, Source: cadSource})
	}
	h.sendTo(ctx, origin.ConnID, protocol.GeometryAck{Status: "ok", RequestID: id, MeshCount: meshes})
	return nil
}
