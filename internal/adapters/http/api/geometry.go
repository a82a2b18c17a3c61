package api

import (
	"encoding/json"
	"net/http"

	service "github.com/okian/cadhub/internal/app"
	"github.com/okian/cadhub/internal/domain/model"
	"github.com/okian/cadhub/pkg/logger"
)

// geometryRequest mirrors the OpenAPI schema for POST /geometry_callback.
type geometryRequest struct {
	RequestID string          `json:"request_id"`
	Geometry  json.RawMessage `json:"geometry"`
	Params    json.RawMessage `json:"params"`
}

// GeometryHandler accepts solved geometry from CAD hosts without a push channel.
type GeometryHandler struct {
	deps Dependencies
	log  logger.Logger
}

// NewGeometryHandler creates a new geometry handler.
func NewGeometryHandler(deps Dependencies, log logger.Logger) *GeometryHandler {
	return &GeometryHandler{deps: deps, log: log}
}

// HandlePostGeometry handles POST /geometry_callback requests.
func (h *GeometryHandler) HandlePostGeometry(w http.ResponseWriter, r *http.Request) {
	var req geometryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	origin := service.Origin{Source: model.SourceGrasshopper}
	if err := h.deps.SubmitGeometry(r.Context(), origin, service.GeometryInput{
		RequestID: req.RequestID,
		Geometry:  req.Geometry,
		Params:    req.Params,
	}); err != nil {
		h.log.Warn(r.Context(), "geometry callback rejected", logger.Error(err))
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}
