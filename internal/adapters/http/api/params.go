package api

import (
	"encoding/json"
	"net/http"

	service "github.com/okian/cadhub/internal/app"
	"github.com/okian/cadhub/internal/domain/model"
	"github.com/okian/cadhub/pkg/logger"
)

type updateRequest struct {
	Params model.ParameterUpdate `json:"params"`
}

type schemaRequest struct {
	Params json.RawMessage `json:"params"`
}

type schemaResponse struct {
	Params model.Schema `json:"params"`
}

// ParamsHandler serves the schema and direct value updates.
type ParamsHandler struct {
	deps Dependencies
	log  logger.Logger
}

// NewParamsHandler creates a new params handler.
func NewParamsHandler(deps Dependencies, log logger.Logger) *ParamsHandler {
	return &ParamsHandler{deps: deps, log: log}
}

// HandleGetParams handles GET /params requests.
func (h *ParamsHandler) HandleGetParams(w http.ResponseWriter, _ *http.Request) {
	schema := h.deps.Schema()
	if schema == nil {
		schema = model.Schema{}
	}
	writeJSON(w, http.StatusOK, schemaResponse{Params: schema})
}

// HandlePostParams handles POST /params requests: a CAD host registering
// its schema over HTTP.
func (h *ParamsHandler) HandlePostParams(w http.ResponseWriter, r *http.Request) {
	var req schemaRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	n, err := h.deps.RegisterSchema(r.Context(), service.Origin{Source: model.SourceGrasshopper}, req.Params)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok", Count: &n})
}

// HandlePostUpdate handles POST /update requests.
func (h *ParamsHandler) HandlePostUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := h.deps.UpdateParams(r.Context(), service.HTTPOrigin, req.Params)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case res.RequestID != "":
		writeRequestError(w, res.RequestID, err)
	default:
		writeError(w, statusFor(err), err)
	}
}
