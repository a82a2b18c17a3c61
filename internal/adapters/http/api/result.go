package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/okian/cadhub/internal/adapters/repository"
)

// ResultHandler serves request polling.
type ResultHandler struct {
	deps Dependencies
}

// NewResultHandler creates a new result handler.
func NewResultHandler(deps Dependencies) *ResultHandler {
	return &ResultHandler{deps: deps}
}

// HandleGetResult handles GET /result/{id} requests. Unknown and expired
// ids are an ordinary 404, not an error.
func (h *ResultHandler) HandleGetResult(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	req, err := h.deps.Result(r.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, statusResponse{Status: "not_found"})
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}
