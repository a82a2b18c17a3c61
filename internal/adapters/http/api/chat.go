package api

import (
	"encoding/json"
	"errors"
	"net/http"

	service "github.com/okian/cadhub/internal/app"
	"github.com/okian/cadhub/pkg/logger"
)

// chatRequest mirrors the OpenAPI schema for POST /chat.
type chatRequest struct {
	Prompt   string          `json:"prompt"`
	Params   json.RawMessage `json:"params"`
	APIKey   string          `json:"api_key"`
	Model    string          `json:"model"`
	Username string          `json:"username"`
}

// ChatHandler handles natural-language change requests.
type ChatHandler struct {
	deps Dependencies
	log  logger.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(deps Dependencies, log logger.Logger) *ChatHandler {
	return &ChatHandler{deps: deps, log: log}
}

// HandlePostChat handles POST /chat requests.
func (h *ChatHandler) HandlePostChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	res, err := h.deps.SubmitPrompt(r.Context(), service.HTTPOrigin, service.ChatInput{
		Prompt:   req.Prompt,
		Params:   req.Params,
		Model:    req.Model,
		APIKey:   req.APIKey,
		Username: req.Username,
	})
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case res.RequestID != "":
		writeRequestError(w, res.RequestID, err)
	default:
		var verr *service.ValidationError
		if !errors.As(err, &verr) {
			h.log.Error(r.Context(), "chat rejected", logger.Error(err))
		}
		writeError(w, statusFor(err), err)
	}
}
