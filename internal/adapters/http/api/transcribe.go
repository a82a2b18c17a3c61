package api

import (
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/okian/cadhub/internal/adapters/transcribe"
	"github.com/okian/cadhub/pkg/logger"
)

// audioFields are the multipart field names accepted, in order.
var audioFields = []string{"audio", "file"}

type transcribeResponse struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// TranscribeHandler turns uploaded voice prompts into text.
type TranscribeHandler struct {
	deps Dependencies
	log  logger.Logger
}

// NewTranscribeHandler creates a new transcription handler.
func NewTranscribeHandler(deps Dependencies, log logger.Logger) *TranscribeHandler {
	return &TranscribeHandler{deps: deps, log: log}
}

// HandlePostTranscribe handles POST /transcribe requests.
func (h *TranscribeHandler) HandlePostTranscribe(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAudioBody)
	if err := r.ParseMultipartForm(maxAudioBody); err != nil {
		writeError(w, http.StatusBadRequest, badRequest("invalid multipart body: %v", err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := audioPart(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	defer func() { _ = file.Close() }()

	res, err := h.deps.Transcribe(r.Context(), header.Filename, file)
	if err != nil {
		if !errors.Is(err, transcribe.ErrDisabled) {
			h.log.Error(r.Context(), "transcription failed",
				logger.String("filename", header.Filename), logger.Error(err))
		}
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, transcribeResponse{Text: res.Text, Language: res.Language})
}

func audioPart(r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	for _, field := range audioFields {
		file, header, err := r.FormFile(field)
		if err == nil {
			return file, header, nil
		}
		if !errors.Is(err, http.ErrMissingFile) {
			return nil, nil, badRequest("read %s: %v", field, err)
		}
	}
	return nil, nil, badRequest("No audio file provided")
}
