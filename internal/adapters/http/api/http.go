// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/okian/cadhub/internal/adapters/transcribe"
	service "github.com/okian/cadhub/internal/app"
	"github.com/okian/cadhub/internal/domain/model"
	"github.com/okian/cadhub/pkg/logger"
	"github.com/okian/cadhub/pkg/metrics"
)

// Body limits. Geometry payloads can carry full meshes.
const (
	maxJSONBody  = 16 << 20
	maxAudioBody = 32 << 20
)

// Dependencies required by HTTP handlers.
type Dependencies interface {
	StatsProvider

	SubmitPrompt(ctx context.Context, origin service.Origin, in service.ChatInput) (service.ChatResult, error)
	SubmitGeometry(ctx context.Context, origin service.Origin, in service.GeometryInput) error
	UpdateParams(ctx context.Context, origin service.Origin, params model.ParameterUpdate) (service.UpdateResult, error)
	RegisterSchema(ctx context.Context, origin service.Origin, raw json.RawMessage) (int, error)
	Result(ctx context.Context, id string) (model.Request, error)
	Schema() model.Schema
	Transcribe(ctx context.Context, filename string, r io.Reader) (transcribe.Result, error)
}

// Server wires HTTP routes for the hub API.
type Server struct {
	healthHandler     *HealthHandler
	statsHandler      *StatsHandler
	chatHandler       *ChatHandler
	geometryHandler   *GeometryHandler
	resultHandler     *ResultHandler
	paramsHandler     *ParamsHandler
	transcribeHandler *TranscribeHandler
	log               logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	log := logger.Get().Named("api")
	return &Server{
		healthHandler:     NewHealthHandler(deps),
		statsHandler:      NewStatsHandler(deps),
		chatHandler:       NewChatHandler(deps, log),
		geometryHandler:   NewGeometryHandler(deps, log),
		resultHandler:     NewResultHandler(deps),
		paramsHandler:     NewParamsHandler(deps, log),
		transcribeHandler: NewTranscribeHandler(deps, log),
		log:               log,
	}
}

// Register attaches all HTTP routes to r. The push channel is mounted
// without MetricsMiddleware because upgrades need the raw ResponseWriter.
func (s *Server) Register(_ context.Context, r *mux.Router, ws http.Handler) {
	r.Use(RecoveryMiddleware(s.log))

	r.HandleFunc("/health", MetricsMiddleware(s.healthHandler.HandleHealth, "health")).Methods(http.MethodGet)
	r.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats")).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{})).Methods(http.MethodGet)

	r.HandleFunc("/chat", MetricsMiddleware(s.chatHandler.HandlePostChat, "chat")).Methods(http.MethodPost)
	r.HandleFunc("/update", MetricsMiddleware(s.paramsHandler.HandlePostUpdate, "update")).Methods(http.MethodPost)
	r.HandleFunc("/params", MetricsMiddleware(s.paramsHandler.HandleGetParams, "params")).Methods(http.MethodGet)
	r.HandleFunc("/params", MetricsMiddleware(s.paramsHandler.HandlePostParams, "params")).Methods(http.MethodPost)
	r.HandleFunc("/geometry_callback", MetricsMiddleware(s.geometryHandler.HandlePostGeometry, "geometry_callback")).Methods(http.MethodPost)
	r.HandleFunc("/result/{id}", MetricsMiddleware(s.resultHandler.HandleGetResult, "result")).Methods(http.MethodGet)
	r.HandleFunc("/transcribe", MetricsMiddleware(s.transcribeHandler.HandlePostTranscribe, "transcribe")).Methods(http.MethodPost)

	if ws != nil {
		r.Handle("/ws", ws).Methods(http.MethodGet)
	}
}

// WithCORS wraps h so browser clients on the given origins can call it.
func WithCORS(h http.Handler, origins []string) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}).Handler(h)
}

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type statusResponse struct {
	Status string `json:"status"`
	Count  *int   `json:"count,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeRequestError reports a failure that happened after a request was
// created, so the caller can still poll it.
func writeRequestError(w http.ResponseWriter, requestID string, err error) {
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error(), RequestID: requestID})
}

// decodeJSON reads a JSON body into v, capped at maxJSONBody.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return badRequest("invalid JSON body: %v", err)
	}
	return nil
}
