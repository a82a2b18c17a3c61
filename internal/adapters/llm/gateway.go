// Package llm calls an OpenAI-compatible chat-completions backend to turn a
// prompt plus the current schema into raw completion text.
package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/okian/cadhub/internal/domain/model"
	"github.com/okian/cadhub/pkg/logger"
	"github.com/okian/cadhub/pkg/metrics"
)

const chatCompletionsSuffix = "/chat/completions"

// Overrides replace configured defaults for one call.
type Overrides struct {
	Model  string
	APIKey string
}

// Gateway is the CompletionGateway. It never retries.
type Gateway struct {
	baseURL     string
	model       string
	apiKey      string
	temperature float32
	timeout     time.Duration
	limiter     *rate.Limiter
	httpClient  *http.Client
	client      *openai.Client
	log         logger.Logger
}

// NewGateway builds a gateway for hostURL. hostURL may be the full
// chat-completions endpoint or the API base ending in /v1.
func NewGateway(hostURL string, opts ...Option) *Gateway {
	g := &Gateway{
		baseURL:     BaseURL(hostURL),
		model:       "llama3.2:1b",
		temperature: 0.3,
		timeout:     60 * time.Second,
		httpClient:  &http.Client{},
		log:         logger.Get().Named("llm"),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.client = g.newClient(g.apiKey)
	return g
}

// BaseURL strips the chat-completions path so the client can re-append it.
func BaseURL(hostURL string) string {
	u := strings.TrimRight(strings.TrimSpace(hostURL), "/")
	return strings.TrimSuffix(u, chatCompletionsSuffix)
}

func (g *Gateway) newClient(apiKey string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = g.baseURL
	cfg.HTTPClient = g.httpClient
	return openai.NewClientWithConfig(cfg)
}

// Complete sends prompt with a system instruction built from schema and
// returns the first choice's content.
func (g *Gateway) Complete(ctx context.Context, prompt string, schema model.Schema, ov Overrides) (string, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", g.fail(ctx, start, &GatewayError{Cause: err})
		}
	}

	client := g.client
	if ov.APIKey != "" && ov.APIKey != g.apiKey {
		client = g.newClient(ov.APIKey)
	}
	modelName := g.model
	if ov.Model != "" {
		modelName = ov.Model
	}

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       modelName,
		Temperature: g.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: BuildSystemPrompt(schema)},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", g.fail(ctx, start, classify(ctx, err))
	}
	if len(resp.Choices) == 0 {
		return "", g.fail(ctx, start, &GatewayError{Cause: ErrEmptyCompletion})
	}

	metrics.RecordCompletionLatency(float64(time.Since(start).Milliseconds()))
	g.log.Debug(ctx, "completion received",
		logger.String("model", modelName),
		logger.Duration("took", time.Since(start)),
		logger.Int("chars", len(resp.Choices[0].Message.Content)))
	return resp.Choices[0].Message.Content, nil
}

func (g *Gateway) fail(ctx context.Context, start time.Time, err *GatewayError) error {
	metrics.RecordCompletionError()
	metrics.RecordErrorLatency("llm", "gateway", float64(time.Since(start).Milliseconds()))
	g.log.Warn(ctx, "completion failed", logger.Error(err), logger.Int("status", err.StatusCode))
	return err
}

// classify maps client errors onto GatewayError, keeping the HTTP status
// when the backend answered.
func classify(ctx context.Context, err error) *GatewayError {
	ge := &GatewayError{Cause: err}

	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		ge.StatusCode = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		ge.StatusCode = reqErr.HTTPStatusCode
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		ge.Timeout = true
	}
	return ge
}
