// Package transcribe delegates audio-to-text to an OpenAI-compatible
// transcription service.
package transcribe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/okian/cadhub/pkg/logger"
)

// Result is the transcription outcome exposed by POST /transcribe.
type Result struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// Transcriber wraps the audio endpoint of an OpenAI-compatible API.
type Transcriber struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	log     logger.Logger
}

// New returns a Transcriber for baseURL (the API root, e.g. http://host:8000/v1).
func New(baseURL string, opts ...Option) (*Transcriber, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, ErrDisabled
	}
	s := settings{model: "base", timeout: 120 * time.Second, httpClient: &http.Client{}}
	for _, opt := range opts {
		opt(&s)
	}

	cfg := openai.DefaultConfig(s.apiKey)
	cfg.BaseURL = strings.TrimSuffix(baseURL, "/audio/transcriptions")
	cfg.HTTPClient = s.httpClient

	l := s.log
	if l == nil {
		l = logger.Get().Named("transcribe")
	}
	return &Transcriber{
		client:  openai.NewClientWithConfig(cfg),
		model:   s.model,
		timeout: s.timeout,
		log:     l,
	}, nil
}

// Transcribe sends the audio read from r. filename only supplies the
// upload name and extension.
func (t *Transcriber) Transcribe(ctx context.Context, filename string, r io.Reader) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	name := filepath.Base(strings.TrimSpace(filename))
	if name == "" || name == "." || name == "/" {
		name = "audio.webm"
	}

	start := time.Now()
	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.model,
		FilePath: name,
		Reader:   r,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		t.log.Warn(ctx, "transcription failed", logger.Error(err), logger.String("file", name))
		return Result{}, fmt.Errorf("%w: %w", ErrTranscription, err)
	}
	t.log.Debug(ctx, "transcription done",
		logger.String("language", resp.Language), logger.Duration("took", time.Since(start)))
	return Result{Text: strings.TrimSpace(resp.Text), Language: resp.Language}, nil
}
