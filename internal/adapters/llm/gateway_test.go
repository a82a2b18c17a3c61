package llm_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/okian/cadhub/internal/adapters/llm"
	"github.com/okian/cadhub/internal/domain/model"
	"github.com/okian/cadhub/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logger.Init(logger.WithOutput(io.Discard)); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type chatBody struct {
	Model       string  `json:"model"`
	Temperature float32 `json:"temperature"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

type backend struct {
	mu      sync.Mutex
	last    chatBody
	auth    string
	path    string
	handler func(w http.ResponseWriter)
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body chatBody
	_ = json.NewDecoder(r.Body).Decode(&body)
	b.mu.Lock()
	b.last = body
	b.auth = r.Header.Get("Authorization")
	b.path = r.URL.Path
	h := b.handler
	b.mu.Unlock()
	h(w)
}

func (b *backend) set(h func(w http.ResponseWriter)) {
	b.mu.Lock()
	b.handler = h
	b.mu.Unlock()
}

func (b *backend) seen() (body chatBody, path, auth string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.last, b.path, b.auth
}

func reply(content string) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "test",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
		})
	}
}

func TestGateway(t *testing.T) {
	Convey("Given a completion backend", t, func() {
		ctx := context.Background()
		b := &backend{handler: reply(`{"width": 8.0}`)}
		srv := httptest.NewServer(b)
		defer srv.Close()

		schema := model.Schema{{Name: "width", Value: 5, Min: 0, Max: 10}}
		g := llm.NewGateway(srv.URL+"/v1/chat/completions",
			llm.WithModel("llama3.2:1b"),
			llm.WithTimeout(2*time.Second),
		)

		Convey("When a prompt is completed", func() {
			text, err := g.Complete(ctx, "make it wider", schema, llm.Overrides{})

			Convey("Then the raw content should be returned", func() {
				So(err, ShouldBeNil)
				So(text, ShouldEqual, `{"width": 8.0}`)
			})

			Convey("Then the request should carry the schema and the prompt", func() {
				last, path, _ := b.seen()
				So(path, ShouldEqual, "/v1/chat/completions")
				So(last.Model, ShouldEqual, "llama3.2:1b")
				So(last.Temperature, ShouldAlmostEqual, 0.3, 0.0001)
				So(last.Messages, ShouldHaveLength, 2)
				So(last.Messages[0].Role, ShouldEqual, "system")
				So(last.Messages[0].Content, ShouldContainSubstring, `"name": "width"`)
				So(last.Messages[1].Content, ShouldEqual, "make it wider")
			})
		})

		Convey("When the caller overrides model and key", func() {
			_, err := g.Complete(ctx, "wider", schema, llm.Overrides{Model: "qwen", APIKey: "sk-test"})

			Convey("Then the overrides should be used for that call", func() {
				So(err, ShouldBeNil)
				last, _, auth := b.seen()
				So(last.Model, ShouldEqual, "qwen")
				So(auth, ShouldEqual, "Bearer sk-test")
			})
		})

		Convey("When the backend answers with an error status", func() {
			b.set(func(w http.ResponseWriter) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadGateway)
				_, _ = w.Write([]byte(`{"error":{"message":"model not loaded","type":"server_error"}}`))
			})

			_, err := g.Complete(ctx, "wider", schema, llm.Overrides{})

			Convey("Then a GatewayError with the status should be returned", func() {
				var ge *llm.GatewayError
				So(errors.As(err, &ge), ShouldBeTrue)
				So(ge.StatusCode, ShouldEqual, http.StatusBadGateway)
				So(errors.Is(err, llm.ErrGateway), ShouldBeTrue)
			})
		})

		Convey("When the response has no choices", func() {
			b.set(func(w http.ResponseWriter) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[]}`))
			})

			_, err := g.Complete(ctx, "wider", schema, llm.Overrides{})

			Convey("Then the missing content should be reported", func() {
				So(errors.Is(err, llm.ErrGateway), ShouldBeTrue)
				So(errors.Is(err, llm.ErrEmptyCompletion), ShouldBeTrue)
			})
		})

		Convey("When the backend is slower than the timeout", func() {
			b.set(func(w http.ResponseWriter) {
				time.Sleep(300 * time.Millisecond)
				reply(`{}`)(w)
			})
			slow := llm.NewGateway(srv.URL, llm.WithTimeout(50*time.Millisecond))

			_, err := slow.Complete(ctx, "wider", schema, llm.Overrides{})

			Convey("Then a timeout GatewayError should be returned", func() {
				var ge *llm.GatewayError
				So(errors.As(err, &ge), ShouldBeTrue)
				So(ge.Timeout, ShouldBeTrue)
			})
		})
	})

	Convey("Given an unreachable backend", t, func() {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()
		g := llm.NewGateway(url, llm.WithTimeout(time.Second))

		_, err := g.Complete(context.Background(), "wider", nil, llm.Overrides{})

		Convey("Then the network failure should surface as GatewayError", func() {
			So(errors.Is(err, llm.ErrGateway), ShouldBeTrue)
		})
	})
}

func TestBaseURL(t *testing.T) {
	Convey("Given configured backend URLs", t, func() {
		So(llm.BaseURL("http://localhost:11434/v1/chat/completions"), ShouldEqual, "http://localhost:11434/v1")
		So(llm.BaseURL("http://localhost:11434/v1/"), ShouldEqual, "http://localhost:11434/v1")
		So(llm.BaseURL(" https://api.example.com/v1 "), ShouldEqual, "https://api.example.com/v1")
	})
}

func TestBuildSystemPrompt(t *testing.T) {
	Convey("Given a schema", t, func() {
		p := llm.BuildSystemPrompt(model.Schema{
			{Name: "width", Value: 5, Min: 0, Max: 10, Label: "Width"},
			{Name: "height", Value: 2, Min: 1, Max: 3},
		})

		Convey("Then every parameter and the quantifier guidance should be embedded", func() {
			So(p, ShouldContainSubstring, `"name": "width"`)
			So(p, ShouldContainSubstring, `"max": 3`)
			So(p, ShouldContainSubstring, "slightly")
			So(p, ShouldContainSubstring, "maximize/minimize")
			So(p, ShouldContainSubstring, "Use {} if no changes apply.")
		})
	})
}
