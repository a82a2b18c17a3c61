package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/okian/cadhub/internal/adapters/llm"
	"github.com/okian/cadhub/internal/adapters/mq/queue"
	"github.com/okian/cadhub/internal/adapters/mq/worker"
	"github.com/okian/cadhub/internal/adapters/repository"
	"github.com/okian/cadhub/internal/adapters/transcribe"
	"github.com/okian/cadhub/internal/adapters/transport"
	service "github.com/okian/cadhub/internal/app"
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

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// inbox is a registry.Sender that keeps every frame it is given.
type inbox struct {
	mu     sync.Mutex
	frames []frame
}

func (b *inbox) Send(msg []byte) bool {
	var f frame
	if err := json.Unmarshal(msg, &f); err != nil {
		return false
	}
	b.mu.Lock()
	b.frames = append(b.frames, f)
	b.mu.Unlock()
	return true
}

func (b *inbox) events() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.frames))
	for _, f := range b.frames {
		out = append(out, f.Event)
	}
	return out
}

func (b *inbox) last(event string) map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.frames) - 1; i >= 0; i-- {
		if b.frames[i].Event == event {
			var m map[string]any
			_ = json.Unmarshal(b.frames[i].Data, &m)
			return m
		}
	}
	return nil
}

func (b *inbox) reset() {
	b.mu.Lock()
	b.frames = nil
	b.mu.Unlock()
}

type fakeCompleter struct {
	mu      sync.Mutex
	reply   string
	err     error
	schemas []model.Schema
	ov      llm.Overrides
}

func (f *fakeCompleter) Complete(_ context.Context, _ string, schema model.Schema, ov llm.Overrides) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.schemas = append(f.schemas, schema)
	f.ov = ov
	return f.reply, f.err
}

type fakeDeliverer struct {
	mu    sync.Mutex
	err   error
	calls []model.ParameterUpdate
}

func (f *fakeDeliverer) Deliver(_ context.Context, _ string, params model.ParameterUpdate) (transport.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, params)
	if f.err != nil {
		return "", f.err
	}
	return transport.DeliveredViaPush, nil
}

func (f *fakeDeliverer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeTranscriber struct{}

func (fakeTranscriber) Transcribe(_ context.Context, filename string, r io.Reader) (transcribe.Result, error) {
	b, _ := io.ReadAll(r)
	return transcribe.Result{Text: filename + ":" + string(b), Language: "en"}, nil
}

// paramValue reads a parameter's value from the last params_init b received.
func paramValue(b *inbox, name string) any {
	params, _ := b.last("params_init")["params"].([]any)
	for _, p := range params {
		if m, ok := p.(map[string]any); ok && m["name"] == name {
			return m["value"]
		}
	}
	return nil
}

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("req-%d", n)
	}
}

const widthSchema = `[{"name":"width","value":5,"min":0,"max":10},{"name":"height","value":2,"min":1,"max":4}]`

func newHub(c *fakeCompleter, d *fakeDeliverer, opts ...service.Option) *service.Hub {
	base := []service.Option{
		service.WithGateway(c),
		service.WithDispatcher(d),
		service.WithIDGenerator(sequentialIDs()),
	}
	return service.New(append(base, opts...)...)
}

func TestSubmitPrompt(t *testing.T) {
	Convey("Given a hub with two web clients, a CAD client and a registered schema", t, func() {
		ctx := context.Background()
		completer := &fakeCompleter{}
		deliverer := &fakeDeliverer{}
		hub := newHub(completer, deliverer)

		alice, bob, cad := &inbox{}, &inbox{}, &inbox{}
		hub.Connect(ctx, "alice", alice)
		hub.Connect(ctx, "bob", bob)
		hub.Connect(ctx, "cad", cad)
		So(hub.IdentifyCAD(ctx, "cad"), ShouldBeNil)
		_, err := hub.RegisterSchema(ctx, service.Origin{ConnID: "cad", Source: model.SourceGrasshopper}, json.RawMessage(widthSchema))
		So(err, ShouldBeNil)
		alice.reset()
		bob.reset()
		cad.reset()

		origin := service.Origin{ConnID: "alice", Source: model.SourceWebSocket}

		Convey("When the completion proposes a fenced update", func() {
			completer.reply = "Sure:\n```json\n{\"width\": 42, \"depth\": 3}\n```"
			res, err := hub.SubmitPrompt(ctx, origin, service.ChatInput{Prompt: "make it much wider", Username: "alice"})

			Convey("Then it should be clamped, filtered and dispatched", func() {
				So(err, ShouldBeNil)
				So(res.Status, ShouldEqual, model.StatusProcessing)
				So(res.Params, ShouldResemble, model.ParameterUpdate{"width": 10})
				So(deliverer.count(), ShouldEqual, 1)

				stored, err := hub.Result(ctx, res.RequestID)
				So(err, ShouldBeNil)
				So(stored.Status, ShouldEqual, model.StatusProcessing)
			})

			Convey("Then web clients should see the chat events tagged by ownership", func() {
				So(alice.events(), ShouldResemble, []string{"chat_message", "chat_processing", "chat_llm_response"})
				So(bob.events(), ShouldResemble, []string{"chat_message", "chat_processing", "chat_llm_response"})
				So(alice.last("chat_message")["own"], ShouldEqual, true)
				So(bob.last("chat_message")["own"], ShouldEqual, false)
				So(bob.last("chat_message")["message"], ShouldEqual, "make it much wider")
			})

			Convey("Then the CAD client should receive no chat traffic", func() {
				So(cad.events(), ShouldBeEmpty)
			})

			Convey("Then the completion should see the registered schema", func() {
				So(completer.schemas[0].Names(), ShouldResemble, []string{"width", "height"})
			})
		})

		Convey("When the completion proposes nothing applicable", func() {
			completer.reply = `{"depth": 3}`
			res, err := hub.SubmitPrompt(ctx, origin, service.ChatInput{Prompt: "add a chimney"})

			Convey("Then the request should complete without dispatch", func() {
				So(err, ShouldBeNil)
				So(res.Status, ShouldEqual, model.StatusComplete)
				So(res.Params, ShouldNotBeNil)
				So(res.Params, ShouldBeEmpty)
				So(res.Message, ShouldEqual, service.NoChangesMessage)
				So(deliverer.count(), ShouldEqual, 0)

				stored, _ := hub.Result(ctx, res.RequestID)
				So(stored.Status, ShouldEqual, model.StatusComplete)
				So(stored.Message, ShouldEqual, service.NoChangesMessage)
			})
		})

		Convey("When the completion backend fails", func() {
			completer.err = &llm.GatewayError{StatusCode: 502, Cause: errors.New("bad gateway")}
			res, err := hub.SubmitPrompt(ctx, origin, service.ChatInput{Prompt: "wider"})

			Convey("Then the request should end in error and the originator be told", func() {
				So(errors.Is(err, llm.ErrGateway), ShouldBeTrue)
				So(res.Status, ShouldEqual, model.StatusError)
				stored, _ := hub.Result(ctx, res.RequestID)
				So(stored.Status, ShouldEqual, model.StatusError)
				So(alice.last("error")["request_id"], ShouldEqual, res.RequestID)
				So(bob.last("error"), ShouldBeNil)
				So(deliverer.count(), ShouldEqual, 0)
			})
		})

		Convey("When the completion is not JSON", func() {
			completer.reply = "I cannot help with that."
			res, err := hub.SubmitPrompt(ctx, origin, service.ChatInput{Prompt: "wider"})

			Convey("Then the request should end in error", func() {
				So(err, ShouldNotBeNil)
				So(res.Status, ShouldEqual, model.StatusError)
				So(deliverer.count(), ShouldEqual, 0)
			})
		})

		Convey("When delivery fails", func() {
			completer.reply = `{"height": 3}`
			deliverer.err = &transport.DeliveryError{Transport: "http", Cause: transport.ErrNoListener}
			res, err := hub.SubmitPrompt(ctx, origin, service.ChatInput{Prompt: "taller"})

			Convey("Then the params should be kept but the request failed", func() {
				So(errors.Is(err, transport.ErrDelivery), ShouldBeTrue)
				So(res.Status, ShouldEqual, model.StatusError)
				So(res.Params, ShouldResemble, model.ParameterUpdate{"height": 3})
			})
		})

		Convey("When the prompt is blank", func() {
			_, err := hub.SubmitPrompt(ctx, origin, service.ChatInput{Prompt: "   "})

			Convey("Then it should be rejected before a request exists", func() {
				So(errors.Is(err, service.ErrValidation), ShouldBeTrue)
				So(alice.events(), ShouldBeEmpty)
			})
		})

		Convey("When the client sends its own schema and overrides", func() {
			completer.reply = `{"radius": 2}`
			res, err := hub.SubmitPrompt(ctx, origin, service.ChatInput{
				Prompt: "rounder",
				Params: json.RawMessage(`[{"name":"radius","value":1,"min":0,"max":5}]`),
				Model:  "qwen",
				APIKey: "sk-x",
			})

			Convey("Then that schema should be used for this prompt only", func() {
				So(err, ShouldBeNil)
				So(res.Params, ShouldResemble, model.ParameterUpdate{"radius": 2})
				So(completer.ov, ShouldResemble, llm.Overrides{Model: "qwen", APIKey: "sk-x"})
				So(hub.Schema().Names(), ShouldResemble, []string{"width", "height"})
			})
		})

		Convey("When a prompt arrives over HTTP", func() {
			completer.reply = `{"width": 6}`
			_, err := hub.SubmitPrompt(ctx, service.HTTPOrigin, service.ChatInput{Prompt: "wider"})

			Convey("Then every web client should see it as someone else's", func() {
				So(err, ShouldBeNil)
				So(alice.last("chat_message")["own"], ShouldEqual, false)
				So(bob.last("chat_message")["own"], ShouldEqual, false)
			})
		})
	})

	Convey("Given a hub without a completion backend", t, func() {
		hub := service.New()
		_, err := hub.SubmitPrompt(context.Background(), service.HTTPOrigin, service.ChatInput{Prompt: "wider"})

		Convey("Then prompts should be refused", func() {
			So(errors.Is(err, service.ErrNoGateway), ShouldBeTrue)
		})
	})
}

func TestUpdateParams(t *testing.T) {
	Convey("Given a hub with a registered schema", t, func() {
		ctx := context.Background()
		deliverer := &fakeDeliverer{}
		hub := newHub(&fakeCompleter{}, deliverer)
		web := &inbox{}
		hub.Connect(ctx, "web", web)
		_, err := hub.RegisterSchema(ctx, service.HTTPOrigin, json.RawMessage(widthSchema))
		So(err, ShouldBeNil)
		web.reset()

		Convey("When a slider update arrives", func() {
			res, err := hub.UpdateParams(ctx, service.Origin{ConnID: "web", Source: model.SourceWebSocket},
				model.ParameterUpdate{"height": 9, "depth": 1})

			Convey("Then it should be filtered, clamped, dispatched and acknowledged", func() {
				So(err, ShouldBeNil)
				So(res.Status, ShouldEqual, model.StatusProcessing)
				So(res.Params, ShouldResemble, model.ParameterUpdate{"height": 4})
				So(deliverer.count(), ShouldEqual, 1)
				So(web.last("update_ack")["request_id"], ShouldEqual, res.RequestID)
			})

			Convey("Then a client connecting afterwards should start from the new value", func() {
				late := &inbox{}
				hub.Connect(ctx, "late", late)
				So(paramValue(late, "height"), ShouldEqual, 4.0)
				So(paramValue(late, "width"), ShouldEqual, 5.0)
			})
		})

		Convey("When only unknown keys arrive", func() {
			_, err := hub.UpdateParams(ctx, service.HTTPOrigin, model.ParameterUpdate{"depth": 1})

			Convey("Then it should be rejected", func() {
				So(errors.Is(err, service.ErrValidation), ShouldBeTrue)
				So(deliverer.count(), ShouldEqual, 0)
			})
		})

		Convey("When the update is empty", func() {
			_, err := hub.UpdateParams(ctx, service.HTTPOrigin, model.ParameterUpdate{})

			Convey("Then it should be rejected", func() {
				So(err.Error(), ShouldEqual, "No params")
			})
		})

		Convey("When delivery fails", func() {
			deliverer.err = &transport.DeliveryError{Transport: "http", StatusCode: 500, Cause: errors.New("boom")}
			res, err := hub.UpdateParams(ctx, service.HTTPOrigin, model.ParameterUpdate{"width": 1})

			Convey("Then the request should be stored as failed", func() {
				So(err, ShouldNotBeNil)
				stored, _ := hub.Result(ctx, res.RequestID)
				So(stored.Status, ShouldEqual, model.StatusError)
				So(stored.Error, ShouldContainSubstring, "boom")
			})

			Convey("Then the scene should keep its previous value", func() {
				late := &inbox{}
				hub.Connect(ctx, "late", late)
				So(paramValue(late, "width"), ShouldEqual, 5.0)
			})
		})
	})
}

func TestCADFlows(t *testing.T) {
	Convey("Given a hub with a web client and a CAD client", t, func() {
		ctx := context.Background()
		hub := newHub(&fakeCompleter{}, &fakeDeliverer{})
		web, cad := &inbox{}, &inbox{}
		hub.Connect(ctx, "web", web)
		hub.Connect(ctx, "cad", cad)

		Convey("When a connection identifies as CAD", func() {
			So(hub.IdentifyCAD(ctx, "cad"), ShouldBeNil)

			Convey("Then it should be acknowledged and seeded", func() {
				So(cad.events(), ShouldResemble, []string{"params_init", "gh_connect_ack", "params_init"})
				So(cad.last("gh_connect_ack")["status"], ShouldEqual, "connected")
				stats := hub.GetStats()
				So(stats["cad_clients"], ShouldEqual, 1)
				So(stats["web_clients"], ShouldEqual, 1)
			})
		})

		Convey("When an unknown connection identifies", func() {
			err := hub.IdentifyCAD(ctx, "ghost")

			Convey("Then it should be refused", func() {
				So(errors.Is(err, service.ErrUnknownClient), ShouldBeTrue)
			})
		})

		Convey("When CAD registers a schema", func() {
			So(hub.IdentifyCAD(ctx, "cad"), ShouldBeNil)
			web.reset()
			cad.reset()
			n, err := hub.RegisterSchema(ctx, service.Origin{ConnID: "cad", Source: model.SourceGrasshopper}, json.RawMessage(widthSchema))

			Convey("Then web clients should be synced and CAD acknowledged", func() {
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 2)
				So(web.events(), ShouldResemble, []string{"params_sync"})
				So(web.last("params_sync")["source"], ShouldEqual, "grasshopper")
				So(cad.events(), ShouldResemble, []string{"params_ack"})
				So(cad.last("params_ack")["count"], ShouldEqual, 2.0)
			})
		})

		Convey("When a malformed schema is registered", func() {
			_, err := hub.RegisterSchema(ctx, service.HTTPOrigin, json.RawMessage(`[{"value":1}]`))

			Convey("Then it should be rejected and the schema kept", func() {
				So(errors.Is(err, service.ErrValidation), ShouldBeTrue)
				So(hub.Schema(), ShouldBeEmpty)
			})
		})

		Convey("When CAD reports geometry for a pending request", func() {
			So(hub.IdentifyCAD(ctx, "cad"), ShouldBeNil)
			res, err := hub.UpdateParams(ctx, service.HTTPOrigin, model.ParameterUpdate{"width": 3})
			So(err, ShouldBeNil)
			web.reset()
			cad.reset()

			err = hub.SubmitGeometry(ctx, service.Origin{ConnID: "cad", Source: model.SourceGrasshopper}, service.GeometryInput{
				RequestID: res.RequestID,
				Geometry:  json.RawMessage(`[{"vertices":[]},{"vertices":[]}]`),
				Params:    json.RawMessage(widthSchema),
			})

			Convey("Then the request should complete and web clients see the result", func() {
				So(err, ShouldBeNil)
				stored, _ := hub.Result(ctx, res.RequestID)
				So(stored.Status, ShouldEqual, model.StatusComplete)
				So(stored.Source, ShouldEqual, model.SourceGrasshopper)
				So(web.events(), ShouldResemble, []string{"geometry_result", "params_sync"})
				So(web.last("geometry_result")["status"], ShouldEqual, "complete")
				So(cad.events(), ShouldResemble, []string{"geometry_ack"})
				So(cad.last("geometry_ack")["mesh_count"], ShouldEqual, 2.0)
				So(hub.Schema().Names(), ShouldResemble, []string{"width", "height"})
			})

			Convey("Then a later connection should receive the cached geometry", func() {
				late := &inbox{}
				hub.Connect(ctx, "late", late)
				So(late.events(), ShouldResemble, []string{"params_init", "geometry_result"})
				So(late.last("geometry_result")["status"], ShouldEqual, "cached")
				So(late.last("geometry_result")["request_id"], ShouldEqual, res.RequestID)
			})
		})

		Convey("When geometry arrives with malformed params", func() {
			err := hub.SubmitGeometry(ctx, service.HTTPOrigin, service.GeometryInput{
				RequestID: "req-x",
				Geometry:  json.RawMessage(`{"mesh":1}`),
				Params:    json.RawMessage(`"oops"`),
			})

			Convey("Then the geometry should still apply and params be dropped", func() {
				So(err, ShouldBeNil)
				stored, getErr := hub.Result(ctx, "req-x")
				So(getErr, ShouldBeNil)
				So(stored.Status, ShouldEqual, model.StatusComplete)
				So(web.events(), ShouldNotContain, "params_sync")
				So(hub.Schema(), ShouldBeEmpty)
			})
		})

		Convey("When geometry arrives over HTTP without a request id", func() {
			err := hub.SubmitGeometry(ctx, service.HTTPOrigin, service.GeometryInput{Geometry: json.RawMessage(`[]`)})

			Convey("Then it should be rejected", func() {
				So(errors.Is(err, service.ErrValidation), ShouldBeTrue)
			})
		})

		Convey("When pushed geometry has no request id", func() {
			err := hub.SubmitGeometry(ctx, service.Origin{ConnID: "cad", Source: model.SourceGrasshopper},
				service.GeometryInput{Geometry: json.RawMessage(`[]`)})

			Convey("Then an id should be generated", func() {
				So(err, ShouldBeNil)
				id, _ := cad.last("geometry_ack")["request_id"].(string)
				So(strings.HasPrefix(id, "gh-"), ShouldBeTrue)
			})
		})

		Convey("When geometry is missing", func() {
			err := hub.SubmitGeometry(ctx, service.HTTPOrigin, service.GeometryInput{RequestID: "r", Geometry: json.RawMessage(`null`)})

			Convey("Then it should be rejected", func() {
				So(err.Error(), ShouldEqual, "Missing geometry")
			})
		})
	})
}

func TestHandleFrame(t *testing.T) {
	Convey("Given a connected client", t, func() {
		ctx := context.Background()
		completer := &fakeCompleter{reply: `{}`}
		deliverer := &fakeDeliverer{}
		hub := newHub(completer, deliverer)
		conn := &inbox{}
		hub.Connect(ctx, "c1", conn)
		conn.reset()

		Convey("When it sends gh_connect", func() {
			hub.HandleFrame(ctx, "c1", []byte(`{"event":"gh_connect","data":{"client_type":"grasshopper"}}`))

			Convey("Then it should become a CAD client", func() {
				So(hub.Registry().CADClients(), ShouldResemble, []string{"c1"})
			})
		})

		Convey("When it sends an unknown event", func() {
			hub.HandleFrame(ctx, "c1", []byte(`{"event":"dance","data":{}}`))

			Convey("Then it should receive an error event", func() {
				So(conn.events(), ShouldResemble, []string{"error"})
			})
		})

		Convey("When it sends garbage", func() {
			hub.HandleFrame(ctx, "c1", []byte(`not json`))

			Convey("Then it should receive an error event", func() {
				So(conn.events(), ShouldResemble, []string{"error"})
			})
		})

		Convey("When it sends an empty params_update", func() {
			hub.HandleFrame(ctx, "c1", []byte(`{"event":"params_update","data":{"params":{}}}`))

			Convey("Then the validation message should come back", func() {
				So(conn.last("error")["message"], ShouldEqual, "No params")
				So(deliverer.count(), ShouldEqual, 0)
			})
		})

		Convey("When it sends a params_update holding only nulls", func() {
			hub.HandleFrame(ctx, "c1", []byte(`{"event":"params_update","data":{"params":{"width":null}}}`))

			Convey("Then nothing should be dispatched", func() {
				So(conn.last("error")["message"], ShouldEqual, "No params")
				So(deliverer.count(), ShouldEqual, 0)
			})
		})

		Convey("When it sends a params_update mixing nulls and values", func() {
			hub.HandleFrame(ctx, "c1", []byte(`{"event":"params_update","data":{"params":{"width":null,"height":3}}}`))

			Convey("Then only the valued parameter should be dispatched", func() {
				So(deliverer.count(), ShouldEqual, 1)
				So(deliverer.calls[0], ShouldResemble, model.ParameterUpdate{"height": 3})
			})
		})

		Convey("When it sends a chat_request", func() {
			hub.HandleFrame(ctx, "c1", []byte(`{"event":"chat_request","data":{"prompt":"hi","username":"c"}}`))

			Convey("Then the chat flow should run", func() {
				So(conn.events(), ShouldResemble, []string{"chat_message", "chat_processing", "chat_llm_response"})
			})
		})

		Convey("When it disconnects", func() {
			hub.Disconnect(ctx, "c1")

			Convey("Then it should be gone", func() {
				So(hub.Registry().WebClients(), ShouldBeEmpty)
			})
		})
	})
}

func TestQueuedPrompts(t *testing.T) {
	Convey("Given a hub whose push prompts go through a job queue", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		q := queue.NewInMemoryQueue(queue.WithCapacity(1))
		completer := &fakeCompleter{reply: `{}`}
		hub := newHub(completer, &fakeDeliverer{}, service.WithJobQueue(q))
		conn := &inbox{}
		hub.Connect(ctx, "c1", conn)
		conn.reset()

		Convey("When more prompts arrive than the queue holds", func() {
			hub.HandleFrame(ctx, "c1", []byte(`{"event":"chat_request","data":{"prompt":"one"}}`))
			hub.HandleFrame(ctx, "c1", []byte(`{"event":"chat_request","data":{"prompt":"two"}}`))

			Convey("Then the overflow should be refused with an error event", func() {
				So(q.Len(ctx), ShouldEqual, 1)
				So(conn.events(), ShouldResemble, []string{"error"})
				So(conn.last("error")["message"], ShouldEqual, service.ErrBusy.Error())
			})
		})

		Convey("When a worker pool drains the queue", func() {
			pool := worker.NewPool(1, q)
			pool.Start(ctx)
			hub.HandleFrame(ctx, "c1", []byte(`{"event":"chat_request","data":{"prompt":"hi"}}`))
			So(pool.Shutdown(ctx), ShouldBeNil)

			Convey("Then the chat flow should run on the worker", func() {
				So(conn.events(), ShouldResemble, []string{"chat_message", "chat_processing", "chat_llm_response"})
			})
		})

		Convey("When a queued prompt is blank", func() {
			pool := worker.NewPool(1, q)
			pool.Start(ctx)
			hub.HandleFrame(ctx, "c1", []byte(`{"event":"chat_request","data":{"prompt":"  "}}`))
			So(pool.Shutdown(ctx), ShouldBeNil)

			Convey("Then the validation error should still reach the client", func() {
				So(conn.events(), ShouldResemble, []string{"error"})
			})
		})
	})
}

func TestLifecycle(t *testing.T) {
	Convey("Given a hub", t, func() {
		fixed := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
		hub := service.New(
			service.WithClock(func() time.Time { return fixed }),
			service.WithTranscriber(fakeTranscriber{}),
			service.WithResultStore(repository.NewResultStore(repository.WithSweepInterval(time.Millisecond))),
		)

		Convey("When started and stopped", func() {
			So(hub.Start(context.Background()), ShouldBeNil)
			So(hub.Start(context.Background()), ShouldBeNil)
			stats := hub.GetStats()
			hub.Stop()
			hub.Stop()

			Convey("Then stats should reflect the running state", func() {
				So(stats["started"], ShouldEqual, true)
				So(stats["uptime_seconds"], ShouldEqual, 0.0)
				So(stats["transcription"], ShouldEqual, true)
				So(hub.GetStats()["started"], ShouldEqual, false)
			})
		})

		Convey("When audio is transcribed", func() {
			res, err := hub.Transcribe(context.Background(), "a.webm", strings.NewReader("xyz"))

			Convey("Then the transcriber result should come back", func() {
				So(err, ShouldBeNil)
				So(res.Text, ShouldEqual, "a.webm:xyz")
			})
		})
	})

	Convey("Given a hub without a transcriber", t, func() {
		_, err := service.New().Transcribe(context.Background(), "a.webm", strings.NewReader(""))

		Convey("Then transcription should be disabled", func() {
			So(errors.Is(err, transcribe.ErrDisabled), ShouldBeTrue)
		})
	})
}
