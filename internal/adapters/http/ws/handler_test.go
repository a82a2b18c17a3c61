package ws_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/cadhub/internal/adapters/http/ws"
	"github.com/okian/cadhub/internal/domain/registry"
	"github.com/okian/cadhub/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(logger.WithOutput(io.Discard)); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// echoHub greets on connect and echoes every frame back to its sender.
type echoHub struct {
	mu           sync.Mutex
	senders      map[string]registry.Sender
	disconnected chan string
}

func newEchoHub() *echoHub {
	return &echoHub{senders: map[string]registry.Sender{}, disconnected: make(chan string, 4)}
}

func (h *echoHub) Connect(_ context.Context, id string, s registry.Sender) {
	h.mu.Lock()
	h.senders[id] = s
	h.mu.Unlock()
	s.Send([]byte(`{"event":"params_init","data":{"params":[]}}`))
}

func (h *echoHub) HandleFrame(_ context.Context, id string, frame []byte) {
	h.mu.Lock()
	s := h.senders[id]
	h.mu.Unlock()
	s.Send(frame)
}

func (h *echoHub) Disconnect(_ context.Context, id string) {
	h.mu.Lock()
	delete(h.senders, id)
	h.mu.Unlock()
	h.disconnected <- id
}

func dial(url string, header http.Header) (*websocket.Conn, *http.Response, error) {
	return websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(url, "http"), header)
}

func TestHandler(t *testing.T) {
	Convey("Given a push channel server", t, func() {
		hub := newEchoHub()
		handler := ws.NewHandler(hub, ws.WithIDGenerator(func() string { return "conn-1" }))
		srv := httptest.NewServer(handler)
		defer srv.Close()

		Convey("When a client connects", func() {
			conn, _, err := dial(srv.URL, nil)
			So(err, ShouldBeNil)
			defer conn.Close()
			_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

			Convey("Then it should be greeted", func() {
				_, msg, err := conn.ReadMessage()
				So(err, ShouldBeNil)
				So(string(msg), ShouldContainSubstring, "params_init")
			})

			Convey("Then frames should reach the hub and answers come back", func() {
				_, _, err := conn.ReadMessage()
				So(err, ShouldBeNil)
				So(conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"gh_connect","data":{}}`)), ShouldBeNil)
				_, msg, err := conn.ReadMessage()
				So(err, ShouldBeNil)
				So(string(msg), ShouldEqual, `{"event":"gh_connect","data":{}}`)
			})

			Convey("Then closing should disconnect it from the hub", func() {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				select {
				case id := <-hub.disconnected:
					So(id, ShouldEqual, "conn-1")
				case <-time.After(2 * time.Second):
					So("timeout", ShouldBeEmpty)
				}
			})
		})

		Convey("When the server shuts down", func() {
			conn, _, err := dial(srv.URL, nil)
			So(err, ShouldBeNil)
			defer conn.Close()
			_, _, _ = conn.ReadMessage()

			deadline := time.Now().Add(2 * time.Second)
			for handler.Len() == 0 && time.Now().Before(deadline) {
				time.Sleep(5 * time.Millisecond)
			}
			handler.CloseAll()

			Convey("Then the client should see the connection close", func() {
				_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
				_, _, err := conn.ReadMessage()
				So(err, ShouldNotBeNil)
			})
		})
	})

	Convey("Given a server restricted to one origin", t, func() {
		handler := ws.NewHandler(newEchoHub(), ws.WithAllowedOrigins([]string{"http://app.local"}))
		srv := httptest.NewServer(handler)
		defer srv.Close()

		Convey("When a foreign origin connects", func() {
			_, resp, err := dial(srv.URL, http.Header{"Origin": []string{"http://evil.local"}})

			Convey("Then the upgrade should be refused", func() {
				So(err, ShouldNotBeNil)
				So(resp, ShouldNotBeNil)
				So(resp.StatusCode, ShouldEqual, http.StatusForbidden)
			})
		})

		Convey("When the allowed origin connects", func() {
			conn, _, err := dial(srv.URL, http.Header{"Origin": []string{"http://app.local"}})

			Convey("Then the upgrade should succeed", func() {
				So(err, ShouldBeNil)
				_ = conn.Close()
			})
		})
	})
}
