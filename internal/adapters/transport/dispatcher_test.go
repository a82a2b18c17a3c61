package transport_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/cadhub/internal/adapters/transport"
	"github.com/okian/cadhub/internal/domain/model"
	"github.com/okian/cadhub/internal/domain/registry"
	"github.com/okian/cadhub/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logger.Init(logger.WithOutput(io.Discard)); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type inbox struct {
	mu   sync.Mutex
	msgs [][]byte
}

func (b *inbox) Send(msg []byte) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = append(b.msgs, msg)
	return true
}

func (b *inbox) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.msgs)
}

type listener struct {
	hits   atomic.Int32
	status atomic.Int32
	mu     sync.Mutex
	body   map[string]any
}

func (l *listener) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	l.hits.Add(1)
	var body map[string]any
	_ = json.NewDecoder(r.Body).Decode(&body)
	l.mu.Lock()
	l.body = body
	l.mu.Unlock()
	w.WriteHeader(int(l.status.Load()))
}

func TestDispatcher(t *testing.T) {
	Convey("Given a registry and a CAD listener", t, func() {
		ctx := context.Background()
		reg := registry.New()
		web, cad1, cad2 := &inbox{}, &inbox{}, &inbox{}
		reg.Add("web", web)

		l := &listener{}
		l.status.Store(http.StatusOK)
		srv := httptest.NewServer(l)
		defer srv.Close()

		d := transport.NewDispatcher(reg,
			transport.WithListenerURL(srv.URL+"/params"),
			transport.WithTimeout(time.Second),
		)
		update := model.ParameterUpdate{"width": 8}

		Convey("When CAD clients are connected", func() {
			reg.Add("cad1", cad1)
			reg.Add("cad2", cad2)
			So(reg.PromoteToCAD("cad1"), ShouldBeNil)
			So(reg.PromoteToCAD("cad2"), ShouldBeNil)

			out, err := d.Deliver(ctx, "r1", update)

			Convey("Then every CAD client should get params_to_gh and HTTP should be skipped", func() {
				So(err, ShouldBeNil)
				So(out, ShouldEqual, transport.DeliveredViaPush)
				So(cad1.len(), ShouldEqual, 1)
				So(cad2.len(), ShouldEqual, 1)
				So(web.len(), ShouldEqual, 0)
				So(int(l.hits.Load()), ShouldEqual, 0)

				var env struct {
					Event string `json:"event"`
					Data  struct {
						RequestID string             `json:"request_id"`
						Params    map[string]float64 `json:"params"`
					} `json:"data"`
				}
				So(json.Unmarshal(cad1.msgs[0], &env), ShouldBeNil)
				So(env.Event, ShouldEqual, "params_to_gh")
				So(env.Data.RequestID, ShouldEqual, "r1")
				So(env.Data.Params["width"], ShouldEqual, 8.0)
			})
		})

		Convey("When no CAD client is connected", func() {
			out, err := d.Deliver(ctx, "r2", update)

			Convey("Then one HTTP POST should carry request id and params", func() {
				So(err, ShouldBeNil)
				So(out, ShouldEqual, transport.DeliveredViaHTTP)
				So(int(l.hits.Load()), ShouldEqual, 1)
				l.mu.Lock()
				defer l.mu.Unlock()
				So(l.body["request_id"], ShouldEqual, "r2")
				So(l.body["params"], ShouldResemble, map[string]any{"width": 8.0})
				So(web.len(), ShouldEqual, 0)
			})
		})

		Convey("When the listener rejects the update", func() {
			l.status.Store(http.StatusServiceUnavailable)

			_, err := d.Deliver(ctx, "r3", update)

			Convey("Then a DeliveryError with the status should be returned", func() {
				var de *transport.DeliveryError
				So(errors.As(err, &de), ShouldBeTrue)
				So(de.Transport, ShouldEqual, "http")
				So(de.StatusCode, ShouldEqual, http.StatusServiceUnavailable)
				So(errors.Is(err, transport.ErrDelivery), ShouldBeTrue)
			})
		})

		Convey("When the listener is unreachable", func() {
			dead := httptest.NewServer(http.NotFoundHandler())
			url := dead.URL
			dead.Close()
			d := transport.NewDispatcher(reg, transport.WithListenerURL(url), transport.WithTimeout(time.Second))

			_, err := d.Deliver(ctx, "r4", update)

			Convey("Then the cause should be wrapped in a DeliveryError", func() {
				So(errors.Is(err, transport.ErrDelivery), ShouldBeTrue)
			})
		})

		Convey("When no listener is configured", func() {
			d := transport.NewDispatcher(reg)

			_, err := d.Deliver(ctx, "r5", update)

			Convey("Then ErrNoListener should be reported", func() {
				So(errors.Is(err, transport.ErrNoListener), ShouldBeTrue)
				So(errors.Is(err, transport.ErrDelivery), ShouldBeTrue)
			})
		})
	})
}
