package scene_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/okian/cadhub/internal/domain/model"
	"github.com/okian/cadhub/internal/domain/scene"
	. "github.com/smartystreets/goconvey/convey"
)

func TestScene(t *testing.T) {
	Convey("Given a fresh scene", t, func() {
		now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
		s := scene.New(func() time.Time { return now })

		Convey("Then it should hold nothing", func() {
			So(s.Schema(), ShouldBeEmpty)
			_, _, ok := s.Geometry()
			So(ok, ShouldBeFalse)
		})

		Convey("When a schema is registered twice", func() {
			s.ReplaceSchema(model.Schema{{Name: "width", Value: 5, Min: 0, Max: 10}, {Name: "height", Value: 1}})
			s.ReplaceSchema(model.Schema{{Name: "depth", Value: 2, Min: 0, Max: 4}})

			Convey("Then the second should replace the first wholesale", func() {
				So(s.Schema().Names(), ShouldResemble, []string{"depth"})
				So(s.Snapshot().SchemaUpdatedAt, ShouldEqual, now)
			})
		})

		Convey("When the caller mutates a returned schema", func() {
			s.ReplaceSchema(model.Schema{{Name: "width", Value: 5}})
			got := s.Schema()
			got[0].Value = 99

			Convey("Then the scene should be unaffected", func() {
				So(s.Schema()[0].Value, ShouldEqual, 5.0)
			})
		})

		Convey("When accepted values are applied", func() {
			s.ReplaceSchema(model.Schema{{Name: "width", Value: 5}, {Name: "height", Value: 1}})
			s.ApplyValues(model.ParameterUpdate{"width": 7, "ghost": 1})

			Convey("Then known parameters should take the new values", func() {
				So(s.Schema()[0].Value, ShouldEqual, 7.0)
				So(s.Schema()[1].Value, ShouldEqual, 1.0)
				So(s.Schema(), ShouldHaveLength, 2)
			})
		})

		Convey("When geometry is cached", func() {
			s.SetGeometry("req-1", json.RawMessage(`[{"mesh":1}]`))
			s.SetGeometry("req-2", json.RawMessage(`[{"mesh":2}]`))

			Convey("Then the latest should be returned", func() {
				g, id, ok := s.Geometry()
				So(ok, ShouldBeTrue)
				So(id, ShouldEqual, "req-2")
				So(string(g), ShouldEqual, `[{"mesh":2}]`)
			})
		})
	})
}
