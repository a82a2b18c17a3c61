package cadsim

import "github.com/okian/cadhub/internal/domain/model"

// Point is a vertex or normal in the web viewer's mesh format.
type Point struct {
	X float64 `json:"X"`
	Y float64 `json:"Y"`
	Z float64 `json:"Z"`
}

// Face is a quad; triangles repeat C as D.
type Face struct {
	A int `json:"A"`
	B int `json:"B"`
	C int `json:"C"`
	D int `json:"D"`
}

// MeshData is one serialized mesh.
type MeshData struct {
	Vertices []Point `json:"vertices"`
	Normals  []Point `json:"normals"`
	Faces    []Face  `json:"faces"`
}

// Mesh is a mesh with its material.
type Mesh struct {
	MeshData MeshData          `json:"meshData"`
	MetaData map[string]string `json:"metaData"`
}

// GeometryItem is one element of the geometry list sent to the hub.
type GeometryItem struct {
	Mesh Mesh `json:"mesh"`
}

// BoxGeometry solves the schema into a single axis-aligned box. Missing
// dimensions default to 1.
func BoxGeometry(schema model.Schema, material string) []GeometryItem {
	dim := func(name string) float64 {
		if p, ok := schema.Lookup(name); ok && p.Value > 0 {
			return p.Value
		}
		return 1
	}
	w, d, h := dim("width"), dim("depth"), dim("height")

	vertices := []Point{
		{0, 0, 0}, {w, 0, 0}, {w, d, 0}, {0, d, 0},
		{0, 0, h}, {w, 0, h}, {w, d, h}, {0, d, h},
	}
	faces := []Face{
		{0, 3, 2, 1}, // bottom
		{4, 5, 6, 7}, // top
		{0, 1, 5, 4},
		{1, 2, 6, 5},
		{2, 3, 7, 6},
		{3, 0, 4, 7},
	}
	// Per-vertex normals pointing away from the box centre.
	normals := make([]Point, len(vertices))
	for i, v := range vertices {
		normals[i] = Point{X: sign(v.X - w/2), Y: sign(v.Y - d/2), Z: sign(v.Z - h/2)}
	}

	if material == "" {
		material = "default"
	}
	return []GeometryItem{{Mesh: Mesh{
		MeshData: MeshData{Vertices: vertices, Normals: normals, Faces: faces},
		MetaData: map[string]string{"material": material},
	}}}
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
