package formats

import (
	"bytes"

	"github.com/hschendel/stl"

	"github.com/Faultbox/meshpreview/pkg/math"
	"github.com/Faultbox/meshpreview/pkg/scene"
)

// DecodeSTL parses an ASCII or binary STL payload. STL carries no
// materials, so the resulting mesh has none.
func DecodeSTL(name string, data []byte) (*scene.Scene, error) {
	solid, err := stl.ReadAll(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	m := &scene.Mesh{
		Name:      solid.Name,
		Positions: make([]math.Vec3, 0, len(solid.Triangles)*3),
	}
	for _, t := range solid.Triangles {
		for _, v := range t.Vertices {
			m.Positions = append(m.Positions, math.Vec3{X: float64(v[0]), Y: float64(v[1]), Z: float64(v[2])})
		}
	}

	s := scene.New(name)
	node := s.Root.AddChild(scene.NewNode(solid.Name))
	node.Mesh = m
	return s, nil
}
