package formats

import (
	"fmt"
	"os"

	"github.com/fogleman/fauxgl"

	"github.com/Faultbox/meshpreview/pkg/math"
	"github.com/Faultbox/meshpreview/pkg/scene"
)

// DecodeFauxGL parses OBJ, PLY and 3DS payloads with fauxgl. The fauxgl
// loaders read from a path, so the payload is spooled to a temp file.
func DecodeFauxGL(name string, format Format, data []byte) (*scene.Scene, error) {
	f, err := os.CreateTemp("", "meshpreview-*."+format.String())
	if err != nil {
		return nil, fmt.Errorf("spooling asset: %w", err)
	}
	defer os.Remove(f.Name())

	if _, err := f.Write(data); err != nil {
		f.Close()
		return nil, fmt.Errorf("spooling asset: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("spooling asset: %w", err)
	}

	var mesh *fauxgl.Mesh
	switch format {
	case FormatOBJ:
		mesh, err = fauxgl.LoadOBJ(f.Name())
	case FormatPLY:
		mesh, err = fauxgl.LoadPLY(f.Name())
	case Format3DS:
		mesh, err = fauxgl.Load3DS(f.Name())
	default:
		return nil, ErrUnsupportedFormat
	}
	if err != nil {
		return nil, err
	}

	m := &scene.Mesh{
		Name:      name,
		Positions: make([]math.Vec3, 0, len(mesh.Triangles)*3),
	}
	for _, t := range mesh.Triangles {
		for _, v := range []fauxgl.Vertex{t.V1, t.V2, t.V3} {
			p := v.Position
			m.Positions = append(m.Positions, math.Vec3{X: p.X, Y: p.Y, Z: p.Z})
		}
	}

	s := scene.New(name)
	node := s.Root.AddChild(scene.NewNode(name))
	node.Mesh = m
	return s, nil
}
