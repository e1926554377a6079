package formats

import (
	"testing"

	"github.com/Faultbox/meshpreview/pkg/math"
)

func TestDecodeOBJ(t *testing.T) {
	data := []byte(`# unit quad
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
f 1 2 3
f 1 3 4
`)
	s, err := Decode("quad.obj", "", data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	mesh := s.Root.Children[0].Mesh
	if mesh.TriangleCount() != 2 {
		t.Fatalf("TriangleCount() = %d, want 2", mesh.TriangleCount())
	}

	b := math.EmptyBox()
	for _, p := range mesh.Positions {
		b = b.Extend(p)
	}
	if got, want := b.Size(), (math.Vec3{X: 1, Y: 1}); got != want {
		t.Errorf("quad size = %v, want %v", got, want)
	}
}
