package formats

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

// makeGLB writes a one-node GLB whose single triangle spans min..max and
// returns the encoded bytes.
func makeGLB(t *testing.T, withMaterial bool, translation [3]float32) []byte {
	t.Helper()

	doc := gltf.NewDocument()
	pos := modeler.WritePosition(doc, [][3]float32{
		{-10, -5, -20},
		{10, 5, -20},
		{10, 5, 20},
	})
	idx := modeler.WriteIndices(doc, []uint16{0, 1, 2})

	prim := &gltf.Primitive{
		Attributes: map[string]uint32{gltf.POSITION: uint32(pos)},
		Indices:    gltf.Index(uint32(idx)),
	}
	if withMaterial {
		doc.Materials = []*gltf.Material{{
			Name: "white-plastic",
			PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
				BaseColorFactor: &[4]float32{1, 1, 1, 1},
				MetallicFactor:  gltf.Float(0),
				RoughnessFactor: gltf.Float(0.5),
			},
		}}
		prim.Material = gltf.Index(0)
	}

	doc.Meshes = []*gltf.Mesh{{Name: "part", Primitives: []*gltf.Primitive{prim}}}
	doc.Nodes = []*gltf.Node{{Name: "part", Mesh: gltf.Index(0), Translation: translation}}
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, uint32(0))

	path := filepath.Join(t.TempDir(), "part.glb")
	if err := gltf.SaveBinary(doc, path); err != nil {
		t.Fatalf("SaveBinary: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading GLB: %v", err)
	}
	return data
}
