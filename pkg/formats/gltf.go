package formats

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/Faultbox/meshpreview/pkg/math"
	"github.com/Faultbox/meshpreview/pkg/scene"
)

var (
	ErrNoScene             = errors.New("glTF document has no scene")
	ErrInvalidReference    = errors.New("glTF index out of range")
	ErrMissingPositions    = errors.New("glTF primitive has no POSITION attribute")
	ErrCyclicNodeHierarchy = errors.New("glTF node hierarchy contains a cycle")
)

// Extensions that require a physical (rather than standard) PBR material.
var physicalExtensions = []string{
	"KHR_materials_clearcoat",
	"KHR_materials_transmission",
	"KHR_materials_sheen",
	"KHR_materials_specular",
	"KHR_materials_ior",
	"KHR_materials_volume",
	"KHR_materials_iridescence",
}

const unlitExtension = "KHR_materials_unlit"

var identity16 = [16]float32{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1}

// DecodeGLTF parses a GLB container or a self-contained glTF JSON document.
func DecodeGLTF(name string, data []byte) (*scene.Scene, error) {
	doc := new(gltf.Document)
	if err := gltf.NewDecoder(bytes.NewReader(data)).Decode(doc); err != nil {
		return nil, err
	}
	return buildGLTFScene(name, doc)
}

func buildGLTFScene(name string, doc *gltf.Document) (*scene.Scene, error) {
	if len(doc.Scenes) == 0 {
		return nil, ErrNoScene
	}
	sceneIdx := 0
	if doc.Scene != nil {
		sceneIdx = int(*doc.Scene)
	}
	if sceneIdx >= len(doc.Scenes) {
		return nil, fmt.Errorf("scene %d: %w", sceneIdx, ErrInvalidReference)
	}

	b := &gltfBuilder{
		doc:       doc,
		materials: make(map[uint32]*scene.Material),
	}

	out := scene.New(name)
	for _, idx := range doc.Scenes[sceneIdx].Nodes {
		child, err := b.node(uint32(idx), make(map[uint32]bool))
		if err != nil {
			return nil, err
		}
		out.Root.AddChild(child)
	}
	return out, nil
}

type gltfBuilder struct {
	doc       *gltf.Document
	materials map[uint32]*scene.Material
}

func (b *gltfBuilder) node(idx uint32, visiting map[uint32]bool) (*scene.Node, error) {
	if int(idx) >= len(b.doc.Nodes) {
		return nil, fmt.Errorf("node %d: %w", idx, ErrInvalidReference)
	}
	if visiting[idx] {
		return nil, fmt.Errorf("node %d: %w", idx, ErrCyclicNodeHierarchy)
	}
	visiting[idx] = true
	defer delete(visiting, idx)

	src := b.doc.Nodes[idx]
	n := scene.NewNode(src.Name)
	n.Transform = nodeMatrix(src)

	if src.Mesh != nil {
		meshes, err := b.mesh(uint32(*src.Mesh))
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", idx, err)
		}
		// A single primitive lives on the node itself; several become
		// child nodes, one mesh each.
		if len(meshes) == 1 {
			n.Mesh = meshes[0]
		} else {
			for _, m := range meshes {
				child := scene.NewNode(m.Name)
				child.Mesh = m
				n.AddChild(child)
			}
		}
	}

	for _, c := range src.Children {
		child, err := b.node(uint32(c), visiting)
		if err != nil {
			return nil, err
		}
		n.AddChild(child)
	}
	return n, nil
}

func nodeMatrix(n *gltf.Node) mgl64.Mat4 {
	if m := n.MatrixOrDefault(); m != identity16 {
		var out mgl64.Mat4
		for i, v := range m {
			out[i] = float64(v)
		}
		return out
	}

	t := n.TranslationOrDefault()
	r := n.RotationOrDefault()
	s := n.ScaleOrDefault()

	rot := mgl64.Quat{W: float64(r[3]), V: mgl64.Vec3{float64(r[0]), float64(r[1]), float64(r[2])}}
	return mgl64.Translate3D(float64(t[0]), float64(t[1]), float64(t[2])).
		Mul4(rot.Normalize().Mat4()).
		Mul4(mgl64.Scale3D(float64(s[0]), float64(s[1]), float64(s[2])))
}

func (b *gltfBuilder) mesh(idx uint32) ([]*scene.Mesh, error) {
	if int(idx) >= len(b.doc.Meshes) {
		return nil, fmt.Errorf("mesh %d: %w", idx, ErrInvalidReference)
	}
	src := b.doc.Meshes[idx]

	var out []*scene.Mesh
	for i, prim := range src.Primitives {
		m, err := b.primitive(prim)
		if err != nil {
			return nil, fmt.Errorf("mesh %d primitive %d: %w", idx, i, err)
		}
		if m == nil {
			continue
		}
		m.Name = src.Name
		if len(src.Primitives) > 1 {
			m.Name = fmt.Sprintf("%s.%d", src.Name, i)
		}
		out = append(out, m)
	}
	return out, nil
}

// primitive converts a triangle primitive. Point and line primitives carry
// no surface and are skipped (nil, nil).
func (b *gltfBuilder) primitive(prim *gltf.Primitive) (*scene.Mesh, error) {
	switch prim.Mode {
	case gltf.PrimitiveTriangles, gltf.PrimitiveTriangleStrip, gltf.PrimitiveTriangleFan:
	default:
		return nil, nil
	}

	posIdx, ok := prim.Attributes[gltf.POSITION]
	if !ok {
		return nil, ErrMissingPositions
	}
	if int(posIdx) >= len(b.doc.Accessors) {
		return nil, fmt.Errorf("position accessor %d: %w", posIdx, ErrInvalidReference)
	}
	raw, err := modeler.ReadPosition(b.doc, b.doc.Accessors[posIdx], nil)
	if err != nil {
		return nil, fmt.Errorf("reading positions: %w", err)
	}

	m := &scene.Mesh{Positions: make([]math.Vec3, len(raw))}
	for i, p := range raw {
		m.Positions[i] = math.Vec3{X: float64(p[0]), Y: float64(p[1]), Z: float64(p[2])}
	}

	var indices []uint32
	if prim.Indices != nil {
		if int(*prim.Indices) >= len(b.doc.Accessors) {
			return nil, fmt.Errorf("index accessor %d: %w", *prim.Indices, ErrInvalidReference)
		}
		indices, err = modeler.ReadIndices(b.doc, b.doc.Accessors[*prim.Indices], nil)
		if err != nil {
			return nil, fmt.Errorf("reading indices: %w", err)
		}
		for i, v := range indices {
			if int(v) >= len(m.Positions) {
				return nil, fmt.Errorf("index %d references vertex %d of %d: %w",
					i, v, len(m.Positions), ErrInvalidReference)
			}
		}
	}
	m.Indices = triangulate(prim.Mode, indices, len(m.Positions))

	if prim.Material != nil {
		mat, err := b.material(uint32(*prim.Material))
		if err != nil {
			return nil, err
		}
		m.Materials = []*scene.Material{mat}
	}
	return m, nil
}

// triangulate converts strips and fans to a plain triangle list. For
// non-indexed triangle lists it returns nil so positions are read in order.
func triangulate(mode gltf.PrimitiveMode, indices []uint32, vertexCount int) []uint32 {
	if mode == gltf.PrimitiveTriangles {
		if indices == nil {
			return nil
		}
		return indices[:len(indices)-len(indices)%3]
	}

	if indices == nil {
		indices = make([]uint32, vertexCount)
		for i := range indices {
			indices[i] = uint32(i)
		}
	}
	if len(indices) < 3 {
		return []uint32{}
	}

	out := make([]uint32, 0, (len(indices)-2)*3)
	for i := 2; i < len(indices); i++ {
		switch mode {
		case gltf.PrimitiveTriangleStrip:
			if i%2 == 0 {
				out = append(out, indices[i-2], indices[i-1], indices[i])
			} else {
				out = append(out, indices[i-1], indices[i-2], indices[i])
			}
		case gltf.PrimitiveTriangleFan:
			out = append(out, indices[0], indices[i-1], indices[i])
		}
	}
	return out
}

// material converts a glTF material. Instances are shared between the
// primitives of one decoded document, like the source asset does.
func (b *gltfBuilder) material(idx uint32) (*scene.Material, error) {
	if mat, ok := b.materials[idx]; ok {
		return mat, nil
	}
	if int(idx) >= len(b.doc.Materials) {
		return nil, fmt.Errorf("material %d: %w", idx, ErrInvalidReference)
	}
	src := b.doc.Materials[idx]

	mat := &scene.Material{
		Name:      src.Name,
		Kind:      scene.MaterialStandard,
		Color:     scene.Color{R: 1, G: 1, B: 1},
		Opacity:   1,
		Metalness: 1,
		Roughness: 1,
	}
	if pbr := src.PBRMetallicRoughness; pbr != nil {
		if c := pbr.BaseColorFactor; c != nil {
			mat.Color = scene.Color{R: float64(c[0]), G: float64(c[1]), B: float64(c[2])}
			mat.Opacity = float64(c[3])
		}
		if pbr.MetallicFactor != nil {
			mat.Metalness = float64(*pbr.MetallicFactor)
		}
		if pbr.RoughnessFactor != nil {
			mat.Roughness = float64(*pbr.RoughnessFactor)
		}
	}

	if _, ok := src.Extensions[unlitExtension]; ok {
		mat.Kind = scene.MaterialBasic
	} else {
		for _, ext := range physicalExtensions {
			if _, ok := src.Extensions[ext]; ok {
				mat.Kind = scene.MaterialPhysical
				break
			}
		}
	}

	b.materials[idx] = mat
	return mat, nil
}
