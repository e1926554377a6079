// Package scene defines the in-memory scene graph produced by the asset
// decoders and consumed by the preview pipeline.
//
// Vertex buffers are immutable once decoded and are shared between clones.
// Nodes, meshes and materials are owned per clone and may be mutated freely.
package scene

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/Faultbox/meshpreview/pkg/math"
)

// Scene is the root of a loaded asset.
type Scene struct {
	Name string
	Root *Node
}

// Node is a transform in the scene graph, optionally carrying a mesh.
type Node struct {
	Name string
	// Transform is relative to the parent. The zero matrix means identity.
	Transform mgl64.Mat4
	Mesh      *Mesh
	Children  []*Node
}

// Mesh is an indexed triangle list.
type Mesh struct {
	Name      string
	Positions []math.Vec3
	// Indices into Positions, three per triangle. Nil means the positions
	// are consumed sequentially.
	Indices []uint32
	// Materials is empty when the asset provided none.
	Materials []*Material
}

// New returns a scene with an empty root node.
func New(name string) *Scene {
	return &Scene{Name: name, Root: NewNode(name)}
}

// NewNode returns a node with an identity transform.
func NewNode(name string) *Node {
	return &Node{Name: name, Transform: mgl64.Ident4()}
}

// AddChild appends child to n and returns child.
func (n *Node) AddChild(child *Node) *Node {
	n.Children = append(n.Children, child)
	return child
}

// LocalMatrix returns the node transform, substituting identity for the
// zero matrix.
func (n *Node) LocalMatrix() mgl64.Mat4 {
	if n.Transform == (mgl64.Mat4{}) {
		return mgl64.Ident4()
	}
	return n.Transform
}

// TriangleCount returns the number of triangles in the mesh.
func (m *Mesh) TriangleCount() int {
	if m.Indices != nil {
		return len(m.Indices) / 3
	}
	return len(m.Positions) / 3
}

// Triangle returns the positions of triangle i.
func (m *Mesh) Triangle(i int) (a, b, c math.Vec3) {
	if m.Indices != nil {
		return m.Positions[m.Indices[3*i]], m.Positions[m.Indices[3*i+1]], m.Positions[m.Indices[3*i+2]]
	}
	return m.Positions[3*i], m.Positions[3*i+1], m.Positions[3*i+2]
}

// Clone returns a copy of the mesh with its own materials. Vertex and
// index buffers are shared.
func (m *Mesh) Clone() *Mesh {
	if m == nil {
		return nil
	}
	c := &Mesh{
		Name:      m.Name,
		Positions: m.Positions,
		Indices:   m.Indices,
	}
	if m.Materials != nil {
		c.Materials = make([]*Material, len(m.Materials))
		for i, mat := range m.Materials {
			c.Materials[i] = mat.Clone()
		}
	}
	return c
}

// Clone deep-copies the node subtree.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	c := &Node{
		Name:      n.Name,
		Transform: n.Transform,
		Mesh:      n.Mesh.Clone(),
	}
	if len(n.Children) > 0 {
		c.Children = make([]*Node, len(n.Children))
		for i, child := range n.Children {
			c.Children[i] = child.Clone()
		}
	}
	return c
}

// Clone deep-copies the scene graph. The copy may be mutated without
// affecting s.
func (s *Scene) Clone() *Scene {
	if s == nil {
		return nil
	}
	return &Scene{Name: s.Name, Root: s.Root.Clone()}
}

// Walk visits every node depth-first with its accumulated world matrix.
// Returning false from fn skips the node's children.
func (s *Scene) Walk(fn func(n *Node, world mgl64.Mat4) bool) {
	if s == nil || s.Root == nil {
		return
	}
	walk(s.Root, mgl64.Ident4(), fn)
}

func walk(n *Node, parent mgl64.Mat4, fn func(*Node, mgl64.Mat4) bool) {
	world := parent.Mul4(n.LocalMatrix())
	if !fn(n, world) {
		return
	}
	for _, child := range n.Children {
		walk(child, world, fn)
	}
}

// Meshes calls fn for every mesh in the scene with its world matrix.
func (s *Scene) Meshes(fn func(m *Mesh, world mgl64.Mat4)) {
	s.Walk(func(n *Node, world mgl64.Mat4) bool {
		if n.Mesh != nil {
			fn(n.Mesh, world)
		}
		return true
	})
}

// Stats summarizes the size of a scene.
type Stats struct {
	Nodes     int
	Meshes    int
	Vertices  int
	Triangles int
	Materials int
}

// Stats counts nodes, meshes, vertices, triangles and materials.
func (s *Scene) Stats() Stats {
	var st Stats
	s.Walk(func(n *Node, _ mgl64.Mat4) bool {
		st.Nodes++
		if n.Mesh != nil {
			st.Meshes++
			st.Vertices += len(n.Mesh.Positions)
			st.Triangles += n.Mesh.TriangleCount()
			st.Materials += len(n.Mesh.Materials)
		}
		return true
	})
	return st
}

// TransformPoint applies m to p.
func TransformPoint(m mgl64.Mat4, p math.Vec3) math.Vec3 {
	v := m.Mul4x1(mgl64.Vec4{p.X, p.Y, p.Z, 1})
	if v[3] != 0 && v[3] != 1 {
		return math.Vec3{X: v[0] / v[3], Y: v[1] / v[3], Z: v[2] / v[3]}
	}
	return math.Vec3{X: v[0], Y: v[1], Z: v[2]}
}
