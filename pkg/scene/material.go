package scene

import (
	"fmt"
	"strconv"
	"strings"
)

// MaterialKind identifies the shading model of a material.
type MaterialKind int

const (
	// MaterialStandard is a metallic-roughness PBR material.
	MaterialStandard MaterialKind = iota
	// MaterialPhysical is a PBR material using extended glTF features
	// (clearcoat, transmission, sheen, ...).
	MaterialPhysical
	// MaterialBasic is an unlit material.
	MaterialBasic
)

// String returns the kind name.
func (k MaterialKind) String() string {
	switch k {
	case MaterialStandard:
		return "standard"
	case MaterialPhysical:
		return "physical"
	case MaterialBasic:
		return "basic"
	default:
		return fmt.Sprintf("MaterialKind(%d)", int(k))
	}
}

// Color is a linear RGB color with components in [0, 1].
type Color struct {
	R, G, B float64
}

// HexColor parses "#rrggbb" or "rrggbb". Invalid input yields black.
func HexColor(s string) Color {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return Color{}
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return Color{}
	}
	return Color{
		R: float64((v>>16)&0xff) / 255,
		G: float64((v>>8)&0xff) / 255,
		B: float64(v&0xff) / 255,
	}
}

// Hex formats the color as "#rrggbb".
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", to8(c.R), to8(c.G), to8(c.B))
}

// Luminance returns the Rec. 601 luma of the color.
func (c Color) Luminance() float64 {
	return c.R*0.299 + c.G*0.587 + c.B*0.114
}

// Mix blends c toward other by t (0 keeps c, 1 yields other).
func (c Color) Mix(other Color, t float64) Color {
	return Color{
		R: c.R + (other.R-c.R)*t,
		G: c.G + (other.G-c.G)*t,
		B: c.B + (other.B-c.B)*t,
	}
}

func to8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}

// Material describes the surface appearance of a mesh.
type Material struct {
	Name      string
	Kind      MaterialKind
	Color     Color
	Opacity   float64
	Metalness float64
	Roughness float64
	Wireframe bool
}

// Clone returns a copy of m. A nil material clones to nil.
func (m *Material) Clone() *Material {
	if m == nil {
		return nil
	}
	c := *m
	return &c
}

// SupportsWireframe reports whether the material reacts to the wireframe
// and normalization passes. Unlit materials are left alone.
func (m *Material) SupportsWireframe() bool {
	return m != nil && (m.Kind == MaterialStandard || m.Kind == MaterialPhysical)
}
