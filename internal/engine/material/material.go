// Package material normalizes the surface materials of a loaded scene.
package material

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/Faultbox/meshpreview/pkg/scene"
)

// DefaultColor is the matte gray given to meshes without a usable material.
var DefaultColor = scene.HexColor("#b0b0b0")

const (
	DefaultMetalness = 0.3
	DefaultRoughness = 0.6

	// Near-white, non-metallic materials render blown out under the
	// preview lights and are replaced by the default gray.
	WhiteLuminance = 0.9
	MinMetalness   = 0.1
)

// Stats counts what a normalization pass changed.
type Stats struct {
	Meshes    int
	Defaulted int
	Coerced   int
}

// Default returns a fresh default material.
func Default() *scene.Material {
	return &scene.Material{
		Name:      "default",
		Kind:      scene.MaterialStandard,
		Color:     DefaultColor,
		Opacity:   1,
		Metalness: DefaultMetalness,
		Roughness: DefaultRoughness,
	}
}

// IsNearWhite reports whether m is bright and non-metallic enough to be
// replaced by the default gray.
func IsNearWhite(m *scene.Material) bool {
	return m.Color.Luminance() > WhiteLuminance && m.Metalness < MinMetalness
}

// Normalize mutates every mesh material of s in place: meshes without a
// material get the default, near-white PBR materials are coerced to it,
// and wireframe is mirrored onto every PBR material. Unlit materials are
// left alone. Running it again with the same flag changes nothing.
func Normalize(s *scene.Scene, wireframe bool) Stats {
	var st Stats
	s.Meshes(func(m *scene.Mesh, _ mgl64.Mat4) {
		st.Meshes++
		if len(m.Materials) == 0 {
			m.Materials = []*scene.Material{Default()}
			st.Defaulted++
		}
		for i, mat := range m.Materials {
			if mat == nil {
				mat = Default()
				m.Materials[i] = mat
				st.Defaulted++
			}
			if !mat.SupportsWireframe() {
				continue
			}
			if IsNearWhite(mat) {
				mat.Color = DefaultColor
				mat.Metalness = DefaultMetalness
				mat.Roughness = DefaultRoughness
				st.Coerced++
			}
			mat.Wireframe = wireframe
		}
	})
	return st
}
