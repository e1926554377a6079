package renderer

import (
	"image/color"
	"testing"

	"github.com/Faultbox/meshpreview/internal/engine/bounds"
	"github.com/Faultbox/meshpreview/internal/engine/camera"
	"github.com/Faultbox/meshpreview/internal/engine/debug"
	"github.com/Faultbox/meshpreview/internal/engine/material"
	"github.com/Faultbox/meshpreview/pkg/math"
	"github.com/Faultbox/meshpreview/pkg/scene"
)

var background = scene.HexColor("#2a2a2a")

// slab is a 20x10x40 box made of its two largest faces.
func slab() *scene.Scene {
	s := scene.New("slab")
	n := s.Root.AddChild(scene.NewNode("slab"))
	n.Mesh = &scene.Mesh{
		Positions: []math.Vec3{
			math.V(-10, -5, 20), math.V(10, -5, 20), math.V(10, 5, 20), math.V(-10, 5, 20),
			math.V(-10, -5, -20), math.V(10, -5, -20), math.V(10, 5, -20), math.V(-10, 5, -20),
		},
		Indices: []uint32{
			0, 1, 2, 0, 2, 3, // front
			1, 5, 6, 1, 6, 2, // right
			3, 2, 6, 3, 6, 7, // top
		},
	}
	material.Normalize(s, false)
	return s
}

func frame(t *testing.T, withOverlays bool) Frame {
	t.Helper()
	s := slab()
	m := bounds.Compute(s)
	f := Frame{
		Scene:      s,
		Camera:     camera.Frame(m, camera.DefaultFOV),
		Background: background,
	}
	if withOverlays {
		g := debug.NewGrid(&m, 1, 10)
		f.Grid = &g
		f.Bounds = debug.NewBoundsOverlay(&m)
	}
	return f
}

func isBackground(c color.RGBA) bool {
	near := func(a, b uint8) bool {
		d := int(a) - int(b)
		return d > -3 && d < 3
	}
	return near(c.R, 0x2a) && near(c.G, 0x2a) && near(c.B, 0x2a)
}

func TestRenderDrawsModel(t *testing.T) {
	cfg := Config{Width: 160, Height: 100, Supersample: 2, MaxGridLines: 400, LabelSize: 10}
	r, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	img, err := r.Render(frame(t, false))
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if img.Bounds().Dx() != 160 || img.Bounds().Dy() != 100 {
		t.Fatalf("image size = %v", img.Bounds())
	}

	if !isBackground(img.RGBAAt(0, 0)) {
		t.Errorf("corner pixel = %v, want background", img.RGBAAt(0, 0))
	}
	if isBackground(img.RGBAAt(80, 50)) {
		t.Error("center pixel shows background, model not drawn")
	}
}

func TestRenderOverlaysChangeImage(t *testing.T) {
	r, err := New(Config{Width: 120, Height: 80, Supersample: 1, MaxGridLines: 400, LabelSize: 9}, nil)
	if err != nil {
		t.Fatal(err)
	}

	plain, err := r.Render(frame(t, false))
	if err != nil {
		t.Fatal(err)
	}
	annotated, err := r.Render(frame(t, true))
	if err != nil {
		t.Fatal(err)
	}

	diff := 0
	for i := range plain.Pix {
		if plain.Pix[i] != annotated.Pix[i] {
			diff++
		}
	}
	if diff == 0 {
		t.Error("grid and bounds overlays did not change the image")
	}
}

func TestRenderEmptyScene(t *testing.T) {
	r, err := New(Config{Width: 32, Height: 32, Supersample: 1}, nil)
	if err != nil {
		t.Fatal(err)
	}
	img, err := r.Render(Frame{
		Scene:      scene.New("empty"),
		Camera:     camera.Frame(bounds.ModelMetrics{}, camera.DefaultFOV),
		Background: background,
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !isBackground(img.RGBAAt(16, 16)) {
		t.Errorf("empty scene pixel = %v", img.RGBAAt(16, 16))
	}
}

func TestNewRejectsInvalidSize(t *testing.T) {
	if _, err := New(Config{Width: 0, Height: 10}, nil); err == nil {
		t.Error("expected error for zero width")
	}
}
