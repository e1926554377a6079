// Package renderer rasterizes preview frames in software with fauxgl.
package renderer

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	gomath "math"
	"time"

	"github.com/fogleman/fauxgl"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/nfnt/resize"
	"go.uber.org/zap"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/Faultbox/meshpreview/internal/engine/camera"
	"github.com/Faultbox/meshpreview/internal/engine/debug"
	"github.com/Faultbox/meshpreview/pkg/math"
	"github.com/Faultbox/meshpreview/pkg/scene"
)

// Config holds renderer configuration.
type Config struct {
	Width  int
	Height int
	// Supersample renders at this multiple of the output size and
	// downscales, smoothing edges. Values below 1 mean 1.
	Supersample int
	// MaxGridLines caps the lines drawn per grid tier.
	MaxGridLines int
	// LabelSize is the dimension label font size in points.
	LabelSize float64
}

// DefaultConfig returns the default output settings.
func DefaultConfig() Config {
	return Config{
		Width:        800,
		Height:       500,
		Supersample:  2,
		MaxGridLines: 400,
		LabelSize:    13,
	}
}

// Frame is everything drawn in one image.
type Frame struct {
	Scene      *scene.Scene
	Camera     camera.Camera
	Background scene.Color
	// Grid and Bounds are nil when hidden.
	Grid   *debug.Grid
	Bounds *debug.BoundsOverlay
}

// Renderer draws frames. It is safe for concurrent use.
type Renderer struct {
	config Config
	log    *zap.Logger
	font   *opentype.Font
}

// New creates a renderer.
func New(cfg Config, log *zap.Logger) (*Renderer, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("invalid output size %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.Supersample < 1 {
		cfg.Supersample = 1
	}
	if log == nil {
		log = zap.NewNop()
	}

	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parsing label font: %w", err)
	}
	return &Renderer{config: cfg, log: log, font: f}, nil
}

// Config returns the renderer configuration.
func (r *Renderer) Config() Config {
	return r.config
}

// Render draws f at the configured size.
func (r *Renderer) Render(f Frame) (*image.RGBA, error) {
	return r.RenderSize(f, r.config.Width, r.config.Height)
}

// RenderSize draws f at width x height.
func (r *Renderer) RenderSize(f Frame, width, height int) (*image.RGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid output size %dx%d", width, height)
	}
	start := time.Now()
	ss := r.config.Supersample
	w, h := width*ss, height*ss

	ctx := fauxgl.NewContext(w, h)
	ctx.ClearColorBufferWith(toFaux(f.Background, 1))
	ctx.ClearDepthBuffer()
	ctx.Cull = fauxgl.CullNone

	cam := f.Camera
	eye, target := toVec(cam.Position), toVec(cam.Target)
	up := toVec(cam.Up)
	if cam.Up == (math.Vec3{}) {
		up = fauxgl.V(0, 1, 0)
	}
	matrix := fauxgl.LookAt(eye, target, up).Perspective(cam.FOV, float64(w)/float64(h), cam.Near, cam.Far)

	triangles := r.drawScene(ctx, matrix, eye, f.Scene)
	lines := 0
	if f.Grid != nil {
		lines += r.drawGrid(ctx, matrix, f.Background, *f.Grid)
	}
	if f.Bounds != nil {
		lines += r.drawBounds(ctx, matrix, f.Background, f.Bounds)
	}

	var img image.Image = ctx.Image()
	if ss > 1 {
		img = resize.Resize(uint(width), uint(height), img, resize.Bilinear)
	}
	out := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(out, out.Bounds(), img, img.Bounds().Min, draw.Src)

	if f.Bounds != nil {
		r.drawLabels(out, cam, f.Bounds)
	}

	r.log.Debug("frame rendered",
		zap.Int("width", width),
		zap.Int("height", height),
		zap.Int("triangles", triangles),
		zap.Int("lines", lines),
		zap.Duration("took", time.Since(start)))
	return out, nil
}

func (r *Renderer) drawScene(ctx *fauxgl.Context, matrix fauxgl.Matrix, eye fauxgl.Vector, s *scene.Scene) int {
	light := fauxgl.V(1, 1.6, 1).Normalize()
	count := 0

	s.Meshes(func(m *scene.Mesh, world mgl64.Mat4) {
		n := m.TriangleCount()
		if n == 0 {
			return
		}
		tris := make([]*fauxgl.Triangle, 0, n)
		for i := 0; i < n; i++ {
			a, b, c := m.Triangle(i)
			tris = append(tris, fauxgl.NewTriangleForPoints(
				toVec(scene.TransformPoint(world, a)),
				toVec(scene.TransformPoint(world, b)),
				toVec(scene.TransformPoint(world, c)),
			))
		}

		mat := surface(m)
		shader := fauxgl.NewPhongShader(matrix, light, eye)
		shader.ObjectColor = toFaux(mat.Color, 1)
		shader.AmbientColor = fauxgl.Color{R: 0.35, G: 0.35, B: 0.35, A: 1}
		shader.DiffuseColor = fauxgl.Color{R: 0.75, G: 0.75, B: 0.75, A: 1}
		gloss := 1 - gomath.Min(gomath.Max(mat.Roughness, 0), 1)
		shader.SpecularColor = fauxgl.Color{R: gloss * 0.4, G: gloss * 0.4, B: gloss * 0.4, A: 1}
		shader.SpecularPower = 8 + gloss*56

		ctx.Shader = shader
		ctx.Wireframe = mat.Wireframe
		ctx.LineWidth = float64(ctx.Width) / 800
		ctx.DrawMesh(fauxgl.NewTriangleMesh(tris))
		count += n
	})
	ctx.Wireframe = false
	return count
}

// surface picks the material used to shade m. Meshes reaching the
// renderer unnormalized fall back to a neutral gray.
func surface(m *scene.Mesh) scene.Material {
	if len(m.Materials) > 0 && m.Materials[0] != nil {
		return *m.Materials[0]
	}
	return scene.Material{Color: scene.Color{R: 0.69, G: 0.69, B: 0.69}, Roughness: 1}
}

const fadeBuckets = 8

func (r *Renderer) drawGrid(ctx *fauxgl.Context, matrix fauxgl.Matrix, bg scene.Color, g debug.Grid) int {
	type key struct {
		section bool
		bucket  int
	}
	groups := make(map[key][]*fauxgl.Line)
	lines := g.Lines(r.config.MaxGridLines)
	for _, l := range lines {
		b := int(gomath.Ceil(l.Alpha * fadeBuckets))
		if b == 0 {
			continue
		}
		k := key{l.Section, b}
		groups[k] = append(groups[k], fauxgl.NewLineForPoints(toVec(l.A), toVec(l.B)))
	}

	ctx.WriteDepth = false
	defer func() { ctx.WriteDepth = true }()

	scale := float64(r.config.Supersample)
	// Cell tier first so section lines draw on top.
	for _, section := range []bool{false, true} {
		col, thickness := g.CellColor, g.CellThickness
		if section {
			col, thickness = g.SectionColor, g.SectionThickness
		}
		for b := 1; b <= fadeBuckets; b++ {
			batch := groups[key{section, b}]
			if len(batch) == 0 {
				continue
			}
			alpha := float64(b) / fadeBuckets
			ctx.Shader = fauxgl.NewSolidColorShader(matrix, toFaux(bg.Mix(col, alpha), 1))
			ctx.LineWidth = gomath.Max(thickness*scale, 1)
			ctx.DrawLines(batch)
		}
	}
	return len(lines)
}

func (r *Renderer) drawBounds(ctx *fauxgl.Context, matrix fauxgl.Matrix, bg scene.Color, o *debug.BoundsOverlay) int {
	edges := o.Edges()
	lines := make([]*fauxgl.Line, 0, len(edges))
	for _, e := range edges {
		lines = append(lines, fauxgl.NewLineForPoints(toVec(e[0]), toVec(e[1])))
	}
	ctx.Shader = fauxgl.NewSolidColorShader(matrix, toFaux(bg.Mix(o.Color, o.Opacity), 1))
	ctx.LineWidth = 1.5 * float64(r.config.Supersample)
	ctx.DrawLines(lines)
	return len(lines)
}

func (r *Renderer) drawLabels(dst *image.RGBA, cam camera.Camera, o *debug.BoundsOverlay) {
	face, err := opentype.NewFace(r.font, &opentype.FaceOptions{
		Size:    r.config.LabelSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		r.log.Warn("label font unavailable", zap.Error(err))
		return
	}
	defer face.Close()

	size := dst.Bounds().Size()
	ascent := face.Metrics().Ascent
	for _, l := range o.Labels {
		x, y, ok := cam.Project(l.Anchor, size.X, size.Y)
		if !ok {
			continue
		}
		text := l.Text + " " + l.Axis.String()
		d := &font.Drawer{Dst: dst, Face: face}
		width := d.MeasureString(text)
		pad := fixed.I(3)

		// Centered on the anchor, on a dark plate for contrast.
		minX := fixed.Int26_6(x*64) - width/2
		baseY := fixed.Int26_6(y*64) + ascent/2
		plate := image.Rect(
			(minX - pad).Floor(), (baseY - ascent - pad).Floor(),
			(minX + width + pad).Ceil(), (baseY + pad).Ceil(),
		)
		draw.Draw(dst, plate, image.NewUniform(color.RGBA{A: 0xb0}), image.Point{}, draw.Over)

		d.Src = image.NewUniform(color.White)
		d.Dot = fixed.Point26_6{X: minX, Y: baseY}
		d.DrawString(text)
	}
}

func toVec(v math.Vec3) fauxgl.Vector {
	return fauxgl.Vector{X: v.X, Y: v.Y, Z: v.Z}
}

func toFaux(c scene.Color, a float64) fauxgl.Color {
	return fauxgl.Color{R: c.R, G: c.G, B: c.B, A: a}
}
