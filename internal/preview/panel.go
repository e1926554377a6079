// Package preview assembles the model preview pipeline behind a failure
// boundary: load, normalize materials, measure, frame the camera, and
// build the grid and bounding-box overlays.
package preview

import (
	"context"
	"errors"
	"image"
	"sync"

	"go.uber.org/zap"

	"github.com/Faultbox/meshpreview/internal/engine/bounds"
	"github.com/Faultbox/meshpreview/internal/engine/camera"
	"github.com/Faultbox/meshpreview/internal/engine/debug"
	"github.com/Faultbox/meshpreview/internal/engine/material"
	"github.com/Faultbox/meshpreview/internal/engine/renderer"
	"github.com/Faultbox/meshpreview/pkg/math"
	"github.com/Faultbox/meshpreview/pkg/scene"
)

var (
	ErrPanelUnmounted = errors.New("preview panel is not mounted")
	ErrInvalidPreset  = errors.New("grid preset index out of range")
	ErrUnavailable    = errors.New("preview is showing the fallback")
	errNoScene        = errors.New("loader returned no scene")
)

// Loader produces private scene copies and can drop cached ones.
type Loader interface {
	Load(ctx context.Context, url string) (*scene.Scene, error)
	Invalidate(url string)
}

// Option configures a Panel.
type Option func(*Panel)

// WithLogger sets the panel logger.
func WithLogger(log *zap.Logger) Option {
	return func(p *Panel) {
		p.log = log
	}
}

// WithFPS sets the rate Tick is expected to be called at.
func WithFPS(fps int) Option {
	return func(p *Panel) {
		p.fps = fps
	}
}

// WithDamping enables or disables smoothed camera motion.
func WithDamping(on bool) Option {
	return func(p *Panel) {
		p.damping = on
	}
}

// Panel is one embedded preview. It owns its scene copy, metrics, camera
// and toggle state; nothing is shared with other panels.
type Panel struct {
	loader  Loader
	log     *zap.Logger
	fps     int
	damping bool

	mu       sync.Mutex
	initial  Props
	props    Props
	attached bool
	preset   int
	// gen identifies the current pipeline mount. Load results carrying
	// another generation are discarded.
	gen       uint64
	cancel    context.CancelFunc
	done      chan struct{}
	boundary  *Boundary
	scene     *scene.Scene
	metrics   *bounds.ModelMetrics
	controls  *camera.OrbitControls
	collapsed bool
	unfollow  func()

	// emitMu serializes callbacks; Unmount acquires it to wait out a
	// callback in progress.
	emitMu sync.Mutex
}

// NewPanel creates an unmounted panel.
func NewPanel(loader Loader, props Props, opts ...Option) *Panel {
	p := &Panel{
		loader:   loader,
		log:      zap.NewNop(),
		fps:      camera.DefaultFPS,
		damping:  true,
		initial:  props,
		props:    props,
		preset:   debug.DefaultPreset,
		boundary: NewBoundary(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.With(zap.String("url", props.ModelURL))
	return p
}

// Mount starts the pipeline unless the panel is collapsed.
func (p *Panel) Mount() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.attached {
		return
	}
	p.attached = true
	if !p.collapsed {
		p.startLocked()
	}
}

// Unmount tears the panel down. In-flight loads are cancelled and their
// results dropped; once Unmount returns no callback will run. Toggle
// state is reset to the initial props.
func (p *Panel) Unmount() {
	p.mu.Lock()
	if !p.attached {
		p.mu.Unlock()
		return
	}
	p.attached = false
	p.stopLocked()

	url := p.props.ModelURL
	p.props = p.initial
	p.props.ModelURL = url
	p.preset = debug.DefaultPreset
	p.collapsed = false
	p.boundary = NewBoundary()

	unfollow := p.unfollow
	p.unfollow = nil
	p.mu.Unlock()

	if unfollow != nil {
		unfollow()
	}
	p.emitMu.Lock()
	p.emitMu.Unlock()
	p.log.Debug("panel unmounted")
}

func (p *Panel) activeLocked() bool {
	return p.attached && !p.collapsed
}

func (p *Panel) startLocked() {
	if p.cancel != nil {
		p.cancel()
	}
	p.gen++
	p.scene, p.metrics, p.controls = nil, nil, nil

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	p.cancel, p.done = cancel, done

	gen, url := p.gen, p.props.ModelURL
	p.log.Debug("loading", zap.Uint64("gen", gen), zap.String("url", url))
	go p.load(ctx, gen, url, done)
}

func (p *Panel) stopLocked() {
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.gen++
	p.scene, p.metrics, p.controls = nil, nil, nil
}

func (p *Panel) load(ctx context.Context, gen uint64, url string, done chan struct{}) {
	defer close(done)
	s, err := p.loader.Load(ctx, url)
	if s == nil && err == nil {
		err = errNoScene
	}
	if p.apply(gen, url, s, err) {
		p.emit(gen)
	}
}

// apply installs a load result if it still belongs to the current mount.
func (p *Panel) apply(gen uint64, url string, s *scene.Scene, loadErr error) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.attached || gen != p.gen {
		p.log.Debug("discarding stale load", zap.Uint64("gen", gen), zap.String("url", url))
		return false
	}

	var (
		m    bounds.ModelMetrics
		ctrl *camera.OrbitControls
	)
	err := p.boundary.Guard(func() error {
		if loadErr != nil {
			return loadErr
		}
		material.Normalize(s, p.props.Wireframe)
		m = bounds.Compute(s)
		ctrl = camera.NewOrbitControls(p.fps)
		ctrl.Damping = p.damping
		ctrl.Attach(camera.Frame(m, p.fovLocked()), m)
		return nil
	})
	if err != nil {
		p.log.Warn("preview failed", zap.String("url", url), zap.Error(err))
		return false
	}

	p.scene, p.metrics, p.controls = s, &m, ctrl
	p.log.Info("model ready",
		zap.String("url", url),
		zap.Float64("maxDim", m.MaxDim),
		zap.Float64("bottomY", m.BottomY))
	return true
}

// emit delivers the current scene metrics if gen is still mounted.
func (p *Panel) emit(gen uint64) {
	p.emitMu.Lock()
	defer p.emitMu.Unlock()

	p.mu.Lock()
	cb := p.props.OnSceneMetrics
	ok := cb != nil && p.attached && gen == p.gen && p.metrics != nil
	var sm SceneMetrics
	if ok {
		sm = p.sceneMetricsLocked()
	}
	p.mu.Unlock()

	if ok {
		cb(sm)
	}
}

func (p *Panel) gridSizeLocked() (cell, section float64) {
	cell, section = DefaultCellSize, DefaultSectionSize
	if preset, ok := debug.PresetAt(p.preset); ok {
		cell, section = preset.CellSize, preset.SectionSize
	}
	if p.props.CellSize > 0 {
		cell = p.props.CellSize
	}
	if p.props.SectionSize > 0 {
		section = p.props.SectionSize
	}
	return cell, section
}

func (p *Panel) sceneMetricsLocked() SceneMetrics {
	cell, section := p.gridSizeLocked()
	return SceneMetrics{MaxDim: p.metrics.MaxDim, CellSize: cell, SectionSize: section}
}

func (p *Panel) fovLocked() float64 {
	if p.props.FOV > 0 {
		return p.props.FOV
	}
	return camera.DefaultFOV
}

// SetURL switches the model. A load still in flight for the previous URL
// is discarded. While failed the new URL waits for Retry.
func (p *Panel) SetURL(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if url == p.props.ModelURL {
		return
	}
	p.props.ModelURL = url
	if p.activeLocked() && p.boundary.State() == Healthy {
		p.startLocked()
	}
}

// SetWireframe toggles wireframe rendering on the loaded materials
// without reloading the model.
func (p *Panel) SetWireframe(on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.props.Wireframe = on
	if p.scene != nil {
		s := p.scene
		p.boundary.Guard(func() error {
			material.Normalize(s, on)
			return nil
		})
	}
}

// SetShowGrid toggles the reference grid.
func (p *Panel) SetShowGrid(on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.props.ShowGrid = on
}

// SetShowBounds toggles the bounding box overlay.
func (p *Panel) SetShowBounds(on bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.props.ShowBounds = on
}

// SetDark switches the theme colors.
func (p *Panel) SetDark(dark bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.props.Dark = dark
}

// FollowTheme keeps the panel's dark mode in sync with t until Unmount
// or the next FollowTheme call.
func (p *Panel) FollowTheme(t *Theme) {
	p.SetDark(t.Dark())
	unsub := t.Subscribe(p.SetDark)

	p.mu.Lock()
	old := p.unfollow
	p.unfollow = unsub
	p.mu.Unlock()
	if old != nil {
		old()
	}
}

// SelectPreset activates grid preset i.
func (p *Panel) SelectPreset(i int) error {
	if _, ok := debug.PresetAt(i); !ok {
		return ErrInvalidPreset
	}
	p.mu.Lock()
	c0, s0 := p.gridSizeLocked()
	p.preset = i
	p.mu.Unlock()
	p.gridChanged(c0, s0)
	return nil
}

// SetGridSize overrides the preset spacing. Zero restores the preset
// value for that tier.
func (p *Panel) SetGridSize(cell, section float64) {
	p.mu.Lock()
	c0, s0 := p.gridSizeLocked()
	p.props.CellSize, p.props.SectionSize = cell, section
	p.mu.Unlock()
	p.gridChanged(c0, s0)
}

func (p *Panel) gridChanged(cell, section float64) {
	p.mu.Lock()
	c1, s1 := p.gridSizeLocked()
	gen := p.gen
	p.mu.Unlock()
	if c1 != cell || s1 != section {
		p.emit(gen)
	}
}

// SetCollapsed hides the viewer. Collapsing unmounts the pipeline and
// expanding mounts it again with a fresh load.
func (p *Panel) SetCollapsed(collapsed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.collapsed == collapsed {
		return
	}
	p.collapsed = collapsed
	if !p.attached {
		return
	}
	if collapsed {
		p.stopLocked()
		p.boundary.Reset()
	} else {
		p.startLocked()
	}
}

// Retry recovers from a failure by remounting the pipeline, which issues
// exactly one new fetch. It fails with ErrNotFailed while healthy.
func (p *Panel) Retry() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.activeLocked() {
		return ErrPanelUnmounted
	}
	key, err := p.boundary.Retry()
	if err != nil {
		return err
	}
	p.loader.Invalidate(p.props.ModelURL)
	p.log.Info("retrying", zap.Uint64("remountKey", key))
	p.startLocked()
	return nil
}

// Rotate orbits the camera by radians of yaw and pitch.
func (p *Panel) Rotate(dYaw, dPitch float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.controls != nil {
		p.controls.Rotate(dYaw, dPitch)
	}
}

// Pan moves the orbit target by fractions of the view height.
func (p *Panel) Pan(dx, dy float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.controls != nil {
		p.controls.Pan(dx, dy)
	}
}

// Zoom scales the camera distance by factor within the model clamps.
func (p *Panel) Zoom(factor float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.controls != nil {
		p.controls.Zoom(factor)
	}
}

// Tick advances camera damping by one frame and reports whether the
// camera is still moving.
func (p *Panel) Tick() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.controls == nil {
		return false
	}
	return p.controls.Update()
}

// Wait blocks until the current load has settled. It returns the failure
// if the boundary tripped, and follows newer loads started meanwhile.
func (p *Panel) Wait(ctx context.Context) error {
	for {
		p.mu.Lock()
		if !p.activeLocked() {
			p.mu.Unlock()
			return ErrPanelUnmounted
		}
		done, gen := p.done, p.gen
		p.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done:
		}

		p.mu.Lock()
		active, current := p.activeLocked(), gen == p.gen
		err := p.boundary.Err()
		p.mu.Unlock()
		if !active {
			return ErrPanelUnmounted
		}
		if current {
			return err
		}
	}
}

// Snapshot returns a consistent view of the panel.
func (p *Panel) Snapshot() View {
	p.mu.Lock()
	defer p.mu.Unlock()

	v := View{
		Phase:      p.phaseLocked(),
		Title:      Title,
		URL:        p.props.ModelURL,
		Height:     p.props.Height,
		RemountKey: p.boundary.Key(),
		Collapsed:  p.collapsed,
		Wireframe:  p.props.Wireframe,
		ShowGrid:   p.props.ShowGrid,
		ShowBounds: p.props.ShowBounds,
		Dark:       p.props.Dark,
		Background: p.backgroundLocked().Hex(),
		Border:     "#d9d9d9",
		Toggles: []Toggle{
			{Label: WireframeTag, Active: p.props.Wireframe},
			{Label: GridTag, Active: p.props.ShowGrid},
			{Label: BoundsTag, Active: p.props.ShowBounds},
		},
		Preset:  p.preset,
		Presets: debug.Presets,
		Camera:  p.cameraLocked(),
	}
	if v.Height == "" {
		v.Height = DefaultHeight
	}
	if p.props.Dark {
		v.Border = "#333"
	}

	switch v.Phase {
	case PhaseLoading:
		v.Loading = LoadingText
	case PhaseFailed:
		fb := Fallback(p.props.Dark)
		v.Fallback = &fb
		v.Error = p.boundary.Err().Error()
	}

	if p.metrics != nil && v.Phase == PhaseReady {
		m := *p.metrics
		sm := p.sceneMetricsLocked()
		v.Metrics = &m
		v.SceneMetrics = &sm
		if p.props.ShowGrid {
			r := NewReadout(sm)
			v.Readout = &r
		}
	}
	if v.Phase == PhaseLoading || v.Phase == PhaseReady {
		v.Grid = p.gridLocked()
		if p.props.ShowBounds {
			v.Bounds = debug.NewBoundsOverlay(v.Metrics)
		}
	}
	return v
}

func (p *Panel) phaseLocked() Phase {
	switch {
	case !p.activeLocked():
		return PhaseIdle
	case p.boundary.State() == Failed:
		return PhaseFailed
	case p.metrics != nil:
		return PhaseReady
	default:
		return PhaseLoading
	}
}

func (p *Panel) backgroundLocked() scene.Color {
	if p.props.Dark {
		return scene.HexColor(DarkBackground)
	}
	bg := p.props.Background
	if bg == "" {
		bg = DefaultBackground
	}
	return scene.HexColor(bg)
}

// cameraLocked returns the orbit camera, or the viewer's resting camera
// before a model is framed.
func (p *Panel) cameraLocked() camera.Camera {
	if p.controls != nil {
		return p.controls.Camera()
	}
	return camera.Camera{
		Position: math.V(3, 2, 5),
		Up:       math.V(0, 1, 0),
		FOV:      p.fovLocked(),
		Near:     0.01,
		Far:      100000,
	}
}

func (p *Panel) gridLocked() *debug.Grid {
	if !p.props.ShowGrid {
		return nil
	}
	cell, section := p.gridSizeLocked()
	g := debug.NewGrid(p.metrics, cell, section)
	return &g
}

// Frame captures what the viewer currently shows, with a private copy of
// the scene safe to render concurrently.
func (p *Panel) Frame() (renderer.Frame, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	f, _, err := p.frameLocked()
	return f, err
}

// frameLocked also returns the generation the frame belongs to.
func (p *Panel) frameLocked() (renderer.Frame, uint64, error) {
	switch p.phaseLocked() {
	case PhaseIdle:
		return renderer.Frame{}, 0, ErrPanelUnmounted
	case PhaseFailed:
		return renderer.Frame{}, 0, ErrUnavailable
	}

	f := renderer.Frame{
		Scene:      p.scene.Clone(),
		Camera:     p.cameraLocked(),
		Background: p.backgroundLocked(),
		Grid:       p.gridLocked(),
	}
	if p.props.ShowBounds {
		f.Bounds = debug.NewBoundsOverlay(p.metrics)
	}
	return f, p.gen, nil
}

// Render draws the current frame. A panic or error while drawing trips
// the failure boundary like a load failure would, unless the panel has
// moved on to another mount in the meantime.
func (p *Panel) Render(r *renderer.Renderer, width, height int) (*image.RGBA, error) {
	p.mu.Lock()
	f, gen, err := p.frameLocked()
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return p.draw(f, gen, func(f renderer.Frame) (*image.RGBA, error) {
		return r.RenderSize(f, width, height)
	})
}

func (p *Panel) draw(f renderer.Frame, gen uint64, fn func(renderer.Frame) (*image.RGBA, error)) (*image.RGBA, error) {
	var img *image.RGBA
	err := capture(func() error {
		var err error
		img, err = fn(f)
		return err
	})
	if err == nil {
		return img, nil
	}

	p.mu.Lock()
	current := p.activeLocked() && gen == p.gen
	if current {
		p.boundary.Fail(err)
	}
	p.mu.Unlock()

	if current {
		p.log.Warn("render failed", zap.Error(err))
	} else {
		p.log.Debug("stale render failed", zap.Uint64("gen", gen), zap.Error(err))
	}
	return nil, err
}
