package preview

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/Faultbox/meshpreview/internal/engine/renderer"
	"github.com/Faultbox/meshpreview/pkg/math"
	"github.com/Faultbox/meshpreview/pkg/scene"
)

// fakeLoader hands out a fresh box per Load. Sizes are keyed by URL.
type fakeLoader struct {
	mu          sync.Mutex
	sizes       map[string]math.Vec3
	fail        map[string]error
	block       map[string]chan struct{}
	broken      map[string]bool
	loads       []string
	invalidated []string
	returned    chan string
}

func newFakeLoader() *fakeLoader {
	return &fakeLoader{
		sizes:    make(map[string]math.Vec3),
		fail:     make(map[string]error),
		block:    make(map[string]chan struct{}),
		broken:   make(map[string]bool),
		returned: make(chan string, 16),
	}
}

func (l *fakeLoader) Load(ctx context.Context, url string) (*scene.Scene, error) {
	l.mu.Lock()
	l.loads = append(l.loads, url)
	gate := l.block[url]
	err := l.fail[url]
	size, ok := l.sizes[url]
	broken := l.broken[url]
	l.mu.Unlock()
	defer func() { l.returned <- url }()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		size = math.V(20, 10, 4)
	}
	s := boxScene(size)
	if broken {
		s.Root.Children = append(s.Root.Children, nil)
	}
	return s, nil
}

func (l *fakeLoader) Invalidate(url string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.invalidated = append(l.invalidated, url)
}

func (l *fakeLoader) setFail(url string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err == nil {
		delete(l.fail, url)
		return
	}
	l.fail[url] = err
}

func (l *fakeLoader) loadCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.loads)
}

// boxScene is a box of the given size resting on nothing in particular,
// with a near-white material.
func boxScene(size math.Vec3) *scene.Scene {
	h := size.Scale(0.5)
	s := scene.New("box")
	n := s.Root.AddChild(scene.NewNode("body"))
	n.Mesh = &scene.Mesh{
		Name: "body",
		Positions: []math.Vec3{
			math.V(-h.X, -h.Y, -h.Z), math.V(h.X, -h.Y, -h.Z),
			math.V(h.X, h.Y, -h.Z), math.V(-h.X, h.Y, h.Z),
			math.V(h.X, h.Y, h.Z), math.V(-h.X, -h.Y, h.Z),
		},
		Indices:   []uint32{0, 1, 2, 3, 4, 5},
		Materials: []*scene.Material{{Name: "white", Color: scene.Color{R: 1, G: 1, B: 1}, Opacity: 1, Metalness: 1, Roughness: 1}},
	}
	return s
}

type metricsRecorder struct {
	mu  sync.Mutex
	got []SceneMetrics
}

func (r *metricsRecorder) record(sm SceneMetrics) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, sm)
}

func (r *metricsRecorder) all() []SceneMetrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]SceneMetrics(nil), r.got...)
}

func mountPanel(t *testing.T, l *fakeLoader, props Props) (*Panel, *metricsRecorder) {
	t.Helper()
	rec := &metricsRecorder{}
	props.OnSceneMetrics = rec.record
	p := NewPanel(l, props, WithDamping(false))
	p.Mount()
	t.Cleanup(p.Unmount)
	return p, rec
}

func waitReady(t *testing.T, p *Panel) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func waitReturned(t *testing.T, l *fakeLoader, url string) {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case got := <-l.returned:
			if got == url {
				return
			}
		case <-timeout:
			t.Fatalf("load of %s never returned", url)
		}
	}
}

func TestPanelLoad(t *testing.T) {
	l := newFakeLoader()
	p, rec := mountPanel(t, l, DefaultProps("file:///part.glb"))

	if v := p.Snapshot(); v.Phase != PhaseLoading && v.Phase != PhaseReady {
		t.Fatalf("phase after mount = %v", v.Phase)
	}
	waitReady(t, p)

	v := p.Snapshot()
	if v.Phase != PhaseReady {
		t.Fatalf("phase = %v, want ready", v.Phase)
	}
	if v.SceneMetrics == nil || v.SceneMetrics.MaxDim != 20 {
		t.Fatalf("scene metrics = %+v", v.SceneMetrics)
	}
	if v.Metrics.BottomY != -5 {
		t.Errorf("bottomY = %v, want -5", v.Metrics.BottomY)
	}
	if v.Readout == nil || v.Readout.MaxDim != "Макс. размер: 20.0 мм" {
		t.Errorf("readout = %+v", v.Readout)
	}
	if v.Grid == nil || v.Grid.Position.Y != -5 {
		t.Errorf("grid = %+v", v.Grid)
	}
	if v.Camera.Target != v.Metrics.Center {
		t.Errorf("camera target = %v, want %v", v.Camera.Target, v.Metrics.Center)
	}

	got := rec.all()
	want := SceneMetrics{MaxDim: 20, CellSize: 1, SectionSize: 10}
	if len(got) != 1 || got[0] != want {
		t.Errorf("callbacks = %+v, want [%+v]", got, want)
	}
}

func TestPanelNormalizesMaterials(t *testing.T) {
	l := newFakeLoader()
	p, _ := mountPanel(t, l, DefaultProps("a.stl"))
	waitReady(t, p)

	f, err := p.Frame()
	if err != nil {
		t.Fatal(err)
	}
	var mat *scene.Material
	f.Scene.Meshes(func(m *scene.Mesh, _ mgl64.Mat4) { mat = m.Materials[0] })
	if mat.Color.Hex() != "#b0b0b0" {
		t.Errorf("color = %s, want #b0b0b0", mat.Color.Hex())
	}
}

func TestPanelReadoutFollowsGrid(t *testing.T) {
	l := newFakeLoader()
	props := DefaultProps("a.stl")
	props.ShowGrid = false
	p, _ := mountPanel(t, l, props)
	waitReady(t, p)

	v := p.Snapshot()
	if v.Readout != nil || v.Grid != nil {
		t.Errorf("grid hidden but readout=%v grid=%v", v.Readout, v.Grid)
	}
	if v.SceneMetrics == nil {
		t.Error("scene metrics missing with grid hidden")
	}
	p.SetShowGrid(true)
	if p.Snapshot().Readout == nil {
		t.Error("readout missing after showing grid")
	}
}

func TestPanelRetry(t *testing.T) {
	l := newFakeLoader()
	url := "https://cdn.test/broken.glb"
	l.setFail(url, errors.New("404"))
	p, rec := mountPanel(t, l, DefaultProps(url))

	ctx := context.Background()
	if err := p.Wait(ctx); err == nil {
		t.Fatal("Wait succeeded for failing load")
	}
	v := p.Snapshot()
	if v.Phase != PhaseFailed || v.Fallback == nil {
		t.Fatalf("phase = %v fallback = %v", v.Phase, v.Fallback)
	}
	if v.SceneMetrics != nil || v.Readout != nil {
		t.Error("failed panel exposes metrics")
	}
	if _, err := p.Frame(); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Frame err = %v, want ErrUnavailable", err)
	}
	if len(rec.all()) != 0 {
		t.Errorf("callback ran on failure: %+v", rec.all())
	}

	l.setFail(url, nil)
	if err := p.Retry(); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if v := p.Snapshot(); v.SceneMetrics != nil {
		t.Error("stale metrics visible right after retry")
	}
	waitReady(t, p)

	if n := l.loadCount(); n != 2 {
		t.Errorf("loads = %d, want 2", n)
	}
	if len(l.invalidated) != 1 || l.invalidated[0] != url {
		t.Errorf("invalidated = %v", l.invalidated)
	}
	v = p.Snapshot()
	if v.Phase != PhaseReady || v.RemountKey != 1 {
		t.Errorf("after retry phase = %v key = %d", v.Phase, v.RemountKey)
	}
	if err := p.Retry(); !errors.Is(err, ErrNotFailed) {
		t.Errorf("Retry while healthy = %v, want ErrNotFailed", err)
	}
}

func TestPanelRetryUnmounted(t *testing.T) {
	p := NewPanel(newFakeLoader(), DefaultProps("a.stl"))
	if err := p.Retry(); !errors.Is(err, ErrPanelUnmounted) {
		t.Errorf("Retry = %v, want ErrPanelUnmounted", err)
	}
	if _, err := p.Frame(); !errors.Is(err, ErrPanelUnmounted) {
		t.Errorf("Frame = %v, want ErrPanelUnmounted", err)
	}
}

func TestPanelPanicTripsBoundary(t *testing.T) {
	l := newFakeLoader()
	l.broken["bad.glb"] = true
	p, rec := mountPanel(t, l, DefaultProps("bad.glb"))

	err := p.Wait(context.Background())
	var pe *PanicError
	if !errors.As(err, &pe) {
		t.Fatalf("Wait = %v, want PanicError", err)
	}
	if p.Snapshot().Phase != PhaseFailed {
		t.Error("panel not failed after panic")
	}
	if len(rec.all()) != 0 {
		t.Error("callback ran after panic")
	}
}

func TestPanelUnmountSuppressesCallback(t *testing.T) {
	l := newFakeLoader()
	gate := make(chan struct{})
	l.block["slow.glb"] = gate
	p, rec := mountPanel(t, l, DefaultProps("slow.glb"))

	p.Unmount()
	close(gate)
	waitReturned(t, l, "slow.glb")

	if got := rec.all(); len(got) != 0 {
		t.Errorf("callback after unmount: %+v", got)
	}
	if v := p.Snapshot(); v.Phase != PhaseIdle || v.Metrics != nil {
		t.Errorf("unmounted snapshot = %v metrics %v", v.Phase, v.Metrics)
	}
}

func TestPanelLastURLWins(t *testing.T) {
	l := newFakeLoader()
	gate := make(chan struct{})
	l.block["a.glb"] = gate
	l.sizes["a.glb"] = math.V(100, 1, 1)
	l.sizes["b.glb"] = math.V(1, 1, 7)
	p, rec := mountPanel(t, l, DefaultProps("a.glb"))

	p.SetURL("b.glb")
	waitReady(t, p)
	close(gate)
	waitReturned(t, l, "a.glb")

	v := p.Snapshot()
	if v.URL != "b.glb" || v.SceneMetrics.MaxDim != 7 {
		t.Errorf("url = %s maxDim = %v, want b.glb 7", v.URL, v.SceneMetrics.MaxDim)
	}
	for _, sm := range rec.all() {
		if sm.MaxDim != 7 {
			t.Errorf("stale callback %+v", sm)
		}
	}
}

func TestPanelSetURLWhileFailed(t *testing.T) {
	l := newFakeLoader()
	l.setFail("a.glb", errors.New("boom"))
	p, _ := mountPanel(t, l, DefaultProps("a.glb"))
	p.Wait(context.Background())

	p.SetURL("b.glb")
	if v := p.Snapshot(); v.Phase != PhaseFailed {
		t.Fatalf("phase = %v, want failed", v.Phase)
	}
	if n := l.loadCount(); n != 1 {
		t.Errorf("loads = %d, want 1", n)
	}
	if err := p.Retry(); err != nil {
		t.Fatal(err)
	}
	waitReady(t, p)
	if v := p.Snapshot(); v.URL != "b.glb" || v.Phase != PhaseReady {
		t.Errorf("after retry url=%s phase=%v", v.URL, v.Phase)
	}
}

func TestPanelWireframeToggle(t *testing.T) {
	l := newFakeLoader()
	p, _ := mountPanel(t, l, DefaultProps("a.stl"))
	waitReady(t, p)

	wireframe := func() bool {
		f, err := p.Frame()
		if err != nil {
			t.Fatal(err)
		}
		var on bool
		f.Scene.Meshes(func(m *scene.Mesh, _ mgl64.Mat4) { on = m.Materials[0].Wireframe })
		return on
	}

	p.SetWireframe(true)
	p.SetWireframe(true)
	if !wireframe() {
		t.Error("wireframe not applied")
	}
	p.SetWireframe(false)
	if wireframe() {
		t.Error("wireframe not cleared")
	}
	if n := l.loadCount(); n != 1 {
		t.Errorf("loads = %d, want 1", n)
	}
}

func TestPanelCollapse(t *testing.T) {
	l := newFakeLoader()
	p, rec := mountPanel(t, l, DefaultProps("a.stl"))
	waitReady(t, p)

	p.SetCollapsed(true)
	v := p.Snapshot()
	if v.Phase != PhaseIdle || !v.Collapsed {
		t.Fatalf("collapsed snapshot phase = %v", v.Phase)
	}
	if _, err := p.Frame(); !errors.Is(err, ErrPanelUnmounted) {
		t.Errorf("Frame while collapsed = %v", err)
	}

	p.SetCollapsed(false)
	waitReady(t, p)
	if n := l.loadCount(); n != 2 {
		t.Errorf("loads = %d, want 2", n)
	}
	if n := len(rec.all()); n != 2 {
		t.Errorf("callbacks = %d, want 2", n)
	}
}

func TestPanelCollapseClearsFailure(t *testing.T) {
	l := newFakeLoader()
	l.setFail("a.glb", errors.New("boom"))
	p, _ := mountPanel(t, l, DefaultProps("a.glb"))
	p.Wait(context.Background())

	l.setFail("a.glb", nil)
	p.SetCollapsed(true)
	p.SetCollapsed(false)
	waitReady(t, p)
	if v := p.Snapshot(); v.Phase != PhaseReady || v.RemountKey != 0 {
		t.Errorf("phase = %v key = %d", v.Phase, v.RemountKey)
	}
}

func TestPanelGridPresets(t *testing.T) {
	l := newFakeLoader()
	p, rec := mountPanel(t, l, DefaultProps("a.stl"))
	waitReady(t, p)

	if err := p.SelectPreset(7); !errors.Is(err, ErrInvalidPreset) {
		t.Errorf("SelectPreset(7) = %v", err)
	}
	if err := p.SelectPreset(1); err != nil {
		t.Fatal(err)
	}
	// Same preset again is not a change.
	p.SelectPreset(1)
	p.SetGridSize(5, 0)

	got := rec.all()
	want := []SceneMetrics{
		{MaxDim: 20, CellSize: 1, SectionSize: 10},
		{MaxDim: 20, CellSize: 10, SectionSize: 100},
		{MaxDim: 20, CellSize: 5, SectionSize: 100},
	}
	if len(got) != len(want) {
		t.Fatalf("callbacks = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("callback %d = %+v, want %+v", i, got[i], want[i])
		}
	}
	if v := p.Snapshot(); v.Readout.Cell != "Ячейка: 5 мм" {
		t.Errorf("readout cell = %q", v.Readout.Cell)
	}
}

func TestPanelPresetBeforeLoad(t *testing.T) {
	l := newFakeLoader()
	gate := make(chan struct{})
	l.block["a.glb"] = gate
	p, rec := mountPanel(t, l, DefaultProps("a.glb"))

	p.SelectPreset(2)
	if n := len(rec.all()); n != 0 {
		t.Errorf("callback before first load: %d", n)
	}
	close(gate)
	waitReady(t, p)
	got := rec.all()
	if len(got) != 1 || got[0].CellSize != 100 {
		t.Errorf("callbacks = %+v", got)
	}
}

func TestPanelFollowTheme(t *testing.T) {
	l := newFakeLoader()
	theme := NewTheme(false)
	p, _ := mountPanel(t, l, DefaultProps("a.stl"))
	p.FollowTheme(theme)

	theme.Set(true)
	v := p.Snapshot()
	if !v.Dark || v.Background != DarkBackground || v.Border != "#333" {
		t.Errorf("dark snapshot = dark %v bg %s border %s", v.Dark, v.Background, v.Border)
	}

	p.Unmount()
	theme.Set(false)
	theme.Set(true)
	if p.Snapshot().Dark {
		t.Error("unmounted panel still follows theme")
	}
}

func TestPanelUnmountResetsToggles(t *testing.T) {
	l := newFakeLoader()
	p, _ := mountPanel(t, l, DefaultProps("a.stl"))
	waitReady(t, p)
	p.SetWireframe(true)
	p.SetShowBounds(true)
	p.SelectPreset(2)

	p.Unmount()
	p.Mount()
	waitReady(t, p)
	v := p.Snapshot()
	if v.Wireframe || v.ShowBounds || v.Preset != 0 || !v.ShowGrid {
		t.Errorf("toggles after remount = %+v", v.Toggles)
	}
}

func TestPanelCameraControls(t *testing.T) {
	l := newFakeLoader()
	p, _ := mountPanel(t, l, DefaultProps("a.stl"))
	if p.Tick() {
		t.Error("Tick moved a camera before load")
	}
	waitReady(t, p)

	before := p.Snapshot().Camera.Distance()
	p.Zoom(2)
	p.Tick()
	after := p.Snapshot().Camera.Distance()
	if after <= before {
		t.Errorf("zoom out: distance %v -> %v", before, after)
	}
	// Clamped to 20 * maxDim.
	p.Zoom(1000)
	p.Tick()
	if d := p.Snapshot().Camera.Distance(); d > 400+1e-6 {
		t.Errorf("distance %v beyond clamp", d)
	}
}

func TestPanelRender(t *testing.T) {
	l := newFakeLoader()
	props := DefaultProps("a.stl")
	props.ShowBounds = true
	p, _ := mountPanel(t, l, props)
	waitReady(t, p)

	r, err := renderer.New(renderer.DefaultConfig(), nil)
	if err != nil {
		t.Fatal(err)
	}
	img, err := p.Render(r, 80, 50)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 80 || b.Dy() != 50 {
		t.Errorf("image size = %v", b)
	}
}

func TestPanelStaleRenderFailureIgnored(t *testing.T) {
	l := newFakeLoader()
	p, _ := mountPanel(t, l, DefaultProps("a.glb"))
	waitReady(t, p)

	p.mu.Lock()
	old, oldGen, err := p.frameLocked()
	p.mu.Unlock()
	if err != nil {
		t.Fatal(err)
	}

	p.SetURL("b.glb")
	waitReady(t, p)

	broken := func(renderer.Frame) (*image.RGBA, error) {
		panic("draw exploded")
	}
	if _, err := p.draw(old, oldGen, broken); err == nil {
		t.Fatal("stale draw reported no error")
	}
	if v := p.Snapshot(); v.Phase != PhaseReady {
		t.Fatalf("phase after stale render failure = %v, want ready", v.Phase)
	}

	p.mu.Lock()
	cur, gen, err := p.frameLocked()
	p.mu.Unlock()
	if err != nil {
		t.Fatal(err)
	}
	_, err = p.draw(cur, gen, broken)
	var pe *PanicError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want *PanicError", err)
	}
	if v := p.Snapshot(); v.Phase != PhaseFailed {
		t.Errorf("phase after current render failure = %v, want failed", v.Phase)
	}
}
