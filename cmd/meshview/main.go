// Package main is the desktop viewer: one preview panel in an SDL window.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/veandco/go-sdl2/sdl"
	"go.uber.org/zap"

	"github.com/Faultbox/meshpreview/internal/config"
	"github.com/Faultbox/meshpreview/internal/engine/display"
	"github.com/Faultbox/meshpreview/internal/engine/input"
	"github.com/Faultbox/meshpreview/internal/engine/renderer"
	"github.com/Faultbox/meshpreview/internal/engine/window"
	"github.com/Faultbox/meshpreview/internal/loader"
	"github.com/Faultbox/meshpreview/internal/logger"
	"github.com/Faultbox/meshpreview/internal/preview"
	"github.com/Faultbox/meshpreview/pkg/scene"
)

func main() {
	if err := config.ParseFlags(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	url := config.Flags.Arg(0)
	if url == "" {
		fmt.Fprintln(os.Stderr, "usage: meshview [flags] <model-url>")
		os.Exit(2)
	}

	logger.Info("=== meshview ===", zap.String("url", url))

	v, err := newViewer(cfg, url)
	if err != nil {
		logger.Error("failed to start viewer", zap.Error(err))
		os.Exit(1)
	}
	defer v.Close()

	if err := v.Run(); err != nil {
		logger.Error("viewer error", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("viewer closed normally")
}

// viewer drives one panel from the SDL event loop.
type viewer struct {
	cfg      *config.Config
	log      *zap.Logger
	window   *window.Window
	display  *display.Display
	input    *input.Input
	renderer *renderer.Renderer
	panel    *preview.Panel
	orbit    input.OrbitMapper

	running bool
	dirty   bool
	phase   preview.Phase
	title   string
}

func newViewer(cfg *config.Config, url string) (*viewer, error) {
	v := &viewer{cfg: cfg, log: logger.Named("viewer"), input: input.New(), dirty: true}

	w, err := window.New(window.Config{
		Title:  preview.Title,
		Width:  cfg.Render.Width,
		Height: cfg.Render.Height,
		VSync:  true,
	}, logger.Named("window"))
	if err != nil {
		return nil, fmt.Errorf("window: %w", err)
	}
	v.window = w

	d, err := display.New(logger.Named("display"))
	if err != nil {
		v.Close()
		return nil, fmt.Errorf("display: %w", err)
	}
	v.display = d

	r, err := renderer.New(renderer.Config{
		Width:        cfg.Render.Width,
		Height:       cfg.Render.Height,
		Supersample:  cfg.Render.Supersample,
		MaxGridLines: cfg.Render.MaxGridLines,
		LabelSize:    cfg.Render.LabelSize,
	}, logger.Named("renderer"))
	if err != nil {
		v.Close()
		return nil, fmt.Errorf("renderer: %w", err)
	}
	v.renderer = r

	l, err := loader.FromConfig(cfg.Sources, logger.Named("loader"))
	if err != nil {
		v.Close()
		return nil, fmt.Errorf("loader: %w", err)
	}

	props := preview.DefaultProps(url)
	props.Height = cfg.Preview.Height
	props.ShowGrid = cfg.Preview.ShowGrid
	props.FOV = cfg.Preview.FOV

	v.panel = preview.NewPanel(l, props,
		preview.WithLogger(logger.Named("panel")),
		preview.WithFPS(cfg.Preview.FPS),
		preview.WithDamping(cfg.Preview.Damping))
	if err := v.panel.SelectPreset(cfg.Preview.Preset); err != nil {
		v.log.Warn("ignoring configured preset", zap.Int("preset", cfg.Preview.Preset), zap.Error(err))
	}
	v.panel.Mount()
	return v, nil
}

// Run processes input and redraws until the window is closed.
func (v *viewer) Run() error {
	v.running = true

	fps := v.cfg.Preview.FPS
	if fps <= 0 {
		fps = 60
	}
	frame := time.NewTicker(time.Second / time.Duration(fps))
	defer frame.Stop()

	v.log.Info("starting viewer loop", zap.Int("fps", fps))

	for v.running {
		if v.input.Update() {
			v.running = false
			break
		}

		_, viewH := v.window.Size()
		for _, e := range v.input.Events() {
			switch e.Type {
			case input.EventWindowResize:
				v.dirty = true
			case input.EventKeyDown:
				v.handleKey(e.Key)
			default:
				if v.orbit.Apply(e, viewH, v.panel) {
					v.dirty = true
				}
			}
		}

		if v.panel.Tick() {
			v.dirty = true
		}

		view := v.panel.Snapshot()
		if view.Phase != v.phase {
			v.log.Debug("phase changed", zap.Stringer("from", v.phase), zap.Stringer("to", view.Phase))
			v.phase = view.Phase
			v.dirty = true
		}
		v.updateTitle(view)

		if v.dirty {
			v.draw(view)
			v.dirty = false
		}

		<-frame.C
	}

	return nil
}

func (v *viewer) handleKey(key sdl.Scancode) {
	view := v.panel.Snapshot()
	v.dirty = true

	switch key {
	case sdl.SCANCODE_ESCAPE:
		v.running = false
	case sdl.SCANCODE_W:
		v.panel.SetWireframe(!view.Wireframe)
	case sdl.SCANCODE_G:
		v.panel.SetShowGrid(!view.ShowGrid)
	case sdl.SCANCODE_B:
		v.panel.SetShowBounds(!view.ShowBounds)
	case sdl.SCANCODE_D:
		v.panel.SetDark(!view.Dark)
	case sdl.SCANCODE_C:
		v.panel.SetCollapsed(!view.Collapsed)
	case sdl.SCANCODE_R:
		if err := v.panel.Retry(); err != nil {
			v.log.Debug("retry ignored", zap.Error(err))
		}
	case sdl.SCANCODE_1, sdl.SCANCODE_2, sdl.SCANCODE_3:
		i := int(key - sdl.SCANCODE_1)
		if err := v.panel.SelectPreset(i); err != nil {
			v.log.Debug("preset ignored", zap.Int("preset", i), zap.Error(err))
		}
	default:
		v.dirty = false
	}
}

// draw renders the panel when it has a scene and presents the result.
// Without one the window is cleared to the panel background.
func (v *viewer) draw(view preview.View) {
	bg := scene.HexColor(view.Background)
	v.display.SetClearColor(bg.R, bg.G, bg.B)

	w, h := v.window.DrawableSize()
	if view.Phase != preview.PhaseReady {
		v.display.Present(nil, w, h)
		v.window.SwapBuffers()
		return
	}

	img, err := v.panel.Render(v.renderer, v.cfg.Render.Width, v.cfg.Render.Height)
	if err != nil {
		// The panel is now failed; the next frame shows the fallback title.
		v.log.Warn("frame dropped", zap.Error(err))
		img = nil
	}
	v.display.Present(img, w, h)
	v.window.SwapBuffers()
}

func (v *viewer) updateTitle(view preview.View) {
	title := preview.Title
	switch view.Phase {
	case preview.PhaseLoading:
		title += " | " + view.Loading
	case preview.PhaseFailed:
		if view.Fallback != nil {
			title += " | " + view.Fallback.Message + " (R)"
		}
	case preview.PhaseReady:
		if view.Readout != nil {
			title += " | " + view.Readout.Cell + " | " + view.Readout.Section + " | " + view.Readout.MaxDim
		}
	}
	if title != v.title {
		v.window.SetTitle(title)
		v.title = title
	}
}

// Close releases the panel and every graphics resource.
func (v *viewer) Close() {
	if v.panel != nil {
		v.panel.Unmount()
	}
	if v.display != nil {
		v.display.Close()
	}
	if v.window != nil {
		v.window.Close()
	}
}
