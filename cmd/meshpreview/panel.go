package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Faultbox/meshpreview/internal/config"
	"github.com/Faultbox/meshpreview/internal/engine/renderer"
	"github.com/Faultbox/meshpreview/internal/loader"
	"github.com/Faultbox/meshpreview/internal/logger"
	"github.com/Faultbox/meshpreview/internal/preview"
)

// viewFlags are the toggles shared by one-shot commands.
type viewFlags struct {
	wireframe bool
	bounds    bool
	noGrid    bool
	dark      bool
	preset    int
	fov       float64
	timeout   time.Duration
}

func (f *viewFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.BoolVar(&f.wireframe, "wireframe", false, "Render materials as wireframe")
	fl.BoolVar(&f.bounds, "bounds", false, "Show the annotated bounding box")
	fl.BoolVar(&f.noGrid, "no-grid", false, "Hide the reference grid")
	fl.BoolVar(&f.dark, "dark", false, "Use the dark theme background")
	fl.IntVar(&f.preset, "preset", -1, "Grid preset index (default from config)")
	fl.Float64Var(&f.fov, "fov", 0, "Vertical field of view in degrees (default from config)")
	fl.DurationVar(&f.timeout, "timeout", time.Minute, "Give up waiting for the model after this long")
}

func (f *viewFlags) props(c *config.Config, url string) preview.Props {
	p := preview.DefaultProps(url)
	p.Height = c.Preview.Height
	p.Wireframe = f.wireframe
	p.ShowGrid = c.Preview.ShowGrid && !f.noGrid
	p.ShowBounds = f.bounds
	p.Dark = f.dark
	p.FOV = c.Preview.FOV
	if f.fov > 0 {
		p.FOV = f.fov
	}
	return p
}

// openPanel mounts a panel for url and waits for its load to settle.
// The returned panel is mounted even when the load failed.
func openPanel(ctx context.Context, c *config.Config, url string, f *viewFlags) (*preview.Panel, error) {
	l, err := loader.FromConfig(c.Sources, logger.Named("loader"))
	if err != nil {
		return nil, err
	}

	p := preview.NewPanel(l, f.props(c, url),
		preview.WithLogger(logger.Named("panel")),
		preview.WithDamping(false))

	preset := c.Preview.Preset
	if f.preset >= 0 {
		preset = f.preset
	}
	if err := p.SelectPreset(preset); err != nil {
		return nil, fmt.Errorf("preset %d: %w", preset, err)
	}

	p.Mount()
	waitCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	if err := p.Wait(waitCtx); err != nil {
		logger.Warn("model unavailable", zap.String("url", url), zap.Error(err))
		return p, err
	}
	return p, nil
}

func newRenderer(c *config.Config) (*renderer.Renderer, error) {
	return renderer.New(renderer.Config{
		Width:        c.Render.Width,
		Height:       c.Render.Height,
		Supersample:  c.Render.Supersample,
		MaxGridLines: c.Render.MaxGridLines,
		LabelSize:    c.Render.LabelSize,
	}, logger.Named("renderer"))
}
