package main

import (
	"fmt"
	"math"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Faultbox/meshpreview/internal/engine/debug"
	"github.com/Faultbox/meshpreview/internal/logger"
	"github.com/Faultbox/meshpreview/internal/preview"
)

func newRenderCmd() *cobra.Command {
	var (
		view  viewFlags
		out   string
		dir   string
		yaw   float64
		pitch float64
		zoom  float64
	)

	cmd := &cobra.Command{
		Use:   "render [url]",
		Short: "Render a still of a model to PNG",
		Long: "Load the model, frame it like the embedded viewer does and write one PNG. " +
			"Without --out the file is named after the model and a timestamp.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := args[0]
			p, err := openPanel(cmd.Context(), cfg, url, &view)
			if p != nil {
				defer p.Unmount()
			}
			if err != nil {
				return fmt.Errorf("%s: %w", preview.FallbackMessage, err)
			}

			p.Rotate(yaw*math.Pi/180, pitch*math.Pi/180)
			if zoom > 0 {
				p.Zoom(zoom)
			}
			p.Tick()

			r, err := newRenderer(cfg)
			if err != nil {
				return err
			}
			img, err := p.Render(r, cfg.Render.Width, cfg.Render.Height)
			if err != nil {
				return err
			}

			path := out
			if path == "" {
				path, err = debug.NewScreenshotCapture(dir, url).Capture(img)
			} else {
				err = debug.WritePNG(path, img)
			}
			if err != nil {
				return err
			}
			logger.Info("frame written", zap.String("path", path))
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	view.register(cmd)
	fl := cmd.Flags()
	fl.StringVarP(&out, "out", "o", "", "Output PNG path")
	fl.StringVar(&dir, "dir", ".", "Directory for generated file names")
	fl.Float64Var(&yaw, "yaw", 0, "Orbit yaw from the framed view, degrees")
	fl.Float64Var(&pitch, "pitch", 0, "Orbit pitch from the framed view, degrees")
	fl.Float64Var(&zoom, "zoom", 0, "Distance factor, >1 moves away")
	return cmd
}

func init() {
	rootCmd.AddCommand(newRenderCmd())
}
