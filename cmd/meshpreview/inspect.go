package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Faultbox/meshpreview/internal/engine/debug"
	"github.com/Faultbox/meshpreview/internal/preview"
	"github.com/Faultbox/meshpreview/pkg/math"
)

type vec struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func toVec(v math.Vec3) vec { return vec{v.X, v.Y, v.Z} }

// report is the inspect output.
type report struct {
	URL       string `json:"url"`
	Name      string `json:"name"`
	Meshes    int    `json:"meshes"`
	Triangles int    `json:"triangles"`
	Materials int    `json:"materials"`

	Min     vec     `json:"min"`
	Max     vec     `json:"max"`
	Center  vec     `json:"center"`
	Size    vec     `json:"size"`
	MaxDim  float64 `json:"maxDim"`
	BottomY float64 `json:"bottomY"`

	Camera struct {
		Position vec     `json:"position"`
		Distance float64 `json:"distance"`
		Near     float64 `json:"near"`
		Far      float64 `json:"far"`
	} `json:"camera"`

	Grid    preview.SceneMetrics `json:"grid"`
	Labels  []string             `json:"labels"`
	Readout *preview.Readout     `json:"readout,omitempty"`
}

func buildReport(url string, v preview.View, st sceneStats) report {
	r := report{
		URL:       url,
		Name:      st.name,
		Meshes:    st.meshes,
		Triangles: st.triangles,
		Materials: st.materials,
	}
	if m := v.Metrics; m != nil {
		r.Min, r.Max = toVec(m.Min), toVec(m.Max)
		r.Center, r.Size = toVec(m.Center), toVec(m.Size)
		r.MaxDim, r.BottomY = m.MaxDim, m.BottomY
		for _, l := range debug.NewBoundsOverlay(m).Labels {
			r.Labels = append(r.Labels, l.Text+" "+l.Axis.String())
		}
	}
	if v.SceneMetrics != nil {
		r.Grid = *v.SceneMetrics
		ro := preview.NewReadout(*v.SceneMetrics)
		r.Readout = &ro
	}
	r.Camera.Position = toVec(v.Camera.Position)
	r.Camera.Distance = v.Camera.Distance()
	r.Camera.Near, r.Camera.Far = v.Camera.Near, v.Camera.Far
	return r
}

type sceneStats struct {
	name                         string
	meshes, triangles, materials int
}

func writeReport(w io.Writer, r report) {
	fmt.Fprintf(w, "Model: %s\n", r.Name)
	fmt.Fprintf(w, "URL: %s\n", r.URL)
	fmt.Fprintf(w, "Meshes: %d  Triangles: %d  Materials: %d\n\n", r.Meshes, r.Triangles, r.Materials)

	fmt.Fprintln(w, "Bounding Box:")
	fmt.Fprintf(w, "  Min:    (%.3f, %.3f, %.3f)\n", r.Min.X, r.Min.Y, r.Min.Z)
	fmt.Fprintf(w, "  Max:    (%.3f, %.3f, %.3f)\n", r.Max.X, r.Max.Y, r.Max.Z)
	fmt.Fprintf(w, "  Center: (%.3f, %.3f, %.3f)\n", r.Center.X, r.Center.Y, r.Center.Z)
	fmt.Fprintf(w, "  Size:   (%.3f, %.3f, %.3f)\n", r.Size.X, r.Size.Y, r.Size.Z)
	fmt.Fprintf(w, "  Max dimension: %.3f  Bottom: %.3f\n", r.MaxDim, r.BottomY)
	for _, l := range r.Labels {
		fmt.Fprintf(w, "  %s\n", l)
	}

	fmt.Fprintln(w, "\nCamera:")
	p := r.Camera.Position
	fmt.Fprintf(w, "  Position: (%.3f, %.3f, %.3f)\n", p.X, p.Y, p.Z)
	fmt.Fprintf(w, "  Distance: %.3f  Near: %.4f  Far: %.1f\n", r.Camera.Distance, r.Camera.Near, r.Camera.Far)

	if r.Readout != nil {
		fmt.Fprintln(w, "\nGrid:")
		fmt.Fprintf(w, "  %s\n  %s\n  %s\n", r.Readout.Cell, r.Readout.Section, r.Readout.MaxDim)
	}
}

func newInspectCmd() *cobra.Command {
	var (
		view   viewFlags
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "inspect [url]",
		Short: "Print the dimensions, framing and grid scale of a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := args[0]
			p, err := openPanel(cmd.Context(), cfg, url, &view)
			if p != nil {
				defer p.Unmount()
			}
			if err != nil {
				return fmt.Errorf("%s: %w", preview.FallbackMessage, err)
			}

			f, err := p.Frame()
			if err != nil {
				return err
			}
			st := f.Scene.Stats()
			r := buildReport(url, p.Snapshot(), sceneStats{
				name:      f.Scene.Name,
				meshes:    st.Meshes,
				triangles: st.Triangles,
				materials: st.Materials,
			})

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(r)
			}
			writeReport(out, r)
			return nil
		},
	}

	view.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func init() {
	rootCmd.AddCommand(newInspectCmd())
}
