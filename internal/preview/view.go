package preview

import (
	"fmt"
	"strconv"

	"github.com/Faultbox/meshpreview/internal/engine/bounds"
	"github.com/Faultbox/meshpreview/internal/engine/camera"
	"github.com/Faultbox/meshpreview/internal/engine/debug"
)

// Phase is the lifecycle stage of a panel's viewer.
type Phase int

const (
	// PhaseIdle: unmounted or collapsed, no pipeline running.
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseReady
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	case PhaseFailed:
		return "failed"
	default:
		return "idle"
	}
}

// MarshalText lets phases appear by name in JSON.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UI strings.
const (
	Title        = "3D-просмотр"
	LoadingText  = "Загрузка 3D модели..."
	WireframeTag = "Каркас"
	GridTag      = "Сетка"
	BoundsTag    = "Границы"
)

// Toggle is one toolbar button.
type Toggle struct {
	Label  string `json:"label"`
	Active bool   `json:"active"`
}

// Readout is the numeric grid summary shown under the viewer.
type Readout struct {
	Cell    string `json:"cell"`
	Section string `json:"section"`
	MaxDim  string `json:"maxDim"`
}

// NewReadout formats sm for display.
func NewReadout(sm SceneMetrics) Readout {
	return Readout{
		Cell:    "Ячейка: " + formatSize(sm.CellSize) + " мм",
		Section: "Секция: " + formatSize(sm.SectionSize) + " мм",
		MaxDim:  fmt.Sprintf("Макс. размер: %.1f мм", sm.MaxDim),
	}
}

func formatSize(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// View is a consistent snapshot of a panel.
type View struct {
	Phase      Phase  `json:"phase"`
	Title      string `json:"title"`
	URL        string `json:"url"`
	Height     string `json:"height"`
	RemountKey uint64 `json:"remountKey"`

	Collapsed  bool `json:"collapsed"`
	Wireframe  bool `json:"wireframe"`
	ShowGrid   bool `json:"showGrid"`
	ShowBounds bool `json:"showBounds"`
	Dark       bool `json:"dark"`

	Background string `json:"background"`
	Border     string `json:"border"`

	Toggles []Toggle       `json:"toggles"`
	Preset  int            `json:"preset"`
	Presets []debug.Preset `json:"presets"`

	// Set once a load has succeeded.
	Metrics      *bounds.ModelMetrics `json:"-"`
	SceneMetrics *SceneMetrics        `json:"sceneMetrics,omitempty"`
	Readout      *Readout             `json:"readout,omitempty"`

	Camera camera.Camera        `json:"-"`
	Grid   *debug.Grid          `json:"-"`
	Bounds *debug.BoundsOverlay `json:"-"`

	Loading  string        `json:"loading,omitempty"`
	Fallback *FallbackView `json:"fallback,omitempty"`
	Error    string        `json:"error,omitempty"`
}
