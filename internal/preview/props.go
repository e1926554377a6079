package preview

import (
	"fmt"
	"strconv"
	"strings"
)

// SceneMetrics is what the host gets back from a panel: the model's
// largest extent and the grid spacing in use.
type SceneMetrics struct {
	MaxDim      float64 `json:"maxDim"`
	CellSize    float64 `json:"cellSize"`
	SectionSize float64 `json:"sectionSize"`
}

const (
	DefaultHeight     = "500px"
	PanelHeight       = "350px"
	DefaultBackground = "#2a2a2a"
	DarkBackground    = "#1a1a1a"

	// Grid spacing used when neither a preset nor an override applies.
	DefaultCellSize    = 1.0
	DefaultSectionSize = 10.0
)

// Props are the inputs supplied by the host.
type Props struct {
	ModelURL string
	// Height is a CSS-like length hint such as "350px".
	Height string

	Wireframe  bool
	ShowGrid   bool
	ShowBounds bool
	Dark       bool

	// Background is used in light mode; dark mode uses DarkBackground.
	Background string
	// FOV is the vertical field of view in degrees.
	FOV float64

	// CellSize and SectionSize override the active preset when positive.
	CellSize    float64
	SectionSize float64

	// OnSceneMetrics is called after every successful load and every grid
	// change, never before the first load and never after Unmount. It runs
	// on a panel goroutine and must not call back into the panel.
	OnSceneMetrics func(SceneMetrics)
}

// DefaultProps returns the props of a freshly mounted panel for url.
func DefaultProps(url string) Props {
	return Props{
		ModelURL:   url,
		Height:     PanelHeight,
		ShowGrid:   true,
		Background: DefaultBackground,
	}
}

// ParseHeight converts a height hint to pixels. Empty input yields the
// default height; only pixel units are understood.
func ParseHeight(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		s = DefaultHeight
	}
	n, err := strconv.Atoi(strings.TrimSuffix(s, "px"))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid height %q", s)
	}
	return n, nil
}
