package debug

import (
	gomath "math"

	"github.com/Faultbox/meshpreview/internal/engine/bounds"
	"github.com/Faultbox/meshpreview/pkg/math"
	"github.com/Faultbox/meshpreview/pkg/scene"
)

// Preset is a named grid scale.
type Preset struct {
	Label       string  `json:"label"`
	CellSize    float64 `json:"cellSize"`
	SectionSize float64 `json:"sectionSize"`
}

// Presets are the selectable grid scales, in model units (millimeters).
var Presets = []Preset{
	{Label: "10 мм", CellSize: 1, SectionSize: 10},
	{Label: "100 мм", CellSize: 10, SectionSize: 100},
	{Label: "1000 мм", CellSize: 100, SectionSize: 1000},
}

// DefaultPreset is the index of the preset active on mount.
const DefaultPreset = 0

// PresetAt returns preset i, or false when i is out of range.
func PresetAt(i int) (Preset, bool) {
	if i < 0 || i >= len(Presets) {
		return Preset{}, false
	}
	return Presets[i], true
}

const (
	// UnloadedGridY is the floor height used before any model has loaded.
	UnloadedGridY = -1.5

	MinFadeDistance = 200.0
	FadeFactor      = 4.0

	CellThickness    = 0.5
	SectionThickness = 1.0
	FadeStrength     = 1.0
)

var (
	CellColor    = scene.HexColor("#6e6e6e")
	SectionColor = scene.HexColor("#9d4b4b")
)

// Grid is a two-tier infinite ground grid that fades out with distance
// from its position.
type Grid struct {
	Position    math.Vec3
	CellSize    float64
	SectionSize float64

	CellColor        scene.Color
	SectionColor     scene.Color
	CellThickness    float64
	SectionThickness float64

	FadeDistance float64
	FadeStrength float64
	Infinite     bool
}

// FadeDistanceFor returns the fade radius for a model of size maxDim.
func FadeDistanceFor(maxDim float64) float64 {
	return gomath.Max(maxDim*FadeFactor, MinFadeDistance)
}

// NewGrid seats a grid under the model: centered horizontally and at its
// lowest point. A nil m describes the grid shown before the first load.
func NewGrid(m *bounds.ModelMetrics, cellSize, sectionSize float64) Grid {
	pos := math.V(0, UnloadedGridY, 0)
	maxDim := 1.0
	if m != nil {
		pos = math.V(m.Center.X, m.BottomY, m.Center.Z)
		maxDim = m.MaxDim
	}

	return Grid{
		Position:         pos,
		CellSize:         cellSize,
		SectionSize:      sectionSize,
		CellColor:        CellColor,
		SectionColor:     SectionColor,
		CellThickness:    CellThickness,
		SectionThickness: SectionThickness,
		FadeDistance:     FadeDistanceFor(maxDim),
		FadeStrength:     FadeStrength,
		Infinite:         true,
	}
}

// GridLine is one straight grid line clipped to the fade radius.
type GridLine struct {
	A, B    math.Vec3
	Section bool
	// Alpha is the fade at the line's closest point to the grid center.
	Alpha float64
}

// Lines returns the visible grid lines. A tier that would need more than
// maxPerTier lines is dropped, cell tier first, since it would render as
// a solid plane anyway. maxPerTier <= 0 means no limit.
func (g Grid) Lines(maxPerTier int) []GridLine {
	var out []GridLine
	if g.SectionSize > 0 && tierCount(g.FadeDistance, g.SectionSize) <= budget(maxPerTier) {
		out = g.tier(out, g.SectionSize, true, 0)
	}
	if g.CellSize > 0 && tierCount(g.FadeDistance, g.CellSize) <= budget(maxPerTier) {
		out = g.tier(out, g.CellSize, false, g.SectionSize)
	}
	return out
}

func budget(n int) int {
	if n <= 0 {
		return gomath.MaxInt
	}
	return n
}

// tierCount is the number of lines (both directions) with spacing step
// inside radius r.
func tierCount(r, step float64) int {
	n := gomath.Floor(r / step)
	if n > 1e7 {
		return gomath.MaxInt
	}
	return 2 * (2*int(n) + 1)
}

// tier appends the lines of one spacing. Lines falling on a multiple of
// skip belong to the coarser tier and are left out.
func (g Grid) tier(out []GridLine, step float64, section bool, skip float64) []GridLine {
	r := g.FadeDistance
	n := int(gomath.Floor(r / step))
	for k := -n; k <= n; k++ {
		off := float64(k) * step
		if skip > 0 && isMultiple(off, skip) {
			continue
		}
		half := gomath.Sqrt(gomath.Max(r*r-off*off, 0))
		if half == 0 {
			continue
		}
		alpha := g.fade(gomath.Abs(off))
		c := g.Position
		out = append(out,
			GridLine{A: math.V(c.X-half, c.Y, c.Z+off), B: math.V(c.X+half, c.Y, c.Z+off), Section: section, Alpha: alpha},
			GridLine{A: math.V(c.X+off, c.Y, c.Z-half), B: math.V(c.X+off, c.Y, c.Z+half), Section: section, Alpha: alpha},
		)
	}
	return out
}

func (g Grid) fade(dist float64) float64 {
	if g.FadeDistance <= 0 {
		return 1
	}
	a := 1 - gomath.Min(dist/g.FadeDistance, 1)
	return gomath.Pow(a, g.FadeStrength)
}

func isMultiple(v, step float64) bool {
	q := v / step
	return gomath.Abs(q-gomath.Round(q)) < 1e-9
}
