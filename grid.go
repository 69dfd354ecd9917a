package main

import (
	"errors"
	"fmt"
	"image"
	"math"
)

// ErrInvalidGridConfiguration is returned when rows, cols, gap or bounds
// would produce empty or negative cell geometry.
var ErrInvalidGridConfiguration = errors.New("jukebox: invalid grid configuration")

// LayoutMode selects how a layout's bounding region is expressed.
type LayoutMode string

const (
	// ModePercent places cells in percentages (0-100) of the image size.
	ModePercent LayoutMode = "percent"
	// ModePixel places cells in absolute image pixels, inset by margins.
	ModePixel LayoutMode = "pixel"
)

// Rect is a bounding region: top/left offset plus size.
type Rect struct {
	Top    float64 `json:"top" toml:"top"`
	Left   float64 `json:"left" toml:"left"`
	Width  float64 `json:"width" toml:"width"`
	Height float64 `json:"height" toml:"height"`
}

// Margins insets the grid from each edge of the image, in pixels.
type Margins struct {
	Top    int `json:"top" toml:"top"`
	Right  int `json:"right" toml:"right"`
	Bottom int `json:"bottom" toml:"bottom"`
	Left   int `json:"left" toml:"left"`
}

// Cell is one tappable region of a board.
type Cell struct {
	Index  int     `json:"index"`
	Label  string  `json:"label"`
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// PixelCell is a cell as an integer crop box inside the source image.
type PixelCell struct {
	Index int             `json:"index"`
	Label string          `json:"label"`
	Box   image.Rectangle `json:"box"`
}

// Layout is a grid configuration. Bounds is used in percent mode,
// Margins in pixel mode.
type Layout struct {
	Mode    LayoutMode `json:"mode" toml:"mode"`
	Rows    int        `json:"rows" toml:"rows"`
	Cols    int        `json:"cols" toml:"cols"`
	Gap     float64    `json:"gap" toml:"gap"`
	Bounds  Rect       `json:"bounds" toml:"bounds"`
	Margins Margins    `json:"margins" toml:"margins"`
}

// MaxGridSide caps rows and columns so rows*cols stays small.
const MaxGridSide = 256

// CellLabel returns the display label for a zero-based cell index.
func CellLabel(index int) string {
	return fmt.Sprintf("%02d", index+1)
}

// GenerateGrid divides bounds into rows*cols equal cells separated by gap,
// in row-major order.
func GenerateGrid(rows, cols int, bounds Rect, gap float64) ([]Cell, error) {
	if err := validateGrid(rows, cols, bounds, gap); err != nil {
		return nil, err
	}

	cellW := (bounds.Width - gap*float64(cols-1)) / float64(cols)
	cellH := (bounds.Height - gap*float64(rows-1)) / float64(rows)
	if cellW <= 0 || cellH <= 0 {
		return nil, fmt.Errorf("%w: cell size %gx%g is not positive", ErrInvalidGridConfiguration, cellW, cellH)
	}

	stepX := cellW + gap
	stepY := cellH + gap

	cells := make([]Cell, 0, rows*cols)
	for r := 0; r < rows; r++ {
		// Each offset is index*step so positions never drift.
		top := bounds.Top + float64(r)*stepY
		for c := 0; c < cols; c++ {
			idx := r*cols + c
			cells = append(cells, Cell{
				Index:  idx,
				Label:  CellLabel(idx),
				Top:    top,
				Left:   bounds.Left + float64(c)*stepX,
				Width:  cellW,
				Height: cellH,
			})
		}
	}
	return cells, nil
}

func validateGrid(rows, cols int, bounds Rect, gap float64) error {
	switch {
	case rows < 1 || cols < 1:
		return fmt.Errorf("%w: need at least 1 row and 1 column, got %dx%d", ErrInvalidGridConfiguration, rows, cols)
	case rows > MaxGridSide || cols > MaxGridSide:
		return fmt.Errorf("%w: %dx%d exceeds %d rows or columns", ErrInvalidGridConfiguration, rows, cols, MaxGridSide)
	case !finite(gap, bounds.Top, bounds.Left, bounds.Width, bounds.Height):
		return fmt.Errorf("%w: bounds and gap must be finite numbers", ErrInvalidGridConfiguration)
	case gap < 0:
		return fmt.Errorf("%w: gap %g is negative", ErrInvalidGridConfiguration, gap)
	case bounds.Width < 0 || bounds.Height < 0:
		return fmt.Errorf("%w: bounds size %gx%g is negative", ErrInvalidGridConfiguration, bounds.Width, bounds.Height)
	case bounds.Width < gap*float64(cols-1):
		return fmt.Errorf("%w: width %g cannot fit %d gaps of %g", ErrInvalidGridConfiguration, bounds.Width, cols-1, gap)
	case bounds.Height < gap*float64(rows-1):
		return fmt.Errorf("%w: height %g cannot fit %d gaps of %g", ErrInvalidGridConfiguration, bounds.Height, rows-1, gap)
	}
	return nil
}

func finite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// GeneratePixelGrid lays the grid over an image of the given size, inset by
// margins, and returns integer crop boxes. Boxes are truncated to whole
// pixels and clamped to the image.
func GeneratePixelGrid(rows, cols int, size image.Point, margins Margins, gap float64) ([]PixelCell, error) {
	if size.X <= 0 || size.Y <= 0 {
		return nil, fmt.Errorf("%w: image size %dx%d is empty", ErrInvalidGridConfiguration, size.X, size.Y)
	}
	if margins.Top < 0 || margins.Right < 0 || margins.Bottom < 0 || margins.Left < 0 {
		return nil, fmt.Errorf("%w: margins must not be negative", ErrInvalidGridConfiguration)
	}

	bounds := Rect{
		Top:    float64(margins.Top),
		Left:   float64(margins.Left),
		Width:  float64(size.X - margins.Left - margins.Right),
		Height: float64(size.Y - margins.Top - margins.Bottom),
	}
	cells, err := GenerateGrid(rows, cols, bounds, gap)
	if err != nil {
		return nil, err
	}

	out := make([]PixelCell, len(cells))
	for i, c := range cells {
		box := image.Rect(
			int(math.Floor(c.Left)),
			int(math.Floor(c.Top)),
			int(math.Floor(c.Left+c.Width)),
			int(math.Floor(c.Top+c.Height)),
		)
		box = box.Intersect(image.Rect(0, 0, size.X, size.Y))
		if box.Empty() {
			return nil, fmt.Errorf("%w: cell %s is smaller than one pixel", ErrInvalidGridConfiguration, c.Label)
		}
		out[i] = PixelCell{Index: c.Index, Label: c.Label, Box: box}
	}
	return out, nil
}

// Cells generates the layout's geometry. Percent layouts ignore size; pixel
// layouts need the decoded image size and also return crop boxes.
func (l Layout) Cells(size image.Point) ([]Cell, []PixelCell, error) {
	switch l.Mode {
	case ModePercent, "":
		cells, err := GenerateGrid(l.Rows, l.Cols, l.Bounds, l.Gap)
		return cells, nil, err
	case ModePixel:
		pcs, err := GeneratePixelGrid(l.Rows, l.Cols, size, l.Margins, l.Gap)
		if err != nil {
			return nil, nil, err
		}
		cells := make([]Cell, len(pcs))
		for i, pc := range pcs {
			cells[i] = Cell{
				Index:  pc.Index,
				Label:  pc.Label,
				Top:    float64(pc.Box.Min.Y),
				Left:   float64(pc.Box.Min.X),
				Width:  float64(pc.Box.Dx()),
				Height: float64(pc.Box.Dy()),
			}
		}
		return cells, pcs, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown layout mode %q", ErrInvalidGridConfiguration, l.Mode)
	}
}

// CustomHotspot is a hand-placed cell that overrides the generated grid.
type CustomHotspot struct {
	Label  string  `json:"label,omitempty" toml:"label"`
	Audio  string  `json:"audio,omitempty" toml:"audio"`
	Top    float64 `json:"top" toml:"top"`
	Left   float64 `json:"left" toml:"left"`
	Width  float64 `json:"width" toml:"width"`
	Height float64 `json:"height" toml:"height"`
}

// CustomCells converts hand-placed hotspots into cells, indexed in list
// order. Their audio is returned alongside, in the same order.
func CustomCells(spots []CustomHotspot) ([]Cell, []string, error) {
	cells := make([]Cell, len(spots))
	audio := make([]string, len(spots))
	for i, s := range spots {
		if !finite(s.Top, s.Left, s.Width, s.Height) || s.Width <= 0 || s.Height <= 0 || s.Top < 0 || s.Left < 0 {
			return nil, nil, fmt.Errorf("%w: hotspot %d has invalid geometry", ErrInvalidGridConfiguration, i)
		}
		label := s.Label
		if label == "" {
			label = CellLabel(i)
		}
		cells[i] = Cell{Index: i, Label: label, Top: s.Top, Left: s.Left, Width: s.Width, Height: s.Height}
		audio[i] = s.Audio
	}
	return cells, audio, nil
}
