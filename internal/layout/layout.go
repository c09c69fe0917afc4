// Package layout describes the fixed frame geometry shared by the encoder and
// the decoder: where the markers, header strip and data fields sit, and how
// many payload bytes one frame carries.
//
// Two configurations exist behind one FrameLayout value:
//
//	MarkerGrid  square grid, three 7x7 finders plus a small 5x5 marker near
//	            the fourth corner, single-bit header cells and a Hamming
//	            derived check code.
//	FinderGrid  rectangular grid, three 7x7 finders and an optional 5x5
//	            alignment pattern, bytes framed as 8 data bits plus a parity
//	            bit, with a whole-stream CRC-32.
//
// A FrameLayout is immutable; accessors hand out copies.
package layout

import (
	"errors"
	"fmt"

	"vlink-go/internal/raster"
)

type Kind int

const (
	MarkerGrid Kind = iota
	FinderGrid
)

func (k Kind) String() string {
	switch k {
	case MarkerGrid:
		return "marker-grid"
	case FinderGrid:
		return "finder-grid"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Framing is how payload bytes map onto module bits.
type Framing int

const (
	// Plain8 writes 8 bits per byte, MSB first.
	Plain8 Framing = iota
	// Parity9 writes 8 bits MSB first followed by an odd-count parity bit.
	Parity9
)

func (f Framing) BitsPerByte() int {
	if f == Parity9 {
		return 9
	}
	return 8
}

type ModuleKind uint8

const (
	Unused ModuleKind = iota
	Border
	MarkerModule
	Separator
	HeaderModule
	PayloadModule
)

// Role names the corner a marker anchors.
type Role int

const (
	TopLeft Role = iota
	TopRight
	BottomRight
	BottomLeft
)

func (r Role) String() string {
	switch r {
	case TopLeft:
		return "top-left"
	case TopRight:
		return "top-right"
	case BottomRight:
		return "bottom-right"
	case BottomLeft:
		return "bottom-left"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// Cell is a module coordinate on the full canvas, border included.
type Cell struct {
	X, Y int
}

// RectangularField is a data region scanned in row-major order.
type RectangularField struct {
	Origin   Cell
	Width    int
	Height   int
	Capacity int
}

func (f RectangularField) contains(c Cell) bool {
	return c.X >= f.Origin.X && c.X < f.Origin.X+f.Width && c.Y >= f.Origin.Y && c.Y < f.Origin.Y+f.Height
}

// Marker is a nested-square locator pattern: a dark outer ring, a light ring
// and a solid dark core (3x3 in a 7x7 finder, 1x1 in the 5x5 marker).
type Marker struct {
	Role   Role
	Origin Cell
	Size   int
	Small  bool
}

// DarkAt reports the color of the module at offset (dx, dy) inside the marker.
func (m Marker) DarkAt(dx, dy int) bool {
	return m.ring(dx, dy) != 1
}

func (m Marker) ring(dx, dy int) int {
	r := dx
	for _, v := range []int{dy, m.Size - 1 - dx, m.Size - 1 - dy} {
		if v < r {
			r = v
		}
	}
	return r
}

// Anchor is a marker center in canonical pixel coordinates.
type Anchor struct {
	Role   Role
	Center raster.Point
	Small  bool
}

var (
	ErrInvalidLayout = errors.New("layout: invalid geometry")
	ErrFieldOverlap  = errors.New("layout: field overlaps reserved modules")
)

const (
	finderSize    = 7
	smallSize     = 5
	finderReserve = finderSize + 1

	// MarkerHeaderBits is isStart, isEnd, 24-bit length, 16-bit sequence and
	// the 5-bit check code.
	MarkerHeaderBits = 2 + LengthBits + 16 + 5
	// FinderHeaderBytes is flags, 16-bit sequence and 24-bit length.
	FinderHeaderBytes = 6

	LengthBits  = 24
	MaxCapacity = 1<<LengthBits - 1
)

type FrameLayout struct {
	kind       Kind
	framing    Framing
	modulePx   int
	border     int
	cols, rows int

	markers      []Marker
	fields       []RectangularField
	headerCells  []Cell
	payloadCells []Cell
	capacity     int
	kinds        []ModuleKind
	dark         []bool
}

func (l *FrameLayout) Kind() Kind       { return l.kind }
func (l *FrameLayout) Framing() Framing { return l.framing }
func (l *FrameLayout) ModulePx() int    { return l.modulePx }
func (l *FrameLayout) Border() int      { return l.border }

// Modules is the canvas size in modules, border included.
func (l *FrameLayout) Modules() (cols, rows int) { return l.cols, l.rows }

// PixelSize is the canvas size in pixels.
func (l *FrameLayout) PixelSize() (w, h int) { return l.cols * l.modulePx, l.rows * l.modulePx }

// Capacity is the number of payload bytes one frame carries.
func (l *FrameLayout) Capacity() int { return l.capacity }

func (l *FrameLayout) HeaderBits() int { return len(l.headerCells) }

func (l *FrameLayout) Markers() []Marker {
	return append([]Marker(nil), l.markers...)
}

func (l *FrameLayout) Fields() []RectangularField {
	return append([]RectangularField(nil), l.fields...)
}

func (l *FrameLayout) HeaderCells() []Cell {
	return append([]Cell(nil), l.headerCells...)
}

// PayloadCells lists the payload module cells in write order; its length is
// Capacity() * Framing().BitsPerByte().
func (l *FrameLayout) PayloadCells() []Cell {
	return append([]Cell(nil), l.payloadCells...)
}

func (l *FrameLayout) KindAt(x, y int) ModuleKind {
	if x < 0 || y < 0 || x >= l.cols || y >= l.rows {
		return Border
	}
	return l.kinds[y*l.cols+x]
}

// FixedDark reports the rendered color of a non-data module. Only meaningful
// for Border, MarkerModule, Separator and Unused cells.
func (l *FrameLayout) FixedDark(x, y int) bool {
	if x < 0 || y < 0 || x >= l.cols || y >= l.rows {
		return false
	}
	return l.dark[y*l.cols+x]
}

// Anchors returns the canonical marker centers, largest markers first.
func (l *FrameLayout) Anchors() []Anchor {
	out := make([]Anchor, 0, len(l.markers))
	for _, m := range l.markers {
		half := float64(m.Size) / 2
		out = append(out, Anchor{
			Role: m.Role,
			Center: raster.Point{
				X: (float64(m.Origin.X) + half) * float64(l.modulePx),
				Y: (float64(m.Origin.Y) + half) * float64(l.modulePx),
			},
			Small: m.Small,
		})
	}
	return out
}

// ReferenceCells returns marker cells with a known color: the outer rings
// (dark) and the rings just inside them (light).
func (l *FrameLayout) ReferenceCells() (dark, light []Cell) {
	for _, m := range l.markers {
		for dy := 0; dy < m.Size; dy++ {
			for dx := 0; dx < m.Size; dx++ {
				c := Cell{X: m.Origin.X + dx, Y: m.Origin.Y + dy}
				switch m.ring(dx, dy) {
				case 0:
					dark = append(dark, c)
				case 1:
					light = append(light, c)
				}
			}
		}
	}
	return dark, light
}

func (l *FrameLayout) String() string {
	w, h := l.PixelSize()
	return fmt.Sprintf("%s %dx%d modules (%dx%d px), capacity %d bytes", l.kind, l.cols, l.rows, w, h, l.capacity)
}

func newCanvas(kind Kind, framing Framing, modulePx, border, dataCols, dataRows int) *FrameLayout {
	cols := dataCols + 2*border
	rows := dataRows + 2*border
	l := &FrameLayout{
		kind:     kind,
		framing:  framing,
		modulePx: modulePx,
		border:   border,
		cols:     cols,
		rows:     rows,
		kinds:    make([]ModuleKind, cols*rows),
		dark:     make([]bool, cols*rows),
	}
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			if x < border || y < border || x >= border+dataCols || y >= border+dataRows {
				l.kinds[y*cols+x] = Border
			}
		}
	}
	return l
}

// placeMarker reserves the marker plus a one-module separator ring, clipped
// to the data area.
func (l *FrameLayout) placeMarker(m Marker) {
	l.markers = append(l.markers, m)
	for dy := -1; dy <= m.Size; dy++ {
		for dx := -1; dx <= m.Size; dx++ {
			x, y := m.Origin.X+dx, m.Origin.Y+dy
			if l.KindAt(x, y) == Border {
				continue
			}
			i := y*l.cols + x
			if dx < 0 || dy < 0 || dx >= m.Size || dy >= m.Size {
				l.kinds[i] = Separator
				continue
			}
			l.kinds[i] = MarkerModule
			l.dark[i] = m.DarkAt(dx, dy)
		}
	}
}

func (l *FrameLayout) reserved(c Cell) bool {
	switch l.KindAt(c.X, c.Y) {
	case Border, MarkerModule, Separator, HeaderModule:
		return true
	}
	return false
}
