package layout

import (
	"fmt"
	"math"
)

const (
	minFinderGrid = 2*finderReserve + 1
	aspectRatio   = 16.0 / 9.0
)

// NewFinderGrid builds the rectangular layout: finders at three corners, an
// optional alignment pattern centered four modules in from the bottom-right
// corner, and every other cell a data cell in row-major order. The first
// FinderHeaderBytes parity-framed bytes are the header.
func NewFinderGrid(width, height, modulePx, border int, alignment bool) (*FrameLayout, error) {
	if width < minFinderGrid || height < minFinderGrid {
		return nil, fmt.Errorf("%w: finder grid needs at least %dx%d modules, got %dx%d",
			ErrInvalidLayout, minFinderGrid, minFinderGrid, width, height)
	}
	if modulePx < 3 || border < 1 {
		return nil, fmt.Errorf("%w: module %dpx, border %d", ErrInvalidLayout, modulePx, border)
	}

	l := newCanvas(FinderGrid, Parity9, modulePx, border, width, height)
	o := border
	l.placeMarker(Marker{Role: TopLeft, Origin: Cell{X: o, Y: o}, Size: finderSize})
	l.placeMarker(Marker{Role: TopRight, Origin: Cell{X: o + width - finderSize, Y: o}, Size: finderSize})
	l.placeMarker(Marker{Role: BottomLeft, Origin: Cell{X: o, Y: o + height - finderSize}, Size: finderSize})
	if alignment {
		l.placeMarker(Marker{Role: BottomRight, Origin: Cell{X: o + width - 6, Y: o + height - 6}, Size: smallSize, Small: true})
	}

	var data []Cell
	for y := o; y < o+height; y++ {
		for x := o; x < o+width; x++ {
			if l.kinds[y*l.cols+x] == Unused {
				data = append(data, Cell{X: x, Y: y})
			}
		}
	}

	headerCells := FinderHeaderBytes * Parity9.BitsPerByte()
	if len(data) < headerCells+Parity9.BitsPerByte() {
		return nil, fmt.Errorf("%w: %d data cells cannot hold the header", ErrInvalidLayout, len(data))
	}
	l.headerCells = data[:headerCells]
	for _, c := range l.headerCells {
		l.kinds[c.Y*l.cols+c.X] = HeaderModule
	}

	rest := data[headerCells:]
	l.capacity = len(rest) / Parity9.BitsPerByte()
	if l.capacity > MaxCapacity {
		return nil, fmt.Errorf("%w: capacity %d exceeds the 24-bit length field", ErrInvalidLayout, l.capacity)
	}
	l.payloadCells = rest[:l.capacity*Parity9.BitsPerByte()]
	for _, c := range l.payloadCells {
		l.kinds[c.Y*l.cols+c.X] = PayloadModule
	}
	l.fields = []RectangularField{{Origin: Cell{X: o, Y: o}, Width: width, Height: height, Capacity: l.capacity}}
	return l, nil
}

// FinderGridForCapacity picks the smallest 16:9 finder grid whose per-frame
// capacity reaches target bytes.
func FinderGridForCapacity(target, modulePx, border int, alignment bool) (*FrameLayout, error) {
	if target < 1 {
		return nil, fmt.Errorf("%w: target capacity %d", ErrInvalidLayout, target)
	}
	bits := float64((target + FinderHeaderBytes) * Parity9.BitsPerByte())
	height := int(math.Ceil(math.Sqrt(bits / aspectRatio)))
	if height < minFinderGrid {
		height = minFinderGrid
	}
	for {
		width := int(math.Ceil(float64(height) * aspectRatio))
		l, err := NewFinderGrid(width, height, modulePx, border, alignment)
		if err != nil {
			return nil, err
		}
		if l.capacity >= target {
			return l, nil
		}
		height++
	}
}
