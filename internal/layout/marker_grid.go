package layout

import "fmt"

// NewMarkerGrid builds the square layout: finders at the top-left, top-right
// and bottom-left corners of the n x n data area, a small marker inset two
// modules from the bottom-right corner, a header strip along the top band and
// either the default three fields or the given ones.
func NewMarkerGrid(n, modulePx, border int, fields []RectangularField) (*FrameLayout, error) {
	if n < 24 {
		return nil, fmt.Errorf("%w: marker grid needs at least 24 modules, got %d", ErrInvalidLayout, n)
	}
	if modulePx < 3 || border < 1 {
		return nil, fmt.Errorf("%w: module %dpx, border %d", ErrInvalidLayout, modulePx, border)
	}

	l := newCanvas(MarkerGrid, Plain8, modulePx, border, n, n)
	o := border
	l.placeMarker(Marker{Role: TopLeft, Origin: Cell{X: o, Y: o}, Size: finderSize})
	l.placeMarker(Marker{Role: TopRight, Origin: Cell{X: o + n - finderSize, Y: o}, Size: finderSize})
	l.placeMarker(Marker{Role: BottomLeft, Origin: Cell{X: o, Y: o + n - finderSize}, Size: finderSize})
	l.placeMarker(Marker{Role: BottomRight, Origin: Cell{X: o + n - finderSize, Y: o + n - finderSize}, Size: smallSize, Small: true})

	bandX := o + finderReserve
	bandW := n - 2*finderReserve
	headerRows := (MarkerHeaderBits + bandW - 1) / bandW
	if headerRows >= finderSize {
		return nil, fmt.Errorf("%w: header needs %d rows", ErrInvalidLayout, headerRows)
	}
	for i := 0; i < MarkerHeaderBits; i++ {
		c := Cell{X: bandX + i%bandW, Y: o + i/bandW}
		l.headerCells = append(l.headerCells, c)
		l.kinds[c.Y*l.cols+c.X] = HeaderModule
	}

	if len(fields) == 0 {
		fields = []RectangularField{
			{Origin: Cell{X: bandX, Y: o + headerRows}, Width: bandW, Height: finderSize - headerRows},
			{Origin: Cell{X: o, Y: o + finderReserve}, Width: n, Height: n - 2*finderReserve},
			{Origin: Cell{X: bandX, Y: o + n - finderSize}, Width: bandW, Height: finderSize},
		}
	}
	if err := l.placeFields(fields); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *FrameLayout) placeFields(fields []RectangularField) error {
	for i, f := range fields {
		if f.Width <= 0 || f.Height <= 0 {
			return fmt.Errorf("%w: field[%d] has empty extent", ErrInvalidLayout, i)
		}
		for y := f.Origin.Y; y < f.Origin.Y+f.Height; y++ {
			for x := f.Origin.X; x < f.Origin.X+f.Width; x++ {
				c := Cell{X: x, Y: y}
				if l.reserved(c) {
					return fmt.Errorf("%w: field[%d] at (%d,%d)", ErrFieldOverlap, i, x, y)
				}
				for j := 0; j < i; j++ {
					if fields[j].contains(c) {
						return fmt.Errorf("%w: field[%d] overlaps field[%d]", ErrFieldOverlap, i, j)
					}
				}
			}
		}
	}

	for _, f := range fields {
		f.Capacity = f.Width * f.Height / 8
		used := f.Capacity * 8
		for k := 0; k < used; k++ {
			c := Cell{X: f.Origin.X + k%f.Width, Y: f.Origin.Y + k/f.Width}
			l.payloadCells = append(l.payloadCells, c)
			l.kinds[c.Y*l.cols+c.X] = PayloadModule
		}
		l.capacity += f.Capacity
		l.fields = append(l.fields, f)
	}
	if l.capacity == 0 {
		return fmt.Errorf("%w: fields hold no whole byte", ErrInvalidLayout)
	}
	if l.capacity > MaxCapacity {
		return fmt.Errorf("%w: capacity %d exceeds the 24-bit length field", ErrInvalidLayout, l.capacity)
	}
	return nil
}
