package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vlink-go/internal/config"
	"vlink-go/internal/raster"
)

func TestDefaultMarkerGridGeometry(t *testing.T) {
	l, err := NewMarkerGrid(48, 8, 4, nil)
	require.NoError(t, err)

	assert.Equal(t, MarkerGrid, l.Kind())
	assert.Equal(t, Plain8, l.Framing())
	cols, rows := l.Modules()
	assert.Equal(t, 56, cols)
	assert.Equal(t, 56, rows)
	w, h := l.PixelSize()
	assert.Equal(t, 448, w)
	assert.Equal(t, 448, h)

	// top band 32x5, middle 48x32, bottom 32x7
	assert.Equal(t, 20+192+28, l.Capacity())
	assert.Equal(t, MarkerHeaderBits, l.HeaderBits())
	assert.Len(t, l.PayloadCells(), l.Capacity()*8)

	fields := l.Fields()
	require.Len(t, fields, 3)
	sum := 0
	for _, f := range fields {
		sum += f.Capacity
	}
	assert.Equal(t, l.Capacity(), sum)
}

func TestMarkerGridRegionsNeverOverlap(t *testing.T) {
	l, err := NewMarkerGrid(40, 6, 3, nil)
	require.NoError(t, err)

	seen := map[Cell]string{}
	claim := func(c Cell, what string) {
		if prev, ok := seen[c]; ok {
			t.Fatalf("cell %+v claimed by %s and %s", c, prev, what)
		}
		seen[c] = what
	}
	for _, c := range l.HeaderCells() {
		assert.Equal(t, HeaderModule, l.KindAt(c.X, c.Y))
		claim(c, "header")
	}
	for _, c := range l.PayloadCells() {
		assert.Equal(t, PayloadModule, l.KindAt(c.X, c.Y))
		claim(c, "payload")
	}
	for _, m := range l.Markers() {
		for dy := 0; dy < m.Size; dy++ {
			for dx := 0; dx < m.Size; dx++ {
				c := Cell{X: m.Origin.X + dx, Y: m.Origin.Y + dy}
				assert.Equal(t, MarkerModule, l.KindAt(c.X, c.Y))
				claim(c, "marker")
			}
		}
	}
	for c := range seen {
		assert.GreaterOrEqual(t, c.X, l.Border())
		assert.GreaterOrEqual(t, c.Y, l.Border())
	}
}

func TestMarkerGridMarkers(t *testing.T) {
	l, err := NewMarkerGrid(48, 8, 4, nil)
	require.NoError(t, err)

	anchors := l.Anchors()
	require.Len(t, anchors, 4)
	assert.Equal(t, Anchor{Role: TopLeft, Center: raster.Point{X: 60, Y: 60}}, anchors[0])
	assert.Equal(t, Anchor{Role: TopRight, Center: raster.Point{X: 388, Y: 60}}, anchors[1])
	assert.Equal(t, Anchor{Role: BottomLeft, Center: raster.Point{X: 60, Y: 388}}, anchors[2])
	assert.Equal(t, Anchor{Role: BottomRight, Center: raster.Point{X: 380, Y: 380}, Small: true}, anchors[3])

	markers := l.Markers()
	big := markers[0]
	assert.True(t, big.DarkAt(0, 3))
	assert.False(t, big.DarkAt(1, 3))
	assert.True(t, big.DarkAt(3, 3))
	small := markers[3]
	assert.True(t, small.Small)
	assert.True(t, small.DarkAt(2, 2))
	assert.False(t, small.DarkAt(1, 2))

	dark, light := l.ReferenceCells()
	assert.Len(t, dark, 3*24+16)
	assert.Len(t, light, 3*16+8)
	for _, c := range dark {
		assert.True(t, l.FixedDark(c.X, c.Y))
	}
	for _, c := range light {
		assert.False(t, l.FixedDark(c.X, c.Y))
	}
}

func markerRows(m Marker) []string {
	rows := make([]string, m.Size)
	for dy := 0; dy < m.Size; dy++ {
		row := make([]byte, m.Size)
		for dx := 0; dx < m.Size; dx++ {
			row[dx] = '.'
			if m.DarkAt(dx, dy) {
				row[dx] = '#'
			}
		}
		rows[dy] = string(row)
	}
	return rows
}

func TestMarkerModulePatterns(t *testing.T) {
	l, err := NewMarkerGrid(48, 8, 4, nil)
	require.NoError(t, err)
	markers := l.Markers()

	finder := []string{
		"#######",
		"#.....#",
		"#.###.#",
		"#.###.#",
		"#.###.#",
		"#.....#",
		"#######",
	}
	for _, m := range markers[:3] {
		assert.Equal(t, finder, markerRows(m), "role %s", m.Role)
	}
	assert.Equal(t, []string{
		"#####",
		"#...#",
		"#.#.#",
		"#...#",
		"#####",
	}, markerRows(markers[3]))

	fl, err := NewFinderGrid(40, 24, 6, 2, true)
	require.NoError(t, err)
	for _, m := range fl.Markers() {
		if m.Size == 7 {
			assert.Equal(t, finder, markerRows(m), "role %s", m.Role)
		}
	}
}

func TestMarkerGridCustomFields(t *testing.T) {
	fields := []RectangularField{{Origin: Cell{X: 4, Y: 12}, Width: 48, Height: 10}}
	l, err := NewMarkerGrid(48, 8, 4, fields)
	require.NoError(t, err)
	assert.Equal(t, 60, l.Capacity())

	_, err = NewMarkerGrid(48, 8, 4, []RectangularField{{Origin: Cell{X: 4, Y: 4}, Width: 8, Height: 8}})
	assert.ErrorIs(t, err, ErrFieldOverlap)

	_, err = NewMarkerGrid(48, 8, 4, []RectangularField{
		{Origin: Cell{X: 4, Y: 12}, Width: 10, Height: 10},
		{Origin: Cell{X: 8, Y: 15}, Width: 10, Height: 10},
	})
	assert.ErrorIs(t, err, ErrFieldOverlap)
}

func TestMarkerGridRejectsSmallGrids(t *testing.T) {
	_, err := NewMarkerGrid(20, 8, 4, nil)
	assert.ErrorIs(t, err, ErrInvalidLayout)
}

func TestFinderGridForCapacity(t *testing.T) {
	l, err := FinderGridForCapacity(256, 8, 4, true)
	require.NoError(t, err)

	assert.Equal(t, FinderGrid, l.Kind())
	assert.Equal(t, Parity9, l.Framing())
	assert.GreaterOrEqual(t, l.Capacity(), 256)
	assert.Equal(t, FinderHeaderBytes*9, l.HeaderBits())
	assert.Len(t, l.PayloadCells(), l.Capacity()*9)

	cols, rows := l.Modules()
	ratio := float64(cols-8) / float64(rows-8)
	assert.InDelta(t, 16.0/9.0, ratio, 0.1)
	assert.Len(t, l.Anchors(), 4)
}

func TestFinderGridWithoutAlignment(t *testing.T) {
	with, err := NewFinderGrid(32, 18, 6, 2, true)
	require.NoError(t, err)
	without, err := NewFinderGrid(32, 18, 6, 2, false)
	require.NoError(t, err)

	assert.Len(t, without.Anchors(), 3)
	assert.Greater(t, without.Capacity(), with.Capacity())

	// alignment pattern centered at (B+w-4, B+h-4)
	a := with.Anchors()[3]
	assert.Equal(t, raster.Point{X: (2 + 32 - 4 + 0.5) * 6, Y: (2 + 18 - 4 + 0.5) * 6}, a.Center)

	_, err = NewFinderGrid(16, 9, 6, 2, true)
	assert.ErrorIs(t, err, ErrInvalidLayout)
}

func TestFromConfig(t *testing.T) {
	l, err := FromConfig(config.DefaultLayoutConfig(config.VariantMarker))
	require.NoError(t, err)
	assert.Equal(t, MarkerGrid, l.Kind())

	l, err = FromConfig(config.DefaultLayoutConfig(config.VariantFinder))
	require.NoError(t, err)
	assert.Equal(t, FinderGrid, l.Kind())

	_, err = FromConfig(config.LayoutConfig{Variant: "hex"})
	assert.ErrorIs(t, err, ErrInvalidLayout)
}
