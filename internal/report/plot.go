package report

import (
	"fmt"
	"image/color"
	"sync"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"vlink-go/internal/types"
)

// ConfidencePlot collects one point per processed frame and renders mean
// module confidence against capture index.
type ConfidencePlot struct {
	mu      sync.Mutex
	valid   plotter.XYs
	invalid plotter.XYs
	skipped plotter.XYs
}

func NewConfidencePlot() *ConfidencePlot {
	return &ConfidencePlot{}
}

func (p *ConfidencePlot) Add(r types.FrameRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	x := float64(r.Index)
	switch {
	case !r.Decoded:
		p.skipped = append(p.skipped, plotter.XY{X: x, Y: 0})
	case r.Valid:
		p.valid = append(p.valid, plotter.XY{X: x, Y: r.MeanConfidence})
	default:
		p.invalid = append(p.invalid, plotter.XY{X: x, Y: r.MeanConfidence})
	}
}

// Points reports how many frames fell in each series.
func (p *ConfidencePlot) Points() (valid, invalid, skipped int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.valid), len(p.invalid), len(p.skipped)
}

func (p *ConfidencePlot) Save(path string, title string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	pl := plot.New()
	pl.Title.Text = title
	pl.X.Label.Text = "Capture index"
	pl.Y.Label.Text = "Mean confidence"
	pl.Y.Min = 0
	pl.Y.Max = 1.05

	series := []struct {
		label string
		pts   plotter.XYs
		color color.Color
		shape draw.GlyphDrawer
	}{
		{"valid", p.valid, color.RGBA{R: 30, G: 140, B: 60, A: 255}, draw.CircleGlyph{}},
		{"integrity failure", p.invalid, color.RGBA{R: 200, G: 40, B: 40, A: 255}, draw.CrossGlyph{}},
		{"skipped", p.skipped, color.RGBA{R: 120, G: 120, B: 120, A: 255}, draw.TriangleGlyph{}},
	}
	for _, s := range series {
		if len(s.pts) == 0 {
			continue
		}
		sc, err := plotter.NewScatter(s.pts)
		if err != nil {
			return fmt.Errorf("%s series: %w", s.label, err)
		}
		sc.GlyphStyle.Color = s.color
		sc.GlyphStyle.Shape = s.shape
		sc.GlyphStyle.Radius = vg.Points(2)
		pl.Add(sc)
		pl.Legend.Add(s.label, sc)
	}
	pl.Legend.Top = true
	pl.Legend.Left = false
	pl.Legend.YOffs = -10
	pl.Add(plotter.NewGrid())

	return pl.Save(10*vg.Inch, 4*vg.Inch, path)
}
