// Package sampler reads module bits from a rectified frame by majority vote
// over a small grid of sub-points.
package sampler

import (
	"math"

	"vlink-go/internal/layout"
	"vlink-go/internal/raster"
	"vlink-go/internal/vision"
)

const (
	defaultThreshold = 128
	// minimum dark/light reference separation before calibration is trusted
	minContrast = 40
)

type ModuleSampler struct {
	layout *layout.FrameLayout
	// Grid is the number of sub-points per axis.
	Grid int
}

func New(l *layout.FrameLayout) *ModuleSampler {
	return &ModuleSampler{layout: l, Grid: 3}
}

// Modules is the sampled state of every module of one frame.
type Modules struct {
	cols       int
	dark       []bool
	confidence []float64
	Threshold  float64
	Contrast   float64
}

// Module implements codec.ModuleReader.
func (m *Modules) Module(c layout.Cell) (bool, float64) {
	i := c.Y*m.cols + c.X
	if c.X < 0 || c.Y < 0 || c.X >= m.cols || i >= len(m.dark) {
		return false, 0
	}
	return m.dark[i], m.confidence[i]
}

// Sample reads every module of a rectified frame. img must have the layout's
// pixel size.
func (s *ModuleSampler) Sample(img raster.Grid) *Modules {
	gray := raster.Luma(img)
	cols, rows := s.layout.Modules()
	m := &Modules{
		cols:       cols,
		dark:       make([]bool, cols*rows),
		confidence: make([]float64, cols*rows),
	}
	m.Threshold, m.Contrast = s.calibrate(gray)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			i := y*cols + x
			m.dark[i], m.confidence[i] = s.vote(gray, layout.Cell{X: x, Y: y}, m.Threshold)
		}
	}
	return m
}

// vote takes Grid x Grid bilinear samples spread over the middle of the
// module. The bit is the majority; confidence is |dark-light|/total, so 1
// when unanimous.
func (s *ModuleSampler) vote(g *raster.Buffer, c layout.Cell, threshold float64) (bool, float64) {
	dark, total := 0, 0
	s.each(c, func(p raster.Point) {
		total++
		if float64(vision.Bilinear(g, p, raster.Light)) < threshold {
			dark++
		}
	})
	if total == 0 {
		return false, 0
	}
	return 2*dark > total, math.Abs(float64(2*dark-total)) / float64(total)
}

func (s *ModuleSampler) each(c layout.Cell, fn func(p raster.Point)) {
	px := float64(s.layout.ModulePx())
	n := s.Grid
	if n < 1 {
		n = 1
	}
	cx := (float64(c.X) + 0.5) * px
	cy := (float64(c.Y) + 0.5) * px
	// outermost sub-points sit px/3 from the center
	spread := 2 * px / 3 / math.Max(float64(n-1), 1)
	half := float64(n-1) / 2
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			fn(raster.Point{X: cx + (float64(i)-half)*spread, Y: cy + (float64(j)-half)*spread})
		}
	}
}

// calibrate places the threshold halfway between the mean marker ring levels.
func (s *ModuleSampler) calibrate(g *raster.Buffer) (threshold, contrast float64) {
	darkCells, lightCells := s.layout.ReferenceCells()
	dark := s.meanLevel(g, darkCells)
	light := s.meanLevel(g, lightCells)
	contrast = light - dark
	if math.IsNaN(contrast) || contrast < minContrast {
		return defaultThreshold, contrast
	}
	return (dark + light) / 2, contrast
}

func (s *ModuleSampler) meanLevel(g *raster.Buffer, cells []layout.Cell) float64 {
	sum, n := 0.0, 0
	for _, c := range cells {
		s.each(c, func(p raster.Point) {
			sum += float64(vision.Bilinear(g, p, raster.Light))
			n++
		})
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}
