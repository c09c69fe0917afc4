// Package locator finds the nested-square markers of a captured frame.
package locator

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"vlink-go/internal/raster"
	"vlink-go/internal/vision"
)

var ErrTooFewMarkers = errors.New("locator: too few markers")

// Marker is a detected marker. Center is the centroid of its innermost dark
// core, which stays close to the projected center under perspective.
type Marker struct {
	Center      raster.Point
	Area        float64
	Circularity float64
	Small       bool
}

type Options struct {
	// MinCircularity of the filled outer square.
	MinCircularity float64
	// MinAreaFraction of the image an outer square must cover.
	MinAreaFraction float64
	MinAreaPx       float64
}

func DefaultOptions() Options {
	return Options{MinCircularity: 0.85, MinAreaFraction: 0.0004, MinAreaPx: 36}
}

type MarkerLocator struct {
	backend vision.Backend
	opts    Options
}

func New(backend vision.Backend, opts Options) *MarkerLocator {
	return &MarkerLocator{backend: backend, opts: opts}
}

type candidate struct {
	Marker
	bounds [4]float64
	strict bool
}

// Locate returns up to want markers, largest first. With want == 4 the last
// one is the small marker: the next distinct candidate after the three
// largest, or failing that the loose candidate nearest the bottom-right
// corner. Fewer than want markers come back with ErrTooFewMarkers.
func (l *MarkerLocator) Locate(img raster.Grid, want int) ([]Marker, error) {
	mask := l.backend.Binarize(img)
	tree := l.backend.Regions(mask)
	cands := l.candidates(tree, float64(img.Width()*img.Height()))

	var strict, loose []candidate
	for _, c := range cands {
		if c.strict {
			strict = append(strict, c)
		} else {
			loose = append(loose, c)
		}
	}
	sort.SliceStable(strict, func(i, j int) bool { return strict[i].Area > strict[j].Area })

	var picked []candidate
	for _, c := range strict {
		if len(picked) == want {
			break
		}
		if overlapsAny(c, picked) {
			continue
		}
		picked = append(picked, c)
	}

	if want == 4 && len(picked) == 3 {
		corner := raster.Point{X: float64(img.Width()), Y: float64(img.Height())}
		best := -1
		bestDist := math.Inf(1)
		for i, c := range loose {
			if overlapsAny(c, picked) {
				continue
			}
			if d := math.Hypot(c.Center.X-corner.X, c.Center.Y-corner.Y); d < bestDist {
				best, bestDist = i, d
			}
		}
		if best >= 0 {
			picked = append(picked, loose[best])
		}
	}

	out := make([]Marker, len(picked))
	for i, c := range picked {
		out[i] = c.Marker
	}
	if want == 4 && len(out) == 4 {
		out[3].Small = true
	}
	if len(out) < want {
		return out, fmt.Errorf("%w: found %d of %d", ErrTooFewMarkers, len(out), want)
	}
	return out, nil
}

// candidates walks every dark region that encloses a light region that in
// turn encloses a dark core. Strict candidates also pass the shape and area
// tests.
func (l *MarkerLocator) candidates(tree *vision.Hierarchy, imageArea float64) []candidate {
	minArea := math.Max(l.opts.MinAreaPx, l.opts.MinAreaFraction*imageArea)
	var out []candidate
	for i := 1; i < len(tree.Regions); i++ {
		r := tree.Region(i)
		if !r.Dark || r.Filled.M00 < minArea/4 {
			continue
		}
		ring := largestChild(tree, r)
		if ring == nil || ring.Filled.M00 < 0.15*r.Filled.M00 {
			continue
		}
		core := largestChild(tree, ring)
		if core == nil || core.Filled.M00 < 0.01*r.Filled.M00 {
			continue
		}

		outer := r.Filled.Centroid()
		center := core.Filled.Centroid()
		circ := r.Filled.Circularity()
		offset := math.Hypot(center.X-outer.X, center.Y-outer.Y)

		strict := r.Filled.M00 >= minArea &&
			circ >= l.opts.MinCircularity &&
			ring.Filled.Circularity() >= l.opts.MinCircularity-0.1 &&
			offset <= 0.25*math.Sqrt(r.Filled.M00)

		b := r.Bounds
		out = append(out, candidate{
			Marker: Marker{Center: center, Area: r.Filled.M00, Circularity: circ},
			bounds: [4]float64{float64(b.Min.X), float64(b.Min.Y), float64(b.Max.X), float64(b.Max.Y)},
			strict: strict,
		})
	}
	return out
}

func largestChild(tree *vision.Hierarchy, r *vision.Region) *vision.Region {
	var best *vision.Region
	for _, id := range r.Children {
		c := tree.Region(id)
		if best == nil || c.Filled.M00 > best.Filled.M00 {
			best = c
		}
	}
	return best
}

func overlapsAny(c candidate, picked []candidate) bool {
	for _, p := range picked {
		if c.Center.X >= p.bounds[0] && c.Center.X <= p.bounds[2] && c.Center.Y >= p.bounds[1] && c.Center.Y <= p.bounds[3] {
			return true
		}
		if p.Center.X >= c.bounds[0] && p.Center.X <= c.bounds[2] && p.Center.Y >= c.bounds[1] && p.Center.Y <= c.bounds[3] {
			return true
		}
	}
	return false
}
