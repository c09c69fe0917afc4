// Package vision holds the image primitives the decoder needs behind one
// Backend interface, so the locator and rectifier never touch a particular
// imaging library. Native is the pure-Go implementation.
package vision

import (
	"errors"

	"vlink-go/internal/raster"
)

var ErrDegenerate = errors.New("vision: degenerate point configuration")

// Backend is the set of operations the decode pipeline asks of an imaging
// library.
type Backend interface {
	// Binarize blurs and adaptively thresholds g; dark pixels become
	// foreground.
	Binarize(g raster.Grid) *Mask
	// Regions extracts the nested region tree of a mask.
	Regions(m *Mask) *Hierarchy
	// FindHomography fits the projective map taking src onto dst. More than
	// four pairs are fitted robustly.
	FindHomography(src, dst []raster.Point) (Homography, error)
	// FitAffine fits the affine map taking three or more src points onto dst.
	FitAffine(src, dst []raster.Point) (Homography, error)
	// Warp resamples g into a w x h grid; h maps output pixel coordinates to
	// input pixel coordinates.
	Warp(g raster.Grid, h Homography, w, hgt int) *raster.Buffer
}

// Mask is a binary image; true is foreground (dark).
type Mask struct {
	W, H int
	Pix  []bool
}

func NewMask(w, h int) *Mask {
	return &Mask{W: w, H: h, Pix: make([]bool, w*h)}
}

func (m *Mask) At(x, y int) bool {
	if x < 0 || y < 0 || x >= m.W || y >= m.H {
		return false
	}
	return m.Pix[y*m.W+x]
}
