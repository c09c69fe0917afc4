// Package rectify maps located markers onto the canonical frame and resamples
// the capture into an axis-aligned image of the layout's pixel size.
package rectify

import (
	"errors"
	"fmt"
	"sort"

	"vlink-go/internal/layout"
	"vlink-go/internal/locator"
	"vlink-go/internal/raster"
	"vlink-go/internal/vision"
)

var (
	ErrTooFewMarkers        = errors.New("rectify: too few markers")
	ErrDegenerateHomography = errors.New("rectify: degenerate homography")
)

// Corners assigns each detected marker a role.
type Corners map[layout.Role]raster.Point

// Classify assigns roles to three or four marker centers. Four markers are
// split at the image's horizontal midpoint into left and right pairs and each
// pair ordered by y; the roles are then rotated so the small marker sits
// bottom-right. Three markers are a finder triple: top-left has the smallest
// x+y and top-right the larger x-y of the other two.
func Classify(markers []locator.Marker, imageWidth int) (Corners, error) {
	switch len(markers) {
	case 3:
		return classifyTriple(markers), nil
	case 4:
		return classifyQuad(markers, float64(imageWidth)/2), nil
	default:
		return nil, fmt.Errorf("%w: got %d", ErrTooFewMarkers, len(markers))
	}
}

func classifyQuad(markers []locator.Marker, midX float64) Corners {
	var left, right []locator.Marker
	for _, m := range markers {
		if m.Center.X < midX {
			left = append(left, m)
		} else {
			right = append(right, m)
		}
	}
	if len(left) != 2 {
		sorted := append([]locator.Marker(nil), markers...)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Center.X < sorted[j].Center.X })
		left, right = sorted[:2], sorted[2:]
	}
	byY := func(s []locator.Marker) {
		sort.SliceStable(s, func(i, j int) bool { return s[i].Center.Y < s[j].Center.Y })
	}
	byY(left)
	byY(right)

	// clockwise from top-left
	ring := [4]locator.Marker{left[0], right[0], right[1], left[1]}
	roles := [4]layout.Role{layout.TopLeft, layout.TopRight, layout.BottomRight, layout.BottomLeft}
	shift := 0
	for i, m := range ring {
		if m.Small {
			shift = (2 - i + 4) % 4
			break
		}
	}
	out := make(Corners, 4)
	for i, m := range ring {
		out[roles[(i+shift)%4]] = m.Center
	}
	return out
}

func classifyTriple(markers []locator.Marker) Corners {
	tl := 0
	for i, m := range markers {
		if m.Center.X+m.Center.Y < markers[tl].Center.X+markers[tl].Center.Y {
			tl = i
		}
	}
	var rest []raster.Point
	for i, m := range markers {
		if i != tl {
			rest = append(rest, m.Center)
		}
	}
	tr, bl := rest[0], rest[1]
	if bl.X-bl.Y > tr.X-tr.Y {
		tr, bl = bl, tr
	}
	return Corners{layout.TopLeft: markers[tl].Center, layout.TopRight: tr, layout.BottomLeft: bl}
}

// Result is a rectified frame and the map from canonical pixels into the
// capture.
type Result struct {
	Image     *raster.Buffer
	Transform vision.Homography
	Corners   Corners
}

type GeometricRectifier struct {
	backend vision.Backend
	layout  *layout.FrameLayout
}

func New(backend vision.Backend, l *layout.FrameLayout) *GeometricRectifier {
	return &GeometricRectifier{backend: backend, layout: l}
}

// Rectify classifies the markers, fits the canonical-to-capture map and warps
// the capture onto the layout's canvas. Layouts with four anchors need four
// markers and a homography; three-anchor layouts use an affine map.
func (r *GeometricRectifier) Rectify(img raster.Grid, markers []locator.Marker) (*Result, error) {
	anchors := r.layout.Anchors()
	if len(markers) < len(anchors) {
		return nil, fmt.Errorf("%w: need %d, got %d", ErrTooFewMarkers, len(anchors), len(markers))
	}
	corners, err := Classify(markers[:len(anchors)], img.Width())
	if err != nil {
		return nil, err
	}

	var canonical, captured []raster.Point
	for _, a := range anchors {
		p, ok := corners[a.Role]
		if !ok {
			return nil, fmt.Errorf("%w: no marker for %s", ErrTooFewMarkers, a.Role)
		}
		canonical = append(canonical, a.Center)
		captured = append(captured, p)
	}

	var h vision.Homography
	if len(anchors) == 4 {
		h, err = r.backend.FindHomography(canonical, captured)
	} else {
		h, err = r.backend.FitAffine(canonical, captured)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDegenerateHomography, err)
	}

	w, hgt := r.layout.PixelSize()
	return &Result{
		Image:     r.backend.Warp(img, h, w, hgt),
		Transform: h,
		Corners:   corners,
	}, nil
}
