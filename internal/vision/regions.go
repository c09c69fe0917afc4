package vision

import (
	"image"
	"math"

	"vlink-go/internal/raster"
)

// Moments are raw image moments of a pixel set, pixel (x, y) weighted at its
// integer coordinates.
type Moments struct {
	M00, M10, M01, M20, M02, M11 float64
}

func (m *Moments) add(x, y int) {
	fx, fy := float64(x), float64(y)
	m.M00++
	m.M10 += fx
	m.M01 += fy
	m.M20 += fx * fx
	m.M02 += fy * fy
	m.M11 += fx * fy
}

func (m *Moments) merge(o Moments) {
	m.M00 += o.M00
	m.M10 += o.M10
	m.M01 += o.M01
	m.M20 += o.M20
	m.M02 += o.M02
	m.M11 += o.M11
}

// Centroid in continuous pixel coordinates (pixel centers at +0.5).
func (m Moments) Centroid() raster.Point {
	if m.M00 == 0 {
		return raster.Point{}
	}
	return raster.Point{X: m.M10/m.M00 + 0.5, Y: m.M01/m.M00 + 0.5}
}

// Circularity is A^2 / (2*pi*(mu20+mu02)): 1 for a disk, about 0.955 for a
// square, lower for elongated or ragged shapes.
func (m Moments) Circularity() float64 {
	if m.M00 == 0 {
		return 0
	}
	cx, cy := m.M10/m.M00, m.M01/m.M00
	// each pixel is a unit square, not a point
	mu20 := m.M20 - cx*m.M10 + m.M00/12
	mu02 := m.M02 - cy*m.M01 + m.M00/12
	if mu20+mu02 <= 0 {
		return 0
	}
	return m.M00 * m.M00 / (2 * math.Pi * (mu20 + mu02))
}

// Region is a connected component of one color. Dark regions are
// 8-connected and light regions 4-connected, so regions nest strictly.
type Region struct {
	ID       int
	Dark     bool
	Parent   int
	Depth    int
	Children []int
	Bounds   image.Rectangle
	// Own covers the region's pixels; Filled adds everything nested inside.
	Own    Moments
	Filled Moments
}

// Hierarchy is the region tree. Regions[0] is the light background that
// surrounds the image.
type Hierarchy struct {
	Regions []Region
}

func (h *Hierarchy) Root() *Region { return &h.Regions[0] }

func (h *Hierarchy) Region(id int) *Region { return &h.Regions[id] }

// ExtractRegions labels the mask and links every region to the one that
// encloses it.
func ExtractRegions(m *Mask) *Hierarchy {
	w, ht := m.W, m.H
	labels := make([]int32, w*ht)
	for i := range labels {
		labels[i] = -1
	}
	regions := []Region{{ID: 0, Parent: -1, Bounds: image.Rect(0, 0, w, ht)}}
	stack := make([]int, 0, 1024)

	fill := func(seed int, id int32) {
		dark := m.Pix[seed]
		r := &regions[id]
		r.Bounds = image.Rectangle{Min: image.Pt(w, ht)}
		if id == 0 {
			r.Bounds = image.Rect(0, 0, w, ht)
		}
		labels[seed] = id
		stack = append(stack[:0], seed)
		for len(stack) > 0 {
			p := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			x, y := p%w, p/w
			r.Own.add(x, y)
			if id != 0 {
				r.Bounds = r.Bounds.Union(image.Rect(x, y, x+1, y+1))
			}
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					if dx == 0 && dy == 0 || !dark && dx != 0 && dy != 0 {
						continue
					}
					nx, ny := x+dx, y+dy
					if nx < 0 || ny < 0 || nx >= w || ny >= ht {
						continue
					}
					q := ny*w + nx
					if labels[q] >= 0 || m.Pix[q] != dark {
						continue
					}
					labels[q] = id
					stack = append(stack, q)
				}
			}
		}
	}

	// light pixels on the image edge belong to the surrounding background
	for y := 0; y < ht; y++ {
		for x := 0; x < w; x++ {
			if x != 0 && y != 0 && x != w-1 && y != ht-1 {
				continue
			}
			p := y*w + x
			if !m.Pix[p] && labels[p] < 0 {
				fill(p, 0)
			}
		}
	}
	for p := range labels {
		if labels[p] >= 0 {
			continue
		}
		id := int32(len(regions))
		regions = append(regions, Region{ID: int(id), Dark: m.Pix[p], Parent: -1})
		fill(p, id)
	}

	adj := make([]map[int32]struct{}, len(regions))
	link := func(a, b int32) {
		if a == b {
			return
		}
		if adj[a] == nil {
			adj[a] = map[int32]struct{}{}
		}
		if adj[b] == nil {
			adj[b] = map[int32]struct{}{}
		}
		adj[a][b] = struct{}{}
		adj[b][a] = struct{}{}
	}
	for y := 0; y < ht; y++ {
		for x := 0; x < w; x++ {
			p := y*w + x
			if x+1 < w {
				link(labels[p], labels[p+1])
			}
			if y+1 < ht {
				link(labels[p], labels[p+w])
			}
			if m.Pix[p] && (x == 0 || y == 0 || x == w-1 || y == ht-1) {
				link(labels[p], 0)
			}
		}
	}

	order := make([]int32, 0, len(regions))
	order = append(order, 0)
	seen := make([]bool, len(regions))
	seen[0] = true
	for i := 0; i < len(order); i++ {
		cur := order[i]
		for n := range adj[cur] {
			if seen[n] {
				continue
			}
			seen[n] = true
			regions[n].Parent = int(cur)
			regions[n].Depth = regions[cur].Depth + 1
			regions[cur].Children = append(regions[cur].Children, int(n))
			order = append(order, n)
		}
	}

	for i := len(order) - 1; i >= 0; i-- {
		r := &regions[order[i]]
		r.Filled.merge(r.Own)
		if r.Parent >= 0 {
			regions[r.Parent].Filled.merge(r.Filled)
		}
	}
	return &Hierarchy{Regions: regions}
}
