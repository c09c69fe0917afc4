package vision

import "vlink-go/internal/raster"

// integral is a summed-area table with a zero row and column in front.
type integral struct {
	w, h int
	sum  []int64
}

func newIntegral(g *raster.Buffer) *integral {
	w, h := g.W, g.H
	ii := &integral{w: w, h: h, sum: make([]int64, (w+1)*(h+1))}
	for y := 0; y < h; y++ {
		var row int64
		for x := 0; x < w; x++ {
			row += int64(g.Pix[y*w+x])
			ii.sum[(y+1)*(w+1)+x+1] = ii.sum[y*(w+1)+x+1] + row
		}
	}
	return ii
}

// mean over the window of radius r around (x, y), clipped to the image.
func (ii *integral) mean(x, y, r int) float64 {
	x0, y0 := max(x-r, 0), max(y-r, 0)
	x1, y1 := min(x+r+1, ii.w), min(y+r+1, ii.h)
	stride := ii.w + 1
	s := ii.sum[y1*stride+x1] - ii.sum[y0*stride+x1] - ii.sum[y1*stride+x0] + ii.sum[y0*stride+x0]
	return float64(s) / float64((x1-x0)*(y1-y0))
}

// BoxBlur returns the single-channel box-filtered image of radius r.
func BoxBlur(g raster.Grid, r int) *raster.Buffer {
	src := raster.Luma(g)
	if r <= 0 {
		return src.Clone()
	}
	ii := newIntegral(src)
	out := raster.NewGray(src.W, src.H)
	for y := 0; y < src.H; y++ {
		for x := 0; x < src.W; x++ {
			out.Pix[y*src.W+x] = uint8(ii.mean(x, y, r) + 0.5)
		}
	}
	return out
}

// AdaptiveThreshold marks a pixel dark when it is more than offset below the
// mean of its block x block neighborhood.
func AdaptiveThreshold(g *raster.Buffer, block int, offset float64) *Mask {
	ii := newIntegral(g)
	r := block / 2
	m := NewMask(g.W, g.H)
	for y := 0; y < g.H; y++ {
		for x := 0; x < g.W; x++ {
			m.Pix[y*g.W+x] = float64(g.Pix[y*g.W+x]) < ii.mean(x, y, r)-offset
		}
	}
	return m
}

// AutoBlockSize picks an odd threshold block roughly a sixth of the shorter
// image side, never below 15 pixels.
func AutoBlockSize(w, h int) int {
	b := min(w, h) / 6
	if b < 15 {
		b = 15
	}
	return b | 1
}
