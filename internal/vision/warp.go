package vision

import (
	"math"

	"vlink-go/internal/raster"
)

// WarpPerspective fills a w x hgt gray image by mapping each output pixel
// center through h into g and sampling bilinearly. Samples outside g read as
// fill.
func WarpPerspective(g raster.Grid, h Homography, w, hgt int, fill uint8) *raster.Buffer {
	src := raster.Luma(g)
	out := raster.NewGray(w, hgt)
	for y := 0; y < hgt; y++ {
		for x := 0; x < w; x++ {
			p := h.Apply(raster.Point{X: float64(x) + 0.5, Y: float64(y) + 0.5})
			out.Pix[y*w+x] = Bilinear(src, p, fill)
		}
	}
	return out
}

// Bilinear samples a single-channel buffer at a continuous coordinate.
func Bilinear(src *raster.Buffer, p raster.Point, fill uint8) uint8 {
	if math.IsNaN(p.X) || math.IsNaN(p.Y) || p.X < 0 || p.Y < 0 || p.X > float64(src.W) || p.Y > float64(src.H) {
		return fill
	}
	fx, fy := p.X-0.5, p.Y-0.5
	x0, y0 := int(math.Floor(fx)), int(math.Floor(fy))
	ax, ay := fx-float64(x0), fy-float64(y0)
	at := func(x, y int) float64 {
		x = min(max(x, 0), src.W-1)
		y = min(max(y, 0), src.H-1)
		return float64(src.Pix[y*src.W+x])
	}
	top := at(x0, y0)*(1-ax) + at(x0+1, y0)*ax
	bottom := at(x0, y0+1)*(1-ax) + at(x0+1, y0+1)*ax
	v := top*(1-ay) + bottom*ay
	return uint8(math.Max(0, math.Min(255, v+0.5)))
}
