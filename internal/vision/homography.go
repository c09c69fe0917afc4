package vision

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"vlink-go/internal/raster"
)

// Homography is a row-major 3x3 projective map.
type Homography [9]float64

func Identity() Homography {
	return Homography{1, 0, 0, 0, 1, 0, 0, 0, 1}
}

func (h Homography) Apply(p raster.Point) raster.Point {
	w := h[6]*p.X + h[7]*p.Y + h[8]
	return raster.Point{
		X: (h[0]*p.X + h[1]*p.Y + h[2]) / w,
		Y: (h[3]*p.X + h[4]*p.Y + h[5]) / w,
	}
}

func (h Homography) dense() *mat.Dense {
	return mat.NewDense(3, 3, append([]float64(nil), h[:]...))
}

func fromDense(d mat.Matrix) Homography {
	var h Homography
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			h[r*3+c] = d.At(r, c)
		}
	}
	return h
}

func (h Homography) Inverse() (Homography, error) {
	var inv mat.Dense
	if err := inv.Inverse(h.dense()); err != nil {
		return Homography{}, fmt.Errorf("%w: %v", ErrDegenerate, err)
	}
	return fromDense(&inv).normalized()
}

func (h Homography) normalized() (Homography, error) {
	if math.Abs(h[8]) < 1e-12 {
		return Homography{}, fmt.Errorf("%w: projective scale vanishes", ErrDegenerate)
	}
	s := h[8]
	for i := range h {
		h[i] /= s
	}
	return h, nil
}

const (
	// smallest acceptable ratio of the 8th to the 1st singular value of the
	// DLT system
	minSingularRatio = 1e-9
	maxCondition     = 1e12
	ransacIterations = 200
	ransacInlierPx   = 3.0
)

// FitHomography solves the normalized DLT for four or more correspondences.
func FitHomography(src, dst []raster.Point) (Homography, error) {
	if len(src) != len(dst) || len(src) < 4 {
		return Homography{}, fmt.Errorf("%w: need 4 or more point pairs, got %d/%d", ErrDegenerate, len(src), len(dst))
	}
	if collinear(src) || collinear(dst) {
		return Homography{}, fmt.Errorf("%w: three of the points are collinear", ErrDegenerate)
	}
	ts, ns := normalize(src)
	td, nd := normalize(dst)

	n := len(src)
	a := mat.NewDense(2*n, 9, nil)
	for i := 0; i < n; i++ {
		x, y := ns[i].X, ns[i].Y
		u, v := nd[i].X, nd[i].Y
		a.SetRow(2*i, []float64{-x, -y, -1, 0, 0, 0, u * x, u * y, u})
		a.SetRow(2*i+1, []float64{0, 0, 0, -x, -y, -1, v * x, v * y, v})
	}
	if n == 4 {
		// pad to square so the full V carries the null vector
		padded := mat.NewDense(9, 9, nil)
		padded.Slice(0, 8, 0, 9).(*mat.Dense).Copy(a)
		a = padded
	}

	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDFull) {
		return Homography{}, fmt.Errorf("%w: SVD did not converge", ErrDegenerate)
	}
	values := svd.Values(nil)
	if values[0] == 0 || values[7]/values[0] < minSingularRatio {
		return Homography{}, fmt.Errorf("%w: rank deficient system", ErrDegenerate)
	}
	var v mat.Dense
	svd.VTo(&v)
	hn := mat.NewDense(3, 3, nil)
	for i := 0; i < 9; i++ {
		hn.Set(i/3, i%3, v.At(i, 8))
	}

	// H = Td^-1 * Hn * Ts
	var tdInv, tmp, full mat.Dense
	if err := tdInv.Inverse(td); err != nil {
		return Homography{}, fmt.Errorf("%w: %v", ErrDegenerate, err)
	}
	tmp.Mul(hn, ts)
	full.Mul(&tdInv, &tmp)

	h, err := fromDense(&full).normalized()
	if err != nil {
		return Homography{}, err
	}
	if c := mat.Cond(h.dense(), 2); math.IsInf(c, 0) || math.IsNaN(c) || c > maxCondition {
		return Homography{}, fmt.Errorf("%w: condition number %.3g", ErrDegenerate, c)
	}
	return h, nil
}

// FitHomographyRANSAC fits on random four-point samples and refits on the
// largest inlier set. Exactly four pairs fall through to FitHomography.
func FitHomographyRANSAC(src, dst []raster.Point, seed int64) (Homography, error) {
	if len(src) <= 4 {
		return FitHomography(src, dst)
	}
	rng := rand.New(rand.NewSource(seed))
	var best []int
	idx := make([]int, len(src))
	for it := 0; it < ransacIterations; it++ {
		perm := rng.Perm(len(src))[:4]
		s := []raster.Point{src[perm[0]], src[perm[1]], src[perm[2]], src[perm[3]]}
		d := []raster.Point{dst[perm[0]], dst[perm[1]], dst[perm[2]], dst[perm[3]]}
		h, err := FitHomography(s, d)
		if err != nil {
			continue
		}
		idx = idx[:0]
		for i := range src {
			if dist(h.Apply(src[i]), dst[i]) <= ransacInlierPx {
				idx = append(idx, i)
			}
		}
		if len(idx) > len(best) {
			best = append(best[:0], idx...)
		}
		if len(best) == len(src) {
			break
		}
	}
	if len(best) < 4 {
		return Homography{}, fmt.Errorf("%w: no consistent four-point model", ErrDegenerate)
	}
	s := make([]raster.Point, 0, len(best))
	d := make([]raster.Point, 0, len(best))
	for _, i := range best {
		s = append(s, src[i])
		d = append(d, dst[i])
	}
	return FitHomography(s, d)
}

// FitAffineMap solves the least-squares affine map for three or more pairs.
func FitAffineMap(src, dst []raster.Point) (Homography, error) {
	if len(src) != len(dst) || len(src) < 3 {
		return Homography{}, fmt.Errorf("%w: need 3 or more point pairs, got %d/%d", ErrDegenerate, len(src), len(dst))
	}
	if collinear(src[:3]) || collinear(dst[:3]) {
		return Homography{}, fmt.Errorf("%w: points are collinear", ErrDegenerate)
	}
	n := len(src)
	a := mat.NewDense(2*n, 6, nil)
	b := mat.NewVecDense(2*n, nil)
	for i := 0; i < n; i++ {
		a.SetRow(2*i, []float64{src[i].X, src[i].Y, 1, 0, 0, 0})
		a.SetRow(2*i+1, []float64{0, 0, 0, src[i].X, src[i].Y, 1})
		b.SetVec(2*i, dst[i].X)
		b.SetVec(2*i+1, dst[i].Y)
	}
	var x mat.VecDense
	if err := x.SolveVec(a, b); err != nil {
		return Homography{}, fmt.Errorf("%w: %v", ErrDegenerate, err)
	}
	return Homography{
		x.AtVec(0), x.AtVec(1), x.AtVec(2),
		x.AtVec(3), x.AtVec(4), x.AtVec(5),
		0, 0, 1,
	}, nil
}

// normalize moves the centroid to the origin and scales the mean distance to
// sqrt(2).
func normalize(pts []raster.Point) (*mat.Dense, []raster.Point) {
	var cx, cy float64
	for _, p := range pts {
		cx += p.X
		cy += p.Y
	}
	cx /= float64(len(pts))
	cy /= float64(len(pts))
	var d float64
	for _, p := range pts {
		d += math.Hypot(p.X-cx, p.Y-cy)
	}
	d /= float64(len(pts))
	s := 1.0
	if d > 0 {
		s = math.Sqrt2 / d
	}
	out := make([]raster.Point, len(pts))
	for i, p := range pts {
		out[i] = raster.Point{X: (p.X - cx) * s, Y: (p.Y - cy) * s}
	}
	return mat.NewDense(3, 3, []float64{s, 0, -s * cx, 0, s, -s * cy, 0, 0, 1}), out
}

func collinear(pts []raster.Point) bool {
	var span float64
	for i := range pts {
		for j := i + 1; j < len(pts); j++ {
			span = math.Max(span, dist(pts[i], pts[j]))
		}
	}
	if span == 0 {
		return true
	}
	eps := 1e-6 * span * span
	for i := 0; i < len(pts); i++ {
		for j := i + 1; j < len(pts); j++ {
			for k := j + 1; k < len(pts); k++ {
				if math.Abs(cross(pts[i], pts[j], pts[k])) < eps {
					return true
				}
			}
		}
	}
	return false
}

func cross(a, b, c raster.Point) float64 {
	return (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
}

func dist(a, b raster.Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
