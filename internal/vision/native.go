package vision

import "vlink-go/internal/raster"

type NativeOptions struct {
	// BlurRadius of the box filter applied before thresholding; 0 disables.
	BlurRadius int
	// BlockSize of the adaptive threshold window; 0 picks AutoBlockSize.
	BlockSize int
	// Offset subtracted from the local mean.
	Offset float64
	// Seed for the robust homography sampler.
	Seed int64
}

func DefaultNativeOptions() NativeOptions {
	return NativeOptions{BlurRadius: 1, Offset: 10, Seed: 1}
}

// Native is the pure-Go Backend.
type Native struct {
	opts NativeOptions
}

func NewNative(opts NativeOptions) *Native {
	return &Native{opts: opts}
}

func (n *Native) Binarize(g raster.Grid) *Mask {
	blurred := BoxBlur(g, n.opts.BlurRadius)
	block := n.opts.BlockSize
	if block <= 0 {
		block = AutoBlockSize(blurred.W, blurred.H)
	}
	return AdaptiveThreshold(blurred, block, n.opts.Offset)
}

func (n *Native) Regions(m *Mask) *Hierarchy {
	return ExtractRegions(m)
}

func (n *Native) FindHomography(src, dst []raster.Point) (Homography, error) {
	return FitHomographyRANSAC(src, dst, n.opts.Seed)
}

func (n *Native) FitAffine(src, dst []raster.Point) (Homography, error) {
	return FitAffineMap(src, dst)
}

func (n *Native) Warp(g raster.Grid, h Homography, w, hgt int) *raster.Buffer {
	return WarpPerspective(g, h, w, hgt, raster.Light)
}

var _ Backend = (*Native)(nil)
