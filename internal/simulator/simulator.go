// Package simulator renders encoded frames through a synthetic camera so the
// decode path can be exercised without a real capture.
package simulator

import (
	"context"
	"math"
	"math/rand"
	"time"

	"vlink-go/internal/raster"
	"vlink-go/internal/types"
	"vlink-go/internal/vision"
)

type Options struct {
	// Capture size; zero keeps the frame size plus a margin.
	Width, Height int
	// Scale of the frame inside the capture before jitter.
	Scale float64
	// Jitter moves each frame corner by up to this many pixels.
	Jitter     float64
	NoiseSigma float64
	// NoiseBound clips every noise sample to +-NoiseBound.
	NoiseBound float64
	// Gradient darkens the capture linearly from left to right by up to this
	// fraction.
	Gradient   float64
	BlurRadius int
	Background uint8
	// Repeat emits every frame this many times, as a camera faster than the
	// display would.
	Repeat int
	// Rate paces Stream in frames per second; zero emits as fast as consumed.
	Rate float64
	Seed int64
}

func DefaultOptions() Options {
	return Options{
		Scale:      0.85,
		Jitter:     6,
		NoiseSigma: 8,
		NoiseBound: 24,
		Gradient:   0.25,
		Background: 230,
		Repeat:     1,
		Seed:       1,
	}
}

// Camera is a seeded synthetic capture device.
type Camera struct {
	opts Options
	rng  *rand.Rand
}

func NewCamera(opts Options) *Camera {
	if opts.Scale <= 0 {
		opts.Scale = 1
	}
	if opts.Repeat < 1 {
		opts.Repeat = 1
	}
	return &Camera{opts: opts, rng: rand.New(rand.NewSource(opts.Seed))}
}

// Capture photographs one frame. The returned homography maps frame pixel
// coordinates into the capture.
func (c *Camera) Capture(frame raster.Grid) (*raster.Buffer, vision.Homography, error) {
	fw, fh := float64(frame.Width()), float64(frame.Height())
	w, h := c.opts.Width, c.opts.Height
	if w <= 0 || h <= 0 {
		w, h = int(fw*1.25), int(fh*1.25)
	}

	scale := c.opts.Scale * math.Min(float64(w)/fw, float64(h)/fh)
	ox := (float64(w) - fw*scale) / 2
	oy := (float64(h) - fh*scale) / 2
	src := []raster.Point{{X: 0, Y: 0}, {X: fw, Y: 0}, {X: fw, Y: fh}, {X: 0, Y: fh}}
	dst := make([]raster.Point, 4)
	for i, p := range src {
		dst[i] = raster.Point{
			X: ox + p.X*scale + c.jitter(),
			Y: oy + p.Y*scale + c.jitter(),
		}
	}
	toCapture, err := vision.FitHomography(src, dst)
	if err != nil {
		return nil, vision.Homography{}, err
	}
	toFrame, err := toCapture.Inverse()
	if err != nil {
		return nil, vision.Homography{}, err
	}

	img := vision.WarpPerspective(frame, toFrame, w, h, c.opts.Background)
	c.light(img)
	if c.opts.BlurRadius > 0 {
		img = vision.BoxBlur(img, c.opts.BlurRadius)
	}
	c.noise(img)
	return img, toCapture, nil
}

func (c *Camera) jitter() float64 {
	if c.opts.Jitter <= 0 {
		return 0
	}
	return (c.rng.Float64()*2 - 1) * c.opts.Jitter
}

func (c *Camera) light(img *raster.Buffer) {
	if c.opts.Gradient <= 0 {
		return
	}
	for y := 0; y < img.H; y++ {
		for x := 0; x < img.W; x++ {
			f := 1 - c.opts.Gradient*float64(x)/float64(img.W)
			i := y*img.W + x
			img.Pix[i] = uint8(float64(img.Pix[i]) * f)
		}
	}
}

func (c *Camera) noise(img *raster.Buffer) {
	if c.opts.NoiseSigma <= 0 {
		return
	}
	bound := c.opts.NoiseBound
	if bound <= 0 {
		bound = 3 * c.opts.NoiseSigma
	}
	for i, v := range img.Pix {
		n := math.Max(-bound, math.Min(bound, c.rng.NormFloat64()*c.opts.NoiseSigma))
		img.Pix[i] = uint8(math.Max(0, math.Min(255, float64(v)+n)))
	}
}

// Stream captures frames in order, each Repeat times, numbering the
// captures from zero. Frames the camera cannot map are skipped.
func Stream(ctx context.Context, frames []*raster.Buffer, opts Options) <-chan types.Frame {
	out := make(chan types.Frame)
	cam := NewCamera(opts)
	go func() {
		defer close(out)

		var tick <-chan time.Time
		if opts.Rate > 0 {
			ticker := time.NewTicker(time.Duration(float64(time.Second) / opts.Rate))
			defer ticker.Stop()
			tick = ticker.C
		}

		index := 0
		for _, f := range frames {
			for r := 0; r < cam.opts.Repeat; r++ {
				if tick != nil {
					select {
					case <-ctx.Done():
						return
					case <-tick:
					}
				}
				img, _, err := cam.Capture(f)
				if err != nil {
					continue
				}
				frame := types.Frame{
					Index:     index,
					Timestamp: float64(time.Now().UnixNano()) / 1e9,
					Image:     img,
				}
				select {
				case <-ctx.Done():
					return
				case out <- frame:
				}
				index++
			}
		}
	}()
	return out
}
