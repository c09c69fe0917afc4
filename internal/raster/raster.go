// Package raster holds the pixel grid the codec core works on. Nothing here
// depends on an imaging library; conversion to and from image.Image lives at
// the edges.
package raster

import (
	"fmt"
	"image"
	"image/color"
)

const (
	Dark  uint8 = 0
	Light uint8 = 255
)

// Grid is a 2D pixel grid with one or more 8-bit channels.
type Grid interface {
	Width() int
	Height() int
	Channels() int
	At(x, y, c int) uint8
	Set(x, y, c int, v uint8)
}

// Buffer is an interleaved row-major Grid.
type Buffer struct {
	W, H, C int
	Pix     []uint8
}

func New(w, h, channels int) *Buffer {
	if channels < 1 {
		channels = 1
	}
	return &Buffer{W: w, H: h, C: channels, Pix: make([]uint8, w*h*channels)}
}

func NewGray(w, h int) *Buffer {
	return New(w, h, 1)
}

// FromBytes wraps pix without copying.
func FromBytes(w, h, channels int, pix []uint8) (*Buffer, error) {
	if w <= 0 || h <= 0 || channels <= 0 {
		return nil, fmt.Errorf("raster: invalid dimensions %dx%dx%d", w, h, channels)
	}
	if len(pix) != w*h*channels {
		return nil, fmt.Errorf("raster: pixel buffer has %d bytes, want %d", len(pix), w*h*channels)
	}
	return &Buffer{W: w, H: h, C: channels, Pix: pix}, nil
}

func (b *Buffer) Width() int    { return b.W }
func (b *Buffer) Height() int   { return b.H }
func (b *Buffer) Channels() int { return b.C }

func (b *Buffer) At(x, y, c int) uint8 {
	return b.Pix[(y*b.W+x)*b.C+c]
}

func (b *Buffer) Set(x, y, c int, v uint8) {
	b.Pix[(y*b.W+x)*b.C+c] = v
}

// Fill sets every channel of every pixel to v.
func (b *Buffer) Fill(v uint8) {
	for i := range b.Pix {
		b.Pix[i] = v
	}
}

// FillRect sets all channels in [x0,x1)x[y0,y1), clipped to the buffer.
func (b *Buffer) FillRect(x0, y0, x1, y1 int, v uint8) {
	if x0 < 0 {
		x0 = 0
	}
	if y0 < 0 {
		y0 = 0
	}
	if x1 > b.W {
		x1 = b.W
	}
	if y1 > b.H {
		y1 = b.H
	}
	for y := y0; y < y1; y++ {
		row := (y*b.W + x0) * b.C
		end := (y*b.W + x1) * b.C
		for i := row; i < end; i++ {
			b.Pix[i] = v
		}
	}
}

func (b *Buffer) Clone() *Buffer {
	pix := make([]uint8, len(b.Pix))
	copy(pix, b.Pix)
	return &Buffer{W: b.W, H: b.H, C: b.C, Pix: pix}
}

// Luma returns the single-channel view of g. Multi-channel grids are averaged;
// a single-channel Buffer is returned as is.
func Luma(g Grid) *Buffer {
	if buf, ok := g.(*Buffer); ok && buf.C == 1 {
		return buf
	}
	w, h, c := g.Width(), g.Height(), g.Channels()
	out := NewGray(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sum := 0
			for k := 0; k < c; k++ {
				sum += int(g.At(x, y, k))
			}
			out.Pix[y*w+x] = uint8(sum / c)
		}
	}
	return out
}

// Expand copies a grid into a buffer with the requested channel count,
// replicating the first channel when widening.
func Expand(g Grid, channels int) *Buffer {
	w, h, c := g.Width(), g.Height(), g.Channels()
	out := New(w, h, channels)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			for k := 0; k < channels; k++ {
				src := k
				if src >= c {
					src = 0
				}
				out.Set(x, y, k, g.At(x, y, src))
			}
		}
	}
	return out
}

// FromImage converts any image into a Buffer: gray images keep one channel,
// everything else becomes RGB.
func FromImage(img image.Image) *Buffer {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if gray, ok := img.(*image.Gray); ok {
		out := NewGray(w, h)
		for y := 0; y < h; y++ {
			copy(out.Pix[y*w:(y+1)*w], gray.Pix[y*gray.Stride:y*gray.Stride+w])
		}
		return out
	}
	out := New(w, h, 3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			i := (y*w + x) * 3
			out.Pix[i] = uint8(r >> 8)
			out.Pix[i+1] = uint8(g >> 8)
			out.Pix[i+2] = uint8(b >> 8)
		}
	}
	return out
}

// Image converts the buffer for encoding with image/* or x/image codecs.
func (b *Buffer) Image() image.Image {
	if b.C == 1 {
		img := image.NewGray(image.Rect(0, 0, b.W, b.H))
		copy(img.Pix, b.Pix)
		return img
	}
	img := image.NewRGBA(image.Rect(0, 0, b.W, b.H))
	for y := 0; y < b.H; y++ {
		for x := 0; x < b.W; x++ {
			c := color.RGBA{A: 255}
			c.R = b.At(x, y, 0)
			c.G = b.At(x, y, 1%b.C)
			c.B = b.At(x, y, 2%b.C)
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// Point is a continuous pixel coordinate; pixel (x, y) covers [x, x+1).
type Point struct {
	X, Y float64
}
