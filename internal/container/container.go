// Package container moves frames in and out of video files. Vidio drives an
// ffmpeg binary, which must be on PATH.
package container

import (
	"context"
	"errors"
	"fmt"
	"math"

	vidio "github.com/AlexEidt/Vidio"
	"github.com/sirupsen/logrus"

	"vlink-go/internal/raster"
	"vlink-go/internal/types"
)

const (
	DefaultFPS = 10.0
	// Near-lossless so module edges survive compression.
	DefaultQuality = 1.0
	DefaultCodec   = "libx264"
)

var ErrNoFrames = errors.New("no frames to write")

// Info describes an opened video.
type Info struct {
	Width    int
	Height   int
	FPS      float64
	Frames   int
	Duration float64
}

// FrameRate resolves the encode rate: an explicit fps wins, else the frame
// count is spread over durationMs, else DefaultFPS.
func FrameRate(fps float64, durationMs int, frames int) float64 {
	switch {
	case fps > 0:
		return fps
	case durationMs > 0 && frames > 0:
		return float64(frames) * 1000 / float64(durationMs)
	default:
		return DefaultFPS
	}
}

type WriteOptions struct {
	FPS     float64
	Quality float64
	Codec   string
	// Repeat writes every frame this many times.
	Repeat int
}

// Write encodes frames into a video at path. All frames must share the
// first frame's size.
func Write(path string, frames []*raster.Buffer, opts WriteOptions) error {
	if len(frames) == 0 {
		return ErrNoFrames
	}
	if opts.FPS <= 0 {
		opts.FPS = DefaultFPS
	}
	if opts.Quality <= 0 {
		opts.Quality = DefaultQuality
	}
	if opts.Codec == "" {
		opts.Codec = DefaultCodec
	}
	if opts.Repeat < 1 {
		opts.Repeat = 1
	}

	// yuv420p needs even dimensions
	w, h := frames[0].W, frames[0].H
	ew, eh := w+w%2, h+h%2
	writer, err := vidio.NewVideoWriter(path, ew, eh, &vidio.Options{
		FPS:     opts.FPS,
		Quality: opts.Quality,
		Codec:   opts.Codec,
	})
	if err != nil {
		return fmt.Errorf("open video writer: %w", err)
	}

	rgba := make([]byte, ew*eh*4)
	for i, f := range frames {
		if f.W != w || f.H != h {
			writer.Close()
			return fmt.Errorf("frame %d is %dx%d, video is %dx%d", i, f.W, f.H, w, h)
		}
		ToRGBA(PadEven(f), rgba)
		for r := 0; r < opts.Repeat; r++ {
			if err := writer.Write(rgba); err != nil {
				writer.Close()
				return fmt.Errorf("write frame %d: %w", i, err)
			}
		}
	}
	writer.Close()
	logrus.WithFields(logrus.Fields{
		"function": "Write",
		"path":     path,
		"frames":   len(frames) * opts.Repeat,
		"fps":      opts.FPS,
	}).Info("Video written")
	return nil
}

// Open probes a video for its size and rate.
func Open(path string) (Info, error) {
	video, err := vidio.NewVideo(path)
	if err != nil {
		return Info{}, fmt.Errorf("open video: %w", err)
	}
	defer video.Close()
	return infoOf(video), nil
}

func infoOf(v *vidio.Video) Info {
	info := Info{Width: v.Width(), Height: v.Height(), FPS: v.FPS(), Frames: v.Frames()}
	if info.FPS > 0 && info.Frames > 0 {
		info.Duration = float64(info.Frames) / info.FPS
	}
	return info
}

// Frames decodes the video at path into grayscale frames in display order.
func Frames(ctx context.Context, path string) (<-chan types.Frame, Info, error) {
	video, err := vidio.NewVideo(path)
	if err != nil {
		return nil, Info{}, fmt.Errorf("open video: %w", err)
	}
	info := infoOf(video)

	out := make(chan types.Frame, 4)
	go func() {
		defer close(out)
		defer video.Close()
		index := 0
		for video.Read() {
			frame := types.Frame{
				Index: index,
				Image: FromRGBA(video.FrameBuffer(), info.Width, info.Height),
			}
			if info.FPS > 0 {
				frame.Timestamp = math.Round(float64(index)/info.FPS*1e6) / 1e6
			}
			select {
			case <-ctx.Done():
				return
			case out <- frame:
			}
			index++
		}
	}()
	return out, info, nil
}

// ToRGBA writes g into dst as opaque RGBA; dst must hold w*h*4 bytes.
func ToRGBA(g raster.Grid, dst []byte) {
	w, h, c := g.Width(), g.Height(), g.Channels()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * 4
			dst[i] = g.At(x, y, 0)
			dst[i+1] = g.At(x, y, 1%c)
			dst[i+2] = g.At(x, y, 2%c)
			dst[i+3] = 255
		}
	}
}

// PadEven extends g by one light row and/or column when a dimension is odd.
func PadEven(g *raster.Buffer) *raster.Buffer {
	if g.W%2 == 0 && g.H%2 == 0 {
		return g
	}
	out := raster.New(g.W+g.W%2, g.H+g.H%2, g.C)
	out.Fill(raster.Light)
	for y := 0; y < g.H; y++ {
		copy(out.Pix[y*out.W*out.C:], g.Pix[y*g.W*g.C:(y+1)*g.W*g.C])
	}
	return out
}

// FromRGBA copies an RGBA frame buffer into a new grayscale buffer.
func FromRGBA(rgba []byte, w, h int) *raster.Buffer {
	out := raster.NewGray(w, h)
	for i := range out.Pix {
		p := rgba[i*4 : i*4+3]
		out.Pix[i] = uint8((int(p[0]) + int(p[1]) + int(p[2])) / 3)
	}
	return out
}
