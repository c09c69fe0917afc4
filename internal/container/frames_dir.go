package container

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/image/bmp"

	"vlink-go/internal/raster"
)

// WriteFrameDir saves frames as frame_000000.bmp, frame_000001.bmp, ... so
// an external muxer can pick them up in name order.
func WriteFrameDir(dir string, frames []*raster.Buffer) ([]string, error) {
	if len(frames) == 0 {
		return nil, ErrNoFrames
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(frames))
	for i, f := range frames {
		path := filepath.Join(dir, fmt.Sprintf("frame_%06d.bmp", i))
		if err := writeBMP(path, f); err != nil {
			return paths, fmt.Errorf("frame %d: %w", i, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeBMP(path string, g *raster.Buffer) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := bmp.Encode(f, g.Image()); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
