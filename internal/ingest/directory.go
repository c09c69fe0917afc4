package ingest

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/bmp"

	"vlink-go/internal/raster"
	"vlink-go/internal/types"
)

var imageExts = map[string]bool{
	".bmp":  true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

// ListFrames returns the still images in dir sorted by name. Frame writers
// zero-pad their numbering so name order is capture order.
func ListFrames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	if len(out) == 0 {
		return nil, fmt.Errorf("no frame images in %s", dir)
	}
	return out, nil
}

func LoadImage(path string) (*raster.Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return raster.FromImage(img), nil
}

// Directory streams the images of dir in name order. Unreadable files still
// take an index, with a nil image, so the decoder counts them as skipped.
func Directory(ctx context.Context, dir string, fps float64) (<-chan types.Frame, error) {
	paths, err := ListFrames(dir)
	if err != nil {
		return nil, err
	}
	out := make(chan types.Frame, 4)
	go func() {
		defer close(out)
		for i, path := range paths {
			img, err := LoadImage(path)
			if err != nil {
				logrus.WithFields(logrus.Fields{
					"function": "Directory",
					"path":     path,
					"error":    err.Error(),
				}).Warn("Frame image unreadable")
			}
			frame := types.Frame{Index: i, Image: img}
			if fps > 0 {
				frame.Timestamp = float64(i) / fps
			}
			select {
			case <-ctx.Done():
				return
			case out <- frame:
			}
		}
	}()
	return out, nil
}
