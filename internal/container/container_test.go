package container

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vlink-go/internal/ingest"
	"vlink-go/internal/raster"
)

func TestFrameRate(t *testing.T) {
	assert.Equal(t, 24.0, FrameRate(24, 5000, 10))
	assert.Equal(t, 4.0, FrameRate(0, 2500, 10))
	assert.Equal(t, DefaultFPS, FrameRate(0, 0, 10))
	assert.Equal(t, DefaultFPS, FrameRate(0, 1000, 0))
}

func TestRGBAConversion(t *testing.T) {
	g := raster.NewGray(3, 2)
	for i := range g.Pix {
		g.Pix[i] = uint8(i * 40)
	}
	rgba := make([]byte, 3*2*4)
	ToRGBA(g, rgba)
	assert.Equal(t, []byte{40, 40, 40, 255}, rgba[4:8])
	assert.Equal(t, g.Pix, FromRGBA(rgba, 3, 2).Pix)

	c := raster.New(1, 1, 3)
	copy(c.Pix, []uint8{30, 60, 90})
	px := make([]byte, 4)
	ToRGBA(c, px)
	assert.Equal(t, []byte{30, 60, 90, 255}, px)
	assert.Equal(t, uint8(60), FromRGBA(px, 1, 1).Pix[0])
}

func TestWriteRejectsEmpty(t *testing.T) {
	assert.ErrorIs(t, Write(t.TempDir()+"/x.mp4", nil, WriteOptions{}), ErrNoFrames)
	_, err := WriteFrameDir(t.TempDir(), nil)
	assert.ErrorIs(t, err, ErrNoFrames)
}

func TestFrameDirReadsBackThroughIngest(t *testing.T) {
	dir := t.TempDir()
	frames := make([]*raster.Buffer, 3)
	for i := range frames {
		frames[i] = raster.NewGray(8, 6)
		frames[i].Fill(uint8(60 * i))
		frames[i].FillRect(0, 0, 2, 2, 255)
	}
	paths, err := WriteFrameDir(dir, frames)
	require.NoError(t, err)
	require.Len(t, paths, 3)

	src, err := ingest.Directory(context.Background(), dir, 0)
	require.NoError(t, err)
	i := 0
	for f := range src {
		require.NotNil(t, f.Image)
		assert.Equal(t, frames[i].Pix, raster.Luma(f.Image).Pix)
		i++
	}
	assert.Equal(t, 3, i)
}

func TestPadEven(t *testing.T) {
	even := raster.NewGray(4, 2)
	assert.Same(t, even, PadEven(even))

	odd := raster.NewGray(3, 3)
	odd.Fill(raster.Dark)
	p := PadEven(odd)
	assert.Equal(t, 4, p.W)
	assert.Equal(t, 4, p.H)
	assert.Equal(t, raster.Dark, p.At(2, 2, 0))
	assert.Equal(t, raster.Light, p.At(3, 0, 0))
	assert.Equal(t, raster.Light, p.At(0, 3, 0))
}
