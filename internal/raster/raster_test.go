package raster

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFillRectClips(t *testing.T) {
	b := NewGray(4, 3)
	b.Fill(Light)
	b.FillRect(-2, 1, 10, 2, Dark)

	for x := 0; x < 4; x++ {
		assert.Equal(t, Light, b.At(x, 0, 0))
		assert.Equal(t, Dark, b.At(x, 1, 0))
		assert.Equal(t, Light, b.At(x, 2, 0))
	}
}

func TestLumaAveragesChannels(t *testing.T) {
	b := New(2, 1, 3)
	b.Set(0, 0, 0, 30)
	b.Set(0, 0, 1, 60)
	b.Set(0, 0, 2, 90)

	g := Luma(b)
	require.Equal(t, 1, g.Channels())
	assert.Equal(t, uint8(60), g.At(0, 0, 0))
	assert.Equal(t, uint8(0), g.At(1, 0, 0))
}

func TestImageRoundTrip(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 3, 2))
	src.SetRGBA(2, 1, color.RGBA{R: 10, G: 20, B: 30, A: 255})

	b := FromImage(src)
	require.Equal(t, 3, b.Channels())
	assert.Equal(t, uint8(20), b.At(2, 1, 1))

	back := FromImage(b.Image())
	assert.Equal(t, b.Pix, back.Pix)
}

func TestFromBytesRejectsShortBuffer(t *testing.T) {
	_, err := FromBytes(4, 4, 3, make([]uint8, 10))
	assert.Error(t, err)
}
