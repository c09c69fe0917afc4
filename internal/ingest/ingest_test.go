package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/bmp"

	"vlink-go/internal/raster"
)

func gradient(w, h, c int) *raster.Buffer {
	b := raster.New(w, h, c)
	for i := range b.Pix {
		b.Pix[i] = uint8(i * 7)
	}
	return b
}

func TestDecodeMessageFrame(t *testing.T) {
	img := gradient(4, 3, 1)
	msg, err := EncodeFrame(7, 1.25, img)
	require.NoError(t, err)

	frame, end, err := decodeMessage(msg, 0)
	require.NoError(t, err)
	assert.False(t, end)
	assert.Equal(t, 7, frame.Index)
	assert.Equal(t, 1.25, frame.Timestamp)
	require.NotNil(t, frame.Image)
	assert.Equal(t, 4, frame.Image.W)
	assert.Equal(t, 3, frame.Image.H)
	assert.Equal(t, img.Pix, frame.Image.Pix)
}

func TestDecodeMessageColorFrame(t *testing.T) {
	img := gradient(2, 2, 3)
	msg, err := EncodeFrame(0, 0, img)
	require.NoError(t, err)
	frame, _, err := decodeMessage(msg, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, frame.Image.C)
	assert.Equal(t, img.Pix, frame.Image.Pix)
}

func TestDecodeMessageEnd(t *testing.T) {
	msg, err := EncodeEnd()
	require.NoError(t, err)
	_, end, err := decodeMessage(msg, 0)
	require.NoError(t, err)
	assert.True(t, end)
}

func TestDecodeMessageAssignsArrivalIndex(t *testing.T) {
	msg, err := cbor.Marshal(map[string]any{
		"type": MessageFrame,
		"image": cbor.Tag{
			Number:  tagMultiDimArray,
			Content: []any{[]any{1, 2}, cbor.Tag{Number: tagUint8, Content: []byte{10, 20}}},
		},
	})
	require.NoError(t, err)
	frame, _, err := decodeMessage(msg, 12)
	require.NoError(t, err)
	assert.Equal(t, 12, frame.Index)
}

func TestDecodeMessageRejects(t *testing.T) {
	_, _, err := decodeMessage([]byte{0xff}, 0)
	assert.Error(t, err)

	msg, err := cbor.Marshal(map[string]any{"type": "status"})
	require.NoError(t, err)
	_, end, err := decodeMessage(msg, 0)
	assert.False(t, end)
	assert.Error(t, err)

	msg, err = cbor.Marshal(map[string]any{
		"type": MessageFrame,
		"image": cbor.Tag{
			Number:  tagMultiDimArray,
			Content: []any{[]any{2, 2}, cbor.Tag{Number: tagUint8, Content: []byte{1, 2, 3}}},
		},
	})
	require.NoError(t, err)
	_, _, err = decodeMessage(msg, 0)
	assert.Error(t, err)
}

func TestDecodeImageUint16(t *testing.T) {
	img, err := decodeImage(cbor.Tag{
		Number: tagMultiDimArray,
		Content: []any{
			[]any{uint64(1), uint64(2)},
			cbor.Tag{Number: tagUint16LE, Content: []byte{0x00, 0x12, 0xff, 0xab}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []uint8{0x12, 0xab}, img.Pix)

	_, err = decodeImage(cbor.Tag{Number: 41})
	assert.ErrorIs(t, err, ErrBadArray)
}

func TestDirectoryStreamsInNameOrder(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 3; i++ {
		img := raster.NewGray(5, 4)
		img.Fill(uint8(40 * (i + 1)))
		f, err := os.Create(filepath.Join(dir, fmt.Sprintf("frame_%06d.bmp", i)))
		require.NoError(t, err)
		require.NoError(t, bmp.Encode(f, img.Image()))
		require.NoError(t, f.Close())
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "frame_000003.png"), []byte("broken"), 0o644))

	frames, err := Directory(context.Background(), dir, 10)
	require.NoError(t, err)
	var n int
	for f := range frames {
		assert.Equal(t, n, f.Index)
		assert.InDelta(t, float64(n)/10, f.Timestamp, 1e-9)
		if n < 3 {
			require.NotNil(t, f.Image)
			assert.Equal(t, uint8(40*(n+1)), raster.Luma(f.Image).Pix[0])
		} else {
			assert.Nil(t, f.Image)
		}
		n++
	}
	assert.Equal(t, 4, n)
}

func TestDirectoryEmpty(t *testing.T) {
	_, err := Directory(context.Background(), t.TempDir(), 0)
	assert.Error(t, err)
}
