package codec

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vlink-go/internal/framing"
	"vlink-go/internal/integrity"
	"vlink-go/internal/layout"
	"vlink-go/internal/raster"
)

// centerReader reads the center pixel of each module of an unwarped frame.
type centerReader struct {
	img *raster.Buffer
	px  int
}

func (r centerReader) Module(c layout.Cell) (bool, float64) {
	v := r.img.At(c.X*r.px+r.px/2, c.Y*r.px+r.px/2, 0)
	return v < 128, 1
}

type cellReader map[layout.Cell]bool

func (r cellReader) Module(c layout.Cell) (bool, float64) { return r[c], 1 }

func markerLayout(t *testing.T) *layout.FrameLayout {
	t.Helper()
	l, err := layout.NewMarkerGrid(32, 6, 2, nil)
	require.NoError(t, err)
	return l
}

func finderLayout(t *testing.T) *layout.FrameLayout {
	t.Helper()
	l, err := layout.FinderGridForCapacity(64, 6, 2, true)
	require.NoError(t, err)
	return l
}

func randomPayload(n int, seed int64) []byte {
	r := rand.New(rand.NewSource(seed))
	out := make([]byte, n)
	r.Read(out)
	return out
}

func roundTrip(t *testing.T, l *layout.FrameLayout, payload []byte) ([]*DecodedFrame, []byte) {
	t.Helper()
	enc := NewFrameEncoder(l)
	dec := NewFrameDecoder(l)
	frames, err := enc.EncodeAll(payload)
	require.NoError(t, err)

	var decoded []*DecodedFrame
	var stream []byte
	for _, img := range frames {
		f, err := dec.Decode(centerReader{img: img, px: l.ModulePx()})
		require.NoError(t, err)
		decoded = append(decoded, f)
		stream = append(stream, f.Payload...)
	}
	return decoded, stream
}

func TestMarkerGridRoundTrip(t *testing.T) {
	l := markerLayout(t)
	for _, n := range []int{0, 1, 2, 3, l.Capacity() - 1, l.Capacity(), l.Capacity() + 1, 3*l.Capacity() + 7} {
		payload := randomPayload(n, int64(n))
		frames, stream := roundTrip(t, l, payload)
		assert.Equal(t, framing.Count(n, l.Capacity()), len(frames), "n=%d", n)
		for i, f := range frames {
			assert.True(t, f.Valid, "n=%d frame %d", n, i)
			assert.Equal(t, uint16(i), f.Header.Sequence)
		}
		assert.True(t, bytes.Equal(payload, stream), "n=%d", n)
	}
}

func TestFinderGridRoundTripWithCRC(t *testing.T) {
	l := finderLayout(t)
	payload := randomPayload(5*l.Capacity()+11, 7)
	frames, stream := roundTrip(t, l, payload)
	for _, f := range frames {
		assert.True(t, f.Valid)
	}
	data, check := FinishStream(l, stream)
	assert.True(t, check.Applied)
	assert.True(t, check.OK)
	assert.Equal(t, payload, data)
}

func TestFinderGridCRCMismatchKeepsBytes(t *testing.T) {
	l := finderLayout(t)
	stream := integrity.AppendCRC32([]byte("hello"))
	stream[0] ^= 0x01
	data, check := FinishStream(l, stream)
	assert.False(t, check.OK)
	assert.Equal(t, []byte("iello"), data)
}

func TestFinderGridShortStreamKeepsBytes(t *testing.T) {
	l := finderLayout(t)
	data, check := FinishStream(l, []byte{7, 8, 9})
	assert.True(t, check.Applied)
	assert.False(t, check.OK)
	assert.Equal(t, []byte{7, 8, 9}, data)
}

func TestHeaderBoundaryFrames(t *testing.T) {
	l := markerLayout(t)
	enc := NewFrameEncoder(l)

	chunks, err := enc.Chunks(make([]byte, l.Capacity()))
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, framing.StartAndEnd, chunks[0].Header.Type)

	frames, _ := roundTrip(t, l, make([]byte, l.Capacity()+1))
	require.Len(t, frames, 2)
	assert.Equal(t, framing.Start, frames[0].Header.Type)
	assert.Equal(t, l.Capacity(), frames[0].Header.Length)
	assert.Equal(t, framing.End, frames[1].Header.Type)
	assert.Equal(t, 1, frames[1].Header.Length)
}

func flipModule(img *raster.Buffer, px int, c layout.Cell) {
	v := raster.Dark
	if img.At(c.X*px+px/2, c.Y*px+px/2, 0) < 128 {
		v = raster.Light
	}
	img.FillRect(c.X*px, c.Y*px, (c.X+1)*px, (c.Y+1)*px, v)
}

func TestMarkerGridPayloadFlipFailsCheck(t *testing.T) {
	l := markerLayout(t)
	enc := NewFrameEncoder(l)
	chunks, err := enc.Chunks(randomPayload(l.Capacity(), 3))
	require.NoError(t, err)

	cells := l.PayloadCells()
	for _, i := range []int{0, 1, 7, 8, 15, len(cells) / 2, len(cells) - 1} {
		img, err := enc.Encode(chunks[0])
		require.NoError(t, err)
		flipModule(img, l.ModulePx(), cells[i])
		f, err := NewFrameDecoder(l).Decode(centerReader{img: img, px: l.ModulePx()})
		require.NoError(t, err)
		assert.False(t, f.CheckOK, "bit %d", i)
		assert.False(t, f.Valid, "bit %d", i)
	}
}

func TestFinderGridParityFlagsByte(t *testing.T) {
	l := finderLayout(t)
	enc := NewFrameEncoder(l)
	chunks, err := enc.Chunks(randomPayload(l.Capacity(), 5))
	require.NoError(t, err)
	img, err := enc.Encode(chunks[0])
	require.NoError(t, err)

	// third bit of byte 4
	flipModule(img, l.ModulePx(), l.PayloadCells()[4*9+2])
	f, err := NewFrameDecoder(l).Decode(centerReader{img: img, px: l.ModulePx()})
	require.NoError(t, err)
	assert.False(t, f.Valid)
	assert.False(t, f.ByteOK[4])
	assert.True(t, f.ByteOK[3])
	assert.True(t, f.ByteOK[5])
}

func TestDeclaredLengthAboveCapacity(t *testing.T) {
	l := markerLayout(t)
	r := cellReader{}
	bits := markerHeaderBits(framing.Header{Type: framing.End, Length: l.Capacity() + 5})
	for i, c := range l.HeaderCells() {
		r[c] = bits[i]
	}
	f, err := NewFrameDecoder(l).Decode(r)
	assert.ErrorIs(t, err, ErrLengthExceedsCapacity)
	require.NotNil(t, f)
	assert.False(t, f.Valid)
	assert.Len(t, f.Payload, l.Capacity())
}

func TestIntermediateFrameMustDeclareCapacity(t *testing.T) {
	l := markerLayout(t)
	enc := NewFrameEncoder(l)
	c := framing.Chunk{Header: framing.Header{Type: framing.Normal, Sequence: 4, Length: 3}, Data: []byte{1, 2, 3}}
	img, err := enc.Encode(c)
	require.NoError(t, err)
	f, err := NewFrameDecoder(l).Decode(centerReader{img: img, px: l.ModulePx()})
	require.NoError(t, err)
	assert.True(t, f.CheckOK)
	assert.False(t, f.Valid)
}

func TestEncodeRejectsOversizedChunk(t *testing.T) {
	l := markerLayout(t)
	_, err := NewFrameEncoder(l).Encode(framing.Chunk{Data: make([]byte, l.Capacity()+1)})
	assert.ErrorIs(t, err, ErrChunkTooLarge)
}

func TestHeaderBitsRoundTrip(t *testing.T) {
	h := framing.Header{Type: framing.Start, Sequence: 0xBEEF, Length: 0x123456, Check: 0b10110}
	bits := markerHeaderBits(h)
	require.Len(t, bits, layout.MarkerHeaderBits)
	assert.Equal(t, h, parseMarkerHeader(bits))

	h.Check = 0
	assert.Equal(t, h, parseFinderHeader(finderHeaderBytes(h)))
}

func TestEncodedFrameSafeBorderIsLight(t *testing.T) {
	l := markerLayout(t)
	img, err := NewFrameEncoder(l).Encode(framing.Chunk{Header: framing.Header{Type: framing.StartAndEnd, Length: 1}, Data: []byte{0xFF}})
	require.NoError(t, err)
	w, h := l.PixelSize()
	assert.Equal(t, w, img.Width())
	assert.Equal(t, h, img.Height())
	edge := l.Border() * l.ModulePx()
	for x := 0; x < w; x++ {
		for y := 0; y < edge; y++ {
			assert.Equal(t, raster.Light, img.At(x, y, 0))
		}
	}
}
