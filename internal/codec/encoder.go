// Package codec turns chunks into frame images and sampled modules back into
// decoded frames. It works on whatever FrameLayout it is given; the two
// layout kinds differ only in header layout, byte framing and integrity.
package codec

import (
	"errors"
	"fmt"

	"vlink-go/internal/framing"
	"vlink-go/internal/integrity"
	"vlink-go/internal/layout"
	"vlink-go/internal/raster"
)

var ErrChunkTooLarge = errors.New("codec: chunk exceeds frame capacity")

type FrameEncoder struct {
	layout *layout.FrameLayout
}

func NewFrameEncoder(l *layout.FrameLayout) *FrameEncoder {
	return &FrameEncoder{layout: l}
}

func (e *FrameEncoder) Layout() *layout.FrameLayout { return e.layout }

// Chunks prepares a payload for rendering. FinderGrid streams carry a
// trailing CRC-32 over the whole payload before chunking.
func (e *FrameEncoder) Chunks(payload []byte) ([]framing.Chunk, error) {
	if e.layout.Kind() == layout.FinderGrid {
		payload = integrity.AppendCRC32(payload)
	}
	return framing.Split(payload, e.layout.Capacity())
}

// Header fills in the check code for MarkerGrid chunks.
func (e *FrameEncoder) Header(c framing.Chunk) framing.Header {
	h := c.Header
	if e.layout.Kind() == layout.MarkerGrid {
		h.Check = integrity.CheckCode(c.Data, h.Length, h.Sequence, h.Type.IsStart(), h.Type.IsEnd())
	}
	return h
}

// Encode renders one chunk as a single-channel frame: safe border, markers,
// header strip, then payload bits in field order. Cells past the last payload
// byte are left light, which reads back as filler.
func (e *FrameEncoder) Encode(c framing.Chunk) (*raster.Buffer, error) {
	l := e.layout
	if len(c.Data) > l.Capacity() || c.Header.Length > l.Capacity() {
		return nil, fmt.Errorf("%w: %d bytes, capacity %d", ErrChunkTooLarge, len(c.Data), l.Capacity())
	}
	w, h := l.PixelSize()
	img := raster.NewGray(w, h)
	img.Fill(raster.Light)

	px := l.ModulePx()
	cols, rows := l.Modules()
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			if l.KindAt(x, y) == layout.MarkerModule && l.FixedDark(x, y) {
				img.FillRect(x*px, y*px, (x+1)*px, (y+1)*px, raster.Dark)
			}
		}
	}

	header := e.Header(c)
	var headerBits []bool
	switch l.Kind() {
	case layout.MarkerGrid:
		headerBits = markerHeaderBits(header)
	default:
		for _, b := range finderHeaderBytes(header) {
			headerBits = append(headerBits, byteBits(b, l.Framing())...)
		}
	}
	paint(img, px, l.HeaderCells(), headerBits)

	var payloadBits []bool
	for _, b := range c.Data {
		payloadBits = append(payloadBits, byteBits(b, l.Framing())...)
	}
	paint(img, px, l.PayloadCells(), payloadBits)
	return img, nil
}

// EncodeAll renders every chunk of payload in sequence order.
func (e *FrameEncoder) EncodeAll(payload []byte) ([]*raster.Buffer, error) {
	chunks, err := e.Chunks(payload)
	if err != nil {
		return nil, err
	}
	frames := make([]*raster.Buffer, 0, len(chunks))
	for _, c := range chunks {
		img, err := e.Encode(c)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", c.Header.Sequence, err)
		}
		frames = append(frames, img)
	}
	return frames, nil
}

func paint(img *raster.Buffer, px int, cells []layout.Cell, bits []bool) {
	for i, bit := range bits {
		if i >= len(cells) {
			return
		}
		if bit {
			c := cells[i]
			img.FillRect(c.X*px, c.Y*px, (c.X+1)*px, (c.Y+1)*px, raster.Dark)
		}
	}
}
