package ingest

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"vlink-go/internal/raster"
)

// RFC 8746 tags.
const (
	tagMultiDimArray = 40
	tagUint8         = 64
	tagUint16LE      = 69
)

var ErrBadArray = errors.New("malformed image array")

// decodeImage turns a tag 40 array of shape [h, w] or [h, w, c] into a
// buffer. 16-bit samples keep their high byte.
func decodeImage(tag cbor.Tag) (*raster.Buffer, error) {
	if tag.Number != tagMultiDimArray {
		return nil, fmt.Errorf("%w: expected tag %d, got %d", ErrBadArray, tagMultiDimArray, tag.Number)
	}
	items, ok := tag.Content.([]any)
	if !ok || len(items) != 2 {
		return nil, fmt.Errorf("%w: content is not [dims, data]", ErrBadArray)
	}
	dims, err := decodeDims(items[0])
	if err != nil {
		return nil, err
	}
	h, w, c := dims[0], dims[1], 1
	if len(dims) == 3 {
		c = dims[2]
	}
	pix, err := decodeSamples(items[1])
	if err != nil {
		return nil, err
	}
	return raster.FromBytes(w, h, c, pix)
}

func decodeDims(v any) ([]int, error) {
	raw, ok := v.([]any)
	if !ok || len(raw) < 2 || len(raw) > 3 {
		return nil, fmt.Errorf("%w: dimensions must be [h, w] or [h, w, c]", ErrBadArray)
	}
	out := make([]int, len(raw))
	for i, d := range raw {
		n, err := toInt(d)
		if err != nil {
			return nil, err
		}
		if n <= 0 {
			return nil, fmt.Errorf("%w: dimension %d is %d", ErrBadArray, i, n)
		}
		out[i] = n
	}
	return out, nil
}

func decodeSamples(v any) ([]uint8, error) {
	tag, ok := v.(cbor.Tag)
	if !ok {
		return nil, fmt.Errorf("%w: expected typed array tag", ErrBadArray)
	}
	data, ok := tag.Content.([]byte)
	if !ok {
		return nil, fmt.Errorf("%w: typed array content %T", ErrBadArray, tag.Content)
	}
	switch tag.Number {
	case tagUint8:
		return data, nil
	case tagUint16LE:
		out := make([]uint8, len(data)/2)
		for i := range out {
			out[i] = uint8(binary.LittleEndian.Uint16(data[i*2:]) >> 8)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unsupported typed array tag %d", ErrBadArray, tag.Number)
	}
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case uint64:
		return int(n), nil
	case uint32:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("%w: unsupported int type %T", ErrBadArray, v)
	}
}
