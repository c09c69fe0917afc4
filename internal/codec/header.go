package codec

import (
	"vlink-go/internal/framing"
	"vlink-go/internal/integrity"
	"vlink-go/internal/layout"
)

const (
	flagStart byte = 1 << 7
	flagEnd   byte = 1 << 6
)

// markerHeaderBits lays out isStart, isEnd, length, sequence and check code,
// each field MSB first.
func markerHeaderBits(h framing.Header) []bool {
	bits := make([]bool, 0, layout.MarkerHeaderBits)
	bits = append(bits, h.Type.IsStart(), h.Type.IsEnd())
	bits = appendUint(bits, uint32(h.Length), layout.LengthBits)
	bits = appendUint(bits, uint32(h.Sequence), 16)
	bits = appendUint(bits, uint32(h.Check), integrity.ParityBits)
	return bits
}

func parseMarkerHeader(bits []bool) framing.Header {
	var h framing.Header
	h.Type = framing.TypeFromFlags(bits[0], bits[1])
	pos := 2
	h.Length = int(readUint(bits[pos : pos+layout.LengthBits]))
	pos += layout.LengthBits
	h.Sequence = uint16(readUint(bits[pos : pos+16]))
	pos += 16
	h.Check = uint8(readUint(bits[pos : pos+integrity.ParityBits]))
	return h
}

// finderHeaderBytes is flags, sequence hi/lo and a 24-bit big-endian length.
func finderHeaderBytes(h framing.Header) []byte {
	var flags byte
	if h.Type.IsStart() {
		flags |= flagStart
	}
	if h.Type.IsEnd() {
		flags |= flagEnd
	}
	return []byte{
		flags,
		byte(h.Sequence >> 8), byte(h.Sequence),
		byte(h.Length >> 16), byte(h.Length >> 8), byte(h.Length),
	}
}

func parseFinderHeader(b []byte) framing.Header {
	return framing.Header{
		Type:     framing.TypeFromFlags(b[0]&flagStart != 0, b[0]&flagEnd != 0),
		Sequence: uint16(b[1])<<8 | uint16(b[2]),
		Length:   int(b[3])<<16 | int(b[4])<<8 | int(b[5]),
	}
}

func appendUint(bits []bool, v uint32, n int) []bool {
	for i := n - 1; i >= 0; i-- {
		bits = append(bits, v&(1<<i) != 0)
	}
	return bits
}

func readUint(bits []bool) uint32 {
	var v uint32
	for _, b := range bits {
		v <<= 1
		if b {
			v |= 1
		}
	}
	return v
}

// byteBits frames one byte MSB first, followed by its parity bit for Parity9.
func byteBits(b byte, f layout.Framing) []bool {
	out := make([]bool, 0, f.BitsPerByte())
	for i := 7; i >= 0; i-- {
		out = append(out, b&(1<<i) != 0)
	}
	if f == layout.Parity9 {
		out = append(out, integrity.OddParity(b))
	}
	return out
}
