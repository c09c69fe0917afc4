// Package integrity implements the frame and stream check codes: a 16-bit
// XOR checksum folded into a (21,16) Hamming parity code, per-byte parity and
// CRC-32. The Hamming code is used for detection only.
package integrity

import (
	"encoding/binary"
	"hash/crc32"
	"math/bits"
)

// Checksum16 folds the payload into big-endian 16-bit words and XORs them
// together with the length, the sequence number and the start/end flags. An
// odd trailing byte is the high byte of a final virtual word.
func Checksum16(payload []byte, length int, seq uint16, isStart, isEnd bool) uint16 {
	var sum uint16
	n := len(payload)
	for i := 0; i+1 < n; i += 2 {
		sum ^= uint16(payload[i])<<8 | uint16(payload[i+1])
	}
	if n%2 == 1 {
		sum ^= uint16(payload[n-1]) << 8
	}
	sum ^= uint16(length)
	sum ^= seq
	var flags uint16
	if isStart {
		flags |= 0b10
	}
	if isEnd {
		flags |= 0b01
	}
	return sum ^ flags
}

const (
	hammingWordBits = 21
	ParityBits      = 5
)

// dataPositions lists the 1-indexed, non power of two positions of a 21-bit
// word, in the order the 16 data bits (MSB first) are placed.
var dataPositions = func() [16]int {
	var out [16]int
	k := 0
	for pos := 1; pos <= hammingWordBits; pos++ {
		if pos&(pos-1) == 0 {
			continue
		}
		out[k] = pos
		k++
	}
	return out
}()

// HammingParity returns the five parity bits of the (21,16) code word carrying
// data. Bit i of the result is the parity at position 1<<i.
func HammingParity(data uint16) uint8 {
	var word uint32
	for i, pos := range dataPositions {
		if data&(1<<(15-i)) != 0 {
			word |= 1 << pos
		}
	}
	var code uint8
	for p := 0; p < ParityBits; p++ {
		weight := 1 << p
		parity := 0
		for pos := 1; pos <= hammingWordBits; pos++ {
			if pos&weight != 0 && word&(1<<pos) != 0 {
				parity ^= 1
			}
		}
		code |= uint8(parity) << p
	}
	return code
}

// CheckCode is the 5-bit frame check code for a header and its payload.
func CheckCode(payload []byte, length int, seq uint16, isStart, isEnd bool) uint8 {
	return HammingParity(Checksum16(payload, length, seq, isStart, isEnd))
}

// OddParity reports whether b has an odd number of set bits; that is the
// ninth bit sent after each byte in parity framing.
func OddParity(b byte) bool {
	return bits.OnesCount8(b)%2 == 1
}

// CRC32 is the IEEE CRC-32 (reflected, poly 0xEDB88320).
func CRC32(data []byte) uint32 {
	return crc32.ChecksumIEEE(data)
}

// AppendCRC32 appends the big-endian CRC-32 of data.
func AppendCRC32(data []byte) []byte {
	out := make([]byte, 0, len(data)+4)
	out = append(out, data...)
	return binary.BigEndian.AppendUint32(out, CRC32(data))
}

// SplitCRC32 separates a stream produced by AppendCRC32 and reports whether
// the trailer matches. Streams shorter than the trailer never match.
func SplitCRC32(stream []byte) (data []byte, stored, computed uint32, ok bool) {
	if len(stream) < 4 {
		return stream, 0, CRC32(stream), false
	}
	n := len(stream) - 4
	data = stream[:n]
	stored = binary.BigEndian.Uint32(stream[n:])
	computed = CRC32(data)
	return data, stored, computed, stored == computed
}
