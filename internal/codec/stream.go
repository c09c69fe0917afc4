package codec

import (
	"vlink-go/internal/integrity"
	"vlink-go/internal/layout"
)

// StreamCheck is the whole-stream CRC verdict of a FinderGrid stream.
type StreamCheck struct {
	Applied  bool
	Stored   uint32
	Computed uint32
	OK       bool
}

// FinishStream strips the CRC-32 trailer a FinderGrid stream carries and
// reports whether it matched. A mismatch is advisory; the bytes are returned
// either way. MarkerGrid streams pass through unchanged.
func FinishStream(l *layout.FrameLayout, stream []byte) ([]byte, StreamCheck) {
	if l.Kind() != layout.FinderGrid {
		return stream, StreamCheck{}
	}
	// shorter than the trailer: nothing to strip, SplitCRC32 hands the
	// bytes back with ok false
	data, stored, computed, ok := integrity.SplitCRC32(stream)
	return data, StreamCheck{Applied: true, Stored: stored, Computed: computed, OK: ok}
}

// TrailerLen is the number of trailing stream bytes that are not payload.
func TrailerLen(l *layout.FrameLayout) int {
	if l.Kind() == layout.FinderGrid {
		return 4
	}
	return 0
}
