// Package framing splits a payload into per-frame chunks and names the frame
// types that bracket a stream.
package framing

import "fmt"

type FrameType uint8

const (
	Normal FrameType = iota
	Start
	End
	StartAndEnd
)

func TypeFromFlags(isStart, isEnd bool) FrameType {
	switch {
	case isStart && isEnd:
		return StartAndEnd
	case isStart:
		return Start
	case isEnd:
		return End
	default:
		return Normal
	}
}

func (t FrameType) IsStart() bool { return t == Start || t == StartAndEnd }
func (t FrameType) IsEnd() bool   { return t == End || t == StartAndEnd }

func (t FrameType) String() string {
	switch t {
	case Normal:
		return "normal"
	case Start:
		return "start"
	case End:
		return "end"
	case StartAndEnd:
		return "start+end"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// Header is the per-frame metadata. Length is the number of meaningful payload
// bytes; every frame but the last declares the full capacity.
type Header struct {
	Type     FrameType
	Sequence uint16
	Length   int
	Check    uint8
}

// Chunk is the slice of payload one frame carries.
type Chunk struct {
	Header Header
	Data   []byte
}

// Filler pads a final undersized chunk; it renders as light modules.
const Filler byte = 0x00

// Padded returns the chunk data extended with Filler up to capacity.
func (c Chunk) Padded(capacity int) []byte {
	out := make([]byte, capacity)
	copy(out, c.Data)
	for i := len(c.Data); i < capacity; i++ {
		out[i] = Filler
	}
	return out
}

// Split cuts payload into capacity-sized chunks. A payload that fits in one
// chunk (including an empty one) yields a single StartAndEnd chunk; otherwise
// the first is Start, the last End and the rest Normal. Sequence numbers start
// at 0 and wrap at 65536.
func Split(payload []byte, capacity int) ([]Chunk, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("framing: capacity must be positive, got %d", capacity)
	}
	count := (len(payload) + capacity - 1) / capacity
	if count == 0 {
		count = 1
	}
	chunks := make([]Chunk, 0, count)
	for i := 0; i < count; i++ {
		lo := i * capacity
		hi := lo + capacity
		if hi > len(payload) {
			hi = len(payload)
		}
		chunks = append(chunks, Chunk{
			Header: Header{
				Type:     TypeFromFlags(i == 0, i == count-1),
				Sequence: uint16(i),
				Length:   hi - lo,
			},
			Data: payload[lo:hi],
		})
	}
	return chunks, nil
}

// Count is the number of frames Split would produce.
func Count(payloadLen, capacity int) int {
	if capacity <= 0 {
		return 0
	}
	n := (payloadLen + capacity - 1) / capacity
	if n == 0 {
		return 1
	}
	return n
}
