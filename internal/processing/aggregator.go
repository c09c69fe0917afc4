package processing

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"vlink-go/internal/codec"
	"vlink-go/internal/config"
	"vlink-go/internal/framing"
	"vlink-go/internal/layout"
)

const seqModulus = 1 << 16

// Gap is a run of one missing frame in the assembled stream.
type Gap struct {
	Sequence uint16 `json:"sequence"`
	Index    int    `json:"index"`
	Offset   int64  `json:"offset"`
	Length   int    `json:"length"`
}

// Stream is the assembled output: bytes in sequence order, one validity flag
// per byte, and every gap the assembler had to account for.
type Stream struct {
	Data     []byte
	Valid    []bool
	Gaps     []Gap
	Check    codec.StreamCheck
	Frames   int
	EndFound bool
}

// Bitmap packs Valid one bit per byte, MSB first, padded to a whole byte.
func (s *Stream) Bitmap() []byte {
	return PackBits(s.Valid)
}

func (s *Stream) ValidBytes() int {
	n := 0
	for _, v := range s.Valid {
		if v {
			n++
		}
	}
	return n
}

func PackBits(bits []bool) []byte {
	out := make([]byte, (len(bits)+7)/8)
	for i, b := range bits {
		if b {
			out[i/8] |= 0x80 >> (i % 8)
		}
	}
	return out
}

type AssemblerOptions struct {
	GapPolicy     string
	MinConfidence float64
}

// StreamAssembler keeps one decoded frame per absolute sequence index. Frames
// must be added in capture order so the 16-bit sequence can be unwrapped.
type StreamAssembler struct {
	layout *layout.FrameLayout
	opts   AssemblerOptions

	frames     map[int]*codec.DecodedFrame
	last       int
	haveLast   bool
	duplicates int
	discarded  int
}

func NewStreamAssembler(l *layout.FrameLayout, opts AssemblerOptions) *StreamAssembler {
	if opts.GapPolicy == "" {
		opts.GapPolicy = config.GapPolicyFill
	}
	return &StreamAssembler{
		layout: l,
		opts:   opts,
		frames: make(map[int]*codec.DecodedFrame),
	}
}

// unwrap picks the absolute index congruent to seq that is nearest the last
// valid index seen.
func (a *StreamAssembler) unwrap(seq uint16) int {
	if !a.haveLast {
		return int(seq)
	}
	delta := int(int16(seq - uint16(a.last)))
	return a.last + delta
}

// AddFrame folds one decoded frame in. A valid frame replaces an invalid one
// at the same index; otherwise the higher mean confidence wins.
func (a *StreamAssembler) AddFrame(f *codec.DecodedFrame) {
	if f == nil {
		return
	}
	idx := a.unwrap(f.Header.Sequence)
	if idx < 0 {
		a.discarded++
		return
	}
	if f.Valid {
		a.last, a.haveLast = idx, true
	}

	prev, ok := a.frames[idx]
	if !ok {
		a.frames[idx] = f
		return
	}
	a.duplicates++
	if better(f, prev) {
		a.frames[idx] = f
	}
}

func better(f, prev *codec.DecodedFrame) bool {
	if f.Valid != prev.Valid {
		return f.Valid
	}
	return f.MeanConfidence() > prev.MeanConfidence()
}

func (a *StreamAssembler) Duplicates() int { return a.duplicates }
func (a *StreamAssembler) Discarded() int  { return a.discarded }
func (a *StreamAssembler) Sequences() int  { return len(a.frames) }

// Expected is the number of frames the stream spans so far, gaps included.
func (a *StreamAssembler) Expected() int {
	first, last, _ := a.extent()
	if last < first {
		return 0
	}
	return last - first + 1
}

// extent is the index range to emit: from 0 to the valid End frame when one
// was seen, else to the highest valid index, else to the highest index.
func (a *StreamAssembler) extent() (first, last int, endFound bool) {
	last = -1
	lastValid := -1
	end := -1
	for idx, f := range a.frames {
		if idx > last {
			last = idx
		}
		if f.Valid && idx > lastValid {
			lastValid = idx
		}
		if f.Valid && f.Header.Type.IsEnd() && (end < 0 || idx < end) {
			end = idx
		}
	}
	switch {
	case end >= 0:
		return 0, end, true
	case lastValid >= 0:
		return 0, lastValid, false
	default:
		return 0, last, false
	}
}

// Finish concatenates the frames in sequence order. Every frame before the
// last occupies exactly one capacity of output: short payloads are padded
// with invalid filler and long ones clamped. Missing frames follow the gap
// policy and are always logged; for FinderGrid streams the CRC-32
// trailer is checked and stripped.
func (a *StreamAssembler) Finish() *Stream {
	first, last, endFound := a.extent()
	capacity := a.layout.Capacity()
	s := &Stream{EndFound: endFound}

	for idx := first; idx <= last; idx++ {
		f, ok := a.frames[idx]
		if !ok {
			gap := Gap{Sequence: uint16(idx % seqModulus), Index: idx, Offset: int64(len(s.Data)), Length: capacity}
			s.Gaps = append(s.Gaps, gap)
			logrus.WithFields(logrus.Fields{
				"function": "Finish",
				"sequence": gap.Sequence,
				"offset":   gap.Offset,
				"policy":   a.opts.GapPolicy,
			}).Warn("Missing frame in stream")
			if a.opts.GapPolicy == config.GapPolicyFill {
				s.Data = append(s.Data, make([]byte, capacity)...)
				s.Valid = append(s.Valid, make([]bool, capacity)...)
			}
			continue
		}
		s.Frames++
		payload := f.Payload
		if idx < last && len(payload) != capacity {
			// only the last frame may be short; anything else has a corrupt
			// length and must keep later frames at their offsets
			logrus.WithFields(logrus.Fields{
				"function": "Finish",
				"sequence": f.Header.Sequence,
				"length":   len(payload),
				"capacity": capacity,
			}).Warn("Non-final frame is not full, resizing to capacity")
			payload = payload[:min(len(payload), capacity)]
		}
		s.Data = append(s.Data, payload...)
		for i := range payload {
			ok := f.Valid && f.ByteOK[i] && f.ByteConfidence[i] >= a.opts.MinConfidence
			s.Valid = append(s.Valid, ok)
		}
		if idx < last {
			for i := len(payload); i < capacity; i++ {
				s.Data = append(s.Data, framing.Filler)
				s.Valid = append(s.Valid, false)
			}
		}
	}
	if a.discarded > 0 {
		logrus.WithFields(logrus.Fields{
			"function":  "Finish",
			"discarded": a.discarded,
		}).Warn("Frames with unplaceable sequence numbers were discarded")
	}

	if a.layout.Kind() == layout.FinderGrid {
		data, check := codec.FinishStream(a.layout, s.Data)
		s.Check = check
		s.Data = data
		s.Valid = s.Valid[:len(data)]
		if !check.OK {
			logrus.WithFields(logrus.Fields{
				"function": "Finish",
				"stored":   fmt.Sprintf("%08x", check.Stored),
				"computed": fmt.Sprintf("%08x", check.Computed),
			}).Warn("Stream CRC-32 mismatch, keeping bytes for inspection")
		}
	}
	return s
}

// Indexes lists the absolute indexes held, ascending.
func (a *StreamAssembler) Indexes() []int {
	out := make([]int, 0, len(a.frames))
	for idx := range a.frames {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}
