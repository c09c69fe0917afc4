package codec

import (
	"errors"
	"fmt"

	"vlink-go/internal/framing"
	"vlink-go/internal/integrity"
	"vlink-go/internal/layout"
)

var ErrLengthExceedsCapacity = errors.New("codec: declared length exceeds frame capacity")

// ModuleReader yields the sampled value of one module: dark is true.
// Confidence is in [0, 1].
type ModuleReader interface {
	Module(c layout.Cell) (dark bool, confidence float64)
}

// DecodedFrame is what one captured image yields. Frames that fail their
// integrity check are returned with Valid false rather than dropped.
type DecodedFrame struct {
	Index  int
	Header framing.Header

	Payload        []byte
	BitConfidence  []float64
	ByteConfidence []float64
	// ByteOK is the per-byte parity verdict; always true for Plain8 framing.
	ByteOK []bool

	HeaderConfidence float64
	CheckOK          bool
	Valid            bool
}

// MeanConfidence averages the payload byte confidences, or the header's when
// the frame carries no payload.
func (f *DecodedFrame) MeanConfidence() float64 {
	if len(f.ByteConfidence) == 0 {
		return f.HeaderConfidence
	}
	sum := 0.0
	for _, c := range f.ByteConfidence {
		sum += c
	}
	return sum / float64(len(f.ByteConfidence))
}

type FrameDecoder struct {
	layout *layout.FrameLayout
	header []layout.Cell
	data   []layout.Cell
}

func NewFrameDecoder(l *layout.FrameLayout) *FrameDecoder {
	return &FrameDecoder{layout: l, header: l.HeaderCells(), data: l.PayloadCells()}
}

// Decode reads the header strip, then payload bytes up to the declared
// length, then checks integrity. A declared length above capacity still
// returns the clamped frame, flagged invalid, alongside
// ErrLengthExceedsCapacity.
func (d *FrameDecoder) Decode(m ModuleReader) (*DecodedFrame, error) {
	l := d.layout
	f := &DecodedFrame{}
	headerOK := true

	switch l.Kind() {
	case layout.MarkerGrid:
		bits, conf := readCells(m, d.header)
		f.Header = parseMarkerHeader(bits)
		f.HeaderConfidence = minOf(conf)
	default:
		raw := make([]byte, 0, layout.FinderHeaderBytes)
		f.HeaderConfidence = 1
		for i := 0; i < layout.FinderHeaderBytes; i++ {
			b, conf, ok := d.readByte(m, d.header, i)
			raw = append(raw, b)
			headerOK = headerOK && ok
			if conf < f.HeaderConfidence {
				f.HeaderConfidence = conf
			}
		}
		f.Header = parseFinderHeader(raw)
	}

	var err error
	n := f.Header.Length
	if n > l.Capacity() {
		err = fmt.Errorf("%w: frame %d declares %d bytes, capacity %d", ErrLengthExceedsCapacity, f.Header.Sequence, n, l.Capacity())
		n = l.Capacity()
		headerOK = false
	}
	if !f.Header.Type.IsEnd() && f.Header.Length != l.Capacity() {
		headerOK = false
	}

	bpb := l.Framing().BitsPerByte()
	f.Payload = make([]byte, n)
	f.ByteConfidence = make([]float64, n)
	f.ByteOK = make([]bool, n)
	f.BitConfidence = make([]float64, 0, n*bpb)
	payloadOK := true
	for i := 0; i < n; i++ {
		cells := d.data[i*bpb : (i+1)*bpb]
		bits, conf := readCells(m, cells)
		f.Payload[i] = byte(readUint(bits[:8]))
		f.BitConfidence = append(f.BitConfidence, conf...)
		f.ByteConfidence[i] = minOf(conf)
		f.ByteOK[i] = true
		if l.Framing() == layout.Parity9 {
			f.ByteOK[i] = integrity.OddParity(f.Payload[i]) == bits[8]
		}
		payloadOK = payloadOK && f.ByteOK[i]
	}

	switch l.Kind() {
	case layout.MarkerGrid:
		h := f.Header
		f.CheckOK = integrity.CheckCode(f.Payload, h.Length, h.Sequence, h.Type.IsStart(), h.Type.IsEnd()) == h.Check
	default:
		f.CheckOK = payloadOK
	}
	f.Valid = headerOK && f.CheckOK
	return f, err
}

func (d *FrameDecoder) readByte(m ModuleReader, cells []layout.Cell, i int) (byte, float64, bool) {
	bpb := d.layout.Framing().BitsPerByte()
	bits, conf := readCells(m, cells[i*bpb:(i+1)*bpb])
	b := byte(readUint(bits[:8]))
	ok := true
	if bpb == 9 {
		ok = integrity.OddParity(b) == bits[8]
	}
	return b, minOf(conf), ok
}

func readCells(m ModuleReader, cells []layout.Cell) ([]bool, []float64) {
	bits := make([]bool, len(cells))
	conf := make([]float64, len(cells))
	for i, c := range cells {
		bits[i], conf[i] = m.Module(c)
	}
	return bits, conf
}

func minOf(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	m := v[0]
	for _, x := range v[1:] {
		if x < m {
			m = x
		}
	}
	return m
}
