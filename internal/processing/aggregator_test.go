package processing

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vlink-go/internal/codec"
	"vlink-go/internal/config"
	"vlink-go/internal/framing"
	"vlink-go/internal/integrity"
	"vlink-go/internal/layout"
)

func testLayout(t *testing.T) *layout.FrameLayout {
	t.Helper()
	l, err := layout.NewMarkerGrid(32, 6, 2, nil)
	require.NoError(t, err)
	return l
}

func decoded(seq uint16, typ framing.FrameType, payload []byte, valid bool, conf float64) *codec.DecodedFrame {
	f := &codec.DecodedFrame{
		Header:         framing.Header{Type: typ, Sequence: seq, Length: len(payload)},
		Payload:        payload,
		ByteConfidence: make([]float64, len(payload)),
		ByteOK:         make([]bool, len(payload)),
		CheckOK:        valid,
		Valid:          valid,
	}
	for i := range payload {
		f.ByteConfidence[i] = conf
		f.ByteOK[i] = true
	}
	return f
}

func fill(n int, b byte) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}

func TestAssemblerOrdersBySequence(t *testing.T) {
	l := testLayout(t)
	c := l.Capacity()
	a := NewStreamAssembler(l, AssemblerOptions{MinConfidence: 0.3})
	a.AddFrame(decoded(0, framing.Start, fill(c, 1), true, 1))
	a.AddFrame(decoded(2, framing.End, fill(5, 3), true, 1))
	a.AddFrame(decoded(1, framing.Normal, fill(c, 2), true, 1))

	s := a.Finish()
	want := append(append(fill(c, 1), fill(c, 2)...), fill(5, 3)...)
	assert.Empty(t, cmp.Diff(want, s.Data))
	assert.Equal(t, 2*c+5, s.ValidBytes())
	assert.True(t, s.EndFound)
	assert.Equal(t, 3, s.Frames)
	assert.Empty(t, s.Gaps)
	assert.Equal(t, []int{0, 1, 2}, a.Indexes())
}

func TestAssemblerGapPolicies(t *testing.T) {
	l := testLayout(t)
	c := l.Capacity()
	build := func(policy string) *Stream {
		a := NewStreamAssembler(l, AssemblerOptions{GapPolicy: policy, MinConfidence: 0.3})
		a.AddFrame(decoded(0, framing.Start, fill(c, 1), true, 1))
		a.AddFrame(decoded(2, framing.Normal, fill(c, 3), true, 1))
		a.AddFrame(decoded(3, framing.End, fill(7, 4), true, 1))
		assert.Equal(t, 4, a.Expected())
		return a.Finish()
	}

	filled := build(config.GapPolicyFill)
	require.Len(t, filled.Gaps, 1)
	assert.Equal(t, Gap{Sequence: 1, Index: 1, Offset: int64(c), Length: c}, filled.Gaps[0])
	assert.Len(t, filled.Data, 3*c+7)
	assert.Len(t, filled.Valid, 3*c+7)
	for i := 0; i < len(filled.Valid); i++ {
		assert.Equal(t, i < c || i >= 2*c, filled.Valid[i], "byte %d", i)
	}
	assert.Equal(t, fill(c, 0), filled.Data[c:2*c])

	reported := build(config.GapPolicyReport)
	require.Len(t, reported.Gaps, 1)
	assert.Equal(t, int64(c), reported.Gaps[0].Offset)
	assert.Len(t, reported.Data, 2*c+7)
	assert.Equal(t, fill(c, 3), reported.Data[c:2*c])
}

func TestAssemblerDuplicates(t *testing.T) {
	l := testLayout(t)
	a := NewStreamAssembler(l, AssemblerOptions{})
	a.AddFrame(decoded(0, framing.StartAndEnd, []byte{9, 9}, false, 1))
	a.AddFrame(decoded(0, framing.StartAndEnd, []byte{1, 2}, true, 0.4))
	a.AddFrame(decoded(0, framing.StartAndEnd, []byte{5, 5}, false, 1))
	a.AddFrame(decoded(0, framing.StartAndEnd, []byte{1, 3}, true, 0.9))
	a.AddFrame(decoded(0, framing.StartAndEnd, []byte{4, 4}, true, 0.5))

	s := a.Finish()
	assert.Equal(t, []byte{1, 3}, s.Data)
	assert.Equal(t, 4, a.Duplicates())
	assert.Equal(t, 1, a.Sequences())
}

func TestAssemblerUnwrapsSequence(t *testing.T) {
	level := logrus.GetLevel()
	logrus.SetLevel(logrus.ErrorLevel)
	defer logrus.SetLevel(level)

	l := testLayout(t)
	a := NewStreamAssembler(l, AssemblerOptions{GapPolicy: config.GapPolicyReport})
	for seq := 65533; seq < 65536; seq++ {
		a.AddFrame(decoded(uint16(seq), framing.Normal, fill(l.Capacity(), 1), true, 1))
	}
	a.AddFrame(decoded(0, framing.Normal, fill(l.Capacity(), 2), true, 1))
	a.AddFrame(decoded(1, framing.End, []byte{3}, true, 1))

	idx := a.Indexes()
	assert.Equal(t, []int{65533, 65534, 65535, 65536, 65537}, idx)
	s := a.Finish()
	// frames 0..65532 never arrived
	assert.Len(t, s.Gaps, 65533)
	assert.Equal(t, 4*l.Capacity()+1, len(s.Data))
}

func TestAssemblerLowConfidenceBytesInvalid(t *testing.T) {
	l := testLayout(t)
	a := NewStreamAssembler(l, AssemblerOptions{MinConfidence: 0.5})
	f := decoded(0, framing.StartAndEnd, []byte{1, 2, 3}, true, 1)
	f.ByteConfidence[1] = 0.2
	a.AddFrame(f)
	s := a.Finish()
	assert.Equal(t, []bool{true, false, true}, s.Valid)
	assert.Equal(t, []byte{0b10100000}, s.Bitmap())
}

func TestAssemblerIgnoresInvalidFramesPastEnd(t *testing.T) {
	l := testLayout(t)
	a := NewStreamAssembler(l, AssemblerOptions{})
	a.AddFrame(decoded(0, framing.StartAndEnd, []byte{1}, true, 1))
	a.AddFrame(decoded(900, framing.Normal, fill(l.Capacity(), 7), false, 1))
	s := a.Finish()
	assert.Equal(t, []byte{1}, s.Data)
	assert.Empty(t, s.Gaps)
}

func TestAssemblerFinderStripsCRC(t *testing.T) {
	l, err := layout.FinderGridForCapacity(32, 6, 2, true)
	require.NoError(t, err)
	stream := integrity.AppendCRC32([]byte("payload"))
	a := NewStreamAssembler(l, AssemblerOptions{})
	a.AddFrame(decoded(0, framing.StartAndEnd, stream, true, 1))
	s := a.Finish()
	assert.Equal(t, []byte("payload"), s.Data)
	assert.Len(t, s.Valid, 7)
	assert.True(t, s.Check.OK)

	stream[2] ^= 0xFF
	a = NewStreamAssembler(l, AssemblerOptions{})
	a.AddFrame(decoded(0, framing.StartAndEnd, stream, true, 1))
	s = a.Finish()
	assert.False(t, s.Check.OK)
	assert.Len(t, s.Data, 7)
}

func TestAssemblerKeepsOffsetsPastCorruptLength(t *testing.T) {
	level := logrus.GetLevel()
	logrus.SetLevel(logrus.ErrorLevel)
	defer logrus.SetLevel(level)

	l := testLayout(t)
	c := l.Capacity()
	a := NewStreamAssembler(l, AssemblerOptions{MinConfidence: 0.3})
	a.AddFrame(decoded(0, framing.Start, fill(c, 1), true, 1))
	a.AddFrame(decoded(1, framing.Normal, fill(10, 2), false, 1))
	a.AddFrame(decoded(2, framing.Normal, fill(c+4, 3), false, 1))
	a.AddFrame(decoded(3, framing.End, fill(5, 4), true, 1))

	s := a.Finish()
	require.Len(t, s.Data, 3*c+5)
	require.Len(t, s.Valid, 3*c+5)
	assert.Equal(t, fill(10, 2), s.Data[c:c+10])
	assert.Equal(t, fill(c-10, framing.Filler), s.Data[c+10:2*c])
	assert.Equal(t, fill(c, 3), s.Data[2*c:3*c])
	assert.Equal(t, fill(5, 4), s.Data[3*c:])
	for i := range s.Valid {
		assert.Equal(t, i < c || i >= 3*c, s.Valid[i], "byte %d", i)
	}
	assert.Empty(t, s.Gaps)
}

func TestPackBits(t *testing.T) {
	assert.Equal(t, []byte{0x81, 0x80}, PackBits([]bool{true, false, false, false, false, false, false, true, true}))
	assert.Empty(t, PackBits(nil))
}
