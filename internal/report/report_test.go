package report

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vlink-go/internal/processing"
	"vlink-go/internal/types"
)

func TestBuildRates(t *testing.T) {
	m := &processing.Metrics{}
	m.FramesSeen.Add(10)
	m.FramesDecoded.Add(8)
	m.SkippedNoMarkers.Add(2)
	st := &processing.Stream{
		Data:   make([]byte, 100),
		Valid:  make([]bool, 100),
		Gaps:   []processing.Gap{{Sequence: 3}},
		Frames: 3,
	}
	for i := 0; i < 75; i++ {
		st.Valid[i] = true
	}

	s := Build(Input{Metrics: m, Stream: st, Elapsed: 2 * time.Second, VideoSeconds: 3})
	assert.Equal(t, uint64(10), s.FramesSeen)
	assert.Equal(t, 75, s.ValidBytes)
	assert.Equal(t, 25, s.InvalidBytes)
	assert.Equal(t, 4, s.ExpectedFrames)
	assert.InDelta(t, 0.25, s.ErrorRate, 1e-12)
	assert.InDelta(t, 0.25, s.LossRate, 1e-12)
	assert.InDelta(t, 200.0, s.ThroughputBps, 1e-9)

	s = Build(Input{Stream: st, Elapsed: 4 * time.Second})
	assert.InDelta(t, 150.0, s.ThroughputBps, 1e-9)
}

func TestBuildEmpty(t *testing.T) {
	s := Build(Input{})
	assert.Zero(t, s.ThroughputBps)
	assert.Zero(t, s.ErrorRate)
	assert.Zero(t, s.LossRate)
}

func TestConfidencePlotSave(t *testing.T) {
	p := NewConfidencePlot()
	for i := 0; i < 20; i++ {
		p.Add(types.FrameRecord{Index: i, Decoded: i%5 != 0, Valid: i%7 != 0, MeanConfidence: 0.5 + float64(i)/40})
	}
	valid, invalid, skipped := p.Points()
	assert.Equal(t, 4, skipped)
	assert.Equal(t, 20, valid+invalid+skipped)

	path := filepath.Join(t.TempDir(), "confidence.png")
	require.NoError(t, p.Save(path, "run"))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}
