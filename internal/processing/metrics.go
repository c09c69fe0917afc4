package processing

import (
	"sync/atomic"
	"time"
)

// Metrics counts pipeline events. All fields are safe for concurrent use.
type Metrics struct {
	FramesSeen        atomic.Uint64
	FramesDecoded     atomic.Uint64
	SkippedNoMarkers  atomic.Uint64
	SkippedRectify    atomic.Uint64
	IntegrityFailures atomic.Uint64
	LengthErrors      atomic.Uint64
	ProcessCount      atomic.Uint64
	ProcessNanos      atomic.Uint64
}

func (m *Metrics) observe(o Outcome, took time.Duration) {
	m.FramesSeen.Add(1)
	m.ProcessCount.Add(1)
	m.ProcessNanos.Add(uint64(took.Nanoseconds()))
	switch o.Skip {
	case SkipNoMarkers, SkipNoImage:
		m.SkippedNoMarkers.Add(1)
	case SkipRectify:
		m.SkippedRectify.Add(1)
	}
	if o.Frame == nil {
		return
	}
	m.FramesDecoded.Add(1)
	if !o.Frame.Valid {
		m.IntegrityFailures.Add(1)
	}
	if o.Err != nil {
		m.LengthErrors.Add(1)
	}
}

func (m *Metrics) Skipped() uint64 {
	return m.SkippedNoMarkers.Load() + m.SkippedRectify.Load()
}

func (m *Metrics) Snapshot() map[string]any {
	return map[string]any{
		"frames_seen_total":        m.FramesSeen.Load(),
		"frames_decoded_total":     m.FramesDecoded.Load(),
		"frames_skipped_total":     m.Skipped(),
		"skipped_no_markers_total": m.SkippedNoMarkers.Load(),
		"skipped_rectify_total":    m.SkippedRectify.Load(),
		"integrity_failures_total": m.IntegrityFailures.Load(),
		"length_errors_total":      m.LengthErrors.Load(),
		"process_total":            m.ProcessCount.Load(),
		"process_nanos_total":      m.ProcessNanos.Load(),
	}
}
