// Package report turns a finished decode run into summary numbers and an
// optional per-frame confidence chart.
package report

import (
	"time"

	"github.com/sirupsen/logrus"

	"vlink-go/internal/processing"
)

// Summary is the end-of-run accounting logged by the decoder and served on
// the monitor's /status.
type Summary struct {
	RunID             string  `json:"run_id"`
	FramesSeen        uint64  `json:"frames_seen"`
	FramesDecoded     uint64  `json:"frames_decoded"`
	SkippedNoMarkers  uint64  `json:"skipped_no_markers"`
	SkippedRectify    uint64  `json:"skipped_rectify"`
	IntegrityFailures uint64  `json:"integrity_failures"`
	Duplicates        int     `json:"duplicates"`
	Sequences         int     `json:"sequences"`
	ExpectedFrames    int     `json:"expected_frames"`
	MissingFrames     int     `json:"missing_frames"`
	Bytes             int     `json:"bytes"`
	ValidBytes        int     `json:"valid_bytes"`
	InvalidBytes      int     `json:"invalid_bytes"`
	EndFound          bool    `json:"end_found"`
	CRCApplied        bool    `json:"crc_applied"`
	CRCOK             bool    `json:"crc_ok"`
	ElapsedSeconds    float64 `json:"elapsed_seconds"`
	VideoSeconds      float64 `json:"video_seconds"`
	ThroughputBps     float64 `json:"throughput_bps"`
	ErrorRate         float64 `json:"error_rate"`
	LossRate          float64 `json:"loss_rate"`
}

// Input gathers what Build reads. VideoSeconds is zero when the source has
// no known duration.
type Input struct {
	RunID        string
	Metrics      *processing.Metrics
	Assembler    *processing.StreamAssembler
	Stream       *processing.Stream
	Elapsed      time.Duration
	VideoSeconds float64
}

// Build computes the summary. Throughput is valid payload bits over the video
// duration, or over wall time when the duration is unknown.
func Build(in Input) Summary {
	s := Summary{
		RunID:          in.RunID,
		ElapsedSeconds: in.Elapsed.Seconds(),
		VideoSeconds:   in.VideoSeconds,
	}
	if m := in.Metrics; m != nil {
		s.FramesSeen = m.FramesSeen.Load()
		s.FramesDecoded = m.FramesDecoded.Load()
		s.SkippedNoMarkers = m.SkippedNoMarkers.Load()
		s.SkippedRectify = m.SkippedRectify.Load()
		s.IntegrityFailures = m.IntegrityFailures.Load()
	}
	if a := in.Assembler; a != nil {
		s.Duplicates = a.Duplicates()
		s.Sequences = a.Sequences()
		s.ExpectedFrames = a.Expected()
	}
	if st := in.Stream; st != nil {
		s.Bytes = len(st.Data)
		s.ValidBytes = st.ValidBytes()
		s.InvalidBytes = len(st.Valid) - s.ValidBytes
		s.MissingFrames = len(st.Gaps)
		s.EndFound = st.EndFound
		s.CRCApplied = st.Check.Applied
		s.CRCOK = st.Check.OK
		if s.ExpectedFrames == 0 {
			s.ExpectedFrames = st.Frames + len(st.Gaps)
		}
	}

	duration := s.VideoSeconds
	if duration <= 0 {
		duration = s.ElapsedSeconds
	}
	if duration > 0 {
		s.ThroughputBps = float64(s.ValidBytes*8) / duration
	}
	if total := s.ValidBytes + s.InvalidBytes; total > 0 {
		s.ErrorRate = float64(s.InvalidBytes) / float64(total)
	}
	if s.ExpectedFrames > 0 {
		s.LossRate = float64(s.MissingFrames) / float64(s.ExpectedFrames)
	}
	return s
}

func (s Summary) Log() {
	logrus.WithFields(logrus.Fields{
		"function":        "Summary",
		"run_id":          s.RunID,
		"frames_seen":     s.FramesSeen,
		"frames_decoded":  s.FramesDecoded,
		"frames_skipped":  s.SkippedNoMarkers + s.SkippedRectify,
		"integrity_fails": s.IntegrityFailures,
		"duplicates":      s.Duplicates,
		"missing_frames":  s.MissingFrames,
		"bytes":           s.Bytes,
		"valid_bytes":     s.ValidBytes,
		"throughput_bps":  s.ThroughputBps,
		"error_rate":      s.ErrorRate,
		"loss_rate":       s.LossRate,
		"elapsed_seconds": s.ElapsedSeconds,
	}).Info("Decode finished")
}
