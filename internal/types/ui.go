package types

// ProgressSnapshot is what the monitor broadcasts while a decode runs.
type ProgressSnapshot struct {
	Type           string         `json:"type"`
	RunID          string         `json:"run_id"`
	FramesSeen     uint64         `json:"frames_seen"`
	FramesDecoded  uint64         `json:"frames_decoded"`
	FramesSkipped  uint64         `json:"frames_skipped"`
	Sequences      int            `json:"sequences"`
	ExpectedFrames int            `json:"expected_frames"`
	Metrics        map[string]any `json:"metrics,omitempty"`
}
