package types

import "vlink-go/internal/raster"

// Frame is one captured image in capture order.
type Frame struct {
	Index     int            `json:"index"`
	Timestamp float64        `json:"timestamp"`
	Image     *raster.Buffer `json:"-"`
}

// FrameRecord is the per-frame outcome kept in the frame log and pushed to
// monitor clients.
type FrameRecord struct {
	RunID          string  `json:"run_id" cbor:"run_id"`
	Index          int     `json:"index" cbor:"index"`
	Timestamp      float64 `json:"timestamp" cbor:"timestamp"`
	Decoded        bool    `json:"decoded" cbor:"decoded"`
	Sequence       uint16  `json:"sequence" cbor:"sequence"`
	Type           string  `json:"type,omitempty" cbor:"type,omitempty"`
	Length         int     `json:"length" cbor:"length"`
	CheckOK        bool    `json:"check_ok" cbor:"check_ok"`
	Valid          bool    `json:"valid" cbor:"valid"`
	MeanConfidence float64 `json:"mean_confidence" cbor:"mean_confidence"`
	Threshold      float64 `json:"threshold,omitempty" cbor:"threshold,omitempty"`
	SkipReason     string  `json:"skip_reason,omitempty" cbor:"skip_reason,omitempty"`
}
