package processing

import (
	"errors"

	"github.com/sirupsen/logrus"

	"vlink-go/internal/codec"
	"vlink-go/internal/layout"
	"vlink-go/internal/locator"
	"vlink-go/internal/rectify"
	"vlink-go/internal/sampler"
	"vlink-go/internal/types"
	"vlink-go/internal/vision"
)

const (
	SkipNoMarkers = "no_markers"
	SkipRectify   = "rectify_failed"
	SkipNoImage   = "no_image"
)

// Outcome is what one captured frame produced. Frame is nil when the frame
// was skipped; Skip then names why.
type Outcome struct {
	Index     int
	Timestamp float64
	Frame     *codec.DecodedFrame
	Threshold float64
	Skip      string
	Err       error
}

func (o Outcome) Record(runID string) types.FrameRecord {
	r := types.FrameRecord{
		RunID:      runID,
		Index:      o.Index,
		Timestamp:  o.Timestamp,
		Threshold:  o.Threshold,
		SkipReason: o.Skip,
	}
	if f := o.Frame; f != nil {
		r.Decoded = true
		r.Sequence = f.Header.Sequence
		r.Type = f.Header.Type.String()
		r.Length = f.Header.Length
		r.CheckOK = f.CheckOK
		r.Valid = f.Valid
		r.MeanConfidence = f.MeanConfidence()
	}
	return r
}

// FrameProcessor runs marker search, rectification, sampling and decoding
// for one frame. It holds no per-frame state and is safe for concurrent use.
type FrameProcessor struct {
	layout    *layout.FrameLayout
	locator   *locator.MarkerLocator
	rectifier *rectify.GeometricRectifier
	sampler   *sampler.ModuleSampler
	decoder   *codec.FrameDecoder
}

func NewFrameProcessor(l *layout.FrameLayout, backend vision.Backend) *FrameProcessor {
	return &FrameProcessor{
		layout:    l,
		locator:   locator.New(backend, locator.DefaultOptions()),
		rectifier: rectify.New(backend, l),
		sampler:   sampler.New(l),
		decoder:   codec.NewFrameDecoder(l),
	}
}

func (p *FrameProcessor) Layout() *layout.FrameLayout { return p.layout }

func (p *FrameProcessor) Process(frame types.Frame) Outcome {
	out := Outcome{Index: frame.Index, Timestamp: frame.Timestamp}
	if frame.Image == nil {
		out.Skip = SkipNoImage
		return out
	}

	want := len(p.layout.Anchors())
	markers, err := p.locator.Locate(frame.Image, want)
	if err != nil {
		out.Skip, out.Err = SkipNoMarkers, err
		logrus.WithFields(logrus.Fields{
			"function": "Process",
			"frame":    frame.Index,
			"found":    len(markers),
		}).Debug("Markers not found, skipping frame")
		return out
	}

	rect, err := p.rectifier.Rectify(frame.Image, markers)
	if err != nil {
		out.Skip, out.Err = SkipRectify, err
		logrus.WithFields(logrus.Fields{
			"function": "Process",
			"frame":    frame.Index,
			"error":    err.Error(),
		}).Debug("Rectification failed, skipping frame")
		return out
	}

	modules := p.sampler.Sample(rect.Image)
	out.Threshold = modules.Threshold
	decoded, err := p.decoder.Decode(modules)
	if err != nil && !errors.Is(err, codec.ErrLengthExceedsCapacity) {
		out.Err = err
		return out
	}
	out.Err = err
	decoded.Index = frame.Index
	out.Frame = decoded
	if !decoded.Valid {
		logrus.WithFields(logrus.Fields{
			"function": "Process",
			"frame":    frame.Index,
			"sequence": decoded.Header.Sequence,
			"check_ok": decoded.CheckOK,
		}).Warn("Frame failed integrity check")
	}
	return out
}
