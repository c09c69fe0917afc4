// Package ingest provides frame sources for the decoder: a directory of still
// images and a ZMQ PULL socket carrying CBOR frame messages.
package ingest

import (
	"context"
	"fmt"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/pebbe/zmq4"
	"github.com/sirupsen/logrus"

	"vlink-go/internal/raster"
	"vlink-go/internal/types"
)

// Message types on the frame socket. An "end" message closes the source.
const (
	MessageFrame = "frame"
	MessageEnd   = "end"
)

// recvTimeout bounds each blocking receive so a cancelled ctx is noticed.
const recvTimeout = 250 * time.Millisecond

// Stream connects a PULL socket to endpoint and yields frames until an end
// message arrives or ctx is done. Messages are CBOR maps:
//
//	{"type": "frame", "index": <int>, "timestamp": <float>, "image": <tag 40 array>}
//	{"type": "end"}
//
// The image is a row-major multi-dimensional array of shape [h, w] or
// [h, w, c]. Frames without an index are numbered in arrival order.
func Stream(ctx context.Context, endpoint string, logEvery int) (<-chan types.Frame, error) {
	if logEvery < 1 {
		logEvery = 1
	}
	socket, err := zmq4.NewSocket(zmq4.PULL)
	if err != nil {
		return nil, err
	}
	if err := socket.SetRcvtimeo(recvTimeout); err != nil {
		_ = socket.Close()
		return nil, err
	}
	if err := socket.Connect(endpoint); err != nil {
		_ = socket.Close()
		return nil, fmt.Errorf("connect %s: %w", endpoint, err)
	}

	limiter := &logLimiter{every: uint64(logEvery)}
	out := make(chan types.Frame, 16)
	go func() {
		defer close(out)
		defer socket.Close()

		next := 0
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			msg, err := socket.RecvBytes(0)
			if err != nil {
				if zmq4.AsErrno(err) == zmq4.Errno(syscall.EAGAIN) {
					continue
				}
				limiter.warn(logrus.Fields{"error": err.Error()}, "Frame receive failed")
				continue
			}

			frame, end, err := decodeMessage(msg, next)
			if end {
				logrus.WithFields(logrus.Fields{
					"function": "Stream",
					"endpoint": endpoint,
					"frames":   next,
				}).Info("End of frame stream")
				return
			}
			if err != nil {
				limiter.warn(logrus.Fields{"error": err.Error()}, "Frame message skipped")
				continue
			}
			next = frame.Index + 1

			select {
			case <-ctx.Done():
				return
			case out <- frame:
			}
		}
	}()
	return out, nil
}

type frameMessage struct {
	Type      string   `cbor:"type"`
	Index     *int     `cbor:"index"`
	Timestamp float64  `cbor:"timestamp"`
	Image     cbor.Tag `cbor:"image"`
}

// decodeMessage parses one socket message. end reports an end-of-stream
// message.
func decodeMessage(msg []byte, next int) (frame types.Frame, end bool, err error) {
	var m frameMessage
	if err := cbor.Unmarshal(msg, &m); err != nil {
		return types.Frame{}, false, fmt.Errorf("cbor: %w", err)
	}
	switch m.Type {
	case MessageEnd:
		return types.Frame{}, true, nil
	case MessageFrame:
	default:
		return types.Frame{}, false, fmt.Errorf("unexpected message type %q", m.Type)
	}
	img, err := decodeImage(m.Image)
	if err != nil {
		return types.Frame{}, false, err
	}
	frame = types.Frame{Index: next, Timestamp: m.Timestamp, Image: img}
	if m.Index != nil {
		frame.Index = *m.Index
	}
	return frame, false, nil
}

// EncodeFrame builds the socket message for one frame. Producers and tests
// use it.
func EncodeFrame(index int, timestamp float64, img *raster.Buffer) ([]byte, error) {
	dims := []int{img.H, img.W}
	if img.C > 1 {
		dims = append(dims, img.C)
	}
	return cbor.Marshal(map[string]any{
		"type":      MessageFrame,
		"index":     index,
		"timestamp": timestamp,
		"image": cbor.Tag{
			Number:  tagMultiDimArray,
			Content: []any{dims, cbor.Tag{Number: tagUint8, Content: img.Pix}},
		},
	})
}

func EncodeEnd() ([]byte, error) {
	return cbor.Marshal(map[string]any{"type": MessageEnd})
}

// logLimiter logs every Nth occurrence so a misbehaving producer cannot
// flood the log.
type logLimiter struct {
	every uint64
	count atomic.Uint64
}

func (l *logLimiter) warn(fields logrus.Fields, msg string) {
	n := l.count.Add(1)
	if (n-1)%l.every != 0 {
		return
	}
	fields["function"] = "Stream"
	fields["occurrences"] = n
	logrus.WithFields(fields).Warn(msg)
}
