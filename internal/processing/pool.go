package processing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"vlink-go/internal/codec"
	"vlink-go/internal/framing"
	"vlink-go/internal/raster"
	"vlink-go/internal/types"
)

// DecodeFrames fans frames out to a bounded set of workers. Outcomes arrive
// in completion order; the channel closes once in is drained or ctx ends.
func DecodeFrames(ctx context.Context, in <-chan types.Frame, workers int, p *FrameProcessor, m *Metrics) <-chan Outcome {
	if workers < 1 {
		workers = 1
	}
	processed := make(chan Outcome, workers*2)

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for {
				var frame types.Frame
				var ok bool
				select {
				case <-ctx.Done():
					return
				case frame, ok = <-in:
				}
				if !ok {
					return
				}
				start := time.Now()
				out := p.Process(frame)
				if m != nil {
					m.observe(out, time.Since(start))
				}
				select {
				case <-ctx.Done():
					return
				case processed <- out:
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(processed)
	}()
	return processed
}

// RenderFrames encodes every chunk on at most workers goroutines. Each
// worker writes only its own slot of the result.
func RenderFrames(ctx context.Context, enc *codec.FrameEncoder, chunks []framing.Chunk, workers int) ([]*raster.Buffer, error) {
	if workers < 1 {
		workers = 1
	}
	frames := make([]*raster.Buffer, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range chunks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			img, err := enc.Encode(chunks[i])
			if err != nil {
				return fmt.Errorf("frame %d: %w", chunks[i].Header.Sequence, err)
			}
			frames[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return frames, nil
}
