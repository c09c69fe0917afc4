package processing

import (
	"context"
	"sort"

	"vlink-go/internal/types"
)

// Pipeline decodes a frame source and assembles the stream.
type Pipeline struct {
	Processor *FrameProcessor
	Assembler *StreamAssembler
	Metrics   *Metrics
	Workers   int
	// OnOutcome, when set, sees every outcome in capture order.
	OnOutcome func(Outcome)
}

// Run consumes frames until the channel closes. Outcomes are put back into
// capture order before they reach the assembler, since sequence unwrapping
// depends on it. A cancelled ctx returns its error and no stream.
func (p *Pipeline) Run(ctx context.Context, frames <-chan types.Frame) (*Stream, error) {
	if p.Metrics == nil {
		p.Metrics = &Metrics{}
	}
	results := DecodeFrames(ctx, frames, p.Workers, p.Processor, p.Metrics)

	// Indexes normally count up from 0. A source that starts elsewhere or
	// skips indexes stalls the buffer; once it holds more than window
	// outcomes, delivery resumes from the lowest one held.
	window := 4 * max(p.Workers, 1)
	pending := make(map[int]Outcome)
	next := 0
	for o := range results {
		if o.Index < next {
			p.deliver(o)
			continue
		}
		pending[o.Index] = o
		if len(pending) > window {
			next = lowestIndex(pending)
		}
		for {
			o, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			p.deliver(o)
			next++
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// sources that skip indexes leave stragglers
	rest := make([]int, 0, len(pending))
	for idx := range pending {
		rest = append(rest, idx)
	}
	sort.Ints(rest)
	for _, idx := range rest {
		p.deliver(pending[idx])
	}
	return p.Assembler.Finish(), nil
}

func lowestIndex(pending map[int]Outcome) int {
	first := true
	lowest := 0
	for idx := range pending {
		if first || idx < lowest {
			lowest, first = idx, false
		}
	}
	return lowest
}

func (p *Pipeline) deliver(o Outcome) {
	if p.OnOutcome != nil {
		p.OnOutcome(o)
	}
	p.Assembler.AddFrame(o.Frame)
}
