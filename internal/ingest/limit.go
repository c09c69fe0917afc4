package ingest

import "vlink-go/internal/types"

// Limit forwards at most n frames from in, then calls stop so the upstream
// source winds down, and closes its output. n <= 0 forwards everything.
func Limit(in <-chan types.Frame, n int, stop func()) <-chan types.Frame {
	if n <= 0 {
		return in
	}
	out := make(chan types.Frame)
	go func() {
		defer close(out)
		sent := 0
		for f := range in {
			out <- f
			sent++
			if sent == n {
				stop()
				break
			}
		}
		// let the source observe stop and close
		for range in {
		}
	}()
	return out
}
