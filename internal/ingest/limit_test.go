package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"vlink-go/internal/types"
)

func source(ctx context.Context) <-chan types.Frame {
	out := make(chan types.Frame)
	go func() {
		defer close(out)
		for i := 0; ; i++ {
			select {
			case <-ctx.Done():
				return
			case out <- types.Frame{Index: i}:
			}
		}
	}()
	return out
}

func TestLimitStopsSource(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var got []int
	for f := range Limit(source(ctx), 3, cancel) {
		got = append(got, f.Index)
	}
	assert.Equal(t, []int{0, 1, 2}, got)
	assert.Error(t, ctx.Err())
}

func TestLimitDisabled(t *testing.T) {
	in := make(chan types.Frame)
	assert.Equal(t, (<-chan types.Frame)(in), Limit(in, 0, func() {}))
}
