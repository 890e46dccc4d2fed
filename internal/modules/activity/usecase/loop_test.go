package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPostFromLoopTaskDoesNotBlock(t *testing.T) {
	t.Parallel()
	loop := NewLoop(1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	var got []int
	posted := 0
	require.NoError(t, loop.Call(ctx, func() {
		for n := range 5 {
			if loop.Post(func() { got = append(got, n) }) {
				posted++
			}
		}
	}))
	require.Equal(t, 5, posted)

	done := make(chan struct{})
	require.True(t, loop.Post(func() { close(done) }))
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("backlogged tasks did not run")
	}
	require.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestPostAfterStop(t *testing.T) {
	t.Parallel()
	loop := NewLoop(1)
	loop.Stop()
	require.False(t, loop.Post(func() {}))
	require.Error(t, loop.Call(context.Background(), func() {}))
}
