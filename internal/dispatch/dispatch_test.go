package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGo_InlineDeliversResult(t *testing.T) {
	t.Parallel()

	got := make(chan int, 1)
	Go(context.Background(), nil,
		func(context.Context) (int, error) { return 42, nil },
		func(v int, err error) {
			require.NoError(t, err)
			got <- v
		})

	select {
	case v := <-got:
		require.Equal(t, 42, v)
	case <-time.After(time.Second):
		t.Fatal("completion not delivered")
	}
}

func TestGo_DeliversOnLoopGoroutine(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	loop := NewLoop()
	var (
		mu    sync.Mutex
		order []int
	)
	boom := errors.New("boom")

	var wg sync.WaitGroup
	wg.Add(2)
	Go(ctx, loop, func(context.Context) (int, error) { return 1, nil }, func(v int, err error) {
		defer wg.Done()
		mu.Lock()
		order = append(order, v)
		mu.Unlock()
	})
	Go(ctx, loop, func(context.Context) (int, error) { return 0, boom }, func(_ int, err error) {
		defer wg.Done()
		require.ErrorIs(t, err, boom)
		mu.Lock()
		order = append(order, -1)
		mu.Unlock()
	})

	go func() {
		wg.Wait()
		loop.Stop()
	}()
	loop.Run(ctx)

	require.ElementsMatch(t, []int{1, -1}, order)
}

func TestLoop_RunsInSubmissionOrder(t *testing.T) {
	t.Parallel()

	loop := NewLoop()
	var order []int
	for i := range 5 {
		loop.Submit(func() { order = append(order, i) })
	}
	loop.Stop()
	loop.Run(context.Background())

	require.Equal(t, []int{0, 1, 2, 3, 4}, order)

	loop.Submit(func() { order = append(order, 99) })
	loop.Run(context.Background())
	require.Len(t, order, 5, "submissions after stop are dropped")
}

func TestLoop_StopsOnContextDone(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	loop := NewLoop()
	done := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
}

func TestGo_StoppedLoopDeliversInline(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	loop := NewLoop()
	ran := make(chan struct{})
	go func() { loop.Run(ctx); close(ran) }()

	release := make(chan struct{})
	got := make(chan error, 1)
	Go(ctx, loop, func(context.Context) (int, error) {
		<-release
		return 0, errors.New("late")
	}, func(_ int, err error) { got <- err })

	cancel()
	<-ran
	close(release)

	select {
	case err := <-got:
		require.EqualError(t, err, "late")
	case <-time.After(2 * time.Second):
		t.Fatal("completion was not delivered after the loop stopped")
	}
	require.False(t, loop.TrySubmit(func() {}))
}
