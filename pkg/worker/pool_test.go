package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/mmif/metric"
)

func TestNewPool(t *testing.T) {
	noop := func(context.Context, int) error { return nil }

	p, err := NewPool(5, 100, noop)
	require.NoError(t, err)
	assert.Equal(t, 5, p.workers)
	assert.Equal(t, 100, p.queueSize)

	p, err = NewPool(0, -1, noop)
	require.NoError(t, err)
	assert.Equal(t, DefaultWorkers, p.workers)
	assert.Equal(t, DefaultQueueSize, p.queueSize)

	_, err = NewPool[int](1, 1, nil)
	assert.ErrorIs(t, err, ErrNilProcessor)
}

func TestPool_ProcessesEverything(t *testing.T) {
	var sum atomic.Int64
	p, err := NewPool(3, 10, func(_ context.Context, n int) error {
		sum.Add(int64(n))
		if n%2 == 0 {
			return errors.New("even")
		}
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, p.Start(context.Background()))

	for i := 1; i <= 10; i++ {
		require.NoError(t, p.Submit(i))
	}
	require.NoError(t, p.Stop(0))

	assert.Equal(t, int64(55), sum.Load())
	stats := p.Stats()
	assert.Equal(t, int64(10), stats.Submitted)
	assert.Equal(t, int64(10), stats.Processed)
	assert.Equal(t, int64(5), stats.Failed)
	assert.Zero(t, stats.Dropped)
}

func TestPool_Lifecycle(t *testing.T) {
	p, err := NewPool(1, 1, func(context.Context, int) error { return nil })
	require.NoError(t, err)

	assert.ErrorIs(t, p.Submit(1), ErrPoolNotStarted)
	require.NoError(t, p.Start(context.Background()))
	assert.ErrorIs(t, p.Start(context.Background()), ErrPoolAlreadyStarted)
	require.NoError(t, p.Stop(time.Second))
	assert.ErrorIs(t, p.Submit(1), ErrPoolStopped)
	assert.NoError(t, p.Stop(time.Second), "second stop is a no-op")
}

func TestPool_QueueFull(t *testing.T) {
	release := make(chan struct{})
	p, err := NewPool(1, 1, func(context.Context, int) error {
		<-release
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, p.Start(context.Background()))

	require.NoError(t, p.Submit(1))
	assert.Eventually(t, func() bool { return p.Stats().QueueDepth == 0 }, time.Second, time.Millisecond)
	require.NoError(t, p.Submit(2))
	assert.ErrorIs(t, p.Submit(3), ErrQueueFull)

	close(release)
	require.NoError(t, p.Stop(time.Second))
	assert.Equal(t, int64(1), p.Stats().Dropped)
}

func TestPool_StopTimeout(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	p, err := NewPool(1, 1, func(context.Context, int) error {
		<-release
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, p.Start(context.Background()))
	require.NoError(t, p.Submit(1))

	assert.ErrorIs(t, p.Stop(10*time.Millisecond), ErrStopTimeout)
}

func TestPool_Metrics(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	p, err := NewPool(2, 4, func(_ context.Context, n int) error {
		if n == 0 {
			return errors.New("zero")
		}
		return nil
	}, WithMetrics[int](registry, "validate"))
	require.NoError(t, err)
	require.NoError(t, p.Start(context.Background()))
	for _, n := range []int{0, 1, 2} {
		require.NoError(t, p.Submit(n))
	}
	require.NoError(t, p.Stop(0))

	assert.Equal(t, 2.0, testutil.ToFloat64(p.items.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.items.WithLabelValues("error")))

	_, err = NewPool(1, 1, func(context.Context, int) error { return nil }, WithMetrics[int](registry, "validate"))
	assert.Error(t, err, "the same pool name cannot register twice")
}
