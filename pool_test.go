package main

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPoolRejectsBadWorkerCount(t *testing.T) {
	logger := zerolog.New(io.Discard)

	_, err := NewPool(0, logger)
	assert.Error(t, err)

	_, err = NewPool(-1, logger)
	assert.Error(t, err)
}

func TestPoolRunsTasks(t *testing.T) {
	logger := zerolog.New(io.Discard)

	pool, err := NewPool(4, logger)
	require.NoError(t, err)

	const taskCount = 100

	var mutex sync.Mutex
	ran := 0

	var wg sync.WaitGroup
	for i := 0; i < taskCount; i++ {
		wg.Add(1)
		ok := pool.Enqueue(func() {
			defer wg.Done()
			mutex.Lock()
			ran++
			mutex.Unlock()
		})
		require.True(t, ok)
	}

	wg.Wait()
	pool.Stop()

	assert.Equal(t, taskCount, ran)
	assert.Equal(t, 0, pool.QueuedTasks())
	assert.Equal(t, 0, pool.ActiveTasks())
}

func TestPoolEnqueueAfterStop(t *testing.T) {
	logger := zerolog.New(io.Discard)

	pool, err := NewPool(1, logger)
	require.NoError(t, err)

	pool.Stop()

	ok := pool.Enqueue(func() {})
	assert.False(t, ok)

	// Stopping again must be harmless.
	pool.Stop()
}

func TestPoolStopDrainsQueuedTasks(t *testing.T) {
	logger := zerolog.New(io.Discard)

	pool, err := NewPool(1, logger)
	require.NoError(t, err)

	var mutex sync.Mutex
	ran := 0

	for i := 0; i < 50; i++ {
		ok := pool.Enqueue(func() {
			mutex.Lock()
			ran++
			mutex.Unlock()
		})
		require.True(t, ok)
	}

	// Stop waits for the workers, and the workers drain the queue first.
	pool.Stop()

	assert.Equal(t, 50, ran)
}

func TestPoolEnqueueFullQueue(t *testing.T) {
	logger := zerolog.New(io.Discard)

	pool, err := NewPool(1, logger)
	require.NoError(t, err)

	// Tie up the single worker so nothing leaves the queue.
	release := make(chan struct{})
	started := make(chan struct{})
	ok := pool.Enqueue(func() {
		close(started)
		<-release
	})
	require.True(t, ok)

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not pick up the blocking task")
	}

	for i := 0; i < maxQueueSize; i++ {
		require.True(t, pool.Enqueue(func() {}))
	}

	assert.False(t, pool.Enqueue(func() {}))

	close(release)
	pool.Stop()
}

func TestPoolRecoversPanickingTask(t *testing.T) {
	logger := zerolog.New(io.Discard)

	pool, err := NewPool(1, logger)
	require.NoError(t, err)

	require.True(t, pool.Enqueue(func() {
		panic("boom")
	}))

	// The single worker must survive the panic and keep taking work.
	done := make(chan struct{})
	require.True(t, pool.Enqueue(func() {
		close(done)
	}))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not run a task after a panic")
	}

	pool.Stop()
}
