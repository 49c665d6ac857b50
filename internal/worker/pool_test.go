package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rankstream/internal/models"
)

// countingWriter records durable writes behind a mutex.
type countingWriter struct {
	mu        sync.Mutex
	points    map[string]int64
	snapshots int
}

func newCountingWriter() *countingWriter {
	return &countingWriter{points: make(map[string]int64)}
}

func (w *countingWriter) UpsertSnapshot(_ context.Context, _ models.SnapshotRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.snapshots++
	return nil
}

func (w *countingWriter) AddPoints(_ context.Context, userID string, points int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.points[userID] += points
	return nil
}

func (w *countingWriter) totalFor(userID string) int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.points[userID]
}

func TestPoolProcessesSubmittedTasks(t *testing.T) {
	writer := newCountingWriter()
	pool := NewPool(2, 16, writer)
	pool.Start()

	for i := 0; i < 5; i++ {
		require.NoError(t, pool.Submit(Task{Kind: TaskAddPoints, UserID: "u1", Points: 10}))
	}

	require.NoError(t, pool.Shutdown(2*time.Second))
	assert.Equal(t, int64(50), writer.totalFor("u1"))

	processed, failed, _ := pool.Stats()
	assert.Equal(t, int64(5), processed)
	assert.Zero(t, failed)
}

func TestPoolSubmitFullQueueIsBackpressure(t *testing.T) {
	// no Start: nothing drains the queue
	pool := NewPool(1, 1, newCountingWriter())

	require.NoError(t, pool.Submit(Task{Kind: TaskAddPoints, UserID: "u1", Points: 1}))
	err := pool.Submit(Task{Kind: TaskAddPoints, UserID: "u1", Points: 1})
	require.Error(t, err)

	_, _, backpressure := pool.Stats()
	assert.Equal(t, int64(1), backpressure)
}

func TestPoolSubmitAfterShutdownReturnsError(t *testing.T) {
	pool := NewPool(1, 4, newCountingWriter())
	pool.Start()
	require.NoError(t, pool.Shutdown(time.Second))

	err := pool.Submit(Task{Kind: TaskAddPoints, UserID: "u1", Points: 1})
	require.Error(t, err)

	// repeated shutdown is a no-op
	require.NoError(t, pool.Shutdown(time.Second))
}

func TestPoolSubmitDuringShutdownDoesNotPanic(t *testing.T) {
	writer := newCountingWriter()
	pool := NewPool(2, 8, writer)
	pool.Start()

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					_ = pool.Submit(Task{Kind: TaskAddPoints, UserID: "u1", Points: 1})
				}
			}
		}()
	}

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, pool.Shutdown(2*time.Second))
	close(stop)
	wg.Wait()

	// every submit after the close must have errored rather than panicked;
	// accepted ones were drained
	err := pool.Submit(Task{Kind: TaskAddPoints, UserID: "u1", Points: 1})
	require.Error(t, err)
}
