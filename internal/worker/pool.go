package worker

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"rankstream/internal/metrics"
	"rankstream/internal/models"
)

// TaskKind selects the durable write a task performs.
type TaskKind int

const (
	// TaskSnapshotUpsert writes one durable leaderboard snapshot row.
	TaskSnapshotUpsert TaskKind = iota
	// TaskAddPoints bumps a user's authoritative cumulative total.
	TaskAddPoints
)

// Task is one asynchronous durable write.
type Task struct {
	Kind     TaskKind
	Snapshot models.SnapshotRecord // TaskSnapshotUpsert
	UserID   string                // TaskAddPoints
	Points   int64                 // TaskAddPoints
}

// DurableWriter is the slice of the durable repository the pool needs.
type DurableWriter interface {
	UpsertSnapshot(ctx context.Context, rec models.SnapshotRecord) error
	AddPoints(ctx context.Context, userID string, points int64) error
}

// Pool manages a set of workers for asynchronous durable writes, keeping the
// request path free of database latency.
type Pool struct {
	jobs        chan Task
	workerCount int
	writer      DurableWriter
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	stats       *poolStats

	// closeMu serializes Submit against Shutdown closing the jobs channel.
	closeMu sync.RWMutex
	closed  bool
}

type poolStats struct {
	mu           sync.RWMutex
	processed    int64
	failed       int64
	backpressure int64
}

// NewPool creates a worker pool with a bounded task queue.
func NewPool(workerCount, queueSize int, writer DurableWriter) *Pool {
	ctx, cancel := context.WithCancel(context.Background())

	return &Pool{
		jobs:        make(chan Task, queueSize),
		workerCount: workerCount,
		writer:      writer,
		ctx:         ctx,
		cancel:      cancel,
		stats:       &poolStats{},
	}
}

// Start launches all worker goroutines.
func (p *Pool) Start() {
	log.Printf("worker: starting pool with %d workers, queue size %d", p.workerCount, cap(p.jobs))

	for i := 1; i <= p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return

		case task, ok := <-p.jobs:
			if !ok {
				return
			}
			p.process(id, task)
			metrics.WorkerQueueDepth.Set(float64(len(p.jobs)))
		}
	}
}

// process executes a single task with panic recovery so one bad write cannot
// take a worker down.
func (p *Pool) process(workerID int, task Task) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("worker #%d: panic recovered: %v (user %s)", workerID, r, task.UserID)
			p.stats.incrFailed()
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var err error
	switch task.Kind {
	case TaskSnapshotUpsert:
		err = p.writer.UpsertSnapshot(ctx, task.Snapshot)
	case TaskAddPoints:
		err = p.writer.AddPoints(ctx, task.UserID, task.Points)
	default:
		err = fmt.Errorf("unknown task kind %d", task.Kind)
	}

	if err != nil {
		log.Printf("worker #%d: durable write failed: %v", workerID, err)
		p.stats.incrFailed()
		return
	}
	p.stats.incrProcessed()
}

// Submit queues a task without blocking. A full queue is backpressure: the
// task is dropped and the volatile store remains ahead of durable storage
// until the next reconciliation run catches up. Submitting to a pool that
// has shut down returns an error instead of panicking, so late callers on
// the shutdown path stay safe.
func (p *Pool) Submit(task Task) error {
	p.closeMu.RLock()
	defer p.closeMu.RUnlock()

	if p.closed {
		return fmt.Errorf("worker pool is shut down")
	}

	select {
	case p.jobs <- task:
		metrics.WorkerQueueDepth.Set(float64(len(p.jobs)))
		return nil

	default:
		p.stats.incrBackpressure()
		return fmt.Errorf("worker pool queue full (backpressure)")
	}
}

// Shutdown drains remaining tasks, forcing cancellation after timeout.
// Safe to call more than once.
func (p *Pool) Shutdown(timeout time.Duration) error {
	p.closeMu.Lock()
	if p.closed {
		p.closeMu.Unlock()
		return nil
	}
	p.closed = true
	close(p.jobs)
	p.closeMu.Unlock()

	log.Println("worker: shutting down pool")

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		processed, failed, backpressure := p.stats.snapshot()
		log.Printf("worker: drained (processed=%d failed=%d backpressure=%d)",
			processed, failed, backpressure)
		return nil

	case <-time.After(timeout):
		p.cancel()
		return fmt.Errorf("worker pool shutdown timed out after %v", timeout)
	}
}

// Stats returns processed/failed/backpressure counters.
func (p *Pool) Stats() (processed, failed, backpressure int64) {
	return p.stats.snapshot()
}

func (s *poolStats) incrProcessed() {
	s.mu.Lock()
	s.processed++
	s.mu.Unlock()
}

func (s *poolStats) incrFailed() {
	s.mu.Lock()
	s.failed++
	s.mu.Unlock()
}

func (s *poolStats) incrBackpressure() {
	s.mu.Lock()
	s.backpressure++
	s.mu.Unlock()
}

func (s *poolStats) snapshot() (processed, failed, backpressure int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.processed, s.failed, s.backpressure
}
