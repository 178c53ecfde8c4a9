// Package pool holds the fixed-worker ThreadPool that executes per-connection
// read/write work. Unlike a work-stealing pool, this ThreadPool drains one
// shared FIFO queue across all its workers.
package pool

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/eventcore/eventcore/core/queue"
)

// Task is a unit of work submitted to a ThreadPool.
type Task func()

// ThreadPool runs a fixed number of goroutines, each draining the same
// BlockingQueue in submission order. There is no work stealing.
type ThreadPool struct {
	queue   *queue.BlockingQueue[Task]
	size    int
	log     *zap.Logger
	wg      sync.WaitGroup
	running atomic.Bool
	live    atomic.Int64

	submitted atomic.Int64
	completed atomic.Int64
	panicked  atomic.Int64
}

// NewThreadPool creates a pool of size worker goroutines, not yet started.
func NewThreadPool(size int, log *zap.Logger) *ThreadPool {
	if size <= 0 {
		size = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ThreadPool{
		queue: queue.New[Task](),
		size:  size,
		log:   log,
	}
}

// Start spawns the worker goroutines. Calling Start twice is a no-op.
func (p *ThreadPool) Start() {
	if !p.running.CompareAndSwap(false, true) {
		return
	}
	p.queue.Restart()
	for i := 0; i < p.size; i++ {
		p.live.Add(1)
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Submit enqueues a task for execution by whichever worker pops it next.
func (p *ThreadPool) Submit(task Task) {
	p.submitted.Add(1)
	p.queue.Push(task)
}

// Stop signals all workers to exit once the queue drains and blocks until
// they have. Stop is idempotent.
func (p *ThreadPool) Stop() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	p.queue.Stop()
	p.wg.Wait()
}

// Stats reports submission, completion, panic, and live-worker counters.
type Stats struct {
	Submitted   int64
	Completed   int64
	Panicked    int64
	LiveWorkers int64
	QueueDepth  int
}

// Stats returns a snapshot of pool counters.
func (p *ThreadPool) Stats() Stats {
	return Stats{
		Submitted:   p.submitted.Load(),
		Completed:   p.completed.Load(),
		Panicked:    p.panicked.Load(),
		LiveWorkers: p.live.Load(),
		QueueDepth:  p.queue.Size(),
	}
}

func (p *ThreadPool) worker(id int) {
	defer p.wg.Done()
	defer p.live.Add(-1)

	for {
		task, err := p.queue.Pop()
		if err != nil {
			return
		}
		if !p.runTask(id, task) {
			// The task panicked; this worker retires rather than looping
			// back, so a corrupted task closure can't repeatedly wedge the
			// same goroutine. The pool keeps running with one less worker.
			return
		}
	}
}

// runTask invokes task with a recover guard. Returns false if the task
// panicked, signalling the caller to retire this worker goroutine.
func (p *ThreadPool) runTask(id int, task Task) (ok bool) {
	ok = true
	defer func() {
		if r := recover(); r != nil {
			ok = false
			p.panicked.Add(1)
			p.log.Error("thread pool task panicked, retiring worker",
				zap.Int("worker_id", id),
				zap.Any("panic", r),
			)
			return
		}
		p.completed.Add(1)
	}()
	task()
	return
}
