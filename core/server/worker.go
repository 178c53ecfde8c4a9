// Package server implements the Worker (one poller + one thread pool,
// servicing a subset of connections) and the Server (listener + acceptor
// that load-balances new connections across workers), ported from
// eventcore's Worker and the accept loop in its Server.
package server

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/eventcore/eventcore/core/conn"
	"github.com/eventcore/eventcore/core/pool"
	"github.com/eventcore/eventcore/core/poller"
)

const (
	pollTimeoutMs          = 100
	idleSweepInterval      = 5 * time.Second
	defaultKeepAliveTimeout = 60 * time.Second
)

// Worker owns one Poller and one ThreadPool, and the fd->Connection map for
// whichever connections the Server has assigned to it. Only the event loop
// goroutine calls Poll; Add (from the acceptor), Modify (from thread-pool
// tasks) and Remove (from close callbacks) run on other goroutines and rely
// on the poller's own locking.
type Worker struct {
	id       int
	p        poller.Poller
	pool     *pool.ThreadPool
	connPool *conn.Pool
	log      *zap.Logger

	mu          sync.Mutex
	connections map[int]*conn.Connection

	keepAliveTimeout time.Duration

	running atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewWorker constructs a Worker with threadPoolSize executor goroutines,
// sharing connPool with its siblings.
func NewWorker(id int, connPool *conn.Pool, threadPoolSize int, keepAliveTimeout time.Duration, log *zap.Logger) (*Worker, error) {
	if log == nil {
		log = zap.NewNop()
	}
	p, err := poller.NewPoller()
	if err != nil {
		return nil, fmt.Errorf("worker %d: new poller: %w", id, err)
	}
	if keepAliveTimeout <= 0 {
		keepAliveTimeout = defaultKeepAliveTimeout
	}
	return &Worker{
		id:               id,
		p:                p,
		pool:             pool.NewThreadPool(threadPoolSize, log),
		connPool:         connPool,
		log:              log.With(zap.Int("worker_id", id)),
		connections:      make(map[int]*conn.Connection),
		keepAliveTimeout: keepAliveTimeout,
		stopCh:           make(chan struct{}),
	}, nil
}

// Start spawns the thread pool and the event-loop goroutine.
func (w *Worker) Start() {
	if !w.running.CompareAndSwap(false, true) {
		return
	}
	w.pool.Start()
	w.wg.Add(2)
	go w.eventLoop()
	go w.idleSweepLoop()
}

// Stop signals the event loop and idle sweep to exit, joins them, and stops
// the thread pool. Stop is idempotent.
func (w *Worker) Stop() {
	if !w.running.CompareAndSwap(true, false) {
		return
	}
	close(w.stopCh)
	w.wg.Wait()
	w.pool.Stop()
}

// ConnectionCount returns the number of connections currently assigned to
// this worker.
func (w *Worker) ConnectionCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.connections)
}

// AddConnection registers c's fd with this worker's poller for Readable
// events and begins tracking it locally.
func (w *Worker) AddConnection(c *conn.Connection) error {
	fd := c.FD()
	c.SetCloseCallback(w.removeConnection)
	c.Start()

	w.mu.Lock()
	w.connections[fd] = c
	w.mu.Unlock()

	ok, err := w.p.Add(fd, poller.Readable, w.onReady)
	if err != nil || !ok {
		w.mu.Lock()
		delete(w.connections, fd)
		w.mu.Unlock()
		if err != nil {
			return fmt.Errorf("worker %d: add fd %d: %w", w.id, fd, err)
		}
		return fmt.Errorf("worker %d: fd %d already registered", w.id, fd)
	}
	return nil
}

// removeConnection is the Connection close callback: it deregisters fd from
// the poller, drops the local reference, and releases the pool slot so the
// fd (and the Connection object backing it) can be reused.
func (w *Worker) removeConnection(fd int) {
	w.mu.Lock()
	delete(w.connections, fd)
	w.mu.Unlock()

	if _, err := w.p.Remove(fd); err != nil {
		w.log.Debug("remove fd from poller failed", zap.Int("fd", fd), zap.Error(err))
	}
	w.connPool.Release(fd)
}

// onReady runs on the event-loop goroutine; it never blocks on I/O itself —
// it submits the actual read/write work to the thread pool, then that task
// re-arms the poller once the Connection says there's nothing more to do
// right now. This keeps the event loop free to keep polling.
func (w *Worker) onReady(fd int, events poller.Events) {
	w.mu.Lock()
	c, ok := w.connections[fd]
	w.mu.Unlock()
	if !ok {
		return
	}

	w.pool.Submit(func() {
		if events&poller.ErrorEvent != 0 {
			c.ForceClose()
			return
		}
		if events&poller.Readable != 0 {
			c.HandleRead()
		}
		if events&poller.Writable != 0 {
			c.HandleWrite()
		}
		if c.IsConnected() {
			w.connPool.Touch(fd)
		}
		w.rearm(c)
	})
}

func (w *Worker) rearm(c *conn.Connection) {
	if !c.IsConnected() {
		return
	}
	want := poller.Readable
	if c.HasPendingWrite() {
		want |= poller.Writable
	}
	if _, err := w.p.Modify(c.FD(), want); err != nil {
		w.log.Debug("rearm failed", zap.Int("fd", c.FD()), zap.Error(err))
	}
}

func (w *Worker) eventLoop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.stopCh:
			w.p.Close()
			return
		default:
		}
		if _, err := w.p.Poll(pollTimeoutMs); err != nil {
			w.log.Warn("poll error", zap.Error(err))
		}
	}
}

func (w *Worker) idleSweepLoop() {
	defer w.wg.Done()
	ticker := time.NewTicker(idleSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.sweepIdleConnections()
		}
	}
}

func (w *Worker) sweepIdleConnections() {
	idle := w.connPool.IdleConnections(w.keepAliveTimeout)
	for _, fd := range idle {
		w.mu.Lock()
		c, ok := w.connections[fd]
		w.mu.Unlock()
		if ok {
			w.log.Debug("closing idle connection", zap.Int("fd", fd))
			c.ForceClose()
		}
	}
}
