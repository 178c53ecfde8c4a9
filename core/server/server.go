package server

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/eventcore/eventcore/core/conn"
	"github.com/eventcore/eventcore/core/httpcore"
	"github.com/eventcore/eventcore/core/netutil"
)

// Config carries the subset of the process configuration the Server and its
// Workers need directly.
type Config struct {
	Host                string
	Port                uint16
	Backlog             int
	NumWorkers          int
	NumThreadsPerWorker int
	MaxConnections      int
	ConnectionPoolSize  int
	MaxRequestSize      int
	ReadBufferSize      int
	WriteBufferSize     int
	KeepAliveTimeout    time.Duration
	TCPNoDelay          bool
	ReuseAddr           bool
	ReusePort           bool
	AcceptBatchSize     int
}

const (
	defaultReadBufSize  = 1024
	defaultWriteBufSize = 1024
	acceptBackoff       = 100 * time.Microsecond
)

// Server owns the listening socket, the acceptor goroutine, and the fixed
// set of Workers connections are round-robined across. It mirrors
// eventcore's Server: one listening fd, N worker event loops, no per-request
// goroutines.
type Server struct {
	cfg Config
	log *zap.Logger

	listener *netutil.Socket
	workers  []*Worker
	connPool *conn.Pool

	next    atomic.Uint64
	running atomic.Bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New builds a Server bound to cfg.Host:cfg.Port, dispatching requests
// through router, without starting it yet.
func New(cfg Config, router *httpcore.Router, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = runtime.NumCPU()
		if cfg.NumWorkers < 1 {
			cfg.NumWorkers = 1
		}
	}
	if cfg.NumThreadsPerWorker <= 0 {
		cfg.NumThreadsPerWorker = 4
	}
	if cfg.ConnectionPoolSize <= 0 {
		cfg.ConnectionPoolSize = cfg.MaxConnections
	}
	if cfg.ReadBufferSize <= 0 {
		cfg.ReadBufferSize = defaultReadBufSize
	}
	if cfg.WriteBufferSize <= 0 {
		cfg.WriteBufferSize = defaultWriteBufSize
	}
	if cfg.AcceptBatchSize <= 0 {
		cfg.AcceptBatchSize = 100
	}

	connPool := conn.NewPool(cfg.ConnectionPoolSize, router, cfg.MaxRequestSize, cfg.ReadBufferSize, cfg.WriteBufferSize, log)

	workers := make([]*Worker, cfg.NumWorkers)
	for i := range workers {
		w, err := NewWorker(i, connPool, cfg.NumThreadsPerWorker, cfg.KeepAliveTimeout, log)
		if err != nil {
			return nil, err
		}
		workers[i] = w
	}

	return &Server{
		cfg:      cfg,
		log:      log,
		workers:  workers,
		connPool: connPool,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start creates the listening socket, applies its socket options, starts
// every Worker, and spawns the acceptor goroutine. It returns once the
// socket is listening; the acceptor itself runs in the background.
func (s *Server) Start() error {
	applyGCConfig(DefaultGCConfig())

	sockResult := netutil.CreateTCP()
	sock, ok := sockResult.Value()
	if !ok {
		return fmt.Errorf("server: create listening socket: %w", sockResult.Error())
	}

	if s.cfg.ReuseAddr {
		if r := sock.SetReuseAddr(true); r.IsErr() {
			sock.Close()
			return fmt.Errorf("server: %w", r.Error())
		}
	}
	if s.cfg.ReusePort {
		if r := sock.SetReusePort(true); r.IsErr() {
			sock.Close()
			return fmt.Errorf("server: %w", r.Error())
		}
	}

	addr, err := netutil.NewAddress(s.cfg.Host, s.cfg.Port)
	if err != nil {
		sock.Close()
		return fmt.Errorf("server: %w", err)
	}
	if r := sock.Bind(addr); r.IsErr() {
		sock.Close()
		return fmt.Errorf("server: %w", r.Error())
	}
	if r := sock.Listen(s.cfg.Backlog); r.IsErr() {
		sock.Close()
		return fmt.Errorf("server: %w", r.Error())
	}
	if r := sock.SetNonblocking(true); r.IsErr() {
		sock.Close()
		return fmt.Errorf("server: %w", r.Error())
	}

	s.listener = sock
	s.running.Store(true)

	for _, w := range s.workers {
		w.Start()
	}

	go s.acceptLoop()

	s.log.Info("server listening",
		zap.String("addr", addr.String()),
		zap.Int("workers", len(s.workers)),
	)
	return nil
}

// Stop signals the acceptor to exit, closes the listening socket, and stops
// every Worker. It blocks until the acceptor has fully exited.
func (s *Server) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	close(s.stopCh)
	<-s.doneCh

	if s.listener != nil {
		s.listener.Close()
	}
	for _, w := range s.workers {
		w.Stop()
	}
	s.log.Info("server stopped")
}

// acceptLoop batches up to AcceptBatchSize accept(2) calls per iteration,
// round-robining each new connection across the worker pool, and backs off
// briefly on EAGAIN so an idle listener doesn't spin the CPU.
func (s *Server) acceptLoop() {
	defer close(s.doneCh)
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		accepted := 0
		for accepted < s.cfg.AcceptBatchSize {
			r := s.listener.Accept()
			sock, ok := r.Value()
			if !ok {
				break
			}
			s.handleAccept(sock)
			accepted++
		}

		if accepted == 0 {
			select {
			case <-s.stopCh:
				return
			case <-time.After(acceptBackoff):
			}
		}
	}
}

func (s *Server) handleAccept(sock *netutil.Socket) {
	fd := sock.FD()

	if s.cfg.TCPNoDelay {
		sock.SetNoDelay(true)
	}
	sock.SetKeepAlive(true)
	if r := sock.SetNonblocking(true); r.IsErr() {
		s.log.Warn("set nonblocking failed, dropping connection", zap.Int("fd", fd), zap.Error(r.Error()))
		sock.Close()
		return
	}

	c, ok := s.connPool.Acquire(fd)
	if !ok {
		s.log.Warn("connection pool exhausted, dropping connection", zap.Int("fd", fd))
		sock.Close()
		return
	}
	sock.Release()

	w := s.nextWorker()
	if err := w.AddConnection(c); err != nil {
		s.log.Warn("failed to register connection with worker", zap.Int("fd", fd), zap.Error(err))
		c.ForceClose()
		return
	}
}

func (s *Server) nextWorker() *Worker {
	idx := s.next.Add(1) % uint64(len(s.workers))
	return s.workers[idx]
}
