package conn

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/eventcore/eventcore/core/httpcore"
)

type slot struct {
	conn     *Connection
	lastUsed time.Time
	inUse    bool
}

// Pool is a fixed-size vector of Connection slots. Acquire hands out a
// slot's Connection (constructing it lazily the first time, then Reset-ing
// it on every later reuse) bound to a new fd; Release returns the slot to
// the free list. A Pool never grows past its configured size — when full,
// Acquire returns ok=false and the caller is responsible for closing the fd
// itself, exactly as eventcore's ConnectionPool::acquire does.
type Pool struct {
	mu          sync.Mutex
	slots       []slot
	freeIndices []int
	fdToIndex   map[int]int

	router       *httpcore.Router
	maxBodySize  int
	readBufSize  int
	writeBufSize int
	log          *zap.Logger

	acquires int64
	releases int64
}

// NewPool constructs a Pool with the given fixed capacity. Connections it
// creates route through router and enforce maxBodySize, readBufSize, and
// writeBufSize the way New does.
func NewPool(capacity int, router *httpcore.Router, maxBodySize, readBufSize, writeBufSize int, log *zap.Logger) *Pool {
	if log == nil {
		log = zap.NewNop()
	}
	p := &Pool{
		slots:        make([]slot, capacity),
		freeIndices:  make([]int, capacity),
		fdToIndex:    make(map[int]int, capacity),
		router:       router,
		maxBodySize:  maxBodySize,
		readBufSize:  readBufSize,
		writeBufSize: writeBufSize,
		log:          log,
	}
	for i := range p.freeIndices {
		p.freeIndices[i] = i
	}
	return p
}

// Acquire binds fd to a free slot's Connection, constructing one the first
// time a given slot is used. ok is false if the pool is at capacity.
func (p *Pool) Acquire(fd int) (c *Connection, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.freeIndices) == 0 {
		return nil, false
	}
	idx := p.freeIndices[len(p.freeIndices)-1]
	p.freeIndices = p.freeIndices[:len(p.freeIndices)-1]

	s := &p.slots[idx]
	if s.conn == nil {
		s.conn = New(fd, p.router, p.maxBodySize, p.readBufSize, p.writeBufSize, p.log)
	} else {
		s.conn.Reset(fd)
	}
	s.inUse = true
	s.lastUsed = time.Now()
	p.fdToIndex[fd] = idx
	p.acquires++
	return s.conn, true
}

// Release returns fd's slot to the free list.
func (p *Pool) Release(fd int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	idx, ok := p.fdToIndex[fd]
	if !ok {
		return
	}
	delete(p.fdToIndex, fd)
	p.slots[idx].inUse = false
	p.freeIndices = append(p.freeIndices, idx)
	p.releases++
}

// Touch refreshes a slot's last-used timestamp. The Worker calls it after
// each readiness task that leaves the connection open.
func (p *Pool) Touch(fd int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if idx, ok := p.fdToIndex[fd]; ok {
		p.slots[idx].lastUsed = time.Now()
	}
}

// IdleConnections returns the fds currently in use whose slot has not been
// touched within timeout.
func (p *Pool) IdleConnections(timeout time.Duration) []int {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	var idle []int
	for fd, idx := range p.fdToIndex {
		s := &p.slots[idx]
		if s.inUse && now.Sub(s.lastUsed) > timeout {
			idle = append(idle, fd)
		}
	}
	return idle
}

// Stats reports pool occupancy and lifetime acquire/release counts.
type Stats struct {
	Capacity int
	InUse    int
	Acquires int64
	Releases int64
}

// Stats returns a snapshot of pool counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Capacity: len(p.slots),
		InUse:    len(p.slots) - len(p.freeIndices),
		Acquires: p.acquires,
		Releases: p.releases,
	}
}
