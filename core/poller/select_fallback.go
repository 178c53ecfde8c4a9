//go:build !linux && !darwin

package poller

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// SelectPoller is the fallback Poller for platforms without an epoll or
// kqueue implementation in this package. unix.Select is level-triggered by
// nature; the one-shot discipline the rest of this package provides is
// emulated here by masking a fd's bit out of the watched set as soon as it
// fires, so a caller that forgets to call Modify simply stops hearing about
// that fd instead of spinning on a level that never clears.
type SelectPoller struct {
	mu       sync.Mutex
	handlers map[int]Callback
	armed    map[int]Events
}

// unix.FdSet carries no Set/IsSet helpers (unlike the C FD_SET macros it
// mirrors), so this package supplies the bit-twiddling directly.
func fdSet(set *unix.FdSet, fd int) {
	set.Bits[fd/64] |= 1 << (uint(fd) % 64)
}

func fdIsSet(set *unix.FdSet, fd int) bool {
	return set.Bits[fd/64]&(1<<(uint(fd)%64)) != 0
}

// NewPoller creates the select-based fallback Poller.
func NewPoller() (Poller, error) {
	return &SelectPoller{
		handlers: make(map[int]Callback),
		armed:    make(map[int]Events),
	}, nil
}

// Add registers fd for events.
func (p *SelectPoller) Add(fd int, events Events, cb Callback) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.handlers[fd]; exists {
		return false, nil
	}
	p.handlers[fd] = cb
	p.armed[fd] = events
	return true, nil
}

// Modify re-arms fd for events.
func (p *SelectPoller) Modify(fd int, events Events) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.handlers[fd]; !exists {
		return false, ErrNotRegistered
	}
	p.armed[fd] = events
	return true, nil
}

// Remove unregisters fd.
func (p *SelectPoller) Remove(fd int) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.handlers[fd]; !exists {
		return false, nil
	}
	delete(p.handlers, fd)
	delete(p.armed, fd)
	return true, nil
}

// Poll blocks up to timeoutMs milliseconds via unix.Select and fires
// callbacks for fds that became ready, then disarms them until re-armed.
func (p *SelectPoller) Poll(timeoutMs int) (int, error) {
	p.mu.Lock()
	var readFDs, writeFDs unix.FdSet
	maxFD := -1
	type entry struct {
		fd     int
		events Events
		cb     Callback
	}
	var watched []entry
	for fd, events := range p.armed {
		if events == 0 {
			continue
		}
		if events&Readable != 0 {
			fdSet(&readFDs, fd)
		}
		if events&Writable != 0 {
			fdSet(&writeFDs, fd)
		}
		if fd > maxFD {
			maxFD = fd
		}
		watched = append(watched, entry{fd: fd, events: events, cb: p.handlers[fd]})
	}
	p.mu.Unlock()

	if maxFD < 0 {
		return 0, nil
	}

	var tv *unix.Timeval
	if timeoutMs >= 0 {
		tv = &unix.Timeval{
			Sec:  int64(timeoutMs / 1000),
			Usec: int64((timeoutMs % 1000) * 1000),
		}
	}

	n, err := unix.Select(maxFD+1, &readFDs, &writeFDs, nil, tv)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, fmt.Errorf("select: %w", err)
	}
	if n <= 0 {
		return 0, nil
	}

	fired := 0
	for _, w := range watched {
		var ev Events
		if fdIsSet(&readFDs, w.fd) {
			ev |= Readable
		}
		if fdIsSet(&writeFDs, w.fd) {
			ev |= Writable
		}
		if ev == 0 {
			continue
		}

		p.mu.Lock()
		p.armed[w.fd] &^= ev
		p.mu.Unlock()

		w.cb(w.fd, ev)
		fired++
	}
	return fired, nil
}

// Close is a no-op: the select fallback owns no kernel resource of its own.
func (p *SelectPoller) Close() error { return nil }
