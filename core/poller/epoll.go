//go:build linux

package poller

import (
	"fmt"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// EpollPoller is the Linux Poller, backed by epoll with EPOLLET (edge
// triggered) so a readiness transition fires exactly once until the caller
// re-arms it with Modify.
type EpollPoller struct {
	epfd int

	mu       sync.Mutex
	handlers map[int]Callback

	events []syscall.EpollEvent
}

// NewPoller creates a Linux epoll-based Poller.
func NewPoller() (Poller, error) {
	epfd, err := syscall.EpollCreate1(0)
	if err != nil {
		return nil, fmt.Errorf("epoll_create1: %w", err)
	}
	return &EpollPoller{
		epfd:     epfd,
		handlers: make(map[int]Callback),
		events:   make([]syscall.EpollEvent, 1024),
	}, nil
}

func toEpollEvents(e Events) uint32 {
	var out uint32
	// EPOLLET: edge-triggered. EPOLLONESHOT: disable after one firing,
	// until Modify re-arms. EPOLLRDHUP: detect peer half-close promptly.
	out |= uint32(unix.EPOLLET) | uint32(syscall.EPOLLONESHOT) | 0x2000
	if e&Readable != 0 {
		out |= syscall.EPOLLIN
	}
	if e&Writable != 0 {
		out |= syscall.EPOLLOUT
	}
	return out
}

// Add registers fd for events with edge-triggered one-shot semantics.
func (p *EpollPoller) Add(fd int, events Events, cb Callback) (bool, error) {
	p.mu.Lock()
	if _, exists := p.handlers[fd]; exists {
		p.mu.Unlock()
		return false, nil
	}
	p.handlers[fd] = cb
	p.mu.Unlock()

	ev := syscall.EpollEvent{Events: toEpollEvents(events), Fd: int32(fd)}
	if err := syscall.EpollCtl(p.epfd, syscall.EPOLL_CTL_ADD, fd, &ev); err != nil {
		p.mu.Lock()
		delete(p.handlers, fd)
		p.mu.Unlock()
		return false, fmt.Errorf("epoll_ctl add %d: %w", fd, err)
	}
	return true, nil
}

// Modify re-arms fd for events, required after every firing.
func (p *EpollPoller) Modify(fd int, events Events) (bool, error) {
	p.mu.Lock()
	_, exists := p.handlers[fd]
	p.mu.Unlock()
	if !exists {
		return false, ErrNotRegistered
	}

	ev := syscall.EpollEvent{Events: toEpollEvents(events), Fd: int32(fd)}
	if err := syscall.EpollCtl(p.epfd, syscall.EPOLL_CTL_MOD, fd, &ev); err != nil {
		return false, fmt.Errorf("epoll_ctl mod %d: %w", fd, err)
	}
	return true, nil
}

// Remove unregisters fd.
func (p *EpollPoller) Remove(fd int) (bool, error) {
	p.mu.Lock()
	_, exists := p.handlers[fd]
	delete(p.handlers, fd)
	p.mu.Unlock()
	if !exists {
		return false, nil
	}

	if err := syscall.EpollCtl(p.epfd, syscall.EPOLL_CTL_DEL, fd, nil); err != nil {
		return false, fmt.Errorf("epoll_ctl del %d: %w", fd, err)
	}
	return true, nil
}

// Poll blocks for up to timeoutMs milliseconds and fires callbacks for
// whatever fds became ready.
func (p *EpollPoller) Poll(timeoutMs int) (int, error) {
	n, err := syscall.EpollWait(p.epfd, p.events, timeoutMs)
	if err != nil {
		if err == syscall.EINTR {
			return 0, nil
		}
		return 0, fmt.Errorf("epoll_wait: %w", err)
	}
	if n <= 0 {
		return 0, nil
	}
	events := p.events
	if n == len(events) {
		// The buffer was fully consumed; double it so the next Poll can
		// pick up more ready fds in one syscall.
		p.events = make([]syscall.EpollEvent, len(events)*2)
	}

	fired := 0
	for i := 0; i < n; i++ {
		fd := int(events[i].Fd)
		raw := events[i].Events

		p.mu.Lock()
		cb, exists := p.handlers[fd]
		p.mu.Unlock()
		if !exists {
			continue
		}

		var ev Events
		if raw&(syscall.EPOLLIN|0x2000) != 0 {
			ev |= Readable
		}
		if raw&syscall.EPOLLOUT != 0 {
			ev |= Writable
		}
		if raw&(syscall.EPOLLERR|syscall.EPOLLHUP) != 0 {
			ev |= ErrorEvent
		}
		cb(fd, ev)
		fired++
	}
	return fired, nil
}

// Close closes the epoll instance.
func (p *EpollPoller) Close() error {
	return syscall.Close(p.epfd)
}
