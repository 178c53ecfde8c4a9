//go:build darwin

package poller

import (
	"fmt"
	"sync"
	"syscall"
)

// KqueuePoller is the Darwin/BSD Poller, backed by kqueue with EV_CLEAR
// (edge-triggered) and EV_ONESHOT (disable after firing, until Modify
// re-registers the filter) to match epoll's edge-triggered one-shot
// discipline.
type KqueuePoller struct {
	kqfd int

	mu       sync.Mutex
	handlers map[int]Callback
	// registered tracks which (fd, filter) pairs are currently armed, since
	// kqueue tracks read/write readiness as separate filters rather than a
	// single bitmask registration the way epoll does.
	registered map[int]Events

	events []syscall.Kevent_t
}

// NewPoller creates a Darwin/BSD kqueue-based Poller.
func NewPoller() (Poller, error) {
	kqfd, err := syscall.Kqueue()
	if err != nil {
		return nil, fmt.Errorf("kqueue: %w", err)
	}
	return &KqueuePoller{
		kqfd:       kqfd,
		handlers:   make(map[int]Callback),
		registered: make(map[int]Events),
		events:     make([]syscall.Kevent_t, 1024),
	}, nil
}

func kevents(fd int, events Events, flags uint16) []syscall.Kevent_t {
	var out []syscall.Kevent_t
	if events&Readable != 0 {
		out = append(out, syscall.Kevent_t{
			Ident: uint64(fd), Filter: syscall.EVFILT_READ, Flags: flags,
		})
	}
	if events&Writable != 0 {
		out = append(out, syscall.Kevent_t{
			Ident: uint64(fd), Filter: syscall.EVFILT_WRITE, Flags: flags,
		})
	}
	return out
}

// Add registers fd for events with edge-triggered one-shot semantics.
func (p *KqueuePoller) Add(fd int, events Events, cb Callback) (bool, error) {
	p.mu.Lock()
	if _, exists := p.handlers[fd]; exists {
		p.mu.Unlock()
		return false, nil
	}
	p.handlers[fd] = cb
	p.registered[fd] = events
	p.mu.Unlock()

	changes := kevents(fd, events, syscall.EV_ADD|syscall.EV_ENABLE|syscall.EV_CLEAR|syscall.EV_ONESHOT)
	if _, err := syscall.Kevent(p.kqfd, changes, nil, nil); err != nil {
		p.mu.Lock()
		delete(p.handlers, fd)
		delete(p.registered, fd)
		p.mu.Unlock()
		return false, fmt.Errorf("kevent add %d: %w", fd, err)
	}
	return true, nil
}

// Modify re-arms fd for events, required after every firing.
func (p *KqueuePoller) Modify(fd int, events Events) (bool, error) {
	p.mu.Lock()
	_, exists := p.handlers[fd]
	prev := p.registered[fd]
	p.registered[fd] = events
	p.mu.Unlock()
	if !exists {
		return false, ErrNotRegistered
	}

	var changes []syscall.Kevent_t
	if removed := prev &^ events; removed != 0 {
		changes = append(changes, kevents(fd, removed, syscall.EV_DELETE)...)
	}
	changes = append(changes, kevents(fd, events, syscall.EV_ADD|syscall.EV_ENABLE|syscall.EV_CLEAR|syscall.EV_ONESHOT)...)
	if len(changes) == 0 {
		return true, nil
	}
	if _, err := syscall.Kevent(p.kqfd, changes, nil, nil); err != nil {
		return false, fmt.Errorf("kevent mod %d: %w", fd, err)
	}
	return true, nil
}

// Remove unregisters fd.
func (p *KqueuePoller) Remove(fd int) (bool, error) {
	p.mu.Lock()
	events, exists := p.registered[fd]
	delete(p.handlers, fd)
	delete(p.registered, fd)
	p.mu.Unlock()
	if !exists {
		return false, nil
	}

	changes := kevents(fd, events, syscall.EV_DELETE)
	if len(changes) > 0 {
		// Already-fired EV_ONESHOT filters are auto-removed by the kernel;
		// ignore ENOENT from deleting one that's already gone.
		if _, err := syscall.Kevent(p.kqfd, changes, nil, nil); err != nil && err != syscall.ENOENT {
			return false, fmt.Errorf("kevent del %d: %w", fd, err)
		}
	}
	return true, nil
}

// Poll blocks for up to timeoutMs milliseconds and fires callbacks for
// whatever fds became ready.
func (p *KqueuePoller) Poll(timeoutMs int) (int, error) {
	var ts *syscall.Timespec
	if timeoutMs >= 0 {
		ts = &syscall.Timespec{
			Sec:  int64(timeoutMs / 1000),
			Nsec: int64((timeoutMs % 1000) * 1000000),
		}
	}

	n, err := syscall.Kevent(p.kqfd, nil, p.events, ts)
	if err != nil {
		if err == syscall.EINTR {
			return 0, nil
		}
		return 0, fmt.Errorf("kevent wait: %w", err)
	}
	if n <= 0 {
		return 0, nil
	}
	events := p.events
	if n == len(events) {
		// The buffer was fully consumed; double it so the next Poll can
		// pick up more ready fds in one syscall.
		p.events = make([]syscall.Kevent_t, len(events)*2)
	}

	fired := 0
	for i := 0; i < n; i++ {
		fd := int(events[i].Ident)

		p.mu.Lock()
		cb, exists := p.handlers[fd]
		p.mu.Unlock()
		if !exists {
			continue
		}

		var ev Events
		switch events[i].Filter {
		case syscall.EVFILT_READ:
			ev |= Readable
		case syscall.EVFILT_WRITE:
			ev |= Writable
		}
		if events[i].Flags&syscall.EV_EOF != 0 {
			ev |= ErrorEvent
		}
		cb(fd, ev)
		fired++
	}
	return fired, nil
}

// Close closes the kqueue instance.
func (p *KqueuePoller) Close() error {
	return syscall.Close(p.kqfd)
}
