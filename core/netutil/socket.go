package netutil

import (
	"fmt"
	"syscall"

	"github.com/eventcore/eventcore/core/result"
)

// Socket wraps a single file descriptor. It is exclusively owned: once
// handed off via Release, the wrapper left behind (fd -1) must not be used
// for I/O again. There is no finalizer — every code path that stops using a
// Socket must call Close or Release explicitly.
type Socket struct {
	fd int
}

// NewSocket wraps an already-open file descriptor.
func NewSocket(fd int) *Socket { return &Socket{fd: fd} }

// CreateTCP creates a new IPv4 TCP socket in blocking mode; SetNonblocking
// switches it to non-blocking.
func CreateTCP() result.Result[*Socket] {
	fd, err := syscall.Socket(syscall.AF_INET, syscall.SOCK_STREAM, 0)
	if err != nil {
		return result.Err[*Socket](fmt.Errorf("create tcp socket: %w", err))
	}
	return result.Ok(&Socket{fd: fd})
}

// FD returns the underlying file descriptor.
func (s *Socket) FD() int { return s.fd }

// IsValid reports whether the socket still owns an open descriptor.
func (s *Socket) IsValid() bool { return s.fd >= 0 }

// Release detaches the descriptor from this wrapper without closing it and
// returns it to the caller, who becomes its new owner.
func (s *Socket) Release() int {
	fd := s.fd
	s.fd = -1
	return fd
}

// Close closes the descriptor if still owned, and marks the socket invalid.
func (s *Socket) Close() error {
	if s.fd < 0 {
		return nil
	}
	fd := s.fd
	s.fd = -1
	return syscall.Close(fd)
}

// Bind binds the socket to addr.
func (s *Socket) Bind(addr Address) result.Result[struct{}] {
	sa := &syscall.SockaddrInet4{Port: int(addr.Port())}
	copy(sa.Addr[:], addr.ip[:])
	if err := syscall.Bind(s.fd, sa); err != nil {
		return result.Err[struct{}](fmt.Errorf("bind %s: %w", addr, err))
	}
	return result.Ok(struct{}{})
}

// Listen marks the socket as a listening socket with the given backlog.
func (s *Socket) Listen(backlog int) result.Result[struct{}] {
	if backlog <= 0 {
		backlog = 1024
	}
	if err := syscall.Listen(s.fd, backlog); err != nil {
		return result.Err[struct{}](fmt.Errorf("listen: %w", err))
	}
	return result.Ok(struct{}{})
}

// Accept accepts one pending connection. Callers loop until this returns
// syscall.EAGAIN on a non-blocking listener.
func (s *Socket) Accept() result.Result[*Socket] {
	nfd, _, err := syscall.Accept(s.fd)
	if err != nil {
		return result.Err[*Socket](err)
	}
	return result.Ok(&Socket{fd: nfd})
}

// SetNonblocking toggles O_NONBLOCK.
func (s *Socket) SetNonblocking(enable bool) result.Result[struct{}] {
	if err := syscall.SetNonblock(s.fd, enable); err != nil {
		return result.Err[struct{}](fmt.Errorf("set nonblocking: %w", err))
	}
	return result.Ok(struct{}{})
}

// SetReuseAddr toggles SO_REUSEADDR.
func (s *Socket) SetReuseAddr(enable bool) result.Result[struct{}] {
	return s.setBoolOpt(syscall.SOL_SOCKET, syscall.SO_REUSEADDR, enable)
}

// SetReusePort toggles SO_REUSEPORT where the platform defines it, and is a
// no-op on platforms where this package does not know the option's value.
func (s *Socket) SetReusePort(enable bool) result.Result[struct{}] {
	if soReusePort == 0 {
		return result.Ok(struct{}{})
	}
	return s.setBoolOpt(syscall.SOL_SOCKET, soReusePort, enable)
}

// SetNoDelay toggles TCP_NODELAY.
func (s *Socket) SetNoDelay(enable bool) result.Result[struct{}] {
	return s.setBoolOpt(syscall.IPPROTO_TCP, syscall.TCP_NODELAY, enable)
}

// SetKeepAlive toggles SO_KEEPALIVE.
func (s *Socket) SetKeepAlive(enable bool) result.Result[struct{}] {
	return s.setBoolOpt(syscall.SOL_SOCKET, syscall.SO_KEEPALIVE, enable)
}

func (s *Socket) setBoolOpt(level, name int, enable bool) result.Result[struct{}] {
	v := 0
	if enable {
		v = 1
	}
	if err := syscall.SetsockoptInt(s.fd, level, name, v); err != nil {
		return result.Err[struct{}](fmt.Errorf("setsockopt(%d,%d): %w", level, name, err))
	}
	return result.Ok(struct{}{})
}

// ShutdownWrite sends a FIN without closing the descriptor, letting any
// already-queued inbound data still be read.
func (s *Socket) ShutdownWrite() error {
	return syscall.Shutdown(s.fd, syscall.SHUT_WR)
}
