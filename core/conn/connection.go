// Package conn implements the per-socket Connection state machine and the
// fixed-size ConnectionPool that bounds how many of them exist at once,
// ported from eventcore's Connection and ConnectionPool.
package conn

import (
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/eventcore/eventcore/core/buf"
	"github.com/eventcore/eventcore/core/httpcore"
	"github.com/eventcore/eventcore/core/netutil"
)

// State is a Connection's lifecycle stage.
type State int

const (
	Connecting State = iota
	Connected
	Disconnecting
	Disconnected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Disconnecting:
		return "disconnecting"
	default:
		return "disconnected"
	}
}

// CloseFunc is invoked exactly once when a Connection finishes closing,
// letting the owning Worker deregister the fd from its poller and return
// the slot to the pool.
type CloseFunc func(fd int)

// Connection drives one socket through read -> parse -> route -> write.
// HandleRead and HandleWrite are meant to be invoked from the task a
// Worker's poller callback submits to its ThreadPool; a Connection itself
// does no blocking I/O setup and does no scheduling.
type Connection struct {
	sock     *netutil.Socket
	readBuf  *buf.Buffer
	writeBuf *buf.Buffer
	parser   *httpcore.Parser
	req      *httpcore.Request
	router   *httpcore.Router
	log      *zap.Logger

	state        State
	lastActivity time.Time
	maxBodySize  int

	closeOnce sync.Once
	onClose   CloseFunc
}

// New constructs a Connection over fd, not yet started.
func New(fd int, router *httpcore.Router, maxBodySize, readBufSize, writeBufSize int, log *zap.Logger) *Connection {
	if log == nil {
		log = zap.NewNop()
	}
	return &Connection{
		sock:        netutil.NewSocket(fd),
		readBuf:     buf.New(readBufSize),
		writeBuf:    buf.New(writeBufSize),
		parser:      httpcore.NewParser(maxBodySize),
		req:         httpcore.NewRequest(),
		router:      router,
		log:         log,
		state:       Connecting,
		maxBodySize: maxBodySize,
	}
}

// Reset rebinds this Connection to a new fd, clearing all per-request state.
// Used by ConnectionPool to recycle a slot's Connection instead of
// allocating a fresh one.
func (c *Connection) Reset(fd int) {
	c.sock = netutil.NewSocket(fd)
	c.readBuf.RetrieveAll()
	c.writeBuf.RetrieveAll()
	c.parser.Reset()
	c.req.Reset()
	c.state = Connecting
	c.lastActivity = time.Now()
	c.closeOnce = sync.Once{}
	c.onClose = nil
}

// SetCloseCallback registers the function invoked when the connection
// finishes closing.
func (c *Connection) SetCloseCallback(fn CloseFunc) { c.onClose = fn }

// Start transitions Connecting -> Connected.
func (c *Connection) Start() {
	c.state = Connected
	c.lastActivity = time.Now()
}

// FD returns the underlying file descriptor, or -1 once closed.
func (c *Connection) FD() int { return c.sock.FD() }

// IsConnected reports whether the connection is still usable for I/O.
func (c *Connection) IsConnected() bool { return c.state == Connected }

// State returns the current lifecycle stage.
func (c *Connection) State() State { return c.state }

// LastActivity returns the timestamp of the most recent successful read or
// connection start, used by the idle-connection sweep.
func (c *Connection) LastActivity() time.Time { return c.lastActivity }

// HandleRead drains the socket in an edge-triggered loop: repeated reads
// until EAGAIN, feeding each chunk to the parser and dispatching any
// requests that complete along the way.
func (c *Connection) HandleRead() {
	for {
		n, err := c.readBuf.ReadFromFD(c.sock.FD())
		if err != nil {
			if err == syscall.EAGAIN || err == syscall.EWOULDBLOCK {
				return
			}
			c.log.Debug("connection read error", zap.Int("fd", c.sock.FD()), zap.Error(err))
			c.ForceClose()
			return
		}
		if n == 0 {
			c.ForceClose()
			return
		}
		c.lastActivity = time.Now()
		if !c.processBufferedRequests() {
			return
		}
	}
}

// processBufferedRequests decodes and dispatches as many complete requests
// as are currently buffered. Returns false if the connection was closed
// while doing so (e.g. a parse failure or an oversize body).
func (c *Connection) processBufferedRequests() bool {
	for {
		done, err := c.parser.ParseRequest(c.readBuf, c.req)
		if err != nil {
			c.respondAndClose(errorResponse(err))
			return false
		}
		if !done {
			return true
		}

		resp := c.router.Route(*c.req)
		keepAlive := c.computeKeepAlive()
		resp.SetKeepAlive(keepAlive)
		c.writeBuf.Append(resp.ToBytes())

		c.parser.Reset()
		c.req.Reset()

		if !keepAlive {
			c.state = Disconnecting
		}

		if !c.HandleWrite() {
			return false
		}
		if c.state == Disconnecting {
			return false
		}
	}
}

func (c *Connection) computeKeepAlive() bool {
	if c.req.Version == httpcore.Version10 {
		return c.req.Header("Connection") == "keep-alive"
	}
	return c.req.Header("Connection") != "close"
}

func errorResponse(err error) *httpcore.Response {
	if err == httpcore.ErrTooLarge {
		return httpcore.Make413()
	}
	return httpcore.MakeHTML(400, []byte("<html><body><h1>400 Bad Request</h1></body></html>"))
}

func (c *Connection) respondAndClose(resp *httpcore.Response) {
	resp.SetKeepAlive(false)
	c.writeBuf.Append(resp.ToBytes())
	c.state = Disconnecting
	c.HandleWrite()
}

// HandleWrite drains as much of the write buffer to the socket as the
// kernel will currently accept. Returns false if the connection was closed
// as part of draining (a write error, or a successful drain while
// Disconnecting).
func (c *Connection) HandleWrite() bool {
	for c.writeBuf.ReadableBytes() > 0 {
		n, err := syscall.Write(c.sock.FD(), c.writeBuf.Peek())
		if err != nil {
			if err == syscall.EAGAIN || err == syscall.EWOULDBLOCK {
				return true
			}
			c.ForceClose()
			return false
		}
		c.writeBuf.Retrieve(n)
	}
	if c.state == Disconnecting {
		c.Shutdown()
		return false
	}
	return true
}

// HasPendingWrite reports whether data remains buffered for the socket,
// signalling the caller to re-arm the poller for Writable.
func (c *Connection) HasPendingWrite() bool {
	return c.writeBuf.ReadableBytes() > 0
}

// Shutdown sends a FIN and finishes closing once any buffered write data
// has drained (which HandleWrite's caller is responsible for having done).
func (c *Connection) Shutdown() {
	c.state = Disconnecting
	_ = c.sock.ShutdownWrite()
	c.finish()
}

// ForceClose closes the socket immediately without waiting for the write
// buffer to drain.
func (c *Connection) ForceClose() {
	c.finish()
}

func (c *Connection) finish() {
	c.closeOnce.Do(func() {
		fd := c.sock.FD()
		c.state = Disconnected
		c.sock.Close()
		if c.onClose != nil {
			c.onClose(fd)
		}
	})
}
