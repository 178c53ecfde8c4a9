// Package buf implements the growable byte buffer used by every connection's
// read and write paths: a muduo-style buffer with a small fixed head
// reservation so response/request framing can prepend without copying the
// body, and a readv-based fill that avoids a second syscall on most reads.
package buf

import (
	"bytes"

	"golang.org/x/sys/unix"
)

const (
	// InitialSize is the default writable capacity a Buffer starts with,
	// not counting the prepend reservation.
	InitialSize = 1024
	// PrependSize is the fixed head room reserved ahead of read_index for
	// cheap prepending (e.g. writing a length-prefix after the body is known).
	PrependSize = 8

	extraBufSize = 65536
)

var crlf = []byte("\r\n")

// Buffer is a non-blocking byte buffer with a read and write cursor.
// Zero value is not usable; construct with New.
type Buffer struct {
	buf      []byte
	readIdx  int
	writeIdx int
}

// New returns a Buffer with at least initialSize bytes of writable capacity.
func New(initialSize int) *Buffer {
	if initialSize <= 0 {
		initialSize = InitialSize
	}
	return &Buffer{
		buf:      make([]byte, PrependSize+initialSize),
		readIdx:  PrependSize,
		writeIdx: PrependSize,
	}
}

// ReadableBytes returns the number of bytes available to read.
func (b *Buffer) ReadableBytes() int { return b.writeIdx - b.readIdx }

// WritableBytes returns the number of bytes that can be written without growing.
func (b *Buffer) WritableBytes() int { return len(b.buf) - b.writeIdx }

// PrependableBytes returns the number of bytes available ahead of read_index.
func (b *Buffer) PrependableBytes() int { return b.readIdx }

// Peek returns the readable region without consuming it. The slice aliases
// the buffer's storage and is only valid until the next mutating call.
func (b *Buffer) Peek() []byte { return b.buf[b.readIdx:b.writeIdx] }

// Retrieve consumes n bytes from the front of the readable region.
func (b *Buffer) Retrieve(n int) {
	if n < b.ReadableBytes() {
		b.readIdx += n
	} else {
		b.RetrieveAll()
	}
}

// RetrieveAll resets both cursors to the end of the prepend reservation
// (PrependSize), discarding everything buffered.
func (b *Buffer) RetrieveAll() {
	b.readIdx = PrependSize
	b.writeIdx = PrependSize
}

// RetrieveAsString consumes and returns the first n readable bytes.
func (b *Buffer) RetrieveAsString(n int) string {
	s := string(b.Peek()[:n])
	b.Retrieve(n)
	return s
}

// RetrieveAllAsString consumes and returns everything currently readable.
func (b *Buffer) RetrieveAllAsString() string {
	return b.RetrieveAsString(b.ReadableBytes())
}

// Append copies data into the writable region, growing or shifting as needed.
func (b *Buffer) Append(data []byte) {
	b.EnsureWritable(len(data))
	copy(b.buf[b.writeIdx:], data)
	b.HasWritten(len(data))
}

// AppendString is a convenience wrapper around Append for string data.
func (b *Buffer) AppendString(s string) {
	b.Append([]byte(s))
}

// EnsureWritable grows or repacks the buffer so at least n bytes are writable.
func (b *Buffer) EnsureWritable(n int) {
	if b.WritableBytes() < n {
		b.makeSpace(n)
	}
}

// BeginWrite returns the writable region's start, for callers that write
// directly into the buffer (e.g. a scatter read) before calling HasWritten.
func (b *Buffer) BeginWrite() []byte { return b.buf[b.writeIdx:] }

// HasWritten advances the write cursor after data was placed directly via
// BeginWrite's slice.
func (b *Buffer) HasWritten(n int) { b.writeIdx += n }

// Cap returns the buffer's total backing capacity.
func (b *Buffer) Cap() int { return len(b.buf) }

func (b *Buffer) makeSpace(n int) {
	if b.WritableBytes()+b.PrependableBytes() < n+PrependSize {
		newBuf := make([]byte, b.writeIdx+n)
		copy(newBuf, b.buf)
		b.buf = newBuf
		return
	}
	readable := b.ReadableBytes()
	copy(b.buf[PrependSize:], b.buf[b.readIdx:b.writeIdx])
	b.readIdx = PrependSize
	b.writeIdx = b.readIdx + readable
}

// ReadFromFD fills the buffer from fd using a two-segment scatter read: the
// buffer's own writable region plus a large stack-local overflow area, so a
// single syscall can usually drain a socket's receive buffer even when this
// Buffer's writable region is small. Returns the number of bytes read and the
// raw error from the read syscall (including EAGAIN), mirroring the
// edge-triggered read-until-EAGAIN discipline the caller is expected to run.
func (b *Buffer) ReadFromFD(fd int) (int, error) {
	var extra [extraBufSize]byte
	writable := b.WritableBytes()

	// A zero-length first iovec is invalid on some platforms; guard it by
	// always ensuring at least one writable byte before the scatter read.
	if writable == 0 {
		b.EnsureWritable(1)
		writable = b.WritableBytes()
	}

	iov := make([][]byte, 0, 2)
	iov = append(iov, b.buf[b.writeIdx:b.writeIdx+writable])
	if writable < extraBufSize {
		iov = append(iov, extra[:])
	}

	n, err := unix.Readv(fd, iov)
	if err != nil {
		return n, err
	}
	if n <= writable {
		b.writeIdx += n
	} else {
		b.writeIdx = len(b.buf)
		b.Append(extra[:n-writable])
	}
	return n, nil
}

// FindCRLF returns the index within the readable region of the first CRLF,
// or -1 if none is present yet.
func (b *Buffer) FindCRLF() int { return b.FindCRLFFrom(0) }

// FindCRLFFrom is FindCRLF starting the scan at offset bytes into the
// readable region.
func (b *Buffer) FindCRLFFrom(offset int) int {
	readable := b.Peek()
	if offset > len(readable) {
		return -1
	}
	idx := bytes.Index(readable[offset:], crlf)
	if idx < 0 {
		return -1
	}
	return offset + idx
}

// FindEOL returns the index within the readable region of the first '\n',
// or -1 if none is present yet.
func (b *Buffer) FindEOL() int { return b.FindEOLFrom(0) }

// FindEOLFrom is FindEOL starting the scan at offset bytes into the readable region.
func (b *Buffer) FindEOLFrom(offset int) int {
	readable := b.Peek()
	if offset > len(readable) {
		return -1
	}
	idx := bytes.IndexByte(readable[offset:], '\n')
	if idx < 0 {
		return -1
	}
	return offset + idx
}
