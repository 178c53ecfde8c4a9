package server

import (
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/eventcore/eventcore/core/conn"
	"github.com/eventcore/eventcore/core/httpcore"
)

func newTestWorker(t *testing.T, router *httpcore.Router) (*Worker, *conn.Pool) {
	t.Helper()
	pool := conn.NewPool(4, router, 0, 1024, 1024, nil)
	w, err := NewWorker(0, pool, 2, 50*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("NewWorker: %v", err)
	}
	w.Start()
	t.Cleanup(w.Stop)
	return w, pool
}

func socketpair(t *testing.T) (int, int) {
	t.Helper()
	fds, err := syscall.Socketpair(syscall.AF_UNIX, syscall.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	if err := syscall.SetNonblock(fds[0], true); err != nil {
		t.Fatalf("set nonblock: %v", err)
	}
	t.Cleanup(func() { syscall.Close(fds[1]) })
	return fds[0], fds[1]
}

func TestWorkerServesRequestOverSocketpair(t *testing.T) {
	router := httpcore.NewRouter()
	router.GET("/ping", func(req httpcore.Request) *httpcore.Response {
		return httpcore.MakeJSON(200, []byte(`{"pong":true}`))
	})

	w, pool := newTestWorker(t, router)

	serverFD, clientFD := socketpair(t)
	c, ok := pool.Acquire(serverFD)
	if !ok {
		t.Fatal("expected Acquire to succeed")
	}
	if err := w.AddConnection(c); err != nil {
		t.Fatalf("AddConnection: %v", err)
	}

	req := "GET /ping HTTP/1.1\r\nHost: localhost\r\nConnection: close\r\n\r\n"
	if _, err := syscall.Write(clientFD, []byte(req)); err != nil {
		t.Fatalf("write request: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	var out []byte
	buf := make([]byte, 4096)
	for time.Now().Before(deadline) {
		n, err := syscall.Read(clientFD, buf)
		if err == syscall.EAGAIN || err == syscall.EWOULDBLOCK {
			time.Sleep(5 * time.Millisecond)
			continue
		}
		if n > 0 {
			out = append(out, buf[:n]...)
		}
		if strings.Contains(string(out), "pong") || err != nil {
			break
		}
	}

	if !strings.HasPrefix(string(out), "HTTP/1.1 200 OK\r\n") {
		t.Fatalf("unexpected response head: %q", out)
	}
	if !strings.Contains(string(out), `"pong":true`) {
		t.Fatalf("response missing body, got %q", out)
	}
}

func TestWorkerIdleSweepClosesStaleConnections(t *testing.T) {
	router := httpcore.NewRouter()
	w, pool := newTestWorker(t, router)

	serverFD, _ := socketpair(t)
	c, ok := pool.Acquire(serverFD)
	if !ok {
		t.Fatal("expected Acquire to succeed")
	}
	if err := w.AddConnection(c); err != nil {
		t.Fatalf("AddConnection: %v", err)
	}

	deadline := time.Now().Add(idleSweepInterval + 2*time.Second)
	for time.Now().Before(deadline) {
		if w.ConnectionCount() == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected idle sweep to close the connection, still have %d", w.ConnectionCount())
}
