package server

import (
	"bufio"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/eventcore/eventcore/core/httpcore"
)

func newTestRouter(t *testing.T) *httpcore.Router {
	t.Helper()
	r := httpcore.NewRouter()
	r.GET("/ping", func(req httpcore.Request) *httpcore.Response {
		return httpcore.MakeJSON(200, []byte(`{"pong":true}`))
	})
	return r
}

func startTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	cfg.Host = "127.0.0.1"
	if cfg.Port == 0 {
		cfg.Port = 18080
	}
	if cfg.NumWorkers == 0 {
		cfg.NumWorkers = 2
	}
	if cfg.NumThreadsPerWorker == 0 {
		cfg.NumThreadsPerWorker = 2
	}
	if cfg.MaxConnections == 0 {
		cfg.MaxConnections = 16
	}
	if cfg.KeepAliveTimeout == 0 {
		cfg.KeepAliveTimeout = time.Second
	}

	s, err := New(cfg, newTestRouter(t), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(s.Stop)
	return s
}

func TestServerServesGETRequest(t *testing.T) {
	s := startTestServer(t, Config{Port: 18081})

	var conn net.Conn
	var err error
	for i := 0; i < 50; i++ {
		conn, err = net.DialTimeout("tcp", "127.0.0.1:18081", 50*time.Millisecond)
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_, err = conn.Write([]byte("GET /ping HTTP/1.1\r\nHost: localhost\r\nConnection: close\r\n\r\n"))
	if err != nil {
		t.Fatalf("write request: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	reader := bufio.NewReader(conn)
	statusLine, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("read status line: %v", err)
	}
	if statusLine != "HTTP/1.1 200 OK\r\n" {
		t.Fatalf("status line = %q", statusLine)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("read rest of response: %v", err)
	}
	if !strings.Contains(string(body), `"pong":true`) {
		t.Fatalf("body missing expected payload, got %q", body)
	}

	_ = s
}

func TestServerReturns404ForUnknownRoute(t *testing.T) {
	startTestServer(t, Config{Port: 18082})

	conn, err := net.DialTimeout("tcp", "127.0.0.1:18082", time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.Write([]byte("GET /nope HTTP/1.1\r\nHost: localhost\r\nConnection: close\r\n\r\n"))
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	reader := bufio.NewReader(conn)
	statusLine, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("read status line: %v", err)
	}
	if statusLine != "HTTP/1.1 404 Not Found\r\n" {
		t.Fatalf("status line = %q", statusLine)
	}
}

