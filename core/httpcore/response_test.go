package httpcore

import (
	"strings"
	"testing"
)

func TestResponseSerializationRoundTrip(t *testing.T) {
	r := NewResponse()
	r.SetStatus(200, "")
	r.SetContentType("text/plain")
	r.SetBody([]byte("Hello, World!"))

	out := string(r.ToBytes())
	if !strings.HasPrefix(out, "HTTP/1.1 200 OK\r\n") {
		t.Fatalf("bad status line: %q", out)
	}
	if !strings.Contains(out, "Content-Length: 13\r\n") {
		t.Fatalf("missing Content-Length: %q", out)
	}
	if !strings.HasSuffix(out, "\r\n\r\nHello, World!") {
		t.Fatalf("bad body framing: %q", out)
	}
}

func TestResponseFactories(t *testing.T) {
	if r := Make404(); r.StatusCode != 404 {
		t.Fatalf("Make404 status = %d", r.StatusCode)
	}
	if r := Make500(); r.StatusCode != 500 {
		t.Fatalf("Make500 status = %d", r.StatusCode)
	}
	if r := Make413(); r.StatusCode != 413 || r.KeepAlive {
		t.Fatalf("Make413 status=%d keepAlive=%v", r.StatusCode, r.KeepAlive)
	}
	if r := MakeJSON(201, []byte(`{}`)); r.Headers["Content-Type"] != "application/json" {
		t.Fatalf("MakeJSON content-type = %q", r.Headers["Content-Type"])
	}
}
