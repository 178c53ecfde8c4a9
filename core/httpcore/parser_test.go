package httpcore

import (
	"testing"

	"github.com/eventcore/eventcore/core/buf"
)

func TestParseSimpleGetRequest(t *testing.T) {
	b := buf.New(buf.InitialSize)
	b.AppendString("GET /hello?x=1 HTTP/1.1\r\nHost: localhost\r\n\r\n")

	p := NewParser(0)
	req := NewRequest()
	done, err := p.ParseRequest(b, req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !done {
		t.Fatal("expected request to be complete")
	}
	if req.Method != MethodGET || req.Path != "/hello" || req.Query != "x=1" {
		t.Fatalf("got method=%v path=%q query=%q", req.Method, req.Path, req.Query)
	}
	if req.Header("Host") != "localhost" {
		t.Fatalf("got Host=%q", req.Header("Host"))
	}
}

func TestParseRequestWithBody(t *testing.T) {
	b := buf.New(buf.InitialSize)
	body := "hello world"
	b.AppendString("POST /echo HTTP/1.1\r\nContent-Length: 11\r\n\r\n" + body)

	p := NewParser(0)
	req := NewRequest()
	done, err := p.ParseRequest(b, req)
	if err != nil || !done {
		t.Fatalf("done=%v err=%v", done, err)
	}
	if string(req.Body) != body {
		t.Fatalf("got body %q", req.Body)
	}
}

func TestParseAcrossPartialChunks(t *testing.T) {
	b := buf.New(buf.InitialSize)
	full := "PUT /chunked HTTP/1.1\r\nContent-Length: 5\r\n\r\nabcde"

	p := NewParser(0)
	req := NewRequest()
	var done bool
	var err error
	for i := 0; i < len(full); i++ {
		b.AppendString(string(full[i]))
		done, err = p.ParseRequest(b, req)
		if err != nil {
			t.Fatalf("unexpected error at byte %d: %v", i, err)
		}
		if done {
			break
		}
	}
	if !done {
		t.Fatal("expected request to complete by end of stream")
	}
	if string(req.Body) != "abcde" {
		t.Fatalf("got body %q", req.Body)
	}
}

func TestParseRejectsUnknownMethod(t *testing.T) {
	b := buf.New(buf.InitialSize)
	b.AppendString("FOO / HTTP/1.1\r\n\r\n")

	p := NewParser(0)
	req := NewRequest()
	_, err := p.ParseRequest(b, req)
	if err == nil {
		t.Fatal("expected a parse error for an unknown method")
	}
}

func TestParseRejectsOversizeBody(t *testing.T) {
	b := buf.New(buf.InitialSize)
	b.AppendString("POST /big HTTP/1.1\r\nContent-Length: 100\r\n\r\n")

	p := NewParser(10)
	req := NewRequest()
	_, err := p.ParseRequest(b, req)
	if err != ErrTooLarge {
		t.Fatalf("got err=%v, want ErrTooLarge", err)
	}
}

func TestResetAllowsReuseForNextRequest(t *testing.T) {
	b := buf.New(buf.InitialSize)
	b.AppendString("GET /a HTTP/1.1\r\n\r\n")

	p := NewParser(0)
	req := NewRequest()
	if _, err := p.ParseRequest(b, req); err != nil {
		t.Fatal(err)
	}

	p.Reset()
	req.Reset()
	b.AppendString("GET /b HTTP/1.1\r\n\r\n")
	done, err := p.ParseRequest(b, req)
	if err != nil || !done {
		t.Fatalf("done=%v err=%v", done, err)
	}
	if req.Path != "/b" {
		t.Fatalf("got path %q", req.Path)
	}
}
