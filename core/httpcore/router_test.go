package httpcore

import (
	"strconv"
	"testing"

	"github.com/eventcore/eventcore/core/observability"
)

func TestRouterExactMatchFirstWins(t *testing.T) {
	r := NewRouter()
	calls := 0
	r.GET("/hello", func(req Request) *Response {
		calls++
		return MakeHTML(200, []byte("first"))
	})
	r.GET("/hello", func(req Request) *Response {
		calls++
		return MakeHTML(200, []byte("second"))
	})

	resp := r.Route(Request{Method: MethodGET, Path: "/hello"})
	if string(resp.Body) != "first" {
		t.Fatalf("got body %q, want first", resp.Body)
	}
	if calls != 1 {
		t.Fatalf("expected exactly one handler invocation, got %d", calls)
	}
}

func TestRouterRegexPatternDetection(t *testing.T) {
	r := NewRouter()
	r.GET(`/users/[0-9]+`, func(req Request) *Response {
		return MakeHTML(200, []byte("numeric"))
	})
	r.GET("/users/me", func(req Request) *Response {
		return MakeHTML(200, []byte("me"))
	})

	resp := r.Route(Request{Method: MethodGET, Path: "/users/42"})
	if string(resp.Body) != "numeric" {
		t.Fatalf("got %q", resp.Body)
	}

	resp = r.Route(Request{Method: MethodGET, Path: "/users/me"})
	if string(resp.Body) != "me" {
		t.Fatalf("got %q", resp.Body)
	}
}

func TestRouterDefaultNotFound(t *testing.T) {
	r := NewRouter()
	resp := r.Route(Request{Method: MethodGET, Path: "/missing"})
	if resp.StatusCode != 404 {
		t.Fatalf("got status %d, want 404", resp.StatusCode)
	}
}

func TestRouterCustomNotFound(t *testing.T) {
	r := NewRouter()
	r.SetNotFoundHandler(func(req Request) *Response {
		return MakeJSON(404, []byte(`{"error":"nope"}`))
	})
	resp := r.Route(Request{Method: MethodGET, Path: "/missing"})
	if resp.Headers["Content-Type"] != "application/json" {
		t.Fatalf("expected custom not-found handler to run, got headers %v", resp.Headers)
	}
}

func TestRouterRecoversHandlerPanic(t *testing.T) {
	r := NewRouter()
	r.GET("/boom", func(req Request) *Response {
		panic("kaboom")
	})
	resp := r.Route(Request{Method: MethodGET, Path: "/boom"})
	if resp.StatusCode != 500 {
		t.Fatalf("got status %d, want 500", resp.StatusCode)
	}
}

func TestRouterMiddlewarePrefixScoping(t *testing.T) {
	r := NewRouter()
	var seenByAdmin, seenByPublic bool
	r.UsePrefix("/admin", func(req *Request, resp *Response) { seenByAdmin = true })
	r.UsePrefix("/public", func(req *Request, resp *Response) { seenByPublic = true })
	r.GET("/admin/x", func(req Request) *Response { return MakeHTML(200, nil) })

	r.Route(Request{Method: MethodGET, Path: "/admin/x"})
	if !seenByAdmin || seenByPublic {
		t.Fatalf("expected only /admin middleware to run, got admin=%v public=%v", seenByAdmin, seenByPublic)
	}
}

func TestRouterManyStaticRoutesPicksCorrectOne(t *testing.T) {
	r := NewRouter()
	for i := 0; i < 500; i++ {
		i := i
		r.GET(pathForIndex(i), func(req Request) *Response {
			return MakeHTML(200, []byte(pathForIndex(i)))
		})
	}
	resp := r.Route(Request{Method: MethodGET, Path: pathForIndex(250)})
	if string(resp.Body) != pathForIndex(250) {
		t.Fatalf("got %q, want %q", resp.Body, pathForIndex(250))
	}
}

func pathForIndex(i int) string {
	return "/route" + strconv.Itoa(i)
}

func TestRouterRecordsMonitorStats(t *testing.T) {
	r := NewRouter()
	mon := observability.NewPerformanceMonitor()
	r.SetMonitor(mon)
	r.GET("/ping", func(req Request) *Response {
		return MakeJSON(200, []byte(`{}`))
	})

	r.Route(Request{Method: MethodGET, Path: "/ping"})
	r.Route(Request{Method: MethodGET, Path: "/ping"})

	if got := mon.CountFor("GET /ping"); got != 2 {
		t.Fatalf("CountFor(\"GET /ping\") = %d, want 2", got)
	}
}
