package middleware

import (
	"testing"

	"github.com/eventcore/eventcore/core/httpcore"
)

func okHandler(req httpcore.Request) *httpcore.Response {
	return httpcore.MakeJSON(200, []byte(`{}`))
}

func TestWithCORSAddsHeaders(t *testing.T) {
	h := WithCORS(okHandler)
	resp := h(httpcore.Request{Method: httpcore.MethodGET})
	if resp.Headers["Access-Control-Allow-Origin"] != "*" {
		t.Fatalf("missing CORS header, got %v", resp.Headers)
	}
}

func TestWithCORSShortCircuitsOptions(t *testing.T) {
	called := false
	h := WithCORS(func(req httpcore.Request) *httpcore.Response {
		called = true
		return okHandler(req)
	})
	resp := h(httpcore.Request{Method: httpcore.MethodOPTIONS})
	if called {
		t.Fatal("expected OPTIONS to short-circuit before calling next")
	}
	if resp.StatusCode != 204 {
		t.Fatalf("StatusCode = %d, want 204", resp.StatusCode)
	}
}

func TestWithRequestIDIncrementsPerCall(t *testing.T) {
	h := WithRequestID(okHandler)
	r1 := h(httpcore.Request{})
	r2 := h(httpcore.Request{})
	if r1.Headers["X-Request-ID"] == r2.Headers["X-Request-ID"] {
		t.Fatalf("expected distinct request IDs, got %q twice", r1.Headers["X-Request-ID"])
	}
}

func TestWithRateLimiterRejectsPastBudget(t *testing.T) {
	h := WithRateLimiter(2, okHandler)

	r1 := h(httpcore.Request{})
	r2 := h(httpcore.Request{})
	r3 := h(httpcore.Request{})

	if r1.StatusCode != 200 || r2.StatusCode != 200 {
		t.Fatalf("expected first two requests to pass, got %d and %d", r1.StatusCode, r2.StatusCode)
	}
	if r3.StatusCode != 429 {
		t.Fatalf("expected third request to be rate limited, got %d", r3.StatusCode)
	}
}
