// Package middleware provides reusable response-affecting wrappers for
// CORS, request IDs, and rate limiting. The Router discards whatever a
// Middleware writes to its working Response; only the dispatched handler's
// own returned Response reaches the client. These are Handler wrappers
// rather than httpcore.Middleware values for exactly that reason — a
// Handler's returned Response is what the Router actually uses.
package middleware

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eventcore/eventcore/core/httpcore"
)

// WithCORS wraps next, adding permissive CORS headers to every response and
// short-circuiting OPTIONS preflight requests with a 204.
func WithCORS(next httpcore.Handler) httpcore.Handler {
	return func(req httpcore.Request) *httpcore.Response {
		if req.Method == httpcore.MethodOPTIONS {
			resp := httpcore.NewResponse()
			resp.SetStatus(204, "")
			addCORSHeaders(resp)
			return resp
		}
		resp := next(req)
		addCORSHeaders(resp)
		return resp
	}
}

func addCORSHeaders(resp *httpcore.Response) {
	resp.SetHeader("Access-Control-Allow-Origin", "*")
	resp.SetHeader("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	resp.SetHeader("Access-Control-Allow-Headers", "Content-Type, Authorization")
}

// WithRequestID wraps next, stamping every response with a monotonically
// increasing X-Request-ID. Each WithRequestID call keeps its own counter
// starting at 1, so IDs are unique only among responses from that wrapper.
func WithRequestID(next httpcore.Handler) httpcore.Handler {
	var counter uint64
	return func(req httpcore.Request) *httpcore.Response {
		id := atomic.AddUint64(&counter, 1)
		resp := next(req)
		resp.SetHeader("X-Request-ID", strconv.FormatUint(id, 10))
		return resp
	}
}

// WithRateLimiter wraps next with a token-bucket limiter refilled to
// requestsPerSecond once a second, rejecting requests past the bucket with
// a 429 instead of calling next.
func WithRateLimiter(requestsPerSecond int, next httpcore.Handler) httpcore.Handler {
	var (
		mu         sync.Mutex
		tokens     = requestsPerSecond
		lastRefill time.Time
	)

	return func(req httpcore.Request) *httpcore.Response {
		mu.Lock()
		now := time.Now()
		if lastRefill.IsZero() {
			lastRefill = now
		}
		if now.Sub(lastRefill) > time.Second {
			tokens = requestsPerSecond
			lastRefill = now
		}
		allowed := tokens > 0
		if allowed {
			tokens--
		}
		mu.Unlock()

		if !allowed {
			return httpcore.MakeJSON(429, []byte(`{"error":"Too Many Requests"}`))
		}
		return next(req)
	}
}
