package httpcore

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/eventcore/eventcore/core/observability"
	"github.com/eventcore/eventcore/core/optimize"
)

// Handler produces a Response for an immutable Request.
type Handler func(Request) *Response

// Middleware observes and may mutate a request copy before the route's
// handler (or the 404 handler) runs. The Response it receives is a scratch
// value: Route does not return it, so writes to it never reach the client.
type Middleware func(req *Request, resp *Response)

type route struct {
	pattern string
	re      *regexp.Regexp
	handler Handler
	isRegex bool
}

type middlewareEntry struct {
	prefix string
	fn     Middleware
}

// Router dispatches a Request to the first matching Route registered for
// its method, applying middlewares in registration order first. A pattern
// containing '(', '[', or '*' is compiled as a regular expression; every
// other pattern matches by exact string equality.
type Router struct {
	routes       map[Method][]route
	middlewares  []middlewareEntry
	notFound     Handler
	errorHandler func(err error) *Response
	monitor      *observability.PerformanceMonitor
}

// NewRouter returns an empty Router.
func NewRouter() *Router {
	return &Router{routes: make(map[Method][]route)}
}

// SetMonitor attaches a PerformanceMonitor that records call count, latency,
// and error rate for every dispatched route, keyed by "METHOD path". With no
// monitor attached (nil), Route skips the bookkeeping entirely.
func (r *Router) SetMonitor(m *observability.PerformanceMonitor) { r.monitor = m }

// AddRoute registers handler for method and pattern, appended after any
// existing routes for that method (first-match-wins is by insertion order).
func (r *Router) AddRoute(method Method, pattern string, handler Handler) error {
	rt := route{pattern: pattern, handler: handler}
	if strings.ContainsAny(pattern, "([*") {
		re, err := regexp.Compile("^" + pattern + "$")
		if err != nil {
			return fmt.Errorf("httpcore: compile route pattern %q: %w", pattern, err)
		}
		rt.re = re
		rt.isRegex = true
	}
	r.routes[method] = append(r.routes[method], rt)
	return nil
}

// GET, POST, PUT, DELETE, PATCH, HEAD, OPTIONS register a handler for the
// corresponding method. They panic on an invalid regex pattern, matching
// the common pattern-is-a-compile-time-constant use, while AddRoute is
// available directly for callers that want to handle the error.
func (r *Router) GET(pattern string, h Handler) { r.must(MethodGET, pattern, h) }
func (r *Router) POST(pattern string, h Handler) { r.must(MethodPOST, pattern, h) }
func (r *Router) PUT(pattern string, h Handler) { r.must(MethodPUT, pattern, h) }
func (r *Router) DELETE(pattern string, h Handler) { r.must(MethodDELETE, pattern, h) }
func (r *Router) PATCH(pattern string, h Handler) { r.must(MethodPATCH, pattern, h) }
func (r *Router) HEAD(pattern string, h Handler) { r.must(MethodHEAD, pattern, h) }
func (r *Router) OPTIONS(pattern string, h Handler) { r.must(MethodOPTIONS, pattern, h) }

func (r *Router) must(method Method, pattern string, h Handler) {
	if err := r.AddRoute(method, pattern, h); err != nil {
		panic(err)
	}
}

// Use appends a middleware applied to every request regardless of path.
func (r *Router) Use(mw Middleware) {
	r.middlewares = append(r.middlewares, middlewareEntry{fn: mw})
}

// UsePrefix appends a middleware applied only to requests whose path has
// the given prefix.
func (r *Router) UsePrefix(prefix string, mw Middleware) {
	r.middlewares = append(r.middlewares, middlewareEntry{prefix: prefix, fn: mw})
}

// SetNotFoundHandler overrides the default 404 response.
func (r *Router) SetNotFoundHandler(h Handler) { r.notFound = h }

// SetErrorHandler overrides the default 500 response produced when a
// handler or middleware panics; err carries the recovered value wrapped as
// an error.
func (r *Router) SetErrorHandler(h func(err error) *Response) { r.errorHandler = h }

// Route applies middlewares to a copy of req, then dispatches to the first
// matching route for req.Method, the not-found handler, or a default 404.
// A panic anywhere in a middleware or handler is recovered and turned into
// the error handler's response, or a default 500.
func (r *Router) Route(req Request) (resp *Response) {
	start := time.Now()
	key := req.Method.String() + " " + req.Path
	isError := false

	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("httpcore: handler panic: %v", rec)
			if r.errorHandler != nil {
				resp = r.errorHandler(err)
			} else {
				resp = Make500()
			}
			isError = true
		}
		if resp != nil && resp.StatusCode >= 500 {
			isError = true
		}
		if r.monitor != nil {
			r.monitor.RecordRequest(key, time.Since(start), isError)
		}
	}()

	modified := req
	working := NewResponse()
	for _, entry := range r.middlewares {
		if entry.prefix == "" || strings.HasPrefix(req.Path, entry.prefix) {
			entry.fn(&modified, working)
		}
	}

	for _, rt := range r.routes[req.Method] {
		if rt.isRegex {
			if m := rt.re.FindStringSubmatch(req.Path); m != nil {
				modified.Params = m[1:]
				return rt.handler(modified)
			}
			continue
		}
		if optimize.ComparePathSIMD(rt.pattern, req.Path) {
			return rt.handler(modified)
		}
	}

	if r.notFound != nil {
		return r.notFound(modified)
	}
	return Make404()
}
