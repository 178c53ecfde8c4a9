/*
Package eventcore provides a high-throughput, edge-triggered HTTP/1.1 server
built directly on epoll/kqueue rather than net.Listener's per-connection
goroutine model.

Each Worker owns one Poller and one fixed-size ThreadPool: the poller's
event loop never blocks on I/O itself, it hands ready file descriptors to
the thread pool and immediately returns to Poll. Connections are held in a
preallocated conn.Pool indexed by file descriptor, so once the pool has
warmed up a new connection reuses an existing Connection object and its
buffers instead of allocating fresh ones.

Quick Start

	package main

	import (
		"github.com/eventcore/eventcore/app"
		"github.com/eventcore/eventcore/config"
		"github.com/eventcore/eventcore/core/httpcore"
	)

	func main() {
		cfg := config.New()
		a, err := app.New(cfg)
		if err != nil {
			panic(err)
		}

		a.Router().GET("/hello", func(req httpcore.Request) *httpcore.Response {
			return httpcore.MakeHTML(200, []byte("Hello, World!"))
		})

		if err := a.Run(); err != nil {
			panic(err)
		}
	}

Modules

The module is organized into:

  - app: process lifecycle — builds the Router and Server, blocks on
    SIGINT/SIGTERM, drives graceful shutdown.
  - config: flag-based defaults layered with EVENTCORE_* environment
    overrides via config.Manager.
  - core/server: Server (accept loop, socket options, GC tuning) and Worker
    (poller + thread pool + idle-connection sweep).
  - core/conn: pooled, fixed-slot Connection objects and their state
    machine.
  - core/poller: epoll (Linux) and kqueue (Darwin) edge-triggered,
    one-shot readiness, with a select-based fallback.
  - core/netutil: non-blocking sockets, TCP options, IPv4 addresses.
  - core/buf: growable byte buffer with head-reservation for incremental
    parsing, filled by a vectored (readv) read.
  - core/httpcore: HTTP/1.1 request parser, Request/Response types, and
    Router (exact or regex route matching, ordered middleware, panic
    recovery, optional PerformanceMonitor hook).
  - core/middleware: CORS, request ID, and rate-limiting Handler wrappers.
  - core/observability: PerformanceMonitor tracks per-route latency, error
    rate, and flags bottlenecks.
  - core/pool: fixed-worker ThreadPool.
  - core/queue: MPMC BlockingQueue drained by the ThreadPool.
  - core/optimize: SIMD-gated path comparison used by the router's exact
    match scan.
  - core/result: Result[T] sum type threaded through fallible socket and
    listener operations.
*/
package eventcore
