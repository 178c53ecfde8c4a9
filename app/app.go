// Package app wires a Config, a logger, and a Router into a running Server,
// and drives its graceful shutdown on SIGINT/SIGTERM.
package app

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/eventcore/eventcore/config"
	"github.com/eventcore/eventcore/core/httpcore"
	"github.com/eventcore/eventcore/core/logging"
	"github.com/eventcore/eventcore/core/observability"
	"github.com/eventcore/eventcore/core/server"
)

// shutdownGrace bounds how long Run waits for in-flight connections to drain
// after a shutdown signal before returning anyway.
const shutdownGrace = 10 * time.Second

// App owns the Router route registration surface and the running Server.
type App struct {
	cfg     *config.Config
	log     *zap.Logger
	router  *httpcore.Router
	monitor *observability.PerformanceMonitor
	srv     *server.Server
}

// New builds an App from cfg, creating its logger and an empty Router with a
// PerformanceMonitor already attached.
// Register routes on Router() before calling Run.
func New(cfg *config.Config) (*App, error) {
	log, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return nil, fmt.Errorf("app: build logger: %w", err)
	}
	router := httpcore.NewRouter()
	monitor := observability.NewPerformanceMonitor()
	router.SetMonitor(monitor)
	return &App{
		cfg:     cfg,
		log:     log,
		router:  router,
		monitor: monitor,
	}, nil
}

// Router returns the Router routes should be registered on before Run.
func (a *App) Router() *httpcore.Router { return a.router }

// Logger returns the application's structured logger.
func (a *App) Logger() *zap.Logger { return a.log }

// Monitor returns the per-route PerformanceMonitor attached to Router().
func (a *App) Monitor() *observability.PerformanceMonitor { return a.monitor }

// Run starts the Server and blocks until a SIGINT or SIGTERM triggers
// graceful shutdown, or Start itself fails.
func (a *App) Run() error {
	srvCfg := server.Config{
		Host:                a.cfg.Host,
		Port:                a.cfg.Port,
		Backlog:             a.cfg.Backlog,
		NumWorkers:          a.cfg.NumWorkers,
		NumThreadsPerWorker: a.cfg.NumThreadsPerWorker,
		MaxConnections:      a.cfg.MaxConnections,
		ConnectionPoolSize:  a.cfg.ConnectionPoolSize,
		MaxRequestSize:      a.cfg.MaxRequestSize,
		KeepAliveTimeout:    a.cfg.KeepAliveTimeout(),
		TCPNoDelay:          a.cfg.TCPNoDelay,
		ReuseAddr:           a.cfg.ReuseAddr,
		ReusePort:           a.cfg.ReusePort,
		AcceptBatchSize:     a.cfg.AcceptBatchSize,
	}

	srv, err := server.New(srvCfg, a.router, a.log)
	if err != nil {
		return fmt.Errorf("app: build server: %w", err)
	}
	a.srv = srv

	if err := srv.Start(); err != nil {
		return fmt.Errorf("app: start server: %w", err)
	}

	a.log.Info("application started", zap.String("env", a.cfg.Env))
	a.awaitShutdown()
	return nil
}

func (a *App) awaitShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	a.log.Info("shutdown signal received", zap.String("signal", sig.String()))

	done := make(chan struct{})
	go func() {
		a.srv.Stop()
		close(done)
	}()

	select {
	case <-done:
		a.log.Info("graceful shutdown complete")
	case <-time.After(shutdownGrace):
		a.log.Warn("graceful shutdown timed out, exiting anyway")
	}
}
