package config

import (
	"flag"
	"os"
	"strconv"
	"time"
)

// Config holds the full set of knobs the server, its workers, and the
// acceptor need at startup. Flags supply the defaults; for every field except
// Port, an EVENTCORE_* environment variable present in the process overrides
// its corresponding flag, layered in with Manager the same way LoadFromEnv
// does for any other consumer of Manager. Port is overridden by the bare
// PORT variable instead.
type Config struct {
	Host    string
	Port    uint16
	Backlog int

	NumWorkers          int
	NumThreadsPerWorker int
	MaxConnections      int
	ConnectionPoolSize  int

	MaxRequestSize      int
	KeepAliveTimeoutSec int

	TCPNoDelay bool
	ReuseAddr  bool
	ReusePort  bool

	AcceptBatchSize int

	LogLevel string
	LogFile  string
	Env      string
}

// KeepAliveTimeout is KeepAliveTimeoutSec as a time.Duration.
func (c *Config) KeepAliveTimeout() time.Duration {
	return time.Duration(c.KeepAliveTimeoutSec) * time.Second
}

// New parses flags, then layers EVENTCORE_* environment overrides on top via
// a Manager, and returns the resulting Config.
func New() *Config {
	cfg := &Config{}

	flag.StringVar(&cfg.Host, "host", "0.0.0.0", "listen address")
	port := flag.Int("port", 8080, "listen port")
	flag.IntVar(&cfg.Backlog, "backlog", 4096, "listen(2) backlog")
	flag.IntVar(&cfg.NumWorkers, "workers", 4, "number of event-loop workers (0: autodetect via runtime.NumCPU)")
	flag.IntVar(&cfg.NumThreadsPerWorker, "threads-per-worker", 4, "thread pool size per worker")
	flag.IntVar(&cfg.MaxConnections, "max-connections", 100000, "maximum concurrent connections")
	flag.IntVar(&cfg.ConnectionPoolSize, "connection-pool-size", 0, "connection slot pool size (defaults to max-connections)")
	flag.IntVar(&cfg.MaxRequestSize, "max-request-size", 1<<20, "maximum request body size in bytes")
	flag.IntVar(&cfg.KeepAliveTimeoutSec, "keepalive-timeout", 60, "idle keep-alive timeout in seconds")
	flag.BoolVar(&cfg.TCPNoDelay, "tcp-nodelay", true, "set TCP_NODELAY on accepted connections")
	flag.BoolVar(&cfg.ReuseAddr, "reuse-addr", true, "set SO_REUSEADDR on the listening socket")
	flag.BoolVar(&cfg.ReusePort, "reuse-port", true, "set SO_REUSEPORT on the listening socket")
	flag.IntVar(&cfg.AcceptBatchSize, "accept-batch-size", 100, "max accept(2) calls per acceptor iteration")
	flag.StringVar(&cfg.LogLevel, "log-level", "info", "log level: debug, info, warn, error")
	flag.StringVar(&cfg.LogFile, "log-file", "", "log file path (empty: stderr)")
	flag.StringVar(&cfg.Env, "env", "development", "environment (development/production)")

	flag.Parse()
	cfg.Port = uint16(*port)

	applyEnvOverrides(cfg)
	return cfg
}

// applyEnvOverrides layers EVENTCORE_* variables (and the bare PORT variable,
// matching common container conventions) over whatever the flags produced.
func applyEnvOverrides(cfg *Config) {
	mgr := NewManager()
	mgr.LoadFromEnv("EVENTCORE")

	cfg.Host = mgr.GetString("host", cfg.Host)
	cfg.Backlog = mgr.GetInt("backlog", cfg.Backlog)
	cfg.NumWorkers = mgr.GetInt("numworkers", cfg.NumWorkers)
	cfg.NumThreadsPerWorker = mgr.GetInt("numthreadsperworker", cfg.NumThreadsPerWorker)
	cfg.MaxConnections = mgr.GetInt("maxconnections", cfg.MaxConnections)
	cfg.ConnectionPoolSize = mgr.GetInt("connectionpoolsize", cfg.ConnectionPoolSize)
	cfg.MaxRequestSize = mgr.GetInt("maxrequestsize", cfg.MaxRequestSize)
	cfg.KeepAliveTimeoutSec = mgr.GetInt("keepalivetimeoutsec", cfg.KeepAliveTimeoutSec)
	cfg.TCPNoDelay = mgr.GetBool("tcpnodelay", cfg.TCPNoDelay)
	cfg.ReuseAddr = mgr.GetBool("reuseaddr", cfg.ReuseAddr)
	cfg.ReusePort = mgr.GetBool("reuseport", cfg.ReusePort)
	cfg.AcceptBatchSize = mgr.GetInt("acceptbatchsize", cfg.AcceptBatchSize)
	cfg.LogLevel = mgr.GetString("loglevel", cfg.LogLevel)
	cfg.LogFile = mgr.GetString("logfile", cfg.LogFile)
	cfg.Env = mgr.GetString("env", cfg.Env)

	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.ParseUint(port, 10, 16); err == nil {
			cfg.Port = uint16(p)
		}
	}

	if cfg.ConnectionPoolSize <= 0 {
		cfg.ConnectionPoolSize = cfg.MaxConnections
	}
}
