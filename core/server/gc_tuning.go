package server

import (
	"runtime"
	"runtime/debug"
)

// GCConfig holds the garbage-collector tuning knobs applied at Start. A
// server holding tens of thousands of Connection and Buffer objects churns
// enough short-lived garbage that the default GOGC=100 triggers collections
// far more often than the allocation rate warrants.
type GCConfig struct {
	GOGC           int
	MemoryLimit    int64
	MinRetainExtra int64
}

// DefaultGCConfig favors throughput over heap footprint.
func DefaultGCConfig() GCConfig {
	return GCConfig{
		GOGC:           200,
		MinRetainExtra: 50 << 20,
	}
}

// applyGCConfig installs cfg process-wide. Called once from Start.
func applyGCConfig(cfg GCConfig) {
	if cfg.GOGC > 0 {
		debug.SetGCPercent(cfg.GOGC)
	}
	if cfg.MemoryLimit > 0 {
		debug.SetMemoryLimit(cfg.MemoryLimit)
	}
	if cfg.MinRetainExtra > 0 {
		runtime.GC()
		_ = make([]byte, cfg.MinRetainExtra)
	}
}

// RuntimeStats reports process-wide memory and goroutine counters alongside
// this Server's own connection and pool counters, for an operator inspecting
// a running instance.
type RuntimeStats struct {
	NumGoroutine int
	AllocBytes   uint64
	TotalAlloc   uint64
	Sys          uint64
	NumGC        uint32
	Pool         Stats
}

// Stats reports connection-pool occupancy; RuntimeStats carries it next to
// the runtime memory counters.
type Stats struct {
	PoolCapacity int
	PoolInUse    int
}

// RuntimeStats samples process memory counters and this server's connection
// pool occupancy.
func (s *Server) RuntimeStats() RuntimeStats {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	poolStats := s.connPool.Stats()
	return RuntimeStats{
		NumGoroutine: runtime.NumGoroutine(),
		AllocBytes:   ms.Alloc,
		TotalAlloc:   ms.TotalAlloc,
		Sys:          ms.Sys,
		NumGC:        ms.NumGC,
		Pool: Stats{
			PoolCapacity: poolStats.Capacity,
			PoolInUse:    poolStats.InUse,
		},
	}
}
