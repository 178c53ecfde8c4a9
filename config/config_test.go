package config

import "testing"

func TestApplyEnvOverridesLayersOverFlagDefaults(t *testing.T) {
	t.Setenv("EVENTCORE_NUMWORKERS", "8")
	t.Setenv("EVENTCORE_LOGLEVEL", "debug")
	t.Setenv("EVENTCORE_TCPNODELAY", "false")

	cfg := &Config{
		Host:                "0.0.0.0",
		NumWorkers:          4,
		MaxConnections:      10000,
		KeepAliveTimeoutSec: 60,
		TCPNoDelay:          true,
		LogLevel:            "info",
	}
	applyEnvOverrides(cfg)

	if cfg.NumWorkers != 8 {
		t.Errorf("NumWorkers = %d, want 8", cfg.NumWorkers)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.TCPNoDelay {
		t.Errorf("TCPNoDelay = true, want false")
	}
}

func TestApplyEnvOverridesDefaultsConnectionPoolSizeToMaxConnections(t *testing.T) {
	cfg := &Config{MaxConnections: 500, ConnectionPoolSize: 0}
	applyEnvOverrides(cfg)

	if cfg.ConnectionPoolSize != 500 {
		t.Errorf("ConnectionPoolSize = %d, want 500", cfg.ConnectionPoolSize)
	}
}

func TestApplyEnvOverridesBarePortVariable(t *testing.T) {
	t.Setenv("PORT", "9090")
	cfg := &Config{Port: 8080}
	applyEnvOverrides(cfg)

	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
}

func TestKeepAliveTimeoutConvertsSecondsToDuration(t *testing.T) {
	cfg := &Config{KeepAliveTimeoutSec: 30}
	if got := cfg.KeepAliveTimeout(); got.Seconds() != 30 {
		t.Errorf("KeepAliveTimeout() = %v, want 30s", got)
	}
}
