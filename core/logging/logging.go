// Package logging builds the process-wide structured logger, matching the
// level taxonomy of eventcore's Logger singleton (core/logger.h: debug,
// info, warn, error) while using zap — as Tochemey-goakt's log package
// does — for the actual encoding and sink plumbing, instead of a hand-rolled
// singleton with printf-style methods.
package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level names accepted in Config.LogLevel.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// New builds a *zap.Logger writing level-and-above messages to either
// os.Stderr (when file is empty) or the named file, appending if it exists.
func New(level, file string) (*zap.Logger, error) {
	zapLevel, err := parseLevel(level)
	if err != nil {
		return nil, err
	}

	var writer zapcore.WriteSyncer
	if file == "" {
		writer = zapcore.AddSync(os.Stderr)
	} else {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("logging: open log file %s: %w", file, err)
		}
		writer = zapcore.AddSync(f)
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), writer, zapLevel)
	return zap.New(core, zap.AddCaller()), nil
}

func parseLevel(level string) (zapcore.Level, error) {
	switch level {
	case "", LevelInfo:
		return zapcore.InfoLevel, nil
	case LevelDebug:
		return zapcore.DebugLevel, nil
	case LevelWarn:
		return zapcore.WarnLevel, nil
	case LevelError:
		return zapcore.ErrorLevel, nil
	default:
		return 0, fmt.Errorf("logging: unknown log level %q", level)
	}
}
