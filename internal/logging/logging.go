// Package logging builds the process logger. The terminal belongs to the
// TUI, so log output goes to a file.
package logging

import (
	"fmt"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Options struct {
	// Path is the log destination; "stderr" and "stdout" are accepted.
	Path  string
	Level string
	// Development switches to the human-readable console encoder.
	Development bool
}

// New returns a logr.Logger backed by zap and a flush function to call on
// exit. logr V(1) maps to the debug level.
func New(opts Options) (logr.Logger, func() error, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return logr.Discard(), func() error { return nil }, err
	}

	cfg := zap.NewProductionConfig()
	if opts.Development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Sampling = nil
	if opts.Path != "" {
		cfg.OutputPaths = []string{opts.Path}
		cfg.ErrorOutputPaths = []string{opts.Path}
	}

	zl, err := cfg.Build()
	if err != nil {
		return logr.Discard(), func() error { return nil }, fmt.Errorf("logging: build logger: %w", err)
	}
	return zapr.NewLogger(zl), zl.Sync, nil
}

func ParseLevel(s string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	}
	return zapcore.InfoLevel, fmt.Errorf("logging: unknown level %q", s)
}
