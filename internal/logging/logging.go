package logging

import (
	"fmt"
	"sort"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lms-platform/lms-backend/internal/config"
)

// Option adjusts the zap configuration before the logger is built.
type Option func(*zap.Config)

// WithLevel sets the minimum enabled level.
func WithLevel(level config.LogLevel) Option {
	return func(cfg *zap.Config) {
		cfg.Level = zap.NewAtomicLevelAt(ZapLevel(level))
	}
}

// WithDevelopment switches to human readable console output.
func WithDevelopment(enabled bool) Option {
	return func(cfg *zap.Config) {
		if !enabled {
			return
		}
		cfg.Development = true
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}
}

// New creates a production-ready structured logger configured for JSON output.
func New(opts ...Option) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.StacktraceKey = "stacktrace"
	cfg.DisableStacktrace = false
	for _, opt := range opts {
		opt(&cfg)
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

// ZapLevel maps a configured level onto zap's levels.
func ZapLevel(level config.LogLevel) zapcore.Level {
	switch level {
	case config.LevelDebug:
		return zapcore.DebugLevel
	case config.LevelWarning:
		return zapcore.WarnLevel
	case config.LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Registry hands out one named logger per configured logger name, each with
// its own minimum level.
type Registry struct {
	loggers  map[string]*zap.Logger
	fallback *zap.Logger
}

// NewRegistry builds a logger for every entry in levels. Names that were not
// configured get an INFO logger.
func NewRegistry(levels map[string]config.LogLevel, debug bool) (*Registry, error) {
	fallback, err := New(WithLevel(config.LevelInfo), WithDevelopment(debug))
	if err != nil {
		return nil, err
	}

	r := &Registry{loggers: make(map[string]*zap.Logger, len(levels)), fallback: fallback}
	for name, level := range levels {
		logger, err := New(WithLevel(level), WithDevelopment(debug))
		if err != nil {
			return nil, fmt.Errorf("logger %s: %w", name, err)
		}
		r.loggers[name] = logger.Named(name)
	}
	return r, nil
}

// Logger returns the logger registered under name.
func (r *Registry) Logger(name string) *zap.Logger {
	if logger, ok := r.loggers[name]; ok {
		return logger
	}
	return r.fallback.Named(name)
}

// Names returns the configured logger names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.loggers))
	for name := range r.loggers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Sync flushes every logger.
func (r *Registry) Sync() {
	for _, logger := range r.loggers {
		_ = logger.Sync()
	}
	_ = r.fallback.Sync()
}
