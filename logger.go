package dikernel

import (
	"io"
	"log/slog"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the logging interface used by the kernel and its pools.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)

	// WithComponent returns a logger tagging every record with component.
	WithComponent(component string) Logger
}

// SlogAdapter implements Logger on top of slog.
type SlogAdapter struct {
	slog *slog.Logger
}

// NewSlogAdapter creates a new SlogAdapter.
func NewSlogAdapter(l *slog.Logger) *SlogAdapter {
	return &SlogAdapter{slog: l}
}

func (s *SlogAdapter) Debug(msg string, args ...any) {
	s.slog.Debug(msg, args...)
}

func (s *SlogAdapter) Info(msg string, args ...any) {
	s.slog.Info(msg, args...)
}

func (s *SlogAdapter) Warn(msg string, args ...any) {
	s.slog.Warn(msg, args...)
}

func (s *SlogAdapter) Error(msg string, args ...any) {
	s.slog.Error(msg, args...)
}

// WithComponent returns a new logger with the component field added.
func (s *SlogAdapter) WithComponent(component string) Logger {
	return &SlogAdapter{slog: s.slog.With("component", component)}
}

// ZapAdapter implements Logger on top of a zap logger. Args are
// alternating keys and values, as with slog.
type ZapAdapter struct {
	sugar *zap.SugaredLogger
}

func NewZapAdapter(l *zap.Logger) *ZapAdapter {
	return &ZapAdapter{sugar: l.Sugar()}
}

func (z *ZapAdapter) Debug(msg string, args ...any) { z.sugar.Debugw(msg, args...) }
func (z *ZapAdapter) Info(msg string, args ...any)  { z.sugar.Infow(msg, args...) }
func (z *ZapAdapter) Warn(msg string, args ...any)  { z.sugar.Warnw(msg, args...) }
func (z *ZapAdapter) Error(msg string, args ...any) { z.sugar.Errorw(msg, args...) }

func (z *ZapAdapter) WithComponent(component string) Logger {
	return &ZapAdapter{sugar: z.sugar.With("component", component)}
}

// NewLogger builds a Logger writing to w. Backend "zap" selects zap,
// anything else slog. Format is "json" or "text"; unknown levels fall back
// to info.
func NewLogger(cfg LogConfig, w io.Writer) Logger {
	level := parseLevel(cfg.Level)
	json := strings.EqualFold(cfg.Format, "json")
	if strings.EqualFold(cfg.Backend, "zap") {
		return NewZapAdapter(newZapLogger(level, json, w))
	}

	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if json {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return NewSlogAdapter(slog.New(h))
}

func newZapLogger(level slog.Level, json bool, w io.Writer) *zap.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	if json {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		enc = zapcore.NewConsoleEncoder(encCfg)
	}
	return zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), zapLevel(level)))
}

func zapLevel(level slog.Level) zapcore.Level {
	switch {
	case level <= slog.LevelDebug:
		return zapcore.DebugLevel
	case level <= slog.LevelInfo:
		return zapcore.InfoLevel
	case level <= slog.LevelWarn:
		return zapcore.WarnLevel
	}
	return zapcore.ErrorLevel
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

type nopLogger struct{}

// NopLogger returns a Logger that discards everything.
func NopLogger() Logger {
	return nopLogger{}
}

func (nopLogger) Debug(string, ...any)          {}
func (nopLogger) Info(string, ...any)           {}
func (nopLogger) Warn(string, ...any)           {}
func (nopLogger) Error(string, ...any)          {}
func (n nopLogger) WithComponent(string) Logger { return n }
