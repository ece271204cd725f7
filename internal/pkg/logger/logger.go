package logger

import (
	"context"
	"os"
	"strings"
	"sync"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	globalLogger *zap.SugaredLogger
	mu           sync.RWMutex
	once         sync.Once
)

// Config controls level, encoding and an optional rotated log file.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	File   string // optional path, rotated by size
}

func Init(cfg Config) {
	once.Do(func() {
		Set(New(cfg))
	})
}

// New builds a logger without touching the global instance.
func New(cfg Config) *zap.Logger {
	level := parseLevel(cfg.Level)
	encoder := newEncoder(cfg.Format)

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), level),
	}
	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    100, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		}
		// file output is always JSON
		cores = append(cores, zapcore.NewCore(newEncoder("json"), zapcore.AddSync(rotator), level))
	}

	return zap.New(zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.AddCallerSkip(1),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
}

// Set replaces the global logger. Tests use it to install an observer.
func Set(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	globalLogger = l.Sugar()
}

// Get returns the global logger instance
func Get() *zap.SugaredLogger {
	mu.RLock()
	l := globalLogger
	mu.RUnlock()
	if l == nil {
		Init(Config{Level: "info", Format: "json"})
		mu.RLock()
		l = globalLogger
		mu.RUnlock()
	}
	return l
}

// Helper functions for quick logging
func Info(msg string, args ...any) {
	Get().Infow(msg, args...)
}

func Error(msg string, args ...any) {
	Get().Errorw(msg, args...)
}

func Warn(msg string, args ...any) {
	Get().Warnw(msg, args...)
}

func Debug(msg string, args ...any) {
	Get().Debugw(msg, args...)
}

func With(args ...any) *zap.SugaredLogger {
	return Get().With(args...)
}

func Sync() {
	_ = Get().Sync()
}

// LogError logs err with the trace id of ctx when one is recorded.
func LogError(ctx context.Context, err error, msg string, args ...any) {
	if err == nil {
		return
	}
	args = append(args, "error", err.Error())
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		args = append(args, "trace_id", sc.TraceID().String())
	}
	Get().Errorw(msg, args...)
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func newEncoder(format string) zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "time"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	if strings.ToLower(format) == "console" {
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(cfg)
	}
	return zapcore.NewJSONEncoder(cfg)
}
