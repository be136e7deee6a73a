// Package logging wraps zap with the fields the worker needs on every line:
// submission id and worker identity, so a judge run can be grepped end to
// end across compile, run, and publish.
package logging

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxKey int

const submissionIDKey ctxKey = iota

// WithSubmissionID returns a context carrying the submission id for log
// correlation.
func WithSubmissionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, submissionIDKey, id)
}

var global *Logger

// Logger wraps a zap.Logger with context-aware field extraction.
type Logger struct {
	zap   *zap.Logger
	level zapcore.Level
}

// Config controls logger construction.
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json, console
	OutputPath string // file path or "stdout"
	Worker     string // worker identity, e.g. hostname or pool name
}

// Init builds the process-wide logger.
func Init(cfg Config) error {
	l, err := New(cfg)
	if err != nil {
		return err
	}
	global = l
	return nil
}

// New builds a standalone logger instance.
func New(cfg Config) (*Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
	}

	encoderCfg := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     rfc3339Encoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	if cfg.Format == "console" {
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	var sink zapcore.WriteSyncer
	switch cfg.OutputPath {
	case "", "stdout":
		sink = zapcore.AddSync(os.Stdout)
	default:
		f, err := os.OpenFile(cfg.OutputPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		sink = zapcore.AddSync(f)
	}

	core := zapcore.NewCore(encoder, sink, level)
	opts := []zap.Option{zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zapcore.ErrorLevel)}
	if cfg.Worker != "" {
		opts = append(opts, zap.Fields(zap.String("worker", cfg.Worker)))
	}

	return &Logger{zap: zap.New(core, opts...), level: level}, nil
}

func rfc3339Encoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format(time.RFC3339))
}

// WithContext returns a zap.Logger annotated with the submission id, if any.
func (l *Logger) WithContext(ctx context.Context) *zap.Logger {
	if id, ok := ctx.Value(submissionIDKey).(string); ok && id != "" {
		return l.zap.With(zap.String("submission_id", id))
	}
	return l.zap
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error { return l.zap.Sync() }

func ensureGlobal() *Logger {
	if global == nil {
		global, _ = New(Config{})
	}
	return global
}

// Debug logs at debug level using the global logger.
func Debug(ctx context.Context, msg string, fields ...zap.Field) {
	ensureGlobal().WithContext(ctx).Debug(msg, fields...)
}

// Info logs at info level using the global logger.
func Info(ctx context.Context, msg string, fields ...zap.Field) {
	ensureGlobal().WithContext(ctx).Info(msg, fields...)
}

// Warn logs at warn level using the global logger.
func Warn(ctx context.Context, msg string, fields ...zap.Field) {
	ensureGlobal().WithContext(ctx).Warn(msg, fields...)
}

// Error logs at error level using the global logger.
func Error(ctx context.Context, msg string, fields ...zap.Field) {
	ensureGlobal().WithContext(ctx).Error(msg, fields...)
}

// Sync flushes the global logger.
func Sync() error {
	if global == nil {
		return nil
	}
	return global.Sync()
}
