package log

import (
	"context"
	"log/slog"
	"math"
	"os"
	"runtime"
	"time"
)

const (
	levelMaxVerbosity slog.Level = math.MinInt
	LevelTrace        slog.Level = -8
	LevelDebug                   = slog.LevelDebug
	LevelInfo                    = slog.LevelInfo
	LevelWarn                    = slog.LevelWarn
	LevelError                   = slog.LevelError
	LevelCrit         slog.Level = 12
)

var levelNames = map[slog.Level]string{
	LevelTrace: "trace",
	LevelDebug: "debug",
	LevelInfo:  "info",
	LevelWarn:  "warn",
	LevelError: "error",
	LevelCrit:  "crit",
}

// LevelString is the lower case name of l, or "unknown".
func LevelString(l slog.Level) string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "unknown"
}

// LevelAlignedString pads the upper case level name to five columns.
func LevelAlignedString(l slog.Level) string {
	name, ok := levelNames[l]
	if !ok {
		return "unknown level"
	}
	b := []byte("     ")
	for i := 0; i < len(name); i++ {
		b[i] = name[i] - 'a' + 'A'
	}
	return string(b)
}

// Logger writes module tagged key/value records to a slog.Handler.
type Logger interface {
	With(ctx ...any) Logger

	Trace(module string, msg string, ctx ...any)
	Debug(module string, msg string, ctx ...any)
	Info(module string, msg string, ctx ...any)
	Warn(module string, msg string, ctx ...any)
	Error(module string, msg string, ctx ...any)
	// Crit logs and exits the process.
	Crit(module string, msg string, ctx ...any)

	Write(level slog.Level, module string, msg string, attrs ...any)
	Enabled(ctx context.Context, level slog.Level) bool
	Handler() slog.Handler
}

type logger struct {
	inner *slog.Logger
}

func NewLogger(h slog.Handler) Logger {
	return &logger{inner: slog.New(h)}
}

func (l *logger) Handler() slog.Handler { return l.inner.Handler() }

func (l *logger) With(ctx ...any) Logger { return &logger{l.inner.With(ctx...)} }

func (l *logger) Enabled(ctx context.Context, level slog.Level) bool {
	return l.inner.Enabled(ctx, level)
}

// Write attributes the record to the caller of the level method, so
// skip Callers, Write and the level method itself.
func (l *logger) Write(level slog.Level, module string, msg string, attrs ...any) {
	ctx := context.Background()
	if !l.inner.Enabled(ctx, level) {
		return
	}
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:])
	r := slog.NewRecord(time.Now(), level, msg, pcs[0])
	if module != "" {
		r.AddAttrs(slog.String("module", module))
	}
	r.Add(attrs...)
	_ = l.inner.Handler().Handle(ctx, r)
}

func (l *logger) Trace(module string, msg string, ctx ...any) {
	l.Write(LevelTrace, module, msg, ctx...)
}

func (l *logger) Debug(module string, msg string, ctx ...any) {
	l.Write(LevelDebug, module, msg, ctx...)
}

func (l *logger) Info(module string, msg string, ctx ...any) {
	l.Write(LevelInfo, module, msg, ctx...)
}

func (l *logger) Warn(module string, msg string, ctx ...any) {
	l.Write(LevelWarn, module, msg, ctx...)
}

func (l *logger) Error(module string, msg string, ctx ...any) {
	l.Write(LevelError, module, msg, ctx...)
}

func (l *logger) Crit(module string, msg string, ctx ...any) {
	l.Write(LevelCrit, module, msg, ctx...)
	os.Exit(1)
}
