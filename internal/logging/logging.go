// Package logging provides structured logging for the numass tooling.
//
// This package wraps the standard library's log/slog package to provide
// consistent logging across all components. It supports both text and JSON
// output formats, configurable log levels, and component-based loggers.
//
// Usage:
//
//	// Initialize at startup
//	logging.Init(slog.LevelInfo, false) // Text format
//	logging.Init(slog.LevelDebug, true) // JSON format for production
//
//	// Get a component logger
//	log := logging.Component("tree")
//	log.Info("refresh complete", "children", 12)
//
//	// Log with context
//	log.Warn("point dropped", "error", err, "fragment", name)
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Logger is the global logger instance.
var Logger *slog.Logger

var initMu sync.Mutex

// Init initializes the global logger with the specified level and format.
// If jsonFormat is true, logs are output as JSON; otherwise, human-readable text.
func Init(level slog.Level, jsonFormat bool) {
	InitWriter(os.Stderr, level, jsonFormat)
}

// InitWriter is Init with an explicit destination.
func InitWriter(w io.Writer, level slog.Level, jsonFormat bool) {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	if jsonFormat {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	InitWithHandler(handler)
}

// InitWithHandler initializes the global logger with a custom handler.
// This is useful for testing or custom output destinations.
func InitWithHandler(handler slog.Handler) {
	initMu.Lock()
	defer initMu.Unlock()
	Logger = slog.New(handler)
	slog.SetDefault(Logger)
}

// ParseLevel converts a config string (debug, info, warn, error) to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

func ensure() *slog.Logger {
	initMu.Lock()
	l := Logger
	initMu.Unlock()
	if l == nil {
		Init(slog.LevelInfo, false)
		l = Logger
	}
	return l
}

// With returns a new logger with additional attributes.
// These attributes are included in every log entry from the returned logger.
func With(args ...any) *slog.Logger {
	return ensure().With(args...)
}

// Component returns a logger for a specific component.
// The component name is added as an attribute to all log entries.
//
// The returned logger resolves the global logger on every call, so package
// level loggers created before Init still honour the configured handler.
//
// Example:
//
//	log := logging.Component("loader")
//	log.Info("started") // Output: time=... level=INFO component=loader msg=started
func Component(name string) *slog.Logger {
	return slog.New(&componentHandler{name: name})
}

// componentHandler defers to the current global handler.
type componentHandler struct {
	name  string
	attrs []slog.Attr
	group string
}

func (h *componentHandler) target() slog.Handler {
	base := ensure().Handler().WithAttrs([]slog.Attr{slog.String("component", h.name)})
	if len(h.attrs) > 0 {
		base = base.WithAttrs(h.attrs)
	}
	if h.group != "" {
		base = base.WithGroup(h.group)
	}
	return base
}

func (h *componentHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return ensure().Handler().Enabled(ctx, level)
}

func (h *componentHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.target().Handle(ctx, r)
}

func (h *componentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &next
}

func (h *componentHandler) WithGroup(name string) slog.Handler {
	next := *h
	next.group = name
	return &next
}

// WithContext returns a logger that includes context values.
// This is useful for request-scoped logging of storage paths.
func WithContext(ctx context.Context) *slog.Logger {
	logger := ensure()

	if storage, ok := ctx.Value(contextKeyStorage).(string); ok {
		logger = logger.With("storage", storage)
	}
	if loader, ok := ctx.Value(contextKeyLoader).(string); ok {
		logger = logger.With("loader", loader)
	}
	if source, ok := ctx.Value(contextKeySource).(string); ok {
		logger = logger.With("source", source)
	}

	return logger
}

// Context key types for type-safe context value extraction.
type contextKey int

const (
	contextKeyStorage contextKey = iota
	contextKeyLoader
	contextKeySource
)

// ContextWithStorage adds a storage root to the context for logging.
func ContextWithStorage(ctx context.Context, root string) context.Context {
	return context.WithValue(ctx, contextKeyStorage, root)
}

// ContextWithLoader adds a loader path to the context for logging.
func ContextWithLoader(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, contextKeyLoader, path)
}

// ContextWithSource adds the origin of a push to the context for logging.
func ContextWithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, contextKeySource, source)
}

// =============================================================================
// Convenience Functions
// =============================================================================

// Debug logs at debug level.
func Debug(msg string, args ...any) {
	ensure().Debug(msg, args...)
}

// Info logs at info level.
func Info(msg string, args ...any) {
	ensure().Info(msg, args...)
}

// Warn logs at warning level.
func Warn(msg string, args ...any) {
	ensure().Warn(msg, args...)
}

// Error logs at error level.
func Error(msg string, args ...any) {
	ensure().Error(msg, args...)
}
