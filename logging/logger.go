package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// LogLevel is a thin enum for user friendly level configuration decoupled from slog.
type LogLevel int

const (
	// LogLevelDebug is the debug logging level.
	LogLevelDebug LogLevel = iota
	// LogLevelInfo is the informational logging level.
	LogLevelInfo
	// LogLevelWarn is the warning logging level.
	LogLevelWarn
	// LogLevelError is the error logging level.
	LogLevelError
)

// String returns the string representation of the log level.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a case-insensitive level name to a LogLevel. Unknown names
// yield LogLevelInfo.
func ParseLevel(s string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LogLevelDebug
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// Logger defines the minimal logging interface used across agentproxy.
// Arguments after msg are alternating key/value pairs as in log/slog.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SlogAdapter wraps *slog.Logger to implement the Logger interface.
type SlogAdapter struct {
	*slog.Logger
}

// Debug logs a debug message.
func (s *SlogAdapter) Debug(msg string, args ...any) { s.Logger.Debug(msg, args...) }

// Info logs an informational message.
func (s *SlogAdapter) Info(msg string, args ...any) { s.Logger.Info(msg, args...) }

// Warn logs a warning message.
func (s *SlogAdapter) Warn(msg string, args ...any) { s.Logger.Warn(msg, args...) }

// Error logs an error message.
func (s *SlogAdapter) Error(msg string, args ...any) { s.Logger.Error(msg, args...) }

// NewSlogAdapter creates a Logger from *slog.Logger.
func NewSlogAdapter(logger *slog.Logger) Logger {
	return &SlogAdapter{Logger: logger}
}

// NewDefaultSlogLogger creates a Logger using slog.Default().
func NewDefaultSlogLogger() Logger {
	return NewSlogAdapter(slog.Default())
}

// Output formats understood by NewLogger.
const (
	FormatJSON    = "json"
	FormatText    = "text"
	FormatConsole = "console"
)

// LoggerConfig configures construction of a ProxyLogger.
type LoggerConfig struct {
	Level     LogLevel
	Format    string // json, text or console
	Output    io.Writer
	AddSource bool
	Component string
	NoColor   bool // console format only
}

// DefaultLoggerConfig returns a baseline JSON info level configuration.
func DefaultLoggerConfig() *LoggerConfig {
	return &LoggerConfig{Level: LogLevelInfo, Format: FormatJSON, Output: os.Stdout}
}

// ProxyLogger wraps slog.Logger adding contextual cloning helpers and
// domain convenience methods. With* methods return cheap copies.
type ProxyLogger struct {
	logger *slog.Logger
}

// NewLogger builds a ProxyLogger from a config (or defaults if nil).
func NewLogger(cfg *LoggerConfig) *ProxyLogger {
	if cfg == nil {
		cfg = DefaultLoggerConfig()
	}

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	var handler slog.Handler

	switch cfg.Format {
	case FormatConsole:
		handler = tint.NewHandler(out, &tint.Options{
			Level:      slogLevel(cfg.Level),
			AddSource:  cfg.AddSource,
			TimeFormat: time.TimeOnly,
			NoColor:    cfg.NoColor,
		})
	case FormatText:
		handler = slog.NewTextHandler(out, &slog.HandlerOptions{Level: slogLevel(cfg.Level), AddSource: cfg.AddSource})
	default:
		handler = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: slogLevel(cfg.Level), AddSource: cfg.AddSource})
	}

	l := &ProxyLogger{logger: slog.New(handler)}
	if cfg.Component != "" {
		l = l.WithComponent(cfg.Component)
	}

	return l
}

// NewSlogLogger creates a new ProxyLogger with the specified level and format.
func NewSlogLogger(level LogLevel, format string, addSource bool) *ProxyLogger {
	cfg := DefaultLoggerConfig()
	cfg.Level = level
	if format != "" {
		cfg.Format = format
	}
	cfg.AddSource = addSource
	return NewLogger(cfg)
}

func slogLevel(l LogLevel) slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelInfo:
		return slog.LevelInfo
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Slog exposes the underlying *slog.Logger (e.g. for http.Server.ErrorLog).
func (l *ProxyLogger) Slog() *slog.Logger { return l.logger }

// With returns a logger that attaches the given key/value pairs to every entry.
func (l *ProxyLogger) With(args ...any) *ProxyLogger {
	return &ProxyLogger{logger: l.logger.With(args...)}
}

// WithComponent sets the logical component (runner, server, store, etc.).
func (l *ProxyLogger) WithComponent(c string) *ProxyLogger {
	return l.With("component", c)
}

// WithRun attaches conversation and run identifiers.
func (l *ProxyLogger) WithRun(conversationID, runID string) *ProxyLogger {
	args := make([]any, 0, 4)
	if conversationID != "" {
		args = append(args, "conversation_id", conversationID)
	}
	if runID != "" {
		args = append(args, "run_id", runID)
	}
	return l.With(args...)
}

// Debug logs at debug level.
func (l *ProxyLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }

// Info logs at info level.
func (l *ProxyLogger) Info(msg string, args ...any) { l.logger.Info(msg, args...) }

// Warn logs at warn level.
func (l *ProxyLogger) Warn(msg string, args ...any) { l.logger.Warn(msg, args...) }

// Error logs at error level.
func (l *ProxyLogger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }

func (l *ProxyLogger) outcome(msg string, success bool, err error, attrs ...slog.Attr) {
	attrs = append(attrs, slog.Bool("success", success))
	level := slog.LevelInfo
	if !success {
		level = slog.LevelError
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	l.logger.LogAttrs(context.Background(), level, msg, attrs...)
}

// LogToolCall records execution details for a tool invocation.
func (l *ProxyLogger) LogToolCall(tool string, dur time.Duration, success bool, err error) {
	msg := "tool.call.completed"
	if !success {
		msg = "tool.call.failed"
	}
	l.outcome(msg, success, err, slog.String("tool_name", tool), slog.Duration("duration", dur))
}

// LogModelCall records model call latency, token usage and success.
func (l *ProxyLogger) LogModelCall(model string, tokens int, dur time.Duration, success bool, err error) {
	msg := "model.call.completed"
	if !success {
		msg = "model.call.failed"
	}
	l.outcome(msg, success, err, slog.String("model", model), slog.Int("token_count", tokens), slog.Duration("duration", dur))
}

// LogHandoff records an agent transition.
func (l *ProxyLogger) LogHandoff(from, to string, callbackErr error) {
	l.outcome("runner.handoff", callbackErr == nil, callbackErr, slog.String("from_agent", from), slog.String("to_agent", to))
}

// LogRun records aggregate run metrics.
func (l *ProxyLogger) LogRun(agent string, roundTrips int, dur time.Duration, success bool, err error) {
	msg := "runner.run.completed"
	if !success {
		msg = "runner.run.failed"
	}
	l.outcome(msg, success, err, slog.String("last_agent", agent), slog.Int("round_trips", roundTrips), slog.Duration("duration", dur))
}

// NoOpLogger discards all log messages. Useful for testing or when logging is disabled.
type NoOpLogger struct{}

// Debug logs a debug message.
func (NoOpLogger) Debug(string, ...any) {}

// Info logs an informational message.
func (NoOpLogger) Info(string, ...any) {}

// Warn logs a warning message.
func (NoOpLogger) Warn(string, ...any) {}

// Error logs an error message.
func (NoOpLogger) Error(string, ...any) {}
