package logging

import (
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"
)

// Logger defines the interface for logging operations.
// This interface is designed for easy mocking in tests.
type Logger interface {
	// Debug logs a debug message with optional key-value pairs.
	Debug(msg string, keyvals ...interface{})
	// Info logs an info message with optional key-value pairs.
	Info(msg string, keyvals ...interface{})
	// Warn logs a warning message with optional key-value pairs.
	Warn(msg string, keyvals ...interface{})
	// Error logs an error message with optional key-value pairs.
	Error(msg string, keyvals ...interface{})
	// WithPrefix returns a new Logger with the given prefix.
	WithPrefix(prefix string) Logger
	// WithFields returns a new Logger with the given fields added to all messages.
	WithFields(keyvals ...interface{}) Logger
	// SetLevel sets the minimum log level.
	SetLevel(level Level)
	// GetLevel returns the current log level.
	GetLevel() Level
}

// Options configures the logger.
type Options struct {
	// Level is the minimum log level to output.
	Level Level
	// Output is the destination for log messages.
	Output io.Writer
	// TimeFormat is the format string for timestamps.
	TimeFormat string
	// Prefix is an optional prefix for all log messages.
	Prefix string
	// NoColor disables colorized output.
	NoColor bool
	// ReportTimestamp enables timestamp output.
	ReportTimestamp bool
}

// DefaultOptions returns defaults for console logging on stderr.
func DefaultOptions() Options {
	return Options{
		Level:           LevelInfo,
		Output:          os.Stderr,
		TimeFormat:      "15:04:05",
		ReportTimestamp: true,
	}
}

// FileOptions returns options for file logging (no color, full timestamp).
func FileOptions(w io.Writer) Options {
	return Options{
		Level:           LevelDebug,
		Output:          w,
		TimeFormat:      "2006-01-02 15:04:05",
		NoColor:         true,
		ReportTimestamp: true,
	}
}

type logger struct {
	mu     sync.RWMutex
	impl   *log.Logger
	level  Level
	fields []interface{}
}

// New creates a new logger with the given options.
func New(opts Options) Logger {
	l := log.NewWithOptions(opts.Output, log.Options{
		TimeFormat:      opts.TimeFormat,
		Level:           toCharmLevel(opts.Level),
		Prefix:          opts.Prefix,
		ReportTimestamp: opts.ReportTimestamp,
	})
	if opts.NoColor {
		l.SetColorProfile(termenv.Ascii)
	}
	return &logger{impl: l, level: opts.Level}
}

// NewNop returns a logger that discards all output.
func NewNop() Logger {
	return nopLogger{}
}

// NewFileLogger creates a logger appending to the file at path. The returned
// closer releases the file.
func NewFileLogger(path string, level Level) (Logger, io.Closer, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}
	opts := FileOptions(file)
	opts.Level = level
	return New(opts), file, nil
}

// NewMultiLogger creates a logger that fans out to every given logger.
func NewMultiLogger(loggers ...Logger) Logger {
	return multiLogger(loggers)
}

func (l *logger) log(level Level, msg string, keyvals []interface{}) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	// Errors are always logged.
	if level < l.level && level != LevelError {
		return
	}
	kv := append(append([]interface{}{}, l.fields...), keyvals...)
	switch level {
	case LevelDebug:
		l.impl.Debug(msg, kv...)
	case LevelInfo:
		l.impl.Info(msg, kv...)
	case LevelWarn:
		l.impl.Warn(msg, kv...)
	default:
		l.impl.Error(msg, kv...)
	}
}

func (l *logger) Debug(msg string, keyvals ...interface{}) { l.log(LevelDebug, msg, keyvals) }
func (l *logger) Info(msg string, keyvals ...interface{})  { l.log(LevelInfo, msg, keyvals) }
func (l *logger) Warn(msg string, keyvals ...interface{})  { l.log(LevelWarn, msg, keyvals) }
func (l *logger) Error(msg string, keyvals ...interface{}) { l.log(LevelError, msg, keyvals) }

func (l *logger) WithPrefix(prefix string) Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return &logger{
		impl:   l.impl.WithPrefix(prefix),
		level:  l.level,
		fields: l.fields,
	}
}

func (l *logger) WithFields(keyvals ...interface{}) Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	fields := make([]interface{}, 0, len(l.fields)+len(keyvals))
	fields = append(fields, l.fields...)
	fields = append(fields, keyvals...)
	return &logger{
		impl:   l.impl,
		level:  l.level,
		fields: fields,
	}
}

func (l *logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
	l.impl.SetLevel(toCharmLevel(level))
}

func (l *logger) GetLevel() Level {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.level
}

// toCharmLevel converts our Level to charmbracelet/log Level.
func toCharmLevel(l Level) log.Level {
	switch l {
	case LevelDebug:
		return log.DebugLevel
	case LevelWarn:
		return log.WarnLevel
	case LevelError:
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{})       {}
func (nopLogger) Info(string, ...interface{})        {}
func (nopLogger) Warn(string, ...interface{})        {}
func (nopLogger) Error(string, ...interface{})       {}
func (n nopLogger) WithPrefix(string) Logger         { return n }
func (n nopLogger) WithFields(...interface{}) Logger { return n }
func (nopLogger) SetLevel(Level)                     {}
func (nopLogger) GetLevel() Level                    { return LevelInfo }

type multiLogger []Logger

func (m multiLogger) Debug(msg string, keyvals ...interface{}) {
	for _, l := range m {
		l.Debug(msg, keyvals...)
	}
}

func (m multiLogger) Info(msg string, keyvals ...interface{}) {
	for _, l := range m {
		l.Info(msg, keyvals...)
	}
}

func (m multiLogger) Warn(msg string, keyvals ...interface{}) {
	for _, l := range m {
		l.Warn(msg, keyvals...)
	}
}

func (m multiLogger) Error(msg string, keyvals ...interface{}) {
	for _, l := range m {
		l.Error(msg, keyvals...)
	}
}

func (m multiLogger) WithPrefix(prefix string) Logger {
	out := make(multiLogger, len(m))
	for i, l := range m {
		out[i] = l.WithPrefix(prefix)
	}
	return out
}

func (m multiLogger) WithFields(keyvals ...interface{}) Logger {
	out := make(multiLogger, len(m))
	for i, l := range m {
		out[i] = l.WithFields(keyvals...)
	}
	return out
}

// SetLevel only adjusts the first (console) logger; file sinks keep their level.
func (m multiLogger) SetLevel(level Level) {
	if len(m) > 0 {
		m[0].SetLevel(level)
	}
}

func (m multiLogger) GetLevel() Level {
	if len(m) > 0 {
		return m[0].GetLevel()
	}
	return LevelInfo
}
