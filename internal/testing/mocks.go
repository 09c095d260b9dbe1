// Package testing provides shared test infrastructure for cts: a recording
// logger, device and test output fixtures, fakes for the reference data
// fetch, and assertions on coded errors and log output.
package testing

import (
	"context"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/tungetti/cts/internal/logging"
)

// ============================================================================
// MockLogger - Implements logging.Logger for testing
// ============================================================================

// LogMessage represents a recorded log message.
type LogMessage struct {
	Level   logging.Level
	Message string
	Fields  []interface{}
}

// Field returns the value logged under key, or nil.
func (m LogMessage) Field(key string) interface{} {
	for i := 0; i+1 < len(m.Fields); i += 2 {
		if k, ok := m.Fields[i].(string); ok && k == key {
			return m.Fields[i+1]
		}
	}
	return nil
}

// logStore is shared by a MockLogger and every logger derived from it.
type logStore struct {
	mu       sync.Mutex
	messages []LogMessage
	level    logging.Level
}

// MockLogger implements logging.Logger for testing purposes.
// It records all log messages for later inspection. Loggers returned by
// WithPrefix and WithFields record into the same store.
type MockLogger struct {
	store  *logStore
	prefix string
	fields []interface{}
}

// NewMockLogger creates a new MockLogger recording every level.
func NewMockLogger() *MockLogger {
	return &MockLogger{store: &logStore{level: logging.LevelDebug}}
}

// Debug logs a debug message.
func (m *MockLogger) Debug(msg string, keyvals ...interface{}) {
	m.record(logging.LevelDebug, msg, keyvals)
}

// Info logs an info message.
func (m *MockLogger) Info(msg string, keyvals ...interface{}) {
	m.record(logging.LevelInfo, msg, keyvals)
}

// Warn logs a warning message.
func (m *MockLogger) Warn(msg string, keyvals ...interface{}) {
	m.record(logging.LevelWarn, msg, keyvals)
}

// Error logs an error message.
func (m *MockLogger) Error(msg string, keyvals ...interface{}) {
	m.record(logging.LevelError, msg, keyvals)
}

// WithPrefix returns a logger with the given prefix sharing this store.
func (m *MockLogger) WithPrefix(prefix string) logging.Logger {
	return &MockLogger{
		store:  m.store,
		prefix: prefix,
		fields: append([]interface{}{}, m.fields...),
	}
}

// WithFields returns a logger adding keyvals to every message, sharing this
// store.
func (m *MockLogger) WithFields(keyvals ...interface{}) logging.Logger {
	fields := make([]interface{}, 0, len(m.fields)+len(keyvals))
	fields = append(fields, m.fields...)
	fields = append(fields, keyvals...)
	return &MockLogger{store: m.store, prefix: m.prefix, fields: fields}
}

// SetLevel sets the minimum log level.
func (m *MockLogger) SetLevel(level logging.Level) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	m.store.level = level
}

// GetLevel returns the current log level.
func (m *MockLogger) GetLevel() logging.Level {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	return m.store.level
}

func (m *MockLogger) record(level logging.Level, msg string, keyvals []interface{}) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()

	if level < m.store.level {
		return
	}

	fields := append([]interface{}{}, m.fields...)
	fields = append(fields, keyvals...)

	if m.prefix != "" {
		msg = m.prefix + ": " + msg
	}
	m.store.messages = append(m.store.messages, LogMessage{Level: level, Message: msg, Fields: fields})
}

// Messages returns a copy of all recorded messages.
func (m *MockLogger) Messages() []LogMessage {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	return append([]LogMessage{}, m.store.messages...)
}

// MessagesAtLevel returns the recorded messages of one level.
func (m *MockLogger) MessagesAtLevel(level logging.Level) []LogMessage {
	var out []LogMessage
	for _, msg := range m.Messages() {
		if msg.Level == level {
			out = append(out, msg)
		}
	}
	return out
}

// Find returns the first message containing substring.
func (m *MockLogger) Find(substring string) (LogMessage, bool) {
	for _, msg := range m.Messages() {
		if strings.Contains(msg.Message, substring) {
			return msg, true
		}
	}
	return LogMessage{}, false
}

// ContainsMessage reports whether any message contains substring.
func (m *MockLogger) ContainsMessage(substring string) bool {
	_, ok := m.Find(substring)
	return ok
}

// MessageCount returns the number of recorded messages.
func (m *MockLogger) MessageCount() int {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	return len(m.store.messages)
}

// Clear removes all recorded messages.
func (m *MockLogger) Clear() {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	m.store.messages = nil
}

// Ensure MockLogger implements logging.Logger.
var _ logging.Logger = (*MockLogger)(nil)

// ============================================================================
// MockFetcher - Implements dataset.Fetcher for testing
// ============================================================================

// MockFetcher creates the destination directory instead of downloading, or
// fails with Err. It records every revision requested.
type MockFetcher struct {
	Err error

	calls     int32
	mu        sync.Mutex
	revisions []string
}

// Fetch implements dataset.Fetcher.
func (f *MockFetcher) Fetch(ctx context.Context, revision, dest string) error {
	atomic.AddInt32(&f.calls, 1)
	f.mu.Lock()
	f.revisions = append(f.revisions, revision)
	f.mu.Unlock()

	if f.Err != nil {
		return f.Err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return os.MkdirAll(dest, 0o755)
}

// CallCount returns the number of fetches.
func (f *MockFetcher) CallCount() int {
	return int(atomic.LoadInt32(&f.calls))
}

// Revisions returns the revisions fetched, in order.
func (f *MockFetcher) Revisions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.revisions...)
}
