package exec

import (
	"context"
	"path/filepath"
	"sync"
	"time"
)

// HandlerFunc computes a result for a mocked command. It lets tests model
// behavior that depends on the context, such as a child that runs until killed.
type HandlerFunc func(ctx context.Context, cmd Command) *Result

// MockRunner is a test implementation of Runner that records calls and
// returns pre-configured responses. Responses are keyed by the base name of
// the executable. It is safe for concurrent use.
type MockRunner struct {
	mu            sync.Mutex
	responses     map[string]*Result
	handlers      map[string]HandlerFunc
	calls         []Command
	defaultResult *Result
}

// NewMockRunner creates a new mock runner.
func NewMockRunner() *MockRunner {
	return &MockRunner{
		responses: make(map[string]*Result),
		handlers:  make(map[string]HandlerFunc),
	}
}

// SetResponse sets a canned response for an executable.
func (m *MockRunner) SetResponse(name string, result *Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[name] = result
}

// SetHandler sets a dynamic response for an executable. Handlers take
// precedence over canned responses.
func (m *MockRunner) SetHandler(name string, fn HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[name] = fn
}

// SetDefaultResponse sets the response for executables without a specific one.
func (m *MockRunner) SetDefaultResponse(result *Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultResult = result
}

// Calls returns a copy of all recorded calls.
func (m *MockRunner) Calls() []Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Command{}, m.calls...)
}

// CallCount returns the number of calls made to the mock.
func (m *MockRunner) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// CalledNames returns the base names of the executables run, in call order.
func (m *MockRunner) CalledNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, len(m.calls))
	for i, c := range m.calls {
		names[i] = filepath.Base(c.Path)
	}
	return names
}

// WasCalled returns true if the named executable was run.
func (m *MockRunner) WasCalled(name string) bool {
	for _, n := range m.CalledNames() {
		if n == name {
			return true
		}
	}
	return false
}

// Run implements Runner.
func (m *MockRunner) Run(ctx context.Context, cmd Command) *Result {
	name := filepath.Base(cmd.Path)

	m.mu.Lock()
	m.calls = append(m.calls, cmd)
	handler := m.handlers[name]
	canned, ok := m.responses[name]
	if !ok {
		canned = m.defaultResult
	}
	m.mu.Unlock()

	var result *Result
	switch {
	case handler != nil:
		result = handler(ctx, cmd)
	case canned != nil:
		clone := *canned
		result = &clone
	default:
		now := time.Now()
		result = &Result{StartTime: now, EndTime: now}
	}

	result.Command = cmd.Path
	result.Args = cmd.Args
	if cmd.Tee != nil && len(result.Output) > 0 {
		_, _ = cmd.Tee.Write(result.Output)
	}
	return result
}

// SuccessResult creates a successful result with the given output.
func SuccessResult(output string) *Result {
	now := time.Now()
	return &Result{
		ExitCode:  0,
		Output:    []byte(output),
		StartTime: now,
		EndTime:   now,
	}
}

// FailureResult creates a result with the given non-zero exit code and output.
func FailureResult(exitCode int, output string) *Result {
	now := time.Now()
	return &Result{
		ExitCode:  exitCode,
		Output:    []byte(output),
		StartTime: now,
		EndTime:   now,
	}
}

// SignalResult creates a result for a process killed by the named signal.
func SignalResult(signal, output string) *Result {
	now := time.Now()
	return &Result{
		ExitCode:  -1,
		Signal:    signal,
		Output:    []byte(output),
		StartTime: now,
		EndTime:   now,
	}
}

// TimeoutResult creates a result for a process killed at its deadline.
func TimeoutResult(err error, output string) *Result {
	now := time.Now()
	return &Result{
		ExitCode:  -1,
		Signal:    "killed",
		TimedOut:  true,
		Error:     err,
		Output:    []byte(output),
		StartTime: now,
		EndTime:   now,
	}
}

// ErrorResult creates a result for a process that could not be started.
func ErrorResult(err error) *Result {
	now := time.Now()
	return &Result{
		ExitCode:  -1,
		Error:     err,
		StartTime: now,
		EndTime:   now,
	}
}

// Ensure MockRunner implements Runner.
var _ Runner = (*MockRunner)(nil)
