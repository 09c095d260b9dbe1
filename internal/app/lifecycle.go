package app

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// ShutdownFunc is a function called during shutdown.
// It receives a context that may be cancelled if shutdown times out.
type ShutdownFunc func(ctx context.Context) error

// Lifecycle manages application lifecycle including graceful shutdown.
// It turns SIGINT and SIGTERM into cancellation of the run context and
// coordinates shutdown of registered components.
type Lifecycle struct {
	mu            sync.Mutex
	shutdownFuncs []ShutdownFunc
	shutdownCh    chan struct{}
	timeout       time.Duration
	shutdownOnce  sync.Once
	signal        os.Signal
	notify        func(chan<- os.Signal, ...os.Signal)
	stop          func(chan<- os.Signal)
}

// NewLifecycle creates a new lifecycle manager with the specified shutdown timeout.
func NewLifecycle(timeout time.Duration) *Lifecycle {
	return &Lifecycle{
		shutdownCh: make(chan struct{}),
		timeout:    timeout,
		notify:     signal.Notify,
		stop:       signal.Stop,
	}
}

// OnShutdown registers a function to be called during shutdown.
// Functions are called in reverse order of registration (LIFO).
func (l *Lifecycle) OnShutdown(fn ShutdownFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.shutdownFuncs = append(l.shutdownFuncs, fn)
}

// CancelOnSignal returns a context derived from parent that is cancelled on
// the first SIGINT or SIGTERM, or when shutdown starts. A second signal is
// left to the default handler so a stuck run can still be killed.
func (l *Lifecycle) CancelOnSignal(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	l.notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer l.stop(sigCh)
		select {
		case sig := <-sigCh:
			l.mu.Lock()
			l.signal = sig
			l.mu.Unlock()
			cancel()
		case <-l.shutdownCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// Signal returns the signal that cancelled the run, or nil.
func (l *Lifecycle) Signal() os.Signal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.signal
}

// Shutdown initiates graceful shutdown, calling all registered shutdown
// functions in reverse order of registration. Returns the last error
// encountered, if any.
func (l *Lifecycle) Shutdown() error {
	var lastErr error

	l.shutdownOnce.Do(func() {
		close(l.shutdownCh)

		ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
		defer cancel()

		l.mu.Lock()
		funcs := make([]ShutdownFunc, len(l.shutdownFuncs))
		copy(funcs, l.shutdownFuncs)
		l.mu.Unlock()

		for i := len(funcs) - 1; i >= 0; i-- {
			if err := funcs[i](ctx); err != nil {
				lastErr = err
			}
		}
	})

	return lastErr
}
