// Package app wires the cts stages together: configuration, device probe,
// test plan, reference data, execution, diagnostics and the final report.
package app

import (
	"sync"

	"github.com/tungetti/cts/internal/config"
	"github.com/tungetti/cts/internal/console"
	"github.com/tungetti/cts/internal/errors"
	"github.com/tungetti/cts/internal/exec"
	"github.com/tungetti/cts/internal/logging"
)

// Container holds all application dependencies.
// It provides thread-safe access to shared components and ensures
// proper initialization order during application startup.
type Container struct {
	mu      sync.RWMutex
	Config  *config.Config
	Logger  logging.Logger
	Runner  exec.Runner
	Console *console.Console
}

// NewContainer creates a new dependency container.
func NewContainer() *Container {
	return &Container{}
}

// SetConfig sets the configuration.
func (c *Container) SetConfig(cfg *config.Config) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Config = cfg
}

// SetLogger sets the logger.
func (c *Container) SetLogger(l logging.Logger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Logger = l
}

// SetRunner sets the child process runner.
func (c *Container) SetRunner(r exec.Runner) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Runner = r
}

// SetConsole sets the live status console.
func (c *Container) SetConsole(con *console.Console) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Console = con
}

// GetConfig returns the configuration.
func (c *Container) GetConfig() *config.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Config
}

// GetLogger returns the logger.
func (c *Container) GetLogger() logging.Logger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Logger
}

// GetRunner returns the child process runner.
func (c *Container) GetRunner() exec.Runner {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Runner
}

// GetConsole returns the live status console.
func (c *Container) GetConsole() *console.Console {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Console
}

// Validate checks that all required dependencies are set.
func (c *Container) Validate() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.Config == nil {
		return errors.New(errors.Configuration, "config not initialized")
	}
	if c.Logger == nil {
		return errors.New(errors.Configuration, "logger not initialized")
	}
	if c.Runner == nil {
		return errors.New(errors.Configuration, "runner not initialized")
	}
	if c.Console == nil {
		return errors.New(errors.Configuration, "console not initialized")
	}
	return nil
}
