package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/tungetti/cts/internal/app"
	"github.com/tungetti/cts/internal/cli"
	"github.com/tungetti/cts/internal/config"
	"github.com/tungetti/cts/internal/constants"
	"github.com/tungetti/cts/internal/errors"
)

// CLI encapsulates the command-line interface for cts.
type CLI struct {
	parser *cli.Parser
	config *config.Config
	stdout io.Writer
	stderr io.Writer

	// options returns the application options; tests replace it to inject
	// fakes for the device, the runner and the network.
	options func() app.Options
}

// NewCLI creates a new CLI instance.
func NewCLI(stdout, stderr io.Writer) *CLI {
	c := &CLI{
		parser: cli.NewParser(constants.AppName, Version, BuildTime, GitCommit),
		stdout: stdout,
		stderr: stderr,
	}
	c.options = c.defaultOptions
	return c
}

// Run parses arguments and executes the appropriate command.
// It returns an exit code suitable for os.Exit().
func (c *CLI) Run(args []string) int {
	result, err := c.parser.Parse(args)
	if err != nil {
		fmt.Fprintf(c.stderr, "Error: %v\n", err)
		fmt.Fprintf(c.stderr, "Run '%s help' for usage.\n", constants.AppName)
		return constants.ExitValidation.Int()
	}

	if result.ShowHelp {
		return c.showHelp(result)
	}
	if result.Command == cli.CommandVersion {
		return c.cmdVersion()
	}

	if err := c.loadConfig(result); err != nil {
		fmt.Fprintf(c.stderr, "Error: %s\n", errors.Describe(err))
		return constants.ExitValidation.Int()
	}

	// Flags take precedence over the file and the environment.
	result.GlobalFlags.Apply(c.config)

	return c.executeCommand(result)
}

// loadConfig loads configuration from file and environment.
func (c *CLI) loadConfig(result *cli.ParseResult) error {
	configPath := result.GlobalFlags.ConfigFile
	if configPath == "" {
		configPath = config.DefaultConfig().ConfigPath()
	}

	cfg, err := config.NewLoader(configPath).Load()
	if err != nil {
		return err
	}

	c.config = cfg
	return nil
}

// showHelp displays help information and returns an exit code.
func (c *CLI) showHelp(result *cli.ParseResult) int {
	if result.HelpCommand != "" {
		fmt.Fprint(c.stdout, c.parser.CommandUsage(result.HelpCommand))
	} else {
		fmt.Fprint(c.stdout, c.parser.Usage())
	}
	return constants.ExitSuccess.Int()
}

// cmdVersion displays version information.
func (c *CLI) cmdVersion() int {
	fmt.Fprint(c.stdout, c.parser.VersionString())
	return constants.ExitSuccess.Int()
}

// executeCommand runs run, list or probe through the application.
func (c *CLI) executeCommand(result *cli.ParseResult) int {
	application := app.New(c.options())
	if err := application.Initialize(c.config); err != nil {
		fmt.Fprintf(c.stderr, "Error: %s\n", errors.Describe(err))
		return constants.ExitValidation.Int()
	}

	return application.RunWithLifecycle(context.Background(), result.Command).Int()
}

func (c *CLI) defaultOptions() app.Options {
	return app.Options{
		Version:         Version,
		BuildTime:       BuildTime,
		GitCommit:       GitCommit,
		ShutdownTimeout: 10 * time.Second,
		Stdout:          c.stdout,
		Stderr:          c.stderr,
	}
}
