package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/tungetti/cts/internal/constants"
)

// ParseResult holds the result of parsing command line arguments.
type ParseResult struct {
	// Command is the parsed command. It is CommandRun when none is given.
	Command Command

	// GlobalFlags contains the global flag values.
	GlobalFlags GlobalFlags

	// Args contains any remaining positional arguments.
	Args []string

	// ShowHelp indicates that help should be displayed.
	ShowHelp bool

	// HelpCommand is the command to show help for (when using "help <command>").
	HelpCommand string
}

// Parser handles command line argument parsing.
type Parser struct {
	programName string
	version     string
	buildTime   string
	gitCommit   string
}

// NewParser creates a new CLI parser with build information.
func NewParser(programName, version, buildTime, gitCommit string) *Parser {
	return &Parser{
		programName: programName,
		version:     version,
		buildTime:   buildTime,
		gitCommit:   gitCommit,
	}
}

// Parse parses command line arguments and returns a ParseResult.
// The args parameter should not include the program name (typically os.Args[1:]).
func (p *Parser) Parse(args []string) (*ParseResult, error) {
	result := &ParseResult{Command: CommandRun}

	for _, arg := range args {
		if arg == "--" {
			break
		}
		if arg == "-h" || arg == "--help" || arg == "-help" {
			result.ShowHelp = true
			return result, nil
		}
	}

	// The flag package stops at the first non-flag argument.
	remaining, err := p.parseGlobalFlags(&result.GlobalFlags, args)
	if err != nil {
		return nil, err
	}

	if len(remaining) > 0 {
		cmdStr := remaining[0]
		result.Command = ParseCommand(cmdStr)
		if result.Command == CommandNone {
			return nil, fmt.Errorf("unknown command: %s", cmdStr)
		}
		remaining = remaining[1:]
	}

	switch result.Command {
	case CommandHelp:
		result.ShowHelp = true
		if len(remaining) > 0 && !strings.HasPrefix(remaining[0], "-") {
			result.HelpCommand = remaining[0]
		}
	case CommandVersion:
		result.Args = remaining
	default:
		// Global flags may also follow the command.
		rest, err := p.parseGlobalFlags(&result.GlobalFlags, remaining)
		if err != nil {
			return nil, err
		}
		if len(rest) > 0 {
			return nil, fmt.Errorf("unexpected argument for %s: %s", result.Command, rest[0])
		}
	}

	if err := result.GlobalFlags.Validate(); err != nil {
		return nil, err
	}

	return result, nil
}

// parseGlobalFlags parses args into flags, keeping values already set, and
// returns the arguments left after the first non-flag.
func (p *Parser) parseGlobalFlags(flags *GlobalFlags, args []string) ([]string, error) {
	fs := p.createGlobalFlagSet(flags)
	fs.SetOutput(io.Discard)

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}
	return fs.Args(), nil
}

// createGlobalFlagSet creates a FlagSet with global flag definitions. Current
// field values become the defaults so a second pass does not reset them.
func (p *Parser) createGlobalFlagSet(flags *GlobalFlags) *flag.FlagSet {
	fs := flag.NewFlagSet(p.programName, flag.ContinueOnError)

	fs.StringVar(&flags.Output, "output", flags.Output, "Report file path")
	fs.StringVar(&flags.Output, "o", flags.Output, "Report file path (shorthand)")

	fs.StringVar(&flags.ConfigFile, "config", flags.ConfigFile, "Path to config file")
	fs.StringVar(&flags.ConfigFile, "c", flags.ConfigFile, "Path to config file (shorthand)")

	fs.StringVar(&flags.BinDir, "bin-dir", flags.BinDir, "Directory containing lstpu and the test executables")
	fs.StringVar(&flags.DataDir, "data-dir", flags.DataDir, "Reference data directory")
	fs.Var(&flags.Tests, "test", "Run only this test (repeatable)")
	fs.StringVar(&flags.MetricsFile, "metrics-file", flags.MetricsFile, "Write Prometheus metrics to this file")

	fs.BoolVar(&flags.Verbose, "verbose", flags.Verbose, "Enable verbose output")
	fs.BoolVar(&flags.Verbose, "v", flags.Verbose, "Enable verbose output (shorthand)")

	fs.BoolVar(&flags.Quiet, "quiet", flags.Quiet, "Suppress non-essential output")
	fs.BoolVar(&flags.Quiet, "q", flags.Quiet, "Suppress non-essential output (shorthand)")

	fs.StringVar(&flags.LogFile, "log-file", flags.LogFile, "Path to log file")
	fs.StringVar(&flags.LogLevel, "log-level", flags.LogLevel, "Log level (debug, info, warn, error)")
	fs.BoolVar(&flags.NoColor, "no-color", flags.NoColor, "Disable colored output")
	fs.BoolVar(&flags.NoDiagnostics, "no-diagnostics", flags.NoDiagnostics, "Leave system diagnostics out of the report")

	return fs
}

// Usage returns the main usage string.
func (p *Parser) Usage() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("%s - %s\n\n", p.programName, constants.AppDescription))
	b.WriteString("Usage:\n")
	b.WriteString(fmt.Sprintf("  %s [flags] [command]\n\n", p.programName))

	b.WriteString("Commands:\n")
	for _, cmd := range Commands() {
		b.WriteString(fmt.Sprintf("  %-12s %s\n", cmd.Name, cmd.Description))
	}

	b.WriteString("\nFlags:\n")
	b.WriteString(fmt.Sprintf("  -o, --output PATH      Report file (default %q)\n", constants.DefaultReportFile))
	b.WriteString("  -c, --config PATH      Path to config file\n")
	b.WriteString("      --bin-dir DIR      Directory containing lstpu and the test executables\n")
	b.WriteString(fmt.Sprintf("      --data-dir DIR     Reference data directory (default %q)\n", constants.DefaultDataDir))
	b.WriteString("      --test NAME        Run only this test (repeatable)\n")
	b.WriteString("      --metrics-file F   Write Prometheus metrics to this file\n")
	b.WriteString("      --no-diagnostics   Leave system diagnostics out of the report\n")
	b.WriteString("  -v, --verbose          Enable verbose output\n")
	b.WriteString("  -q, --quiet            Suppress non-essential output\n")
	b.WriteString("      --log-file PATH    Path to log file\n")
	b.WriteString("      --log-level LEVEL  Log level (debug, info, warn, error)\n")
	b.WriteString("      --no-color         Disable colored output\n")

	b.WriteString(fmt.Sprintf("\nUse \"%s help <command>\" for more information about a command.\n", p.programName))

	return b.String()
}

// CommandUsage returns the usage string for a specific command.
func (p *Parser) CommandUsage(cmd string) string {
	parsedCmd := ParseCommand(cmd)
	if parsedCmd == CommandNone {
		return fmt.Sprintf("Unknown command: %s\n\nRun '%s help' for usage.\n", cmd, p.programName)
	}

	info := GetCommandInfo(parsedCmd)
	if info == nil {
		return fmt.Sprintf("No help available for: %s\n", cmd)
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s\n\n", info.Description))
	b.WriteString(fmt.Sprintf("Usage:\n  %s\n\n", info.Usage))

	if info.LongDescription != "" {
		b.WriteString(info.LongDescription)
		b.WriteString("\n")
	}

	return b.String()
}

// VersionString returns formatted version information.
func (p *Parser) VersionString() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("%s version %s\n", p.programName, p.version))

	if p.buildTime != "" && p.buildTime != "unknown" {
		b.WriteString(fmt.Sprintf("Build time: %s\n", p.buildTime))
	}

	if p.gitCommit != "" && p.gitCommit != "unknown" {
		commit := p.gitCommit
		if len(commit) > 7 {
			commit = commit[:7]
		}
		b.WriteString(fmt.Sprintf("Git commit: %s\n", commit))
	}

	b.WriteString(fmt.Sprintf("Test data:  %s\n", constants.TestDataRevision))

	return b.String()
}

// VersionInfo returns version components for structured output.
func (p *Parser) VersionInfo() map[string]string {
	return map[string]string{
		"version":      p.version,
		"buildTime":    p.buildTime,
		"gitCommit":    p.gitCommit,
		"dataRevision": constants.TestDataRevision,
	}
}
