package cli

// Command represents a CLI command type.
type Command int

const (
	// CommandNone represents no command or an unrecognized command.
	CommandNone Command = iota

	// CommandRun runs the compatibility suite and writes the report.
	CommandRun

	// CommandList prints the test catalog and what would run on this host.
	CommandList

	// CommandProbe prints the detected accelerator topology.
	CommandProbe

	// CommandVersion represents the version command for displaying build information.
	CommandVersion

	// CommandHelp represents the help command for showing usage information.
	CommandHelp
)

// String returns the command name as a string.
func (c Command) String() string {
	switch c {
	case CommandRun:
		return "run"
	case CommandList:
		return "list"
	case CommandProbe:
		return "probe"
	case CommandVersion:
		return "version"
	case CommandHelp:
		return "help"
	default:
		return ""
	}
}

// IsValid returns true if the command is a recognized command.
func (c Command) IsValid() bool {
	return c > CommandNone && c <= CommandHelp
}

// CommandInfo holds metadata about a command.
type CommandInfo struct {
	// Name is the primary command name.
	Name string

	// Aliases are alternative names for the command.
	Aliases []string

	// Description is a brief description of what the command does.
	Description string

	// Usage shows how to invoke the command.
	Usage string

	// LongDescription provides detailed help text for the command.
	LongDescription string
}

// Commands returns all available commands with their metadata.
func Commands() []CommandInfo {
	return []CommandInfo{
		{
			Name:        "run",
			Aliases:     []string{"r"},
			Description: "Run the compatibility suite (default)",
			Usage:       "cts [flags] [run]",
			LongDescription: `Run every test that applies to the attached accelerators.

The harness probes the devices with lstpu, makes sure the pinned reference
data is present (downloading it if needed), runs the applicable tests one at
a time and writes a plain text report. Tests that do not apply to the
detected topology are reported as SKIPPED.

The exit status is 0 only when every test that ran passed.

Examples:
  cts                               Run everything, report to ./cts.txt
  cts --output /tmp/run1.txt        Write the report elsewhere
  cts --test detection_models_test  Run a single test
  cts --bin-dir /opt/coral/bin run  Use executables from another directory`,
		},
		{
			Name:        "list",
			Aliases:     []string{"l", "ls"},
			Description: "List the tests and whether they apply to this host",
			Usage:       "cts [flags] list",
			LongDescription: `List the test catalog in run order.

The devices are probed first so each test is shown with the decision the
run would make for it: run, or skipped with a reason.

Examples:
  cts list
  cts --config ./catalog-config.yaml list`,
		},
		{
			Name:        "probe",
			Aliases:     []string{"p"},
			Description: "Detect attached accelerators",
			Usage:       "cts [flags] probe",
			LongDescription: `Run the device enumerator and print the detected topology:
the device count, the interface (USB or PCIE) and one line per device.`,
		},
		{
			Name:        "version",
			Aliases:     []string{"v"},
			Description: "Show version information",
			Usage:       "cts version",
			LongDescription: `Display version information about cts.

Shows the version number, build time, git commit hash and the pinned
reference data revision.`,
		},
		{
			Name:        "help",
			Aliases:     []string{"h"},
			Description: "Show help for a command",
			Usage:       "cts help [command]",
			LongDescription: `Display help information.

When called without arguments, shows general help and available commands.
When called with a command name, shows detailed help for that command.

Examples:
  cts help       Show general help
  cts help run   Show help for the run command`,
		},
	}
}

// GetCommandInfo returns the CommandInfo for a given command.
// Returns nil if the command is not found.
func GetCommandInfo(cmd Command) *CommandInfo {
	if !cmd.IsValid() {
		return nil
	}

	cmds := Commands()
	for i := range cmds {
		if cmds[i].Name == cmd.String() {
			return &cmds[i]
		}
	}
	return nil
}

// ParseCommand parses a string into a Command.
// It recognizes both primary command names and aliases.
func ParseCommand(s string) Command {
	for _, info := range Commands() {
		if s == info.Name {
			return commandFromName(info.Name)
		}
		for _, alias := range info.Aliases {
			if s == alias {
				return commandFromName(info.Name)
			}
		}
	}
	return CommandNone
}

// commandFromName converts a command name string to a Command type.
func commandFromName(name string) Command {
	switch name {
	case "run":
		return CommandRun
	case "list":
		return CommandList
	case "probe":
		return CommandProbe
	case "version":
		return CommandVersion
	case "help":
		return CommandHelp
	default:
		return CommandNone
	}
}
