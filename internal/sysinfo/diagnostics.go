package sysinfo

import (
	"context"
	"strings"
	"time"

	"github.com/tungetti/cts/internal/constants"
	"github.com/tungetti/cts/internal/device"
	"github.com/tungetti/cts/internal/exec"
)

// DefaultMaxLines bounds the lines kept from each diagnostic command.
const DefaultMaxLines = 200

// Probe is one system command whose output goes into the report.
type Probe struct {
	Title  string
	Path   string
	Args   []string
	Filter string // When set, keep only lines containing it
}

// Diagnostic is the captured output of one Probe.
type Diagnostic struct {
	Title   string
	Command string
	Lines   []string
	Err     string // Why the command produced nothing useful
}

// ProbesFor returns the diagnostic commands for a topology: kernel messages
// and lspci on PCIe hosts, the lsusb views on USB hosts, nothing otherwise.
func ProbesFor(t device.Topology) []Probe {
	pciID := constants.CoralPCIVendor + ":" + constants.CoralPCIDevice
	switch t.Interface {
	case device.InterfacePCIe:
		return []Probe{
			{Title: "Kernel messages (apex)", Path: "dmesg", Filter: "apex"},
			{Title: "PCI device " + pciID, Path: "lspci", Args: []string{"-vvv", "-d", pciID}},
		}
	case device.InterfaceUSB:
		return []Probe{
			{Title: "USB devices", Path: "lsusb"},
			{Title: "USB tree", Path: "lsusb", Args: []string{"-t"}},
			{Title: "USB device " + constants.CoralUSBRuntimeID, Path: "lsusb", Args: []string{"-v", "-d", constants.CoralUSBRuntimeID}},
			{Title: "USB device " + constants.CoralUSBDFUID, Path: "lsusb", Args: []string{"-v", "-d", constants.CoralUSBDFUID}},
		}
	default:
		return nil
	}
}

// CommandLine returns the command as typed in a shell.
func (p Probe) CommandLine() string {
	return strings.TrimSpace(p.Path + " " + strings.Join(p.Args, " "))
}

// run executes p and never fails: problems are recorded in the Diagnostic.
func (p Probe) run(ctx context.Context, runner exec.Runner, timeout time.Duration, maxLines int) Diagnostic {
	d := Diagnostic{Title: p.Title, Command: p.CommandLine()}

	res := runner.Run(ctx, exec.Command{Path: p.Path, Args: p.Args, Timeout: timeout})
	switch {
	case res.TimedOut:
		d.Err = "timed out after " + timeout.String()
	case !res.Started():
		d.Err = "not available"
		if res.Error != nil {
			d.Err = res.Error.Error()
		}
	}

	var lines []string
	for _, line := range res.OutputLines() {
		if p.Filter != "" && !strings.Contains(line, p.Filter) {
			continue
		}
		lines = append(lines, strings.TrimRight(line, " \t\r"))
	}
	if maxLines > 0 && len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}
	d.Lines = lines

	if d.Err == "" && res.Failed() && len(lines) == 0 {
		d.Err = "command failed"
		if res.Signal != "" {
			d.Err += ": " + res.Signal
		}
	}
	if d.Err == "" && len(lines) == 0 {
		d.Err = "no output"
	}
	return d
}
