// Package constants defines application-wide constants for cts.
// All constants are typed to ensure type safety and prevent accidental misuse.
package constants

import "time"

// Application metadata
const (
	// AppName is the application name used in logs, configs, and user messages.
	AppName string = "cts"
	// AppDescription is a short description of the application.
	AppDescription string = "Coral Compatibility Test Suite"
)

// ExitCode represents process exit codes for different termination scenarios.
type ExitCode int

const (
	// ExitSuccess indicates every applicable test passed.
	ExitSuccess ExitCode = iota
	// ExitError indicates a general error occurred.
	ExitError
	// ExitTestsFailed indicates the run completed but at least one test did not pass.
	ExitTestsFailed
	// ExitValidation indicates invalid input or configuration.
	ExitValidation
	// ExitPreflight indicates a pre-flight stage (device probe, test data) failed.
	ExitPreflight
	// ExitUserAbort indicates the user interrupted the run.
	ExitUserAbort
)

// Int returns the exit code as an int for use with os.Exit().
func (e ExitCode) Int() int {
	return int(e)
}

// Timeouts for harness-side operations. Per-test timeouts live in the catalog.
const (
	// ProbeTimeout bounds the device enumeration executable.
	ProbeTimeout time.Duration = 30 * time.Second
	// DiagnosticTimeout bounds each system diagnostic command (lspci, lsusb, dmesg).
	DiagnosticTimeout time.Duration = 15 * time.Second
	// FetchTimeout bounds the reference data download.
	FetchTimeout time.Duration = 30 * time.Minute
	// KillGrace is how long a killed child may take to release its pipes.
	KillGrace time.Duration = 5 * time.Second
)

// Files and directories, relative to the working directory unless noted.
const (
	// DefaultReportFile is the report written when --output is not given.
	DefaultReportFile string = "cts.txt"
	// DefaultDataDir is the reference data directory.
	DefaultDataDir string = "test_data"
	// DefaultConfigDir is the default configuration directory relative to $HOME.
	DefaultConfigDir string = ".config/cts"
	// ConfigFileName is the configuration file name.
	ConfigFileName string = "config.yaml"
	// ApexSysfsGlob matches the per-device temperature files of PCIe Edge TPUs.
	ApexSysfsGlob string = "/sys/class/apex/apex_*/temp"
)

// Reference data source. The revision is pinned so runs on different days are comparable.
const (
	// TestDataRevision is the pinned commit of the reference data repository.
	TestDataRevision string = "c21de4450f88a20ac5968628d375787745932a5a"
	// TestDataArchiveURL is the archive URL template; %s is the revision.
	TestDataArchiveURL string = "https://github.com/google-coral/test_data/archive/%s.zip"
	// TestDataArchivePrefix is the top-level directory inside the archive, followed by the revision.
	TestDataArchivePrefix string = "test_data-"
)

// Device identifiers.
const (
	// EnumeratorName is the executable that lists attached Edge TPUs.
	EnumeratorName string = "lstpu"
	// CoralPCIVendor is the PCI vendor ID of the Coral PCIe accelerator (Global Unichip).
	CoralPCIVendor string = "1ac1"
	// CoralPCIDevice is the PCI device ID of the Coral PCIe accelerator.
	CoralPCIDevice string = "089a"
	// CoralUSBRuntimeID is the USB vendor:product of an accelerator running the TPU firmware.
	CoralUSBRuntimeID string = "18d1:9302"
	// CoralUSBDFUID is the USB vendor:product of an accelerator in DFU (bootloader) mode.
	CoralUSBDFUID string = "1a6e:089a"
)

// Output limits.
const (
	// DefaultMaxOutputBytes bounds the captured output kept per test.
	DefaultMaxOutputBytes int = 64 * 1024
	// ExcerptLines is the number of trailing output lines quoted in the report for non-pass tests.
	ExcerptLines int = 20
)
