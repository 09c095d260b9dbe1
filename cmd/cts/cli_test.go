package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tungetti/cts/internal/app"
	"github.com/tungetti/cts/internal/catalog"
	"github.com/tungetti/cts/internal/constants"
	"github.com/tungetti/cts/internal/device"
	"github.com/tungetti/cts/internal/exec"
	"github.com/tungetti/cts/internal/logging"
	"github.com/tungetti/cts/internal/sysinfo"
	ctstesting "github.com/tungetti/cts/internal/testing"
	"github.com/tungetti/cts/internal/thermal"
)

func newTestCLI(t *testing.T, topo device.Topology, runner exec.Runner) (*CLI, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	c := NewCLI(stdout, stderr)
	c.options = func() app.Options {
		opts := c.defaultOptions()
		opts.Runner = runner
		opts.Logger = logging.NewNop()
		opts.Prober = device.StaticProber{Topology: topo}
		opts.Fetcher = &ctstesting.MockFetcher{}
		opts.HostReader = sysinfo.StaticHost(sysinfo.Host{Arch: "aarch64", OS: "linux"})
		opts.Thermal = thermal.Static{}
		return opts
	}
	return c, stdout, stderr
}

func baseArgs(dir string) []string {
	return []string{
		"-c", filepath.Join(dir, "config.yaml"),
		"-o", filepath.Join(dir, "cts.txt"),
		"--bin-dir", dir,
		"--data-dir", filepath.Join(dir, "test_data"),
		"--no-color",
		"--no-diagnostics",
	}
}

func TestCLI_Help(t *testing.T) {
	c, stdout, _ := newTestCLI(t, device.Topology{}, exec.NewMockRunner())

	code := c.Run([]string{"--help"})

	assert.Equal(t, constants.ExitSuccess.Int(), code)
	assert.Contains(t, stdout.String(), "Coral Compatibility Test Suite")
	assert.Contains(t, stdout.String(), "--output PATH")
}

func TestCLI_HelpCommand(t *testing.T) {
	c, stdout, _ := newTestCLI(t, device.Topology{}, exec.NewMockRunner())

	code := c.Run([]string{"help", "list"})

	assert.Equal(t, constants.ExitSuccess.Int(), code)
	assert.Contains(t, stdout.String(), "cts list")
}

func TestCLI_Version(t *testing.T) {
	c, stdout, _ := newTestCLI(t, device.Topology{}, exec.NewMockRunner())

	code := c.Run([]string{"version"})

	assert.Equal(t, constants.ExitSuccess.Int(), code)
	assert.Contains(t, stdout.String(), "cts version "+Version)
	assert.Contains(t, stdout.String(), constants.TestDataRevision)
}

func TestCLI_InvalidArguments(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown command", []string{"frobnicate"}, "unknown command: frobnicate"},
		{"unknown flag", []string{"--bogus"}, "invalid flags"},
		{"verbose and quiet", []string{"-v", "-q"}, "--verbose and --quiet"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _, stderr := newTestCLI(t, device.Topology{}, exec.NewMockRunner())

			code := c.Run(tt.args)

			assert.Equal(t, constants.ExitValidation.Int(), code)
			assert.Contains(t, stderr.String(), tt.want)
		})
	}
}

func TestCLI_BadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("probe_timeout: [nope\n"), 0o644))
	c, _, stderr := newTestCLI(t, device.Topology{}, exec.NewMockRunner())

	code := c.Run([]string{"-c", path})

	assert.Equal(t, constants.ExitValidation.Int(), code)
	assert.Contains(t, stderr.String(), "Error: configuration: ")
}

func TestCLI_InvalidLogLevel(t *testing.T) {
	dir := t.TempDir()
	c, _, stderr := newTestCLI(t, device.Topology{}, exec.NewMockRunner())

	code := c.Run(append(baseArgs(dir), "--log-level", "loud"))

	assert.Equal(t, constants.ExitValidation.Int(), code)
	assert.Contains(t, stderr.String(), "log_level")
}

func TestCLI_Run(t *testing.T) {
	dir := t.TempDir()
	runner := exec.NewMockRunner()
	runner.SetDefaultResponse(exec.SuccessResult("[  PASSED  ] 1 test.\n"))
	c, stdout, stderr := newTestCLI(t, device.Topology{Count: 1, Interface: device.InterfaceUSB}, runner)

	code := c.Run(append(baseArgs(dir), "--test", "tflite_utils_test,classification"))

	assert.Equal(t, constants.ExitSuccess.Int(), code, stderr.String())
	assert.Equal(t, []string{"tflite_utils_test", "classification"}, runner.CalledNames())
	assert.Contains(t, stdout.String(), "Overall Compatibility: PASS")

	data, err := os.ReadFile(filepath.Join(dir, "cts.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "not selected")
	assert.Contains(t, string(data), "Overall Compatibility: PASS")
}

func TestCLI_Run_UnknownTest(t *testing.T) {
	dir := t.TempDir()
	runner := exec.NewMockRunner()
	c, _, stderr := newTestCLI(t, device.Topology{Count: 1, Interface: device.InterfaceUSB}, runner)

	code := c.Run(append(baseArgs(dir), "--test", "no_such_test"))

	assert.Equal(t, constants.ExitValidation.Int(), code)
	assert.Contains(t, stderr.String(), "unknown test(s): no_such_test")
	assert.Zero(t, runner.CallCount())
}

func TestCLI_Run_CatalogFile(t *testing.T) {
	dir := t.TempDir()
	catPath := ctstesting.WriteFile(t, dir, "catalog.yaml", `tests:
  - id: smoke
    rule: exit_code
    needs_data: false
    timeout: 30s
`)
	ctstesting.WriteFile(t, dir, "config.yaml", "catalog_file: "+catPath+"\n")

	runner := exec.NewMockRunner()
	runner.SetDefaultResponse(exec.SuccessResult(""))
	c, _, stderr := newTestCLI(t, device.Topology{Count: 1, Interface: device.InterfacePCIe}, runner)

	code := c.Run(baseArgs(dir))

	assert.Equal(t, constants.ExitSuccess.Int(), code, stderr.String())
	require.Equal(t, []string{"smoke"}, runner.CalledNames())
	assert.Equal(t, 30*time.Second, runner.Calls()[0].Timeout)
	assert.NoDirExists(t, filepath.Join(dir, "test_data"))
}

func TestCLI_Probe(t *testing.T) {
	dir := t.TempDir()
	c, stdout, _ := newTestCLI(t, device.Topology{Count: 4, Interface: device.InterfacePCIe}, exec.NewMockRunner())

	code := c.Run(append(baseArgs(dir), "probe"))

	assert.Equal(t, constants.ExitSuccess.Int(), code)
	assert.Contains(t, stdout.String(), "4 device(s) over PCIE")
}

func TestCLI_List(t *testing.T) {
	dir := t.TempDir()
	c, stdout, _ := newTestCLI(t, device.Topology{Count: 1, Interface: device.InterfaceUSB}, exec.NewMockRunner())

	code := c.Run(append(baseArgs(dir), "list"))

	assert.Equal(t, constants.ExitSuccess.Int(), code)
	out := stdout.String()
	for _, id := range catalog.Default().IDs() {
		assert.Contains(t, out, id)
	}
	assert.Contains(t, out, "requires at least 2 devices")
}
