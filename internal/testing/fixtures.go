package testing

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tungetti/cts/internal/catalog"
	"github.com/tungetti/cts/internal/device"
)

// ============================================================================
// Enumerator output
// ============================================================================

// LstpuOutputUSB is enumerator output for one USB accelerator.
const LstpuOutputUSB = "0 Apex (USB) /sys/bus/usb/devices/2-1\n"

// LstpuOutputPCIe is enumerator output for two PCIe accelerators.
const LstpuOutputPCIe = `0 Apex (PCI) /dev/apex_0
1 Apex (PCI) /dev/apex_1
`

// ============================================================================
// Test output
// ============================================================================

// GTestPassed is the tail of a passing gtest binary.
const GTestPassed = `[==========] 3 tests from 1 test suite ran. (1204 ms total)
[  PASSED  ] 3 tests.
`

// GTestFailed is the tail of a gtest binary with one failing case.
const GTestFailed = `[==========] 3 tests from 1 test suite ran. (1204 ms total)
[  PASSED  ] 2 tests.
[  FAILED  ] 1 test, listed below:
[  FAILED  ] ClassifyTest.MobileNet
`

// ============================================================================
// Topologies
// ============================================================================

// NoDevices is a host without accelerators.
func NoDevices() device.Topology {
	return device.Topology{}
}

// OneUSB is a host with one USB accelerator.
func OneUSB() device.Topology {
	return device.ParseEnumeration(LstpuOutputUSB)
}

// TwoPCIe is a host with two PCIe accelerators.
func TwoPCIe() device.Topology {
	return device.ParseEnumeration(LstpuOutputPCIe)
}

// ============================================================================
// Catalog entries
// ============================================================================

// GTestSpec returns a gtest-style test needing minDevices accelerators and
// the reference data.
func GTestSpec(id string, minDevices int) catalog.TestSpec {
	requirement := "requires at least 1 device"
	if minDevices != 1 {
		requirement = fmt.Sprintf("requires at least %d devices", minDevices)
	}
	return catalog.TestSpec{
		ID:          id,
		Executable:  id,
		Applicable:  catalog.MinDevices(minDevices),
		Requirement: requirement,
		Timeout:     time.Minute,
		Rule:        catalog.ExitCodeAndOutputPattern,
		PassPattern: catalog.GTestPassPattern,
		FailPattern: catalog.GTestFailPattern,
		NeedsData:   true,
	}
}

// SmallCatalog is two single-device tests followed by one needing two
// devices.
func SmallCatalog() *catalog.Catalog {
	return catalog.MustNew(
		GTestSpec("a_test", 1),
		GTestSpec("b_test", 1),
		GTestSpec("multi_test", 2),
	)
}

// ============================================================================
// Files
// ============================================================================

// WriteFile writes content to name inside dir, creating parents, and
// returns the full path.
func WriteFile(t testing.TB, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}
