// Package sysinfo collects the environment block of the report: host and
// kernel metadata, the Coral PCIe functions seen in sysfs, and best-effort
// output of the system tools that help diagnose a failing accelerator.
package sysinfo

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/hashicorp/go-multierror"
	"github.com/shirou/gopsutil/v3/host"
)

// Host describes the machine the tests ran on.
type Host struct {
	Arch            string // Machine architecture, e.g. "aarch64"
	OS              string // GOOS, e.g. "linux"
	Platform        string // Distribution, e.g. "debian"
	PlatformVersion string // e.g. "11.7"
	Kernel          string // Kernel release, e.g. "5.10.0-23-arm64"
	Hostname        string
}

// PlatformString returns "<platform> <version>", or "unknown".
func (h Host) PlatformString() string {
	switch {
	case h.Platform == "":
		return "unknown"
	case h.PlatformVersion == "":
		return h.Platform
	default:
		return h.Platform + " " + h.PlatformVersion
	}
}

// HostReader returns host metadata.
type HostReader func(ctx context.Context) (Host, error)

// ReadHost reads host metadata through gopsutil. Fields that cannot be read
// keep their fallback (the harness build target) or stay empty, and every
// failure is reported in the returned error.
func ReadHost(ctx context.Context) (Host, error) {
	h := Host{Arch: runtime.GOARCH, OS: runtime.GOOS}
	var result *multierror.Error

	if arch, err := host.KernelArch(); err == nil && arch != "" {
		h.Arch = arch
	}
	platform, _, version, err := host.PlatformInformationWithContext(ctx)
	if err != nil {
		result = multierror.Append(result, fmt.Errorf("platform: %w", err))
	}
	h.Platform, h.PlatformVersion = platform, version

	if h.Kernel, err = host.KernelVersionWithContext(ctx); err != nil {
		result = multierror.Append(result, fmt.Errorf("kernel: %w", err))
	}
	if h.Hostname, err = os.Hostname(); err != nil {
		result = multierror.Append(result, fmt.Errorf("hostname: %w", err))
	}

	return h, result.ErrorOrNil()
}

// StaticHost returns a HostReader yielding h.
func StaticHost(h Host) HostReader {
	return func(context.Context) (Host, error) {
		return h, nil
	}
}
