package device

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/tungetti/cts/internal/constants"
	"github.com/tungetti/cts/internal/errors"
)

// DefaultSysfsPath is the default path to the sysfs PCI devices directory.
const DefaultSysfsPath = "/sys/bus/pci/devices"

// DriverApex is the kernel driver of the Coral PCIe accelerator.
const DriverApex = "apex"

// FileSystem abstracts filesystem operations for testing.
type FileSystem interface {
	ReadDir(dirname string) ([]fs.DirEntry, error)
	ReadFile(filename string) ([]byte, error)
	Readlink(name string) (string, error)
}

// RealFileSystem implements FileSystem using the actual operating system.
type RealFileSystem struct{}

// ReadDir reads the directory named by dirname and returns a list of directory entries.
func (RealFileSystem) ReadDir(dirname string) ([]fs.DirEntry, error) {
	return os.ReadDir(dirname)
}

// ReadFile reads the file named by filename and returns the contents.
func (RealFileSystem) ReadFile(filename string) ([]byte, error) {
	return os.ReadFile(filename)
}

// Readlink returns the destination of the named symbolic link.
func (RealFileSystem) Readlink(name string) (string, error) {
	return os.Readlink(name)
}

// PCIFunction is one Coral PCIe function found in sysfs.
type PCIFunction struct {
	Address  string // PCI bus address, e.g. "0000:03:00.0"
	VendorID string
	DeviceID string
	Revision string
	Driver   string // Bound kernel driver, empty if none
}

// HasDriver returns true if a driver is bound to the function.
func (f PCIFunction) HasDriver() bool {
	return f.Driver != ""
}

// String returns a one-line description for reports.
func (f PCIFunction) String() string {
	driver := "no driver"
	if f.Driver != "" {
		driver = "driver: " + f.Driver
	}
	return fmt.Sprintf("%s [%s:%s] (%s)", f.Address, f.VendorID, f.DeviceID, driver)
}

// PCIScanner lists Coral PCIe functions from sysfs.
type PCIScanner struct {
	fs        FileSystem
	sysfsPath string
	vendorID  string
	deviceID  string
}

// ScannerOption configures the scanner.
type ScannerOption func(*PCIScanner)

// WithFileSystem sets a custom filesystem implementation.
func WithFileSystem(fsys FileSystem) ScannerOption {
	return func(s *PCIScanner) {
		s.fs = fsys
	}
}

// WithSysfsPath sets a custom sysfs path.
func WithSysfsPath(path string) ScannerOption {
	return func(s *PCIScanner) {
		s.sysfsPath = path
	}
}

// NewPCIScanner creates a scanner for the Coral PCIe vendor and device IDs.
func NewPCIScanner(opts ...ScannerOption) *PCIScanner {
	s := &PCIScanner{
		fs:        RealFileSystem{},
		sysfsPath: DefaultSysfsPath,
		vendorID:  constants.CoralPCIVendor,
		deviceID:  constants.CoralPCIDevice,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan returns the Coral functions in address order. A host without a PCI
// bus in sysfs yields a NotFound error.
func (s *PCIScanner) Scan(ctx context.Context) ([]PCIFunction, error) {
	entries, err := s.fs.ReadDir(s.sysfsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.NotFound, "sysfs PCI devices directory not found", err).WithOp("device.Scan")
		}
		return nil, errors.Wrap(errors.DeviceProbe, "failed to read PCI devices directory", err).WithOp("device.Scan")
	}

	var found []PCIFunction
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(errors.Cancelled, "PCI scan cancelled", err).WithOp("device.Scan")
		}

		// Entries are symlinks; IsDir is false for them.
		if !entry.IsDir() && entry.Type()&os.ModeSymlink == 0 {
			continue
		}

		fn, ok := s.readFunction(entry.Name())
		if ok {
			found = append(found, fn)
		}
	}
	return found, nil
}

// readFunction reads one sysfs entry and reports whether it is a Coral function.
func (s *PCIScanner) readFunction(address string) (PCIFunction, bool) {
	dir := filepath.Join(s.sysfsPath, address)

	vendor, err := s.readHex(dir, "vendor")
	if err != nil || vendor != s.vendorID {
		return PCIFunction{}, false
	}
	dev, err := s.readHex(dir, "device")
	if err != nil || dev != s.deviceID {
		return PCIFunction{}, false
	}

	fn := PCIFunction{Address: address, VendorID: vendor, DeviceID: dev}
	if rev, err := s.readHex(dir, "revision"); err == nil {
		fn.Revision = rev
	}
	if target, err := s.fs.Readlink(filepath.Join(dir, "driver")); err == nil {
		fn.Driver = filepath.Base(target)
	}
	return fn, true
}

func (s *PCIScanner) readHex(dir, name string) (string, error) {
	content, err := s.fs.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return "", err
	}
	return ParseHexID(string(content)), nil
}

// ParseHexID normalizes a hex ID string by removing "0x" prefix and converting to lowercase.
func ParseHexID(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "0X")
	return strings.ToLower(s)
}
