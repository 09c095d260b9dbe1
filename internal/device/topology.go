// Package device discovers the Edge TPU accelerators attached to the host.
// The Prober runs the lstpu enumerator and condenses its output into a
// Topology; the PCI scanner reads sysfs for Coral PCIe functions and the
// kernel driver bound to each.
package device

import (
	"fmt"
	"strings"
)

// Interface is the bus the accelerators are attached through.
type Interface int

const (
	// InterfaceUnknown means no device was found or the bus could not be told.
	InterfaceUnknown Interface = iota
	// InterfaceUSB means at least one accelerator is attached over USB.
	InterfaceUSB
	// InterfacePCIe means at least one accelerator is attached over PCIe.
	InterfacePCIe
)

// String returns the interface name as shown in reports.
func (i Interface) String() string {
	switch i {
	case InterfaceUSB:
		return "USB"
	case InterfacePCIe:
		return "PCIE"
	default:
		return "UNKNOWN"
	}
}

// Topology describes the accelerators found on the host. It is built once per
// run and passed by value.
type Topology struct {
	Count     int       // Number of accelerators
	Interface Interface // Dominant bus; PCIe wins over USB
	Devices   []string  // Raw enumerator lines, one per device
}

// HasDevices returns true if at least one accelerator was found.
func (t Topology) HasDevices() bool {
	return t.Count > 0
}

// IsPCIe returns true if the accelerators are reached over PCIe.
func (t Topology) IsPCIe() bool {
	return t.Interface == InterfacePCIe
}

// IsUSB returns true if the accelerators are reached over USB only.
func (t Topology) IsUSB() bool {
	return t.Interface == InterfaceUSB
}

// String returns a one-line description such as "2 device(s) over PCIE".
func (t Topology) String() string {
	return fmt.Sprintf("%d device(s) over %s", t.Count, t.Interface)
}

// ParseEnumeration turns enumerator output into a Topology. Every non-empty
// line is one device. A line mentioning "PCI" marks the host as PCIe, one
// mentioning "USB" as USB; PCIe takes precedence when both appear.
func ParseEnumeration(output string) Topology {
	var t Topology
	var pci, usb bool
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		t.Devices = append(t.Devices, line)
		if strings.Contains(line, "PCI") {
			pci = true
		}
		if strings.Contains(line, "USB") {
			usb = true
		}
	}
	t.Count = len(t.Devices)

	switch {
	case pci:
		t.Interface = InterfacePCIe
	case usb:
		t.Interface = InterfaceUSB
	default:
		t.Interface = InterfaceUnknown
	}
	return t
}

// hasBusLines reports whether any device line names a bus. Output from an
// enumerator that failed is only trusted when it does.
func (t Topology) hasBusLines() bool {
	for _, d := range t.Devices {
		if strings.Contains(d, "PCI") || strings.Contains(d, "USB") {
			return true
		}
	}
	return false
}
