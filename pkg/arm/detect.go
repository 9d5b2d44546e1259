package arm

import (
	"fmt"
	"slices"
	"strings"

	"go.bug.st/serial/enumerator"
)

// USB vendor IDs of the serial bridges found on drawing arms.
var knownVendors = map[string]string{
	"1a86": "QinHeng CH340",
	"10c4": "Silicon Labs CP210x",
	"0403": "FTDI",
}

// Port names used by USB serial bridges when vendor details are missing.
var knownNames = []string{"usbserial", "ttyUSB", "wchusbserial"}

// listPorts is swapped in tests.
var listPorts = enumerator.GetDetailedPortsList

// PortInfo describes a serial port and whether it looks like an arm.
type PortInfo struct {
	Name    string
	USB     bool
	VID     string
	PID     string
	Product string
	// Bridge names the USB serial chip when the vendor is known.
	Bridge string
	Match  bool
}

// Ports lists the serial ports, Bluetooth ports excluded, sorted by name.
func Ports() ([]PortInfo, error) {
	ports, err := listPorts()
	if err != nil {
		return nil, fmt.Errorf("list ports: %w", err)
	}

	var out []PortInfo
	for _, p := range ports {
		// Skip Bluetooth ports on macOS
		if strings.Contains(p.Name, "Bluetooth") {
			continue
		}
		info := PortInfo{
			Name:    p.Name,
			USB:     p.IsUSB,
			VID:     p.VID,
			PID:     p.PID,
			Product: p.Product,
			Match:   matchesSignature(p),
		}
		if p.IsUSB {
			info.Bridge = knownVendors[strings.ToLower(p.VID)]
		}
		out = append(out, info)
	}
	slices.SortFunc(out, func(a, b PortInfo) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

// Detect returns the first serial port matching a known arm signature.
func Detect() (string, error) {
	ports, err := Ports()
	if err != nil {
		return "", err
	}
	for _, p := range ports {
		if p.Match {
			return p.Name, nil
		}
	}
	return "", ErrDeviceNotFound
}

func matchesSignature(p *enumerator.PortDetails) bool {
	if p.IsUSB {
		if _, ok := knownVendors[strings.ToLower(p.VID)]; ok {
			return true
		}
	}
	for _, n := range knownNames {
		if strings.Contains(p.Name, n) {
			return true
		}
	}
	return false
}
