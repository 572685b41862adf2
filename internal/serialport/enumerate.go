package serialport

import (
	"fmt"
	"sort"
	"strings"

	"go.bug.st/serial/enumerator"
)

// PortInfo describes one serial port.
type PortInfo struct {
	Name         string `json:"name"`
	VID          string `json:"vid,omitempty"`
	PID          string `json:"pid,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
	Product      string `json:"product,omitempty"`
	IsUSB        bool   `json:"is_usb"`

	// Candidate is true for USB bridges known to front ESP chips.
	Candidate bool `json:"candidate"`

	// Bridge names the chip family when Candidate is true.
	Bridge string `json:"bridge,omitempty"`
}

// String renders the port the way the chooser and the ports command list it.
func (p PortInfo) String() string {
	var b strings.Builder
	b.WriteString(p.Name)
	if p.IsUSB {
		fmt.Fprintf(&b, " [%s:%s]", p.VID, p.PID)
	}
	if p.Bridge != "" {
		fmt.Fprintf(&b, " %s", p.Bridge)
	}
	if p.Product != "" {
		fmt.Fprintf(&b, " (%s)", p.Product)
	}
	return b.String()
}

// usbBridge identifies a USB-to-UART chip by vendor and product ID.
type usbBridge struct {
	vid, pid string
	name     string
}

// knownBridges are the VID:PID pairs commonly fitted to ESP boards.
var knownBridges = []usbBridge{
	{"10C4", "EA60", "CP210x"},
	{"1A86", "7523", "CH340"},
	{"1A86", "55D4", "CH9102"},
	{"0403", "6001", "FT232R"},
	{"0403", "6015", "FT231X"},
	{"303A", "1001", "ESP USB-Serial/JTAG"},
}

// detailedPortsList is replaced in tests.
var detailedPortsList = enumerator.GetDetailedPortsList

// ListPorts returns every serial port, candidates first, then by name.
func ListPorts() ([]PortInfo, error) {
	details, err := detailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEnumeration, err)
	}

	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		if d == nil {
			continue
		}
		info := PortInfo{
			Name:         d.Name,
			IsUSB:        d.IsUSB,
			VID:          strings.ToUpper(d.VID),
			PID:          strings.ToUpper(d.PID),
			SerialNumber: d.SerialNumber,
			Product:      d.Product,
		}
		if info.IsUSB {
			info.Bridge, info.Candidate = bridgeName(info.VID, info.PID)
		}
		ports = append(ports, info)
	}

	sort.SliceStable(ports, func(i, j int) bool {
		if ports[i].Candidate != ports[j].Candidate {
			return ports[i].Candidate
		}
		return ports[i].Name < ports[j].Name
	})
	return ports, nil
}

func bridgeName(vid, pid string) (string, bool) {
	for _, b := range knownBridges {
		if b.vid == vid && b.pid == pid {
			return b.name, true
		}
	}
	return "", false
}

// Candidates filters ports down to the ESP bridge candidates.
func Candidates(ports []PortInfo) []PortInfo {
	var out []PortInfo
	for _, p := range ports {
		if p.Candidate {
			out = append(out, p)
		}
	}
	return out
}

// Probe reports whether serial ports can be enumerated on this host at all.
// It does not require a device to be plugged in.
func Probe() error {
	_, err := ListPorts()
	return err
}
