package esptool

import (
	"regexp"
	"strings"
)

var (
	// "Chip is ESP32-D0WD-V3 (revision v3.0)" in esptool 4.x,
	// "Chip type:          ESP32-C3 (QFN32) (revision v0.4)" in 5.x.
	chipLine = regexp.MustCompile(`(?m)^\s*(?:Chip is|Chip type:)\s+(.+?)\s*$`)

	// "Detecting chip type... ESP32-S3"
	detectLine = regexp.MustCompile(`(?m)Detecting chip type\.*\s*(\S[^\r\n]*?)\s*$`)

	// "MAC: 24:6f:28:aa:bb:cc" and, on chips with an EUI-64, an extra
	// "BASE MAC: ..." line. Eight-octet EUI-64 lines do not match.
	macLine = regexp.MustCompile(`(?m)^\s*(BASE )?MAC:\s+((?:[0-9a-fA-F]{2}:){5}[0-9a-fA-F]{2})\s*$`)

	fatalLine = regexp.MustCompile(`(?m)^\s*A fatal error occurred:\s*(.+?)\s*$`)
)

// parseChip extracts the chip description from esptool output.
func parseChip(out string) string {
	if m := chipLine.FindStringSubmatch(out); m != nil {
		return m[1]
	}
	if m := detectLine.FindStringSubmatch(out); m != nil {
		return m[1]
	}
	return ""
}

// parseMAC returns the base MAC from read_mac output, exactly as esptool
// prints it. A BASE MAC line takes precedence over a plain MAC line.
func parseMAC(out string) string {
	var first string
	for _, m := range macLine.FindAllStringSubmatch(out, -1) {
		if m[1] != "" {
			return m[2]
		}
		if first == "" {
			first = m[2]
		}
	}
	return first
}

// fatalReason returns esptool's last fatal error message, if any.
func fatalReason(out string) string {
	all := fatalLine.FindAllStringSubmatch(out, -1)
	if len(all) == 0 {
		return ""
	}
	return all[len(all)-1][1]
}

// isHandshakeFailure reports whether a fatal reason means the ROM loader
// never answered.
func isHandshakeFailure(reason string) bool {
	r := strings.ToLower(reason)
	return strings.Contains(r, "failed to connect") ||
		strings.Contains(r, "no serial data received") ||
		strings.Contains(r, "wrong boot mode") ||
		strings.Contains(r, "invalid head of packet")
}
