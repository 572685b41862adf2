package esptool

import "testing"

const esptool4ChipID = `esptool.py v4.7.0
Serial port socket://127.0.0.1:40919
Connecting....
Detecting chip type... Unsupported detection protocol, switching and trying again...
Connecting....
Detecting chip type... ESP32
Chip is ESP32-D0WD-V3 (revision v3.0)
Features: WiFi, BT, Dual Core, 240MHz, VRef calibration in efuse, Coding Scheme None
Crystal is 40MHz
MAC: 24:6f:28:aa:bb:cc
Uploading stub...
Warning: ESP32 has no Chip ID. Reading MAC instead.
MAC: 24:6f:28:aa:bb:cc
Staying in bootloader.
`

const esptool5ReadMAC = `esptool v5.0.2
Connected to ESP32-C6 on socket://127.0.0.1:40919:
Chip type:          ESP32-C6 (QFN40) (revision v0.1)
Features:           Wi-Fi 6, BT 5 (LE), IEEE802.15.4, Single Core + LP Core, 160MHz
Crystal frequency:  40MHz
MAC:                40:4c:ca:ff:fe:12:34:56
BASE MAC:           40:4c:ca:12:34:56
MAC_EXT:            ff:fe

Stub flasher running.
`

func TestParseChip(t *testing.T) {
	tests := []struct {
		name string
		out  string
		want string
	}{
		{"esptool 4", esptool4ChipID, "ESP32-D0WD-V3 (revision v3.0)"},
		{"esptool 5", esptool5ReadMAC, "ESP32-C6 (QFN40) (revision v0.1)"},
		{"detect only", "Connecting...\nDetecting chip type... ESP32-S3\n", "ESP32-S3"},
		{"nothing", "Connecting........_____", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseChip(tt.out); got != tt.want {
				t.Errorf("parseChip() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseMAC(t *testing.T) {
	tests := []struct {
		name string
		out  string
		want string
	}{
		{"esptool 4", esptool4ChipID, "24:6f:28:aa:bb:cc"},
		{"base mac wins over eui64", esptool5ReadMAC, "40:4c:ca:12:34:56"},
		{"upper case kept", "MAC: 24:6F:28:AA:BB:CC\n", "24:6F:28:AA:BB:CC"},
		{"windows line endings", "Chip is ESP32\r\nMAC: 24:0a:c4:01:02:03\r\n", "24:0a:c4:01:02:03"},
		{"no mac", "A fatal error occurred: Failed to connect", ""},
		{"truncated mac", "MAC: 24:0a:c4:01:02\n", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseMAC(tt.out); got != tt.want {
				t.Errorf("parseMAC() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFatalReason(t *testing.T) {
	out := "Connecting........_____....._____\n\nA fatal error occurred: Failed to connect to ESP32: No serial data received.\nFor troubleshooting steps visit: https://docs.espressif.com\n"

	reason := fatalReason(out)
	if reason != "Failed to connect to ESP32: No serial data received." {
		t.Errorf("fatalReason() = %q", reason)
	}
	if !isHandshakeFailure(reason) {
		t.Error("expected handshake failure")
	}
	if isHandshakeFailure("Invalid MAC_EXT") {
		t.Error("unexpected handshake failure")
	}
	if fatalReason("all good") != "" {
		t.Error("expected empty reason")
	}
}
