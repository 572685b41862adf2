package esptool

import "errors"

var (
	// ErrUnavailable is returned when the esptool executable cannot be found.
	ErrUnavailable = errors.New("esptool: executable not available")

	// ErrHandshake is returned when esptool cannot sync with the ROM loader.
	ErrHandshake = errors.New("esptool: cannot connect to chip")

	// ErrCommand is returned when an esptool command fails after connecting.
	ErrCommand = errors.New("esptool: command failed")

	// ErrNoMAC is returned when read_mac output carries no MAC address.
	ErrNoMAC = errors.New("esptool: MAC address not found in output")

	// ErrBridge is returned when the socket bridge to the transport fails.
	ErrBridge = errors.New("esptool: serial bridge failed")

	// ErrControlLines is returned when DTR/RTS cannot be driven.
	ErrControlLines = errors.New("esptool: cannot drive reset lines")
)
