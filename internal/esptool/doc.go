// Package esptool talks to an ESP chip's ROM loader by driving the external
// esptool program over a serial transport the caller owns.
//
// The ROM protocol is not reimplemented here. For each operation the
// Client:
//
//  1. serves the transport on a loopback TCP socket,
//  2. runs esptool against socket://127.0.0.1:PORT with --before no_reset
//     and --after no_reset, so esptool never touches the control lines,
//  3. pumps bytes between the socket and the transport until esptool exits,
//  4. parses esptool's output.
//
// The reset sequences that put the chip into download mode and reboot it
// afterwards are driven directly on the transport's DTR and RTS lines,
// using the wiring of the common ESP auto-reset circuit (DTR to GPIO0,
// RTS to EN).
package esptool
