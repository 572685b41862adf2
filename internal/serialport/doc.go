// Package serialport finds, selects and opens the serial port a device is
// attached to.
//
// # Enumeration
//
// ListPorts reports every port the OS knows about, with USB identity when
// available. Ports behind a USB bridge commonly fitted to ESP boards
// (Silicon Labs CP210x, WCH CH34x, FTDI, Espressif native USB) are marked
// as candidates.
//
// # Selection
//
// An Acquirer resolves which port a workflow run uses, in order:
//  1. a port carried in the context (WithPort), e.g. chosen in the web form
//  2. the configured device.port
//  3. the only candidate, when exactly one is plugged in
//  4. the Prompter, which lets the user choose
//
// With a wait timeout the Acquirer polls for a device to be plugged in.
//
// # Transport
//
// Port implements Transport over go.bug.st/serial. It is owned by a single
// workflow run, opened once, and closing it twice (or closing a port that
// never opened) is harmless.
package serialport
