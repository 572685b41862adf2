package serialport

import "errors"

var (
	// ErrNoDevice is returned when no port could be chosen.
	ErrNoDevice = errors.New("serialport: no device found")

	// ErrNoSelection is returned when the user dismisses the port chooser.
	ErrNoSelection = errors.New("serialport: no port selected")

	// ErrNotOpen is returned for I/O on a port that is not open.
	ErrNotOpen = errors.New("serialport: port not open")

	// ErrAlreadyOpen is returned when Open is called twice.
	ErrAlreadyOpen = errors.New("serialport: port already open")

	// ErrClosed is returned when opening a port that was already closed.
	ErrClosed = errors.New("serialport: port closed")

	// ErrPortBusy is returned when another program holds the port.
	ErrPortBusy = errors.New("serialport: port busy")

	// ErrPortNotFound is returned when the named port does not exist.
	ErrPortNotFound = errors.New("serialport: port not found")

	// ErrPermission is returned when the user may not open the port.
	ErrPermission = errors.New("serialport: permission denied")

	// ErrEnumeration is returned when the OS port list cannot be read.
	ErrEnumeration = errors.New("serialport: cannot enumerate ports")
)
