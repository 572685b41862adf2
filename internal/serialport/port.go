package serialport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"
)

// DefaultBaudRate is the ROM loader's default rate.
const DefaultBaudRate = 115200

// readPoll is the read timeout set on open ports. Reads return (0, nil)
// after it so pumps can notice cancellation.
const readPoll = 100 * time.Millisecond

// Transport is a serial connection owned by one workflow run.
type Transport interface {
	io.ReadWriter

	// Name is the OS port name, e.g. /dev/ttyUSB0 or COM3.
	Name() string

	// Open opens the port at baud. It may be called once.
	Open(ctx context.Context, baud int) error

	// Close releases the port. Closing an unopened or closed port is a no-op.
	Close() error

	// SetDTR and SetRTS drive the modem control lines that ESP boards wire
	// to GPIO0 and EN.
	SetDTR(on bool) error
	SetRTS(on bool) error
}

// openFunc matches serial.Open so tests can substitute a fake port.
type openFunc func(name string, mode *serial.Mode) (serial.Port, error)

// Port implements Transport with go.bug.st/serial.
type Port struct {
	name string
	open openFunc

	mu     sync.Mutex
	port   serial.Port
	closed bool
}

// NewPort returns an unopened Port for the named device.
func NewPort(name string) *Port {
	return &Port{name: name, open: serial.Open}
}

// Name returns the OS port name.
func (p *Port) Name() string {
	return p.name
}

// Open opens the device at baud (8N1). A non-positive baud uses DefaultBaudRate.
func (p *Port) Open(ctx context.Context, baud int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if baud <= 0 {
		baud = DefaultBaudRate
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case p.closed:
		return fmt.Errorf("%w: %s", ErrClosed, p.name)
	case p.port != nil:
		return fmt.Errorf("%w: %s", ErrAlreadyOpen, p.name)
	}

	sp, err := p.open(p.name, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return fmt.Errorf("opening %s: %w", p.name, classify(err))
	}
	if err := sp.SetReadTimeout(readPoll); err != nil {
		sp.Close() //nolint:errcheck // best effort on error path
		return fmt.Errorf("configuring %s: %w", p.name, err)
	}

	p.port = sp
	return nil
}

// Close releases the port. Only the first call on an open port does work.
func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	if p.port == nil {
		return nil
	}
	sp := p.port
	p.port = nil
	if err := sp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", p.name, err)
	}
	return nil
}

// IsOpen reports whether the port is currently open.
func (p *Port) IsOpen() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.port != nil
}

func (p *Port) current() (serial.Port, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.port == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotOpen, p.name)
	}
	return p.port, nil
}

// Read reads from the port. It returns (0, nil) when nothing arrives within
// the poll interval.
func (p *Port) Read(b []byte) (int, error) {
	sp, err := p.current()
	if err != nil {
		return 0, err
	}
	return sp.Read(b)
}

// Write writes to the port.
func (p *Port) Write(b []byte) (int, error) {
	sp, err := p.current()
	if err != nil {
		return 0, err
	}
	return sp.Write(b)
}

// SetDTR drives the DTR line.
func (p *Port) SetDTR(on bool) error {
	sp, err := p.current()
	if err != nil {
		return err
	}
	return sp.SetDTR(on)
}

// SetRTS drives the RTS line.
func (p *Port) SetRTS(on bool) error {
	sp, err := p.current()
	if err != nil {
		return err
	}
	return sp.SetRTS(on)
}

// classify maps go.bug.st/serial error codes onto package sentinels.
func classify(err error) error {
	var pe *serial.PortError
	if !errors.As(err, &pe) {
		return err
	}
	if sentinel := sentinelFor(pe.Code()); sentinel != nil {
		return fmt.Errorf("%w: %w", sentinel, err)
	}
	return err
}

func sentinelFor(code serial.PortErrorCode) error {
	switch code {
	case serial.PortBusy:
		return ErrPortBusy
	case serial.PortNotFound:
		return ErrPortNotFound
	case serial.PermissionDenied:
		return ErrPermission
	default:
		return nil
	}
}
