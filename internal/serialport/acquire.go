package serialport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type portKey struct{}

// WithPort returns a context that asks the Acquirer for a specific port.
// An empty name leaves ctx unchanged.
func WithPort(ctx context.Context, name string) context.Context {
	if name == "" {
		return ctx
	}
	return context.WithValue(ctx, portKey{}, name)
}

// PortFrom returns the port requested through WithPort, if any.
func PortFrom(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(portKey{}).(string)
	return name, ok && name != ""
}

// Prompter lets the user choose among ports.
type Prompter interface {
	// Choose returns the chosen port or ErrNoSelection.
	Choose(ctx context.Context, ports []PortInfo) (PortInfo, error)
}

// Logger is the subset of logging.Logger the Acquirer uses.
type Logger interface {
	Info(msg string, args ...any)
}

// Acquirer resolves which port a workflow run uses and hands back an
// unopened Transport for it.
type Acquirer struct {
	// Port is the configured port. Empty means choose per run.
	Port string

	// WaitTimeout bounds how long to wait for a device to be plugged in.
	// Zero fails immediately when nothing is attached.
	WaitTimeout time.Duration

	// Prompter is asked when several ports qualify. Nil means the choice
	// cannot be made and ErrNoDevice is returned.
	Prompter Prompter

	Logger Logger

	// List and NewTransport default to ListPorts and NewPort.
	List         func() ([]PortInfo, error)
	NewTransport func(name string) Transport
}

// Acquire picks a port and returns an unopened Transport for it.
func (a *Acquirer) Acquire(ctx context.Context) (Transport, error) {
	name, err := a.choose(ctx)
	if err != nil {
		return nil, err
	}
	if a.Logger != nil {
		a.Logger.Info("serial port selected", "port", name)
	}
	if a.NewTransport != nil {
		return a.NewTransport(name), nil
	}
	return NewPort(name), nil
}

func (a *Acquirer) choose(ctx context.Context) (string, error) {
	if name, ok := PortFrom(ctx); ok {
		return name, nil
	}
	if a.Port != "" {
		return a.Port, nil
	}

	ports, err := a.waitForPorts(ctx)
	if err != nil {
		return "", err
	}

	candidates := Candidates(ports)
	if len(candidates) == 1 {
		return candidates[0].Name, nil
	}

	// Several candidates, or only unrecognised ports: ask.
	offer := candidates
	if len(offer) == 0 {
		offer = ports
	}
	if a.Prompter == nil {
		if len(candidates) > 1 {
			return "", fmt.Errorf("%w: %d candidate ports, choose one with --port", ErrNoDevice, len(candidates))
		}
		return "", ErrNoDevice
	}

	chosen, err := a.Prompter.Choose(ctx, offer)
	if err != nil {
		return "", err
	}
	return chosen.Name, nil
}

// waitForPorts lists ports, polling with exponential backoff until a
// candidate shows up or WaitTimeout expires. Without a wait timeout it
// returns whatever is present, failing only when nothing is.
func (a *Acquirer) waitForPorts(ctx context.Context) ([]PortInfo, error) {
	list := a.List
	if list == nil {
		list = ListPorts
	}

	if a.WaitTimeout <= 0 {
		ports, err := list()
		if err != nil {
			return nil, err
		}
		if len(ports) == 0 {
			return nil, ErrNoDevice
		}
		return ports, nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = a.WaitTimeout

	var ports []PortInfo
	op := func() error {
		found, err := list()
		if err != nil {
			return backoff.Permanent(err)
		}
		ports = found
		if len(Candidates(found)) == 0 {
			return ErrNoDevice
		}
		return nil
	}
	notify := func(_ error, next time.Duration) {
		if a.Logger != nil {
			a.Logger.Info("waiting for device", "retry_in", next)
		}
	}

	err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify)
	switch {
	case err == nil:
		return ports, nil
	case errors.Is(err, ErrNoDevice) && len(ports) > 0:
		// Timed out with only unrecognised ports; let the prompter decide.
		return ports, nil
	default:
		return nil, err
	}
}
