package registration

import (
	"errors"
	"fmt"
)

// Kind classifies a failed run.
type Kind int

// Failure kinds.
const (
	InvalidEmail Kind = iota + 1
	TransportUnavailable
	DeviceReadError
	DeliveryError
)

// Sentinels matched with errors.Is against an *Error of the same Kind.
var (
	ErrInvalidEmail         = errors.New("registration: invalid email")
	ErrTransportUnavailable = errors.New("registration: serial transport unavailable")
	ErrDeviceRead           = errors.New("registration: device read failed")
	ErrDelivery             = errors.New("registration: delivery failed")
)

// Guard errors. These never reach the device or the network.
var (
	ErrBusy   = errors.New("registration: a registration is already in progress")
	ErrLocked = errors.New("registration: already registered in this session")
)

// String returns the snake_case name used in metrics and JSON.
func (k Kind) String() string {
	switch k {
	case InvalidEmail:
		return "invalid_email"
	case TransportUnavailable:
		return "transport_unavailable"
	case DeviceReadError:
		return "device_read"
	case DeliveryError:
		return "delivery"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case InvalidEmail:
		return ErrInvalidEmail
	case TransportUnavailable:
		return ErrTransportUnavailable
	case DeviceReadError:
		return ErrDeviceRead
	case DeliveryError:
		return ErrDelivery
	default:
		return nil
	}
}

// Error is the error returned by Submit.
type Error struct {
	Kind Kind

	// Reason is the localized text shown to the user after "❌ Lỗi: ".
	Reason string

	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

// Unwrap exposes both the kind sentinel and the cause.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s := e.Kind.sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// KindOf returns the Kind of a Submit error, or false for nil and guard errors.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

func newError(kind Kind, reason string, cause error) *Error {
	return &Error{Kind: kind, Reason: reason, Err: cause}
}
