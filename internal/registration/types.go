package registration

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/onehud/registrar/internal/serialport"
)

// State is the workflow state.
type State string

// Workflow states.
const (
	StateIdle                State = "idle"
	StateValidating          State = "validating"
	StateAcquiringIdentifier State = "acquiring_identifier"
	StateSubmitting          State = "submitting"
	StateSucceeded           State = "succeeded"
	StateFailed              State = "failed"
)

// Severity of a status message.
type Severity string

// Severities.
const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

// Status is the message currently shown to the user.
type Status struct {
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail reports whether s is a syntactically valid email address.
// Surrounding whitespace is not trimmed here.
func ValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// Request is what gets delivered for one registration.
type Request struct {
	Email       string
	DeviceID    string
	Chip        string
	SubmittedAt time.Time
}

// NewRequest builds a Request, refusing an invalid email or empty identifier.
func NewRequest(email, deviceID, chip string, at time.Time) (Request, error) {
	if !ValidEmail(email) {
		return Request{}, fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}
	if strings.TrimSpace(deviceID) == "" {
		return Request{}, fmt.Errorf("%w: empty device identifier", ErrDeviceRead)
	}
	return Request{Email: email, DeviceID: deviceID, Chip: chip, SubmittedAt: at}, nil
}

// Outcome of a finished run.
type Outcome string

// Outcomes.
const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
)

// Attempt describes a finished run for recorders.
type Attempt struct {
	ID        string
	Email     string
	DeviceID  string
	Chip      string
	Port      string
	Outcome   Outcome
	Kind      Kind
	StartedAt time.Time
	Duration  time.Duration
}

// TransportSource hands out an unopened transport for one run.
type TransportSource interface {
	Acquire(ctx context.Context) (serialport.Transport, error)
}

// Loader is the device protocol client bound to an open transport.
type Loader interface {
	// Connect performs the handshake and returns a chip description.
	Connect(ctx context.Context) (string, error)

	// ReadMAC returns the device's hardware identifier.
	ReadMAC(ctx context.Context) (string, error)

	// HardReset reboots the device out of its loader.
	HardReset(ctx context.Context) error
}

// LoaderFactory builds a Loader for an opened transport.
type LoaderFactory func(t serialport.Transport) Loader

// Notifier delivers a Request. It is called at most once per run.
type Notifier interface {
	Notify(ctx context.Context, req Request) error
}

// Recorder observes finished attempts. Errors are logged and ignored.
type Recorder interface {
	Record(ctx context.Context, a Attempt) error
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, a Attempt) error

// Record calls f.
func (f RecorderFunc) Record(ctx context.Context, a Attempt) error {
	return f(ctx, a)
}

// Snapshot is the controller state exposed to front ends.
type Snapshot struct {
	State     State  `json:"state"`
	Status    Status `json:"status"`
	Locked    bool   `json:"locked"`
	Busy      bool   `json:"busy"`
	Available bool   `json:"available"`
}
