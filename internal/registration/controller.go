package registration

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/onehud/registrar/internal/infrastructure/logging"
	"github.com/onehud/registrar/internal/serialport"
)

// DefaultBaudRate is the serial speed used when Deps.BaudRate is zero.
const DefaultBaudRate = serialport.DefaultBaudRate

// Deps holds the collaborators of a Controller.
type Deps struct {
	// Transports selects the serial port for each run.
	Transports TransportSource

	// NewLoader binds the device protocol client to an opened transport.
	NewLoader LoaderFactory

	// Notifier delivers the registration.
	Notifier Notifier

	// BaudRate for Transport.Open. Zero means DefaultBaudRate.
	BaudRate int

	// ReadTimeout bounds the device read. Zero means no timeout.
	ReadTimeout time.Duration

	// Unavailable is the result of the capability probe. When non-nil every
	// Submit fails with TransportUnavailable and performs no I/O.
	Unavailable error

	// Recorders observe finished attempts in order.
	Recorders []Recorder

	// Logger is optional.
	Logger *logging.Logger

	// Now is optional; time.Now by default.
	Now func() time.Time
}

// StatusFunc receives every status transition.
type StatusFunc func(Status, State)

// Controller runs registrations one at a time.
//
// Thread Safety: all methods are safe for concurrent use.
type Controller struct {
	deps   Deps
	logger *logging.Logger
	now    func() time.Time

	mu        sync.Mutex
	state     State
	status    Status
	busy      bool
	locked    bool
	listeners map[int]StatusFunc
	nextID    int
}

// identity is what a device read yields.
type identity struct {
	mac  string
	chip string
	port string
}

// New creates a Controller.
//
// When deps.Unavailable is set the controller starts with the error status
// already shown, so front ends can render it before the first submit.
func New(deps Deps) *Controller {
	if deps.BaudRate <= 0 {
		deps.BaudRate = DefaultBaudRate
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	c := &Controller{
		deps:      deps,
		logger:    logger.With("component", "registration"),
		now:       now,
		state:     StateIdle,
		listeners: make(map[int]StatusFunc),
	}
	if deps.Unavailable != nil {
		c.status = Status{Message: MsgErrorPrefix + ReasonUnavailable, Severity: SeverityError}
		c.logger.Warn("serial transport unavailable", "error", deps.Unavailable)
	}
	return c
}

// Available reports whether the capability probe succeeded.
func (c *Controller) Available() bool {
	return c.deps.Unavailable == nil
}

// OnStatus registers fn for status transitions and returns a function that
// removes it. Listeners run synchronously on the submitting goroutine and
// must not call Submit.
func (c *Controller) OnStatus(fn StatusFunc) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// Snapshot returns the current state for front ends.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		State:     c.state,
		Status:    c.status,
		Locked:    c.locked,
		Busy:      c.busy,
		Available: c.deps.Unavailable == nil,
	}
}

// Submit runs one registration for email.
//
// Returns:
//   - nil on success; the controller is then locked
//   - ErrBusy or ErrLocked without any I/O
//   - an *Error otherwise (see KindOf)
func (c *Controller) Submit(ctx context.Context, email string) error {
	c.mu.Lock()
	switch {
	case c.locked:
		c.mu.Unlock()
		return ErrLocked
	case c.busy:
		c.mu.Unlock()
		return ErrBusy
	}
	c.busy = true
	c.mu.Unlock()

	started := c.now()
	ident, err := c.run(ctx, strings.TrimSpace(email))
	c.finish(ctx, email, ident, started, err)
	return err
}

// run performs the workflow and returns the first failure as an *Error.
func (c *Controller) run(ctx context.Context, email string) (identity, error) {
	c.transition(StateValidating, Status{Message: MsgProcessing, Severity: SeverityInfo})

	if !ValidEmail(email) {
		return identity{}, newError(InvalidEmail, ReasonInvalidEmail, nil)
	}

	if c.deps.Unavailable != nil {
		return identity{}, newError(TransportUnavailable, ReasonUnavailable, c.deps.Unavailable)
	}

	c.transition(StateAcquiringIdentifier, Status{Message: MsgProcessing, Severity: SeverityInfo})

	ident, err := c.readIdentifier(ctx)
	if err != nil {
		return ident, err
	}

	c.transition(StateSubmitting, Status{Message: MsgProcessing, Severity: SeverityInfo})

	req, err := NewRequest(email, ident.mac, ident.chip, c.now())
	if err != nil {
		return ident, newError(DeviceReadError, ReasonConnectDevice, err)
	}
	if err := c.deps.Notifier.Notify(ctx, req); err != nil {
		return ident, newError(DeliveryError, ReasonDelivery, err)
	}
	return ident, nil
}

// readIdentifier acquires, opens and always closes the transport around the
// protocol client calls.
func (c *Controller) readIdentifier(ctx context.Context) (ident identity, err error) {
	t, err := c.deps.Transports.Acquire(ctx)
	if err != nil {
		return ident, newError(DeviceReadError, deviceReason(err), err)
	}
	ident.port = t.Name()

	if c.deps.ReadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.deps.ReadTimeout)
		defer cancel()
	}

	defer func() {
		closeErr := t.Close()
		if closeErr != nil {
			c.logger.Warn("closing serial port", "port", ident.port, "error", closeErr)
			if err == nil {
				err = newError(DeviceReadError, deviceReason(closeErr), closeErr)
			}
		}
	}()

	if err := t.Open(ctx, c.deps.BaudRate); err != nil {
		return ident, newError(DeviceReadError, deviceReason(err), err)
	}

	loader := c.deps.NewLoader(t)

	chip, err := loader.Connect(ctx)
	if err != nil {
		return ident, newError(DeviceReadError, deviceReason(err), err)
	}
	ident.chip = chip
	c.logger.Info("device connected", "port", ident.port, "chip", chip)

	mac, err := loader.ReadMAC(ctx)
	if err != nil {
		return ident, newError(DeviceReadError, deviceReason(err), err)
	}

	if err := loader.HardReset(ctx); err != nil {
		return ident, newError(DeviceReadError, deviceReason(err), err)
	}

	ident.mac = strings.TrimSpace(mac)
	if ident.mac == "" {
		return ident, newError(DeviceReadError, ReasonConnectDevice, nil)
	}
	return ident, nil
}

// finish reports the outcome, releases the guard and feeds recorders.
func (c *Controller) finish(ctx context.Context, email string, ident identity, started time.Time, err error) {
	attempt := Attempt{
		ID:        uuid.NewString(),
		Email:     strings.TrimSpace(email),
		DeviceID:  ident.mac,
		Chip:      ident.chip,
		Port:      ident.port,
		Outcome:   OutcomeSucceeded,
		StartedAt: started,
		Duration:  c.now().Sub(started),
	}

	if err == nil {
		c.mu.Lock()
		c.locked = true
		c.busy = false
		c.mu.Unlock()
		c.transition(StateSucceeded, Status{Message: MsgSuccess, Severity: SeveritySuccess})
		c.logger.Info("registration delivered",
			"attempt_id", attempt.ID, "mac", ident.mac, "port", ident.port, "duration", attempt.Duration)
	} else {
		var regErr *Error
		if !errors.As(err, &regErr) {
			regErr = newError(DeviceReadError, err.Error(), err)
		}
		attempt.Outcome = OutcomeFailed
		attempt.Kind = regErr.Kind

		status := Status{Message: failureMessage(regErr), Severity: SeverityError}
		c.transition(StateFailed, status)
		c.mu.Lock()
		c.busy = false
		c.mu.Unlock()
		c.transition(StateIdle, status)
		c.logger.Warn("registration failed",
			"attempt_id", attempt.ID, "kind", regErr.Kind.String(), "port", ident.port, "error", err)
	}

	c.record(context.WithoutCancel(ctx), attempt)
}

func (c *Controller) record(ctx context.Context, a Attempt) {
	for _, r := range c.deps.Recorders {
		if err := r.Record(ctx, a); err != nil {
			c.logger.Error("recording attempt", "attempt_id", a.ID, "error", err)
		}
	}
}

// transition updates state and status, then notifies listeners outside the lock.
func (c *Controller) transition(state State, status Status) {
	c.mu.Lock()
	c.state = state
	c.status = status
	fns := make([]StatusFunc, 0, len(c.listeners))
	for id := 0; id < c.nextID; id++ {
		if fn, ok := c.listeners[id]; ok {
			fns = append(fns, fn)
		}
	}
	c.mu.Unlock()

	c.logger.Debug("state changed", "state", string(state), "message", status.Message)
	for _, fn := range fns {
		fn(status, state)
	}
}

// WithPort is a convenience for front ends that let the user name a port.
func WithPort(ctx context.Context, port string) context.Context {
	if port == "" {
		return ctx
	}
	return serialport.WithPort(ctx, port)
}
