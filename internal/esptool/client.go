package esptool

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/onehud/registrar/internal/process"
	"github.com/onehud/registrar/internal/serialport"
)

// Binary names tried when none is configured.
const (
	DefaultBinary  = "esptool"
	FallbackBinary = "esptool.py"
)

// Reset timings of the classic auto-reset circuit.
const (
	resetHold   = 100 * time.Millisecond
	bootSettle  = 50 * time.Millisecond
	graceOnStop = 2 * time.Second
)

// Logger is the subset of logging.Logger the client uses.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}

// Options configures a Client.
type Options struct {
	// Binary is the esptool executable. Empty means DefaultBinary.
	Binary string

	// BaudRate is passed to esptool with --baud. Zero means 115200.
	BaudRate int

	// Runner executes esptool. Nil means process.NewExec().
	Runner process.Runner

	Logger Logger
}

// Client drives esptool against one open transport.
type Client struct {
	t      serialport.Transport
	opts   Options
	runner process.Runner
	logger Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// New returns a Client for an already opened transport.
func New(t serialport.Transport, opts Options) *Client {
	if opts.Binary == "" {
		opts.Binary = DefaultBinary
	}
	if opts.BaudRate <= 0 {
		opts.BaudRate = serialport.DefaultBaudRate
	}
	c := &Client{
		t:      t,
		opts:   opts,
		runner: opts.Runner,
		logger: opts.Logger,
		sleep:  sleepCtx,
	}
	if c.runner == nil {
		c.runner = process.NewExec()
	}
	if c.logger == nil {
		c.logger = noopLogger{}
	}
	return c
}

// Connect resets the chip into its ROM loader, syncs with it and returns
// the chip description esptool reports (e.g. "ESP32-D0WD-V3 (revision v3.0)").
func (c *Client) Connect(ctx context.Context) (string, error) {
	if err := c.enterBootloader(ctx); err != nil {
		return "", err
	}

	res, err := c.run(ctx, "chip_id")
	if err != nil {
		return "", err
	}

	chip := parseChip(res.Output())
	if chip == "" {
		chip = "unknown"
	}
	c.logger.Info("connected to chip", "port", c.t.Name(), "chip", chip)
	return chip, nil
}

// ReadMAC returns the chip's base MAC address as esptool prints it.
// Connect must have succeeded first.
func (c *Client) ReadMAC(ctx context.Context) (string, error) {
	res, err := c.run(ctx, "read_mac")
	if err != nil {
		return "", err
	}
	mac := parseMAC(res.Output())
	if mac == "" {
		return "", ErrNoMAC
	}
	return mac, nil
}

// HardReset pulses EN so the chip reboots into its application.
func (c *Client) HardReset(ctx context.Context) error {
	if err := c.t.SetRTS(true); err != nil {
		return fmt.Errorf("%w: %w", ErrControlLines, err)
	}
	if err := c.sleep(ctx, resetHold); err != nil {
		c.t.SetRTS(false) //nolint:errcheck // leave EN released on cancellation
		return err
	}
	if err := c.t.SetRTS(false); err != nil {
		return fmt.Errorf("%w: %w", ErrControlLines, err)
	}
	return nil
}

// enterBootloader holds GPIO0 low across an EN pulse so the chip boots
// into download mode.
func (c *Client) enterBootloader(ctx context.Context) error {
	steps := []struct {
		dtr, rts *bool
		wait     time.Duration
	}{
		{dtr: ptr(false), rts: ptr(true), wait: resetHold}, // EN low, IO0 high
		{dtr: ptr(true), rts: ptr(false), wait: bootSettle}, // EN high, IO0 low
		{dtr: ptr(false)}, // IO0 released
	}

	for _, s := range steps {
		if s.dtr != nil {
			if err := c.t.SetDTR(*s.dtr); err != nil {
				return fmt.Errorf("%w: %w", ErrControlLines, err)
			}
		}
		if s.rts != nil {
			if err := c.t.SetRTS(*s.rts); err != nil {
				return fmt.Errorf("%w: %w", ErrControlLines, err)
			}
		}
		if s.wait > 0 {
			if err := c.sleep(ctx, s.wait); err != nil {
				return err
			}
		}
	}
	return nil
}

// args builds the esptool command line for a subcommand.
func (c *Client) args(port, command string) []string {
	return []string{
		"--port", port,
		"--baud", strconv.Itoa(c.opts.BaudRate),
		"--before", "no_reset",
		"--after", "no_reset",
		command,
	}
}

// run executes one esptool subcommand through the socket bridge.
func (c *Client) run(ctx context.Context, command string) (process.Result, error) {
	ln, url, err := listenBridge()
	if err != nil {
		return process.Result{}, err
	}
	defer ln.Close()

	bridgeCtx, stopBridge := context.WithCancel(ctx)
	defer stopBridge()

	// A failing bridge also makes esptool fail; report the bridge's error.
	var bridgeErr error
	g, gctx := errgroup.WithContext(bridgeCtx)
	g.Go(func() error {
		bridgeErr = serveBridge(gctx, ln, c.t)
		return bridgeErr
	})

	var res process.Result
	g.Go(func() error {
		defer stopBridge()
		var runErr error
		res, runErr = c.runner.Run(gctx, process.Spec{
			Name:            "esptool " + command,
			Binary:          c.opts.Binary,
			Args:            c.args(url, command),
			GracefulTimeout: graceOnStop,
		})
		return runErr
	})

	c.logger.Debug("running esptool", "command", command, "port", c.t.Name(), "bridge", url)
	if err := g.Wait(); err != nil {
		if bridgeErr != nil {
			return res, bridgeErr
		}
		return res, classify(command, res, err)
	}
	return res, nil
}

// classify maps a failed run onto package sentinels.
func classify(command string, res process.Result, err error) error {
	switch {
	case errors.Is(err, ErrBridge):
		return err
	case errors.Is(err, process.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	case errors.Is(err, process.ErrCancelled):
		return err
	}

	reason := fatalReason(res.Output())
	if reason == "" {
		reason = lastLine(res.Output())
	}
	if isHandshakeFailure(reason) {
		return fmt.Errorf("%w: %s", ErrHandshake, reason)
	}
	if reason == "" {
		return fmt.Errorf("%w: %s: %w", ErrCommand, command, err)
	}
	return fmt.Errorf("%w: %s: %s", ErrCommand, command, reason)
}

// Locate resolves the esptool executable, trying the configured name and
// then the pip-installed script name.
func Locate(binary string) (string, error) {
	p, err := process.Resolve(binary, DefaultBinary, FallbackBinary)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return p, nil
}

// Version returns the first line of `esptool version`.
func Version(ctx context.Context, runner process.Runner, binary string) (string, error) {
	res, err := runner.Run(ctx, process.Spec{Name: "esptool version", Binary: binary, Args: []string{"version"}})
	if err != nil {
		return "", classify("version", res, err)
	}
	return firstLine(res.Output()), nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}

func ptr(b bool) *bool { return &b }

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
