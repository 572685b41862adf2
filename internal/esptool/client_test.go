package esptool

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/onehud/registrar/internal/process"
)

// fakeTransport is an open serial port that echoes each written line back
// prefixed with "ROM:", and records control line changes.
type fakeTransport struct {
	mu      sync.Mutex
	lines   []string
	pending []byte
	ready   chan struct{}
	readErr error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{ready: make(chan struct{}, 64)}
}

func (f *fakeTransport) Name() string                    { return "/dev/ttyFAKE0" }
func (f *fakeTransport) Open(context.Context, int) error { return nil }
func (f *fakeTransport) Close() error                    { return nil }
func (f *fakeTransport) SetDTR(on bool) error            { return f.record("DTR", on) }
func (f *fakeTransport) SetRTS(on bool) error            { return f.record("RTS", on) }

func (f *fakeTransport) record(line string, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines = append(f.lines, fmt.Sprintf("%s=%v", line, on))
	return nil
}

func (f *fakeTransport) Write(b []byte) (int, error) {
	f.mu.Lock()
	f.pending = append(f.pending, []byte("ROM:")...)
	f.pending = append(f.pending, b...)
	f.mu.Unlock()
	f.ready <- struct{}{}
	return len(b), nil
}

func (f *fakeTransport) Read(b []byte) (int, error) {
	select {
	case <-f.ready:
	case <-time.After(10 * time.Millisecond):
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return 0, f.readErr
	}
	n := copy(b, f.pending)
	f.pending = f.pending[n:]
	return n, nil
}

func (f *fakeTransport) controlLines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.lines...)
}

// scriptedRunner plays esptool: it dials the bridge named in --port,
// round-trips one line through the transport, then prints canned output.
type scriptedRunner struct {
	mu     sync.Mutex
	specs  []process.Spec
	echoes []string
	output map[string]string
	fail   map[string]error
}

func (r *scriptedRunner) Run(ctx context.Context, spec process.Spec) (process.Result, error) {
	r.mu.Lock()
	r.specs = append(r.specs, spec)
	r.mu.Unlock()

	command := spec.Args[len(spec.Args)-1]
	if err := r.fail[command]; err != nil {
		return process.Result{Stdout: r.output[command]}, err
	}

	var port string
	for i, a := range spec.Args {
		if a == "--port" {
			port = spec.Args[i+1]
		}
	}
	conn, err := net.Dial("tcp", strings.TrimPrefix(port, "socket://"))
	if err != nil {
		return process.Result{}, err
	}
	defer conn.Close()

	fmt.Fprintf(conn, "sync %s\n", command)
	conn.SetReadDeadline(time.Now().Add(5 * time.Second)) //nolint:errcheck // test
	echo, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return process.Result{}, err
	}

	r.mu.Lock()
	r.echoes = append(r.echoes, strings.TrimSpace(echo))
	r.mu.Unlock()

	return process.Result{Stdout: r.output[command]}, ctx.Err()
}

func newTestClient(t *testing.T, tr *fakeTransport, runner process.Runner) *Client {
	t.Helper()
	c := New(tr, Options{Binary: "esptool", BaudRate: 115200, Runner: runner})
	c.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return c
}

func TestClient_ConnectAndReadMAC(t *testing.T) {
	tr := newFakeTransport()
	runner := &scriptedRunner{output: map[string]string{
		"chip_id":  esptool4ChipID,
		"read_mac": "MAC: 24:6f:28:aa:bb:cc\n",
	}}
	c := newTestClient(t, tr, runner)

	chip, err := c.Connect(context.Background())
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if chip != "ESP32-D0WD-V3 (revision v3.0)" {
		t.Errorf("Connect() chip = %q", chip)
	}

	mac, err := c.ReadMAC(context.Background())
	if err != nil {
		t.Fatalf("ReadMAC() error = %v", err)
	}
	if mac != "24:6f:28:aa:bb:cc" {
		t.Errorf("ReadMAC() = %q", mac)
	}

	// Bytes crossed the bridge in both directions.
	if len(runner.echoes) != 2 || runner.echoes[0] != "ROM:sync chip_id" {
		t.Errorf("echoes = %v", runner.echoes)
	}

	wantLines := []string{"DTR=false", "RTS=true", "DTR=true", "RTS=false", "DTR=false"}
	if got := tr.controlLines(); strings.Join(got, ",") != strings.Join(wantLines, ",") {
		t.Errorf("control lines = %v, want %v", got, wantLines)
	}

	args := strings.Join(runner.specs[0].Args, " ")
	for _, want := range []string{"--baud 115200", "--before no_reset", "--after no_reset", "socket://127.0.0.1:"} {
		if !strings.Contains(args, want) {
			t.Errorf("args %q missing %q", args, want)
		}
	}
}

func TestClient_ReadMACMissing(t *testing.T) {
	runner := &scriptedRunner{output: map[string]string{"read_mac": "Staying in bootloader.\n"}}
	c := newTestClient(t, newFakeTransport(), runner)

	if _, err := c.ReadMAC(context.Background()); !errors.Is(err, ErrNoMAC) {
		t.Errorf("ReadMAC() error = %v, want ErrNoMAC", err)
	}
}

func TestClient_HandshakeFailure(t *testing.T) {
	runner := &scriptedRunner{
		output: map[string]string{"chip_id": "Connecting......\nA fatal error occurred: Failed to connect to Espressif device: No serial data received.\n"},
		fail:   map[string]error{"chip_id": fmt.Errorf("%w: esptool exited with 2", process.ErrExit)},
	}
	c := newTestClient(t, newFakeTransport(), runner)

	_, err := c.Connect(context.Background())
	if !errors.Is(err, ErrHandshake) {
		t.Fatalf("Connect() error = %v, want ErrHandshake", err)
	}
	if !strings.Contains(err.Error(), "No serial data received") {
		t.Errorf("error %q should carry esptool's reason", err)
	}
}

func TestClient_CommandFailure(t *testing.T) {
	runner := &scriptedRunner{
		output: map[string]string{"read_mac": "A fatal error occurred: Packet content transfer stopped\n"},
		fail:   map[string]error{"read_mac": process.ErrExit},
	}
	c := newTestClient(t, newFakeTransport(), runner)

	if _, err := c.ReadMAC(context.Background()); !errors.Is(err, ErrCommand) {
		t.Errorf("ReadMAC() error = %v, want ErrCommand", err)
	}
}

func TestClient_MissingBinary(t *testing.T) {
	runner := &scriptedRunner{fail: map[string]error{"chip_id": process.ErrNotFound}}
	c := newTestClient(t, newFakeTransport(), runner)

	if _, err := c.Connect(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("Connect() error = %v, want ErrUnavailable", err)
	}
}

func TestClient_DeviceReadFailureStopsRun(t *testing.T) {
	tr := newFakeTransport()
	tr.readErr = errors.New("device unplugged")

	runner := &scriptedRunner{output: map[string]string{"read_mac": "MAC: 24:6f:28:aa:bb:cc\n"}}
	c := newTestClient(t, tr, runner)

	_, err := c.ReadMAC(context.Background())
	if !errors.Is(err, ErrBridge) {
		t.Errorf("ReadMAC() error = %v, want ErrBridge", err)
	}
}

func TestClient_HardReset(t *testing.T) {
	tr := newFakeTransport()
	c := newTestClient(t, tr, &scriptedRunner{})

	if err := c.HardReset(context.Background()); err != nil {
		t.Fatalf("HardReset() error = %v", err)
	}
	if got := strings.Join(tr.controlLines(), ","); got != "RTS=true,RTS=false" {
		t.Errorf("control lines = %s", got)
	}
}

func TestClient_ConnectCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := &scriptedRunner{}
	c := newTestClient(t, newFakeTransport(), runner)

	if _, err := c.Connect(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Connect() error = %v, want context.Canceled", err)
	}
	if len(runner.specs) != 0 {
		t.Error("esptool must not run after cancellation")
	}
}

func TestNew_Defaults(t *testing.T) {
	c := New(newFakeTransport(), Options{})
	if c.opts.Binary != DefaultBinary || c.opts.BaudRate != 115200 {
		t.Errorf("defaults = %+v", c.opts)
	}
	if c.runner == nil || c.logger == nil {
		t.Error("expected default runner and logger")
	}
}

func TestVersion(t *testing.T) {
	runner := &versionRunner{out: "esptool.py v4.7.0\n4.7.0\n"}
	v, err := Version(context.Background(), runner, "esptool")
	if err != nil {
		t.Fatalf("Version() error = %v", err)
	}
	if v != "esptool.py v4.7.0" {
		t.Errorf("Version() = %q", v)
	}
}

type versionRunner struct{ out string }

func (v *versionRunner) Run(context.Context, process.Spec) (process.Result, error) {
	return process.Result{Stdout: v.out}, nil
}
