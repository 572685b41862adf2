package serialport

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.bug.st/serial"
)

// fakeSerial implements the parts of serial.Port that Port uses.
type fakeSerial struct {
	serial.Port

	mu       sync.Mutex
	closes   int
	dtr, rts []bool
	written  []byte
	readData []byte
	timeout  time.Duration
}

func (f *fakeSerial) Read(b []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := copy(b, f.readData)
	f.readData = f.readData[n:]
	return n, nil
}

func (f *fakeSerial) Write(b []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written = append(f.written, b...)
	return len(b), nil
}

func (f *fakeSerial) SetDTR(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dtr = append(f.dtr, on)
	return nil
}

func (f *fakeSerial) SetRTS(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rts = append(f.rts, on)
	return nil
}

func (f *fakeSerial) SetReadTimeout(d time.Duration) error {
	f.timeout = d
	return nil
}

func (f *fakeSerial) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

func newFakePort(name string) (*Port, *fakeSerial, *serial.Mode) {
	fake := &fakeSerial{readData: []byte("hello")}
	var gotMode serial.Mode
	p := &Port{
		name: name,
		open: func(n string, mode *serial.Mode) (serial.Port, error) {
			gotMode = *mode
			return fake, nil
		},
	}
	return p, fake, &gotMode
}

func TestPort_OpenIO(t *testing.T) {
	p, fake, mode := newFakePort("/dev/ttyUSB0")

	if err := p.Open(context.Background(), 0); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if mode.BaudRate != DefaultBaudRate || mode.DataBits != 8 {
		t.Errorf("mode = %+v, want 115200 8N1", *mode)
	}
	if fake.timeout != readPoll {
		t.Errorf("read timeout = %v, want %v", fake.timeout, readPoll)
	}
	if !p.IsOpen() {
		t.Error("IsOpen() = false after Open()")
	}

	buf := make([]byte, 16)
	n, err := p.Read(buf)
	if err != nil || string(buf[:n]) != "hello" {
		t.Errorf("Read() = %q, %v", buf[:n], err)
	}
	if _, err := p.Write([]byte{0xC0}); err != nil {
		t.Errorf("Write() error = %v", err)
	}
	if err := p.SetDTR(true); err != nil {
		t.Errorf("SetDTR() error = %v", err)
	}
	if err := p.SetRTS(false); err != nil {
		t.Errorf("SetRTS() error = %v", err)
	}
	if len(fake.dtr) != 1 || len(fake.rts) != 1 || len(fake.written) != 1 {
		t.Errorf("unexpected line/IO calls: dtr=%v rts=%v written=%v", fake.dtr, fake.rts, fake.written)
	}

	if err := p.Open(context.Background(), 9600); !errors.Is(err, ErrAlreadyOpen) {
		t.Errorf("second Open() error = %v, want ErrAlreadyOpen", err)
	}
}

func TestPort_CloseIdempotent(t *testing.T) {
	p, fake, _ := newFakePort("COM3")

	if err := p.Open(context.Background(), 115200); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := p.Close(); err != nil {
			t.Fatalf("Close() #%d error = %v", i+1, err)
		}
	}
	if fake.closes != 1 {
		t.Errorf("underlying Close called %d times, want 1", fake.closes)
	}
	if _, err := p.Read(make([]byte, 1)); !errors.Is(err, ErrNotOpen) {
		t.Errorf("Read() after Close error = %v, want ErrNotOpen", err)
	}
	if err := p.Open(context.Background(), 115200); !errors.Is(err, ErrClosed) {
		t.Errorf("Open() after Close error = %v, want ErrClosed", err)
	}
}

func TestPort_CloseNeverOpened(t *testing.T) {
	p := NewPort("/dev/ttyACM0")

	if err := p.Close(); err != nil {
		t.Errorf("Close() on unopened port error = %v", err)
	}
	if err := p.SetDTR(true); !errors.Is(err, ErrNotOpen) {
		t.Errorf("SetDTR() on unopened port error = %v, want ErrNotOpen", err)
	}
	if p.Name() != "/dev/ttyACM0" {
		t.Errorf("Name() = %q", p.Name())
	}
}

func TestSentinelFor(t *testing.T) {
	tests := []struct {
		name string
		code serial.PortErrorCode
		want error
	}{
		{"busy", serial.PortBusy, ErrPortBusy},
		{"missing", serial.PortNotFound, ErrPortNotFound},
		{"permission", serial.PermissionDenied, ErrPermission},
		{"other", serial.InvalidSpeed, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sentinelFor(tt.code); got != tt.want {
				t.Errorf("sentinelFor() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPort_OpenFailure(t *testing.T) {
	boom := errors.New("no such device")
	p := &Port{
		name: "/dev/ttyUSB9",
		open: func(string, *serial.Mode) (serial.Port, error) { return nil, boom },
	}

	if err := p.Open(context.Background(), 115200); !errors.Is(err, boom) {
		t.Errorf("Open() error = %v, want wrapped %v", err, boom)
	}
	if p.IsOpen() {
		t.Error("IsOpen() = true after failed Open")
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close() after failed Open error = %v", err)
	}
}

func TestPort_OpenCancelled(t *testing.T) {
	p, fake, _ := newFakePort("/dev/ttyUSB0")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := p.Open(ctx, 115200); !errors.Is(err, context.Canceled) {
		t.Errorf("Open() error = %v, want context.Canceled", err)
	}
	if p.IsOpen() || fake.closes != 0 {
		t.Error("cancelled Open should not touch the port")
	}
}
