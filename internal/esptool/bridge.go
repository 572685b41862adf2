package esptool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"golang.org/x/sync/errgroup"
)

const pumpBufferSize = 4096

// errConnDone ends a pump when the host side of the socket goes away.
var errConnDone = errors.New("bridge connection closed")

// listenBridge opens the loopback listener esptool connects to.
func listenBridge() (net.Listener, string, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrBridge, err)
	}
	return ln, "socket://" + ln.Addr().String(), nil
}

// serveBridge accepts connections one at a time and pumps each against dev
// until ctx ends. It returns nil when stopped and an error only when the
// device side fails.
func serveBridge(ctx context.Context, ln net.Listener, dev io.ReadWriter) error {
	stop := context.AfterFunc(ctx, func() { ln.Close() }) //nolint:errcheck // unblocks Accept
	defer stop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("%w: accept: %w", ErrBridge, err)
		}
		if err := pump(ctx, conn, dev); err != nil {
			return err
		}
	}
}

// pump copies bytes both ways between conn and dev. dev reads must return
// periodically (a serial read timeout) so the pump notices cancellation.
func pump(ctx context.Context, conn net.Conn, dev io.ReadWriter) error {
	defer conn.Close()

	g, gctx := errgroup.WithContext(ctx)
	unblock := context.AfterFunc(gctx, func() { conn.Close() }) //nolint:errcheck // unblocks io.Copy
	defer unblock()

	// host -> device
	g.Go(func() error {
		if _, err := io.Copy(dev, conn); err != nil && gctx.Err() == nil && !errors.Is(err, net.ErrClosed) {
			return fmt.Errorf("%w: writing device: %w", ErrBridge, err)
		}
		return errConnDone
	})

	// device -> host
	g.Go(func() error {
		buf := make([]byte, pumpBufferSize)
		for gctx.Err() == nil {
			n, err := dev.Read(buf)
			if n > 0 {
				if _, werr := conn.Write(buf[:n]); werr != nil {
					return nil
				}
			}
			if err != nil {
				if gctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("%w: reading device: %w", ErrBridge, err)
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errConnDone) {
		return err
	}
	return nil
}
