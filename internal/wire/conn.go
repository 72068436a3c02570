package wire

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/bnema/wlbar/internal/logger"
)

const (
	// DefaultProbeTimeout bounds liveness probes
	DefaultProbeTimeout = 100 * time.Millisecond
	// DefaultRequestTimeout bounds one request/response cycle
	DefaultRequestTimeout = 2 * time.Second
)

// Dialer connects to one unix control socket. Commands are self-contained
// connect/request/close cycles; connections are not pooled.
type Dialer struct {
	Path           string
	ProbeTimeout   time.Duration
	RequestTimeout time.Duration
	MaxPayload     int
}

// NewDialer returns a Dialer with default timeouts
func NewDialer(path string) *Dialer {
	return &Dialer{
		Path:           path,
		ProbeTimeout:   DefaultProbeTimeout,
		RequestTimeout: DefaultRequestTimeout,
		MaxPayload:     DefaultMaxPayload,
	}
}

// Probe checks that the socket exists and accepts connections
func (d *Dialer) Probe(ctx context.Context) error {
	if d.Path == "" {
		return fmt.Errorf("no socket path")
	}
	if _, err := os.Stat(d.Path); err != nil {
		return fmt.Errorf("socket %s: %w", d.Path, err)
	}

	conn, err := d.dial(ctx, d.ProbeTimeout)
	if err != nil {
		return err
	}
	return conn.Close()
}

// Open returns a persistent connection for an event subscription. The
// deadline only covers the caller's setup; clear it with SetDeadline(time.Time{}).
func (d *Dialer) Open(ctx context.Context) (net.Conn, error) {
	conn, err := d.dial(ctx, d.RequestTimeout)
	if err != nil {
		return nil, err
	}
	if err := conn.SetDeadline(time.Now().Add(d.RequestTimeout)); err != nil {
		logger.Warnf("Failed to set connection deadline: %v", err)
	}
	return conn, nil
}

// Framed sends one i3-ipc frame and waits for exactly one reply frame
func (d *Dialer) Framed(ctx context.Context, msgType uint32, payload []byte) (Frame, error) {
	var reply Frame
	err := d.roundTrip(ctx, func(conn net.Conn) error {
		if err := EncodeFrame(conn, Frame{Type: msgType, Payload: payload}); err != nil {
			return err
		}
		f, err := DecodeFrame(conn, d.MaxPayload)
		if err != nil {
			return err
		}
		reply = f
		return nil
	})
	return reply, err
}

// Prefixed sends one length-prefixed message and waits for one reply
func (d *Dialer) Prefixed(ctx context.Context, payload []byte) ([]byte, error) {
	var reply []byte
	err := d.roundTrip(ctx, func(conn net.Conn) error {
		if err := WritePrefixed(conn, payload); err != nil {
			return err
		}
		b, err := ReadPrefixed(conn, d.MaxPayload)
		if err != nil {
			return err
		}
		reply = b
		return nil
	})
	return reply, err
}

// Raw writes the payload and reads the reply until the peer closes
func (d *Dialer) Raw(ctx context.Context, payload []byte) ([]byte, error) {
	var reply []byte
	err := d.roundTrip(ctx, func(conn net.Conn) error {
		n, err := conn.Write(payload)
		if err != nil {
			return fmt.Errorf("failed to write request: %w", err)
		}
		if n != len(payload) {
			return fmt.Errorf("failed to write request: %w", io.ErrShortWrite)
		}

		var buf bytes.Buffer
		limit := int64(d.MaxPayload)
		if limit <= 0 {
			limit = DefaultMaxPayload
		}
		read, err := buf.ReadFrom(io.LimitReader(conn, limit+1))
		if err != nil {
			return shortRead("reply", err)
		}
		if read > limit {
			return fmt.Errorf("%w: reply exceeds %d bytes", ErrTooLarge, limit)
		}
		reply = buf.Bytes()
		return nil
	})
	return reply, err
}

func (d *Dialer) roundTrip(ctx context.Context, exchange func(net.Conn) error) error {
	conn, err := d.dial(ctx, d.RequestTimeout)
	if err != nil {
		return err
	}
	defer func() {
		if err := conn.Close(); err != nil {
			logger.Debugf("Failed to close request connection: %v", err)
		}
	}()

	deadline := time.Now().Add(d.RequestTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	if err := conn.SetDeadline(deadline); err != nil {
		logger.Warnf("Failed to set connection deadline: %v", err)
	}

	return exchange(conn)
}

func (d *Dialer) dial(ctx context.Context, timeout time.Duration) (net.Conn, error) {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "unix", d.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", d.Path, err)
	}
	return conn, nil
}
