// Package wire implements the transports spoken by compositor control sockets:
// the i3-ipc binary frame, the 4-byte length-prefixed JSON frame and
// newline-delimited event lines, plus dial/request/subscribe helpers shared by
// all socket backends.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Magic opens every i3-ipc frame
const Magic = "i3-ipc"

// HeaderSize is magic + length + type
const HeaderSize = len(Magic) + 4 + 4

// DefaultMaxPayload bounds a single message body
const DefaultMaxPayload = 16 << 20

var (
	// ErrShortRead means the peer closed or timed out before a whole message arrived
	ErrShortRead = errors.New("short read")
	// ErrBadMagic means the stream is not an i3-ipc stream (or lost sync)
	ErrBadMagic = errors.New("bad frame magic")
	// ErrTooLarge means the advertised length exceeds the configured maximum
	ErrTooLarge = errors.New("message too large")
)

// Frame is one i3-ipc message
type Frame struct {
	Type    uint32
	Payload []byte
}

// IsEvent reports whether the frame carries an event (high bit set on the type)
func (f Frame) IsEvent() bool {
	return f.Type&0x80000000 != 0
}

// EncodeFrame writes header then payload. A short write is returned as an
// error; callers close the connection.
func EncodeFrame(w io.Writer, f Frame) error {
	buf := make([]byte, HeaderSize+len(f.Payload))
	copy(buf, Magic)
	binary.NativeEndian.PutUint32(buf[len(Magic):], uint32(len(f.Payload))) //nolint:gosec // bounded by max payload
	binary.NativeEndian.PutUint32(buf[len(Magic)+4:], f.Type)
	copy(buf[HeaderSize:], f.Payload)

	n, err := w.Write(buf)
	if err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	if n != len(buf) {
		return fmt.Errorf("failed to write frame: %w", io.ErrShortWrite)
	}
	return nil
}

// DecodeFrame reads one full frame. The header is read completely before the
// body; any truncation yields ErrShortRead and no partial frame.
func DecodeFrame(r io.Reader, maxPayload int) (Frame, error) {
	return decodeFrame(r, maxPayload, false)
}

// decodeFrame reads one frame. With skip set an oversized body is consumed
// so the stream stays aligned on the next header.
func decodeFrame(r io.Reader, maxPayload int, skip bool) (Frame, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Frame{}, shortRead("frame header", err)
	}

	if string(header[:len(Magic)]) != Magic {
		return Frame{}, ErrBadMagic
	}

	length := binary.NativeEndian.Uint32(header[len(Magic):])
	if maxPayload > 0 && int64(length) > int64(maxPayload) {
		return Frame{}, tooLarge(r, length, skip)
	}

	f := Frame{
		Type:    binary.NativeEndian.Uint32(header[len(Magic)+4:]),
		Payload: make([]byte, length),
	}
	if _, err := io.ReadFull(r, f.Payload); err != nil {
		return Frame{}, shortRead("frame body", err)
	}

	return f, nil
}

func shortRead(what string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrShortRead, what, err)
}

// tooLarge builds the ErrTooLarge error for a body of length bytes, first
// discarding the body when skip is set
func tooLarge(r io.Reader, length uint32, skip bool) error {
	if skip {
		if _, err := io.CopyN(io.Discard, r, int64(length)); err != nil {
			return shortRead("oversized body", err)
		}
	}
	return fmt.Errorf("%w: %d bytes", ErrTooLarge, length)
}
