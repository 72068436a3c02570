package wire

import (
	"bufio"
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/bnema/wlbar/internal/logger"
)

// Decoder reads exactly one message from a buffered stream
type Decoder[T any] func(r *bufio.Reader) (T, error)

// FrameDecoder decodes i3-ipc frames. Oversized bodies are consumed before
// ErrTooLarge is returned, so decoding can resume on the next frame.
func FrameDecoder(maxPayload int) Decoder[Frame] {
	return func(r *bufio.Reader) (Frame, error) {
		return decodeFrame(r, maxPayload, true)
	}
}

// PrefixedDecoder decodes length-prefixed messages, consuming oversized
// bodies like FrameDecoder
func PrefixedDecoder(maxPayload int) Decoder[[]byte] {
	return func(r *bufio.Reader) ([]byte, error) {
		return readPrefixed(r, maxPayload, true)
	}
}

// LineDecoder decodes newline-delimited messages
func LineDecoder(maxPayload int) Decoder[string] {
	return func(r *bufio.Reader) (string, error) {
		return ReadLine(r, maxPayload)
	}
}

// Stream is a persistent subscription connection. Messages are handed to the
// handler strictly in arrival order; everything already buffered is drained
// before the reader blocks on the socket again.
type Stream[T any] struct {
	conn   net.Conn
	reader *bufio.Reader
	decode Decoder[T]

	closeOnce sync.Once
	closed    chan struct{}
}

// NewStream wraps an open connection. Any setup deadline is cleared.
func NewStream[T any](conn net.Conn, decode Decoder[T]) *Stream[T] {
	_ = conn.SetDeadline(time.Time{})
	return &Stream[T]{
		conn:   conn,
		reader: bufio.NewReaderSize(conn, 64*1024),
		decode: decode,
		closed: make(chan struct{}),
	}
}

// Run dispatches messages until the connection fails or ctx is done. It
// returns nil on a local close and the transport error otherwise. A message
// over the size limit is dropped and the stream carries on.
func (s *Stream[T]) Run(ctx context.Context, handle func(T)) error {
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.closed:
		}
	}()

	for {
		msg, err := s.decode(s.reader)
		if errors.Is(err, ErrTooLarge) {
			logger.Warnf("Dropping event: %v", err)
			continue
		}
		if err != nil {
			select {
			case <-s.closed:
				return nil
			default:
			}
			s.Close()
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		handle(msg)
	}
}

// Buffered reports how many bytes are waiting to be decoded
func (s *Stream[T]) Buffered() int {
	return s.reader.Buffered()
}

// Close terminates the subscription
func (s *Stream[T]) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		_ = s.conn.Close()
	})
}
