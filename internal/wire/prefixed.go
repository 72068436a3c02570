package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// WritePrefixed writes a 4-byte little-endian length followed by the payload
func WritePrefixed(w io.Writer, payload []byte) error {
	buf := make([]byte, 4+len(payload))
	binary.LittleEndian.PutUint32(buf, uint32(len(payload))) //nolint:gosec // bounded by max payload
	copy(buf[4:], payload)

	n, err := w.Write(buf)
	if err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if n != len(buf) {
		return fmt.Errorf("failed to write message: %w", io.ErrShortWrite)
	}
	return nil
}

// ReadPrefixed reads one length-prefixed message
func ReadPrefixed(r io.Reader, maxPayload int) ([]byte, error) {
	return readPrefixed(r, maxPayload, false)
}

func readPrefixed(r io.Reader, maxPayload int, skip bool) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, shortRead("message length", err)
	}

	length := binary.LittleEndian.Uint32(header[:])
	if maxPayload > 0 && int64(length) > int64(maxPayload) {
		return nil, tooLarge(r, length, skip)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, shortRead("message body", err)
	}
	return payload, nil
}
