package wire

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
)

// EventSeparator splits an event line into name and data ("openwindow>>addr,...")
const EventSeparator = ">>"

// Line is one newline-delimited event
type Line struct {
	Name string
	Data string
}

// ParseLine splits a raw event line. ok is false for lines without a separator.
func ParseLine(raw string) (Line, bool) {
	raw = strings.TrimRight(raw, "\r\n")
	name, data, ok := strings.Cut(raw, EventSeparator)
	if !ok || name == "" {
		return Line{}, false
	}
	return Line{Name: name, Data: data}, true
}

// Fields splits the data of an event into at most n comma-separated fields.
// The last field keeps any remaining commas, since titles may contain them.
func (l Line) Fields(n int) []string {
	return strings.SplitN(l.Data, ",", n)
}

// ReadLine reads one complete line. A line cut off by EOF is a short read.
// A line longer than maxPayload is consumed up to its newline without being
// buffered and reported as ErrTooLarge.
func ReadLine(r *bufio.Reader, maxPayload int) (string, error) {
	var line []byte
	oversized := false
	for {
		chunk, err := r.ReadSlice('\n')
		if !oversized {
			if maxPayload > 0 && len(line)+len(chunk) > maxPayload {
				oversized = true
				line = nil
			} else {
				line = append(line, chunk...)
			}
		}
		if err == nil {
			break
		}
		if !errors.Is(err, bufio.ErrBufferFull) {
			return "", shortRead("event line", err)
		}
	}
	if oversized {
		return "", fmt.Errorf("%w: line exceeds %d bytes", ErrTooLarge, maxPayload)
	}
	return strings.TrimRight(string(line), "\r\n"), nil
}
