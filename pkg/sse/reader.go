package sse

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
	"strings"
	"time"
)

// MaxLineSize bounds a single line of the stream.
const MaxLineSize = 1 << 20

// Reader parses events from a stream. Lines may end in LF, CRLF or CR.
type Reader struct {
	scanner *bufio.Scanner

	pending Event
	hasData bool
}

// NewReader returns a Reader over src.
func NewReader(src io.Reader) *Reader {
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 0, 64<<10), MaxLineSize)
	scanner.Split(scanLines)
	return &Reader{scanner: scanner}
}

// Next blocks until a blank line dispatches the next event. At the end of
// the stream an unterminated event with data is still returned; after that
// Next returns nil, nil.
func (r *Reader) Next() (*Event, error) {
	for r.scanner.Scan() {
		line := r.scanner.Text()
		switch {
		case line == "":
			if ev := r.dispatch(); ev != nil {
				return ev, nil
			}
		case line[0] == ':':
			// comment or keep-alive
		default:
			r.field(line)
		}
	}
	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	return r.dispatch(), nil
}

func (r *Reader) field(line string) {
	name, value, found := strings.Cut(line, ":")
	if found {
		value = strings.TrimPrefix(value, " ")
	}

	switch name {
	case "event":
		r.pending.Type = value
	case "data":
		if r.hasData {
			r.pending.Data += "\n"
		}
		r.pending.Data += value
		r.hasData = true
	case "id":
		r.pending.ID = value
	case "retry":
		if ms, err := strconv.Atoi(value); err == nil && ms >= 0 {
			r.pending.Retry = time.Duration(ms) * time.Millisecond
		}
	}
}

// dispatch emits the pending event. Events without any data field are
// dropped, as browsers do.
func (r *Reader) dispatch() *Event {
	if !r.hasData {
		r.pending = Event{}
		return nil
	}
	ev := r.pending
	r.pending = Event{}
	r.hasData = false
	return &ev
}

// scanLines is bufio.ScanLines extended with bare CR terminators.
func scanLines(data []byte, atEOF bool) (int, []byte, error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\n' {
			return i + 1, data[:i], nil
		}
		// CR: need one more byte to tell CR from CRLF.
		if i+1 < len(data) {
			if data[i+1] == '\n' {
				return i + 2, data[:i], nil
			}
			return i + 1, data[:i], nil
		}
		if atEOF {
			return i + 1, data[:i], nil
		}
		return 0, nil, nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
