package sse

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Writer frames events onto an io.Writer. When the destination is a
// *bufio.Writer every event is flushed so the client sees it immediately.
type Writer struct {
	w io.Writer
}

// NewWriter returns a Writer over w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteEvent writes one event. Multi-line data is split across data fields.
func (w *Writer) WriteEvent(eventType, data string) error {
	var b strings.Builder
	if eventType != "" {
		fmt.Fprintf(&b, "event: %s\n", eventType)
	}
	for _, line := range strings.Split(data, "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteString("\n")

	if _, err := io.WriteString(w.w, b.String()); err != nil {
		return err
	}
	return w.flush()
}

// WriteJSON writes one event whose data is v encoded as JSON.
func (w *Writer) WriteJSON(eventType string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", eventType, err)
	}
	return w.WriteEvent(eventType, string(data))
}

// Comment writes a comment line, used as a keep-alive.
func (w *Writer) Comment(text string) error {
	if _, err := fmt.Fprintf(w.w, ": %s\n\n", text); err != nil {
		return err
	}
	return w.flush()
}

func (w *Writer) flush() error {
	if bw, ok := w.w.(*bufio.Writer); ok {
		return bw.Flush()
	}
	return nil
}
