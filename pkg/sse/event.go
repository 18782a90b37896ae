// Package sse reads and writes Server-Sent Events. The API server writes the
// answer stream with Writer, and the CLI consumes it with Reader.
//
// Wire format reference:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event is one dispatched event.
type Event struct {
	// Type is the "event:" field. Empty means the default "message" type.
	Type string

	// Data holds every "data:" line of the event joined with "\n".
	Data string

	// ID is the "id:" field, if present.
	ID string

	// Retry is the reconnection delay from a "retry:" field, zero if absent.
	Retry time.Duration
}

// DecodeJSON unmarshals the event data into v.
func (e *Event) DecodeJSON(v any) error {
	if err := json.Unmarshal([]byte(e.Data), v); err != nil {
		name := e.Type
		if name == "" {
			name = "message"
		}
		return fmt.Errorf("decoding %s event: %w", name, err)
	}
	return nil
}
