// Package stream replays a synthesized answer to a client as an ordered
// sequence of token events followed by exactly one terminal event.
package stream

// EventType names an event on the wire.
type EventType string

const (
	EventToken EventType = "token"
	EventDone  EventType = "done"
	EventError EventType = "error"
)

// Event is one unit of the answer stream.
type Event struct {
	Type EventType

	// Chunk is set on token events.
	Chunk string

	// Sources and Confidence are set on done events.
	Sources    []string
	Confidence float64

	// Message is set on error events.
	Message string
}

// TokenPayload is the JSON body of a token event.
type TokenPayload struct {
	Chunk string `json:"chunk"`
}

// DonePayload is the JSON body of a done event.
type DonePayload struct {
	Sources    []string `json:"sources"`
	Confidence float64  `json:"confidence"`
}

// ErrorPayload is the JSON body of an error event.
type ErrorPayload struct {
	Error string `json:"error"`
}

// Terminal reports whether e ends the stream.
func (e Event) Terminal() bool {
	return e.Type == EventDone || e.Type == EventError
}

// Payload returns the value encoded as the event's data.
func (e Event) Payload() any {
	switch e.Type {
	case EventToken:
		return TokenPayload{Chunk: e.Chunk}
	case EventDone:
		sources := e.Sources
		if sources == nil {
			sources = []string{}
		}
		return DonePayload{Sources: sources, Confidence: e.Confidence}
	default:
		return ErrorPayload{Error: e.Message}
	}
}

// Token builds a token event.
func Token(chunk string) Event {
	return Event{Type: EventToken, Chunk: chunk}
}

// Done builds a done event.
func Done(sources []string, confidence float64) Event {
	return Event{Type: EventDone, Sources: sources, Confidence: confidence}
}

// Error builds an error event.
func Error(message string) Event {
	return Event{Type: EventError, Message: message}
}
