package testutils

import (
	"context"
	"sync"

	"github.com/papercomputeco/reposcope/pkg/eventstream"
)

// MockPublisher records published status events.
type MockPublisher struct {
	mu     sync.Mutex
	events []eventstream.RepositoryStatusEvent

	Err error
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) PublishStatus(_ context.Context, event *eventstream.RepositoryStatusEvent) error {
	if event == nil {
		return eventstream.ErrNilStatusEvent
	}
	m.mu.Lock()
	m.events = append(m.events, *event)
	m.mu.Unlock()
	return m.Err
}

// Statuses returns the status of every published event in order.
func (m *MockPublisher) Statuses() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events))
	for i, e := range m.events {
		out[i] = e.Status
	}
	return out
}

// Events returns a copy of every published event.
func (m *MockPublisher) Events() []eventstream.RepositoryStatusEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]eventstream.RepositoryStatusEvent(nil), m.events...)
}

func (m *MockPublisher) Close() error {
	return nil
}
