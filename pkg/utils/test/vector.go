package testutils

import (
	"context"
	"strings"
	"sync"

	"github.com/papercomputeco/reposcope/pkg/vector"
)

// MockVectorDriver is a test vector driver that records calls and returns
// canned results
type MockVectorDriver struct {
	mu sync.Mutex

	Documents []vector.Document
	Results   []vector.QueryResult
	Prefixes  []string

	InsertErr error
	QueryErr  error
	DeleteErr error
}

func NewMockVectorDriver() *MockVectorDriver {
	return &MockVectorDriver{
		Documents: make([]vector.Document, 0),
		Results:   make([]vector.QueryResult, 0),
	}
}

func (m *MockVectorDriver) Insert(_ context.Context, docs []vector.Document) error {
	if m.InsertErr != nil {
		return m.InsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Documents = append(m.Documents, docs...)
	return nil
}

func (m *MockVectorDriver) Query(_ context.Context, _ []float32, topK int, prefix string) ([]vector.QueryResult, error) {
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Prefixes = append(m.Prefixes, prefix)
	if len(m.Results) < topK {
		return m.Results, nil
	}
	return m.Results[:topK], nil
}

func (m *MockVectorDriver) DeleteByPrefix(_ context.Context, prefix string) (int, error) {
	if m.DeleteErr != nil {
		return 0, m.DeleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Prefixes = append(m.Prefixes, prefix)

	kept := m.Documents[:0]
	removed := 0
	for _, d := range m.Documents {
		if strings.HasPrefix(d.ID, prefix) {
			removed++
			continue
		}
		kept = append(kept, d)
	}
	m.Documents = kept
	return removed, nil
}

func (m *MockVectorDriver) Close() error {
	return nil
}
