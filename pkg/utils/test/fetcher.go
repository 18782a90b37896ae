package testutils

import (
	"context"
	"sync"

	"github.com/papercomputeco/reposcope/pkg/source"
)

// MockFetcher is a source.Fetcher serving canned files and commits.
type MockFetcher struct {
	mu sync.Mutex

	Metadata   *source.Info
	FileList   []source.File
	CommitList []source.Commit

	InfoErr    error
	FilesErr   error
	CommitsErr error

	// Block, when non-nil, is waited on (or the context cancelled) before
	// Files returns.
	Block chan struct{}

	FileCalls int
}

func NewMockFetcher() *MockFetcher {
	return &MockFetcher{}
}

func (m *MockFetcher) Info(_ context.Context, ref source.Ref) (*source.Info, error) {
	if m.InfoErr != nil {
		return nil, m.InfoErr
	}
	if m.Metadata != nil {
		info := *m.Metadata
		return &info, nil
	}
	return &source.Info{
		Name:     ref.Name,
		FullName: ref.FullName(),
		Owner:    ref.Owner,
	}, nil
}

func (m *MockFetcher) Files(ctx context.Context, _ source.Ref) ([]source.File, error) {
	m.mu.Lock()
	m.FileCalls++
	block := m.Block
	m.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if m.FilesErr != nil {
		return nil, m.FilesErr
	}
	return append([]source.File(nil), m.FileList...), nil
}

func (m *MockFetcher) Commits(_ context.Context, _ source.Ref, limit int) ([]source.Commit, error) {
	if m.CommitsErr != nil {
		return nil, m.CommitsErr
	}
	out := m.CommitList
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return append([]source.Commit(nil), out...), nil
}

// Calls returns how many times Files was invoked.
func (m *MockFetcher) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.FileCalls
}
