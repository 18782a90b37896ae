package testutils

import (
	"context"
	"sync"
	"time"

	"github.com/papercomputeco/reposcope/pkg/retrieve"
	"github.com/papercomputeco/reposcope/pkg/synth"
)

// MockSynthesizer is a test synth.Provider with canned responses. When Answer
// is nil, Synthesize echoes the snippet paths as sources with confidence 0.5.
type MockSynthesizer struct {
	mu sync.Mutex

	Answer   *synth.Answer
	Summary  *synth.CommitSummary
	Analysis *synth.RepositoryAnalysis

	SynthesizeErr error
	CommitErr     error
	AnalyzeErr    error

	// Delay is waited (or the context cancelled) before Synthesize returns
	Delay time.Duration

	Questions []string
	Snippets  [][]retrieve.Snippet
	Commits   []synth.Commit
}

func NewMockSynthesizer() *MockSynthesizer {
	return &MockSynthesizer{}
}

func (m *MockSynthesizer) Name() string {
	return "mock"
}

func (m *MockSynthesizer) Synthesize(ctx context.Context, question string, snippets []retrieve.Snippet, _ string) (*synth.Answer, error) {
	m.mu.Lock()
	m.Questions = append(m.Questions, question)
	m.Snippets = append(m.Snippets, snippets)
	m.mu.Unlock()

	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if m.SynthesizeErr != nil {
		return nil, m.SynthesizeErr
	}
	if m.Answer != nil {
		a := *m.Answer
		return &a, nil
	}

	sources := make([]string, 0, len(snippets))
	for _, s := range snippets {
		sources = append(sources, s.Path)
	}
	return &synth.Answer{Answer: "mock answer", Confidence: 0.5, Sources: sources}, nil
}

func (m *MockSynthesizer) SummarizeCommit(_ context.Context, c synth.Commit) (*synth.CommitSummary, error) {
	m.mu.Lock()
	m.Commits = append(m.Commits, c)
	m.mu.Unlock()

	if m.CommitErr != nil {
		return nil, m.CommitErr
	}
	if m.Summary != nil {
		s := *m.Summary
		return &s, nil
	}
	return &synth.CommitSummary{Summary: "summary: " + c.Message, Impact: "Low"}, nil
}

func (m *MockSynthesizer) AnalyzeRepository(_ context.Context, files []synth.File) (*synth.RepositoryAnalysis, error) {
	if m.AnalyzeErr != nil {
		return nil, m.AnalyzeErr
	}
	if m.Analysis != nil {
		a := *m.Analysis
		return &a, nil
	}
	return &synth.RepositoryAnalysis{Summary: "mock analysis", PrimaryLanguage: "unknown"}, nil
}

// Calls returns how many questions were synthesized.
func (m *MockSynthesizer) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Questions)
}
