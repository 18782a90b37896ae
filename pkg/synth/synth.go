// Package synth defines the answer synthesis and summarization capabilities
// reposcope consumes from a language model.
package synth

import (
	"context"
	"errors"

	"github.com/papercomputeco/reposcope/pkg/retrieve"
)

// ErrSynthesis is wrapped by every synthesis or summarization failure,
// including timeouts.
var ErrSynthesis = errors.New("synthesis failed")

// Answer is the result of answering one question.
type Answer struct {
	Answer     string   `json:"answer"`
	Confidence float64  `json:"confidence"`
	Sources    []string `json:"sources"`
}

// Commit is the part of a commit a summarizer sees.
type Commit struct {
	Message   string
	Additions int
	Deletions int
}

// CommitSummary describes one commit.
type CommitSummary struct {
	Summary       string   `json:"summary"`
	Impact        string   `json:"impact"`
	FilesAffected []string `json:"files_affected"`
}

// File is one repository file offered to AnalyzeRepository.
type File struct {
	Path     string
	Content  string
	Language string
}

// RepositoryAnalysis is the whole-repository overview produced at the end of
// ingestion.
type RepositoryAnalysis struct {
	Summary         string   `json:"summary"`
	Insights        []string `json:"insights"`
	Recommendations []string `json:"recommendations"`
	PrimaryLanguage string   `json:"primaryLanguage"`
	Framework       string   `json:"framework,omitempty"`
	BuildTool       string   `json:"buildTool,omitempty"`
	Dependencies    int      `json:"dependencies,omitempty"`
}

// Synthesizer answers a question from retrieved context.
type Synthesizer interface {
	Synthesize(ctx context.Context, question string, snippets []retrieve.Snippet, repoDescription string) (*Answer, error)
}

// Summarizer produces commit summaries and repository analyses.
type Summarizer interface {
	SummarizeCommit(ctx context.Context, commit Commit) (*CommitSummary, error)
	AnalyzeRepository(ctx context.Context, files []File) (*RepositoryAnalysis, error)
}

// Provider is a model backend offering both capabilities.
type Provider interface {
	Synthesizer
	Summarizer

	// Name returns the provider name, e.g. "openai".
	Name() string
}
