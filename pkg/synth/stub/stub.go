// Package stub provides a deterministic synthesis provider that needs no
// model. Answers cite the retrieved paths with zero confidence.
package stub

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/papercomputeco/reposcope/pkg/retrieve"
	"github.com/papercomputeco/reposcope/pkg/synth"
)

const maxSources = 3

// Provider is the offline synth.Provider.
type Provider struct{}

// New creates a stub Provider.
func New() *Provider {
	return &Provider{}
}

// Name returns "stub".
func (p *Provider) Name() string {
	return "stub"
}

// Synthesize lists the retrieved files instead of answering.
func (p *Provider) Synthesize(_ context.Context, _ string, snippets []retrieve.Snippet, _ string) (*synth.Answer, error) {
	sources := make([]string, 0, maxSources)
	seen := map[string]bool{}
	for _, s := range snippets {
		if len(sources) == maxSources {
			break
		}
		if seen[s.Path] {
			continue
		}
		seen[s.Path] = true
		sources = append(sources, s.Path)
	}

	answer := "No indexed source matched the question."
	if len(sources) > 0 {
		answer = "The most relevant code is in " + strings.Join(sources, ", ") + "."
	}

	return &synth.Answer{
		Answer:     answer,
		Confidence: 0,
		Sources:    sources,
	}, nil
}

// SummarizeCommit uses the commit subject as the summary and grades impact by
// lines changed.
func (p *Provider) SummarizeCommit(_ context.Context, c synth.Commit) (*synth.CommitSummary, error) {
	subject, _, _ := strings.Cut(strings.TrimSpace(c.Message), "\n")

	impact := "Low"
	switch changed := c.Additions + c.Deletions; {
	case changed > 500:
		impact = "High"
	case changed > 50:
		impact = "Medium"
	}

	return &synth.CommitSummary{
		Summary:       subject,
		Impact:        impact,
		FilesAffected: []string{},
	}, nil
}

// AnalyzeRepository reports file counts per language.
func (p *Provider) AnalyzeRepository(_ context.Context, files []synth.File) (*synth.RepositoryAnalysis, error) {
	counts := map[string]int{}
	for _, f := range files {
		if f.Language != "" {
			counts[f.Language]++
		}
	}

	langs := make([]string, 0, len(counts))
	for l := range counts {
		langs = append(langs, l)
	}
	sort.Slice(langs, func(i, j int) bool {
		if counts[langs[i]] != counts[langs[j]] {
			return counts[langs[i]] > counts[langs[j]]
		}
		return langs[i] < langs[j]
	})

	primary := "unknown"
	if len(langs) > 0 {
		primary = langs[0]
	}

	insights := make([]string, 0, len(langs))
	for _, l := range langs {
		insights = append(insights, fmt.Sprintf("%d %s files", counts[l], l))
	}

	return &synth.RepositoryAnalysis{
		Summary:         fmt.Sprintf("%d files indexed, mostly %s.", len(files), primary),
		Insights:        insights,
		Recommendations: []string{},
		PrimaryLanguage: primary,
	}, nil
}
