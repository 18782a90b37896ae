package synth

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/papercomputeco/reposcope/pkg/retrieve"
)

const (
	// AnswerSystemPrompt frames question answering.
	AnswerSystemPrompt = "You are an expert software engineer helping developers understand their codebase. Provide accurate, helpful answers based on the provided code context."

	// CommitSystemPrompt frames commit summaries.
	CommitSystemPrompt = "You are a code reviewer analyzing git commits. Provide concise, accurate summaries."

	// AnalysisSystemPrompt frames repository analysis.
	AnalysisSystemPrompt = "You are a senior software architect analyzing codebases. Provide accurate, actionable insights."

	// analysisSampleFiles is how many files contribute content to the analysis prompt.
	analysisSampleFiles = 10

	// analysisSampleChars caps the content shown per sample file.
	analysisSampleChars = 500
)

// AnswerPrompt builds the user prompt for Synthesize.
func AnswerPrompt(question string, snippets []retrieve.Snippet, repoDescription string) string {
	parts := make([]string, 0, len(snippets))
	for _, s := range snippets {
		parts = append(parts, fmt.Sprintf("File: %s\n%s", s.Path, s.Content))
	}

	return fmt.Sprintf(`Answer this question about the codebase using the provided context.

Repository context: %s

Question: %s

Relevant files:
%s

Provide your answer in JSON format:
{
  "answer": "Detailed answer to the question",
  "confidence": confidence_score_0_to_1,
  "sources": ["file1.js", "file2.ts", "etc"]
}`, repoDescription, question, strings.Join(parts, "\n\n"))
}

// CommitPrompt builds the user prompt for SummarizeCommit.
func CommitPrompt(c Commit) string {
	return fmt.Sprintf(`Analyze this commit and provide a summary in JSON format:

Commit message: %s
Lines added: %d
Lines deleted: %d

Provide analysis in this JSON format:
{
  "summary": "Clear explanation of what this commit does",
  "impact": "High/Medium/Low - assessment of change impact",
  "files_affected": ["category of files likely affected"]
}`, c.Message, c.Additions, c.Deletions)
}

// AnalysisPrompt builds the user prompt for AnalyzeRepository.
func AnalysisPrompt(files []File) string {
	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.Path)
	}

	samples := make([]string, 0, analysisSampleFiles)
	for i, f := range files {
		if i == analysisSampleFiles {
			break
		}
		samples = append(samples, fmt.Sprintf("%s:\n%s", f.Path, truncate(f.Content, analysisSampleChars)))
	}

	return fmt.Sprintf(`Analyze this codebase and provide insights in JSON format:

File structure:
%s

Sample file contents:
%s

Provide analysis in this JSON format:
{
  "summary": "Brief overview of the project",
  "insights": ["Key insight 1", "Key insight 2", "Key insight 3"],
  "recommendations": ["Recommendation 1", "Recommendation 2", "Recommendation 3"],
  "primaryLanguage": "Main programming language",
  "framework": "Primary framework if applicable",
  "buildTool": "Build tool if identifiable",
  "dependencies": estimated_dependency_count
}`, strings.Join(paths, "\n"), strings.Join(samples, "\n\n"))
}

// ParseJSON decodes a model response into out. The response may wrap the
// object in prose or a markdown fence.
func ParseJSON(response string, out any) error {
	jsonStr := response
	if idx := strings.Index(response, "{"); idx >= 0 {
		endIdx := strings.LastIndex(response, "}")
		if endIdx > idx {
			jsonStr = response[idx : endIdx+1]
		}
	}

	if err := json.Unmarshal([]byte(jsonStr), out); err != nil {
		return fmt.Errorf("%w: decoding model response: %w", ErrSynthesis, err)
	}
	return nil
}

// Normalize clamps confidence into [0,1] and guarantees a non-nil source list.
func (a *Answer) Normalize() {
	switch {
	case a.Confidence < 0:
		a.Confidence = 0
	case a.Confidence > 1:
		a.Confidence = 1
	}
	if a.Sources == nil {
		a.Sources = []string{}
	}
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
