// Package langchain implements synth.Provider over any langchaingo chat model.
package langchain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/papercomputeco/reposcope/pkg/logger"
	"github.com/papercomputeco/reposcope/pkg/retrieve"
	"github.com/papercomputeco/reposcope/pkg/synth"
)

const (
	// DefaultTimeout bounds one model call.
	DefaultTimeout = 2 * time.Minute

	answerMaxTokens   = 1000
	commitMaxTokens   = 300
	analysisMaxTokens = 1000
)

// Config holds the model connection settings.
type Config struct {
	// Model name, e.g. "gpt-4o-mini" or "llama3.2".
	Model string

	// BaseURL overrides the provider endpoint.
	BaseURL string

	// APIKey for OpenAI. Falls back to OPENAI_API_KEY.
	APIKey string

	// Timeout bounds each call. Defaults to DefaultTimeout.
	Timeout time.Duration

	Logger *slog.Logger
}

// Provider answers questions and writes summaries through a chat model in
// JSON mode.
type Provider struct {
	name    string
	model   llms.Model
	timeout time.Duration
	logger  *slog.Logger
}

// New wraps an existing langchaingo model.
func New(name string, model llms.Model, cfg Config) *Provider {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Provider{
		name:    name,
		model:   model,
		timeout: timeout,
		logger:  log,
	}
}

// NewOpenAI creates a Provider backed by the OpenAI chat completions API.
func NewOpenAI(cfg Config) (*Provider, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New("openai synthesis requires an API key (set OPENAI_API_KEY)")
	}

	opts := []openai.Option{
		openai.WithModel(cfg.Model),
		openai.WithToken(apiKey),
		openai.WithResponseFormat(&openai.ResponseFormat{Type: "json_object"}),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating openai client: %w", err)
	}
	return New("openai", model, cfg), nil
}

// NewOllama creates a Provider backed by a local Ollama server.
func NewOllama(cfg Config) (*Provider, error) {
	opts := []ollama.Option{
		ollama.WithModel(cfg.Model),
		ollama.WithFormat("json"),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
	}

	model, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating ollama client: %w", err)
	}
	return New("ollama", model, cfg), nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return p.name
}

// Synthesize answers question from the retrieved snippets.
func (p *Provider) Synthesize(ctx context.Context, question string, snippets []retrieve.Snippet, repoDescription string) (*synth.Answer, error) {
	var answer synth.Answer
	prompt := synth.AnswerPrompt(question, snippets, repoDescription)
	if err := p.generate(ctx, synth.AnswerSystemPrompt, prompt, answerMaxTokens, &answer); err != nil {
		return nil, fmt.Errorf("answering question: %w", err)
	}
	answer.Normalize()
	return &answer, nil
}

// SummarizeCommit describes one commit.
func (p *Provider) SummarizeCommit(ctx context.Context, commit synth.Commit) (*synth.CommitSummary, error) {
	var summary synth.CommitSummary
	if err := p.generate(ctx, synth.CommitSystemPrompt, synth.CommitPrompt(commit), commitMaxTokens, &summary); err != nil {
		return nil, fmt.Errorf("summarizing commit: %w", err)
	}
	return &summary, nil
}

// AnalyzeRepository produces a whole-repository overview.
func (p *Provider) AnalyzeRepository(ctx context.Context, files []synth.File) (*synth.RepositoryAnalysis, error) {
	var analysis synth.RepositoryAnalysis
	if err := p.generate(ctx, synth.AnalysisSystemPrompt, synth.AnalysisPrompt(files), analysisMaxTokens, &analysis); err != nil {
		return nil, fmt.Errorf("analyzing repository: %w", err)
	}
	return &analysis, nil
}

func (p *Provider) generate(ctx context.Context, system, prompt string, maxTokens int, out any) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	start := time.Now()
	resp, err := p.model.GenerateContent(ctx, messages,
		llms.WithJSONMode(),
		llms.WithMaxTokens(maxTokens),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", synth.ErrSynthesis, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return fmt.Errorf("%w: empty response", synth.ErrSynthesis)
	}

	p.logger.Debug("model call finished",
		"provider", p.name,
		"duration", time.Since(start),
	)

	return synth.ParseJSON(resp.Choices[0].Content, out)
}
