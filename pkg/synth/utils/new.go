// Package synthutils selects a synthesis provider from configuration.
package synthutils

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/papercomputeco/reposcope/pkg/synth"
	"github.com/papercomputeco/reposcope/pkg/synth/langchain"
	"github.com/papercomputeco/reposcope/pkg/synth/stub"
)

type NewProviderOpts struct {
	// ProviderType is one of "stub", "ollama", "openai".
	ProviderType string
	TargetURL    string
	Model        string
	Timeout      time.Duration
	Logger       *slog.Logger
}

func NewProvider(o *NewProviderOpts) (synth.Provider, error) {
	cfg := langchain.Config{
		Model:   o.Model,
		BaseURL: o.TargetURL,
		Timeout: o.Timeout,
		Logger:  o.Logger,
	}

	switch o.ProviderType {
	case "stub", "":
		return stub.New(), nil
	case "ollama":
		return langchain.NewOllama(cfg)
	case "openai":
		return langchain.NewOpenAI(cfg)
	default:
		return nil, fmt.Errorf("unsupported synthesis provider: %s", o.ProviderType)
	}
}
