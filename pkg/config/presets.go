package config

import (
	"fmt"
	"strings"
)

// presets adjust a default config for a provider setup. "ollama" is the
// default setup and changes nothing.
var presets = map[string]func(*Config){
	"ollama": func(*Config) {},

	// OpenAI embeddings and synthesis; the key comes from OPENAI_API_KEY.
	"openai": func(cfg *Config) {
		cfg.Embedding.Provider = "openai"
		cfg.Embedding.Target = ""
		cfg.Embedding.Model = "text-embedding-3-small"
		cfg.Embedding.Dimensions = 1536
		cfg.Synthesis.Provider = "openai"
		cfg.Synthesis.Target = ""
		cfg.Synthesis.Model = "gpt-4o-mini"
	},

	// No network: hashed local embeddings and the stub synthesizer.
	"offline": func(cfg *Config) {
		cfg.Embedding.Provider = "local"
		cfg.Embedding.Target = ""
		cfg.Embedding.Model = "hashed-bow"
		cfg.Embedding.Dimensions = 256
		cfg.Synthesis.Provider = "stub"
		cfg.Synthesis.Target = ""
		cfg.Synthesis.Model = ""
	},
}

// PresetConfig returns the default config adjusted by the named preset.
func PresetConfig(name string) (*Config, error) {
	apply, ok := presets[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown preset: %q (valid presets: %s)", name, strings.Join(ValidPresets(), ", "))
	}

	cfg := NewDefaultConfig()
	apply(cfg)
	return cfg, nil
}

// ValidPresets lists the preset names PresetConfig accepts.
func ValidPresets() []string {
	return []string{"ollama", "openai", "offline"}
}
