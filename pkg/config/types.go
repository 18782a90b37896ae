package config

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Config represents the persistent reposcope configuration stored as
// config.toml in the .reposcope/ directory. The TOML layout uses sections for
// logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Storage     StorageConfig     `toml:"storage"`
	API         APIConfig         `toml:"api"`
	Client      ClientConfig      `toml:"client"`
	VectorStore VectorStoreConfig `toml:"vector_store"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	Synthesis   SynthesisConfig   `toml:"synthesis"`
	Retrieval   RetrievalConfig   `toml:"retrieval"`
	Ingest      IngestConfig      `toml:"ingest"`
	GitHub      GitHubConfig      `toml:"github"`
	Events      EventsConfig      `toml:"events"`
	Log         LogConfig         `toml:"log"`
}

// StorageConfig selects the entity store for repositories, files, commits,
// queries and meetings.
type StorageConfig struct {
	// Driver is one of "inmemory", "sqlite", "postgres".
	Driver      string `toml:"driver,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`

	// RateLimit is the number of requests a single client may make per RateWindow.
	RateLimit  uint   `toml:"rate_limit,omitempty"`
	RateWindow string `toml:"rate_window,omitempty"`
}

// ClientConfig holds settings for CLI commands that talk to a running API
// server (reposcope ask, reposcope repo).
type ClientConfig struct {
	APITarget string `toml:"api_target,omitempty"`
}

// VectorStoreConfig selects the Embedding Index backend.
type VectorStoreConfig struct {
	// Provider is one of "inmemory", "sqlite", "qdrant", "chroma".
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Collection string `toml:"collection,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	// Provider is one of "local", "ollama", "openai".
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Model      string `toml:"model,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`
	CacheSize  uint   `toml:"cache_size,omitempty"`
	Timeout    string `toml:"timeout,omitempty"`
	Retries    uint   `toml:"retries,omitempty"`
}

// SynthesisConfig holds answer and summary provider settings.
type SynthesisConfig struct {
	// Provider is one of "stub", "ollama", "openai".
	Provider string `toml:"provider,omitempty"`
	Target   string `toml:"target,omitempty"`
	Model    string `toml:"model,omitempty"`
	Timeout  string `toml:"timeout,omitempty"`
}

// RetrievalConfig tunes chunking, top-k retrieval and stream pacing.
type RetrievalConfig struct {
	TopK      uint   `toml:"top_k,omitempty"`
	ChunkSize uint   `toml:"chunk_size,omitempty"`
	Pace      string `toml:"pace,omitempty"`
}

// IngestConfig tunes the background ingestion queue.
type IngestConfig struct {
	Workers     uint `toml:"workers,omitempty"`
	QueueSize   uint `toml:"queue_size,omitempty"`
	CommitLimit uint `toml:"commit_limit,omitempty"`
	MaxFileSize uint `toml:"max_file_size,omitempty"`
	Watch       bool `toml:"watch,omitempty"`
}

// GitHubConfig holds GitHub API access settings.
type GitHubConfig struct {
	Token   string `toml:"token,omitempty"`
	BaseURL string `toml:"base_url,omitempty"`
}

// EventsConfig selects the repository status event publisher.
type EventsConfig struct {
	// Provider is one of "nop", "kafka".
	Provider string `toml:"provider,omitempty"`
	Brokers  string `toml:"brokers,omitempty"`
	Topic    string `toml:"topic,omitempty"`
}

// LogConfig selects the log output format.
type LogConfig struct {
	Format string `toml:"format,omitempty"`
}

// Duration parses a duration config value, returning fallback when the value
// is empty or malformed.
func Duration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

// BrokerList splits the comma separated broker list.
func (e EventsConfig) BrokerList() []string {
	var out []string
	for _, b := range strings.Split(e.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

// enumKey accepts only the listed values. The empty string restores the
// default.
func enumKey(name string, allowed []string, field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error {
			if v != "" && !slices.Contains(allowed, v) {
				return fmt.Errorf("invalid value for %s: %q (want one of %s)", name, v, strings.Join(allowed, ", "))
			}
			*field(c) = v
			return nil
		},
	}
}

func uintKey(name string, field func(c *Config) *uint) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(*field(c)), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = uint(n)
			return nil
		},
	}
}

func boolKey(name string, field func(c *Config) *bool) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return strconv.FormatBool(*field(c)) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = b
			return nil
		},
	}
}

func durationKey(name string, field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error {
			if v != "" {
				if _, err := time.ParseDuration(v); err != nil {
					return fmt.Errorf("invalid value for %s: %w", name, err)
				}
			}
			*field(c) = v
			return nil
		},
	}
}

// orderedKeys lists every supported key in TOML section order.
var orderedKeys = []string{
	"storage.driver",
	"storage.sqlite_path",
	"storage.postgres_dsn",
	"api.listen",
	"api.rate_limit",
	"api.rate_window",
	"client.api_target",
	"vector_store.provider",
	"vector_store.target",
	"vector_store.collection",
	"embedding.provider",
	"embedding.target",
	"embedding.model",
	"embedding.dimensions",
	"embedding.cache_size",
	"embedding.timeout",
	"embedding.retries",
	"synthesis.provider",
	"synthesis.target",
	"synthesis.model",
	"synthesis.timeout",
	"retrieval.top_k",
	"retrieval.chunk_size",
	"retrieval.pace",
	"ingest.workers",
	"ingest.queue_size",
	"ingest.commit_limit",
	"ingest.max_file_size",
	"ingest.watch",
	"github.token",
	"github.base_url",
	"events.provider",
	"events.brokers",
	"events.topic",
	"log.format",
}

// configKeys is the authoritative map of all supported config keys.
var configKeys = map[string]configKeyInfo{
	"storage.driver":       enumKey("storage.driver", StorageDrivers, func(c *Config) *string { return &c.Storage.Driver }),
	"storage.sqlite_path":  stringKey(func(c *Config) *string { return &c.Storage.SQLitePath }),
	"storage.postgres_dsn": stringKey(func(c *Config) *string { return &c.Storage.PostgresDSN }),

	"api.listen":      stringKey(func(c *Config) *string { return &c.API.Listen }),
	"api.rate_limit":  uintKey("api.rate_limit", func(c *Config) *uint { return &c.API.RateLimit }),
	"api.rate_window": durationKey("api.rate_window", func(c *Config) *string { return &c.API.RateWindow }),

	"client.api_target": stringKey(func(c *Config) *string { return &c.Client.APITarget }),

	"vector_store.provider":   enumKey("vector_store.provider", VectorProviders, func(c *Config) *string { return &c.VectorStore.Provider }),
	"vector_store.target":     stringKey(func(c *Config) *string { return &c.VectorStore.Target }),
	"vector_store.collection": stringKey(func(c *Config) *string { return &c.VectorStore.Collection }),

	"embedding.provider":   enumKey("embedding.provider", EmbeddingProviders, func(c *Config) *string { return &c.Embedding.Provider }),
	"embedding.target":     stringKey(func(c *Config) *string { return &c.Embedding.Target }),
	"embedding.model":      stringKey(func(c *Config) *string { return &c.Embedding.Model }),
	"embedding.dimensions": uintKey("embedding.dimensions", func(c *Config) *uint { return &c.Embedding.Dimensions }),
	"embedding.cache_size": uintKey("embedding.cache_size", func(c *Config) *uint { return &c.Embedding.CacheSize }),
	"embedding.timeout":    durationKey("embedding.timeout", func(c *Config) *string { return &c.Embedding.Timeout }),
	"embedding.retries":    uintKey("embedding.retries", func(c *Config) *uint { return &c.Embedding.Retries }),

	"synthesis.provider": enumKey("synthesis.provider", SynthesisProviders, func(c *Config) *string { return &c.Synthesis.Provider }),
	"synthesis.target":   stringKey(func(c *Config) *string { return &c.Synthesis.Target }),
	"synthesis.model":    stringKey(func(c *Config) *string { return &c.Synthesis.Model }),
	"synthesis.timeout":  durationKey("synthesis.timeout", func(c *Config) *string { return &c.Synthesis.Timeout }),

	"retrieval.top_k":      uintKey("retrieval.top_k", func(c *Config) *uint { return &c.Retrieval.TopK }),
	"retrieval.chunk_size": uintKey("retrieval.chunk_size", func(c *Config) *uint { return &c.Retrieval.ChunkSize }),
	"retrieval.pace":       durationKey("retrieval.pace", func(c *Config) *string { return &c.Retrieval.Pace }),

	"ingest.workers":       uintKey("ingest.workers", func(c *Config) *uint { return &c.Ingest.Workers }),
	"ingest.queue_size":    uintKey("ingest.queue_size", func(c *Config) *uint { return &c.Ingest.QueueSize }),
	"ingest.commit_limit":  uintKey("ingest.commit_limit", func(c *Config) *uint { return &c.Ingest.CommitLimit }),
	"ingest.max_file_size": uintKey("ingest.max_file_size", func(c *Config) *uint { return &c.Ingest.MaxFileSize }),
	"ingest.watch":         boolKey("ingest.watch", func(c *Config) *bool { return &c.Ingest.Watch }),

	"github.token":    stringKey(func(c *Config) *string { return &c.GitHub.Token }),
	"github.base_url": stringKey(func(c *Config) *string { return &c.GitHub.BaseURL }),

	"events.provider": enumKey("events.provider", EventProviders, func(c *Config) *string { return &c.Events.Provider }),
	"events.brokers":  stringKey(func(c *Config) *string { return &c.Events.Brokers }),
	"events.topic":    stringKey(func(c *Config) *string { return &c.Events.Topic }),

	"log.format": enumKey("log.format", LogFormats, func(c *Config) *string { return &c.Log.Format }),
}
