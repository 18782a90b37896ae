package config

const (
	defaultStorageDriver = "sqlite"
	defaultAPIListen     = ":8090"
	defaultAPITarget     = "http://localhost:8090"
	defaultRateLimit     = 60
	defaultRateWindow    = "1m"

	defaultVectorProvider   = "inmemory"
	defaultVectorCollection = "reposcope"

	defaultOllamaTarget        = "http://localhost:11434"
	defaultEmbeddingProvider   = "ollama"
	defaultEmbeddingModel      = "nomic-embed-text"
	defaultEmbeddingDimensions = 768
	defaultEmbeddingCacheSize  = 4096
	defaultEmbeddingTimeout    = "30s"
	defaultEmbeddingRetries    = 2

	defaultSynthesisProvider = "ollama"
	defaultSynthesisModel    = "llama3.2"
	defaultSynthesisTimeout  = "2m"

	defaultTopK      = 3
	defaultChunkSize = 1000
	defaultPace      = "15ms"

	defaultIngestWorkers     = 2
	defaultIngestQueueSize   = 64
	defaultIngestCommitLimit = 20
	defaultMaxFileSize       = 100000

	defaultEventsProvider = "nop"
	defaultEventsTopic    = "reposcope.repository.status"

	defaultLogFormat = "pretty"
)

// Accepted values of the provider and format keys.
var (
	StorageDrivers     = []string{"inmemory", "sqlite", "postgres"}
	VectorProviders    = []string{"inmemory", "sqlite", "qdrant", "chroma"}
	EmbeddingProviders = []string{"local", "ollama", "openai"}
	SynthesisProviders = []string{"stub", "ollama", "openai"}
	EventProviders     = []string{"nop", "kafka"}
	LogFormats         = []string{"pretty", "json", "text"}
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Driver: defaultStorageDriver,
		},
		API: APIConfig{
			Listen:     defaultAPIListen,
			RateLimit:  defaultRateLimit,
			RateWindow: defaultRateWindow,
		},
		Client: ClientConfig{
			APITarget: defaultAPITarget,
		},
		VectorStore: VectorStoreConfig{
			Provider:   defaultVectorProvider,
			Collection: defaultVectorCollection,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Target:     defaultOllamaTarget,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
			CacheSize:  defaultEmbeddingCacheSize,
			Timeout:    defaultEmbeddingTimeout,
			Retries:    defaultEmbeddingRetries,
		},
		Synthesis: SynthesisConfig{
			Provider: defaultSynthesisProvider,
			Target:   defaultOllamaTarget,
			Model:    defaultSynthesisModel,
			Timeout:  defaultSynthesisTimeout,
		},
		Retrieval: RetrievalConfig{
			TopK:      defaultTopK,
			ChunkSize: defaultChunkSize,
			Pace:      defaultPace,
		},
		Ingest: IngestConfig{
			Workers:     defaultIngestWorkers,
			QueueSize:   defaultIngestQueueSize,
			CommitLimit: defaultIngestCommitLimit,
			MaxFileSize: defaultMaxFileSize,
		},
		Events: EventsConfig{
			Provider: defaultEventsProvider,
			Topic:    defaultEventsTopic,
		},
		Log: LogConfig{
			Format: defaultLogFormat,
		},
	}
}
