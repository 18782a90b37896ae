package servecmder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/papercomputeco/reposcope/api"
	"github.com/papercomputeco/reposcope/api/mcp"
	"github.com/papercomputeco/reposcope/cmd/reposcope/sqlitepath"
	"github.com/papercomputeco/reposcope/pkg/ask"
	"github.com/papercomputeco/reposcope/pkg/config"
	"github.com/papercomputeco/reposcope/pkg/embeddings"
	embeddingutils "github.com/papercomputeco/reposcope/pkg/embeddings/utils"
	"github.com/papercomputeco/reposcope/pkg/eventstream"
	"github.com/papercomputeco/reposcope/pkg/eventstream/kafka"
	"github.com/papercomputeco/reposcope/pkg/eventstream/nop"
	"github.com/papercomputeco/reposcope/pkg/index"
	"github.com/papercomputeco/reposcope/pkg/ingest"
	reslog "github.com/papercomputeco/reposcope/pkg/logger"
	"github.com/papercomputeco/reposcope/pkg/meeting"
	"github.com/papercomputeco/reposcope/pkg/metrics"
	"github.com/papercomputeco/reposcope/pkg/ratelimit"
	"github.com/papercomputeco/reposcope/pkg/retrieve"
	"github.com/papercomputeco/reposcope/pkg/source"
	"github.com/papercomputeco/reposcope/pkg/source/github"
	"github.com/papercomputeco/reposcope/pkg/source/local"
	"github.com/papercomputeco/reposcope/pkg/storage"
	"github.com/papercomputeco/reposcope/pkg/storage/inmemory"
	"github.com/papercomputeco/reposcope/pkg/storage/postgres"
	"github.com/papercomputeco/reposcope/pkg/storage/sqlite"
	synthutils "github.com/papercomputeco/reposcope/pkg/synth/utils"
	"github.com/papercomputeco/reposcope/pkg/vector"
	vectorutils "github.com/papercomputeco/reposcope/pkg/vector/utils"
)

// shutdownTimeout bounds how long in-flight ingestion jobs get to stop.
const shutdownTimeout = 10 * time.Second

// stack is every long lived component behind the API server.
type stack struct {
	storage   storage.Driver
	vectors   vector.Driver
	embedder  embeddings.Embedder
	publisher eventstream.Publisher
	index     *index.Index
	queue     *ingest.Queue
	watcher   *ingest.Watcher
	server    *api.Server

	logger *slog.Logger
}

// buildStack constructs the stack from cfg. On error every component built
// so far is released.
func buildStack(ctx context.Context, cfg *config.Config, configDir string, logger *slog.Logger) (*stack, error) {
	st := &stack{logger: logger}
	if err := st.build(ctx, cfg, configDir); err != nil {
		st.close()
		return nil, err
	}
	return st, nil
}

func (st *stack) build(ctx context.Context, cfg *config.Config, configDir string) error {
	logger := st.logger
	reg := metrics.New()

	var err error
	st.storage, err = newStorageDriver(ctx, cfg.Storage, configDir, reslog.Component(logger, "storage"))
	if err != nil {
		return err
	}

	st.embedder, err = embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: cfg.Embedding.Provider,
		TargetURL:    cfg.Embedding.Target,
		Model:        cfg.Embedding.Model,
		Dimensions:   cfg.Embedding.Dimensions,
		Timeout:      config.Duration(cfg.Embedding.Timeout, index.DefaultEmbedTimeout),
		Retries:      cfg.Embedding.Retries,
		CacheSize:    cfg.Embedding.CacheSize,
	})
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}
	logger.Info("using embedder",
		"provider", cfg.Embedding.Provider,
		"model", cfg.Embedding.Model,
	)

	st.vectors, err = vectorutils.NewVectorDriver(ctx, &vectorutils.NewVectorDriverOpts{
		ProviderType: cfg.VectorStore.Provider,
		Target:       cfg.VectorStore.Target,
		Collection:   cfg.VectorStore.Collection,
		Dimensions:   cfg.Embedding.Dimensions,
		Logger:       reslog.Component(logger, "vector"),
	})
	if err != nil {
		return fmt.Errorf("creating vector store: %w", err)
	}
	logger.Info("using vector store",
		"provider", cfg.VectorStore.Provider,
		"target", cfg.VectorStore.Target,
	)

	st.index, err = index.New(index.Config{
		Driver:       st.vectors,
		Embedder:     st.embedder,
		ChunkSize:    int(cfg.Retrieval.ChunkSize),
		EmbedTimeout: config.Duration(cfg.Embedding.Timeout, index.DefaultEmbedTimeout),
		Logger:       reslog.Component(logger, "index"),
		Metrics:      reg,
	})
	if err != nil {
		return fmt.Errorf("creating index: %w", err)
	}

	provider, err := synthutils.NewProvider(&synthutils.NewProviderOpts{
		ProviderType: cfg.Synthesis.Provider,
		TargetURL:    cfg.Synthesis.Target,
		Model:        cfg.Synthesis.Model,
		Timeout:      config.Duration(cfg.Synthesis.Timeout, 0),
		Logger:       reslog.Component(logger, "synth"),
	})
	if err != nil {
		return fmt.Errorf("creating synthesis provider: %w", err)
	}
	logger.Info("using synthesis provider",
		"provider", provider.Name(),
		"model", cfg.Synthesis.Model,
	)

	st.publisher, err = newPublisher(cfg.Events, reslog.Component(logger, "events"))
	if err != nil {
		return err
	}

	filter := source.Filter{MaxFileSize: int64(cfg.Ingest.MaxFileSize)}
	gh, err := github.New(github.Config{
		Token:   cfg.GitHub.Token,
		BaseURL: cfg.GitHub.BaseURL,
		Filter:  filter,
		Logger:  reslog.Component(logger, "github"),
	})
	if err != nil {
		return fmt.Errorf("creating github fetcher: %w", err)
	}
	fetcher := source.Mux{
		source.KindGitHub: gh,
		source.KindLocal:  local.New(filter, reslog.Component(logger, "local")),
	}

	pipeline, err := ingest.NewPipeline(ingest.Config{
		Storage:     st.storage,
		Index:       st.index,
		Fetcher:     fetcher,
		Summarizer:  provider,
		Publisher:   st.publisher,
		CommitLimit: int(cfg.Ingest.CommitLimit),
		Logger:      reslog.Component(logger, "ingest"),
		Metrics:     reg,
	})
	if err != nil {
		return fmt.Errorf("creating ingest pipeline: %w", err)
	}

	st.queue, err = ingest.NewQueue(ingest.QueueConfig{
		Runner:    pipeline,
		Workers:   cfg.Ingest.Workers,
		QueueSize: cfg.Ingest.QueueSize,
		Logger:    reslog.Component(logger, "ingest"),
	})
	if err != nil {
		return fmt.Errorf("creating ingest queue: %w", err)
	}

	var watcher api.Watcher
	if cfg.Ingest.Watch {
		st.watcher, err = ingest.NewWatcher(ingest.WatcherConfig{
			OnChange: st.reingest,
			Logger:   reslog.Component(logger, "watcher"),
		})
		if err != nil {
			return fmt.Errorf("creating watcher: %w", err)
		}
		watcher = st.watcher
	}

	retriever := retrieve.New(st.index, int(cfg.Retrieval.TopK))

	asker, err := ask.NewService(ask.Config{
		Storage:     st.storage,
		Retriever:   retriever,
		Synthesizer: provider,
		Pace:        config.Duration(cfg.Retrieval.Pace, 0),
		Logger:      reslog.Component(logger, "ask"),
		Metrics:     reg,
	})
	if err != nil {
		return err
	}

	meetings, err := meeting.NewService(meeting.Config{
		Storage:     st.storage,
		Index:       st.index,
		Synthesizer: provider,
		Logger:      reslog.Component(logger, "meeting"),
	})
	if err != nil {
		return err
	}

	limiter, err := ratelimit.New(ratelimit.Config{
		Limit:  int(cfg.API.RateLimit),
		Window: config.Duration(cfg.API.RateWindow, ratelimit.DefaultWindow),
	})
	if err != nil {
		return err
	}

	mcpServer, err := mcp.NewServer(mcp.Config{
		Searcher: st.index,
		Asker:    asker,
		Lister:   st.storage,
		Logger:   reslog.Component(logger, "mcp"),
	})
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}

	st.server, err = api.NewServer(api.Config{
		ListenAddr:  cfg.API.Listen,
		Storage:     st.storage,
		Index:       st.index,
		Fetcher:     fetcher,
		Queue:       st.queue,
		Ask:         asker,
		Meetings:    meetings,
		Summarizer:  provider,
		Watcher:     watcher,
		RateLimiter: limiter,
		Metrics:     reg,
		MCP:         mcpServer.Handler(),
		Logger:      reslog.Component(logger, "api"),
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	return nil
}

// resume re-queues repositories left pending or processing by a previous
// run and re-establishes watches on local repositories.
func (st *stack) resume(ctx context.Context) error {
	repos, err := st.storage.ListRepositories(ctx)
	if err != nil {
		return fmt.Errorf("listing repositories: %w", err)
	}

	for _, repo := range repos {
		if st.watcher != nil && repo.Source == storage.SourceLocal && repo.Path != "" {
			if err := st.watcher.Watch(repo.ID, repo.Path); err != nil {
				st.logger.Warn("could not watch repository",
					"repository_id", repo.ID,
					"path", repo.Path,
					"error", err,
				)
			}
		}

		if repo.Status != storage.StatusPending && repo.Status != storage.StatusProcessing {
			continue
		}
		if err := st.queue.Enqueue(repo.ID); err != nil && !errors.Is(err, ingest.ErrAlreadyQueued) {
			st.logger.Warn("could not resume ingestion",
				"repository_id", repo.ID,
				"error", err,
			)
			continue
		}
		st.logger.Info("resumed ingestion", "repository_id", repo.ID)
	}
	return nil
}

// reingest is the watcher callback. A job already queued for the repository
// picks up the change on its own.
func (st *stack) reingest(repositoryID string) {
	err := st.queue.Enqueue(repositoryID)
	switch {
	case err == nil:
		st.logger.Info("local changes detected, re-ingesting", "repository_id", repositoryID)
	case errors.Is(err, ingest.ErrAlreadyQueued):
	default:
		st.logger.Warn("could not re-ingest repository",
			"repository_id", repositoryID,
			"error", err,
		)
	}
}

// close releases every component in reverse order of construction.
func (st *stack) close() {
	if st.server != nil {
		if err := st.server.Shutdown(); err != nil {
			st.logger.Warn("shutting down API server", "error", err)
		}
	}
	if st.watcher != nil {
		_ = st.watcher.Close()
	}
	if st.queue != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := st.queue.Close(ctx); err != nil {
			st.logger.Warn("closing ingest queue", "error", err)
		}
		cancel()
	}
	if st.publisher != nil {
		_ = st.publisher.Close()
	}
	if st.vectors != nil {
		_ = st.vectors.Close()
	}
	if st.embedder != nil {
		_ = st.embedder.Close()
	}
	if st.storage != nil {
		_ = st.storage.Close()
	}
}

func newStorageDriver(ctx context.Context, c config.StorageConfig, configDir string, logger *slog.Logger) (storage.Driver, error) {
	switch c.Driver {
	case "inmemory":
		logger.Info("using in-memory storage")
		return inmemory.NewDriver(), nil

	case "", "sqlite":
		path, err := sqlitepath.ResolveSQLitePath(c.SQLitePath, configDir)
		if err != nil {
			return nil, err
		}
		driver, err := sqlite.NewDriver(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite storage: %w", err)
		}
		logger.Info("using SQLite storage", "path", path)
		return driver, nil

	case "postgres":
		if c.PostgresDSN == "" {
			return nil, errors.New("postgres storage requires storage.postgres_dsn")
		}
		driver, err := postgres.NewDriver(ctx, c.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL storage: %w", err)
		}
		logger.Info("using PostgreSQL storage")
		return driver, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", c.Driver)
	}
}

func newPublisher(c config.EventsConfig, logger *slog.Logger) (eventstream.Publisher, error) {
	switch c.Provider {
	case "", "nop":
		return nop.NewPublisher(logger), nil
	case "kafka":
		p, err := kafka.NewPublisher(kafka.Config{
			Brokers: c.BrokerList(),
			Topic:   c.Topic,
			Logger:  logger,
		})
		if err != nil {
			return nil, fmt.Errorf("creating kafka publisher: %w", err)
		}
		logger.Info("publishing repository events to kafka", "topic", c.Topic)
		return p, nil
	default:
		return nil, fmt.Errorf("unsupported events provider: %s", c.Provider)
	}
}
