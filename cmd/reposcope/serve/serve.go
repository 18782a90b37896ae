// Package servecmder provides the serve command that runs the reposcope API
// server with its ingestion workers.
package servecmder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papercomputeco/reposcope/pkg/config"
	"github.com/papercomputeco/reposcope/pkg/dotdir"
	reslog "github.com/papercomputeco/reposcope/pkg/logger"
)

// serveFlags are the flags "reposcope serve" accepts. Each maps onto a
// config key so that flag > env > config.toml > default.
var serveFlags = config.FlagSet{
	config.FlagListen:          {Name: "listen", Shorthand: "l", ViperKey: "api.listen", Description: "Address for the API server to listen on"},
	config.FlagStorageDriver:   {Name: "storage-driver", ViperKey: "storage.driver", Description: "Entity store (inmemory, sqlite, postgres)"},
	config.FlagSQLite:          {Name: "sqlite", Shorthand: "s", ViperKey: "storage.sqlite_path", Description: "Path to the SQLite database"},
	config.FlagPostgres:        {Name: "postgres", ViperKey: "storage.postgres_dsn", Description: "PostgreSQL connection string"},
	config.FlagVectorStoreProv: {Name: "vector-store-provider", ViperKey: "vector_store.provider", Description: "Vector store (inmemory, sqlite, qdrant, chroma)"},
	config.FlagVectorStoreTgt:  {Name: "vector-store-target", ViperKey: "vector_store.target", Description: "Vector store URL, host:port or file path"},
	config.FlagEmbeddingProv:   {Name: "embedding-provider", ViperKey: "embedding.provider", Description: "Embedding provider (local, ollama, openai)"},
	config.FlagEmbeddingTgt:    {Name: "embedding-target", ViperKey: "embedding.target", Description: "Embedding provider URL"},
	config.FlagEmbeddingModel:  {Name: "embedding-model", ViperKey: "embedding.model", Description: "Embedding model name"},
	config.FlagEmbeddingDims:   {Name: "embedding-dimensions", ViperKey: "embedding.dimensions", Description: "Embedding vector dimensions"},
	config.FlagSynthesisProv:   {Name: "synthesis-provider", ViperKey: "synthesis.provider", Description: "Answer provider (stub, ollama, openai)"},
	config.FlagSynthesisTgt:    {Name: "synthesis-target", ViperKey: "synthesis.target", Description: "Answer provider URL"},
	config.FlagSynthesisModel:  {Name: "synthesis-model", ViperKey: "synthesis.model", Description: "Answer model name"},
	config.FlagTopK:            {Name: "top-k", Shorthand: "k", ViperKey: "retrieval.top_k", Description: "Chunks of context retrieved per question"},
	config.FlagWorkers:         {Name: "workers", Shorthand: "w", ViperKey: "ingest.workers", Description: "Background ingestion workers"},
	config.FlagWatch:           {Name: "watch", ViperKey: "ingest.watch", Description: "Re-ingest local repositories when their files change"},
	config.FlagGitHubToken:     {Name: "github-token", ViperKey: "github.token", Description: "GitHub API token"},
	config.FlagLogFormat:       {Name: "log-format", ViperKey: "log.format", Description: "Log format (pretty, json, text)"},
}

var stringFlags = []string{
	config.FlagListen,
	config.FlagStorageDriver,
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagVectorStoreProv,
	config.FlagVectorStoreTgt,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagSynthesisProv,
	config.FlagSynthesisTgt,
	config.FlagSynthesisModel,
	config.FlagGitHubToken,
	config.FlagLogFormat,
}

var uintFlags = []string{
	config.FlagEmbeddingDims,
	config.FlagTopK,
	config.FlagWorkers,
}

type serveCommander struct {
	configDir string
	debug     bool

	// flag targets; the effective values are read back through viper.
	strings map[string]*string
	uints   map[string]*uint
	watch   bool

	viper  *viper.Viper
	logger *slog.Logger
}

const serveLongDesc string = `Run the reposcope API server.

The server accepts repositories to index, ingests them on background workers,
and answers questions about them over REST, Server-Sent Events and MCP.

Every flag maps onto a config.toml key and can also be set through a
REPOSCOPE_ environment variable, e.g. REPOSCOPE_GITHUB_TOKEN.

Examples:
  reposcope serve
  reposcope serve --listen :9000 --storage-driver inmemory
  reposcope serve --embedding-provider local --synthesis-provider stub --watch`

const serveShortDesc string = "Run the reposcope API server"

func NewServeCmd() *cobra.Command {
	return newServeCmd(&serveCommander{})
}

func newServeCmd(cmder *serveCommander) *cobra.Command {
	cmder.strings = map[string]*string{}
	cmder.uints = map[string]*uint{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, serveFlags, serveFlags.Keys())
			cmder.viper = v
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run(cmd.Context())
		},
	}

	for _, key := range stringFlags {
		target := new(string)
		cmder.strings[key] = target
		config.AddStringFlag(cmd, serveFlags, key, target)
	}
	for _, key := range uintFlags {
		target := new(uint)
		cmder.uints[key] = target
		config.AddUintFlag(cmd, serveFlags, key, target)
	}
	config.AddBoolFlag(cmd, serveFlags, config.FlagWatch, &cmder.watch)

	return cmd
}

func (c *serveCommander) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.FromViper(c.viper)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, closeLog, err := c.newLogger(cfg.Log.Format)
	if err != nil {
		return err
	}
	defer closeLog()
	c.logger = logger

	st, err := buildStack(ctx, cfg, c.configDir, logger)
	if err != nil {
		return err
	}
	defer st.close()

	if err := st.resume(ctx); err != nil {
		logger.Warn("could not resume repositories", "error", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Channel to capture errors from goroutines
	errChan := make(chan error, 2)

	if st.watcher != nil {
		go func() {
			if err := st.watcher.Run(runCtx); err != nil {
				errChan <- fmt.Errorf("watcher error: %w", err)
			}
		}()
	}

	go func() {
		if err := st.server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	// Wait for interrupt signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		logger.Info("received signal, shutting down", "signal", sig.String())
		return nil
	case <-ctx.Done():
		return nil
	}
}

// newLogger writes to the console in the configured format and mirrors every
// record as JSON to the log file in the .reposcope/ directory.
func (c *serveCommander) newLogger(name string) (*slog.Logger, func(), error) {
	format, err := reslog.ParseFormat(name)
	if err != nil {
		return nil, nil, err
	}

	console := reslog.New(
		reslog.WithDebug(c.debug),
		reslog.WithFormat(format),
		reslog.WithWriter(os.Stderr),
	)

	path, err := dotdir.NewManager().Path(c.configDir, dotdir.LogFile)
	if err != nil {
		return nil, nil, fmt.Errorf("resolving log file: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		console.Warn("could not open log file, logging to console only", "path", path, "error", err)
		return console, func() {}, nil
	}

	file := reslog.New(
		reslog.WithDebug(c.debug),
		reslog.WithJSON(true),
		reslog.WithWriter(f),
	)

	return reslog.Multi(console, file), func() { _ = f.Close() }, nil
}
