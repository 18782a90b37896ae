package servecmder

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/reposcope/pkg/config"
	reslog "github.com/papercomputeco/reposcope/pkg/logger"
	"github.com/papercomputeco/reposcope/pkg/storage"
)

func offlineConfig() *config.Config {
	cfg, err := config.PresetConfig("offline")
	Expect(err).NotTo(HaveOccurred())
	cfg.Storage.Driver = "inmemory"
	cfg.Embedding.Dimensions = 64
	cfg.Ingest.Workers = 1
	return cfg
}

var _ = Describe("NewServeCmd", func() {
	It("registers every flag with its config default", func() {
		cmd := NewServeCmd()
		defaults := config.NewDefaultConfig()

		listen := cmd.Flags().Lookup("listen")
		Expect(listen).NotTo(BeNil())
		Expect(listen.Shorthand).To(Equal("l"))
		Expect(listen.DefValue).To(Equal(defaults.API.Listen))

		topK := cmd.Flags().Lookup("top-k")
		Expect(topK).NotTo(BeNil())
		Expect(topK.DefValue).To(Equal("3"))

		for _, name := range []string{"storage-driver", "sqlite", "postgres", "vector-store-provider", "embedding-provider", "synthesis-provider", "workers", "watch", "github-token", "log-format"} {
			Expect(cmd.Flags().Lookup(name)).NotTo(BeNil(), name)
		}
	})

	It("rejects positional arguments", func() {
		cmd := NewServeCmd()
		Expect(cmd.Args(cmd, []string{"extra"})).To(HaveOccurred())
	})

	It("resolves flags over environment over defaults", func() {
		tmpDir := GinkgoT().TempDir()
		GinkgoT().Setenv("REPOSCOPE_RETRIEVAL_TOP_K", "6")
		GinkgoT().Setenv("REPOSCOPE_API_LISTEN", ":1111")

		cmder := &serveCommander{}
		cmd := newServeCmd(cmder)
		cmd.Flags().String("config-dir", tmpDir, "")
		Expect(cmd.Flags().Set("listen", ":2222")).To(Succeed())
		Expect(cmd.PreRunE(cmd, nil)).To(Succeed())

		cfg, err := config.FromViper(cmder.viper)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.API.Listen).To(Equal(":2222"))
		Expect(cfg.Retrieval.TopK).To(Equal(uint(6)))
		Expect(cfg.Retrieval.ChunkSize).To(Equal(uint(1000)))
		Expect(cmder.configDir).To(Equal(tmpDir))
	})
})

var _ = Describe("buildStack", func() {
	var (
		ctx    context.Context
		cfg    *config.Config
		tmpDir string
	)

	BeforeEach(func() {
		ctx = context.Background()
		cfg = offlineConfig()
		tmpDir = GinkgoT().TempDir()
	})

	It("builds an offline stack", func() {
		st, err := buildStack(ctx, cfg, tmpDir, reslog.Nop())
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(st.close)

		Expect(st.server).NotTo(BeNil())
		Expect(st.index).NotTo(BeNil())
		Expect(st.queue).NotTo(BeNil())
		Expect(st.watcher).To(BeNil())
	})

	It("creates a watcher when watching is enabled", func() {
		cfg.Ingest.Watch = true

		st, err := buildStack(ctx, cfg, tmpDir, reslog.Nop())
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(st.close)

		Expect(st.watcher).NotTo(BeNil())
	})

	It("rejects unknown providers", func() {
		cfg.VectorStore.Provider = "pinecone"
		_, err := buildStack(ctx, cfg, tmpDir, reslog.Nop())
		Expect(err).To(MatchError(ContainSubstring("unsupported vector store provider")))

		cfg = offlineConfig()
		cfg.Storage.Driver = "mongo"
		_, err = buildStack(ctx, cfg, tmpDir, reslog.Nop())
		Expect(err).To(MatchError(ContainSubstring("unsupported storage driver")))

		cfg = offlineConfig()
		cfg.Events.Provider = "nats"
		_, err = buildStack(ctx, cfg, tmpDir, reslog.Nop())
		Expect(err).To(MatchError(ContainSubstring("unsupported events provider")))
	})

	It("requires a DSN for postgres", func() {
		cfg.Storage.Driver = "postgres"
		_, err := buildStack(ctx, cfg, tmpDir, reslog.Nop())
		Expect(err).To(MatchError(ContainSubstring("postgres_dsn")))
	})

	It("stores SQLite data in the config directory by default", func() {
		cfg.Storage.Driver = "sqlite"

		origDir, err := os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(tmpDir)).To(Succeed())
		DeferCleanup(func() { Expect(os.Chdir(origDir)).To(Succeed()) })

		configDir := filepath.Join(tmpDir, "conf")
		st, err := buildStack(ctx, cfg, configDir, reslog.Nop())
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(st.close)

		_, err = os.Stat(filepath.Join(configDir, "reposcope.db"))
		Expect(err).NotTo(HaveOccurred())
	})

	It("resumes repositories interrupted by a previous run", func() {
		repoDir := GinkgoT().TempDir()
		Expect(os.WriteFile(filepath.Join(repoDir, "main.go"), []byte("package main\n\nfunc main() {}\n"), 0o644)).To(Succeed())

		st, err := buildStack(ctx, cfg, tmpDir, reslog.Nop())
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(st.close)

		repo := &storage.Repository{
			ID:       "local-1",
			Name:     filepath.Base(repoDir),
			FullName: filepath.Base(repoDir),
			Source:   storage.SourceLocal,
			Path:     repoDir,
			Status:   storage.StatusProcessing,
		}
		Expect(st.storage.CreateRepository(ctx, repo)).To(Succeed())

		ready := &storage.Repository{ID: "ready-1", Name: "done", FullName: "acme/done", Source: storage.SourceGitHub, Status: storage.StatusReady}
		Expect(st.storage.CreateRepository(ctx, ready)).To(Succeed())

		Expect(st.resume(ctx)).To(Succeed())

		Eventually(func() storage.RepositoryStatus {
			r, err := st.storage.GetRepository(ctx, "local-1")
			Expect(err).NotTo(HaveOccurred())
			return r.Status
		}).WithTimeout(5 * time.Second).Should(Equal(storage.StatusReady))

		r, err := st.storage.GetRepository(ctx, "ready-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(r.Status).To(Equal(storage.StatusReady))
		Expect(st.queue.InFlight("ready-1")).To(BeFalse())
	})
})
