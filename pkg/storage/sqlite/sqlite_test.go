package sqlite_test

import (
	"context"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/reposcope/pkg/storage"
	"github.com/papercomputeco/reposcope/pkg/storage/sqlite"
	"github.com/papercomputeco/reposcope/pkg/storage/storagetest"
)

var _ = storagetest.DescribeDriver("sqlite", func() storage.Driver {
	d, err := sqlite.NewDriver(context.Background(), ":memory:")
	Expect(err).NotTo(HaveOccurred())
	return d
})

var _ = Describe("NewDriver", func() {
	It("persists to a file database across reopen", func() {
		ctx := context.Background()
		dbPath := filepath.Join(GinkgoT().TempDir(), "test.db")

		d, err := sqlite.NewDriver(ctx, dbPath)
		Expect(err).NotTo(HaveOccurred())
		repo := &storage.Repository{Name: "x", FullName: "acme/x", Source: storage.SourceLocal, Path: "/src/x"}
		Expect(d.CreateRepository(ctx, repo)).To(Succeed())
		Expect(d.Close()).To(Succeed())

		d, err = sqlite.NewDriver(ctx, dbPath)
		Expect(err).NotTo(HaveOccurred())
		defer d.Close()

		got, err := d.GetRepository(ctx, repo.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Path).To(Equal("/src/x"))
	})

	It("fails for an unwritable path", func() {
		_, err := sqlite.NewDriver(context.Background(), "/nonexistent/dir/test.db")
		Expect(err).To(HaveOccurred())
	})
})
