package postgres_test

import (
	"context"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/reposcope/pkg/storage"
	"github.com/papercomputeco/reposcope/pkg/storage/postgres"
	"github.com/papercomputeco/reposcope/pkg/storage/storagetest"
)

// connStr returns the PostgreSQL connection string from environment or skips the test.
func connStr() string {
	dsn := os.Getenv("REPOSCOPE_TEST_POSTGRES_DSN")
	if dsn == "" {
		Skip("REPOSCOPE_TEST_POSTGRES_DSN not set, skipping PostgreSQL tests")
	}
	return dsn
}

var _ = storagetest.DescribeDriver("postgres", func() storage.Driver {
	ctx := context.Background()
	d, err := postgres.NewDriver(ctx, connStr())
	Expect(err).NotTo(HaveOccurred())

	// Clean all tables before each test for isolation.
	for _, table := range []string{"repositories", "repository_files", "commits", "queries", "meetings", "meeting_segments"} {
		_, err := d.DB.ExecContext(ctx, "DELETE FROM "+table)
		Expect(err).NotTo(HaveOccurred())
	}
	return d
})

var _ = Describe("NewDriver", func() {
	It("fails for an unreachable server", func() {
		_, err := postgres.NewDriver(context.Background(), "postgres://nobody@127.0.0.1:1/none?sslmode=disable&connect_timeout=1")
		Expect(err).To(MatchError(ContainSubstring("failed to ping database")))
	})
})
