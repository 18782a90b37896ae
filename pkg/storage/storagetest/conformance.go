// Package storagetest holds the behaviour every storage.Driver must share.
package storagetest

import (
	"context"
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/reposcope/pkg/storage"
)

// DescribeDriver registers the driver conformance specs. newDriver is called
// before every spec and the driver is closed after it.
func DescribeDriver(name string, newDriver func() storage.Driver) bool {
	return Describe(name+" conformance", func() {
		var (
			ctx    context.Context
			driver storage.Driver
		)

		BeforeEach(func() {
			ctx = context.Background()
			driver = newDriver()
		})

		AfterEach(func() {
			if driver != nil {
				Expect(driver.Close()).To(Succeed())
			}
		})

		newRepo := func(name string) *storage.Repository {
			return &storage.Repository{
				Name:     name,
				FullName: "acme/" + name,
				Owner:    "acme",
				Source:   storage.SourceGitHub,
				URL:      "https://github.com/acme/" + name,
			}
		}

		Describe("repositories", func() {
			It("creates with defaults and reads back", func() {
				repo := newRepo("web")
				Expect(driver.CreateRepository(ctx, repo)).To(Succeed())
				Expect(repo.ID).NotTo(BeEmpty())
				Expect(repo.Status).To(Equal(storage.StatusPending))

				got, err := driver.GetRepository(ctx, repo.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(got.FullName).To(Equal("acme/web"))
				Expect(got.Source).To(Equal(storage.SourceGitHub))
				Expect(got.LastAnalyzed).To(BeNil())
			})

			It("returns ErrNotFound for a missing id", func() {
				_, err := driver.GetRepository(ctx, "missing")
				Expect(storage.IsNotFound(err)).To(BeTrue())
				Expect(driver.UpdateRepository(ctx, &storage.Repository{ID: "missing"})).To(MatchError(storage.ErrNotFound{Kind: "repository", ID: "missing"}))
				Expect(storage.IsNotFound(driver.DeleteRepository(ctx, "missing"))).To(BeTrue())
			})

			It("updates status, analysis and timestamps", func() {
				repo := newRepo("api")
				Expect(driver.CreateRepository(ctx, repo)).To(Succeed())

				now := time.Now().UTC().Truncate(time.Second)
				repo.Status = storage.StatusReady
				repo.FileCount = 12
				repo.LastAnalyzed = &now
				repo.Summary = "an API"
				repo.Analysis = json.RawMessage(`{"summary":"an API"}`)
				Expect(driver.UpdateRepository(ctx, repo)).To(Succeed())

				got, err := driver.GetRepository(ctx, repo.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(got.Status).To(Equal(storage.StatusReady))
				Expect(got.FileCount).To(Equal(12))
				Expect(got.LastAnalyzed).NotTo(BeNil())
				Expect(got.LastAnalyzed.Equal(now)).To(BeTrue())
				Expect(string(got.Analysis)).To(MatchJSON(`{"summary":"an API"}`))
			})

			It("lists newest first", func() {
				first := newRepo("one")
				first.CreatedAt = time.Now().Add(-time.Hour).UTC()
				Expect(driver.CreateRepository(ctx, first)).To(Succeed())
				second := newRepo("two")
				Expect(driver.CreateRepository(ctx, second)).To(Succeed())

				repos, err := driver.ListRepositories(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(repos).To(HaveLen(2))
				Expect(repos[0].Name).To(Equal("two"))
				Expect(repos[1].Name).To(Equal("one"))
			})

			It("deletes dependent records", func() {
				repo := newRepo("gone")
				Expect(driver.CreateRepository(ctx, repo)).To(Succeed())
				Expect(driver.CreateFile(ctx, &storage.File{RepositoryID: repo.ID, Path: "a.go"})).To(Succeed())
				Expect(driver.UpsertCommit(ctx, &storage.Commit{RepositoryID: repo.ID, SHA: "abc", Message: "m", Date: time.Now()})).To(Succeed())
				Expect(driver.CreateQuery(ctx, &storage.Query{RepositoryID: repo.ID, Question: "q"})).To(Succeed())

				Expect(driver.DeleteRepository(ctx, repo.ID)).To(Succeed())

				files, err := driver.ListFiles(ctx, repo.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(files).To(BeEmpty())
				commits, err := driver.ListCommits(ctx, repo.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(commits).To(BeEmpty())
				queries, err := driver.ListQueries(ctx, repo.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(queries).To(BeEmpty())
			})
		})

		Describe("files", func() {
			It("updates the chunk count of a stored file", func() {
				f := &storage.File{RepositoryID: "r1", Path: "big.py", Size: 1 << 33}
				Expect(driver.CreateFile(ctx, f)).To(Succeed())
				Expect(f.ID).NotTo(BeEmpty())

				Expect(driver.UpdateFileChunks(ctx, f.ID, 4)).To(Succeed())

				files, err := driver.ListFiles(ctx, "r1")
				Expect(err).NotTo(HaveOccurred())
				Expect(files).To(HaveLen(1))
				Expect(files[0].Chunks).To(Equal(4))
				Expect(files[0].Size).To(Equal(int64(1 << 33)))

				err = driver.UpdateFileChunks(ctx, "missing", 1)
				Expect(storage.IsNotFound(err)).To(BeTrue())
			})

			It("lists by path and deletes per repository", func() {
				for _, p := range []string{"b.go", "a.go"} {
					Expect(driver.CreateFile(ctx, &storage.File{RepositoryID: "r1", Path: p, Language: "go", Size: 10, Chunks: 1})).To(Succeed())
				}
				Expect(driver.CreateFile(ctx, &storage.File{RepositoryID: "r2", Path: "c.go"})).To(Succeed())

				files, err := driver.ListFiles(ctx, "r1")
				Expect(err).NotTo(HaveOccurred())
				Expect(files).To(HaveLen(2))
				Expect(files[0].Path).To(Equal("a.go"))
				Expect(files[0].Language).To(Equal("go"))

				n, err := driver.DeleteFiles(ctx, "r1")
				Expect(err).NotTo(HaveOccurred())
				Expect(n).To(Equal(2))

				files, err = driver.ListFiles(ctx, "r2")
				Expect(err).NotTo(HaveOccurred())
				Expect(files).To(HaveLen(1))
			})
		})

		Describe("commits", func() {
			It("upserts by sha and keeps the summary", func() {
				c := &storage.Commit{RepositoryID: "r", SHA: "abc", Message: "first", Date: time.Now().UTC()}
				Expect(driver.UpsertCommit(ctx, c)).To(Succeed())
				Expect(driver.UpdateCommitSummary(ctx, c.ID, "adds x", "Low")).To(Succeed())

				again := &storage.Commit{RepositoryID: "r", SHA: "abc", Message: "first (amended)", Date: c.Date}
				Expect(driver.UpsertCommit(ctx, again)).To(Succeed())
				Expect(again.ID).To(Equal(c.ID))

				got, err := driver.GetCommit(ctx, c.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(got.Message).To(Equal("first (amended)"))
				Expect(got.Summary).To(Equal("adds x"))
				Expect(got.Impact).To(Equal("Low"))
			})

			It("lists newest first", func() {
				base := time.Now().UTC().Truncate(time.Second)
				Expect(driver.UpsertCommit(ctx, &storage.Commit{RepositoryID: "r", SHA: "old", Message: "old", Date: base.Add(-time.Hour)})).To(Succeed())
				Expect(driver.UpsertCommit(ctx, &storage.Commit{RepositoryID: "r", SHA: "new", Message: "new", Date: base})).To(Succeed())

				commits, err := driver.ListCommits(ctx, "r")
				Expect(err).NotTo(HaveOccurred())
				Expect(commits).To(HaveLen(2))
				Expect(commits[0].SHA).To(Equal("new"))
			})

			It("reports missing commits", func() {
				_, err := driver.GetCommit(ctx, "nope")
				Expect(storage.IsNotFound(err)).To(BeTrue())
				Expect(storage.IsNotFound(driver.UpdateCommitSummary(ctx, "nope", "s", "i"))).To(BeTrue())
			})
		})

		Describe("queries", func() {
			It("round trips sources and filters by repository", func() {
				Expect(driver.CreateQuery(ctx, &storage.Query{RepositoryID: "r1", Question: "how?", Answer: "so", Sources: []string{"auth.py"}, Confidence: 0.7})).To(Succeed())
				Expect(driver.CreateQuery(ctx, &storage.Query{RepositoryID: "r2", Question: "why?"})).To(Succeed())

				qs, err := driver.ListQueries(ctx, "r1")
				Expect(err).NotTo(HaveOccurred())
				Expect(qs).To(HaveLen(1))
				Expect(qs[0].Sources).To(Equal([]string{"auth.py"}))
				Expect(qs[0].Confidence).To(BeNumerically("~", 0.7, 1e-9))

				all, err := driver.ListQueries(ctx, "")
				Expect(err).NotTo(HaveOccurred())
				Expect(all).To(HaveLen(2))
				Expect(all[0].RepositoryID).To(Equal("r2"))
				Expect(all[0].Sources).To(BeEmpty())
				Expect(all[1].RepositoryID).To(Equal("r1"))
			})
		})

		Describe("meetings", func() {
			It("stores meetings with ordered segments", func() {
				m := &storage.Meeting{Title: "standup", Source: "upload", Transcript: "a\n\nb", Status: storage.StatusProcessing}
				Expect(driver.CreateMeeting(ctx, m)).To(Succeed())

				Expect(driver.CreateMeetingSegments(ctx, []*storage.MeetingSegment{
					{MeetingID: m.ID, Order: 1, Content: "b"},
					{MeetingID: m.ID, Order: 0, Content: "a"},
				})).To(Succeed())

				segs, err := driver.ListMeetingSegments(ctx, m.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(segs).To(HaveLen(2))
				Expect(segs[0].Content).To(Equal("a"))

				now := time.Now().UTC()
				m.Status = storage.StatusReady
				m.Summary = "talked"
				m.ProcessedAt = &now
				Expect(driver.UpdateMeeting(ctx, m)).To(Succeed())

				got, err := driver.GetMeeting(ctx, m.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(got.Summary).To(Equal("talked"))
				Expect(got.Status).To(Equal(storage.StatusReady))
				Expect(got.ProcessedAt).NotTo(BeNil())

				list, err := driver.ListMeetings(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(list).To(HaveLen(1))
			})

			It("reports missing meetings", func() {
				_, err := driver.GetMeeting(ctx, "nope")
				Expect(storage.IsNotFound(err)).To(BeTrue())
				Expect(storage.IsNotFound(driver.UpdateMeeting(ctx, &storage.Meeting{ID: "nope"}))).To(BeTrue())
			})
		})
	})
}
