package chroma_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	reposcopelogger "github.com/papercomputeco/reposcope/pkg/logger"
	"github.com/papercomputeco/reposcope/pkg/vector"
	"github.com/papercomputeco/reposcope/pkg/vector/chroma"
)

// fakeChroma records requests against a single collection.
type fakeChroma struct {
	mu       sync.Mutex
	bodies   map[string][]map[string]any
	getIDs   []string
	queryOut map[string]any
}

func newFakeChroma() *fakeChroma {
	return &fakeChroma{bodies: map[string][]map[string]any{}}
}

func (f *fakeChroma) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if r.Method == http.MethodGet {
			json.NewEncoder(w).Encode(map[string]string{"id": "col-1", "name": "reposcope"})
			return
		}

		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)

		op := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		f.mu.Lock()
		f.bodies[op] = append(f.bodies[op], body)
		f.mu.Unlock()

		switch op {
		case "query":
			json.NewEncoder(w).Encode(f.queryOut)
		case "get":
			json.NewEncoder(w).Encode(map[string]any{"ids": f.getIDs})
		default:
			w.Write([]byte("{}"))
		}
	})
}

func (f *fakeChroma) last(op string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := f.bodies[op]
	if len(list) == 0 {
		return nil
	}
	return list[len(list)-1]
}

var _ = Describe("Driver", func() {
	var logger *slog.Logger

	BeforeEach(func() {
		logger = reposcopelogger.Nop()
	})

	Describe("NewDriver", func() {
		It("should return an error when URL is empty", func() {
			_, err := chroma.NewDriver(chroma.Config{URL: ""}, logger)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("chroma URL is required"))
		})

		It("should succeed after retrying when Chroma becomes available", func() {
			var attempts atomic.Int32

			// Each attempt issues a GET for the collection and then a POST to
			// create it. Fail the first 4 requests (2 attempts) to simulate
			// Chroma still starting up.
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				attempt := attempts.Add(1)
				if attempt <= 4 {
					http.Error(w, "service unavailable", http.StatusServiceUnavailable)
					return
				}

				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(map[string]string{
					"id":   "test-collection-id",
					"name": "reposcope",
				})
			}))
			defer server.Close()

			driver, err := chroma.NewDriver(chroma.Config{
				URL:           server.URL,
				MaxRetries:    5,
				RetryDelay:    10 * time.Millisecond,
				MaxRetryDelay: 50 * time.Millisecond,
			}, logger)
			Expect(err).NotTo(HaveOccurred())
			Expect(driver).NotTo(BeNil())
			Expect(attempts.Load()).To(BeNumerically(">=", int32(5)))
		})

		It("should return an error after exhausting all retries", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			}))
			defer server.Close()

			_, err := chroma.NewDriver(chroma.Config{
				URL:           server.URL,
				MaxRetries:    3,
				RetryDelay:    10 * time.Millisecond,
				MaxRetryDelay: 50 * time.Millisecond,
			}, logger)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("after 3 attempts"))
			Expect(err).To(MatchError(vector.ErrConnection))
		})
	})

	Describe("Interface compliance", func() {
		It("should implement vector.Driver interface", func() {
			var _ vector.Driver = (*chroma.Driver)(nil)
		})
	})

	Describe("operations", func() {
		var (
			fake   *fakeChroma
			server *httptest.Server
			driver *chroma.Driver
		)

		BeforeEach(func() {
			fake = newFakeChroma()
			server = httptest.NewServer(fake.handler())

			var err error
			driver, err = chroma.NewDriver(chroma.Config{URL: server.URL}, logger)
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			server.Close()
		})

		It("stores content, metadata and boundary prefix flags", func() {
			Expect(driver.Insert(context.Background(), []vector.Document{{
				ID:        "repo1_auth.py_chunk_0",
				Content:   "def login(user, password):",
				Metadata:  vector.Metadata{Path: "auth.py", Language: "python", StartLine: 1, EndLine: 3},
				Embedding: []float32{1, 0},
			}})).To(Succeed())

			body := fake.last("upsert")
			Expect(body["ids"]).To(Equal([]any{"repo1_auth.py_chunk_0"}))
			Expect(body["documents"]).To(Equal([]any{"def login(user, password):"}))

			meta := body["metadatas"].([]any)[0].(map[string]any)
			Expect(meta).To(HaveKeyWithValue("path", "auth.py"))
			Expect(meta).To(HaveKeyWithValue("p:repo1_", true))
			Expect(meta).To(HaveKeyWithValue("p:repo1_auth.py_", true))
		})

		It("splits large inserts into batches", func() {
			docs := make([]vector.Document, 2500)
			for i := range docs {
				docs[i] = vector.Document{ID: fmt.Sprintf("r_f_chunk_%d", i), Embedding: []float32{1, 0}}
			}
			Expect(driver.Insert(context.Background(), docs)).To(Succeed())

			fake.mu.Lock()
			batches := fake.bodies["upsert"]
			fake.mu.Unlock()
			Expect(batches).To(HaveLen(3))
			Expect(batches[0]["ids"]).To(HaveLen(1000))
			Expect(batches[2]["ids"]).To(HaveLen(500))
		})

		It("sends nothing for an empty insert", func() {
			Expect(driver.Insert(context.Background(), nil)).To(Succeed())
			Expect(fake.last("upsert")).To(BeNil())
		})

		It("filters queries by prefix and converts cosine distance", func() {
			fake.queryOut = map[string]any{
				"ids":       [][]string{{"repo1_auth.py_chunk_0"}},
				"distances": [][]float32{{0.25}},
				"documents": [][]string{{"def login(user, password):"}},
				"metadatas": [][]map[string]any{{{"path": "auth.py", "start_line": 1, "end_line": 3}}},
			}

			results, err := driver.Query(context.Background(), []float32{1, 0}, 3, "repo1_")
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))
			Expect(results[0].Score).To(BeNumerically("~", 0.75, 1e-6))
			Expect(results[0].Content).To(Equal("def login(user, password):"))
			Expect(results[0].Metadata.Path).To(Equal("auth.py"))
			Expect(results[0].Metadata.EndLine).To(Equal(3))

			where := fake.last("query")["where"].(map[string]any)
			Expect(where).To(HaveKeyWithValue("p:repo1_", map[string]any{"$eq": true}))
		})

		It("rejects prefixes that do not end at a boundary", func() {
			_, err := driver.Query(context.Background(), []float32{1, 0}, 3, "repo1")
			Expect(err).To(MatchError(vector.ErrUnsupportedPrefix))
		})

		It("deletes the ids listed under a prefix", func() {
			fake.getIDs = []string{"repo1_a_chunk_0", "repo1_b_chunk_0"}

			n, err := driver.DeleteByPrefix(context.Background(), "repo1_")
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(2))
			Expect(fake.last("delete")["ids"]).To(Equal([]any{"repo1_a_chunk_0", "repo1_b_chunk_0"}))
		})

		It("skips the delete call when nothing matches", func() {
			n, err := driver.DeleteByPrefix(context.Background(), "repo9_")
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(BeZero())
			Expect(fake.last("delete")).To(BeNil())
		})
	})
})
