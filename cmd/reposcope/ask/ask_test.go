package askcmder

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/reposcope/pkg/sse"
	"github.com/papercomputeco/reposcope/pkg/stream"
)

var _ = Describe("ask command", func() {
	var (
		mux    *http.ServeMux
		server *httptest.Server
		out    *bytes.Buffer
	)

	run := func(args ...string) error {
		cmd := NewAskCmd()
		cmd.SetOut(out)
		cmd.SetErr(out)
		cmd.SetArgs(append(args, "--api-target", server.URL))
		return cmd.Execute()
	}

	streamEvents := func(events ...stream.Event) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Query().Get("q") == "" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			w.Header().Set("Content-Type", "text/event-stream")
			sw := sse.NewWriter(w)
			for _, e := range events {
				_ = sw.WriteJSON(string(e.Type), e.Payload())
			}
		}
	}

	BeforeEach(func() {
		mux = http.NewServeMux()
		server = httptest.NewServer(mux)
		DeferCleanup(server.Close)
		out = &bytes.Buffer{}
	})

	It("requires a repository id and a question", func() {
		Expect(run("r1")).To(HaveOccurred())
	})

	It("streams the answer followed by sources and confidence", func() {
		mux.HandleFunc("GET /api/repositories/r1/query/stream", streamEvents(
			stream.Token("Auth "),
			stream.Token("lives in auth.py"),
			stream.Done([]string{"src/auth.py"}, 0.75),
		))

		Expect(run("r1", "where", "is", "auth?")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Auth lives in auth.py"))
		Expect(out.String()).To(ContainSubstring("src/auth.py"))
		Expect(out.String()).To(ContainSubstring("0.75"))
	})

	It("turns an error event into a command error", func() {
		mux.HandleFunc("GET /api/repositories/r1/query/stream", streamEvents(
			stream.Error("synthesis failed"),
		))

		Expect(run("r1", "why?")).To(MatchError(ContainSubstring("synthesis failed")))
	})

	It("reports a repository that is not ready", func() {
		mux.HandleFunc("GET /api/repositories/r1/query/stream", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"error":"repository is still being processed"}`))
		})

		Expect(run("r1", "why?")).To(MatchError(ContainSubstring("still being processed")))
	})

	It("waits for the whole answer with --no-stream", func() {
		mux.HandleFunc("POST /api/repositories/r1/query", func(w http.ResponseWriter, r *http.Request) {
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"query": map[string]any{
					"id":         "q1",
					"question":   body["question"],
					"answer":     "It uses JWTs.",
					"sources":    []string{},
					"confidence": 0.0,
				},
			})
		})

		Expect(run("r1", "how", "--no-stream")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("It uses JWTs."))
		Expect(out.String()).To(ContainSubstring("No sources"))
	})

	It("renders markdown only on a terminal", func() {
		cmder := &askCommander{render: true, out: out, isTerminal: func() bool { return false }}
		cmder.printAnswer("# Title")
		Expect(out.String()).To(Equal("# Title\n"))
	})
})
