package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/reposcope/pkg/sse"
	"github.com/papercomputeco/reposcope/pkg/storage"
	"github.com/papercomputeco/reposcope/pkg/stream"
	"github.com/papercomputeco/reposcope/pkg/synth"
)

// readEvents parses a complete SSE body.
func readEvents(body []byte) []sse.Event {
	r := sse.NewReader(bytes.NewReader(body))
	var events []sse.Event
	for {
		ev, err := r.Next()
		Expect(err).NotTo(HaveOccurred())
		if ev == nil {
			return events
		}
		events = append(events, *ev)
	}
}

var _ = Describe("Query handlers", func() {
	var (
		st   *testStack
		repo *storage.Repository
	)

	BeforeEach(func() {
		st = newTestStack(nil)
		repo = st.readyRepository(map[string]string{
			"auth.py": "def login(user, password):\n    return check(user, password)",
		})
	})

	Describe("POST /api/repositories/:id/query", func() {
		It("answers and persists the query", func() {
			status, body := st.do(http.MethodPost, "/api/repositories/"+repo.ID+"/query", QueryRequest{Question: "how does login work?"})
			Expect(status).To(Equal(fiber.StatusOK))

			resp := decode[QueryResponse](body)
			Expect(resp.Response.Sources).To(ContainElement("auth.py"))
			Expect(resp.Query.ID).NotTo(BeEmpty())
			Expect(resp.Query.Question).To(Equal("how does login work?"))

			status, body = st.do(http.MethodGet, "/api/repositories/"+repo.ID+"/queries", nil)
			Expect(status).To(Equal(fiber.StatusOK))
			Expect(decode[map[string][]storage.Query](body)["queries"]).To(HaveLen(1))

			status, body = st.do(http.MethodGet, "/api/queries", nil)
			Expect(status).To(Equal(fiber.StatusOK))
			Expect(decode[map[string][]storage.Query](body)["queries"]).To(HaveLen(1))
		})

		It("checks the repository before the question", func() {
			status, _ := st.do(http.MethodPost, "/api/repositories/missing/query", QueryRequest{})
			Expect(status).To(Equal(fiber.StatusNotFound))
		})

		It("returns 400 for a missing question", func() {
			status, body := st.do(http.MethodPost, "/api/repositories/"+repo.ID+"/query", QueryRequest{Question: " "})
			Expect(status).To(Equal(fiber.StatusBadRequest))
			Expect(decode[ErrorResponse](body).Error).To(ContainSubstring("question required"))
		})

		It("returns 409 while the repository is processing", func() {
			repo.Status = storage.StatusProcessing
			Expect(st.store.UpdateRepository(context.Background(), repo)).To(Succeed())

			status, body := st.do(http.MethodPost, "/api/repositories/"+repo.ID+"/query", QueryRequest{Question: "why?"})
			Expect(status).To(Equal(fiber.StatusConflict))
			Expect(decode[ErrorResponse](body).Error).To(Equal("repository is still being processed"))
		})

		It("returns 502 when synthesis fails", func() {
			st.model.SynthesizeErr = errors.New("model unavailable")
			status, _ := st.do(http.MethodPost, "/api/repositories/"+repo.ID+"/query", QueryRequest{Question: "why?"})
			Expect(status).To(Equal(fiber.StatusBadGateway))
		})
	})

	Describe("GET /api/repositories/:id/query/stream", func() {
		streamURL := func(id, q string) string {
			return "/api/repositories/" + id + "/query/stream?q=" + url.QueryEscape(q)
		}

		It("streams tokens and a done event naming auth.py", func() {
			status, body := st.do(http.MethodGet, streamURL(repo.ID, "how does login work?"), nil)
			Expect(status).To(Equal(fiber.StatusOK))

			events := readEvents(body)
			Expect(len(events)).To(BeNumerically(">=", 2))

			var text strings.Builder
			for _, ev := range events[:len(events)-1] {
				Expect(ev.Type).To(Equal(string(stream.EventToken)))
				var tok stream.TokenPayload
				Expect(json.Unmarshal([]byte(ev.Data), &tok)).To(Succeed())
				text.WriteString(tok.Chunk)
			}
			Expect(text.String()).To(Equal("mock answer"))

			last := events[len(events)-1]
			Expect(last.Type).To(Equal(string(stream.EventDone)))
			var done stream.DonePayload
			Expect(json.Unmarshal([]byte(last.Data), &done)).To(Succeed())
			Expect(done.Sources).To(ContainElement("auth.py"))

			Eventually(func() int {
				queries, err := st.store.ListQueries(context.Background(), repo.ID)
				Expect(err).NotTo(HaveOccurred())
				return len(queries)
			}).Should(Equal(1))
		})

		It("replays a multi word answer in order", func() {
			st.model.Answer = &synth.Answer{Answer: "hello world", Confidence: 0.7}

			_, body := st.do(http.MethodGet, streamURL(repo.ID, "greet"), nil)
			events := readEvents(body)

			Expect(events).To(HaveLen(4))
			Expect(events[0].Data).To(Equal(`{"chunk":"hello"}`))
			Expect(events[1].Data).To(Equal(`{"chunk":" "}`))
			Expect(events[2].Data).To(Equal(`{"chunk":"world"}`))
			Expect(events[3].Type).To(Equal("done"))
			Expect(events[3].Data).To(Equal(`{"sources":[],"confidence":0.7}`))
		})

		It("emits a single error event when synthesis fails", func() {
			st.model.SynthesizeErr = errors.New("model unavailable")

			status, body := st.do(http.MethodGet, streamURL(repo.ID, "why?"), nil)
			Expect(status).To(Equal(fiber.StatusOK))

			events := readEvents(body)
			Expect(events).To(HaveLen(1))
			Expect(events[0].Type).To(Equal(string(stream.EventError)))
			Expect(events[0].Data).To(ContainSubstring("model unavailable"))
		})

		It("answers with no sources when the question cannot be embedded", func() {
			st.embedder.FailOn = "why?"

			_, body := st.do(http.MethodGet, streamURL(repo.ID, "why?"), nil)
			events := readEvents(body)
			Expect(events[len(events)-1].Type).To(Equal(string(stream.EventDone)))
			Expect(events[len(events)-1].Data).To(ContainSubstring(`"sources":[]`))
		})

		It("checks preconditions before opening the stream", func() {
			status, _ := st.do(http.MethodGet, streamURL("missing", "why?"), nil)
			Expect(status).To(Equal(fiber.StatusNotFound))

			status, body := st.do(http.MethodGet, "/api/repositories/"+repo.ID+"/query/stream", nil)
			Expect(status).To(Equal(fiber.StatusBadRequest))
			Expect(decode[ErrorResponse](body).Error).To(ContainSubstring("question required"))

			repo.Status = storage.StatusPending
			Expect(st.store.UpdateRepository(context.Background(), repo)).To(Succeed())
			status, _ = st.do(http.MethodGet, streamURL(repo.ID, "why?"), nil)
			Expect(status).To(Equal(fiber.StatusConflict))
		})
	})

	Describe("GET /api/repositories/:id/queries", func() {
		It("returns 404 for a missing repository", func() {
			status, _ := st.do(http.MethodGet, "/api/repositories/missing/queries", nil)
			Expect(status).To(Equal(fiber.StatusNotFound))
		})
	})
})
