package api

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/reposcope/pkg/meeting"
	"github.com/papercomputeco/reposcope/pkg/storage"
)

type meetingBody struct {
	Meeting  storage.Meeting          `json:"meeting"`
	Segments []storage.MeetingSegment `json:"segments"`
}

var _ = Describe("Meeting handlers", func() {
	var st *testStack

	BeforeEach(func() {
		st = newTestStack(nil)
	})

	create := func() storage.Meeting {
		status, body := st.do(http.MethodPost, "/api/meetings", meeting.Input{
			Title:      "Standup",
			Transcript: "Alice: shipped login.\n\nBob: reviewing the API.",
		})
		Expect(status).To(Equal(fiber.StatusAccepted))
		return decode[meetingBody](body).Meeting
	}

	It("ingests a transcript", func() {
		m := create()
		Expect(m.ID).NotTo(BeEmpty())
		Expect(m.Title).To(Equal("Standup"))
		Expect(m.Status).To(Equal(storage.StatusReady))
		Expect(st.vectors.Len()).To(BeNumerically(">", 0))
	})

	It("requires a transcript", func() {
		status, body := st.do(http.MethodPost, "/api/meetings", meeting.Input{Title: "Empty"})
		Expect(status).To(Equal(fiber.StatusBadRequest))
		Expect(decode[ErrorResponse](body).Error).To(Equal("transcript_required"))
	})

	It("lists and gets meetings with segments", func() {
		m := create()

		status, body := st.do(http.MethodGet, "/api/meetings", nil)
		Expect(status).To(Equal(fiber.StatusOK))
		Expect(decode[map[string][]storage.Meeting](body)["meetings"]).To(HaveLen(1))

		status, body = st.do(http.MethodGet, "/api/meetings/"+m.ID, nil)
		Expect(status).To(Equal(fiber.StatusOK))
		detail := decode[meetingBody](body)
		Expect(detail.Segments).To(HaveLen(2))
		Expect(detail.Segments[0].Content).To(Equal("Alice: shipped login."))
	})

	It("returns 404 for a missing meeting", func() {
		status, _ := st.do(http.MethodGet, "/api/meetings/missing", nil)
		Expect(status).To(Equal(fiber.StatusNotFound))

		status, _ = st.do(http.MethodPost, "/api/meetings/missing/summarize", nil)
		Expect(status).To(Equal(fiber.StatusNotFound))
	})

	It("summarizes a meeting", func() {
		m := create()

		status, body := st.do(http.MethodPost, "/api/meetings/"+m.ID+"/summarize", nil)
		Expect(status).To(Equal(fiber.StatusOK))
		summarized := decode[meetingBody](body).Meeting
		Expect(summarized.Summary).To(Equal("mock answer"))
		Expect(summarized.ProcessedAt).NotTo(BeNil())
	})

	It("marks the meeting error when summarization fails", func() {
		m := create()
		st.model.SynthesizeErr = errors.New("down")

		status, body := st.do(http.MethodPost, "/api/meetings/"+m.ID+"/summarize", nil)
		Expect(status).To(Equal(fiber.StatusOK))
		Expect(decode[meetingBody](body).Meeting.Status).To(Equal(storage.StatusError))
	})
})
