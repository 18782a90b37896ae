package sse_test

import (
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/reposcope/pkg/sse"
)

func readAll(input string) []sse.Event {
	r := sse.NewReader(strings.NewReader(input))
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

var _ = Describe("Reader", func() {
	It("parses an answer stream of token events followed by done", func() {
		events := readAll("event: token\ndata: {\"chunk\":\"hello\"}\n\n" +
			"event: token\ndata: {\"chunk\":\" \"}\n\n" +
			"event: done\ndata: {\"sources\":[\"auth.py\"],\"confidence\":0.5}\n\n")

		Expect(events).To(HaveLen(3))
		Expect(events[0].Type).To(Equal("token"))
		Expect(events[2].Type).To(Equal("done"))
		Expect(events[2].Data).To(ContainSubstring("auth.py"))
	})

	It("reads the id and retry fields", func() {
		events := readAll("id: 42\nretry: 1500\ndata: hello\n\n")
		Expect(events).To(ConsistOf(sse.Event{Data: "hello", ID: "42", Retry: 1500 * time.Millisecond}))
	})

	It("ignores malformed retry values and unknown fields", func() {
		events := readAll("retry: soon\nfoo: bar\ndata: hello\n\n")
		Expect(events).To(ConsistOf(sse.Event{Data: "hello"}))
	})

	It("joins data lines with newlines", func() {
		events := readAll("data: line one\ndata:\ndata: line three\n\n")
		Expect(events[0].Data).To(Equal("line one\n\nline three"))
	})

	It("strips exactly one space after the colon", func() {
		events := readAll("data:no-space\n\ndata:  \n\ndata: \n\ndata\n\n")
		Expect(events).To(HaveLen(4))
		Expect(events[0].Data).To(Equal("no-space"))
		Expect(events[1].Data).To(Equal(" "))
		Expect(events[2].Data).To(BeEmpty())
		Expect(events[3].Data).To(BeEmpty())
	})

	It("accepts CRLF and bare CR line endings", func() {
		events := readAll("event: token\r\ndata: a\r\n\r\nevent: done\rdata: b\r\r")
		Expect(events).To(HaveLen(2))
		Expect(events[0]).To(Equal(sse.Event{Type: "token", Data: "a"}))
		Expect(events[1]).To(Equal(sse.Event{Type: "done", Data: "b"}))
	})

	It("skips comments and keep-alives", func() {
		events := readAll(": keep-alive\n\n: another\ndata: hello\n\n")
		Expect(events).To(ConsistOf(sse.Event{Data: "hello"}))
	})

	It("drops events that carry no data", func() {
		events := readAll("event: ping\n\nevent: token\ndata: x\n\n")
		Expect(events).To(ConsistOf(sse.Event{Type: "token", Data: "x"}))
	})

	It("returns nothing for empty or blank input", func() {
		Expect(readAll("")).To(BeEmpty())
		Expect(readAll("\n\n\n")).To(BeEmpty())
	})

	It("yields an unterminated event at the end of the stream", func() {
		Expect(readAll("data: unterminated")).To(ConsistOf(sse.Event{Data: "unterminated"}))
	})

	It("fails on lines longer than MaxLineSize", func() {
		r := sse.NewReader(strings.NewReader("data: " + strings.Repeat("x", sse.MaxLineSize+1) + "\n\n"))
		_, err := r.Next()
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Event.DecodeJSON", func() {
	It("decodes the data payload", func() {
		ev := sse.Event{Type: "token", Data: `{"chunk":"hi"}`}
		var p struct {
			Chunk string `json:"chunk"`
		}
		Expect(ev.DecodeJSON(&p)).To(Succeed())
		Expect(p.Chunk).To(Equal("hi"))
	})

	It("names the event type in errors", func() {
		ev := sse.Event{Type: "done", Data: "not json"}
		Expect(ev.DecodeJSON(&struct{}{})).To(MatchError(ContainSubstring("decoding done event")))
	})
})
