package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/reposcope/pkg/logger"
)

func decodeLines(buf *bytes.Buffer) []map[string]any {
	var records []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		Expect(json.Unmarshal([]byte(line), &rec)).To(Succeed(), line)
		records = append(records, rec)
	}
	return records
}

var _ = Describe("ParseFormat", func() {
	It("accepts the configured format names", func() {
		for name, want := range map[string]logger.Format{
			"":       logger.FormatPretty,
			"pretty": logger.FormatPretty,
			" JSON ": logger.FormatJSON,
			"text":   logger.FormatText,
		} {
			got, err := logger.ParseFormat(name)
			Expect(err).NotTo(HaveOccurred(), name)
			Expect(got).To(Equal(want), name)
		}
	})

	It("rejects anything else", func() {
		_, err := logger.ParseFormat("yaml")
		Expect(err).To(MatchError(ContainSubstring(`unknown log format "yaml"`)))
	})
})

var _ = Describe("New", func() {
	var buf *bytes.Buffer

	BeforeEach(func() {
		buf = &bytes.Buffer{}
	})

	It("writes text at info level by default", func() {
		l := logger.New(logger.WithWriter(buf))
		l.Debug("hidden")
		l.Info("indexed file", "path", "src/auth.py")

		Expect(buf.String()).NotTo(ContainSubstring("hidden"))
		Expect(buf.String()).To(ContainSubstring("msg=\"indexed file\""))
		Expect(buf.String()).To(ContainSubstring("path=src/auth.py"))
	})

	It("lowers the level with WithDebug and WithLevel", func() {
		logger.New(logger.WithWriter(buf), logger.WithDebug(true)).Debug("chunk skipped")
		Expect(buf.String()).To(ContainSubstring("chunk skipped"))

		buf.Reset()
		logger.New(logger.WithWriter(buf), logger.WithLevel(slog.LevelWarn)).Info("quiet")
		Expect(buf.String()).To(BeEmpty())
	})

	It("selects handlers by format", func() {
		logger.New(logger.WithWriter(buf), logger.WithFormat(logger.FormatJSON)).Info("ingested", "repository_id", "r1", "files", 12)
		records := decodeLines(buf)
		Expect(records).To(HaveLen(1))
		Expect(records[0]["repository_id"]).To(Equal("r1"))
		Expect(records[0]["files"]).To(BeNumerically("==", 12))

		buf.Reset()
		logger.New(logger.WithWriter(buf), logger.WithFormat("yaml")).Info("plain")
		Expect(buf.String()).To(ContainSubstring("msg=plain"))

		buf.Reset()
		logger.New(logger.WithWriter(buf), logger.WithPretty(true)).Info("pretty output")
		Expect(buf.String()).To(ContainSubstring("pretty output"))
	})

	It("turns a format back off", func() {
		logger.New(logger.WithWriter(buf), logger.WithJSON(true), logger.WithJSON(false)).Info("plain again")
		Expect(buf.String()).To(ContainSubstring("msg=\"plain again\""))
	})

	It("tees to every writer", func() {
		var other bytes.Buffer
		logger.New(logger.WithWriters(buf, &other)).Info("both")
		Expect(buf.String()).To(ContainSubstring("both"))
		Expect(other.String()).To(ContainSubstring("both"))
	})
})

var _ = Describe("Component", func() {
	It("tags records with the subsystem", func() {
		var buf bytes.Buffer
		l := logger.Component(logger.New(logger.WithWriter(&buf), logger.WithJSON(true)), "ingest")
		l.Info("started")

		Expect(decodeLines(&buf)[0][logger.ComponentKey]).To(Equal("ingest"))
	})

	It("tolerates a nil parent", func() {
		Expect(func() { logger.Component(nil, "api").Info("x") }).NotTo(Panic())
	})
})

var _ = Describe("Nop", func() {
	It("is disabled at every level", func() {
		l := logger.Nop()
		for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelError} {
			Expect(l.Enabled(context.Background(), level)).To(BeFalse())
		}
		Expect(func() { l.With("k", "v").WithGroup("g").Error("msg") }).NotTo(Panic())
	})
})

type failingHandler struct {
	slog.Handler
	calls *int
}

func (h failingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h failingHandler) Handle(context.Context, slog.Record) error {
	*h.calls++
	return errors.New("disk full")
}

var _ = Describe("Multi", func() {
	It("writes each record to every logger with shared attributes", func() {
		var console, file bytes.Buffer
		multi := logger.Multi(
			logger.New(logger.WithWriter(&console)),
			logger.New(logger.WithWriter(&file), logger.WithJSON(true)),
		)

		multi.With("repository_id", "r1").WithGroup("job").Info("queued", "worker", 2)

		Expect(console.String()).To(ContainSubstring("job.worker=2"))
		rec := decodeLines(&file)[0]
		Expect(rec["repository_id"]).To(Equal("r1"))
		Expect(rec["job"]).To(HaveKeyWithValue("worker", BeNumerically("==", 2)))
	})

	It("respects each logger's own level", func() {
		var info, debug bytes.Buffer
		multi := logger.Multi(
			logger.New(logger.WithWriter(&info)),
			logger.New(logger.WithWriter(&debug), logger.WithDebug(true)),
		)

		multi.Debug("embedding retry")
		Expect(info.String()).To(BeEmpty())
		Expect(debug.String()).To(ContainSubstring("embedding retry"))
	})

	It("keeps writing after one handler fails", func() {
		var buf bytes.Buffer
		calls := 0
		multi := logger.Multi(
			slog.New(failingHandler{calls: &calls}),
			logger.New(logger.WithWriter(&buf)),
		)

		err := multi.Handler().Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelInfo, "still here", 0))
		Expect(err).To(MatchError("disk full"))
		Expect(calls).To(Equal(1))
		Expect(buf.String()).To(ContainSubstring("still here"))
	})

	It("skips nil loggers and discards when none remain", func() {
		Expect(logger.Multi(nil).Enabled(context.Background(), slog.LevelError)).To(BeFalse())
	})
})
