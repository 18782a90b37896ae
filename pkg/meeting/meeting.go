// Package meeting ingests meeting transcripts into the embedding index and
// summarizes them.
package meeting

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"time"

	reslog "github.com/papercomputeco/reposcope/pkg/logger"
	"github.com/papercomputeco/reposcope/pkg/retrieve"
	"github.com/papercomputeco/reposcope/pkg/storage"
	"github.com/papercomputeco/reposcope/pkg/synth"
	"github.com/papercomputeco/reposcope/pkg/vector"
)

const (
	// MaxSegments caps how many blank-line separated segments are stored.
	MaxSegments = 50

	// SummaryContextLimit is how many characters of the transcript the
	// summarizer sees.
	SummaryContextLimit = 8000

	DefaultTitle  = "Untitled Meeting"
	DefaultSource = "upload"

	summaryQuestion    = "Provide a concise structured summary of this meeting transcript."
	summaryDescription = "Meeting Transcript"
	transcriptPath     = "transcript.txt"
)

// ErrEmptyTranscript is returned by Ingest for a blank transcript.
var ErrEmptyTranscript = errors.New("transcript required")

var segmentBreak = regexp.MustCompile(`\n\s*\n`)

// Indexer is the part of the embedding index meetings are written to.
type Indexer interface {
	AddDocument(ctx context.Context, documentID, content string, meta vector.Metadata) (int, error)
}

// Config holds the collaborators of a Service.
type Config struct {
	Storage     storage.Driver
	Index       Indexer
	Synthesizer synth.Synthesizer
	Logger      *slog.Logger

	// Now overrides the clock.
	Now func() time.Time
}

// Service owns meeting ingestion and summarization.
type Service struct {
	storage     storage.Driver
	index       Indexer
	synthesizer synth.Synthesizer
	logger      *slog.Logger
	now         func() time.Time
}

// NewService creates a Service.
func NewService(c Config) (*Service, error) {
	if c.Storage == nil || c.Index == nil || c.Synthesizer == nil {
		return nil, errors.New("meeting service requires storage, index and synthesizer")
	}
	if c.Logger == nil {
		c.Logger = reslog.Nop()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return &Service{
		storage:     c.Storage,
		index:       c.Index,
		synthesizer: c.Synthesizer,
		logger:      c.Logger,
		now:         c.Now,
	}, nil
}

// Input is a transcript to ingest.
type Input struct {
	Title      string `json:"title"`
	Source     string `json:"source"`
	Transcript string `json:"transcript"`
}

// DocumentID is the index document id of a meeting transcript.
func DocumentID(meetingID string) string {
	return "meeting_" + meetingID
}

// Segment splits a transcript on blank lines, keeping at most MaxSegments.
func Segment(transcript string) []string {
	parts := segmentBreak.Split(transcript, -1)
	if len(parts) > MaxSegments {
		parts = parts[:MaxSegments]
	}
	return parts
}

// Ingest stores the meeting and its segments and indexes the transcript. The
// returned meeting is ready, or error when no chunk could be indexed.
func (s *Service) Ingest(ctx context.Context, in Input) (*storage.Meeting, []*storage.MeetingSegment, error) {
	if strings.TrimSpace(in.Transcript) == "" {
		return nil, nil, ErrEmptyTranscript
	}
	if in.Title == "" {
		in.Title = DefaultTitle
	}
	if in.Source == "" {
		in.Source = DefaultSource
	}

	m := &storage.Meeting{
		Title:      in.Title,
		Source:     in.Source,
		Transcript: in.Transcript,
		Status:     storage.StatusProcessing,
	}
	if err := s.storage.CreateMeeting(ctx, m); err != nil {
		return nil, nil, err
	}

	parts := Segment(in.Transcript)
	segments := make([]*storage.MeetingSegment, len(parts))
	for i, p := range parts {
		segments[i] = &storage.MeetingSegment{MeetingID: m.ID, Order: i, Content: p}
	}
	if err := s.storage.CreateMeetingSegments(ctx, segments); err != nil {
		return nil, nil, err
	}

	logger := s.logger.With("meeting_id", m.ID)
	stored, err := s.index.AddDocument(ctx, DocumentID(m.ID), in.Transcript, vector.Metadata{Path: transcriptPath})
	m.Status = storage.StatusReady
	if err != nil {
		if stored == 0 {
			logger.Error("failed to index transcript", "error", err)
			m.Status = storage.StatusError
		} else {
			logger.Warn("transcript partially indexed", "chunks", stored, "error", err)
		}
	}
	if err := s.storage.UpdateMeeting(ctx, m); err != nil {
		return nil, nil, err
	}

	logger.Info("meeting ingested", "segments", len(segments), "chunks", stored)
	return m, segments, nil
}

// Get returns a meeting with its segments.
func (s *Service) Get(ctx context.Context, id string) (*storage.Meeting, []*storage.MeetingSegment, error) {
	m, err := s.storage.GetMeeting(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	segments, err := s.storage.ListMeetingSegments(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return m, segments, nil
}

// List returns every meeting, newest first.
func (s *Service) List(ctx context.Context) ([]*storage.Meeting, error) {
	return s.storage.ListMeetings(ctx)
}

// Summarize asks the synthesizer for a summary of the meeting's segments. A
// synthesis failure marks the meeting error and is not returned; only storage
// errors are.
func (s *Service) Summarize(ctx context.Context, id string) (*storage.Meeting, error) {
	m, err := s.storage.GetMeeting(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.Transcript == "" {
		return m, nil
	}

	segments, err := s.storage.ListMeetingSegments(ctx, id)
	if err != nil {
		return nil, err
	}
	contents := make([]string, len(segments))
	for i, seg := range segments {
		contents[i] = seg.Content
	}
	joined := truncate(strings.Join(contents, "\n"), SummaryContextLimit)

	answer, err := s.synthesizer.Synthesize(ctx, summaryQuestion,
		[]retrieve.Snippet{{Path: transcriptPath, Content: joined}},
		summaryDescription,
	)
	if err != nil {
		s.logger.Error("meeting summary failed", "meeting_id", id, "error", err)
		m.Status = storage.StatusError
	} else {
		now := s.now()
		m.Summary = answer.Answer
		m.Status = storage.StatusReady
		m.ProcessedAt = &now
	}

	if err := s.storage.UpdateMeeting(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

