package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/papercomputeco/reposcope/pkg/logger"
	"github.com/papercomputeco/reposcope/pkg/metrics"
	"github.com/papercomputeco/reposcope/pkg/retrieve"
	"github.com/papercomputeco/reposcope/pkg/synth"
)

// DefaultPace is the delay between token events.
const DefaultPace = 15 * time.Millisecond

// ErrEmptyQuestion is returned for a blank question.
var ErrEmptyQuestion = errors.New("question is required")

// State is a step of a streaming session.
type State int

const (
	StateIdle State = iota
	StateRetrieving
	StateSynthesizing
	StateEmitting
	StateDone
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRetrieving:
		return "retrieving"
	case StateSynthesizing:
		return "synthesizing"
	case StateEmitting:
		return "emitting"
	case StateDone:
		return "done"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// ContextRetriever selects the snippets for a question.
type ContextRetriever interface {
	GetRelevantContext(ctx context.Context, question, repositoryID string) ([]retrieve.Snippet, error)
}

// EmitFunc delivers one event to the client. An error aborts the session.
type EmitFunc func(Event) error

// Config holds the collaborators of a Coordinator.
type Config struct {
	Retriever   ContextRetriever
	Synthesizer synth.Synthesizer

	// Pace is the delay between token events. Zero uses DefaultPace; a
	// negative value disables pacing.
	Pace time.Duration

	Logger  *slog.Logger
	Metrics *metrics.Registry
}

// Coordinator runs answer streaming sessions. It holds no per-session state
// and is safe for concurrent use.
type Coordinator struct {
	retriever   ContextRetriever
	synthesizer synth.Synthesizer
	pace        time.Duration
	logger      *slog.Logger
	metrics     *metrics.Registry
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(c Config) *Coordinator {
	pace := c.Pace
	switch {
	case pace == 0:
		pace = DefaultPace
	case pace < 0:
		pace = 0
	}

	log := c.Logger
	if log == nil {
		log = logger.Nop()
	}

	return &Coordinator{
		retriever:   c.Retriever,
		synthesizer: c.Synthesizer,
		pace:        pace,
		logger:      log,
		metrics:     c.Metrics,
	}
}

// Request is one question against one repository.
type Request struct {
	RepositoryID    string
	Question        string
	RepoDescription string
}

// Session is a single question streamed to a single client.
type Session struct {
	coord *Coordinator
	req   Request

	mu     sync.Mutex
	states []State
}

// NewSession creates a session in the idle state.
func (c *Coordinator) NewSession(req Request) *Session {
	return &Session{
		coord:  c,
		req:    req,
		states: []State{StateIdle},
	}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[len(s.states)-1]
}

// History returns every state the session passed through, in order.
func (s *Session) History() []State {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]State, len(s.states))
	copy(out, s.states)
	return out
}

func (s *Session) transition(to State) {
	s.mu.Lock()
	s.states = append(s.states, to)
	s.mu.Unlock()
}

// Stream is a convenience for NewSession(req).Run(ctx, emit).
func (c *Coordinator) Stream(ctx context.Context, req Request, emit EmitFunc) (*synth.Answer, error) {
	return c.NewSession(req).Run(ctx, emit)
}

// Run drives the session to completion. It emits zero or more token events
// and then exactly one done or error event, and returns the synthesized
// answer on success.
//
// When ctx is cancelled (the client went away) Run stops without emitting
// anything further and returns the context error.
func (s *Session) Run(ctx context.Context, emit EmitFunc) (*synth.Answer, error) {
	start := time.Now()
	c := s.coord
	log := c.logger.With("repository_id", s.req.RepositoryID)

	fail := func(err error) (*synth.Answer, error) {
		s.transition(StateErrored)
		if ctx.Err() != nil {
			c.metrics.StreamFinished("cancelled")
			log.Debug("stream cancelled", "error", ctx.Err())
			return nil, ctx.Err()
		}
		c.metrics.StreamFinished("error")
		log.Warn("stream failed", "error", err)
		if emitErr := emit(Error(err.Error())); emitErr != nil {
			log.Debug("could not deliver error event", "error", emitErr)
		}
		return nil, err
	}

	if strings.TrimSpace(s.req.Question) == "" {
		return fail(ErrEmptyQuestion)
	}

	s.transition(StateRetrieving)
	snippets, err := c.retriever.GetRelevantContext(ctx, s.req.Question, s.req.RepositoryID)
	if err != nil {
		if !retrieve.IsEmbeddingFailure(err) || ctx.Err() != nil {
			return fail(fmt.Errorf("retrieving context: %w", err))
		}
		log.Warn("answering without context", "error", err)
		snippets = nil
	}

	s.transition(StateSynthesizing)
	answer, err := c.synthesizer.Synthesize(ctx, s.req.Question, snippets, s.req.RepoDescription)
	if err != nil {
		if !errors.Is(err, synth.ErrSynthesis) {
			err = fmt.Errorf("%w: %w", synth.ErrSynthesis, err)
		}
		return fail(err)
	}
	answer.Normalize()

	s.transition(StateEmitting)
	tokens := Tokenize(answer.Answer)

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for i, tok := range tokens {
		if i > 0 && c.pace > 0 {
			if timer == nil {
				timer = time.NewTimer(c.pace)
			} else {
				timer.Reset(c.pace)
			}
			select {
			case <-ctx.Done():
				return fail(ctx.Err())
			case <-timer.C:
			}
		}
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		if err := emit(Token(tok)); err != nil {
			return fail(fmt.Errorf("writing token: %w", err))
		}
	}

	if err := emit(Done(answer.Sources, answer.Confidence)); err != nil {
		return fail(fmt.Errorf("writing done: %w", err))
	}

	s.transition(StateDone)
	c.metrics.StreamFinished("done")
	c.metrics.ObserveQuery(time.Since(start))

	log.Debug("stream finished",
		"tokens", len(tokens),
		"chars", tokenLen(tokens),
		"sources", len(answer.Sources),
		"duration", time.Since(start),
	)

	return answer, nil
}
