// Package nop provides the publisher used when no event broker is
// configured. Status events are only traced to the logger.
package nop

import (
	"context"
	"log/slog"

	"github.com/papercomputeco/reposcope/pkg/eventstream"
)

type Publisher struct {
	logger *slog.Logger
}

// NewPublisher returns a Publisher that traces events at debug level to
// logger. A nil logger discards them.
func NewPublisher(logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Publisher{logger: logger}
}

func (p *Publisher) PublishStatus(ctx context.Context, event *eventstream.RepositoryStatusEvent) error {
	if event == nil {
		return eventstream.ErrNilStatusEvent
	}

	p.logger.DebugContext(ctx, "repository status event not published",
		"event_id", event.EventID,
		"repository_id", event.Repository.ID,
		"status", event.Status,
	)
	return nil
}

func (p *Publisher) Close() error {
	return nil
}
