// Package kafka publishes repository status events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/reposcope/pkg/eventstream"
	reslog "github.com/papercomputeco/reposcope/pkg/logger"
)

// MessageWriter is the subset of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Config configures a Kafka Publisher.
type Config struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
	Logger       *slog.Logger

	// Writer overrides the kafka-go writer built from Brokers and Topic.
	Writer MessageWriter
}

// Publisher writes status events keyed by repository id so that every
// transition of a repository lands on the same partition.
type Publisher struct {
	writer  MessageWriter
	timeout time.Duration
	logger  *slog.Logger
}

// NewPublisher creates a Kafka publisher.
func NewPublisher(cfg Config) (*Publisher, error) {
	if cfg.Topic == "" {
		cfg.Topic = eventstream.EventTypeRepositoryStatus
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = reslog.Nop()
	}

	writer := cfg.Writer
	if writer == nil {
		if len(cfg.Brokers) == 0 {
			return nil, errors.New("kafka publisher requires at least one broker")
		}
		writer = &kafkago.Writer{
			Addr:                   kafkago.TCP(cfg.Brokers...),
			Topic:                  cfg.Topic,
			Balancer:               &kafkago.Hash{},
			RequiredAcks:           kafkago.RequireOne,
			AllowAutoTopicCreation: true,
			WriteTimeout:           cfg.WriteTimeout,
		}
	}

	return &Publisher{
		writer:  writer,
		timeout: cfg.WriteTimeout,
		logger:  cfg.Logger,
	}, nil
}

// PublishStatus encodes the event as JSON and writes it synchronously.
func (p *Publisher) PublishStatus(ctx context.Context, event *eventstream.RepositoryStatusEvent) error {
	if event == nil {
		return eventstream.ErrNilStatusEvent
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding status event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg := kafkago.Message{
		Key:   []byte(event.Repository.ID),
		Value: payload,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
		Time: event.EmittedAt,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("writing status event: %w", err)
	}

	p.logger.Debug("published status event",
		"repository_id", event.Repository.ID,
		"status", event.Status,
		"event_id", event.EventID,
	)
	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
