// Package publisher relays outbox events to Kafka.
package publisher

import (
	"context"
	"log/slog"
	"time"

	"github.com/fjod/helden/internal/logging"
	"github.com/fjod/helden/internal/metrics"
	"github.com/fjod/helden/internal/repository"
	"github.com/segmentio/kafka-go"
)

const batchSize = 100

// messageWriter is the part of *kafka.Writer the poller uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Config struct {
	Brokers  []string
	Topic    string
	Interval time.Duration
}

type OutboxPoller struct {
	eventTick time.Duration
	repo      repository.OutboxRepository
	writer    messageWriter
	log       *slog.Logger
}

func NewOutboxPoller(repo repository.OutboxRepository, cfg Config) *OutboxPoller {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return newOutboxPoller(repo, w, cfg.Interval)
}

func newOutboxPoller(repo repository.OutboxRepository, w messageWriter, interval time.Duration) *OutboxPoller {
	if interval <= 0 {
		interval = time.Second
	}
	return &OutboxPoller{eventTick: interval, repo: repo, writer: w, log: logging.New("outbox")}
}

// Run publishes pending events every tick until ctx is cancelled.
func (p *OutboxPoller) Run(ctx context.Context) {
	eventTicker := time.NewTicker(p.eventTick)
	defer eventTicker.Stop()
	for {
		select {
		case <-eventTicker.C:
			p.processUnpublishedEvents(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *OutboxPoller) Close() error {
	return p.writer.Close()
}

func (p *OutboxPoller) processUnpublishedEvents(ctx context.Context) {
	events, err := p.repo.GetUnprocessedEvents(ctx, batchSize)
	if err != nil {
		p.log.Error("failed to fetch outbox events", "error", err)
		return
	}

	for _, event := range events {
		if err := p.publish(ctx, event); err != nil {
			metrics.OutboxPublished.WithLabelValues("failed").Inc()
			p.log.Warn("failed to publish event", "event_id", event.ID, "event_type", event.EventType, "error", err)
			continue
		}
		metrics.OutboxPublished.WithLabelValues("ok").Inc()

		// delivery is at least once: an unmarked event goes out again next tick
		if err := p.repo.MarkEventAsProcessed(ctx, event.ID); err != nil {
			p.log.Warn("failed to mark event as processed", "event_id", event.ID, "error", err)
		}
	}
}

func (p *OutboxPoller) publish(ctx context.Context, event *repository.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(event.AggregateID), // order id keeps one order's events in one partition
		Value: event.Payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
		},
		Time: event.CreatedAt,
	}
	return p.writer.WriteMessages(ctx, msg)
}
