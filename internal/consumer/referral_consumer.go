// Package consumer reads referral credits from Kafka and pays them into wallets.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fjod/helden/internal/logging"
	"github.com/segmentio/kafka-go"
)

var ErrInvalidEvent = errors.New("invalid referral event")

type ReferralCreditedEvent struct {
	ReferralID  string  `json:"referral_id"`
	UserID      string  `json:"user_id"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description,omitempty"`
}

// Crediter is satisfied by *service.WalletService.
type Crediter interface {
	Credit(ctx context.Context, userID string, amount float64, description, reference string) (bool, error)
}

type Config struct {
	Brokers []string
	Topic   string
	GroupID string
}

// messageReader is the part of *kafka.Reader used here.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

const (
	initialBackoff = 500 * time.Millisecond
	maxBackoff     = 30 * time.Second
)

type Consumer struct {
	wallet  Crediter
	reader  messageReader
	backoff time.Duration
	log     *slog.Logger
}

func NewConsumer(wallet Crediter, cfg Config) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{wallet: wallet, reader: reader, backoff: initialBackoff, log: logging.New("referral-consumer")}
}

func (c *Consumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.processMessage(ctx)
	}
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.log.Error("error closing kafka reader", "error", err)
	}
}

// processMessage commits an offset only once its credit is applied or the
// event is known to be unusable. A failed credit is retried in place, so the
// partition does not move past it.
func (c *Consumer) processMessage(ctx context.Context) {
	m, err := c.reader.FetchMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		c.log.Error("error fetching message", "error", err)
		return
	}

	if err := c.apply(ctx, m); err != nil {
		c.log.Warn("referral credit left uncommitted", "offset", m.Offset, "partition", m.Partition, "error", err)
		return
	}
	if err := c.reader.CommitMessages(ctx, m); err != nil {
		// the credit is deduplicated by reference, so redelivery is harmless
		c.log.Error("failed to commit offset", "offset", m.Offset, "partition", m.Partition, "error", err)
	}
}

// apply retries handle with exponential backoff until it succeeds, the event
// turns out invalid, or ctx ends.
func (c *Consumer) apply(ctx context.Context, m kafka.Message) error {
	backoff := c.backoff
	if backoff <= 0 {
		backoff = initialBackoff
	}
	for attempt := 1; ; attempt++ {
		err := c.handle(ctx, m.Value)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrInvalidEvent) {
			c.log.Error("dropping invalid referral event", "offset", m.Offset, "partition", m.Partition, "error", err)
			return nil
		}

		c.log.Warn("referral credit failed, retrying", "attempt", attempt, "backoff", backoff, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

// handle credits one referral. Replays are absorbed by the wallet's reference check.
func (c *Consumer) handle(ctx context.Context, value []byte) error {
	var event ReferralCreditedEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if strings.TrimSpace(event.ReferralID) == "" || strings.TrimSpace(event.UserID) == "" {
		return fmt.Errorf("%w: referral_id and user_id are required", ErrInvalidEvent)
	}
	if event.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidEvent)
	}

	description := event.Description
	if description == "" {
		description = "Referral bonus"
	}
	applied, err := c.wallet.Credit(ctx, event.UserID, event.Amount, description, "referral:"+event.ReferralID)
	if err != nil {
		return fmt.Errorf("credit referral %s: %w", event.ReferralID, err)
	}
	if !applied {
		c.log.Info("referral already credited, skipping", "referral_id", event.ReferralID)
		return nil
	}
	c.log.Info("referral credited", "referral_id", event.ReferralID, "user_id", event.UserID, "amount", event.Amount)
	return nil
}
