package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fjod/helden/internal/domain"
	"github.com/fjod/helden/internal/logging"
	"github.com/fjod/helden/internal/repository"
	"github.com/google/uuid"
)

// enqueueEvent writes an order event to the outbox. The order change is already
// durable, so a failure here is logged and not returned.
func enqueueEvent(ctx context.Context, outbox repository.OutboxRepository, eventType string, o *domain.Order, at time.Time) {
	if outbox == nil {
		return
	}
	if err := addEvent(ctx, outbox, eventType, o, at); err != nil {
		logging.FromCtx(ctx).Error("failed to enqueue order event",
			"event_type", eventType, "order_id", o.ID, "error", err)
	}
}

func addEvent(ctx context.Context, outbox repository.OutboxRepository, eventType string, o *domain.Order, at time.Time) error {
	payload, err := json.Marshal(domain.NewOrderEvent(eventType, o, at))
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}
	return outbox.Add(context.WithoutCancel(ctx), &repository.OutboxEvent{
		ID:          uuid.NewString(),
		AggregateID: o.ID,
		EventType:   eventType,
		Payload:     payload,
		CreatedAt:   at,
	})
}
