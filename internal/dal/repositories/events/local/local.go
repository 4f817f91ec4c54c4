package local

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/corray333/frameshop/order/internal/service/models/event"
	"github.com/corray333/frameshop/order/internal/service/models/outbox"
)

type broker interface {
	Publish(e event.Event)
}

// EventLocalRepository relays outbox messages straight into the in-process broker.
type EventLocalRepository struct {
	broker broker
}

func NewEventLocalRepository(b broker) *EventLocalRepository {
	return &EventLocalRepository{
		broker: b,
	}
}

func (r *EventLocalRepository) Publish(_ context.Context, msg outbox.OutboxMessage) error {
	var e event.Event
	if err := json.Unmarshal(msg.Payload, &e); err != nil {
		return fmt.Errorf("failed to decode outbox event %d: %w", msg.ID, err)
	}
	r.broker.Publish(e)

	return nil
}
