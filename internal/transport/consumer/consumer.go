// Package consumer feeds change events received from the message broker into
// the in-process change feed, so every instance sees every mutation.
package consumer

import (
	"encoding/json"
	"fmt"

	"github.com/corray333/frameshop/order/internal/service/models/event"
)

// broker is the local change feed.
type broker interface {
	Publish(e event.Event)
}

func relay(body []byte, b broker) error {
	var e event.Event
	if err := json.Unmarshal(body, &e); err != nil {
		return fmt.Errorf("failed to decode change event: %w", err)
	}
	b.Publish(e)

	return nil
}
