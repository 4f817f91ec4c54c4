package order

import (
	"fmt"
	"strings"
)

// Status is the fulfilment state of an order.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

// Statuses lists every known status in lifecycle order.
var Statuses = []Status{StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled}

var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered},
}

// ParseStatus parses a status token. Unknown tokens are rejected.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("unknown order status %q", s)
	}

	return st, nil
}

func (s Status) String() string {
	return string(s)
}

func (s Status) Valid() bool {
	for _, st := range Statuses {
		if st == s {
			return true
		}
	}

	return false
}

// IsTerminal reports whether no further moves are allowed from s.
func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// CanTransitionTo reports whether next is a forward edge of the lifecycle graph.
func (s Status) CanTransitionTo(next Status) bool {
	for _, st := range transitions[s] {
		if st == next {
			return true
		}
	}

	return false
}

// AcceptsTracking reports whether tracking can be attached in status s.
func (s Status) AcceptsTracking() bool {
	return s == StatusProcessing || s == StatusShipped
}
