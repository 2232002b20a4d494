package models

import (
	"time"

	"github.com/google/uuid"
)

type OrderEventType string

const (
	OrderEventReceived OrderEventType = "received"
	OrderEventExecuted OrderEventType = "executed"
	OrderEventRejected OrderEventType = "rejected"
)

// OrderEvent is published on the event bus for every stage of webhook
// processing and streamed to websocket subscribers.
type OrderEvent struct {
	EventID   uuid.UUID      `json:"event_id"`
	Type      OrderEventType `json:"type"`
	Account   string         `json:"account"`
	Order     *Order         `json:"order,omitempty"`
	Error     string         `json:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

func NewOrderEvent(eventType OrderEventType, account string, order *Order, err error) *OrderEvent {
	ev := &OrderEvent{
		EventID:   uuid.New(),
		Type:      eventType,
		Account:   account,
		Order:     order,
		Timestamp: time.Now().UTC(),
	}

	if err != nil {
		ev.Error = err.Error()
	}

	return ev
}
