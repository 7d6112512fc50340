package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Envelope is the canonical wrapper for every event published to NATS.
type Envelope struct {
	ID            uuid.UUID       `json:"id"`
	CorrelationID uuid.UUID       `json:"correlation_id"`
	Venue         string          `json:"venue"`
	Maker         string          `json:"maker,omitempty"`
	Topic         string          `json:"topic"`
	EventType     string          `json:"event_type"`
	Version       string          `json:"version"`
	Timestamp     time.Time       `json:"timestamp"`
	Payload       json.RawMessage `json:"payload"`
}

// OrderEvent is the payload for order lifecycle events.
type OrderEvent struct {
	Maker     string      `json:"maker"`
	OrderID   string      `json:"order_id,omitempty"`
	QuoteID   string      `json:"quote_id,omitempty"`
	OrderType OrderType   `json:"order_type,omitempty"`
	ChainID   int64       `json:"chain_id,omitempty"`
	Status    OrderStatus `json:"status,omitempty"`
	Step      string      `json:"step,omitempty"`
	Message   string      `json:"message,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewOrderEvent fills the identifying fields from an order.
func NewOrderEvent(o *ExternalOrder) OrderEvent {
	return OrderEvent{
		Maker:     o.Maker(),
		OrderID:   o.OrderID,
		OrderType: o.OrderType,
		ChainID:   o.ChainID,
		Status:    o.Status,
		Timestamp: time.Now().UTC(),
	}
}
