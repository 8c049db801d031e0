// Package events publishes order and catalog changes as JSON envelopes.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type names an event.
type Type string

const (
	OrderPlaced    Type = "order.placed"
	OrderConfirmed Type = "order.confirmed"
	OrderRejected  Type = "order.rejected"
	ProductAdded   Type = "product.added"
	ProductUpdated Type = "product.updated"
	ProductDeleted Type = "product.deleted"
)

// Producer is stamped on every envelope.
const Producer = "savdobot"

// Envelope wraps a payload with identity and timing metadata.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     Type            `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`

	// Key is the partition key; it is not part of the JSON body.
	Key string `json:"-"`
}

// OrderPayload describes an order event.
type OrderPayload struct {
	UserID    int64  `json:"user_id"`
	Index     int    `json:"index"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Total     int64  `json:"total"`
	Status    string `json:"status"`
}

// ProductPayload describes a catalog event.
type ProductPayload struct {
	ID          string `json:"id"`
	Name        string `json:"name,omitempty"`
	Price       int64  `json:"price,omitempty"`
	MaxQuantity int    `json:"max_quantity,omitempty"`
	PostID      int    `json:"post_id,omitempty"`
}

var (
	newID = func() string { return uuid.NewString() }
	now   = time.Now
)

// New builds an envelope for payload partitioned by key.
func New(t Type, key, correlationID string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("events: marshal %s: %w", t, err)
	}
	return Envelope{
		EventID:       newID(),
		EventType:     t,
		EventVersion:  1,
		OccurredAt:    now().UTC(),
		Producer:      Producer,
		CorrelationID: correlationID,
		Payload:       raw,
		Key:           key,
	}, nil
}

// Publisher delivers envelopes.
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
	Close() error
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, Envelope) error { return nil }
func (Nop) Close() error                            { return nil }
