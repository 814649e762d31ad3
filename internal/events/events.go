// Package events publishes item lifecycle events for other services.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Subjects published by the marketplace.
const (
	SubjectItemCreated   = "item.created"
	SubjectItemAccepted  = "item.accepted"
	SubjectItemCollected = "item.collected"
	SubjectItemCancelled = "item.cancelled"
)

// ItemEvent is the payload of every item lifecycle subject.
type ItemEvent struct {
	ItemID      string    `json:"item_id"`
	Status      string    `json:"status"`
	Category    string    `json:"category,omitempty"`
	SellerID    string    `json:"seller_id,omitempty"`
	CollectorID string    `json:"collector_id,omitempty"`
	Price       float64   `json:"price,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Publisher sends events to subscribers. Publishing is best effort: callers
// log failures but never undo the state change that produced the event.
type Publisher interface {
	Publish(ctx context.Context, subject string, event ItemEvent) error
	Close()
}

// NATSPublisher publishes JSON events on a NATS connection.
type NATSPublisher struct {
	conn *nats.Conn
}

// NewNATSPublisher connects to the NATS server at url.
func NewNATSPublisher(url string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("ridit"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats at %s: %w", url, err)
	}
	return &NATSPublisher{conn: conn}, nil
}

// Publish encodes event and publishes it on subject.
func (p *NATSPublisher) Publish(ctx context.Context, subject string, event ItemEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding %s event: %w", subject, err)
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publishing %s: %w", subject, err)
	}
	return nil
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}

// Nop discards every event. It is used when no NATS URL is configured.
type Nop struct{}

func (Nop) Publish(context.Context, string, ItemEvent) error { return nil }
func (Nop) Close()                                          {}
