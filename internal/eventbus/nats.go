package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/nats-io/nats.go"

	"rankstream/internal/models"
)

// Subject carrying ranking-change events between serving processes.
const rankingSubject = "rankstream.ranking"

// NATSBus is the multi-process Bus: events published by one serving process
// reach viewer connections held by every other process.
type NATSBus struct {
	conn *nats.Conn
}

// NewNATSBus connects to the NATS server at url.
func NewNATSBus(url string) (*NATSBus, error) {
	conn, err := nats.Connect(url,
		nats.Name("rankstream"),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSBus{conn: conn}, nil
}

// Publish sends the event as JSON on the ranking subject.
func (b *NATSBus) Publish(_ context.Context, event models.RankingChangeEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return b.conn.Publish(rankingSubject, payload)
}

// Subscribe delivers every ranking event on the subject to handler. Payloads
// that fail to decode are logged and skipped.
func (b *NATSBus) Subscribe(handler Handler) (func(), error) {
	sub, err := b.conn.Subscribe(rankingSubject, func(msg *nats.Msg) {
		var event models.RankingChangeEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			log.Printf("eventbus: dropping undecodable event: %v", err)
			return
		}
		handler(event)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", rankingSubject, err)
	}

	return func() {
		if err := sub.Unsubscribe(); err != nil {
			log.Printf("eventbus: unsubscribe failed: %v", err)
		}
	}, nil
}

// Close drains and closes the connection.
func (b *NATSBus) Close() error {
	return b.conn.Drain()
}
