package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/rl1809/auction/internal/core/domain"
)

const SubjectPrefix = "auction.events."

// NATSPublisher fans auction events out on auction.events.<auction id>.
type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(conn *nats.Conn) *NATSPublisher {
	return &NATSPublisher{conn: conn}
}

func Connect(url string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url, nats.Name("auction-engine"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return NewNATSPublisher(conn), nil
}

func Subject(auctionID string) string {
	return SubjectPrefix + auctionID
}

func (p *NATSPublisher) Publish(ctx context.Context, event domain.AuctionEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := p.conn.Publish(Subject(event.AuctionID), data); err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

// Close flushes pending messages before closing the connection.
func (p *NATSPublisher) Close() {
	p.conn.Drain()
}

// Noop drops every event. Used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, domain.AuctionEvent) error {
	return nil
}
