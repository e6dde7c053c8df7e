package publisher

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/auction/internal/core/domain"
)

func getNATSConn(t *testing.T) *nats.Conn {
	url := os.Getenv("NATS_URL")
	if url == "" {
		url = nats.DefaultURL
	}

	conn, err := nats.Connect(url, nats.Timeout(time.Second))
	if err != nil {
		t.Skipf("NATS not available: %v", err)
	}
	return conn
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "auction.events.abc", Subject("abc"))
}

func TestNoop(t *testing.T) {
	assert.NoError(t, Noop{}.Publish(context.Background(), domain.AuctionEvent{}))
}

func TestNATSPublisher_Publish(t *testing.T) {
	conn := getNATSConn(t)
	defer conn.Close()

	sub, err := conn.SubscribeSync(SubjectPrefix + "*")
	require.NoError(t, err)
	require.NoError(t, conn.Flush())

	event := domain.AuctionEvent{
		ID:          "evt-1",
		Type:        domain.EventBidAccepted,
		AuctionID:   "auction-1",
		Bidder:      "alice",
		Amount:      decimal.RequireFromString("15.00"),
		PreviousBid: decimal.RequireFromString("10.00"),
		Winner:      "alice",
		Version:     1,
		Timestamp:   time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC),
	}

	pub := NewNATSPublisher(conn)
	require.NoError(t, pub.Publish(context.Background(), event))

	msg, err := sub.NextMsg(2 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, "auction.events.auction-1", msg.Subject)

	var got domain.AuctionEvent
	require.NoError(t, json.Unmarshal(msg.Data, &got))
	assert.Equal(t, event.Type, got.Type)
	assert.Equal(t, event.Bidder, got.Bidder)
	assert.True(t, event.Amount.Equal(got.Amount))
	assert.Equal(t, event.Version, got.Version)
}

func TestNATSPublisher_CancelledContext(t *testing.T) {
	conn := getNATSConn(t)
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewNATSPublisher(conn).Publish(ctx, domain.AuctionEvent{AuctionID: "a"})
	assert.ErrorIs(t, err, context.Canceled)
}
