package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type EventType string

const (
	EventBidAccepted   EventType = "bid.accepted"
	EventAuctionClosed EventType = "auction.closed"
)

// AuctionEvent is emitted after a committed state change.
type AuctionEvent struct {
	ID          string          `json:"event_id"`
	Type        EventType       `json:"type"`
	AuctionID   string          `json:"auction_id"`
	Bidder      string          `json:"bidder,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	PreviousBid decimal.Decimal `json:"previous_bid"`
	Winner      string          `json:"winner,omitempty"`
	Version     int64           `json:"version"`
	Timestamp   time.Time       `json:"timestamp"`
}
