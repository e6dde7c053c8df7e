package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type DecisionKind string

const (
	DecisionAccepted              DecisionKind = "accepted"
	DecisionAutoClosed            DecisionKind = "auto_closed"
	DecisionRejectedClosed        DecisionKind = "rejected_closed"
	DecisionRejectedSelfBid       DecisionKind = "rejected_self_bid"
	DecisionRejectedInvalidAmount DecisionKind = "rejected_invalid_amount"
	DecisionRejectedTooLow        DecisionKind = "rejected_too_low"
	DecisionStillOpen             DecisionKind = "still_open"
)

type Decision struct {
	Kind       DecisionKind
	Next       AuctionItem // state to write, meaningful only when Mutates
	CurrentBid decimal.Decimal
	Winner     string
}

func (d Decision) Mutates() bool {
	return d.Kind == DecisionAccepted || d.Kind == DecisionAutoClosed
}

func (k DecisionKind) IsRejection() bool {
	switch k {
	case DecisionRejectedClosed, DecisionRejectedSelfBid, DecisionRejectedInvalidAmount, DecisionRejectedTooLow:
		return true
	}
	return false
}

// Decide arbitrates a single bid against an item snapshot. The checks run in a
// fixed order so exactly one reason is reported: closed, expired, self bid,
// invalid amount, too low.
func Decide(item AuctionItem, bidder string, amount decimal.Decimal, now time.Time) Decision {
	if item.IsClosed {
		return reject(item, DecisionRejectedClosed)
	}

	if item.IsExpired(now) {
		return closeAt(item, now)
	}

	if bidder == item.Seller {
		return reject(item, DecisionRejectedSelfBid)
	}

	amount, ok := BoundedAmount(amount)
	if !ok || !amount.IsPositive() {
		return reject(item, DecisionRejectedInvalidAmount)
	}

	// strict improvement: a tie loses
	if amount.LessThanOrEqual(item.CurrentBid) {
		return reject(item, DecisionRejectedTooLow)
	}

	next := item
	next.CurrentBid = amount
	next.HighestBidder = bidder
	next.UpdatedAt = now

	return Decision{
		Kind:       DecisionAccepted,
		Next:       next,
		CurrentBid: amount,
		Winner:     bidder,
	}
}

// DecideClose is the closing-only rule used by explicit and periodic expiry.
func DecideClose(item AuctionItem, now time.Time) Decision {
	if item.IsClosed {
		return reject(item, DecisionRejectedClosed)
	}
	if !item.IsExpired(now) {
		return reject(item, DecisionStillOpen)
	}
	return closeAt(item, now)
}

func closeAt(item AuctionItem, now time.Time) Decision {
	next := item
	next.IsClosed = true
	next.UpdatedAt = now

	return Decision{
		Kind:       DecisionAutoClosed,
		Next:       next,
		CurrentBid: item.CurrentBid,
		Winner:     item.HighestBidder,
	}
}

func reject(item AuctionItem, kind DecisionKind) Decision {
	return Decision{
		Kind:       kind,
		Next:       item,
		CurrentBid: item.CurrentBid,
		Winner:     item.HighestBidder,
	}
}
