package domain

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func openItem() AuctionItem {
	return AuctionItem{
		ID:          "item-1",
		ItemName:    "Lamp",
		Description: "brass desk lamp",
		Seller:      "seller",
		StartingBid: decimal.NewFromInt(10),
		CurrentBid:  decimal.NewFromInt(10),
		ClosingTime: baseTime.Add(time.Hour),
		Version:     3,
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestDecide(t *testing.T) {
	closed := openItem()
	closed.IsClosed = true

	withBid := openItem()
	withBid.CurrentBid = dec("15")
	withBid.HighestBidder = "alice"

	tests := []struct {
		name   string
		item   AuctionItem
		bidder string
		amount decimal.Decimal
		now    time.Time
		want   DecisionKind
	}{
		{"accept above current", openItem(), "alice", dec("15"), baseTime, DecisionAccepted},
		{"tie is too low", withBid, "bob", dec("15"), baseTime, DecisionRejectedTooLow},
		{"below current", withBid, "bob", dec("12"), baseTime, DecisionRejectedTooLow},
		{"seller bids", openItem(), "seller", dec("20"), baseTime, DecisionRejectedSelfBid},
		{"zero amount", openItem(), "alice", decimal.Zero, baseTime, DecisionRejectedInvalidAmount},
		{"negative amount", openItem(), "alice", dec("-5"), baseTime, DecisionRejectedInvalidAmount},
		{"rounds to zero", openItem(), "alice", dec("0.004"), baseTime, DecisionRejectedInvalidAmount},
		{"vanishing amount", openItem(), "alice", dec("1e-30000000"), baseTime, DecisionRejectedInvalidAmount},
		{"huge exponent", openItem(), "alice", dec("1e30000000"), baseTime, DecisionRejectedInvalidAmount},
		{"above column range", openItem(), "alice", dec("100000000000000000000"), baseTime, DecisionRejectedInvalidAmount},
		{"rounds above max", openItem(), "alice", dec("9999999999999999.995"), baseTime, DecisionRejectedInvalidAmount},
		{"max amount", openItem(), "alice", MaxAmount, baseTime, DecisionAccepted},
		{"already closed", closed, "alice", dec("50"), baseTime, DecisionRejectedClosed},
		{"deadline reached exactly", openItem(), "alice", dec("50"), baseTime.Add(time.Hour), DecisionAutoClosed},
		{"deadline passed", openItem(), "alice", dec("50"), baseTime.Add(2 * time.Hour), DecisionAutoClosed},
		{"one nanosecond before deadline", openItem(), "alice", dec("50"), baseTime.Add(time.Hour - 1), DecisionAccepted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(tt.item, tt.bidder, tt.amount, tt.now)
			assert.Equal(t, tt.want, d.Kind)
		})
	}
}

func TestDecide_RuleOrder(t *testing.T) {
	// every condition holds at once: closed wins
	item := openItem()
	item.IsClosed = true
	d := Decide(item, "seller", dec("-1"), baseTime.Add(2*time.Hour))
	assert.Equal(t, DecisionRejectedClosed, d.Kind)

	// expired beats self bid and invalid amount
	d = Decide(openItem(), "seller", dec("-1"), baseTime.Add(2*time.Hour))
	assert.Equal(t, DecisionAutoClosed, d.Kind)

	// self bid beats invalid amount
	d = Decide(openItem(), "seller", dec("-1"), baseTime)
	assert.Equal(t, DecisionRejectedSelfBid, d.Kind)

	// invalid amount beats too low
	d = Decide(openItem(), "alice", dec("-1"), baseTime)
	assert.Equal(t, DecisionRejectedInvalidAmount, d.Kind)
}

func TestDecide_Accept(t *testing.T) {
	item := openItem()
	d := Decide(item, "alice", dec("15.5"), baseTime)

	require.Equal(t, DecisionAccepted, d.Kind)
	assert.True(t, d.Mutates())
	assert.True(t, d.Next.CurrentBid.Equal(dec("15.5")))
	assert.Equal(t, "alice", d.Next.HighestBidder)
	assert.Equal(t, "alice", d.Winner)
	assert.Equal(t, item.Version, d.Next.Version, "version is bumped by the store, not the arbitrator")

	// input snapshot untouched
	assert.True(t, item.CurrentBid.Equal(dec("10")))
	assert.Empty(t, item.HighestBidder)
}

func TestDecide_TooLowCarriesCurrentBid(t *testing.T) {
	item := openItem()
	item.CurrentBid = dec("15")
	item.HighestBidder = "alice"

	d := Decide(item, "bob", dec("12"), baseTime)

	assert.Equal(t, DecisionRejectedTooLow, d.Kind)
	assert.False(t, d.Mutates())
	assert.True(t, d.CurrentBid.Equal(dec("15")))
}

func TestDecide_AutoCloseKeepsBid(t *testing.T) {
	item := openItem()
	item.CurrentBid = dec("30")
	item.HighestBidder = "alice"

	d := Decide(item, "bob", dec("100"), baseTime.Add(time.Hour))

	require.Equal(t, DecisionAutoClosed, d.Kind)
	assert.True(t, d.Mutates())
	assert.True(t, d.Next.IsClosed)
	assert.True(t, d.Next.CurrentBid.Equal(dec("30")), "no bid applied on auto close")
	assert.Equal(t, "alice", d.Next.HighestBidder)
	assert.Equal(t, "alice", d.Winner)
}

func TestDecideClose(t *testing.T) {
	open := openItem()

	d := DecideClose(open, baseTime)
	assert.Equal(t, DecisionStillOpen, d.Kind)
	assert.False(t, d.Mutates())

	d = DecideClose(open, baseTime.Add(time.Hour))
	assert.Equal(t, DecisionAutoClosed, d.Kind)
	assert.Empty(t, d.Winner)
	assert.Equal(t, NoWinner, d.Next.WinnerOrNone())

	closed := open
	closed.IsClosed = true
	d = DecideClose(closed, baseTime.Add(time.Hour))
	assert.Equal(t, DecisionRejectedClosed, d.Kind)
	assert.False(t, d.Mutates())
}

func TestListFilter_Match(t *testing.T) {
	open := openItem()
	expired := openItem()
	expired.ClosingTime = baseTime.Add(-time.Minute)
	closed := openItem()
	closed.IsClosed = true

	active := ListFilter{ActiveOnly: true, Now: baseTime}
	assert.True(t, active.Match(open))
	assert.False(t, active.Match(expired))
	assert.False(t, active.Match(closed))

	sweep := ListFilter{ExpiredOnly: true, Now: baseTime}
	assert.False(t, sweep.Match(open))
	assert.True(t, sweep.Match(expired))
	assert.False(t, sweep.Match(closed))

	bySeller := ListFilter{Seller: "someone-else"}
	assert.False(t, bySeller.Match(open))
}

func TestBoundedAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"10.005", "10.01", true},
		{"0", "0.00", true},
		{"0e30000000", "0.00", true},
		{"0.0009", "0.00", true},
		{"0.005", "0.01", true},
		{"-3.5", "-3.50", true},
		{"9999999999999999.99", "9999999999999999.99", true},
		{"9999999999999999.995", "", false},
		{"10000000000000000", "", false},
		{"-1e17", "", false},
		{"1e30000000", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := BoundedAmount(dec(tt.in))
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, got.StringFixed(MonetaryPrecision))
			}
		})
	}
}

func TestAmountFromFloat(t *testing.T) {
	_, ok := AmountFromFloat(math.NaN())
	assert.False(t, ok)
	_, ok = AmountFromFloat(math.Inf(1))
	assert.False(t, ok)

	amount, ok := AmountFromFloat(12.345)
	require.True(t, ok)
	assert.Equal(t, "12.35", amount.StringFixed(2))
}
