package domain

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// MonetaryPrecision is the number of decimal places kept for bid amounts.
const MonetaryPrecision int32 = 2

// maxIntegerDigits matches the DECIMAL(18,2) columns of the SQL stores.
const maxIntegerDigits = 16

// MaxAmount is the largest amount every store can hold.
var MaxAmount = decimal.RequireFromString("9999999999999999.99")

const NoWinner = "No winner"

type AuctionItem struct {
	ID            string
	ItemName      string
	Description   string
	Seller        string
	StartingBid   decimal.Decimal
	CurrentBid    decimal.Decimal
	HighestBidder string
	ClosingTime   time.Time
	IsClosed      bool
	Version       int64 // optimistic locking
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsExpired reports whether the deadline has passed. Time, not IsClosed, is
// authoritative for accepting bids.
func (a AuctionItem) IsExpired(now time.Time) bool {
	return !now.Before(a.ClosingTime)
}

func (a AuctionItem) IsActive(now time.Time) bool {
	return !a.IsClosed && !a.IsExpired(now)
}

func (a AuctionItem) HasBids() bool {
	return a.HighestBidder != ""
}

// Winner is the highest bidder, empty when nobody bid.
func (a AuctionItem) Winner() string {
	return a.HighestBidder
}

func (a AuctionItem) WinnerOrNone() string {
	if !a.HasBids() {
		return NoWinner
	}
	return a.HighestBidder
}

type ListFilter struct {
	ActiveOnly  bool
	ExpiredOnly bool // open items whose deadline has passed
	Now         time.Time
	Seller      string
	Limit       int
}

// Match applies the filter to a single item. Stores that cannot push the
// predicate down to the backend use it after loading.
func (f ListFilter) Match(a AuctionItem) bool {
	if f.Seller != "" && a.Seller != f.Seller {
		return false
	}
	if f.ActiveOnly && !a.IsActive(f.Now) {
		return false
	}
	if f.ExpiredOnly && (a.IsClosed || !a.IsExpired(f.Now)) {
		return false
	}
	return true
}

func NormalizeAmount(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(MonetaryPrecision)
}

// BoundedAmount normalizes amount and reports whether its magnitude fits
// MaxAmount. The magnitude is read from the digit count and exponent before
// any rounding, since rescaling 1e30000000 allocates the whole expansion.
func BoundedAmount(amount decimal.Decimal) (decimal.Decimal, bool) {
	if amount.IsZero() {
		return decimal.Zero, true
	}

	magnitude := amount.NumDigits() + int(amount.Exponent())
	if magnitude > maxIntegerDigits {
		return decimal.Zero, false
	}
	// below 0.001 everything rounds to zero
	if magnitude < -int(MonetaryPrecision) {
		return decimal.Zero, true
	}

	amount = NormalizeAmount(amount)
	if amount.Abs().GreaterThan(MaxAmount) {
		return decimal.Zero, false
	}
	return amount, true
}

// AmountFromFloat converts a float amount, refusing NaN and infinities which
// decimal.NewFromFloat cannot represent.
func AmountFromFloat(f float64) (decimal.Decimal, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, false
	}
	return NormalizeAmount(decimal.NewFromFloat(f)), true
}
