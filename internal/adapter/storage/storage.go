package storage

import (
	"sort"

	"github.com/rl1809/auction/internal/core/domain"
)

// applyUpdate copies the mutable fields of next onto cur and bumps the version.
// Identity, descriptive text, seller, starting bid and deadline never change.
func applyUpdate(cur, next domain.AuctionItem) domain.AuctionItem {
	cur.CurrentBid = next.CurrentBid
	cur.HighestBidder = next.HighestBidder
	cur.IsClosed = next.IsClosed
	cur.UpdatedAt = next.UpdatedAt
	cur.Version++
	return cur
}

func sortByClosingTime(items []domain.AuctionItem) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].ClosingTime.Equal(items[j].ClosingTime) {
			return items[i].ID < items[j].ID
		}
		return items[i].ClosingTime.Before(items[j].ClosingTime)
	})
}

func limit(items []domain.AuctionItem, n int) []domain.AuctionItem {
	if n > 0 && len(items) > n {
		return items[:n]
	}
	return items
}
