package storage

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/auction/internal/core/domain"
	"github.com/rl1809/auction/internal/port"
)

var contractNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func newTestItem(seller string, closing time.Time) domain.AuctionItem {
	return domain.AuctionItem{
		ID:          uuid.New().String(),
		ItemName:    "Vintage camera",
		Description: "35mm rangefinder",
		Seller:      seller,
		StartingBid: decimal.RequireFromString("10.00"),
		CurrentBid:  decimal.RequireFromString("10.00"),
		ClosingTime: closing,
		CreatedAt:   contractNow,
		UpdatedAt:   contractNow,
	}
}

// testRepositoryContract is run by every adapter against its own backend.
func testRepositoryContract(t *testing.T, repo port.AuctionRepository) {
	t.Run("CreateAndGet", func(t *testing.T) {
		ctx := context.Background()
		item := newTestItem("seller-"+uuid.New().String(), contractNow.Add(time.Hour))

		id, err := repo.Create(ctx, item)
		require.NoError(t, err)
		assert.Equal(t, item.ID, id)

		got, err := repo.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, item.ItemName, got.ItemName)
		assert.Equal(t, item.Description, got.Description)
		assert.Equal(t, item.Seller, got.Seller)
		assert.True(t, item.StartingBid.Equal(got.StartingBid))
		assert.True(t, item.CurrentBid.Equal(got.CurrentBid))
		assert.Empty(t, got.HighestBidder)
		assert.True(t, item.ClosingTime.Equal(got.ClosingTime))
		assert.False(t, got.IsClosed)
		assert.Equal(t, int64(0), got.Version)
	})

	t.Run("GetUnknown", func(t *testing.T) {
		_, err := repo.Get(context.Background(), uuid.New().String())
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("ConditionalUpdate", func(t *testing.T) {
		ctx := context.Background()
		item := newTestItem("seller-"+uuid.New().String(), contractNow.Add(time.Hour))
		id, err := repo.Create(ctx, item)
		require.NoError(t, err)

		next := item
		next.CurrentBid = decimal.RequireFromString("15.50")
		next.HighestBidder = "alice"
		next.ItemName = "rewritten" // immutable, must be ignored
		next.UpdatedAt = contractNow.Add(time.Minute)

		stored, err := repo.ConditionalUpdate(ctx, id, 0, next)
		require.NoError(t, err)
		assert.Equal(t, int64(1), stored.Version)
		assert.True(t, stored.CurrentBid.Equal(decimal.RequireFromString("15.50")))
		assert.Equal(t, "alice", stored.HighestBidder)

		got, err := repo.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.Version)
		assert.Equal(t, "Vintage camera", got.ItemName)
		assert.Equal(t, "alice", got.HighestBidder)

		// stale version loses
		stale := next
		stale.HighestBidder = "bob"
		_, err = repo.ConditionalUpdate(ctx, id, 0, stale)
		assert.ErrorIs(t, err, domain.ErrVersionConflict)

		got, err = repo.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "alice", got.HighestBidder)

		closed := got
		closed.IsClosed = true
		stored, err = repo.ConditionalUpdate(ctx, id, 1, closed)
		require.NoError(t, err)
		assert.True(t, stored.IsClosed)
		assert.Equal(t, int64(2), stored.Version)
	})

	t.Run("ConditionalUpdateUnknown", func(t *testing.T) {
		item := newTestItem("seller", contractNow.Add(time.Hour))
		_, err := repo.ConditionalUpdate(context.Background(), uuid.New().String(), 0, item)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("ConditionalUpdateConcurrent", func(t *testing.T) {
		ctx := context.Background()
		item := newTestItem("seller-"+uuid.New().String(), contractNow.Add(time.Hour))
		id, err := repo.Create(ctx, item)
		require.NoError(t, err)

		var wins, conflicts atomic.Int32
		var wg sync.WaitGroup
		concurrency := 20

		for i := 0; i < concurrency; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				next := item
				next.CurrentBid = decimal.NewFromInt(int64(20 + n))
				next.HighestBidder = "bidder"
				_, err := repo.ConditionalUpdate(ctx, id, 0, next)
				switch {
				case err == nil:
					wins.Add(1)
				case assert.ErrorIs(t, err, domain.ErrVersionConflict):
					conflicts.Add(1)
				}
			}(i)
		}
		wg.Wait()

		assert.Equal(t, int32(1), wins.Load())
		assert.Equal(t, int32(concurrency-1), conflicts.Load())

		got, err := repo.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.Version)
	})

	t.Run("ListOrderAndFilters", func(t *testing.T) {
		ctx := context.Background()
		seller := "seller-" + uuid.New().String()

		late := newTestItem(seller, contractNow.Add(3*time.Hour))
		early := newTestItem(seller, contractNow.Add(time.Hour))
		expired := newTestItem(seller, contractNow.Add(-time.Hour))
		closed := newTestItem(seller, contractNow.Add(2*time.Hour))

		for _, it := range []domain.AuctionItem{late, early, expired, closed} {
			_, err := repo.Create(ctx, it)
			require.NoError(t, err)
		}
		closedNext := closed
		closedNext.IsClosed = true
		_, err := repo.ConditionalUpdate(ctx, closed.ID, 0, closedNext)
		require.NoError(t, err)

		all, err := repo.List(ctx, domain.ListFilter{Seller: seller, Now: contractNow})
		require.NoError(t, err)
		assert.Equal(t, []string{expired.ID, early.ID, closed.ID, late.ID}, ids(all))

		active, err := repo.List(ctx, domain.ListFilter{Seller: seller, ActiveOnly: true, Now: contractNow})
		require.NoError(t, err)
		assert.Equal(t, []string{early.ID, late.ID}, ids(active))

		due, err := repo.List(ctx, domain.ListFilter{Seller: seller, ExpiredOnly: true, Now: contractNow})
		require.NoError(t, err)
		assert.Equal(t, []string{expired.ID}, ids(due))

		first, err := repo.List(ctx, domain.ListFilter{Seller: seller, Now: contractNow, Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, []string{expired.ID, early.ID}, ids(first))
	})
}

func ids(items []domain.AuctionItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}
