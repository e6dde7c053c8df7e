package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/auction/internal/adapter/clock"
	"github.com/rl1809/auction/internal/core/domain"
)

func TestQueryService_ListAuctions(t *testing.T) {
	f := newFixture(-1)
	ctx := context.Background()
	query := NewQueryService(f.repo, f.clock, nil)

	first := f.createAuction(t, "seller", "10")
	second, err := f.svc.CreateAuction(ctx, CreateAuctionInput{
		Seller:      "seller",
		ItemName:    "Late item",
		Description: "closes tomorrow",
		StartingBid: dec("1"),
		ClosingTime: testNow.Add(24 * time.Hour),
	})
	require.NoError(t, err)

	all, err := query.ListAuctions(ctx, ListQuery{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, first.ID, all[0].ID)
	assert.Equal(t, second.ID, all[1].ID)

	f.clock.Advance(time.Hour)

	active, err := query.ListAuctions(ctx, ListQuery{ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, second.ID, active[0].ID)
}

func TestQueryService_ListAuctionsBySellerAndLimit(t *testing.T) {
	f := newFixture(-1)
	ctx := context.Background()
	query := NewQueryService(f.repo, f.clock, nil)

	first := f.createAuction(t, "alice", "10")
	f.createAuction(t, "bob", "10")
	third := f.createAuction(t, "alice", "10")

	mine, err := query.ListAuctions(ctx, ListQuery{Seller: "alice"})
	require.NoError(t, err)
	require.Len(t, mine, 2)
	ids := []string{mine[0].ID, mine[1].ID}
	assert.ElementsMatch(t, []string{first.ID, third.ID}, ids)

	page, err := query.ListAuctions(ctx, ListQuery{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, page, 1)

	_, err = query.ListAuctions(ctx, ListQuery{Limit: -1})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = query.ListAuctions(ctx, ListQuery{Limit: MaxListLimit + 1})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestQueryService_GetAuctionLazyClose(t *testing.T) {
	f := newFixture(-1)
	ctx := context.Background()
	query := NewQueryService(f.repo, f.clock, f.svc)
	item := f.createAuction(t, "seller", "10")

	got, err := query.GetAuction(ctx, item.ID)
	require.NoError(t, err)
	assert.False(t, got.IsClosed)

	f.clock.Advance(time.Hour)

	got, err = query.GetAuction(ctx, item.ID)
	require.NoError(t, err)
	assert.True(t, got.IsClosed)
	assert.Equal(t, int64(1), got.Version)
}

func TestQueryService_GetAuctionWithoutCloser(t *testing.T) {
	f := newFixture(-1)
	query := NewQueryService(f.repo, f.clock, nil)
	item := f.createAuction(t, "seller", "10")

	f.clock.Advance(time.Hour)

	got, err := query.GetAuction(context.Background(), item.ID)
	require.NoError(t, err)
	assert.False(t, got.IsClosed)
}

func TestQueryService_Errors(t *testing.T) {
	f := newFixture(-1)
	query := NewQueryService(f.repo, f.clock, nil)

	_, err := query.GetAuction(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	broken := NewQueryService(failingRepo{}, clock.NewManual(testNow), nil)
	_, err = broken.ListAuctions(context.Background(), ListQuery{})
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)

	_, err = broken.GetAuction(context.Background(), "id")
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}
