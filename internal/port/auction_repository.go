package port

import (
	"context"

	"github.com/rl1809/auction/internal/core/domain"
)

type AuctionRepository interface {
	// Get returns the current item including its version, or domain.ErrNotFound
	Get(ctx context.Context, id string) (domain.AuctionItem, error)

	// ConditionalUpdate writes next only if the stored version still equals
	// expectedVersion, bumping the version by one. Returns the stored item,
	// domain.ErrVersionConflict or domain.ErrNotFound
	ConditionalUpdate(ctx context.Context, id string, expectedVersion int64, next domain.AuctionItem) (domain.AuctionItem, error)

	// Create persists a new item at version 0 and returns its id
	Create(ctx context.Context, item domain.AuctionItem) (string, error)

	// List returns items matching filter ordered by closing time ascending
	List(ctx context.Context, filter domain.ListFilter) ([]domain.AuctionItem, error)
}
