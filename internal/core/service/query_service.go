package service

import (
	"context"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/rl1809/auction/internal/core/domain"
	"github.com/rl1809/auction/internal/port"
)

type Closer interface {
	CloseIfExpired(ctx context.Context, itemID string) (CloseResult, error)
}

// QueryService serves read projections. With a closer set, reading an
// expired but still open auction closes it first.
type QueryService struct {
	repo   port.AuctionRepository
	clock  port.Clock
	closer Closer
}

func NewQueryService(repo port.AuctionRepository, clock port.Clock, closer Closer) *QueryService {
	return &QueryService{repo: repo, clock: clock, closer: closer}
}

// MaxListLimit caps a single listing page.
const MaxListLimit = 500

type ListQuery struct {
	ActiveOnly bool
	Seller     string
	Limit      int // 0 means no limit
}

func (lq ListQuery) Validate() error {
	return validation.ValidateStruct(&lq,
		validation.Field(&lq.Limit, validation.Min(0), validation.Max(MaxListLimit)),
	)
}

func (q *QueryService) ListAuctions(ctx context.Context, lq ListQuery) ([]domain.AuctionItem, error) {
	if err := lq.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}

	items, err := q.repo.List(ctx, domain.ListFilter{
		ActiveOnly: lq.ActiveOnly,
		Now:        q.clock.Now(),
		Seller:     lq.Seller,
		Limit:      lq.Limit,
	})
	if err != nil {
		return nil, storeErr("list auctions", err)
	}
	return items, nil
}

func (q *QueryService) GetAuction(ctx context.Context, id string) (domain.AuctionItem, error) {
	item, err := q.repo.Get(ctx, id)
	if err != nil {
		return domain.AuctionItem{}, storeErr("get auction", err)
	}

	if q.closer != nil && !item.IsClosed && item.IsExpired(q.clock.Now()) {
		res, err := q.closer.CloseIfExpired(ctx, id)
		if err != nil {
			return domain.AuctionItem{}, err
		}
		return res.Item, nil
	}

	return item, nil
}
