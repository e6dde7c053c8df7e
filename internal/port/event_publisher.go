package port

import (
	"context"

	"github.com/rl1809/auction/internal/core/domain"
)

type EventPublisher interface {
	// Publish emits an event for a committed change. Delivery is best effort
	Publish(ctx context.Context, event domain.AuctionEvent) error
}
