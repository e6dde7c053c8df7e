package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/rl1809/auction/internal/core/domain"
	"github.com/rl1809/auction/internal/port"
)

const DefaultMaxRetries = 5

type BidResult struct {
	Outcome    domain.DecisionKind
	Item       domain.AuctionItem
	CurrentBid decimal.Decimal
	Winner     string
	Attempts   int
}

type CloseResult struct {
	Closed        bool // this call performed the transition
	AlreadyClosed bool
	StillOpen     bool
	Item          domain.AuctionItem
	Winner        string
}

type CreateAuctionInput struct {
	Seller      string
	ItemName    string
	Description string
	StartingBid decimal.Decimal
	ClosingTime time.Time
}

func (in CreateAuctionInput) Validate(now time.Time) error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Seller, validation.Required.Error("seller identity is required")),
		validation.Field(&in.ItemName,
			validation.Required.Error("item name is required"),
			validation.Length(1, 255),
		),
		validation.Field(&in.Description, validation.Required.Error("description is required")),
		validation.Field(&in.StartingBid, validation.By(func(value interface{}) error {
			amount := value.(decimal.Decimal)
			if amount.IsNegative() {
				return errors.New("starting bid cannot be negative")
			}
			if _, ok := domain.BoundedAmount(amount); !ok {
				return fmt.Errorf("starting bid cannot exceed %s", domain.MaxAmount.StringFixed(domain.MonetaryPrecision))
			}
			return nil
		})),
		validation.Field(&in.ClosingTime,
			validation.Required.Error("closing time is required"),
			validation.By(func(value interface{}) error {
				if !value.(time.Time).After(now) {
					return errors.New("closing time must be in the future")
				}
				return nil
			}),
		),
	)
}

// AuctionService is the lifecycle manager and the only writer of auction
// state. Every mutation is a version-guarded conditional write; lost races are
// re-arbitrated against fresh state.
type AuctionService struct {
	repo       port.AuctionRepository
	clock      port.Clock
	publisher  port.EventPublisher
	maxRetries int
}

// NewAuctionService builds the manager. maxRetries bounds the number of
// conditional-write retries after the first attempt; a negative value selects
// DefaultMaxRetries. A nil publisher disables events.
func NewAuctionService(repo port.AuctionRepository, clock port.Clock, publisher port.EventPublisher, maxRetries int) *AuctionService {
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}
	return &AuctionService{
		repo:       repo,
		clock:      clock,
		publisher:  publisher,
		maxRetries: maxRetries,
	}
}

func (s *AuctionService) CreateAuction(ctx context.Context, in CreateAuctionInput) (domain.AuctionItem, error) {
	in.Seller = strings.TrimSpace(in.Seller)
	in.ItemName = strings.TrimSpace(in.ItemName)
	in.Description = strings.TrimSpace(in.Description)
	// every store keeps microseconds
	in.ClosingTime = in.ClosingTime.UTC().Truncate(time.Microsecond)

	now := s.clock.Now()
	if err := in.Validate(now); err != nil {
		return domain.AuctionItem{}, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
	}

	startingBid, _ := domain.BoundedAmount(in.StartingBid)
	item := domain.AuctionItem{
		ID:          uuid.New().String(),
		ItemName:    in.ItemName,
		Description: in.Description,
		Seller:      in.Seller,
		StartingBid: startingBid,
		CurrentBid:  startingBid,
		ClosingTime: in.ClosingTime,
		Version:     0,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	id, err := s.repo.Create(ctx, item)
	if err != nil {
		return domain.AuctionItem{}, storeErr("create auction", err)
	}
	item.ID = id

	log.Info().
		Str("auction_id", id).
		Str("seller", item.Seller).
		Str("starting_bid", startingBid.StringFixed(domain.MonetaryPrecision)).
		Time("closing_time", item.ClosingTime).
		Msg("auction created")

	return item, nil
}

func (s *AuctionService) PlaceBid(ctx context.Context, itemID, bidder string, amount decimal.Decimal) (BidResult, error) {
	if itemID == "" || bidder == "" {
		return BidResult{}, fmt.Errorf("%w: item id and bidder identity are required", domain.ErrInvalidInput)
	}

	out, err := s.arbitrate(ctx, itemID, func(item domain.AuctionItem, now time.Time) domain.Decision {
		return domain.Decide(item, bidder, amount, now)
	})
	if err != nil {
		return BidResult{}, err
	}

	result := BidResult{
		Outcome:    out.decision.Kind,
		Item:       out.stored,
		CurrentBid: out.decision.CurrentBid,
		Winner:     out.decision.Winner,
		Attempts:   out.attempts,
	}

	level := zerolog.InfoLevel
	if result.Outcome.IsRejection() {
		level = zerolog.DebugLevel
	}
	log.WithLevel(level).
		Str("auction_id", itemID).
		Str("bidder", bidder).
		Str("amount", loggedAmount(amount)).
		Str("outcome", string(result.Outcome)).
		Int("attempts", result.Attempts).
		Msg("bid arbitrated")

	return result, nil
}

// loggedAmount never expands an out-of-range amount into its full digits.
func loggedAmount(amount decimal.Decimal) string {
	bounded, ok := domain.BoundedAmount(amount)
	if !ok {
		return "out_of_range"
	}
	return bounded.StringFixed(domain.MonetaryPrecision)
}

// CloseIfExpired flips an expired auction to closed. Closing an already closed
// auction is a successful no-op.
func (s *AuctionService) CloseIfExpired(ctx context.Context, itemID string) (CloseResult, error) {
	if itemID == "" {
		return CloseResult{}, fmt.Errorf("%w: item id is required", domain.ErrInvalidInput)
	}

	out, err := s.arbitrate(ctx, itemID, domain.DecideClose)
	if err != nil {
		return CloseResult{}, err
	}

	result := CloseResult{
		Closed:        out.committed,
		AlreadyClosed: out.decision.Kind == domain.DecisionRejectedClosed,
		StillOpen:     out.decision.Kind == domain.DecisionStillOpen,
		Item:          out.stored,
		Winner:        out.stored.Winner(),
	}

	if result.Closed {
		log.Info().
			Str("auction_id", itemID).
			Str("winner", out.stored.WinnerOrNone()).
			Msg("auction closed")
	}

	return result, nil
}

// SweepExpired closes every open auction whose deadline has passed so the
// closed flag converges even when nobody bids.
func (s *AuctionService) SweepExpired(ctx context.Context) (int, error) {
	items, err := s.repo.List(ctx, domain.ListFilter{ExpiredOnly: true, Now: s.clock.Now()})
	if err != nil {
		return 0, storeErr("list expired auctions", err)
	}

	var errs []error
	closed := 0
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return closed, err
		}

		res, err := s.CloseIfExpired(ctx, item.ID)
		if err != nil {
			log.Error().Err(err).Str("auction_id", item.ID).Msg("sweep: close failed")
			errs = append(errs, err)
			continue
		}
		if res.Closed {
			closed++
		}
	}

	return closed, errors.Join(errs...)
}

type arbitration struct {
	decision  domain.Decision
	stored    domain.AuctionItem
	attempts  int
	committed bool
}

// arbitrate runs load, decide, conditional write until the write lands, the
// decision needs no write, or the retry budget is spent.
func (s *AuctionService) arbitrate(ctx context.Context, itemID string, decide func(domain.AuctionItem, time.Time) domain.Decision) (arbitration, error) {
	for attempt := 1; attempt <= s.maxRetries+1; attempt++ {
		item, err := s.repo.Get(ctx, itemID)
		if err != nil {
			return arbitration{}, storeErr("load auction", err)
		}

		decision := decide(item, s.clock.Now())
		out := arbitration{decision: decision, stored: item, attempts: attempt}
		if !decision.Mutates() {
			return out, nil
		}

		// nothing has been written yet, so abandoning here has no side effect
		if err := ctx.Err(); err != nil {
			return arbitration{}, err
		}

		stored, err := s.repo.ConditionalUpdate(ctx, itemID, item.Version, decision.Next)
		if errors.Is(err, domain.ErrVersionConflict) {
			log.Debug().
				Str("auction_id", itemID).
				Int64("version", item.Version).
				Int("attempt", attempt).
				Msg("version conflict, retrying")
			continue
		}
		if err != nil {
			return arbitration{}, storeErr("conditional update", err)
		}

		out.stored = stored
		out.committed = true
		s.publish(ctx, item, stored, decision)
		return out, nil
	}

	log.Warn().
		Str("auction_id", itemID).
		Int("attempts", s.maxRetries+1).
		Msg("retry budget exhausted")

	return arbitration{}, fmt.Errorf("%w: %s after %d attempts", domain.ErrContention, itemID, s.maxRetries+1)
}

func (s *AuctionService) publish(ctx context.Context, before, after domain.AuctionItem, decision domain.Decision) {
	if s.publisher == nil {
		return
	}

	event := domain.AuctionEvent{
		ID:          uuid.New().String(),
		AuctionID:   after.ID,
		Amount:      after.CurrentBid,
		PreviousBid: before.CurrentBid,
		Winner:      after.HighestBidder,
		Version:     after.Version,
		Timestamp:   s.clock.Now(),
	}
	if decision.Kind == domain.DecisionAccepted {
		event.Type = domain.EventBidAccepted
		event.Bidder = after.HighestBidder
	} else {
		event.Type = domain.EventAuctionClosed
	}

	if err := s.publisher.Publish(ctx, event); err != nil {
		log.Warn().Err(err).
			Str("auction_id", after.ID).
			Str("event", string(event.Type)).
			Msg("failed to publish auction event")
	}
}

// storeErr classifies a store failure. Domain errors and caller cancellation
// pass through; anything else is an unavailable store.
func storeErr(op string, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	}

	log.Error().Err(err).Str("op", op).Msg("auction store failure")
	return fmt.Errorf("%w: %s: %w", domain.ErrStoreUnavailable, op, err)
}
