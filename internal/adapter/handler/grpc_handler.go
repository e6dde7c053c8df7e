package handler

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rl1809/auction/internal/core/domain"
	"github.com/rl1809/auction/internal/core/service"
)

var _ AuctionServiceServer = (*GRPCHandler)(nil)

type GRPCHandler struct {
	auctions *service.AuctionService
	queries  *service.QueryService
}

func NewGRPCHandler(auctions *service.AuctionService, queries *service.QueryService) *GRPCHandler {
	return &GRPCHandler{auctions: auctions, queries: queries}
}

func (h *GRPCHandler) CreateAuction(ctx context.Context, req *CreateAuctionRequest) (*AuctionView, error) {
	seller, _ := IdentityFrom(ctx)

	startingBid, err := decimal.NewFromString(req.StartingBid)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "starting bid: %v", err)
	}

	item, err := h.auctions.CreateAuction(ctx, service.CreateAuctionInput{
		Seller:      seller,
		ItemName:    req.ItemName,
		Description: req.Description,
		StartingBid: startingBid,
		ClosingTime: req.ClosingTime,
	})
	if err != nil {
		return nil, grpcError(err)
	}

	view := toView(item)
	return &view, nil
}

func (h *GRPCHandler) GetAuction(ctx context.Context, req *GetAuctionRequest) (*AuctionView, error) {
	item, err := h.queries.GetAuction(ctx, req.ID)
	if err != nil {
		return nil, grpcError(err)
	}

	view := toView(item)
	return &view, nil
}

func (h *GRPCHandler) ListAuctions(ctx context.Context, req *ListAuctionsRequest) (*ListAuctionsResponse, error) {
	items, err := h.queries.ListAuctions(ctx, service.ListQuery{
		ActiveOnly: req.ActiveOnly,
		Seller:     req.Seller,
		Limit:      req.Limit,
	})
	if err != nil {
		return nil, grpcError(err)
	}

	return &ListAuctionsResponse{Auctions: toViews(items)}, nil
}

// PlaceBid reports business rejections in the response, not as errors.
func (h *GRPCHandler) PlaceBid(ctx context.Context, req *PlaceBidRequest) (*PlaceBidResponse, error) {
	bidder, _ := IdentityFrom(ctx)

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return &PlaceBidResponse{
			Success: false,
			Outcome: string(domain.DecisionRejectedInvalidAmount),
			Message: outcomeMessage(domain.DecisionRejectedInvalidAmount),
		}, nil
	}

	res, err := h.auctions.PlaceBid(ctx, req.AuctionID, bidder, amount)
	if err != nil {
		return nil, grpcError(err)
	}

	resp := &PlaceBidResponse{
		Success:    res.Outcome == domain.DecisionAccepted,
		Outcome:    string(res.Outcome),
		Message:    outcomeMessage(res.Outcome),
		CurrentBid: string(money(res.CurrentBid)),
	}
	if res.Outcome == domain.DecisionAccepted || res.Outcome == domain.DecisionAutoClosed {
		view := toView(res.Item)
		resp.Auction = &view
	}
	if res.Outcome == domain.DecisionAutoClosed {
		resp.Winner = res.Item.WinnerOrNone()
	}

	return resp, nil
}

func (h *GRPCHandler) CloseAuction(ctx context.Context, req *CloseAuctionRequest) (*CloseAuctionResponse, error) {
	res, err := h.auctions.CloseIfExpired(ctx, req.ID)
	if err != nil {
		return nil, grpcError(err)
	}

	return &CloseAuctionResponse{
		Closed:        res.Closed,
		AlreadyClosed: res.AlreadyClosed,
		StillOpen:     res.StillOpen,
		Winner:        res.Item.WinnerOrNone(),
		Auction:       toView(res.Item),
	}, nil
}

func grpcError(err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return status.Error(codes.NotFound, "auction not found")
	case errors.Is(err, domain.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrContention):
		return status.Error(codes.Aborted, "auction is busy, retry")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}

	log.Error().Err(err).Msg("grpc request failed")
	return status.Error(codes.Unavailable, "auction store unavailable")
}
