package handler

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/auction/internal/core/domain"
)

// AuctionView is the read projection served by both transports.
type AuctionView struct {
	ID            string      `json:"id"`
	ItemName      string      `json:"itemName"`
	Description   string      `json:"description"`
	Seller        string      `json:"seller"`
	StartingBid   json.Number `json:"startingBid"`
	CurrentBid    json.Number `json:"currentBid"`
	HighestBidder string      `json:"highestBidder"`
	ClosingTime   time.Time   `json:"closingTime"`
	IsClosed      bool        `json:"isClosed"`
	Version       int64       `json:"version"`
}

func toView(item domain.AuctionItem) AuctionView {
	return AuctionView{
		ID:            item.ID,
		ItemName:      item.ItemName,
		Description:   item.Description,
		Seller:        item.Seller,
		StartingBid:   money(item.StartingBid),
		CurrentBid:    money(item.CurrentBid),
		HighestBidder: item.HighestBidder,
		ClosingTime:   item.ClosingTime,
		IsClosed:      item.IsClosed,
		Version:       item.Version,
	}
}

func toViews(items []domain.AuctionItem) []AuctionView {
	views := make([]AuctionView, 0, len(items))
	for _, item := range items {
		views = append(views, toView(item))
	}
	return views
}

func money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(domain.MonetaryPrecision))
}

// outcomeMessage is the human readable text for a bid outcome.
func outcomeMessage(kind domain.DecisionKind) string {
	switch kind {
	case domain.DecisionAccepted:
		return "Bid successful"
	case domain.DecisionAutoClosed:
		return "Auction closed"
	case domain.DecisionRejectedClosed:
		return "Auction is closed"
	case domain.DecisionRejectedSelfBid:
		return "Cannot bid on your own auction"
	case domain.DecisionRejectedInvalidAmount:
		return "Valid bid amount required"
	case domain.DecisionRejectedTooLow:
		return "Bid too low"
	}
	return string(kind)
}
