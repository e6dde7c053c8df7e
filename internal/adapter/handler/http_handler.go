package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/rl1809/auction/internal/core/domain"
	"github.com/rl1809/auction/internal/core/service"
)

const (
	retryAfterSeconds = 1
	maxBodyBytes      = 1 << 20
)

type HTTPHandler struct {
	auctions *service.AuctionService
	queries  *service.QueryService
	verifier TokenVerifier
}

type CreateAuctionHTTPRequest struct {
	ItemName    string          `json:"itemName"`
	Description string          `json:"description"`
	StartingBid decimal.Decimal `json:"startingBid"`
	ClosingTime time.Time       `json:"closingTime"`
}

type BidHTTPRequest struct {
	Bid decimal.Decimal `json:"bid"`
}

type BidHTTPResponse struct {
	Message    string       `json:"message"`
	Outcome    string       `json:"outcome"`
	CurrentBid json.Number  `json:"currentBid"`
	Winner     string       `json:"winner,omitempty"`
	Item       *AuctionView `json:"item,omitempty"`
}

type CloseHTTPResponse struct {
	Message string      `json:"message"`
	Winner  string      `json:"winner"`
	Item    AuctionView `json:"item"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func NewHTTPHandler(auctions *service.AuctionService, queries *service.QueryService, verifier TokenVerifier) *HTTPHandler {
	return &HTTPHandler{auctions: auctions, queries: queries, verifier: verifier}
}

func (h *HTTPHandler) Routes() *mux.Router {
	router := mux.NewRouter()
	router.Use(accessLog)

	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	router.HandleFunc("/auctions", h.ListAuctions).Methods(http.MethodGet)
	router.HandleFunc("/auctions/{id}", h.GetAuction).Methods(http.MethodGet)

	protected := router.NewRoute().Subrouter()
	protected.Use(authenticate(h.verifier))
	protected.HandleFunc("/auction", h.CreateAuction).Methods(http.MethodPost)
	protected.HandleFunc("/bid/{id}", h.PlaceBid).Methods(http.MethodPost)
	protected.HandleFunc("/auctions/{id}/close", h.CloseAuction).Methods(http.MethodPost)

	return router
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) CreateAuction(w http.ResponseWriter, r *http.Request) {
	seller, _ := IdentityFrom(r.Context())

	var req CreateAuctionHTTPRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.auctions.CreateAuction(r.Context(), service.CreateAuctionInput{
		Seller:      seller,
		ItemName:    req.ItemName,
		Description: req.Description,
		StartingBid: req.StartingBid,
		ClosingTime: req.ClosingTime,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Auction item created",
		"item":    toView(item),
	})
}

func (h *HTTPHandler) ListAuctions(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	lq := service.ListQuery{
		ActiveOnly: params.Get("active") == "true",
		Seller:     params.Get("seller"),
	}
	if raw := params.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "limit must be a number")
			return
		}
		lq.Limit = limit
	}

	items, err := h.queries.ListAuctions(r.Context(), lq)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toViews(items))
}

func (h *HTTPHandler) GetAuction(w http.ResponseWriter, r *http.Request) {
	item, err := h.queries.GetAuction(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toView(item))
}

func (h *HTTPHandler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	bidder, _ := IdentityFrom(r.Context())

	var req BidHTTPRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "Valid bid amount required")
		return
	}

	res, err := h.auctions.PlaceBid(r.Context(), mux.Vars(r)["id"], bidder, req.Bid)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := BidHTTPResponse{
		Message:    outcomeMessage(res.Outcome),
		Outcome:    string(res.Outcome),
		CurrentBid: money(res.CurrentBid),
	}
	switch res.Outcome {
	case domain.DecisionAccepted:
		view := toView(res.Item)
		resp.Item = &view
	case domain.DecisionAutoClosed:
		view := toView(res.Item)
		resp.Item = &view
		resp.Winner = res.Item.WinnerOrNone()
	}

	writeJSON(w, bidStatus(res.Outcome), resp)
}

func (h *HTTPHandler) CloseAuction(w http.ResponseWriter, r *http.Request) {
	res, err := h.auctions.CloseIfExpired(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}

	status, message := http.StatusOK, "Auction closed"
	switch {
	case res.AlreadyClosed:
		message = "Auction already closed"
	case res.StillOpen:
		status, message = http.StatusConflict, "Auction is still open"
	}

	writeJSON(w, status, CloseHTTPResponse{
		Message: message,
		Winner:  res.Item.WinnerOrNone(),
		Item:    toView(res.Item),
	})
}

func bidStatus(kind domain.DecisionKind) int {
	switch kind {
	case domain.DecisionAccepted, domain.DecisionAutoClosed:
		return http.StatusOK
	case domain.DecisionRejectedSelfBid:
		return http.StatusForbidden
	case domain.DecisionRejectedInvalidAmount:
		return http.StatusBadRequest
	case domain.DecisionRejectedTooLow, domain.DecisionRejectedClosed:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "Auction not found")
	case errors.Is(err, domain.ErrInvalidInput):
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrContention):
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
		writeMessage(w, http.StatusServiceUnavailable, "Auction is busy, retry")
	default:
		log.Error().Err(err).Msg("request failed")
		writeMessage(w, http.StatusInternalServerError, "Internal Server Error")
	}
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, messageResponse{Message: message})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
