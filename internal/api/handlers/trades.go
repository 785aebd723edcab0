package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/wonny/hedgefund/internal/contracts"
	"github.com/wonny/hedgefund/pkg/id"
	"github.com/wonny/hedgefund/pkg/logger"
)

// maxTradeLimit caps ?limit on trade listings.
const maxTradeLimit = 1000

// TradeHandler handles trade CRUD
// ⭐ SSOT: 거래 API 핸들러는 이 구조체에서만
type TradeHandler struct {
	repo   contracts.TradeRepository
	logger *logger.Logger
	now    func() time.Time
}

// NewTradeHandler creates a new trade handler
func NewTradeHandler(repo contracts.TradeRepository, log *logger.Logger) *TradeHandler {
	return &TradeHandler{
		repo:   repo,
		logger: log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateTradeRequest is the body of POST /api/trades
type CreateTradeRequest struct {
	PortfolioID  string                 `json:"portfolioId" validate:"required"`
	Ticker       string                 `json:"ticker" validate:"required"`
	Action       contracts.TradeAction  `json:"action" validate:"required,oneof=buy sell short cover"`
	Quantity     decimal.Decimal        `json:"quantity" validate:"required,gt=0"`
	Price        decimal.Decimal        `json:"price" validate:"required,gt=0"`
	RealizedGain decimal.Decimal        `json:"realizedGain"`
	Timestamp    *time.Time             `json:"timestamp"`
	Metadata     map[string]interface{} `json:"metadata"`
}

// List returns trades, optionally filtered
// GET /api/trades?portfolioId=&ticker=&limit=
func (h *TradeHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := contracts.TradeFilter{
		PortfolioID: q.Get("portfolioId"),
		Ticker:      strings.TrimSpace(q.Get("ticker")),
	}

	if limitStr := q.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = min(limit, maxTradeLimit)
	}

	trades, err := h.repo.List(r.Context(), filter)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list trades")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve trades")
		return
	}

	respondJSON(w, http.StatusOK, trades)
}

// Get returns one trade
// GET /api/trades/{id}
func (h *TradeHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, err := h.repo.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondStoreError(w, err, "Failed to retrieve trade")
		return
	}
	respondJSON(w, http.StatusOK, t)
}

// Create records a trade
// POST /api/trades
func (h *TradeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body CreateTradeRequest
	if err := decodeJSON(w, r, &body); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	t := &contracts.Trade{
		ID:           id.New(),
		PortfolioID:  body.PortfolioID,
		Timestamp:    h.now(),
		Ticker:       strings.TrimSpace(body.Ticker),
		Action:       body.Action,
		Quantity:     body.Quantity,
		Price:        body.Price,
		RealizedGain: body.RealizedGain,
		Metadata:     body.Metadata,
	}
	if body.Timestamp != nil {
		t.Timestamp = body.Timestamp.UTC()
	}
	if t.Metadata == nil {
		t.Metadata = map[string]interface{}{}
	}

	if err := h.repo.Create(r.Context(), t); err != nil {
		h.respondStoreError(w, err, "Failed to create trade")
		return
	}

	logger.FromContext(r.Context(), h.logger).WithFields(map[string]interface{}{
		"trade_id":     t.ID,
		"portfolio_id": t.PortfolioID,
		"ticker":       t.Ticker,
		"action":       string(t.Action),
	}).Info("Trade created")
	respondJSON(w, http.StatusCreated, t)
}

// Update changes ticker, action, quantity, price, realizedGain or metadata
// PUT /api/trades/{id}
func (h *TradeHandler) Update(w http.ResponseWriter, r *http.Request) {
	var body contracts.TradeUpdate
	if err := decodeJSON(w, r, &body); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validateTradeUpdate(&body); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	t, err := h.repo.Update(r.Context(), mux.Vars(r)["id"], body)
	if err != nil {
		h.respondStoreError(w, err, "Failed to update trade")
		return
	}

	respondJSON(w, http.StatusOK, t)
}

// Delete removes a trade
// DELETE /api/trades/{id}
func (h *TradeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.respondStoreError(w, err, "Failed to delete trade")
		return
	}
	respondMessage(w, "Trade deleted successfully")
}

// validateTradeUpdate checks set fields and trims the ticker.
func validateTradeUpdate(u *contracts.TradeUpdate) error {
	if u.Ticker != nil {
		ticker := strings.TrimSpace(*u.Ticker)
		if ticker == "" {
			return errors.New("ticker must not be empty")
		}
		u.Ticker = &ticker
	}
	if u.Action != nil && !u.Action.Valid() {
		return fmt.Errorf("action must be one of: buy, sell, short, cover")
	}
	if u.Quantity != nil && !u.Quantity.IsPositive() {
		return errors.New("quantity must be greater than 0")
	}
	if u.Price != nil && !u.Price.IsPositive() {
		return errors.New("price must be greater than 0")
	}
	return nil
}

func (h *TradeHandler) respondStoreError(w http.ResponseWriter, err error, message string) {
	switch {
	case errors.Is(err, contracts.ErrNotFound):
		respondError(w, http.StatusNotFound, "Trade not found")
	case errors.Is(err, contracts.ErrInvalid):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.WithError(err).Error(message)
		respondError(w, http.StatusInternalServerError, message)
	}
}
