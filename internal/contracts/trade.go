package contracts

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeAction is the side of a trade
type TradeAction string

const (
	TradeBuy   TradeAction = "buy"
	TradeSell  TradeAction = "sell"
	TradeShort TradeAction = "short"
	TradeCover TradeAction = "cover"
)

// Valid reports whether a is one of the known actions.
func (a TradeAction) Valid() bool {
	switch a {
	case TradeBuy, TradeSell, TradeShort, TradeCover:
		return true
	}
	return false
}

// Trade is an executed trade belonging to a portfolio
type Trade struct {
	ID           string                 `json:"id"`
	PortfolioID  string                 `json:"portfolioId"`
	Timestamp    time.Time              `json:"timestamp"`
	Ticker       string                 `json:"ticker"`
	Action       TradeAction            `json:"action"`
	Quantity     decimal.Decimal        `json:"quantity"`
	Price        decimal.Decimal        `json:"price"`
	RealizedGain decimal.Decimal        `json:"realizedGain"`
	Metadata     map[string]interface{} `json:"metadata"`
}

// Notional returns quantity × price.
func (t *Trade) Notional() decimal.Decimal {
	return t.Quantity.Mul(t.Price)
}

// TradeUpdate lists the fields a client may change. Nil means unchanged.
type TradeUpdate struct {
	Ticker       *string                `json:"ticker"`
	Action       *TradeAction           `json:"action"`
	Quantity     *decimal.Decimal       `json:"quantity"`
	Price        *decimal.Decimal       `json:"price"`
	RealizedGain *decimal.Decimal       `json:"realizedGain"`
	Metadata     map[string]interface{} `json:"metadata"`
}

// Apply copies the set fields of u into t.
func (t *Trade) Apply(u TradeUpdate) {
	if u.Ticker != nil {
		t.Ticker = *u.Ticker
	}
	if u.Action != nil {
		t.Action = *u.Action
	}
	if u.Quantity != nil {
		t.Quantity = *u.Quantity
	}
	if u.Price != nil {
		t.Price = *u.Price
	}
	if u.RealizedGain != nil {
		t.RealizedGain = *u.RealizedGain
	}
	if u.Metadata != nil {
		t.Metadata = u.Metadata
	}
}

// TradeFilter narrows a trade listing. Zero values match everything.
type TradeFilter struct {
	PortfolioID string
	Ticker      string
	Limit       int
}
