package contracts

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// 금액은 JSON 숫자로 주고받는다 (문자열 아님)
	decimal.MarshalJSONWithoutQuotes = true
}

// Portfolio is a tracked investment portfolio
// ⭐ SSOT: 포트폴리오 도메인 타입은 여기서만 정의
type Portfolio struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	InitialCapital decimal.Decimal `json:"initialCapital"`
	CurrentValue   decimal.Decimal `json:"currentValue"`
	Cash           decimal.Decimal `json:"cash"`
	MarginUsed     decimal.Decimal `json:"marginUsed"`
	Positions      []Position      `json:"positions"`
	RealizedGains  []RealizedGain  `json:"realizedGains"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// Position is the long/short exposure to one ticker
type Position struct {
	Ticker          string          `json:"ticker"`
	Long            decimal.Decimal `json:"long"`
	Short           decimal.Decimal `json:"short"`
	LongCostBasis   decimal.Decimal `json:"longCostBasis"`
	ShortCostBasis  decimal.Decimal `json:"shortCostBasis"`
	ShortMarginUsed decimal.Decimal `json:"shortMarginUsed"`
}

// RealizedGain accumulates closed long/short P&L per ticker
type RealizedGain struct {
	Ticker string          `json:"ticker"`
	Long   decimal.Decimal `json:"long"`
	Short  decimal.Decimal `json:"short"`
}

// NewPortfolio creates an empty portfolio fully in cash.
func NewPortfolio(id, name string, initialCapital decimal.Decimal, now time.Time) *Portfolio {
	return &Portfolio{
		ID:             id,
		Name:           name,
		InitialCapital: initialCapital,
		CurrentValue:   initialCapital,
		Cash:           initialCapital,
		MarginUsed:     decimal.Zero,
		Positions:      []Position{},
		RealizedGains:  []RealizedGain{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// TotalValue returns cash plus long exposure minus short exposure, all at
// cost basis.
func (p *Portfolio) TotalValue() decimal.Decimal {
	total := p.Cash
	for _, pos := range p.Positions {
		if pos.Long.IsPositive() {
			total = total.Add(pos.Long.Mul(pos.LongCostBasis))
		}
		if pos.Short.IsPositive() {
			total = total.Sub(pos.Short.Mul(pos.ShortCostBasis))
		}
	}
	return total
}

// PortfolioUpdate lists the fields a client may change. Nil means unchanged.
type PortfolioUpdate struct {
	Name          *string         `json:"name"`
	Positions     *[]Position     `json:"positions"`
	RealizedGains *[]RealizedGain `json:"realizedGains"`
}

// Apply copies the set fields of u into p and bumps UpdatedAt.
func (p *Portfolio) Apply(u PortfolioUpdate, now time.Time) {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Positions != nil {
		p.Positions = *u.Positions
	}
	if u.RealizedGains != nil {
		p.RealizedGains = *u.RealizedGains
	}
	p.UpdatedAt = now
}
