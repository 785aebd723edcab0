package contracts

import (
	"context"
	"errors"
)

// ⭐ SSOT: Repository 인터페이스 정의는 여기서만

// ErrNotFound is returned when an id does not match a stored record.
var ErrNotFound = errors.New("not found")

// ErrInvalid is returned when a record violates a store constraint, such as a
// trade pointing at a missing portfolio.
var ErrInvalid = errors.New("invalid record")

// PortfolioRepository persists portfolios
type PortfolioRepository interface {
	List(ctx context.Context) ([]*Portfolio, error)
	Get(ctx context.Context, id string) (*Portfolio, error)
	Create(ctx context.Context, p *Portfolio) error
	Update(ctx context.Context, id string, u PortfolioUpdate) (*Portfolio, error)
	Delete(ctx context.Context, id string) error
}

// TradeRepository persists trades
type TradeRepository interface {
	List(ctx context.Context, filter TradeFilter) ([]*Trade, error)
	Get(ctx context.Context, id string) (*Trade, error)
	Create(ctx context.Context, t *Trade) error
	Update(ctx context.Context, id string, u TradeUpdate) (*Trade, error)
	Delete(ctx context.Context, id string) error
}
