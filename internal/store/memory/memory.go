// Package memory keeps portfolios and trades in process memory. The API uses
// it in the test environment when no database is configured.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wonny/hedgefund/internal/contracts"
)

// Store holds both collections behind one lock so trade creation can check
// the portfolio and portfolio deletion can cascade.
type Store struct {
	mu         sync.RWMutex
	portfolios map[string]*contracts.Portfolio
	trades     map[string]*contracts.Trade
	now        func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		portfolios: make(map[string]*contracts.Portfolio),
		trades:     make(map[string]*contracts.Trade),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Portfolios returns the portfolio repository view.
func (s *Store) Portfolios() *PortfolioRepository { return &PortfolioRepository{s: s} }

// Trades returns the trade repository view.
func (s *Store) Trades() *TradeRepository { return &TradeRepository{s: s} }

// PortfolioRepository implements contracts.PortfolioRepository over a Store
type PortfolioRepository struct{ s *Store }

// TradeRepository implements contracts.TradeRepository over a Store
type TradeRepository struct{ s *Store }

var (
	_ contracts.PortfolioRepository = (*PortfolioRepository)(nil)
	_ contracts.TradeRepository     = (*TradeRepository)(nil)
)

func (r *PortfolioRepository) List(ctx context.Context) ([]*contracts.Portfolio, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*contracts.Portfolio, 0, len(r.s.portfolios))
	for _, p := range r.s.portfolios {
		out = append(out, clonePortfolio(p))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *PortfolioRepository) Get(ctx context.Context, id string) (*contracts.Portfolio, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.portfolios[id]
	if !ok {
		return nil, fmt.Errorf("portfolio %s: %w", id, contracts.ErrNotFound)
	}
	return clonePortfolio(p), nil
}

func (r *PortfolioRepository) Create(ctx context.Context, p *contracts.Portfolio) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.portfolios[p.ID]; ok {
		return fmt.Errorf("%w: portfolio %s already exists", contracts.ErrInvalid, p.ID)
	}
	r.s.portfolios[p.ID] = clonePortfolio(p)
	return nil
}

func (r *PortfolioRepository) Update(ctx context.Context, id string, u contracts.PortfolioUpdate) (*contracts.Portfolio, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.portfolios[id]
	if !ok {
		return nil, fmt.Errorf("portfolio %s: %w", id, contracts.ErrNotFound)
	}
	p.Apply(u, r.s.now())
	p.Positions = append([]contracts.Position(nil), p.Positions...)
	p.RealizedGains = append([]contracts.RealizedGain(nil), p.RealizedGains...)
	return clonePortfolio(p), nil
}

// Delete removes a portfolio and its trades.
func (r *PortfolioRepository) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.portfolios[id]; !ok {
		return fmt.Errorf("portfolio %s: %w", id, contracts.ErrNotFound)
	}
	delete(r.s.portfolios, id)
	for tid, t := range r.s.trades {
		if t.PortfolioID == id {
			delete(r.s.trades, tid)
		}
	}
	return nil
}

// Revalue recomputes every portfolio's current value.
func (r *PortfolioRepository) Revalue(ctx context.Context) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	changed := 0
	now := r.s.now()
	for _, p := range r.s.portfolios {
		total := p.TotalValue()
		if !total.Equal(p.CurrentValue) {
			p.CurrentValue = total
			p.UpdatedAt = now
			changed++
		}
	}
	return changed, nil
}

func (r *TradeRepository) List(ctx context.Context, filter contracts.TradeFilter) ([]*contracts.Trade, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*contracts.Trade, 0)
	for _, t := range r.s.trades {
		if filter.PortfolioID != "" && t.PortfolioID != filter.PortfolioID {
			continue
		}
		if filter.Ticker != "" && t.Ticker != filter.Ticker {
			continue
		}
		out = append(out, cloneTrade(t))
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID > out[j].ID
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *TradeRepository) Get(ctx context.Context, id string) (*contracts.Trade, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	t, ok := r.s.trades[id]
	if !ok {
		return nil, fmt.Errorf("trade %s: %w", id, contracts.ErrNotFound)
	}
	return cloneTrade(t), nil
}

func (r *TradeRepository) Create(ctx context.Context, t *contracts.Trade) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.portfolios[t.PortfolioID]; !ok {
		return fmt.Errorf("%w: portfolio %s does not exist", contracts.ErrInvalid, t.PortfolioID)
	}
	if _, ok := r.s.trades[t.ID]; ok {
		return fmt.Errorf("%w: trade %s already exists", contracts.ErrInvalid, t.ID)
	}
	r.s.trades[t.ID] = cloneTrade(t)
	return nil
}

func (r *TradeRepository) Update(ctx context.Context, id string, u contracts.TradeUpdate) (*contracts.Trade, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.trades[id]
	if !ok {
		return nil, fmt.Errorf("trade %s: %w", id, contracts.ErrNotFound)
	}
	t.Apply(u)
	t.Metadata = cloneMetadata(t.Metadata)
	return cloneTrade(t), nil
}

func (r *TradeRepository) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.trades[id]; !ok {
		return fmt.Errorf("trade %s: %w", id, contracts.ErrNotFound)
	}
	delete(r.s.trades, id)
	return nil
}

func clonePortfolio(p *contracts.Portfolio) *contracts.Portfolio {
	c := *p
	c.Positions = append(make([]contracts.Position, 0, len(p.Positions)), p.Positions...)
	c.RealizedGains = append(make([]contracts.RealizedGain, 0, len(p.RealizedGains)), p.RealizedGains...)
	return &c
}

func cloneTrade(t *contracts.Trade) *contracts.Trade {
	c := *t
	c.Metadata = cloneMetadata(t.Metadata)
	return &c
}

// cloneMetadata copies the top level only; nested values are shared.
func cloneMetadata(m map[string]interface{}) map[string]interface{} {
	c := make(map[string]interface{}, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
