package portfolio

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/hedgefund/internal/contracts"
	"github.com/wonny/hedgefund/pkg/database"
)

// Repository handles portfolio data persistence
// ⭐ SSOT: Portfolio 데이터 저장/조회는 여기서만
type Repository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

var _ contracts.PortfolioRepository = (*Repository)(nil)

// NewRepository creates a new portfolio repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, now: time.Now}
}

const selectColumns = `
	id, name, initial_capital, current_value, cash, margin_used,
	positions, realized_gains, created_at, updated_at
`

// List returns all portfolios, newest first
func (r *Repository) List(ctx context.Context) ([]*contracts.Portfolio, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+selectColumns+` FROM portfolios ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolios: %w", err)
	}
	defer rows.Close()

	portfolios := make([]*contracts.Portfolio, 0)
	for rows.Next() {
		p, err := scanPortfolio(rows)
		if err != nil {
			return nil, err
		}
		portfolios = append(portfolios, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return portfolios, nil
}

// Get returns a portfolio by id
func (r *Repository) Get(ctx context.Context, id string) (*contracts.Portfolio, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM portfolios WHERE id = $1`, id)
	p, err := scanPortfolio(row)
	if database.IsNoRows(err) {
		return nil, fmt.Errorf("portfolio %s: %w", id, contracts.ErrNotFound)
	}
	return p, err
}

// Create inserts p as is. Callers build it with contracts.NewPortfolio.
func (r *Repository) Create(ctx context.Context, p *contracts.Portfolio) error {
	positions, realized, err := encodeHoldings(p)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO portfolios (
			id, name, initial_capital, current_value, cash, margin_used,
			positions, realized_gains, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = r.pool.Exec(ctx, query,
		p.ID, p.Name, p.InitialCapital, p.CurrentValue, p.Cash, p.MarginUsed,
		positions, realized, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert portfolio: %w", err)
	}

	return nil
}

// Update applies u under a row lock and returns the stored result.
func (r *Repository) Update(ctx context.Context, id string, u contracts.PortfolioUpdate) (*contracts.Portfolio, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+selectColumns+` FROM portfolios WHERE id = $1 FOR UPDATE`, id)
	p, err := scanPortfolio(row)
	if database.IsNoRows(err) {
		return nil, fmt.Errorf("portfolio %s: %w", id, contracts.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	p.Apply(u, r.now())

	positions, realized, err := encodeHoldings(p)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE portfolios
		SET name = $2, positions = $3, realized_gains = $4, updated_at = $5
		WHERE id = $1
	`, p.ID, p.Name, positions, realized, p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to update portfolio: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return p, nil
}

// Delete removes a portfolio and, through the foreign key, its trades.
func (r *Repository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM portfolios WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete portfolio: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("portfolio %s: %w", id, contracts.ErrNotFound)
	}
	return nil
}

// Revalue recomputes current_value from cash and positions for every
// portfolio and returns how many rows changed.
func (r *Repository) Revalue(ctx context.Context) (int, error) {
	portfolios, err := r.List(ctx)
	if err != nil {
		return 0, err
	}

	batch := &pgx.Batch{}
	now := r.now()
	for _, p := range portfolios {
		total := p.TotalValue()
		if total.Equal(p.CurrentValue) {
			continue
		}
		batch.Queue(`UPDATE portfolios SET current_value = $2, updated_at = $3 WHERE id = $1`,
			p.ID, total, now)
	}

	if batch.Len() == 0 {
		return 0, nil
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	changed := 0
	for i := 0; i < batch.Len(); i++ {
		tag, err := results.Exec()
		if err != nil {
			return changed, fmt.Errorf("failed to revalue portfolio: %w", err)
		}
		changed += int(tag.RowsAffected())
	}

	return changed, nil
}

func scanPortfolio(row pgx.Row) (*contracts.Portfolio, error) {
	var (
		p         contracts.Portfolio
		positions []byte
		realized  []byte
	)

	err := row.Scan(
		&p.ID, &p.Name, &p.InitialCapital, &p.CurrentValue, &p.Cash, &p.MarginUsed,
		&positions, &realized, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan portfolio: %w", err)
	}

	if err := decodeHoldings(&p, positions, realized); err != nil {
		return nil, err
	}

	return &p, nil
}

func encodeHoldings(p *contracts.Portfolio) ([]byte, []byte, error) {
	positions := p.Positions
	if positions == nil {
		positions = []contracts.Position{}
	}
	realized := p.RealizedGains
	if realized == nil {
		realized = []contracts.RealizedGain{}
	}

	posJSON, err := json.Marshal(positions)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode positions: %w", err)
	}
	realizedJSON, err := json.Marshal(realized)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode realized gains: %w", err)
	}

	return posJSON, realizedJSON, nil
}

func decodeHoldings(p *contracts.Portfolio, positions, realized []byte) error {
	p.Positions = []contracts.Position{}
	p.RealizedGains = []contracts.RealizedGain{}

	if len(positions) > 0 {
		if err := json.Unmarshal(positions, &p.Positions); err != nil {
			return fmt.Errorf("failed to decode positions: %w", err)
		}
	}
	if len(realized) > 0 {
		if err := json.Unmarshal(realized, &p.RealizedGains); err != nil {
			return fmt.Errorf("failed to decode realized gains: %w", err)
		}
	}
	return nil
}
