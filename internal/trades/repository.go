package trades

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/hedgefund/internal/contracts"
	"github.com/wonny/hedgefund/pkg/database"
)

// foreignKeyViolation is the Postgres SQLSTATE for a missing referenced row.
const foreignKeyViolation = "23503"

// Repository handles trade data persistence
// ⭐ SSOT: Trade 데이터 저장/조회는 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

var _ contracts.TradeRepository = (*Repository)(nil)

// NewRepository creates a new trade repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const selectColumns = `
	id, portfolio_id, timestamp, ticker, action, quantity, price, realized_gain, metadata
`

// List returns trades matching filter, newest first
func (r *Repository) List(ctx context.Context, filter contracts.TradeFilter) ([]*contracts.Trade, error) {
	query, args := listQuery(filter)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	trades := make([]*contracts.Trade, 0)
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return trades, nil
}

// listQuery builds the filtered SELECT with positional arguments.
func listQuery(filter contracts.TradeFilter) (string, []interface{}) {
	var (
		where []string
		args  []interface{}
	)

	if filter.PortfolioID != "" {
		args = append(args, filter.PortfolioID)
		where = append(where, fmt.Sprintf("portfolio_id = $%d", len(args)))
	}
	if filter.Ticker != "" {
		args = append(args, filter.Ticker)
		where = append(where, fmt.Sprintf("ticker = $%d", len(args)))
	}

	query := `SELECT ` + selectColumns + ` FROM trades`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY timestamp DESC, id DESC`

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	return query, args
}

// Get returns a trade by id
func (r *Repository) Get(ctx context.Context, id string) (*contracts.Trade, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM trades WHERE id = $1`, id)
	t, err := scanTrade(row)
	if database.IsNoRows(err) {
		return nil, fmt.Errorf("trade %s: %w", id, contracts.ErrNotFound)
	}
	return t, err
}

// Create inserts t. The referenced portfolio must exist.
func (r *Repository) Create(ctx context.Context, t *contracts.Trade) error {
	metadata, err := encodeMetadata(t.Metadata)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO trades (
			id, portfolio_id, timestamp, ticker, action, quantity, price, realized_gain, metadata
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err = r.pool.Exec(ctx, query,
		t.ID, t.PortfolioID, t.Timestamp, t.Ticker, string(t.Action),
		t.Quantity, t.Price, t.RealizedGain, metadata,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return fmt.Errorf("%w: portfolio %s does not exist", contracts.ErrInvalid, t.PortfolioID)
		}
		return fmt.Errorf("failed to insert trade: %w", err)
	}

	return nil
}

// Update applies u under a row lock and returns the stored result.
func (r *Repository) Update(ctx context.Context, id string, u contracts.TradeUpdate) (*contracts.Trade, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+selectColumns+` FROM trades WHERE id = $1 FOR UPDATE`, id)
	t, err := scanTrade(row)
	if database.IsNoRows(err) {
		return nil, fmt.Errorf("trade %s: %w", id, contracts.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	t.Apply(u)

	metadata, err := encodeMetadata(t.Metadata)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE trades
		SET ticker = $2, action = $3, quantity = $4, price = $5, realized_gain = $6, metadata = $7
		WHERE id = $1
	`, t.ID, t.Ticker, string(t.Action), t.Quantity, t.Price, t.RealizedGain, metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to update trade: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return t, nil
}

// Delete removes a trade
func (r *Repository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM trades WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete trade: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("trade %s: %w", id, contracts.ErrNotFound)
	}
	return nil
}

func scanTrade(row pgx.Row) (*contracts.Trade, error) {
	var (
		t        contracts.Trade
		action   string
		metadata []byte
	)

	err := row.Scan(
		&t.ID, &t.PortfolioID, &t.Timestamp, &t.Ticker, &action,
		&t.Quantity, &t.Price, &t.RealizedGain, &metadata,
	)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan trade: %w", err)
	}
	t.Action = contracts.TradeAction(action)

	t.Metadata = map[string]interface{}{}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &t.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata: %w", err)
		}
	}

	return &t, nil
}

func encodeMetadata(m map[string]interface{}) ([]byte, error) {
	if m == nil {
		m = map[string]interface{}{}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	return data, nil
}
