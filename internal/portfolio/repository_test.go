package portfolio

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/hedgefund/internal/contracts"
	"github.com/wonny/hedgefund/pkg/config"
	"github.com/wonny/hedgefund/pkg/database"
	"github.com/wonny/hedgefund/pkg/id"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()

	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	cfg, err := config.Load()
	require.NoError(t, err)

	db, err := database.New(cfg)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	_, err = db.Migrate(context.Background())
	require.NoError(t, err)

	return NewRepository(db.Pool)
}

func TestRepository_CRUD(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	p := contracts.NewPortfolio(id.New(), "Integration", decimal.NewFromInt(50000), now)
	require.NoError(t, repo.Create(ctx, p))
	t.Cleanup(func() { _ = repo.Delete(ctx, p.ID) })

	got, err := repo.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Integration", got.Name)
	assert.True(t, got.Cash.Equal(decimal.NewFromInt(50000)))
	assert.Empty(t, got.Positions)

	name := "Renamed"
	positions := []contracts.Position{{
		Ticker: "AAPL", Long: decimal.NewFromInt(10), LongCostBasis: decimal.NewFromInt(150),
	}}
	updated, err := repo.Update(ctx, p.ID, contracts.PortfolioUpdate{Name: &name, Positions: &positions})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	require.Len(t, updated.Positions, 1)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, list)

	require.NoError(t, repo.Delete(ctx, p.ID))
	_, err = repo.Get(ctx, p.ID)
	assert.ErrorIs(t, err, contracts.ErrNotFound)
}

func TestRepository_MissingPortfolio(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	_, err := repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, contracts.ErrNotFound)

	_, err = repo.Update(ctx, "missing", contracts.PortfolioUpdate{})
	assert.ErrorIs(t, err, contracts.ErrNotFound)

	assert.ErrorIs(t, repo.Delete(ctx, "missing"), contracts.ErrNotFound)
}
