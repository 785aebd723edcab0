package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/hedgefund/internal/contracts"
	"github.com/wonny/hedgefund/internal/store/memory"
	"github.com/wonny/hedgefund/pkg/logger"
)

type failingRevaluer struct{}

func (failingRevaluer) Revalue(ctx context.Context) (int, error) {
	return 0, errors.New("db down")
}

func TestRevaluationJob_Run(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	p := contracts.NewPortfolio("p1", "Growth", decimal.NewFromInt(100000), time.Now())
	require.NoError(t, store.Portfolios().Create(ctx, p))

	positions := []contracts.Position{{
		Ticker:        "AAPL",
		Long:          decimal.NewFromInt(10),
		LongCostBasis: decimal.NewFromInt(150),
	}}
	_, err := store.Portfolios().Update(ctx, p.ID, contracts.PortfolioUpdate{Positions: &positions})
	require.NoError(t, err)

	job := NewRevaluationJob(store.Portfolios(), "0 30 16 * * 1-5", logger.Nop())
	assert.Equal(t, "portfolio_revaluation", job.Name())
	assert.Equal(t, "0 30 16 * * 1-5", job.Schedule())

	require.NoError(t, job.Run(ctx))

	got, err := store.Portfolios().Get(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.CurrentValue.Equal(decimal.NewFromInt(101500)), "currentValue %s", got.CurrentValue)
}

func TestRevaluationJob_RunFailure(t *testing.T) {
	job := NewRevaluationJob(failingRevaluer{}, "@daily", logger.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	err := job.Run(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
}
