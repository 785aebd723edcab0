package analysis

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/hedgefund/pkg/config"
	"github.com/wonny/hedgefund/pkg/logger"
)

func TestNewRunner_SelectsByMode(t *testing.T) {
	cfg := &config.Config{Analysis: testAnalysisConfig()}

	cfg.Analysis.Mode = config.ModeProcess
	r, err := NewRunner(cfg, logger.Nop())
	require.NoError(t, err)
	assert.IsType(t, &Gateway{}, r)

	cfg.Analysis.Mode = config.ModeCanned
	r, err = NewRunner(cfg, logger.Nop())
	require.NoError(t, err)
	assert.IsType(t, &CannedRunner{}, r)

	cfg.Analysis.Mode = "bogus"
	_, err = NewRunner(cfg, logger.Nop())
	assert.Error(t, err)
}

func TestCannedRunner_DefaultResults(t *testing.T) {
	r := NewCannedRunner()

	res, err := r.RunAnalysis(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Contains(t, string(res), "Mock analysis for testing")

	res, err = r.RunBacktest(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Contains(t, string(res), "portfolio_values")
}

func TestCannedRunner_PortfolioScopedResults(t *testing.T) {
	r := NewCannedRunner()
	req := validRequest()
	req.PortfolioID = "p1"

	res, err := r.RunAnalysis(context.Background(), req)
	require.NoError(t, err)
	assert.Contains(t, string(res), "Mock portfolio analysis for testing")

	res, err = r.RunBacktest(context.Background(), req)
	require.NoError(t, err)
	assert.Contains(t, string(res), "Mock portfolio backtest for testing")
}

func TestCannedRunner_ValidatesLikeGateway(t *testing.T) {
	req := validRequest()
	req.EndDate = date("2000-01-01")

	_, err := NewCannedRunner().RunAnalysis(context.Background(), req)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestCannedRunner_StreamEmitsResultLine(t *testing.T) {
	var seen []string
	res, err := NewCannedRunner().Stream(context.Background(), KindBacktest, validRequest(), func(l string) {
		seen = append(seen, l)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{string(res)}, seen)
}

func TestLoadCannedRunner(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixtures.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
analysis:
  analysis:
    summary: from fixture
    decisions:
      - ticker: NVDA
        action: buy
portfolio_backtest:
  results:
    summary: portfolio fixture
`), 0o644))

	r, err := LoadCannedRunner(path)
	require.NoError(t, err)

	res, err := r.RunAnalysis(context.Background(), validRequest())
	require.NoError(t, err)
	assert.JSONEq(t, `{"analysis":{"summary":"from fixture","decisions":[{"ticker":"NVDA","action":"buy"}]}}`, string(res))

	// backtest falls back to the built-in fixture
	res, err = r.RunBacktest(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Contains(t, string(res), "Mock backtest for testing")

	scoped := validRequest()
	scoped.PortfolioID = "p1"
	res, err = r.RunBacktest(context.Background(), scoped)
	require.NoError(t, err)
	assert.JSONEq(t, `{"results":{"summary":"portfolio fixture"}}`, string(res))

	res, err = r.RunAnalysis(context.Background(), scoped)
	require.NoError(t, err)
	assert.Contains(t, string(res), "Mock portfolio analysis for testing")
}

func TestLoadCannedRunner_Errors(t *testing.T) {
	_, err := LoadCannedRunner(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("analysis: [unclosed"), 0o644))
	_, err = LoadCannedRunner(path)
	assert.Error(t, err)
}
