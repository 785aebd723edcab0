package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wonny/hedgefund/pkg/config"
	"github.com/wonny/hedgefund/pkg/logger"
)

// Runner is the analysis capability the HTTP layer depends on. The process
// backed Gateway and CannedRunner both satisfy it; which one is used is
// decided once at startup.
type Runner interface {
	RunAnalysis(ctx context.Context, req Request) (json.RawMessage, error)
	RunBacktest(ctx context.Context, req Request) (json.RawMessage, error)
	Stream(ctx context.Context, kind Kind, req Request, onLine LineFunc) (json.RawMessage, error)
}

var (
	_ Runner = (*Gateway)(nil)
	_ Runner = (*CannedRunner)(nil)
)

// NewRunner selects the runner for cfg.Analysis.Mode.
func NewRunner(cfg *config.Config, log *logger.Logger) (Runner, error) {
	switch cfg.Analysis.Mode {
	case config.ModeProcess:
		invoker := NewProcessInvoker(cfg.Analysis.Timeout)
		return NewGateway(cfg.Analysis, invoker, log), nil

	case config.ModeCanned:
		if cfg.Analysis.FixturesPath != "" {
			return LoadCannedRunner(cfg.Analysis.FixturesPath)
		}
		return NewCannedRunner(), nil

	default:
		return nil, fmt.Errorf("unknown analysis mode %q", cfg.Analysis.Mode)
	}
}

// CannedRunner returns fixed results without spawning anything. Requests
// carrying a PortfolioID get the portfolio-scoped fixtures.
type CannedRunner struct {
	results   map[Kind]json.RawMessage
	portfolio map[Kind]json.RawMessage
}

const cannedAnalysis = `{"analysis":{"summary":"Mock analysis for testing","decisions":[` +
	`{"ticker":"AAPL","action":"buy","reason":"Testing"},` +
	`{"ticker":"GOOGL","action":"hold","reason":"Testing"},` +
	`{"ticker":"MSFT","action":"sell","reason":"Testing"}]}}`

const cannedBacktest = `{"results":{"summary":"Mock backtest for testing",` +
	`"portfolio_values":[100000,102000,105000],"trades":[` +
	`{"ticker":"AAPL","action":"buy","quantity":10,"price":150,"timestamp":"2024-01-05"},` +
	`{"ticker":"GOOGL","action":"buy","quantity":5,"price":2500,"timestamp":"2024-01-10"},` +
	`{"ticker":"AAPL","action":"sell","quantity":5,"price":160,"timestamp":"2024-01-20"}]}}`

const (
	cannedPortfolioAnalysis = `{"analysis":{"summary":"Mock portfolio analysis for testing","decisions":[` +
		`{"ticker":"AAPL","action":"buy","reason":"Testing"},` +
		`{"ticker":"GOOGL","action":"hold","reason":"Testing"},` +
		`{"ticker":"MSFT","action":"sell","reason":"Testing"}]}}`

	cannedPortfolioBacktest = `{"results":{"summary":"Mock portfolio backtest for testing",` +
		`"portfolio_values":[100000,102000,105000],"trades":[` +
		`{"ticker":"AAPL","action":"buy","quantity":10,"price":150,"timestamp":"2024-01-05"},` +
		`{"ticker":"GOOGL","action":"buy","quantity":5,"price":2500,"timestamp":"2024-01-10"},` +
		`{"ticker":"AAPL","action":"sell","quantity":5,"price":160,"timestamp":"2024-01-20"}]}}`
)

// NewCannedRunner returns the built-in fixtures.
func NewCannedRunner() *CannedRunner {
	return &CannedRunner{
		results: map[Kind]json.RawMessage{
			KindAnalysis: json.RawMessage(cannedAnalysis),
			KindBacktest: json.RawMessage(cannedBacktest),
		},
		portfolio: map[Kind]json.RawMessage{
			KindAnalysis: json.RawMessage(cannedPortfolioAnalysis),
			KindBacktest: json.RawMessage(cannedPortfolioBacktest),
		},
	}
}

// cannedFixtures is the YAML layout of a fixtures file:
//
//	analysis:
//	  analysis: {summary: ..., decisions: [...]}
//	backtest:
//	  results: {...}
//	portfolio_analysis: {...}
//	portfolio_backtest: {...}
type cannedFixtures struct {
	Analysis          map[string]interface{} `yaml:"analysis"`
	Backtest          map[string]interface{} `yaml:"backtest"`
	PortfolioAnalysis map[string]interface{} `yaml:"portfolio_analysis"`
	PortfolioBacktest map[string]interface{} `yaml:"portfolio_backtest"`
}

// LoadCannedRunner reads fixtures from a YAML file. Kinds missing from the
// file keep the built-in result.
func LoadCannedRunner(path string) (*CannedRunner, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixtures: %w", err)
	}

	var fx cannedFixtures
	if err := yaml.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("parse fixtures: %w", err)
	}

	r := NewCannedRunner()
	for _, f := range []struct {
		target map[Kind]json.RawMessage
		kind   Kind
		doc    map[string]interface{}
	}{
		{r.results, KindAnalysis, fx.Analysis},
		{r.results, KindBacktest, fx.Backtest},
		{r.portfolio, KindAnalysis, fx.PortfolioAnalysis},
		{r.portfolio, KindBacktest, fx.PortfolioBacktest},
	} {
		if f.doc == nil {
			continue
		}
		raw, err := json.Marshal(f.doc)
		if err != nil {
			return nil, fmt.Errorf("encode %s fixture: %w", f.kind, err)
		}
		f.target[f.kind] = raw
	}

	return r, nil
}

// RunAnalysis returns the canned analysis result.
func (c *CannedRunner) RunAnalysis(ctx context.Context, req Request) (json.RawMessage, error) {
	return c.Stream(ctx, KindAnalysis, req, nil)
}

// RunBacktest returns the canned backtest result.
func (c *CannedRunner) RunBacktest(ctx context.Context, req Request) (json.RawMessage, error) {
	return c.Stream(ctx, KindBacktest, req, nil)
}

// Stream validates req like the Gateway does, then emits the canned result as
// the only output line.
func (c *CannedRunner) Stream(ctx context.Context, kind Kind, req Request, onLine LineFunc) (json.RawMessage, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, &AnalysisFailure{Kind: kind, Err: err}
	}

	fixtures := c.results
	if req.PortfolioID != "" {
		fixtures = c.portfolio
	}
	result, ok := fixtures[kind]
	if !ok {
		return nil, &AnalysisFailure{Kind: kind, Err: ErrNoResultFound}
	}
	if onLine != nil {
		onLine(string(result))
	}

	// Callers own the returned slice.
	out := make(json.RawMessage, len(result))
	copy(out, result)
	return out, nil
}
