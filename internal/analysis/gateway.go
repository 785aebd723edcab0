package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/wonny/hedgefund/pkg/config"
	"github.com/wonny/hedgefund/pkg/logger"
	"github.com/wonny/hedgefund/pkg/metrics"
)

// AnalysisFailure is what callers see when a run fails. The message is
// generic on purpose; Unwrap exposes the cause for logging only.
type AnalysisFailure struct {
	Kind Kind
	Err  error
}

func (e *AnalysisFailure) Error() string {
	if e.Kind == KindBacktest {
		return "failed to execute backtest"
	}
	return "failed to execute hedge fund analysis"
}

func (e *AnalysisFailure) Unwrap() error { return e.Err }

// Gateway turns analysis requests into program invocations and program output
// into results. It holds no per-call state and is safe for concurrent use.
// ⭐ SSOT: 분석 프로세스 호출은 이 게이트웨이에서만
type Gateway struct {
	cfg     config.AnalysisConfig
	invoker Invoker
	logger  *logger.Logger
}

// NewGateway creates a gateway over invoker.
func NewGateway(cfg config.AnalysisConfig, invoker Invoker, log *logger.Logger) *Gateway {
	return &Gateway{
		cfg:     cfg,
		invoker: invoker,
		logger:  log,
	}
}

// RunAnalysis runs the forward analysis program.
func (g *Gateway) RunAnalysis(ctx context.Context, req Request) (json.RawMessage, error) {
	return g.run(ctx, KindAnalysis, req, nil)
}

// RunBacktest runs the backtest program.
func (g *Gateway) RunBacktest(ctx context.Context, req Request) (json.RawMessage, error) {
	return g.run(ctx, KindBacktest, req, nil)
}

// Stream runs kind and forwards every output line to onLine while it runs.
func (g *Gateway) Stream(ctx context.Context, kind Kind, req Request, onLine LineFunc) (json.RawMessage, error) {
	return g.run(ctx, kind, req, onLine)
}

// invocation builds the process description for kind.
func (g *Gateway) invocation(kind Kind, req Request) Invocation {
	script := g.cfg.ForwardScript
	if kind == KindBacktest {
		script = g.cfg.BacktestScript
	}

	return Invocation{
		Executable: g.cfg.PythonPath,
		Options:    []string{"-u"},
		Script:     filepath.Join(g.cfg.ScriptDir, script),
		Args:       req.Args(),
	}
}

func (g *Gateway) run(ctx context.Context, kind Kind, req Request, onLine LineFunc) (json.RawMessage, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	inv := g.invocation(kind, req)
	inv.OnLine = onLine

	log := logger.FromContext(ctx, g.logger).WithFields(map[string]interface{}{
		"kind":    string(kind),
		"tickers": strings.Join(req.Tickers, ","),
		"script":  inv.Script,
	})
	if req.PortfolioID != "" {
		log = log.WithField("portfolio_id", req.PortfolioID)
	}
	log.Info("Analysis started")

	done := metrics.AnalysisStarted()
	defer done()
	start := time.Now()

	lines, err := g.invoker.Invoke(ctx, inv)
	if err != nil {
		fields := map[string]interface{}{"duration": time.Since(start)}
		var execErr *ExecutionFailure
		if errors.As(err, &execErr) {
			fields["exit_code"] = execErr.ExitCode
			fields["stderr"] = execErr.Stderr
		}
		log.WithError(err).WithFields(fields).Error("Analysis program failed")
		metrics.ObserveAnalysis(string(kind), "execution_failure", time.Since(start))
		return nil, &AnalysisFailure{Kind: kind, Err: err}
	}

	ext, err := Extract(lines)
	metrics.SkippedLines(LineNoise.String(), ext.Count(LineNoise))
	metrics.SkippedLines(LineMalformed.String(), ext.Count(LineMalformed))
	if err != nil {
		log.WithError(err).WithFields(map[string]interface{}{
			"lines":     len(lines),
			"malformed": ext.Count(LineMalformed),
		}).Error("Analysis output had no result")
		metrics.ObserveAnalysis(string(kind), "no_result", time.Since(start))
		return nil, &AnalysisFailure{Kind: kind, Err: err}
	}

	log.WithFields(map[string]interface{}{
		"duration":  time.Since(start),
		"lines":     len(lines),
		"malformed": ext.Count(LineMalformed),
	}).Info("Analysis completed")
	metrics.ObserveAnalysis(string(kind), "success", time.Since(start))

	return ext.Result, nil
}
