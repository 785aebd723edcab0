package analysis

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/hedgefund/pkg/config"
	"github.com/wonny/hedgefund/pkg/logger"
)

// fakeInvoker records invocations and replays canned output.
type fakeInvoker struct {
	mu     sync.Mutex
	calls  []Invocation
	lines  []string
	err    error
	onCall func(inv Invocation)
}

func (f *fakeInvoker) Invoke(ctx context.Context, inv Invocation) ([]string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, inv)
	f.mu.Unlock()

	if f.onCall != nil {
		f.onCall(inv)
	}
	if f.err != nil {
		return nil, f.err
	}
	for _, l := range f.lines {
		if inv.OnLine != nil {
			inv.OnLine(l)
		}
	}
	return f.lines, nil
}

func testAnalysisConfig() config.AnalysisConfig {
	return config.AnalysisConfig{
		PythonPath:     "python3",
		ScriptDir:      "/srv/hedgefund/python/src",
		ForwardScript:  "main.py",
		BacktestScript: "backtester.py",
	}
}

func TestGateway_RunAnalysisBuildsInvocation(t *testing.T) {
	inv := &fakeInvoker{lines: []string{"loading data", `{"analysis":{"summary":"ok"}}`}}
	gw := NewGateway(testAnalysisConfig(), inv, logger.Nop())

	result, err := gw.RunAnalysis(context.Background(), validRequest())
	require.NoError(t, err)
	assert.JSONEq(t, `{"analysis":{"summary":"ok"}}`, string(result))

	require.Len(t, inv.calls, 1)
	call := inv.calls[0]
	assert.Equal(t, "python3", call.Executable)
	assert.Equal(t, []string{"-u"}, call.Options)
	assert.Equal(t, filepath.Join("/srv/hedgefund/python/src", "main.py"), call.Script)
	assert.Equal(t, validRequest().Args(), call.Args)
	assert.Contains(t, call.Args, "AAPL,GOOGL")
	assert.Contains(t, call.Args, "true")
}

func TestGateway_RunBacktestTargetsBacktester(t *testing.T) {
	inv := &fakeInvoker{lines: []string{`{"results":{"summary":"bt"}}`}}
	gw := NewGateway(testAnalysisConfig(), inv, logger.Nop())

	req := validRequest()
	req.ShowReasoning = false

	_, err := gw.RunBacktest(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, inv.calls, 1)
	assert.Equal(t, filepath.Join("/srv/hedgefund/python/src", "backtester.py"), inv.calls[0].Script)
	assert.Equal(t, "false", inv.calls[0].Args[len(inv.calls[0].Args)-1])
}

func TestGateway_ExecutionFailureIsWrapped(t *testing.T) {
	cause := &ExecutionFailure{Program: "main.py", ExitCode: 1, Stderr: "Traceback: /srv/secret/path.py", Err: errors.New("exit status 1")}
	gw := NewGateway(testAnalysisConfig(), &fakeInvoker{err: cause}, logger.Nop())

	result, err := gw.RunAnalysis(context.Background(), validRequest())

	assert.Nil(t, result)
	var failure *AnalysisFailure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, KindAnalysis, failure.Kind)
	assert.Equal(t, "failed to execute hedge fund analysis", err.Error())
	assert.NotContains(t, err.Error(), "/srv/secret")

	var execErr *ExecutionFailure
	assert.True(t, errors.As(err, &execErr), "cause stays reachable for logging")
}

func TestGateway_NoResultIsWrapped(t *testing.T) {
	gw := NewGateway(testAnalysisConfig(), &fakeInvoker{lines: []string{"no json here", "still none"}}, logger.Nop())

	_, err := gw.RunBacktest(context.Background(), validRequest())

	var failure *AnalysisFailure
	require.True(t, errors.As(err, &failure))
	assert.Equal(t, "failed to execute backtest", err.Error())
	assert.ErrorIs(t, err, ErrNoResultFound)
}

func TestGateway_InvalidRequestNeverSpawns(t *testing.T) {
	inv := &fakeInvoker{lines: []string{`{}`}}
	gw := NewGateway(testAnalysisConfig(), inv, logger.Nop())

	req := validRequest()
	req.Tickers = nil

	_, err := gw.RunAnalysis(context.Background(), req)

	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.Empty(t, inv.calls)
}

func TestGateway_NoCaching(t *testing.T) {
	inv := &fakeInvoker{lines: []string{`{"n":1}`}}
	gw := NewGateway(testAnalysisConfig(), inv, logger.Nop())

	for i := 0; i < 2; i++ {
		_, err := gw.RunAnalysis(context.Background(), validRequest())
		require.NoError(t, err)
	}
	assert.Len(t, inv.calls, 2, "identical requests spawn independent runs")
}

func TestGateway_StreamForwardsLines(t *testing.T) {
	out := []string{"step 1", `{"progress":50}`, `{"final":true}`}
	gw := NewGateway(testAnalysisConfig(), &fakeInvoker{lines: out}, logger.Nop())

	var seen []string
	result, err := gw.Stream(context.Background(), KindBacktest, validRequest(), func(l string) {
		seen = append(seen, l)
	})
	require.NoError(t, err)

	assert.Equal(t, out, seen)
	assert.JSONEq(t, `{"final":true}`, string(result))
}

func TestGateway_EndToEndWithShell(t *testing.T) {
	inv := shellInvocation(t, `
echo "Running $0 with $*"
echo '{"progress":10}'
echo '{"broken":'
echo "{\"tickers\":\"$2\",\"reasoning\":\"${12}\"}"`)

	cfg := testAnalysisConfig()
	cfg.PythonPath = "/bin/sh"
	cfg.ScriptDir = filepath.Dir(inv.Script)
	cfg.ForwardScript = filepath.Base(inv.Script)

	gw := NewGateway(cfg, &shInvoker{NewProcessInvoker(0)}, logger.Nop())

	result, err := gw.RunAnalysis(context.Background(), validRequest())
	require.NoError(t, err)
	assert.JSONEq(t, `{"tickers":"AAPL,GOOGL","reasoning":"true"}`, string(result))
}

// shInvoker drops the python -u option so /bin/sh can stand in for python.
type shInvoker struct{ inner *ProcessInvoker }

func (s *shInvoker) Invoke(ctx context.Context, inv Invocation) ([]string, error) {
	inv.Options = nil
	return s.inner.Invoke(ctx, inv)
}

func TestAnalysisFailure_Messages(t *testing.T) {
	assert.Equal(t, "failed to execute backtest", (&AnalysisFailure{Kind: KindBacktest}).Error())
	assert.Equal(t, "failed to execute hedge fund analysis", (&AnalysisFailure{Kind: KindAnalysis}).Error())
}
