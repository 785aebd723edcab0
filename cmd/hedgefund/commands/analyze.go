package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/wonny/hedgefund/internal/analysis"
	"github.com/wonny/hedgefund/internal/api/handlers"
	"github.com/wonny/hedgefund/pkg/httputil"
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze [run|backtest]",
	Short: "분석 또는 백테스트 1회 실행",
	Long: `Runs one analysis or backtest and prints the result JSON to stdout.

By default the analysis program is invoked locally using the same
configuration as the API server. With --server the request is sent to a
running API instead.

Example:
  go run ./cmd/hedgefund analyze run --tickers AAPL,MSFT,NVDA
  go run ./cmd/hedgefund analyze backtest --tickers AAPL --start-date 2024-01-01 --end-date 2024-06-30
  go run ./cmd/hedgefund analyze run --tickers AAPL --server http://localhost:3000`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"run", "backtest"},
	RunE:      runAnalyze,
}

var (
	analyzeTickers           []string
	analyzeStartDate         string
	analyzeEndDate           string
	analyzeInitialCash       string
	analyzeMarginRequirement string
	analyzeShowReasoning     bool
	analyzeServer            string
)

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringSliceVar(&analyzeTickers, "tickers", nil, "comma-separated tickers (required)")
	analyzeCmd.Flags().StringVar(&analyzeStartDate, "start-date", "", "YYYY-MM-DD (기본값: end-date 3개월 전)")
	analyzeCmd.Flags().StringVar(&analyzeEndDate, "end-date", "", "YYYY-MM-DD (기본값: 오늘)")
	analyzeCmd.Flags().StringVar(&analyzeInitialCash, "initial-cash", "", "initial capital (기본값: ANALYSIS_DEFAULT_CAPITAL)")
	analyzeCmd.Flags().StringVar(&analyzeMarginRequirement, "margin-requirement", "0", "margin ratio for short positions")
	analyzeCmd.Flags().BoolVar(&analyzeShowReasoning, "show-reasoning", false, "ask agents to print their reasoning")
	analyzeCmd.Flags().StringVar(&analyzeServer, "server", "", "base URL of a running API")
	_ = analyzeCmd.MarkFlagRequired("tickers")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	kindArg := ""
	if len(args) == 1 {
		kindArg = args[0]
	}
	kind, err := analysis.ParseKind(kindArg)
	if err != nil {
		return err
	}

	// stdout carries the result only
	a, err := loadApp(os.Stderr)
	if err != nil {
		return err
	}

	req, err := buildAnalysisRequest(a.cfg.Analysis.DefaultCapital, time.Now())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var result json.RawMessage
	if analyzeServer != "" {
		result, err = analyzeRemote(ctx, a, kind, req)
	} else {
		result, err = analyzeLocal(ctx, a, kind, req)
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(result))
	return nil
}

// buildAnalysisRequest turns the flags into a validated request.
func buildAnalysisRequest(defaultCapital string, now time.Time) (analysis.Request, error) {
	tickers := make([]string, 0, len(analyzeTickers))
	for _, t := range analyzeTickers {
		if t = strings.TrimSpace(t); t != "" {
			tickers = append(tickers, t)
		}
	}

	end := now
	if analyzeEndDate != "" {
		var err error
		if end, err = time.Parse(analysis.DateLayout, analyzeEndDate); err != nil {
			return analysis.Request{}, fmt.Errorf("invalid --end-date: %w", err)
		}
	}
	end = time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)

	start := end.AddDate(0, -3, 0)
	if analyzeStartDate != "" {
		var err error
		if start, err = time.Parse(analysis.DateLayout, analyzeStartDate); err != nil {
			return analysis.Request{}, fmt.Errorf("invalid --start-date: %w", err)
		}
	}

	cash := analyzeInitialCash
	if cash == "" {
		cash = defaultCapital
	}
	capital, err := decimal.NewFromString(cash)
	if err != nil {
		return analysis.Request{}, fmt.Errorf("invalid --initial-cash %q: %w", cash, err)
	}

	margin, err := decimal.NewFromString(analyzeMarginRequirement)
	if err != nil {
		return analysis.Request{}, fmt.Errorf("invalid --margin-requirement %q: %w", analyzeMarginRequirement, err)
	}

	req := analysis.Request{
		Tickers:           tickers,
		StartDate:         start,
		EndDate:           end,
		InitialCapital:    capital,
		MarginRequirement: margin,
		ShowReasoning:     analyzeShowReasoning,
	}
	return req, req.Validate()
}

func analyzeLocal(ctx context.Context, a *app, kind analysis.Kind, req analysis.Request) (json.RawMessage, error) {
	runner, err := analysis.NewRunner(a.cfg, a.log)
	if err != nil {
		return nil, fmt.Errorf("create analysis runner: %w", err)
	}
	return runner.Stream(ctx, kind, req, nil)
}

func analyzeRemote(ctx context.Context, a *app, kind analysis.Kind, req analysis.Request) (json.RawMessage, error) {
	path := "/api/analysis/run"
	if kind == analysis.KindBacktest {
		path = "/api/analysis/backtest"
	}

	body := handlers.AnalysisRequestBody{
		Tickers:           req.Tickers,
		StartDate:         req.StartDate.Format(analysis.DateLayout),
		EndDate:           req.EndDate.Format(analysis.DateLayout),
		InitialCapital:    &req.InitialCapital,
		MarginRequirement: &req.MarginRequirement,
		ShowReasoning:     req.ShowReasoning,
	}

	// 분석은 멱등이 아니므로 재시도하지 않음
	client := httputil.New(0, a.log).DisableRetry()
	resp, err := client.PostJSON(ctx, strings.TrimRight(analyzeServer, "/")+path, body)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", path, err)
	}
	if !resp.OK() {
		return nil, fmt.Errorf("%s returned %d: %s", path, resp.StatusCode, apiErrorMessage(resp.Body))
	}
	return json.RawMessage(resp.Body), nil
}

// apiErrorMessage extracts {"error": "..."} or returns the raw body.
func apiErrorMessage(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(body))
}
