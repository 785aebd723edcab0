package analysis

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the wire format of analysis dates.
const DateLayout = "2006-01-02"

// Kind selects which analysis program runs.
type Kind string

const (
	KindAnalysis Kind = "analysis" // forward-looking hedge fund analysis
	KindBacktest Kind = "backtest"
)

// ParseKind maps a query/CLI value to a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindAnalysis, "run", "":
		return KindAnalysis, nil
	case KindBacktest:
		return KindBacktest, nil
	default:
		return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidRequest, s)
	}
}

// ErrInvalidRequest marks a Request that must not reach the subprocess.
var ErrInvalidRequest = errors.New("invalid analysis request")

// Request is the immutable input of one analysis or backtest run.
type Request struct {
	Tickers           []string
	StartDate         time.Time
	EndDate           time.Time
	InitialCapital    decimal.Decimal
	MarginRequirement decimal.Decimal
	ShowReasoning     bool

	// PortfolioID is set for portfolio-scoped runs. Not passed to the program.
	PortfolioID string
}

// Validate enforces the request invariants.
func (r Request) Validate() error {
	if len(r.Tickers) == 0 {
		return fmt.Errorf("%w: at least one ticker is required", ErrInvalidRequest)
	}
	for _, t := range r.Tickers {
		if strings.TrimSpace(t) == "" {
			return fmt.Errorf("%w: empty ticker", ErrInvalidRequest)
		}
		if strings.Contains(t, ",") {
			return fmt.Errorf("%w: ticker %q contains a comma", ErrInvalidRequest, t)
		}
	}
	if r.StartDate.IsZero() || r.EndDate.IsZero() {
		return fmt.Errorf("%w: startDate and endDate are required", ErrInvalidRequest)
	}
	if r.EndDate.Before(r.StartDate) {
		return fmt.Errorf("%w: endDate must not be before startDate", ErrInvalidRequest)
	}
	if !r.InitialCapital.IsPositive() {
		return fmt.Errorf("%w: initialCapital must be positive", ErrInvalidRequest)
	}
	if r.MarginRequirement.IsNegative() {
		return fmt.Errorf("%w: marginRequirement must not be negative", ErrInvalidRequest)
	}
	return nil
}

// Args renders the program argument vector. Both programs share it.
func (r Request) Args() []string {
	return []string{
		"--tickers", strings.Join(r.Tickers, ","),
		"--initial-cash", r.InitialCapital.String(),
		"--margin-requirement", r.MarginRequirement.String(),
		"--start-date", r.StartDate.Format(DateLayout),
		"--end-date", r.EndDate.Format(DateLayout),
		"--show-reasoning", formatBool(r.ShowReasoning),
	}
}

func formatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
