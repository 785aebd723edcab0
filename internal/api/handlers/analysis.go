package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wonny/hedgefund/internal/analysis"
	"github.com/wonny/hedgefund/pkg/logger"
)

// AnalysisHandler serves the forward analysis and backtest endpoints
// ⭐ SSOT: 분석 API 핸들러는 이 구조체에서만
type AnalysisHandler struct {
	runner         analysis.Runner
	defaultCapital decimal.Decimal
	logger         *logger.Logger
}

// NewAnalysisHandler creates a new analysis handler. defaultCapital is used
// when a request omits initialCapital.
func NewAnalysisHandler(runner analysis.Runner, defaultCapital decimal.Decimal, log *logger.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		runner:         runner,
		defaultCapital: defaultCapital,
		logger:         log,
	}
}

// AnalysisRequestBody is the JSON body of every analysis endpoint
type AnalysisRequestBody struct {
	Tickers           []string         `json:"tickers" validate:"required,min=1,dive,required"`
	StartDate         string           `json:"startDate" validate:"required,datetime=2006-01-02"`
	EndDate           string           `json:"endDate" validate:"required,datetime=2006-01-02"`
	InitialCapital    *decimal.Decimal `json:"initialCapital"`
	MarginRequirement *decimal.Decimal `json:"marginRequirement"`
	ShowReasoning     bool             `json:"showReasoning"`
}

// toRequest converts the body. initialCapital falls back to capital.
func (b AnalysisRequestBody) toRequest(capital decimal.Decimal) (analysis.Request, error) {
	start, err := time.Parse(analysis.DateLayout, b.StartDate)
	if err != nil {
		return analysis.Request{}, err
	}
	end, err := time.Parse(analysis.DateLayout, b.EndDate)
	if err != nil {
		return analysis.Request{}, err
	}

	req := analysis.Request{
		Tickers:           b.Tickers,
		StartDate:         start,
		EndDate:           end,
		InitialCapital:    capital,
		MarginRequirement: decimal.Zero,
		ShowReasoning:     b.ShowReasoning,
	}
	if b.InitialCapital != nil {
		req.InitialCapital = *b.InitialCapital
	}
	if b.MarginRequirement != nil {
		req.MarginRequirement = *b.MarginRequirement
	}

	return req, req.Validate()
}

type runFunc func(ctx context.Context, req analysis.Request) (json.RawMessage, error)

// Run runs the forward analysis
// POST /api/analysis/run
func (h *AnalysisHandler) Run(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.runner.RunAnalysis)
}

// Backtest runs the backtest
// POST /api/analysis/backtest
func (h *AnalysisHandler) Backtest(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, h.runner.RunBacktest)
}

func (h *AnalysisHandler) serve(w http.ResponseWriter, r *http.Request, run runFunc) {
	var body AnalysisRequestBody
	if err := decodeJSON(w, r, &body); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	req, err := body.toRequest(h.defaultCapital)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := run(r.Context(), req)
	if err != nil {
		respondAnalysisError(w, err)
		return
	}

	respondResult(w, result)
}

// respondResult writes the extracted object verbatim.
func respondResult(w http.ResponseWriter, result json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(result)
}

// respondAnalysisError maps runner errors to statuses. The Gateway already
// logged the cause of an AnalysisFailure.
func respondAnalysisError(w http.ResponseWriter, err error) {
	var failure *analysis.AnalysisFailure
	switch {
	case errors.Is(err, analysis.ErrInvalidRequest):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &failure):
		respondError(w, http.StatusInternalServerError, failure.Error())
	default:
		respondError(w, http.StatusInternalServerError, "Internal server error")
	}
}
