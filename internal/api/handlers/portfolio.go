package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/wonny/hedgefund/internal/analysis"
	"github.com/wonny/hedgefund/internal/contracts"
	"github.com/wonny/hedgefund/internal/portfolio"
	"github.com/wonny/hedgefund/pkg/id"
	"github.com/wonny/hedgefund/pkg/logger"
)

// PortfolioHandler handles portfolio CRUD and portfolio-scoped analysis
// ⭐ SSOT: 포트폴리오 API 핸들러는 이 구조체에서만
type PortfolioHandler struct {
	repo   contracts.PortfolioRepository
	runner analysis.Runner
	logger *logger.Logger
	now    func() time.Time
}

// NewPortfolioHandler creates a new portfolio handler
func NewPortfolioHandler(repo contracts.PortfolioRepository, runner analysis.Runner, log *logger.Logger) *PortfolioHandler {
	return &PortfolioHandler{
		repo:   repo,
		runner: runner,
		logger: log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreatePortfolioRequest is the body of POST /api/portfolio
type CreatePortfolioRequest struct {
	Name           string          `json:"name" validate:"required"`
	InitialCapital decimal.Decimal `json:"initialCapital" validate:"required,gt=0"`
}

// List returns all portfolios
// GET /api/portfolio
func (h *PortfolioHandler) List(w http.ResponseWriter, r *http.Request) {
	portfolios, err := h.repo.List(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to list portfolios")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve portfolios")
		return
	}

	respondJSON(w, http.StatusOK, portfolios)
}

// Get returns one portfolio
// GET /api/portfolio/{id}
func (h *PortfolioHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := h.load(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// Create stores a new all-cash portfolio
// POST /api/portfolio
func (h *PortfolioHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body CreatePortfolioRequest
	if err := decodeJSON(w, r, &body); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	p := contracts.NewPortfolio(id.New(), body.Name, body.InitialCapital, h.now())
	if err := h.repo.Create(r.Context(), p); err != nil {
		h.respondStoreError(w, err, "Failed to create portfolio")
		return
	}

	logger.FromContext(r.Context(), h.logger).WithField("portfolio_id", p.ID).Info("Portfolio created")
	respondJSON(w, http.StatusCreated, p)
}

// Update changes name, positions or realizedGains
// PUT /api/portfolio/{id}
func (h *PortfolioHandler) Update(w http.ResponseWriter, r *http.Request) {
	var body contracts.PortfolioUpdate
	if err := decodeJSON(w, r, &body); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := portfolio.ValidateUpdate(body); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, err := h.repo.Update(r.Context(), mux.Vars(r)["id"], body)
	if err != nil {
		h.respondStoreError(w, err, "Failed to update portfolio")
		return
	}

	respondJSON(w, http.StatusOK, p)
}

// Delete removes a portfolio
// DELETE /api/portfolio/{id}
func (h *PortfolioHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.respondStoreError(w, err, "Failed to delete portfolio")
		return
	}
	respondMessage(w, "Portfolio deleted successfully")
}

// Analyze runs the forward analysis with the portfolio's initial capital
// POST /api/portfolio/{id}/analyze
func (h *PortfolioHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, analysis.KindAnalysis)
}

// Backtest runs the backtest with the portfolio's initial capital
// POST /api/portfolio/{id}/backtest
func (h *PortfolioHandler) Backtest(w http.ResponseWriter, r *http.Request) {
	h.run(w, r, analysis.KindBacktest)
}

func (h *PortfolioHandler) run(w http.ResponseWriter, r *http.Request, kind analysis.Kind) {
	p, ok := h.load(w, r)
	if !ok {
		return
	}

	var body AnalysisRequestBody
	if err := decodeJSON(w, r, &body); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	// 포트폴리오 자본금이 요청 값보다 우선
	body.InitialCapital = &p.InitialCapital
	req, err := body.toRequest(p.InitialCapital)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.PortfolioID = p.ID

	run := h.runner.RunAnalysis
	if kind == analysis.KindBacktest {
		run = h.runner.RunBacktest
	}

	result, err := run(r.Context(), req)
	if err != nil {
		respondAnalysisError(w, err)
		return
	}

	respondResult(w, result)
}

func (h *PortfolioHandler) load(w http.ResponseWriter, r *http.Request) (*contracts.Portfolio, bool) {
	p, err := h.repo.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.respondStoreError(w, err, "Failed to retrieve portfolio")
		return nil, false
	}
	return p, true
}

func (h *PortfolioHandler) respondStoreError(w http.ResponseWriter, err error, message string) {
	switch {
	case errors.Is(err, contracts.ErrNotFound):
		respondError(w, http.StatusNotFound, "Portfolio not found")
	case errors.Is(err, contracts.ErrInvalid):
		respondError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.WithError(err).Error(message)
		respondError(w, http.StatusInternalServerError, message)
	}
}
