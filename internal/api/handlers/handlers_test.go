package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/hedgefund/internal/analysis"
	"github.com/wonny/hedgefund/internal/contracts"
)

func TestAnalysisRequestBody_ToRequest(t *testing.T) {
	margin := decimal.RequireFromString("0.5")
	body := AnalysisRequestBody{
		Tickers:           []string{"AAPL", "GOOGL"},
		StartDate:         "2024-01-01",
		EndDate:           "2024-03-01",
		MarginRequirement: &margin,
		ShowReasoning:     true,
	}

	req, err := body.toRequest(decimal.NewFromInt(100000))
	require.NoError(t, err)

	assert.Equal(t, []string{"AAPL", "GOOGL"}, req.Tickers)
	assert.True(t, req.InitialCapital.Equal(decimal.NewFromInt(100000)), "default capital")
	assert.True(t, req.MarginRequirement.Equal(margin))
	assert.True(t, req.ShowReasoning)
	assert.Equal(t, "2024-03-01", req.EndDate.Format(analysis.DateLayout))
}

func TestAnalysisRequestBody_ToRequestRejectsReversedDates(t *testing.T) {
	body := AnalysisRequestBody{Tickers: []string{"AAPL"}, StartDate: "2024-03-01", EndDate: "2024-01-01"}

	_, err := body.toRequest(decimal.NewFromInt(1))
	assert.ErrorIs(t, err, analysis.ErrInvalidRequest)
}

func TestValidateStruct_Messages(t *testing.T) {
	tests := []struct {
		name string
		v    interface{}
		want string
	}{
		{"missing tickers", &AnalysisRequestBody{StartDate: "2024-01-01", EndDate: "2024-01-02"}, "tickers is required"},
		{"empty ticker", &AnalysisRequestBody{Tickers: []string{""}, StartDate: "2024-01-01", EndDate: "2024-01-02"}, "tickers[0] is required"},
		{"bad date", &AnalysisRequestBody{Tickers: []string{"A"}, StartDate: "01/01/2024", EndDate: "2024-01-02"}, "startDate must be a date formatted as 2006-01-02"},
		{"zero capital", &CreatePortfolioRequest{Name: "x"}, "initialCapital is required"},
		{"negative capital", &CreatePortfolioRequest{Name: "x", InitialCapital: decimal.NewFromInt(-5)}, "initialCapital must be greater than 0"},
		{"bad action", &CreateTradeRequest{PortfolioID: "p", Ticker: "A", Action: "hold", Quantity: decimal.NewFromInt(1), Price: decimal.NewFromInt(1)}, "action must be one of: buy, sell, short, cover"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateStruct(tt.v)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateStruct_Valid(t *testing.T) {
	assert.NoError(t, validateStruct(&CreateTradeRequest{
		PortfolioID: "p", Ticker: "AAPL", Action: "short",
		Quantity: decimal.RequireFromString("0.5"), Price: decimal.NewFromInt(10),
	}))
}

func TestDocsHandler(t *testing.T) {
	h, err := NewDocsHandler()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.Get(rec, httptest.NewRequest(http.MethodGet, "/api-docs", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "3.0.0", doc["openapi"])

	paths, ok := doc["paths"].(map[string]interface{})
	require.True(t, ok)
	for _, p := range []string{"/api/portfolio", "/api/trades/{id}", "/api/analysis/run", "/api/analysis/stream"} {
		assert.Contains(t, paths, p)
	}
}

func TestValidateTradeUpdate(t *testing.T) {
	blank := "  "
	hold := contracts.TradeAction("hold")
	zero := decimal.Zero
	ticker := " AAPL "

	assert.Error(t, validateTradeUpdate(&contracts.TradeUpdate{Ticker: &blank}))
	assert.Error(t, validateTradeUpdate(&contracts.TradeUpdate{Action: &hold}))
	assert.Error(t, validateTradeUpdate(&contracts.TradeUpdate{Quantity: &zero}))
	assert.Error(t, validateTradeUpdate(&contracts.TradeUpdate{Price: &zero}))

	u := contracts.TradeUpdate{Ticker: &ticker}
	require.NoError(t, validateTradeUpdate(&u))
	assert.Equal(t, "AAPL", *u.Ticker)
}
