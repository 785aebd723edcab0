package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wonny/hedgefund/internal/api/handlers"
	"github.com/wonny/hedgefund/pkg/logger"
)

// Handlers groups the endpoint handlers. Portfolio and Trades are nil when
// no database is configured; their routes are then not registered.
type Handlers struct {
	Health    *handlers.HealthHandler
	Docs      *handlers.DocsHandler
	Portfolio *handlers.PortfolioHandler
	Trades    *handlers.TradeHandler
	Analysis  *handlers.AnalysisHandler
	Stream    *handlers.StreamHandler
}

// NewRouter creates and configures the HTTP router. limiter may be nil to
// disable rate limiting.
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(h Handlers, limiter RateLimiter, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check and docs
	r.HandleFunc("/health", h.Health.Get).Methods("GET")
	r.HandleFunc("/api-docs", h.Docs.Get).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Portfolio endpoints
	if h.Portfolio != nil {
		api.HandleFunc("/portfolio", h.Portfolio.List).Methods("GET")
		api.HandleFunc("/portfolio", h.Portfolio.Create).Methods("POST")
		api.HandleFunc("/portfolio/{id}", h.Portfolio.Get).Methods("GET")
		api.HandleFunc("/portfolio/{id}", h.Portfolio.Update).Methods("PUT")
		api.HandleFunc("/portfolio/{id}", h.Portfolio.Delete).Methods("DELETE")
		api.HandleFunc("/portfolio/{id}/analyze", h.Portfolio.Analyze).Methods("POST")
		api.HandleFunc("/portfolio/{id}/backtest", h.Portfolio.Backtest).Methods("POST")
	}

	// Trade endpoints
	if h.Trades != nil {
		api.HandleFunc("/trades", h.Trades.List).Methods("GET")
		api.HandleFunc("/trades", h.Trades.Create).Methods("POST")
		api.HandleFunc("/trades/{id}", h.Trades.Get).Methods("GET")
		api.HandleFunc("/trades/{id}", h.Trades.Update).Methods("PUT")
		api.HandleFunc("/trades/{id}", h.Trades.Delete).Methods("DELETE")
	}

	// Analysis endpoints
	api.HandleFunc("/analysis/run", h.Analysis.Run).Methods("POST")
	api.HandleFunc("/analysis/backtest", h.Analysis.Backtest).Methods("POST")
	api.HandleFunc("/analysis/stream", h.Stream.Stream).Methods("GET")

	// Apply middleware
	chain := []mux.MiddlewareFunc{
		requestIDMiddleware(log),
		loggingMiddleware(log),
		recoveryMiddleware(log),
	}
	if limiter != nil {
		chain = append(chain, rateLimitMiddleware(limiter, log))
	}
	r.Use(chain...)

	// mux skips Use middleware for unmatched requests, so the fallbacks
	// get the chain directly. Subrouter mismatches only consult the subrouter.
	notFound := withMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusNotFound, "Not found")
	}), chain)
	methodNotAllowed := withMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}), chain)
	for _, router := range []*mux.Router{r, api} {
		router.NotFoundHandler = notFound
		router.MethodNotAllowedHandler = methodNotAllowed
	}

	// Preflight requests never match a route, so headers wrap the router
	return securityHeadersMiddleware(r)
}

// withMiddleware wraps h so that chain[0] runs first, matching mux.Use order.
func withMiddleware(h http.Handler, chain []mux.MiddlewareFunc) http.Handler {
	for i := len(chain) - 1; i >= 0; i-- {
		h = chain[i](h)
	}
	return h
}
