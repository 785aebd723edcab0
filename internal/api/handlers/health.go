package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/wonny/hedgefund/pkg/database"
)

const healthTimeout = 3 * time.Second

// DatabaseChecker reports database health
type DatabaseChecker interface {
	HealthCheck(ctx context.Context) (*database.HealthStatus, error)
}

// Pinger is any dependency with a liveness probe
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports service and dependency health
type HealthHandler struct {
	db           DatabaseChecker // nil when no database is configured
	redis        Pinger          // nil when Redis is disabled
	analysisMode string
}

// NewHealthHandler creates a new health handler. db and redis may be nil.
func NewHealthHandler(db DatabaseChecker, redis Pinger, analysisMode string) *HealthHandler {
	return &HealthHandler{db: db, redis: redis, analysisMode: analysisMode}
}

// Get returns 200 when every configured dependency answers, else 503
// GET /health
func (h *HealthHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	status := http.StatusOK
	body := map[string]interface{}{
		"status":       "ok",
		"service":      "hedgefund-api",
		"analysisMode": h.analysisMode,
	}

	if h.db != nil {
		dbStatus, err := h.db.HealthCheck(ctx)
		if err != nil {
			status = http.StatusServiceUnavailable
		}
		body["database"] = dbStatus
	}

	if h.redis != nil {
		redisStatus := "ok"
		if err := h.redis.Ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			redisStatus = err.Error()
		}
		body["redis"] = redisStatus
	}

	if status != http.StatusOK {
		body["status"] = "degraded"
	}

	respondJSON(w, status, body)
}
