package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/hedgefund/pkg/logger"
	"github.com/wonny/hedgefund/pkg/metrics"
)

// Revaluer recomputes stored portfolio values.
// Satisfied by portfolio.Repository and the in-memory store.
type Revaluer interface {
	Revalue(ctx context.Context) (int, error)
}

// RevaluationJob refreshes currentValue for every portfolio after the close
type RevaluationJob struct {
	repo     Revaluer
	schedule string
	logger   *logger.Logger
}

// NewRevaluationJob creates a new revaluation job
func NewRevaluationJob(repo Revaluer, schedule string, log *logger.Logger) *RevaluationJob {
	return &RevaluationJob{
		repo:     repo,
		schedule: schedule,
		logger:   log,
	}
}

// Name returns the job name
func (j *RevaluationJob) Name() string {
	return "portfolio_revaluation"
}

// Schedule returns the cron expression
func (j *RevaluationJob) Schedule() string {
	return j.schedule
}

// Run recomputes portfolio values
func (j *RevaluationJob) Run(ctx context.Context) error {
	n, err := j.repo.Revalue(ctx)
	if err != nil {
		metrics.Revaluation("failure")
		return fmt.Errorf("revalue portfolios: %w", err)
	}

	metrics.Revaluation("success")
	j.logger.WithField("portfolios", n).Info("Portfolios revalued")
	return nil
}
