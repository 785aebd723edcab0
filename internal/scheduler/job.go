package scheduler

import (
	"context"
	"time"
)

// maxHistory is how many results are kept per job.
const maxHistory = 100

// Job represents a scheduled job
// ⭐ SSOT: 스케줄 작업 인터페이스는 여기서만 정의
type Job interface {
	// Name returns the job name
	Name() string

	// Run executes the job
	Run(ctx context.Context) error

	// Schedule returns the cron expression, seconds first
	// Examples: "0 30 16 * * 1-5" (weekdays 16:30), "@hourly"
	Schedule() string
}

// JobResult represents the result of a job execution
type JobResult struct {
	JobName   string        `json:"job_name"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Attempts  int           `json:"attempts"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
}

// JobHistory stores the most recent results of one job, oldest first.
// Guarded by the owning Scheduler.
type JobHistory struct {
	Results []JobResult
}

// add appends result and drops the oldest beyond maxHistory.
func (h *JobHistory) add(result JobResult) {
	h.Results = append(h.Results, result)
	if len(h.Results) > maxHistory {
		h.Results = h.Results[len(h.Results)-maxHistory:]
	}
}

// stats summarizes the history.
func (h *JobHistory) stats(name, schedule string) JobStats {
	s := JobStats{JobName: name, Schedule: schedule, TotalRuns: len(h.Results)}

	for i := range h.Results {
		r := &h.Results[i]
		if r.Success {
			s.SuccessCount++
			s.LastSuccess = &r.StartTime
		} else {
			s.FailureCount++
			s.LastFailure = &r.StartTime
		}
		s.LastRun = &r.StartTime
	}

	if s.TotalRuns > 0 {
		s.SuccessRate = float64(s.SuccessCount) / float64(s.TotalRuns)
	}
	return s
}

// JobStats represents statistics for a job
type JobStats struct {
	JobName      string     `json:"job_name"`
	Schedule     string     `json:"schedule"`
	TotalRuns    int        `json:"total_runs"`
	SuccessCount int        `json:"success_count"`
	FailureCount int        `json:"failure_count"`
	SuccessRate  float64    `json:"success_rate"`
	LastRun      *time.Time `json:"last_run,omitempty"`
	LastSuccess  *time.Time `json:"last_success,omitempty"`
	LastFailure  *time.Time `json:"last_failure,omitempty"`
}
