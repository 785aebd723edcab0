package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/hedgefund/internal/scheduler"
	"github.com/wonny/hedgefund/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `스케줄러를 시작하거나 작업을 관리합니다.

Subcommands:
  start   - 스케줄러 시작
  list    - 등록된 작업 목록
  run     - 특정 작업 즉시 실행

Example:
  go run ./cmd/hedgefund scheduler start
  go run ./cmd/hedgefund scheduler list
  go run ./cmd/hedgefund scheduler run portfolio_revaluation`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		Long: `스케줄러를 시작하고 등록된 모든 작업을 스케줄합니다.

등록되는 작업:
- portfolio_revaluation: REVALUATION_SCHEDULE (기본값: 평일 16:30)

스케줄러는 Ctrl+C로 종료할 수 있습니다.`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "등록된 작업 목록",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "특정 작업 즉시 실행",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
}

func runScheduler(cmd *cobra.Command, args []string) error {
	a, sched, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched.Start()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "✅ Scheduler started")
	printJobs(cmd, sched)
	fmt.Fprintln(out, "\nPress Ctrl+C to stop")

	<-ctx.Done()

	sched.Stop()
	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	a, sched, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer a.Close()

	printJobs(cmd, sched)
	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	a, sched, err := initScheduler()
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	defer a.Close()

	result, err := sched.RunNow(args[0])
	if err != nil {
		return fmt.Errorf("run job: %w", err)
	}

	out := cmd.OutOrStdout()
	if !result.Success {
		fmt.Fprintf(out, "❌ %s failed after %d attempt(s) in %s: %s\n", result.JobName, result.Attempts, result.Duration, result.Error)
		return fmt.Errorf("job %s failed", result.JobName)
	}
	fmt.Fprintf(out, "✅ %s completed in %s\n", result.JobName, result.Duration)
	return nil
}

func printJobs(cmd *cobra.Command, sched *scheduler.Scheduler) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Registered jobs:")
	stats := sched.GetJobStats()
	for _, name := range sched.GetAllJobs() {
		fmt.Fprintf(out, "  - %s (%s)", name, stats[name].Schedule)
		// Next is only known once the cron loop runs
		if next, err := sched.NextRun(name); err == nil && !next.IsZero() {
			fmt.Fprintf(out, " next: %s", next.Format("2006-01-02 15:04:05"))
		}
		fmt.Fprintln(out)
	}
}

func initScheduler() (*app, *scheduler.Scheduler, error) {
	a, err := loadApp(os.Stdout)
	if err != nil {
		return nil, nil, err
	}
	if err := a.openStore(); err != nil {
		return nil, nil, err
	}

	sched := scheduler.New(a.log, scheduler.Options{})
	if err := sched.AddJob(jobs.NewRevaluationJob(a.revaluer, a.cfg.RevaluationSchedule, a.log)); err != nil {
		a.Close()
		return nil, nil, err
	}

	return a, sched, nil
}
