package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/wonny/hedgefund/internal/analysis"
	"github.com/wonny/hedgefund/internal/api"
	"github.com/wonny/hedgefund/internal/api/handlers"
	"github.com/wonny/hedgefund/internal/scheduler"
	"github.com/wonny/hedgefund/internal/scheduler/jobs"
	"github.com/wonny/hedgefund/pkg/metrics"
	"github.com/wonny/hedgefund/pkg/redis"
)

const shutdownTimeout = 30 * time.Second

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

Endpoints:
  GET    /health
  GET    /api-docs
  GET    /api/portfolio             POST /api/portfolio
  GET    /api/portfolio/{id}        PUT  /api/portfolio/{id}   DELETE /api/portfolio/{id}
  POST   /api/portfolio/{id}/analyze
  POST   /api/portfolio/{id}/backtest
  GET    /api/trades                POST /api/trades
  GET    /api/trades/{id}           PUT  /api/trades/{id}      DELETE /api/trades/{id}
  POST   /api/analysis/run
  POST   /api/analysis/backtest
  GET    /api/analysis/stream       (WebSocket)

Example:
  go run ./cmd/hedgefund api
  go run ./cmd/hedgefund api --port 8080 --migrate`,
	RunE: runAPIServer,
}

var (
	apiPort          string
	apiMigrate       bool
	apiWithScheduler bool
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본값: PORT)")
	apiCmd.Flags().BoolVar(&apiMigrate, "migrate", false, "apply database migrations before serving")
	apiCmd.Flags().BoolVar(&apiWithScheduler, "scheduler", true, "run the revaluation job in-process")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	// 1. Load config and logger
	a, err := loadApp(os.Stdout)
	if err != nil {
		return err
	}
	cfg, log := a.cfg, a.log

	// Override port if flag is set
	if apiPort != "" {
		cfg.Port = apiPort
	}

	log.WithFields(map[string]interface{}{
		"port": cfg.Port,
		"env":  cfg.Env,
	}).Info("Initializing API server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to the store
	if err := a.openStore(); err != nil {
		return err
	}
	defer a.Close()

	if apiMigrate && a.db != nil {
		applied, err := a.db.Migrate(ctx)
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		log.WithField("applied", applied).Info("Migrations applied")
	}

	// 3. Redis (optional, shared rate limit window)
	redisClient, err := redis.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer redisClient.Close()

	// 4. Analysis runner
	runner, err := analysis.NewRunner(cfg, log)
	if err != nil {
		return fmt.Errorf("create analysis runner: %w", err)
	}

	defaultCapital, err := decimal.NewFromString(cfg.Analysis.DefaultCapital)
	if err != nil {
		return fmt.Errorf("invalid ANALYSIS_DEFAULT_CAPITAL %q: %w", cfg.Analysis.DefaultCapital, err)
	}

	// 5. Handlers and router
	docs, err := handlers.NewDocsHandler()
	if err != nil {
		return fmt.Errorf("load api docs: %w", err)
	}

	h := api.Handlers{
		Health:    newHealthHandler(a, redisClient),
		Docs:      docs,
		Portfolio: handlers.NewPortfolioHandler(a.portfolios, runner, log),
		Trades:    handlers.NewTradeHandler(a.trades, log),
		Analysis:  handlers.NewAnalysisHandler(runner, defaultCapital, log),
		Stream:    handlers.NewStreamHandler(runner, defaultCapital, log),
	}

	var limiter api.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = redis.NewRateLimiter(redisClient, "hedgefund", cfg.RateLimit.Requests, cfg.RateLimit.Window)
	}

	server := api.New(cfg, log, api.NewRouter(h, limiter, log))

	// 6. Scheduler
	var sched *scheduler.Scheduler
	if apiWithScheduler {
		sched = scheduler.New(log, scheduler.Options{})
		if err := sched.AddJob(jobs.NewRevaluationJob(a.revaluer, cfg.RevaluationSchedule, log)); err != nil {
			return fmt.Errorf("schedule revaluation: %w", err)
		}
		sched.Start()
		defer sched.Stop()
	}

	// 7. Serve until a signal arrives or a server fails
	g, gctx := errgroup.WithContext(ctx)

	g.Go(server.Start)

	var metricsServer *http.Server
	if cfg.MetricsEnabled {
		metricsServer = &http.Server{
			Addr:              ":" + cfg.MetricsPort,
			Handler:           metrics.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			log.WithField("port", cfg.MetricsPort).Info("Starting metrics server")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()

		// Graceful shutdown with timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		if err := server.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("metrics server shutdown: %w", err))
			}
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		log.WithError(err).Error("API server stopped with error")
		return err
	}

	log.Info("Server stopped")
	return nil
}

// newHealthHandler avoids handing typed nil dependencies to the handler.
func newHealthHandler(a *app, redisClient *redis.Client) *handlers.HealthHandler {
	var db handlers.DatabaseChecker
	if a.db != nil {
		db = a.db
	}
	var pinger handlers.Pinger
	if redisClient.Enabled() {
		pinger = redisClient
	}
	return handlers.NewHealthHandler(db, pinger, a.cfg.Analysis.Mode)
}
