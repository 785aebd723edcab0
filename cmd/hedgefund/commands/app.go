package commands

import (
	"fmt"
	"io"

	"github.com/wonny/hedgefund/internal/contracts"
	"github.com/wonny/hedgefund/internal/portfolio"
	"github.com/wonny/hedgefund/internal/scheduler/jobs"
	"github.com/wonny/hedgefund/internal/store/memory"
	"github.com/wonny/hedgefund/internal/trades"
	"github.com/wonny/hedgefund/pkg/config"
	"github.com/wonny/hedgefund/pkg/database"
	"github.com/wonny/hedgefund/pkg/logger"
)

// app holds the dependencies shared by commands.
type app struct {
	cfg *config.Config
	log *logger.Logger

	db *database.DB // nil when running on the in-memory store

	portfolios contracts.PortfolioRepository
	trades     contracts.TradeRepository
	revaluer   jobs.Revaluer
}

// loadApp loads config and the logger writing to logOut.
func loadApp(logOut io.Writer) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return &app{cfg: cfg, log: logger.NewWithWriter(cfg, logOut)}, nil
}

// openStore connects PostgreSQL, or falls back to the in-memory store in the
// test environment when DATABASE_URL is unset.
func (a *app) openStore() error {
	if a.cfg.Database.URL == "" {
		if !a.cfg.IsTest() {
			return fmt.Errorf("DATABASE_URL is required")
		}
		store := memory.New()
		a.portfolios = store.Portfolios()
		a.trades = store.Trades()
		a.revaluer = store.Portfolios()
		a.log.Warn("DATABASE_URL not set, using in-memory store")
		return nil
	}

	db, err := database.New(a.cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	a.db = db

	repo := portfolio.NewRepository(db.Pool)
	a.portfolios = repo
	a.trades = trades.NewRepository(db.Pool)
	a.revaluer = repo

	a.log.Info("Connected to database")
	return nil
}

// Close releases the store.
func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
}
