// Package bootstrap builds the portfolio service from a Config. Both the web
// server and the console use it so the two always see the same ledger.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cryptofolio/internal/config"
	"cryptofolio/internal/database"
	"cryptofolio/internal/service"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

var ErrNoPostgresURL = errors.New("POSTGRES_URL is required for the postgres backend")

type App struct {
	Service *service.PortfolioService
	Prices  *service.CoinGeckoService
	db      *sqlx.DB
}

// New opens the configured ledger backend. The file backend never touches
// the network until a price is needed.
func New(cfg config.Config, log *logrus.Logger) (*App, error) {
	prices := service.NewCoinGeckoService(cfg, log)

	var (
		store   service.LedgerStore
		history service.HistoryStore
		db      *sqlx.DB
	)
	switch cfg.LedgerBackend {
	case config.BackendFile:
		store = database.NewFileStore(cfg.StorePath, log)
		history = database.NewHistoryLog(cfg.HistoryPath, cfg.QuoteCurrency, log)
		log.Debugf("ledger file %s, history file %s", cfg.StorePath, cfg.HistoryPath)
	case config.BackendPostgres:
		if cfg.PostgresURL == "" {
			return nil, ErrNoPostgresURL
		}
		var err error
		db, err = OpenDB(cfg.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("db connect: %w", err)
		}
		repo := database.New(db, log)
		store, history = repo, repo
	default:
		return nil, fmt.Errorf("unknown LEDGER_BACKEND %q", cfg.LedgerBackend)
	}

	svc := service.NewPortfolioService(store, history, prices, cfg.QuoteCurrency, log)
	return &App{Service: svc, Prices: prices, db: db}, nil
}

func (a *App) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

// OpenDB connects to Postgres and checks the connection before returning.
func OpenDB(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	return db, nil
}
