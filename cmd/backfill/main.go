// Command backfill copies a JSON ledger and its history log into the
// Postgres store. Quantities are added to what the database already holds,
// history snapshots already present are skipped.
package main

import (
	"context"
	"flag"
	"os"

	"cryptofolio/internal/bootstrap"
	"cryptofolio/internal/config"
	"cryptofolio/internal/database"
)

func main() {
	cfg := config.Load()
	logger := cfg.NewLogger()

	flag.StringVar(&cfg.StorePath, "store", cfg.StorePath, "ledger file to import")
	flag.StringVar(&cfg.HistoryPath, "history", cfg.HistoryPath, "history file to import, empty to skip")
	dryRun := flag.Bool("dry-run", false, "only print what would be imported")
	flag.Parse()

	if cfg.PostgresURL == "" {
		logger.Fatal(bootstrap.ErrNoPostgresURL)
	}
	ctx := context.Background()

	ledger, err := database.NewFileStore(cfg.StorePath, logger).Load(ctx)
	if err != nil {
		logger.Fatalf("read ledger: %v", err)
	}
	var rows int64
	history := database.NewHistoryLog(cfg.HistoryPath, cfg.QuoteCurrency, logger)
	if cfg.HistoryPath == "" {
		history = nil
	}

	if *dryRun {
		for _, h := range ledger.Holdings() {
			logger.Infof("would add %s %s", h.Quantity, h.AssetID)
		}
		if history != nil {
			e, _ := history.Entries(ctx)
			logger.Infof("would import %d history entries", len(e))
		}
		return
	}

	db, err := bootstrap.OpenDB(cfg.PostgresURL)
	if err != nil {
		logger.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()
	repo := database.New(db, logger)

	for _, h := range ledger.Holdings() {
		total, err := repo.AddQuantity(ctx, h.AssetID, h.Quantity)
		if err != nil {
			logger.Errorf("add %s: %v", h.AssetID, err)
			continue
		}
		logger.Infof("%s: added %s, now %s", h.AssetID, h.Quantity, total)
	}

	if history != nil {
		es, err := history.Entries(ctx)
		if err != nil {
			logger.Errorf("read history: %v", err)
			os.Exit(1)
		}
		for _, e := range es {
			n, err := repo.Insert(ctx, e)
			if err != nil {
				logger.Errorf("history %s: %v", e.Timestamp.Format(database.TimestampLayout), err)
				continue
			}
			rows += n
		}
	}
	logger.Infof("backfill done: %d holdings, %d new price rows", len(ledger), rows)
}
