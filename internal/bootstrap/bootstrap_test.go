package bootstrap

import (
	"context"
	"path/filepath"
	"testing"

	"cryptofolio/internal/config"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	return log
}

func TestNewFileBackend(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.StorePath = filepath.Join(dir, "dane.json")
	cfg.HistoryPath = filepath.Join(dir, "history.json")

	app, err := New(cfg, quietLogger())
	require.NoError(t, err)
	defer app.Close()

	assert.Equal(t, "usd", app.Service.Currency())
	report, err := app.Service.GetReport(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Lines)
	assert.True(t, report.TotalValue.IsZero())

	entries, err := app.Service.History(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestNewRejectsBadBackend(t *testing.T) {
	cfg := config.Default()
	cfg.LedgerBackend = "redis"
	_, err := New(cfg, quietLogger())
	assert.ErrorContains(t, err, "redis")

	cfg.LedgerBackend = config.BackendPostgres
	cfg.PostgresURL = ""
	_, err = New(cfg, quietLogger())
	assert.ErrorIs(t, err, ErrNoPostgresURL)
}
