package database

import (
	"context"
	"os"
	"testing"
	"time"

	"cryptofolio/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupDB(t *testing.T) *sqlx.DB {
	url := os.Getenv("POSTGRES_URL")
	if url == "" {
		t.Skip("POSTGRES_URL is not set; skipping integration tests")
	}
	db, err := sqlx.Open("postgres", url)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	files := []string{"../../migrations/0001_init.up.sql"}
	for _, f := range files {
		b, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read migration %s: %v", f, err)
		}
		if _, err := db.Exec(string(b)); err != nil {
			t.Logf("exec migration %s: %v", f, err)
		}
	}
	_, _ = db.Exec(`DELETE FROM holdings`)
	_, _ = db.Exec(`DELETE FROM price_history`)
	return db
}

func TestRepo_SaveLoadRoundTrip(t *testing.T) {
	db := setupDB(t)
	r := New(db, logrus.New())
	ctx := context.Background()

	l := models.Ledger{
		"bitcoin":  decimal.RequireFromString("2"),
		"ethereum": decimal.RequireFromString("0.123456789"),
	}
	require.NoError(t, r.Save(ctx, l))

	got, err := r.Load(ctx)
	require.NoError(t, err)
	assert.True(t, got.Equal(l), "got %v", got)

	// a smaller ledger replaces the previous one
	require.NoError(t, r.Save(ctx, models.Ledger{"bitcoin": decimal.NewFromInt(3)}))
	got, err = r.Load(ctx)
	require.NoError(t, err)
	assert.True(t, got.Equal(models.Ledger{"bitcoin": decimal.NewFromInt(3)}))
}

func TestRepo_AddQuantity(t *testing.T) {
	db := setupDB(t)
	r := New(db, logrus.New())
	ctx := context.Background()

	total, err := r.AddQuantity(ctx, "bitcoin", decimal.RequireFromString("1.5"))
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.RequireFromString("1.5")))

	total, err = r.AddQuantity(ctx, "bitcoin", decimal.RequireFromString("0.5"))
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(2)), "got %s", total)
}

func TestRepo_HistoryAppendIsIdempotent(t *testing.T) {
	db := setupDB(t)
	r := New(db, logrus.New())
	ctx := context.Background()

	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	entry := models.HistoryEntry{
		Timestamp: ts,
		Quotes: models.QuoteSet{
			"bitcoin":  {AssetID: "bitcoin", Price: decimal.NewNullDecimal(decimal.NewFromInt(60000))},
			"ethereum": {AssetID: "ethereum"},
		},
	}
	require.NoError(t, r.Append(ctx, entry))
	require.NoError(t, r.Append(ctx, entry))

	entries, err := r.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Timestamp.Equal(ts))
	price, ok := entries[0].Quotes.Price("bitcoin")
	assert.True(t, ok)
	assert.True(t, price.Equal(decimal.NewFromInt(60000)))
	_, ok = entries[0].Quotes.Price("ethereum")
	assert.False(t, ok)
}

func TestRepo_InsertKeepsRestOfOverlappingSnapshot(t *testing.T) {
	db := setupDB(t)
	r := New(db, logrus.New())
	ctx := context.Background()

	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	price := func(v int64) decimal.NullDecimal { return decimal.NewNullDecimal(decimal.NewFromInt(v)) }
	first := models.HistoryEntry{Timestamp: ts, Quotes: models.QuoteSet{
		"bitcoin": {AssetID: "bitcoin", Price: price(60000)},
	}}
	n, err := r.Insert(ctx, first)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	second := models.HistoryEntry{Timestamp: ts, Quotes: models.QuoteSet{
		"bitcoin":  {AssetID: "bitcoin", Price: price(61000)},
		"ethereum": {AssetID: "ethereum", Price: price(2500)},
		"solana":   {AssetID: "solana", Price: price(150)},
	}}
	n, err = r.Insert(ctx, second)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	entries, err := r.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, []string{"bitcoin", "ethereum", "solana"}, entries[0].Quotes.AssetIDs())
	btc, _ := entries[0].Quotes.Price("bitcoin")
	assert.True(t, btc.Equal(decimal.NewFromInt(60000)), "existing row is not overwritten")
}
