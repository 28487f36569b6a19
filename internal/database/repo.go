package database

import (
	"context"
	"time"

	"cryptofolio/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Repo keeps the ledger and the price history in Postgres. It offers the
// same Load/Save and Append/Entries operations as the JSON files.
type Repo struct {
	db  *sqlx.DB
	log *logrus.Logger
}

func New(db *sqlx.DB, log *logrus.Logger) *Repo {
	return &Repo{db: db, log: log}
}

func (r *Repo) Load(ctx context.Context) (models.Ledger, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT asset_id, quantity FROM holdings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	l := models.Ledger{}
	for rows.Next() {
		var h models.Holding
		if err := rows.StructScan(&h); err != nil {
			r.log.Warnf("scan holding failed: %v", err)
			continue
		}
		l[h.AssetID] = h.Quantity
	}
	return l, rows.Err()
}

// Save replaces the stored holdings with l in one transaction.
func (r *Repo) Save(ctx context.Context, l models.Ledger) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	ids := l.AssetIDs()
	if _, err := tx.ExecContext(ctx, `DELETE FROM holdings WHERE NOT (asset_id = ANY($1))`, pq.Array(ids)); err != nil {
		return err
	}
	upsert := `INSERT INTO holdings (asset_id, quantity, last_updated) VALUES ($1, $2::numeric, now()) ON CONFLICT (asset_id) DO UPDATE SET quantity = EXCLUDED.quantity, last_updated = now()`
	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, upsert, id, l[id].String()); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// AddQuantity adds qty to the holding of id, creating it when needed, and
// returns the resulting quantity.
func (r *Repo) AddQuantity(ctx context.Context, id string, qty decimal.Decimal) (decimal.Decimal, error) {
	var total decimal.Decimal
	q := `INSERT INTO holdings (asset_id, quantity, last_updated) VALUES ($1, $2::numeric, now()) ON CONFLICT (asset_id) DO UPDATE SET quantity = holdings.quantity + $2::numeric, last_updated = now() RETURNING quantity`
	if err := r.db.QueryRowxContext(ctx, q, id, qty.String()).Scan(&total); err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

type priceRow struct {
	AssetID   string              `db:"asset_id"`
	Price     decimal.NullDecimal `db:"price"`
	MarketCap decimal.NullDecimal `db:"market_cap"`
	Change24h decimal.NullDecimal `db:"change_24h"`
	Timestamp time.Time           `db:"timestamp"`
}

// Append records every quote of entry under the entry's timestamp. Replaying
// the same snapshot is a no-op.
func (r *Repo) Append(ctx context.Context, entry models.HistoryEntry) error {
	_, err := r.Insert(ctx, entry)
	return err
}

// Insert records entry and returns how many quotes were new. Quotes already
// stored for the same asset and timestamp are left alone; the rest of the
// snapshot is still written.
func (r *Repo) Insert(ctx context.Context, entry models.HistoryEntry) (int64, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	ts := entry.Timestamp.UTC()
	q := `INSERT INTO price_history (asset_id, price, market_cap, change_24h, timestamp) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (asset_id, timestamp) DO NOTHING`
	var inserted int64
	for _, id := range entry.Quotes.AssetIDs() {
		quote := entry.Quotes[id]
		res, err := tx.ExecContext(ctx, q, id, quote.Price, quote.MarketCap, quote.Change24h, ts)
		if err != nil {
			return 0, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		if n == 0 {
			r.log.Warnf("snapshot for %s at %s already recorded", id, ts.Format(time.RFC3339))
		}
		inserted += n
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

// Entries returns the recorded snapshots grouped by timestamp, oldest first.
func (r *Repo) Entries(ctx context.Context) ([]models.HistoryEntry, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT asset_id, price, market_cap, change_24h, timestamp FROM price_history ORDER BY timestamp ASC, asset_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []models.HistoryEntry{}
	for rows.Next() {
		var p priceRow
		if err := rows.StructScan(&p); err != nil {
			r.log.Warnf("scan price row failed: %v", err)
			continue
		}
		if n := len(res); n == 0 || !res[n-1].Timestamp.Equal(p.Timestamp) {
			res = append(res, models.HistoryEntry{Timestamp: p.Timestamp, Quotes: models.QuoteSet{}})
		}
		res[len(res)-1].Quotes[p.AssetID] = models.Quote{
			AssetID:   p.AssetID,
			Price:     p.Price,
			MarketCap: p.MarketCap,
			Change24h: p.Change24h,
		}
	}
	return res, rows.Err()
}
