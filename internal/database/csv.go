package database

import (
	"io"

	"cryptofolio/internal/models"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"
)

type historyRow struct {
	Timestamp string `csv:"timestamp"`
	AssetID   string `csv:"asset_id"`
	Price     string `csv:"price"`
	MarketCap string `csv:"market_cap"`
	Change24h string `csv:"change_24h"`
	Currency  string `csv:"currency"`
}

func cell(v decimal.NullDecimal) string {
	if !v.Valid {
		return ""
	}
	return v.Decimal.String()
}

// WriteHistoryCSV writes one row per asset and snapshot, snapshots in the
// given order and assets by id.
func WriteHistoryCSV(w io.Writer, entries []models.HistoryEntry, currency string) error {
	rows := []*historyRow{}
	for _, e := range entries {
		ts := e.Timestamp.Format(TimestampLayout)
		for _, id := range e.Quotes.AssetIDs() {
			q := e.Quotes[id]
			rows = append(rows, &historyRow{
				Timestamp: ts,
				AssetID:   id,
				Price:     cell(q.Price),
				MarketCap: cell(q.MarketCap),
				Change24h: cell(q.Change24h),
				Currency:  currency,
			})
		}
	}
	return gocsv.Marshal(rows, w)
}
