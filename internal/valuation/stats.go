package valuation

import (
	"sort"

	"cryptofolio/internal/models"

	"github.com/montanaflynn/stats"
	"github.com/shopspring/decimal"
)

const statsPlaces = 8

var hundred = decimal.NewFromInt(100)

// HistoryStats summarises the price of every asset found in entries, which
// must be in recording order. Entries without a price are ignored; assets
// never priced are left out.
func HistoryStats(entries []models.HistoryEntry) []models.PriceStats {
	series := map[string][]decimal.Decimal{}
	for _, e := range entries {
		for id, q := range e.Quotes {
			if q.Price.Valid {
				series[id] = append(series[id], q.Price.Decimal)
			}
		}
	}

	ids := make([]string, 0, len(series))
	for id := range series {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	res := make([]models.PriceStats, 0, len(ids))
	for _, id := range ids {
		res = append(res, priceStats(id, series[id]))
	}
	return res
}

func priceStats(id string, prices []decimal.Decimal) models.PriceStats {
	data := make(stats.Float64Data, len(prices))
	for i, p := range prices {
		data[i] = p.InexactFloat64()
	}
	// errors only come back for empty input
	mean, _ := stats.Mean(data)
	sd, _ := stats.StandardDeviationPopulation(data)

	first, last := prices[0], prices[len(prices)-1]
	s := models.PriceStats{
		AssetID: id,
		Samples: len(prices),
		Min:     decimal.Min(prices[0], prices[1:]...),
		Max:     decimal.Max(prices[0], prices[1:]...),
		Mean:    decimal.NewFromFloat(mean).Round(statsPlaces),
		StdDev:  decimal.NewFromFloat(sd).Round(statsPlaces),
		First:   first,
		Last:    last,
	}
	if !first.IsZero() {
		s.Change = decimal.NewNullDecimal(last.Sub(first).Div(first).Mul(hundred).Round(statsPlaces))
	}
	return s
}
