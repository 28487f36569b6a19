package models

import (
	"encoding/json"
	"sort"

	"github.com/shopspring/decimal"
)

// Quote is the price source's view of one asset. Every attribute is
// optional; the source may omit or null any of them.
type Quote struct {
	AssetID   string              `json:"asset_id"`
	Price     decimal.NullDecimal `json:"price"`
	MarketCap decimal.NullDecimal `json:"market_cap"`
	Change24h decimal.NullDecimal `json:"change_24h"`
}

// QuoteSet holds quotes keyed by asset id.
type QuoteSet map[string]Quote

// Price returns the quoted price of id and whether one is known.
func (s QuoteSet) Price(id string) (decimal.Decimal, bool) {
	q, ok := s[id]
	if !ok || !q.Price.Valid {
		return decimal.Zero, false
	}
	return q.Price.Decimal, true
}

// AssetIDs returns the quoted asset ids in ascending order.
func (s QuoteSet) AssetIDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Field names used by the price API for a quote currency, e.g. "usd",
// "usd_market_cap" and "usd_24h_change".
func priceField(cur string) string     { return cur }
func marketCapField(cur string) string { return cur + "_market_cap" }
func changeField(cur string) string    { return cur + "_24h_change" }

// QuoteFromRaw builds a Quote from the price API's per-asset object.
func QuoteFromRaw(id, currency string, raw map[string]decimal.NullDecimal) Quote {
	return Quote{
		AssetID:   id,
		Price:     raw[priceField(currency)],
		MarketCap: raw[marketCapField(currency)],
		Change24h: raw[changeField(currency)],
	}
}

// Raw returns the quote in the price API's wire shape. Missing attributes
// are left out.
func (q Quote) Raw(currency string) map[string]json.Number {
	out := map[string]json.Number{}
	put := func(k string, v decimal.NullDecimal) {
		if v.Valid {
			out[k] = json.Number(v.Decimal.String())
		}
	}
	put(priceField(currency), q.Price)
	put(marketCapField(currency), q.MarketCap)
	put(changeField(currency), q.Change24h)
	return out
}

// Raw returns the whole set in the price API's wire shape.
func (s QuoteSet) Raw(currency string) map[string]map[string]json.Number {
	out := make(map[string]map[string]json.Number, len(s))
	for id, q := range s {
		out[id] = q.Raw(currency)
	}
	return out
}

// QuoteSetFromRaw is the inverse of QuoteSet.Raw.
func QuoteSetFromRaw(currency string, raw map[string]map[string]decimal.NullDecimal) QuoteSet {
	out := make(QuoteSet, len(raw))
	for id, fields := range raw {
		out[id] = QuoteFromRaw(id, currency, fields)
	}
	return out
}
