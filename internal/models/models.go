package models

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Ledger maps an asset id to the quantity held. An asset that is not in the
// ledger is held in quantity zero.
type Ledger map[string]decimal.Decimal

// Quantity returns the held quantity of id, zero when absent.
func (l Ledger) Quantity(id string) decimal.Decimal {
	if q, ok := l[id]; ok {
		return q
	}
	return decimal.Zero
}

// AssetIDs returns the held asset ids in ascending order.
func (l Ledger) AssetIDs() []string {
	ids := make([]string, 0, len(l))
	for id := range l {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clone returns an independent copy of the ledger. A nil ledger clones to an
// empty one.
func (l Ledger) Clone() Ledger {
	out := make(Ledger, len(l))
	for id, q := range l {
		out[id] = q
	}
	return out
}

// Equal reports whether both ledgers hold the same assets in equal
// quantities, ignoring the scale of the decimals.
func (l Ledger) Equal(other Ledger) bool {
	if len(l) != len(other) {
		return false
	}
	for id, q := range l {
		o, ok := other[id]
		if !ok || !q.Equal(o) {
			return false
		}
	}
	return true
}

// Holdings lists the ledger as rows, ordered by asset id.
func (l Ledger) Holdings() []Holding {
	res := make([]Holding, 0, len(l))
	for _, id := range l.AssetIDs() {
		res = append(res, Holding{AssetID: id, Quantity: l[id]})
	}
	return res
}

type Holding struct {
	AssetID  string          `db:"asset_id" json:"asset_id"`
	Quantity decimal.Decimal `db:"quantity" json:"quantity"`
}

type ValuationLine struct {
	AssetID   string              `json:"asset_id"`
	Quantity  decimal.Decimal     `json:"quantity"`
	UnitPrice decimal.NullDecimal `json:"unit_price"`
	Value     decimal.Decimal     `json:"value"`
}

// Priced reports whether the line was valued at a real quote.
func (v ValuationLine) Priced() bool {
	return v.UnitPrice.Valid
}

type ValuationReport struct {
	Lines       []ValuationLine `json:"lines"`
	TotalValue  decimal.Decimal `json:"total_value"`
	Currency    string          `json:"currency"`
	GeneratedAt time.Time       `json:"generated_at"`
	// Degraded is set when the price source could not be reached and every
	// line is therefore unpriced.
	Degraded bool `json:"degraded"`
}

type BuyResult struct {
	AssetID   string          `json:"asset_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Cost      decimal.Decimal `json:"cost"`
	Holding   decimal.Decimal `json:"holding"`
}

type HistoryEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Quotes    QuoteSet  `json:"quotes"`
}

// NormalizeID lower-cases and trims an asset id.
func NormalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// NormalizeIDs normalises ids, dropping empty and duplicate entries while
// keeping first-seen order.
func NormalizeIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	res := make([]string, 0, len(ids))
	for _, id := range ids {
		id = NormalizeID(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		res = append(res, id)
	}
	return res
}

// SplitIDs parses a comma separated id list such as "bitcoin, ethereum".
func SplitIDs(s string) []string {
	return NormalizeIDs(strings.Split(s, ","))
}

// PriceStats summarises the recorded prices of one asset.
type PriceStats struct {
	AssetID string              `json:"asset_id"`
	Samples int                 `json:"samples"`
	Min     decimal.Decimal     `json:"min"`
	Max     decimal.Decimal     `json:"max"`
	Mean    decimal.Decimal     `json:"mean"`
	StdDev  decimal.Decimal     `json:"stddev"`
	First   decimal.Decimal     `json:"first"`
	Last    decimal.Decimal     `json:"last"`
	Change  decimal.NullDecimal `json:"change_pct"`
}
