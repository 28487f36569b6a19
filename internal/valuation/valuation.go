// Package valuation prices a ledger against a set of quotes and applies buy
// orders to it. Everything here is pure: no I/O, no clocks, no locking.
package valuation

import (
	"errors"
	"fmt"
	"strings"

	"cryptofolio/internal/models"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be greater than zero")
	ErrUnknownAsset    = errors.New("asset not recognised by the price source")
)

// MissingPriceValue is what a holding without a quoted price contributes to
// the portfolio total. The line is still reported, marked as unpriced.
var MissingPriceValue = decimal.Zero

// ValuePortfolio values every holding of l at the prices in quotes. Lines
// follow l.AssetIDs order.
func ValuePortfolio(l models.Ledger, quotes models.QuoteSet, currency string) models.ValuationReport {
	report := models.ValuationReport{
		Lines:      make([]models.ValuationLine, 0, len(l)),
		TotalValue: decimal.Zero,
		Currency:   currency,
	}
	for _, id := range l.AssetIDs() {
		qty := l[id]
		line := models.ValuationLine{AssetID: id, Quantity: qty, Value: MissingPriceValue}
		if price, ok := quotes.Price(id); ok {
			line.UnitPrice = decimal.NewNullDecimal(price)
			line.Value = qty.Mul(price)
		}
		report.Lines = append(report.Lines, line)
		report.TotalValue = report.TotalValue.Add(line.Value)
	}
	return report
}

// Buy returns a copy of l holding qty more of id. quote must be the price
// source's quote for id and carry a price. On error l is returned unchanged.
func Buy(l models.Ledger, id string, qty decimal.Decimal, quote *models.Quote) (models.Ledger, error) {
	if !qty.IsPositive() {
		return l, ErrInvalidQuantity
	}
	if quote == nil || quote.AssetID != id || !quote.Price.Valid {
		return l, ErrUnknownAsset
	}
	next := l.Clone()
	next[id] = l.Quantity(id).Add(qty)
	return next, nil
}

// ParseQuantity reads a user supplied quantity. Anything that is not a
// positive number is ErrInvalidQuantity.
func ParseQuantity(s string) (decimal.Decimal, error) {
	q, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q is not a number", ErrInvalidQuantity, s)
	}
	if !q.IsPositive() {
		return decimal.Zero, ErrInvalidQuantity
	}
	return q, nil
}
