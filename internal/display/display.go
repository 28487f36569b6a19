// Package display formats quotes and valuations for people: the HTML pages
// and the console tables share these helpers.
package display

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// NoData marks a value the price source did not provide.
const NoData = "no data"

var billion = decimal.New(1, 9)

// Name turns an asset id into a label, "bitcoin" -> "Bitcoin".
func Name(id string) string {
	r, size := utf8.DecodeRuneInString(id)
	if r == utf8.RuneError {
		return id
	}
	return string(unicode.ToUpper(r)) + id[size:]
}

// Symbol returns the sign printed before amounts in cur.
func Symbol(cur string) string {
	switch strings.ToLower(cur) {
	case "usd":
		return "$"
	case "eur":
		return "€"
	case "gbp":
		return "£"
	}
	return strings.ToUpper(cur) + " "
}

// Money formats an amount with two decimals, "$1234.50".
func Money(v decimal.Decimal, cur string) string {
	return Symbol(cur) + v.StringFixed(2)
}

// Price formats an optional price, NoData when missing.
func Price(v decimal.NullDecimal, cur string) string {
	if !v.Valid {
		return NoData
	}
	return Money(v.Decimal, cur)
}

// MarketCap formats an optional market cap in billions, "$1190.00B".
func MarketCap(v decimal.NullDecimal, cur string) string {
	if !v.Valid || v.Decimal.IsZero() {
		return NoData
	}
	return Symbol(cur) + v.Decimal.Div(billion).StringFixed(2) + "B"
}

// Percent formats an optional percentage, "-2.50%".
func Percent(v decimal.NullDecimal) string {
	if !v.Valid {
		return NoData
	}
	return v.Decimal.StringFixed(2) + "%"
}

// Quantity prints a held quantity without trailing zeros.
func Quantity(v decimal.Decimal) string {
	return v.String()
}
