package console

import (
	"fmt"
	"strings"

	"cryptofolio/internal/database"
	"cryptofolio/internal/display"
	"cryptofolio/internal/models"

	"github.com/charmbracelet/glamour"
)

// Renderer turns markdown into what is printed on the terminal.
type Renderer func(md string) (string, error)

// Glamour renders markdown with styles picked for the current terminal.
func Glamour() (Renderer, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(120),
	)
	if err != nil {
		return nil, err
	}
	return r.Render, nil
}

// Plain prints the markdown untouched.
func Plain(md string) (string, error) {
	return md, nil
}

// QuotesTable lists quotes with price, market cap and 24h change.
func QuotesTable(quotes models.QuoteSet, cur string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "| Asset | Price (%s) | Market cap | 24h change |\n", strings.ToUpper(cur))
	fmt.Fprintln(&b, "|:---|---:|---:|---:|")
	for _, id := range quotes.AssetIDs() {
		q := quotes[id]
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
			display.Name(id),
			display.Price(q.Price, cur),
			display.MarketCap(q.MarketCap, cur),
			display.Percent(q.Change24h),
		)
	}
	return b.String()
}

// PortfolioTable lists every holding with its value and the total.
func PortfolioTable(r models.ValuationReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "| Asset | Amount | Price (%s) | Value (%s) |\n", strings.ToUpper(r.Currency), strings.ToUpper(r.Currency))
	fmt.Fprintln(&b, "|:---|---:|---:|---:|")
	for _, l := range r.Lines {
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
			display.Name(l.AssetID),
			display.Quantity(l.Quantity),
			display.Price(l.UnitPrice, r.Currency),
			display.Money(l.Value, r.Currency),
		)
	}
	fmt.Fprintf(&b, "\n**Total value: %s**\n", display.Money(r.TotalValue, r.Currency))
	return b.String()
}

// HistoryTable flattens snapshots into one row per asset and timestamp.
func HistoryTable(entries []models.HistoryEntry, cur string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "| Time | Asset | Price (%s) | 24h change |\n", strings.ToUpper(cur))
	fmt.Fprintln(&b, "|:---|:---|---:|---:|")
	for _, e := range entries {
		for _, id := range e.Quotes.AssetIDs() {
			q := e.Quotes[id]
			fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
				e.Timestamp.Format(database.TimestampLayout),
				display.Name(id),
				display.Price(q.Price, cur),
				display.Percent(q.Change24h),
			)
		}
	}
	return b.String()
}

// StatsTable lists the price statistics of the history log.
func StatsTable(st []models.PriceStats, cur string) string {
	var b strings.Builder
	fmt.Fprintln(&b, "| Asset | Samples | Min | Max | Mean | Std dev | Change |")
	fmt.Fprintln(&b, "|:---|---:|---:|---:|---:|---:|---:|")
	for _, s := range st {
		fmt.Fprintf(&b, "| %s | %d | %s | %s | %s | %s | %s |\n",
			display.Name(s.AssetID),
			s.Samples,
			display.Money(s.Min, cur),
			display.Money(s.Max, cur),
			display.Money(s.Mean, cur),
			display.Money(s.StdDev, cur),
			display.Percent(s.Change),
		)
	}
	return b.String()
}
