// Package console is the terminal front end: one-shot commands plus the two
// interactive loops, a price watcher that records history and a menu.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"cryptofolio/internal/database"
	"cryptofolio/internal/display"
	"cryptofolio/internal/models"
	"cryptofolio/internal/service"
	"cryptofolio/internal/valuation"
)

type App struct {
	svc    *service.PortfolioService
	in     *bufio.Scanner
	out    io.Writer
	render Renderer
}

func NewApp(svc *service.PortfolioService, in io.Reader, out io.Writer, render Renderer) *App {
	return &App{svc: svc, in: bufio.NewScanner(in), out: out, render: render}
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func (a *App) table(md string) {
	s, err := a.render(md)
	if err != nil {
		s = md
	}
	fmt.Fprintln(a.out, s)
}

// prompt prints label and reads one trimmed line. ok is false at end of
// input.
func (a *App) prompt(label string) (line string, ok bool) {
	a.printf("%s", label)
	if !a.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(a.in.Text()), true
}

// Price prints the current quotes of ids.
func (a *App) Price(ctx context.Context, ids []string) error {
	ids = models.NormalizeIDs(ids)
	quotes, err := a.svc.GetQuotes(ctx, ids)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if _, ok := quotes[id]; !ok {
			a.printf("%s: not found, check the asset id\n", id)
		}
	}
	if len(quotes) == 0 {
		return service.ErrNoData
	}
	a.table(QuotesTable(quotes, a.svc.Currency()))
	return nil
}

// Buy records a purchase and prints what it cost.
func (a *App) Buy(ctx context.Context, id, quantity string) error {
	q, err := valuation.ParseQuantity(quantity)
	if err != nil {
		return err
	}
	res, err := a.svc.Buy(ctx, id, q)
	if err != nil {
		return err
	}
	cur := a.svc.Currency()
	a.printf("Bought %s %s for %s (at %s each)\n", display.Quantity(res.Quantity), res.AssetID, display.Money(res.Cost, cur), display.Money(res.UnitPrice, cur))
	a.printf("Portfolio updated, you now hold %s %s.\n", display.Quantity(res.Holding), res.AssetID)
	return nil
}

// Portfolio prints the valuation report.
func (a *App) Portfolio(ctx context.Context) error {
	report, err := a.svc.GetReport(ctx)
	if err != nil {
		return err
	}
	if len(report.Lines) == 0 {
		a.printf("Your portfolio is empty.\n")
		return nil
	}
	if report.Degraded {
		a.printf("Prices are unavailable right now, values are shown as zero.\n")
	}
	a.table(PortfolioTable(report))
	return nil
}

// History prints every recorded snapshot.
func (a *App) History(ctx context.Context) error {
	entries, err := a.svc.History(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		a.printf("No snapshots recorded yet.\n")
		return nil
	}
	a.table(HistoryTable(entries, a.svc.Currency()))
	return nil
}

// Stats prints per-asset price statistics of the history log.
func (a *App) Stats(ctx context.Context) error {
	st, err := a.svc.HistoryStats(ctx)
	if err != nil {
		return err
	}
	if len(st) == 0 {
		a.printf("No snapshots recorded yet.\n")
		return nil
	}
	a.table(StatsTable(st, a.svc.Currency()))
	return nil
}

// Export writes the history log as CSV to w.
func (a *App) Export(ctx context.Context, w io.Writer) error {
	entries, err := a.svc.History(ctx)
	if err != nil {
		return err
	}
	return database.WriteHistoryCSV(w, entries, a.svc.Currency())
}

// Watch repeatedly asks for a list of ids, prints their quotes and records
// each snapshot in the history log until "exit" or end of input.
func (a *App) Watch(ctx context.Context) error {
	a.printf("Crypto price watcher\n")
	for {
		line, ok := a.prompt("\nEnter asset ids (e.g. bitcoin,ethereum) or 'exit' to quit: ")
		if !ok || strings.EqualFold(line, "exit") {
			a.printf("Bye.\n")
			return ctx.Err()
		}
		ids := models.SplitIDs(line)
		if len(ids) == 0 {
			a.printf("Enter at least one asset id.\n")
			continue
		}
		quotes, err := a.svc.Snapshot(ctx, ids)
		if err != nil {
			a.printf("Could not fetch data (%v). Check the asset ids.\n", err)
			continue
		}
		a.printf("\nUpdated: %s\n", time.Now().Format(database.TimestampLayout))
		a.table(QuotesTable(quotes, a.svc.Currency()))
		a.printf("Snapshot saved to history.\n")
	}
}

// Menu runs the interactive check / buy / show loop.
func (a *App) Menu(ctx context.Context) error {
	a.printf("Crypto portfolio tracker\n")
	for {
		a.printf("\nMENU:\n1. Check a price\n2. Buy\n3. Show portfolio\n4. Exit\n")
		choice, ok := a.prompt("Choose an option (1/2/3/4): ")
		if !ok {
			a.printf("\nBye.\n")
			return nil
		}
		var err error
		switch choice {
		case "1":
			id, ok := a.prompt("\nAsset to check: ")
			if !ok {
				continue
			}
			err = a.Price(ctx, []string{id})
		case "2":
			id, ok := a.prompt("\nAsset to buy: ")
			if !ok {
				continue
			}
			qty, ok := a.prompt(fmt.Sprintf("How many units of %s? ", models.NormalizeID(id)))
			if !ok {
				continue
			}
			err = a.Buy(ctx, id, qty)
		case "3":
			err = a.Portfolio(ctx)
		case "4":
			a.printf("Bye.\n")
			return nil
		default:
			a.printf("Choose a valid option.\n")
			continue
		}
		if err != nil {
			a.printf("%s\n", Describe(err))
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// Describe turns a service error into a message for the user.
func Describe(err error) string {
	switch {
	case errors.Is(err, valuation.ErrInvalidQuantity):
		return "Quantity must be a number greater than zero."
	case errors.Is(err, valuation.ErrUnknownAsset):
		return "Unknown asset, check the asset id."
	case errors.Is(err, service.ErrSourceUnavailable):
		return "Could not reach the price source, try again later."
	case errors.Is(err, service.ErrNoData), errors.Is(err, service.ErrNoAssets):
		return "No data to show, check the asset ids."
	}
	return "Error: " + err.Error()
}
