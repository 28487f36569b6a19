package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"cryptofolio/internal/bootstrap"
	"cryptofolio/internal/config"
	"cryptofolio/internal/console"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := execute(ctx, newRootCmd()); err != nil {
		os.Exit(1)
	}
}

// execute runs root and reports any failure, cobra's own argument and flag
// errors included, on its error stream.
func execute(ctx context.Context, root *cobra.Command) error {
	err := root.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(root.ErrOrStderr(), console.Describe(err))
	}
	return err
}

type options struct {
	cfg   config.Config
	plain bool
}

func newRootCmd() *cobra.Command {
	opts := &options{cfg: config.Load()}

	root := &cobra.Command{
		Use:           "cryptofolio",
		Short:         "Track crypto prices and a small portfolio",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	f := root.PersistentFlags()
	f.StringVar(&opts.cfg.StorePath, "store", opts.cfg.StorePath, "ledger file")
	f.StringVar(&opts.cfg.HistoryPath, "history", opts.cfg.HistoryPath, "price history file")
	f.StringVar(&opts.cfg.PriceEndpoint, "endpoint", opts.cfg.PriceEndpoint, "price source URL")
	f.StringVar(&opts.cfg.QuoteCurrency, "currency", opts.cfg.QuoteCurrency, "quote currency")
	f.StringVar(&opts.cfg.LogLevel, "log-level", opts.cfg.LogLevel, "log level")
	f.BoolVar(&opts.plain, "plain", false, "print tables as raw markdown")

	root.AddCommand(
		&cobra.Command{
			Use:   "price <id>...",
			Short: "Show current quotes",
			Args:  cobra.MinimumNArgs(1),
			RunE: opts.run(func(cmd *cobra.Command, a *console.App, args []string) error {
				return a.Price(cmd.Context(), args)
			}),
		},
		&cobra.Command{
			Use:   "buy <id> <quantity>",
			Short: "Buy at the current price",
			Args:  cobra.ExactArgs(2),
			RunE: opts.run(func(cmd *cobra.Command, a *console.App, args []string) error {
				return a.Buy(cmd.Context(), args[0], args[1])
			}),
		},
		&cobra.Command{
			Use:   "portfolio",
			Short: "Value the portfolio",
			Args:  cobra.NoArgs,
			RunE: opts.run(func(cmd *cobra.Command, a *console.App, _ []string) error {
				return a.Portfolio(cmd.Context())
			}),
		},
		newHistoryCmd(opts),
		newExportCmd(opts),
		&cobra.Command{
			Use:   "watch",
			Short: "Interactively check prices and record them",
			Args:  cobra.NoArgs,
			RunE: opts.run(func(cmd *cobra.Command, a *console.App, _ []string) error {
				return a.Watch(cmd.Context())
			}),
		},
		&cobra.Command{
			Use:   "menu",
			Short: "Interactive menu: check, buy, show portfolio",
			Args:  cobra.NoArgs,
			RunE: opts.run(func(cmd *cobra.Command, a *console.App, _ []string) error {
				return a.Menu(cmd.Context())
			}),
		},
	)
	return root
}

func newHistoryCmd(opts *options) *cobra.Command {
	var withStats bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded price snapshots",
		Args:  cobra.NoArgs,
		RunE: opts.run(func(cmd *cobra.Command, a *console.App, _ []string) error {
			if withStats {
				return a.Stats(cmd.Context())
			}
			return a.History(cmd.Context())
		}),
	}
	cmd.Flags().BoolVar(&withStats, "stats", false, "summarise prices per asset instead")
	return cmd
}

func newExportCmd(opts *options) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the price history as CSV",
		Args:  cobra.NoArgs,
		RunE: opts.run(func(cmd *cobra.Command, a *console.App, _ []string) error {
			if out == "" || out == "-" {
				return a.Export(cmd.Context(), cmd.OutOrStdout())
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := a.Export(cmd.Context(), f); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		}),
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file, stdout when empty")
	return cmd
}

// run builds the console app for one command and reports failures the same
// way for every command.
func (o *options) run(fn func(*cobra.Command, *console.App, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		o.cfg.QuoteCurrency = strings.ToLower(o.cfg.QuoteCurrency)
		logger := o.cfg.NewLogger()

		app, err := bootstrap.New(o.cfg, logger)
		if err != nil {
			return err
		}
		defer app.Close()

		render := console.Renderer(console.Plain)
		if !o.plain {
			if r, err := console.Glamour(); err == nil {
				render = r
			} else {
				logger.Warnf("falling back to plain output: %v", err)
			}
		}

		a := console.NewApp(app.Service, cmd.InOrStdin(), cmd.OutOrStdout(), render)
		return fn(cmd, a, args)
	}
}
