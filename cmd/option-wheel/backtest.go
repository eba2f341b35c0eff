package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/contactkeval/option-wheel/internal/backtest/engine"
	"github.com/contactkeval/option-wheel/internal/logger"
	"github.com/contactkeval/option-wheel/internal/report"
	"github.com/contactkeval/option-wheel/internal/store"
)

func newBacktestCmd(a *app) *cobra.Command {
	var (
		asJSON bool
		save   bool
	)

	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Run one wheel backtest and print the summary and ledger",
		Example: `  option-wheel backtest --ticker AAPL --start 2024-01-01 --end 2024-06-30
  option-wheel backtest --ticker SPY --strike-pct 0.97 --capital 250000 --json
  option-wheel backtest --ticker MSFT --start 2023-01-01 --end 2023-12-31 --report-dir out --save`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := a.cfg

			sim, err := cfg.Backtest.Simulation()
			if err != nil {
				return err
			}

			c, err := build(ctx, cfg, save)
			if err != nil {
				return err
			}
			defer c.Close()

			res, err := c.engine.Run(ctx, sim)
			if err != nil {
				return err
			}

			var id string
			if save {
				run := store.NewRun(sim, res)
				if err := c.store.Save(ctx, run); err != nil {
					return err
				}
				id = run.ID
				logger.Infof("event=run_saved id=%s driver=%s", id, cfg.Store.Driver)
			}

			doc := report.NewDocument(id, &sim, res)
			if cfg.ReportDir != "" {
				if err := report.WriteAll(doc, cfg.ReportDir); err != nil {
					return err
				}
				logger.Infof("event=report_written dir=%s", cfg.ReportDir)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, doc)
			}
			printResult(out, id, res)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.String("ticker", "", "underlying ticker, e.g. AAPL")
	flags.Float64("strike-pct", 0.95, "strike as a fraction of the Monday open")
	flags.String("start", "", "first day of the backtest (YYYY-MM-DD)")
	flags.String("end", "", "last day of the backtest (YYYY-MM-DD)")
	flags.String("capital", "100000", "starting cash")
	flags.String("strike-rule", "", "strike expression over open and pct (default open * pct)")
	flags.String("report-dir", "", "write result.json, ledger.csv and equity.csv here")
	flags.BoolVar(&asJSON, "json", false, "print the result as JSON")
	flags.BoolVar(&save, "save", false, "persist the run in the configured store")
	a.bind(flags.Lookup("ticker"), "backtest.ticker")
	a.bind(flags.Lookup("strike-pct"), "backtest.strike_pct")
	a.bind(flags.Lookup("start"), "backtest.start")
	a.bind(flags.Lookup("end"), "backtest.end")
	a.bind(flags.Lookup("capital"), "backtest.starting_capital")
	a.bind(flags.Lookup("strike-rule"), "backtest.strike_rule")
	a.bind(flags.Lookup("report-dir"), "report_dir")

	return cmd
}

// printResult renders a run for a terminal; colors only when out is the
// process stdout and it is a TTY.
func printResult(out io.Writer, id string, res *engine.Result) {
	console := report.NewConsole(out, out == io.Writer(os.Stdout) && !color.NoColor)
	if id != "" {
		fmt.Fprintf(out, "Run %s\n\n", id)
	}
	console.Summary(res.Summary)
	if len(res.Ledger) > 0 {
		fmt.Fprintln(out)
		console.Ledger(res.Ledger)
	}
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
