package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/contactkeval/option-wheel/internal/backtest/engine"
	"github.com/contactkeval/option-wheel/internal/config"
	"github.com/contactkeval/option-wheel/internal/data"
	"github.com/contactkeval/option-wheel/internal/report"
	"github.com/contactkeval/option-wheel/internal/store"
)

func newRunsCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect persisted backtest runs",
	}
	cmd.PersistentFlags().BoolVar(&asJSON, "json", false, "print as JSON")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List stored runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openPersistentStore(cmd.Context(), a.cfg.Store)
			if err != nil {
				return err
			}
			defer st.Close()

			runs, err := st.List(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), runs)
			}
			printRuns(cmd.OutOrStdout(), runs)
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one stored run with its ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openPersistentStore(cmd.Context(), a.cfg.Store)
			if err != nil {
				return err
			}
			defer st.Close()

			run, err := st.Get(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("run %s: %w", args[0], err)
			}
			res := &engine.Result{Ledger: run.Ledger, Summary: run.Summary}
			if asJSON {
				return printJSON(cmd.OutOrStdout(), report.NewDocument(run.ID, &run.Config, res))
			}
			printResult(cmd.OutOrStdout(), run.ID, res)
			return nil
		},
	}

	cmd.AddCommand(listCmd, showCmd)
	return cmd
}

// openPersistentStore opens the configured store for reading back runs. A
// memory store starts empty in every process, so it is rejected.
func openPersistentStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	if cfg.Driver == "" || cfg.Driver == "memory" {
		return nil, fmt.Errorf("%w: the memory store does not persist between commands; use --store sqlite or --store postgres", config.ErrConfigInvalid)
	}
	return store.Open(ctx, cfg.Driver, cfg.DSN)
}

func printRuns(out io.Writer, runs []store.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(out, "no stored runs")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tTICKER\tSTART\tEND\tRETURN")
	for _, r := range runs {
		ret := "-"
		if r.Summary.HasMetrics() {
			ret = r.Summary.TotalReturnPct.StringFixed(2) + "%"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID,
			r.CreatedAt.Format("2006-01-02 15:04:05"),
			r.Config.Ticker,
			data.DateKey(r.Config.Start),
			data.DateKey(r.Config.End),
			ret,
		)
	}
	tw.Flush()
}
