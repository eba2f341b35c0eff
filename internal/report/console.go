package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"

	"github.com/contactkeval/option-wheel/internal/backtest/engine"
	"github.com/contactkeval/option-wheel/internal/data"
)

// Console renders results as aligned text.
type Console struct {
	w      io.Writer
	green  *color.Color
	red    *color.Color
	yellow *color.Color
	bold   *color.Color
}

// NewConsole returns a Console writing to w. Colors are emitted only when
// colorEnabled is set.
func NewConsole(w io.Writer, colorEnabled bool) *Console {
	c := &Console{
		w:      w,
		green:  color.New(color.FgGreen),
		red:    color.New(color.FgRed),
		yellow: color.New(color.FgYellow),
		bold:   color.New(color.Bold),
	}
	for _, col := range []*color.Color{c.green, c.red, c.yellow, c.bold} {
		if colorEnabled {
			col.EnableColor()
		} else {
			col.DisableColor()
		}
	}
	return c
}

// Summary prints the run summary, or the notice when the run had no cycles.
func (c *Console) Summary(s engine.Summary) {
	if !s.HasMetrics() {
		c.yellow.Fprintf(c.w, "warning: %s\n", s.Notice)
		return
	}

	c.bold.Fprintln(c.w, "Summary")
	tw := tabwriter.NewWriter(c.w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Starting capital\t%s\n", money(s.StartingCapital))
	fmt.Fprintf(tw, "Ending balance\t%s\n", money(s.EndingBalance))
	fmt.Fprintf(tw, "Total return\t%s\n", c.returnPct(s.TotalReturnPct))
	fmt.Fprintf(tw, "Premium collected\t%s\n", money(s.PremiumCollected))
	fmt.Fprintf(tw, "Puts sold\t%d\n", s.PutsSold)
	fmt.Fprintf(tw, "Calls sold\t%d\n", s.CallsSold)
	fmt.Fprintf(tw, "Assignments\t%d\n", s.Assignments)
	fmt.Fprintf(tw, "Call-aways\t%d\n", s.CallAways)
	if s.SkippedAssignments > 0 {
		fmt.Fprintf(tw, "Skipped assignments\t%s\n", c.yellow.Sprint(s.SkippedAssignments))
	}
	fmt.Fprintf(tw, "Shares held at end\t%d\n", s.SharesHeldAtEnd)
	fmt.Fprintf(tw, "Cash at end\t%s\n", money(s.CashAtEnd))
	fmt.Fprintf(tw, "Last close\t%s\n", money(s.LastClose))
	tw.Flush()
}

// Ledger prints one row per action.
func (c *Console) Ledger(ledger []engine.Action) {
	if len(ledger) == 0 {
		return
	}
	c.bold.Fprintln(c.w, "Ledger")
	tw := tabwriter.NewWriter(c.w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Date\tAction\tPrice\tStrike\tPremium\tShares\tCash\tValue\t")
	for _, a := range ledger {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\t%s\t\n",
			data.DateKey(a.Date),
			a.Kind,
			a.StockPrice.StringFixed(2),
			a.Strike.StringFixed(2),
			a.Premium.StringFixed(2),
			a.SharesHeld,
			a.Cash.StringFixed(2),
			a.PortfolioValue.StringFixed(2),
		)
	}
	tw.Flush()
}

func (c *Console) returnPct(v decimal.Decimal) string {
	s := v.StringFixed(2) + "%"
	if v.IsNegative() {
		return c.red.Sprint(s)
	}
	return c.green.Sprint(s)
}

func money(v decimal.Decimal) string {
	return "$" + v.StringFixed(2)
}
