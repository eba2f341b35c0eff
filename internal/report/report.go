// Package report writes backtest results to disk and to the console.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/contactkeval/option-wheel/internal/backtest/engine"
	"github.com/contactkeval/option-wheel/internal/data"
)

const (
	LedgerFile = "ledger.csv"
	EquityFile = "equity.csv"
	ResultFile = "result.json"
)

// Document is the JSON shape of a finished run.
type Document struct {
	ID          string                   `json:"id,omitempty"`
	Config      *engine.SimulationConfig `json:"config,omitempty"`
	Ledger      []engine.Action          `json:"ledger"`
	Summary     engine.Summary           `json:"summary"`
	EquityCurve []engine.EquityPoint     `json:"equity_curve"`
}

// NewDocument assembles a Document, deriving the equity curve from the ledger.
func NewDocument(id string, cfg *engine.SimulationConfig, res *engine.Result) Document {
	curve := engine.BuildEquityCurve(res.Ledger, res.Summary.StartingCapital)
	if curve == nil {
		curve = []engine.EquityPoint{}
	}
	return Document{
		ID:          id,
		Config:      cfg,
		Ledger:      res.Ledger,
		Summary:     res.Summary,
		EquityCurve: curve,
	}
}

// WriteAll writes result.json, ledger.csv and equity.csv into outdir,
// creating it if needed.
func WriteAll(doc Document, outdir string) error {
	if err := os.MkdirAll(outdir, 0755); err != nil {
		return fmt.Errorf("create report dir %s: %w", outdir, err)
	}
	if err := WriteJSON(doc, outdir); err != nil {
		return err
	}
	if err := WriteCSV(doc.Ledger, outdir); err != nil {
		return err
	}
	return WriteEquityCSV(doc.EquityCurve, outdir)
}

func WriteJSON(doc Document, outdir string) error {
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(outdir, ResultFile), b, 0644)
}

// WriteCSV writes the ledger with money rendered to cents.
func WriteCSV(ledger []engine.Action, outdir string) error {
	rows := make([][]string, 0, len(ledger))
	for _, a := range ledger {
		rows = append(rows, []string{
			data.DateKey(a.Date),
			a.Kind.String(),
			a.StockPrice.StringFixed(2),
			a.Strike.StringFixed(2),
			a.Premium.StringFixed(2),
			strconv.Itoa(a.SharesHeld),
			a.Cash.StringFixed(2),
			a.PortfolioValue.StringFixed(2),
		})
	}
	headers := []string{"date", "action", "stock_price", "strike", "premium", "shares_held", "cash_balance", "portfolio_value"}
	return writeCSVFile(filepath.Join(outdir, LedgerFile), headers, rows)
}

func WriteEquityCSV(curve []engine.EquityPoint, outdir string) error {
	rows := make([][]string, 0, len(curve))
	for _, p := range curve {
		rows = append(rows, []string{data.DateKey(p.Date), p.Value.StringFixed(2)})
	}
	return writeCSVFile(filepath.Join(outdir, EquityFile), []string{"date", "portfolio_value"}, rows)
}

func writeCSVFile(path string, headers []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(headers); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return f.Close()
}
