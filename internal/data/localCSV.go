package data

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/contactkeval/option-wheel/internal/logger"
)

// localFileDataProvider reads daily bars from <dir>/<TICKER>.csv.
//
// Expected header: date,open,high,low,close[,volume]. Column order is taken
// from the header so extra columns are ignored.
type localFileDataProvider struct {
	dir       string
	secondary PriceProvider
}

// NewLocalFileDataProvider convenience constructor. secondary may be nil; it
// is consulted when the ticker has no local file.
func NewLocalFileDataProvider(dir string, secondary PriceProvider) *localFileDataProvider {
	return &localFileDataProvider{dir: dir, secondary: secondary}
}

// Secondary returns the configured fallback provider, if any.
func (localFileDataProv *localFileDataProvider) Secondary() PriceProvider {
	return localFileDataProv.secondary
}

func (localFileDataProv *localFileDataProvider) GetBars(ctx context.Context, underlying string, fromDate, toDate time.Time) ([]Bar, error) {
	path := filepath.Join(localFileDataProv.dir, strings.ToUpper(underlying)+".csv")

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && localFileDataProv.secondary != nil {
			logger.Debugf("no local file for %s, delegating to secondary provider", underlying)
			return localFileDataProv.secondary.GetBars(ctx, underlying, fromDate, toDate)
		}
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w for %s: %s missing", ErrNoData, underlying, path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	all, err := readBarsCSV(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	from := DateKey(fromDate)
	to := DateKey(toDate)
	out := make([]Bar, 0, len(all))
	for _, b := range all {
		k := DateKey(b.Date)
		if k < from || k > to {
			continue
		}
		out = append(out, b)
	}

	if len(out) == 0 {
		return nil, fmt.Errorf("%w for %s between %s and %s", ErrNoData, underlying, from, to)
	}
	SortBars(out)
	return out, nil
}

// readBarsCSV parses bars; rows with malformed dates or prices are skipped.
func readBarsCSV(r io.Reader) ([]Bar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}

	col := map[string]int{}
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"date", "open", "close"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("missing %q column", required)
		}
	}

	field := func(row []string, name string) (float64, bool) {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return 0, false
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(row[i]), 64)
		return v, err == nil
	}

	var out []Bar
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if col["date"] >= len(row) {
			continue
		}

		d, err := time.Parse(DateLayout, strings.TrimSpace(row[col["date"]]))
		if err != nil {
			continue // skip malformed dates
		}
		open, okOpen := field(row, "open")
		closePx, okClose := field(row, "close")
		if !okOpen || !okClose {
			continue
		}
		high, _ := field(row, "high")
		low, _ := field(row, "low")
		vol, _ := field(row, "volume")

		out = append(out, Bar{Date: d, Open: open, High: high, Low: low, Close: closePx, Vol: vol})
	}
	return out, nil
}
