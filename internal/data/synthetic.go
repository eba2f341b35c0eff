package data

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"strings"
	"time"
)

// synthDataProvider implements PriceProvider generating a synthetic daily
// random walk. Output depends only on (seed, ticker, range), so identical
// requests return identical bars.
type synthDataProvider struct {
	seed int64
}

func NewSyntheticProvider(seed int64) PriceProvider { return &synthDataProvider{seed: seed} }

func (synthDataProv *synthDataProvider) GetBars(ctx context.Context, underlying string, fromDate, toDate time.Time) ([]Bar, error) {
	h := fnv.New64a()
	h.Write([]byte(strings.ToUpper(underlying)))
	rng := rand.New(rand.NewSource(synthDataProv.seed ^ int64(h.Sum64())))

	cur := time.Date(fromDate.Year(), fromDate.Month(), fromDate.Day(), 0, 0, 0, 0, time.UTC)
	end := time.Date(toDate.Year(), toDate.Month(), toDate.Day(), 0, 0, 0, 0, time.UTC)
	price := 100.0 + float64(rng.Intn(200))

	var out []Bar
	for !cur.After(end) {
		if cur.Weekday() != time.Saturday && cur.Weekday() != time.Sunday {
			open := price * (1 + rng.NormFloat64()*0.002)
			closePx := open * (1 + rng.NormFloat64()*0.015)
			high := math.Max(open, closePx) * (1 + math.Abs(rng.NormFloat64()*0.004))
			low := math.Min(open, closePx) * (1 - math.Abs(rng.NormFloat64()*0.004))
			out = append(out, Bar{
				Date:  cur,
				Open:  round2(open),
				High:  round2(high),
				Low:   round2(low),
				Close: round2(closePx),
				Vol:   float64(1000 + rng.Intn(5000)),
			})
			price = closePx
		}
		cur = cur.AddDate(0, 0, 1)
	}

	if len(out) == 0 {
		return nil, ErrNoData
	}
	return out, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
