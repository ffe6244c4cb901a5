// Package trendstats summarizes how often a binary trend label repeats from one bar to the next.
package trendstats

import (
	"fmt"
	"math"

	"cryptoseries/internal/analysis/indicator"
	"cryptoseries/internal/market"

	"github.com/shopspring/decimal"
)

// Report holds percentages in [0, 100].
type Report struct {
	Samples       int     `json:"samples"`
	TrendUpRatio  float64 `json:"trend_up_ratio"`
	TruePositive  float64 `json:"true_positive"`
	TrueNegative  float64 `json:"true_negative"`
	FalsePositive float64 `json:"false_positive"`
	FalseNegative float64 `json:"false_negative"`
}

// Compute classifies each bar's 1-bar trend against the next bar's trend.
// Up today and up tomorrow is a true positive, down/down a true negative, and so on.
// The last bar has no successor and is excluded.
func Compute(s *market.Series) (Report, error) {
	labels, err := labelColumn(s, 1)
	if err != nil {
		return Report{}, err
	}
	if len(labels) < 2 {
		return Report{}, fmt.Errorf("need at least 2 bars, got %d", len(labels))
	}
	var up, tp, tn, fp, fn int
	samples := len(labels) - 1
	for i := 0; i < samples; i++ {
		today, tomorrow := labels[i] == 1, labels[i+1] == 1
		if today {
			up++
		}
		switch {
		case today && tomorrow:
			tp++
		case !today && !tomorrow:
			tn++
		case today && !tomorrow:
			fp++
		default:
			fn++
		}
	}
	return Report{
		Samples:       samples,
		TrendUpRatio:  percent(up, samples),
		TruePositive:  percent(tp, samples),
		TrueNegative:  percent(tn, samples),
		FalsePositive: percent(fp, samples),
		FalseNegative: percent(fn, samples),
	}, nil
}

// TrendUpRatio is the percentage of bars whose close rose over the previous n bars.
func TrendUpRatio(s *market.Series, n int) (float64, error) {
	if n <= 0 {
		return 0, fmt.Errorf("horizon must be positive, got %d", n)
	}
	labels, err := labelColumn(s, n)
	if err != nil {
		return 0, err
	}
	if len(labels) == 0 {
		return 0, fmt.Errorf("empty series")
	}
	up := 0
	for _, v := range labels {
		if v == 1 {
			up++
		}
	}
	return percent(up, len(labels)), nil
}

// labelColumn returns trend_{n}d, computing it on a scratch copy when s lacks it.
func labelColumn(s *market.Series, n int) ([]float64, error) {
	if s == nil {
		return nil, fmt.Errorf("nil series")
	}
	name := fmt.Sprintf("trend_%dd", n)
	if col, ok := s.Column(name); ok {
		return col, nil
	}
	closes, ok := s.Column(market.ColClose)
	if !ok {
		return nil, fmt.Errorf("series has no %s column", market.ColClose)
	}
	scratch := market.NewSeries(s.Symbol, s.Timeframe, closeOnlyBars(s.Index(), closes))
	if _, err := indicator.NewEngine(indicator.Settings{}).Compute(scratch, []string{name}, false); err != nil {
		return nil, err
	}
	col, _ := scratch.Column(name)
	return col, nil
}

func closeOnlyBars(index []int64, closes []float64) []market.Bar {
	bars := make([]market.Bar, len(index))
	for i, ts := range index {
		bars[i] = market.Bar{OpenTime: ts, Open: math.NaN(), High: math.NaN(), Low: math.NaN(), Close: closes[i], Volume: math.NaN()}
	}
	return bars
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return decimal.NewFromInt(int64(part)).
		Mul(decimal.NewFromInt(100)).
		DivRound(decimal.NewFromInt(int64(total)), 4).
		InexactFloat64()
}
