package acquire

import (
	"cryptoseries/internal/market"
)

// Concat joins window batches in submission order, keeping the first bar seen for each timestamp.
func Concat(windows []Window, results map[int64]WindowResult) []market.Bar {
	total := 0
	for _, w := range windows {
		total += len(results[w.Since].Bars)
	}
	out := make([]market.Bar, 0, total)
	seen := make(map[int64]struct{}, total)
	for _, w := range windows {
		for _, b := range results[w.Since].Bars {
			if _, dup := seen[b.OpenTime]; dup {
				continue
			}
			seen[b.OpenTime] = struct{}{}
			out = append(out, b)
		}
	}
	return out
}

// Reindex places bars onto grid. Grid slots without data become gap bars; bars whose
// timestamp is not on the grid are dropped. The output has exactly len(grid) rows.
func Reindex(bars []market.Bar, grid []int64) []market.Bar {
	byTime := make(map[int64]market.Bar, len(bars))
	for _, b := range bars {
		if _, ok := byTime[b.OpenTime]; ok {
			continue
		}
		byTime[b.OpenTime] = b
	}
	out := make([]market.Bar, len(grid))
	for i, ts := range grid {
		if b, ok := byTime[ts]; ok {
			out[i] = b
			continue
		}
		out[i] = market.GapBar(ts)
	}
	return out
}

// Assemble turns per-window results into the canonical bar sequence for grid.
func Assemble(windows []Window, results map[int64]WindowResult, grid []int64) ([]market.Bar, error) {
	bars := Concat(windows, results)
	if len(bars) == 0 {
		return nil, ErrEmptyResult
	}
	return Reindex(bars, grid), nil
}

// CountGaps reports how many bars are gap fills.
func CountGaps(bars []market.Bar) int {
	n := 0
	for _, b := range bars {
		if b.IsGap() {
			n++
		}
	}
	return n
}
