package indicator

import (
	"math"

	"github.com/markcheno/go-talib"
)

// Inputs 是计算指标所需的价格序列，长度一致。
type Inputs struct {
	Open   []float64
	High   []float64
	Low    []float64
	Close  []float64
	Volume []float64
}

func (in Inputs) Len() int { return len(in.Close) }

// Default periods for tokens that carry no parameter.
const (
	bbandsPeriod   = 20
	bbandsDev      = 2.0
	williamsPeriod = 14
	stochKPeriod   = 14
	stochDPeriod   = 3
	erPeriod       = 10
	atrPeriod      = 14
	adxPeriod      = 14
	rocPeriod      = 12
	momPeriod      = 10
	macdFast       = 12
	macdSlow       = 26
	macdSignal     = 9
	stcFast        = 23
	stcSlow        = 50
	stcCycle       = 10
	stcSmooth      = 3
)

// validRuns returns the [lo, hi) ranges of consecutive rows for which ok holds.
func validRuns(n int, ok func(i int) bool) [][2]int {
	var runs [][2]int
	lo := -1
	for i := 0; i < n; i++ {
		switch {
		case ok(i) && lo < 0:
			lo = i
		case !ok(i) && lo >= 0:
			runs = append(runs, [2]int{lo, i})
			lo = -1
		}
	}
	if lo >= 0 {
		runs = append(runs, [2]int{lo, n})
	}
	return runs
}

// talibRuns calls fn once per run of valid rows. TA-Lib carries running sums, so a gap
// row would poison every later output; each run restarts the calculation instead.
// The first lookback outputs of a run, which TA-Lib leaves as zeros, stay NaN.
func talibRuns(n, outputs, lookback int, ok func(i int) bool, fn func(lo, hi int) [][]float64) [][]float64 {
	out := make([][]float64, outputs)
	for k := range out {
		out[k] = nanSeries(n)
	}
	for _, r := range validRuns(n, ok) {
		lo, hi := r[0], r[1]
		if hi-lo <= lookback {
			continue
		}
		res := fn(lo, hi)
		for k := range out {
			for i := lookback; i < len(res[k]); i++ {
				out[k][lo+i] = res[k][i]
			}
		}
	}
	return out
}

func talibSeries(in []float64, lookback int, fn func([]float64) []float64) []float64 {
	return talibRuns(len(in), 1, lookback, validAt(in), func(lo, hi int) [][]float64 {
		return [][]float64{fn(in[lo:hi])}
	})[0]
}

// talibHLC is talibSeries for functions that read high/low/close together.
func talibHLC(in Inputs, lookback int, fn func(h, l, c []float64) []float64) []float64 {
	return talibRuns(in.Len(), 1, lookback, hlcValid(in), func(lo, hi int) [][]float64 {
		return [][]float64{fn(in.High[lo:hi], in.Low[lo:hi], in.Close[lo:hi])}
	})[0]
}

func sma(closes []float64, period int) []float64 {
	return talibSeries(closes, period-1, func(x []float64) []float64 { return talib.Sma(x, period) })
}

func ema(closes []float64, period int) []float64 {
	return talibSeries(closes, period-1, func(x []float64) []float64 { return talib.Ema(x, period) })
}

func wma(closes []float64, period int) []float64 {
	return talibSeries(closes, period-1, func(x []float64) []float64 { return talib.Wma(x, period) })
}

func rsi(closes []float64, period int) []float64 {
	return talibSeries(closes, period, func(x []float64) []float64 { return talib.Rsi(x, period) })
}

func macd(closes []float64) (line, signal, hist []float64) {
	lookback := (macdSlow - 1) + (macdSignal - 1)
	out := talibRuns(len(closes), 3, lookback, validAt(closes), func(lo, hi int) [][]float64 {
		m, sig, h := talib.Macd(closes[lo:hi], macdFast, macdSlow, macdSignal)
		return [][]float64{m, sig, h}
	})
	return out[0], out[1], out[2]
}

func bbands(closes []float64) (upper, middle, lower []float64) {
	out := talibRuns(len(closes), 3, bbandsPeriod-1, validAt(closes), func(lo, hi int) [][]float64 {
		u, m, l := talib.BBands(closes[lo:hi], bbandsPeriod, bbandsDev, bbandsDev, talib.SMA)
		return [][]float64{u, m, l}
	})
	return out[0], out[1], out[2]
}

func cci(in Inputs, period int) []float64 {
	return talibHLC(in, period-1, func(h, l, c []float64) []float64 { return talib.Cci(h, l, c, period) })
}

func dx(in Inputs, period int) []float64 {
	return talibHLC(in, period, func(h, l, c []float64) []float64 { return talib.Dx(h, l, c, period) })
}

func williamsR(in Inputs) []float64 {
	return talibHLC(in, williamsPeriod-1, func(h, l, c []float64) []float64 { return talib.WillR(h, l, c, williamsPeriod) })
}

func stochastic(in Inputs) (k, d []float64) {
	lookback := (stochKPeriod - 1) + (stochDPeriod - 1)
	out := talibRuns(in.Len(), 2, lookback, hlcValid(in), func(lo, hi int) [][]float64 {
		fk, fd := talib.StochF(in.High[lo:hi], in.Low[lo:hi], in.Close[lo:hi], stochKPeriod, stochDPeriod, talib.SMA)
		return [][]float64{fk, fd}
	})
	return out[0], out[1]
}

func atr(in Inputs) []float64 {
	return talibHLC(in, atrPeriod, func(h, l, c []float64) []float64 { return talib.Atr(h, l, c, atrPeriod) })
}

func adx(in Inputs) []float64 {
	return talibHLC(in, 2*adxPeriod-1, func(h, l, c []float64) []float64 { return talib.Adx(h, l, c, adxPeriod) })
}

func roc(closes []float64) []float64 {
	return talibSeries(closes, rocPeriod, func(x []float64) []float64 { return talib.Roc(x, rocPeriod) })
}

func mom(closes []float64, period int) []float64 {
	return talibSeries(closes, period, func(x []float64) []float64 { return talib.Mom(x, period) })
}

// efficiencyRatio is Kaufman's |net change| / sum of absolute bar-to-bar changes.
func efficiencyRatio(closes []float64) []float64 {
	change := mom(closes, erPeriod)
	steps := nanSeries(len(closes))
	for i := 1; i < len(closes); i++ {
		steps[i] = math.Abs(closes[i] - closes[i-1])
	}
	volatility := talibSeries(steps, erPeriod-1, func(x []float64) []float64 { return talib.Sum(x, erPeriod) })
	out := nanSeries(len(closes))
	for i := range closes {
		if math.IsNaN(change[i]) || math.IsNaN(volatility[i]) || volatility[i] == 0 {
			continue
		}
		out[i] = math.Abs(change[i]) / volatility[i]
	}
	return out
}

// schaffTrendCycle applies a doubly smoothed stochastic to the 23/50 EMA spread.
func schaffTrendCycle(closes []float64) []float64 {
	fast := ema(closes, stcFast)
	slow := ema(closes, stcSlow)
	spread := nanSeries(len(closes))
	for i := range closes {
		spread[i] = fast[i] - slow[i]
	}
	k := smooth(stochOf(spread, stcCycle), stcSmooth)
	return smooth(stochOf(k, stcCycle), stcSmooth)
}

func stochOf(values []float64, period int) []float64 {
	lo := talibSeries(values, period-1, func(x []float64) []float64 { return talib.Min(x, period) })
	hi := talibSeries(values, period-1, func(x []float64) []float64 { return talib.Max(x, period) })
	out := nanSeries(len(values))
	for i, v := range values {
		span := hi[i] - lo[i]
		if math.IsNaN(span) || span == 0 {
			continue
		}
		out[i] = (v - lo[i]) / span * 100
	}
	return out
}

func smooth(values []float64, period int) []float64 {
	return talibSeries(values, period-1, func(x []float64) []float64 { return talib.Sma(x, period) })
}

func simpleReturn(closes []float64) []float64 {
	out := nanSeries(len(closes))
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		out[i] = closes[i]/closes[i-1] - 1
	}
	return out
}

// trendLabel is 1 when close rose over the last n bars and 0 otherwise (including undefined rows).
func trendLabel(closes []float64, n int) []float64 {
	out := make([]float64, len(closes))
	for i := range closes {
		if i-n < 0 {
			continue
		}
		if closes[i]-closes[i-n] > 0 {
			out[i] = 1
		}
	}
	return out
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func validAt(series []float64) func(int) bool {
	return func(i int) bool { return finite(series[i]) }
}

func hlcValid(in Inputs) func(int) bool {
	return func(i int) bool { return finite(in.High[i]) && finite(in.Low[i]) && finite(in.Close[i]) }
}
