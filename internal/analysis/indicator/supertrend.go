package indicator

import "math"

// SuperTrendSettings 描述超级趋势指标参数。
type SuperTrendSettings struct {
	ATRWindow  int     `json:"atr_window,omitempty"`
	Multiplier float64 `json:"multiplier,omitempty"`
}

const (
	defaultSuperTrendWindow     = 15
	defaultSuperTrendMultiplier = 5
)

func (s SuperTrendSettings) withDefaults() SuperTrendSettings {
	if s.ATRWindow <= 0 {
		s.ATRWindow = defaultSuperTrendWindow
	}
	if s.Multiplier <= 0 {
		s.Multiplier = defaultSuperTrendMultiplier
	}
	return s
}

// SuperTrendResult holds the per-bar output of the trend band scan.
// Direction is 1 for an uptrend and 0 for a downtrend. Lower is NaN while
// the trend is down and Upper is NaN while it is up.
type SuperTrendResult struct {
	Direction []float64
	Lower     []float64
	Upper     []float64
}

// TrueRange is max(high-low, |high-prevClose|, |prevClose-low|); the first bar uses high-low.
func TrueRange(high, low, closes []float64) []float64 {
	out := make([]float64, len(closes))
	for i := range closes {
		hl := math.Abs(high[i] - low[i])
		if i == 0 {
			out[i] = hl
			continue
		}
		prev := closes[i-1]
		out[i] = nanMax(hl, math.Abs(high[i]-prev), math.Abs(prev-low[i]))
	}
	return out
}

// EWMean is an adjusted exponentially weighted mean with smoothing alpha.
// NaN inputs keep decaying the weights but add nothing; values before minPeriods
// valid observations are NaN.
func EWMean(values []float64, alpha float64, minPeriods int) []float64 {
	out := make([]float64, len(values))
	decay := 1 - alpha
	var num, den float64
	seen := 0
	for i, v := range values {
		num *= decay
		den *= decay
		if !math.IsNaN(v) {
			num += v
			den++
			seen++
		}
		if seen < minPeriods || den == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = num / den
	}
	return out
}

// SuperTrend runs the carried-state trend band recurrence left to right.
func SuperTrend(high, low, closes []float64, settings SuperTrendSettings) SuperTrendResult {
	settings = settings.withDefaults()
	n := len(closes)
	res := SuperTrendResult{
		Direction: make([]float64, n),
		Lower:     make([]float64, n),
		Upper:     make([]float64, n),
	}
	if n == 0 {
		return res
	}
	atr := EWMean(TrueRange(high, low, closes), 1/float64(settings.ATRWindow), settings.ATRWindow)
	for i := 0; i < n; i++ {
		mid := (high[i] + low[i]) / 2
		res.Upper[i] = mid + settings.Multiplier*atr[i]
		res.Lower[i] = mid - settings.Multiplier*atr[i]
	}

	up := true
	res.Direction[0] = 1
	for i := 1; i < n; i++ {
		switch {
		case closes[i] > res.Upper[i-1]:
			up = true
		case closes[i] < res.Lower[i-1]:
			up = false
		default:
			// NaN comparisons are false, so an undefined prior band never clamps.
			if up && res.Lower[i] < res.Lower[i-1] {
				res.Lower[i] = res.Lower[i-1]
			}
			if !up && res.Upper[i] > res.Upper[i-1] {
				res.Upper[i] = res.Upper[i-1]
			}
		}
		if up {
			res.Direction[i] = 1
			res.Upper[i] = math.NaN()
		} else {
			res.Direction[i] = 0
			res.Lower[i] = math.NaN()
		}
	}
	return res
}

// ShiftForward moves every value one row later; row 0 becomes NaN.
func ShiftForward(values []float64, periods int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		j := i - periods
		if j < 0 || j >= len(values) {
			out[i] = math.NaN()
			continue
		}
		out[i] = values[j]
	}
	return out
}

func nanMax(vals ...float64) float64 {
	best := math.NaN()
	for _, v := range vals {
		if math.IsNaN(v) {
			continue
		}
		if math.IsNaN(best) || v > best {
			best = v
		}
	}
	return best
}
