package indicator

import (
	"fmt"
	"strconv"
	"strings"

	"cryptoseries/internal/logger"
	"cryptoseries/internal/market"
)

var log = logger.Component("indicator")

// Strategy computes one or more aligned columns from the price inputs.
type Strategy struct {
	Name     string
	Outputs  []string
	Stateful bool
	compute  func(Inputs) [][]float64
}

// rule maps a token shape (e.g. "sma_{N}") to a strategy.
type rule struct {
	pattern string
	match   func(token string, s Settings) (Strategy, bool)
}

// Settings 描述有状态指标的参数。
type Settings struct {
	SuperTrend SuperTrendSettings
	// WarnUnsupported logs a warning for every ignored indicator name.
	WarnUnsupported bool
}

// Result summarizes one Compute call.
type Result struct {
	Computed []string `json:"computed,omitempty"`
	Skipped  []string `json:"skipped,omitempty"`
	Ignored  []string `json:"ignored,omitempty"`
}

// Engine resolves indicator names against a fixed registry and appends their columns to a series.
type Engine struct {
	settings Settings
	rules    []rule
}

func NewEngine(settings Settings) *Engine {
	settings.SuperTrend = settings.SuperTrend.withDefaults()
	return &Engine{settings: settings, rules: defaultRules()}
}

// Patterns lists the accepted token shapes.
func (e *Engine) Patterns() []string {
	out := make([]string, 0, len(e.rules))
	for _, r := range e.rules {
		out = append(out, r.pattern)
	}
	return out
}

// Resolve finds the strategy for a single indicator name.
func (e *Engine) Resolve(name string) (Strategy, bool) {
	token := strings.TrimSpace(name)
	for _, r := range e.rules {
		if st, ok := r.match(token, e.settings); ok {
			return st, true
		}
	}
	return Strategy{}, false
}

// Compute appends every requested indicator to s. Names already present as columns are
// left untouched; unsupported names are ignored. With keepOnly, every column that is
// neither requested nor produced by a requested indicator is dropped afterwards.
func (e *Engine) Compute(s *market.Series, names []string, keepOnly bool) (Result, error) {
	var res Result
	if s == nil {
		return res, fmt.Errorf("nil series")
	}
	if len(names) == 0 {
		return res, nil
	}
	keep := make(map[string]struct{}, len(names))
	var plan []Strategy
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		keep[name] = struct{}{}
		if s.HasColumn(name) {
			res.Skipped = append(res.Skipped, name)
			continue
		}
		st, ok := e.Resolve(name)
		if !ok {
			res.Ignored = append(res.Ignored, name)
			continue
		}
		for _, out := range st.Outputs {
			keep[out] = struct{}{}
		}
		plan = append(plan, st)
	}
	if len(res.Ignored) > 0 && e.settings.WarnUnsupported {
		log.Warnf("%s %s: unsupported indicators ignored: %s", s.Symbol, s.Timeframe, strings.Join(res.Ignored, ","))
	}

	if len(plan) > 0 {
		in, err := inputsFrom(s)
		if err != nil {
			return res, err
		}
		for _, st := range plan {
			cols := st.compute(in)
			for i, out := range st.Outputs {
				if err := s.SetColumn(out, cols[i]); err != nil {
					return res, fmt.Errorf("%s: %w", st.Name, err)
				}
			}
			res.Computed = append(res.Computed, st.Name)
		}
	}
	if keepOnly {
		s.KeepColumns(keep)
	}
	return res, nil
}

func inputsFrom(s *market.Series) (Inputs, error) {
	var in Inputs
	for _, c := range []struct {
		name string
		dst  *[]float64
	}{
		{market.ColOpen, &in.Open},
		{market.ColHigh, &in.High},
		{market.ColLow, &in.Low},
		{market.ColClose, &in.Close},
		{market.ColVolume, &in.Volume},
	} {
		col, ok := s.Column(c.name)
		if !ok {
			return Inputs{}, fmt.Errorf("series has no %s column", c.name)
		}
		*c.dst = col
	}
	return in, nil
}

func single(name string, fn func(Inputs) []float64) Strategy {
	return Strategy{
		Name:    name,
		Outputs: []string{name},
		compute: func(in Inputs) [][]float64 { return [][]float64{fn(in)} },
	}
}

// exact matches a fixed token.
func exact(token string, build func(Settings) Strategy) rule {
	return rule{
		pattern: token,
		match: func(t string, s Settings) (Strategy, bool) {
			if t != token {
				return Strategy{}, false
			}
			return build(s), true
		},
	}
}

// param matches prefix{N}suffix with a positive integer N.
func param(prefix, suffix string, build func(name string, n int) Strategy) rule {
	return rule{
		pattern: prefix + "{N}" + suffix,
		match: func(t string, _ Settings) (Strategy, bool) {
			rest, ok := strings.CutPrefix(t, prefix)
			if !ok {
				return Strategy{}, false
			}
			digits, ok := strings.CutSuffix(rest, suffix)
			if !ok || digits == "" || strings.TrimLeft(digits, "0123456789") != "" {
				return Strategy{}, false
			}
			n, err := strconv.Atoi(digits)
			if err != nil || n <= 0 {
				return Strategy{}, false
			}
			return build(t, n), true
		},
	}
}

func defaultRules() []rule {
	return []rule{
		param("trend_", "d", func(name string, n int) Strategy {
			return single(name, func(in Inputs) []float64 { return trendLabel(in.Close, n) })
		}),
		param("sma_", "", func(name string, n int) Strategy {
			return single(name, func(in Inputs) []float64 { return sma(in.Close, n) })
		}),
		param("ema_", "", func(name string, n int) Strategy {
			return single(name, func(in Inputs) []float64 { return ema(in.Close, n) })
		}),
		param("wma_", "", func(name string, n int) Strategy {
			return single(name, func(in Inputs) []float64 { return wma(in.Close, n) })
		}),
		param("rsi_", "", func(name string, n int) Strategy {
			return single(name, func(in Inputs) []float64 { return rsi(in.Close, n) })
		}),
		param("cci_", "", func(name string, n int) Strategy {
			return single(name, func(in Inputs) []float64 { return cci(in, n) })
		}),
		param("dx_", "", func(name string, n int) Strategy {
			return single(name, func(in Inputs) []float64 { return dx(in, n) })
		}),
		exact("macd", func(Settings) Strategy {
			return single("macd", func(in Inputs) []float64 {
				l, _, _ := macd(in.Close)
				return l
			})
		}),
		exact("macds", func(Settings) Strategy {
			return single("macds", func(in Inputs) []float64 {
				_, s, _ := macd(in.Close)
				return s
			})
		}),
		exact("macdh", func(Settings) Strategy {
			return single("macdh", func(in Inputs) []float64 {
				_, _, h := macd(in.Close)
				return h
			})
		}),
		exact("bbands", func(Settings) Strategy {
			return Strategy{
				Name:    "bbands",
				Outputs: []string{"bb_upper", "bb_middle", "bb_lower"},
				compute: func(in Inputs) [][]float64 {
					u, m, l := bbands(in.Close)
					return [][]float64{u, m, l}
				},
			}
		}),
		exact("williams_%r", func(Settings) Strategy { return single("williams_%r", williamsR) }),
		exact("stoch_%k", func(Settings) Strategy {
			return single("stoch_%k", func(in Inputs) []float64 {
				k, _ := stochastic(in)
				return k
			})
		}),
		exact("stoch_%d", func(Settings) Strategy {
			return single("stoch_%d", func(in Inputs) []float64 {
				_, d := stochastic(in)
				return d
			})
		}),
		exact("er", func(Settings) Strategy {
			return single("er", func(in Inputs) []float64 { return efficiencyRatio(in.Close) })
		}),
		exact("stc", func(Settings) Strategy {
			return single("stc", func(in Inputs) []float64 { return schaffTrendCycle(in.Close) })
		}),
		exact("atr", func(Settings) Strategy { return single("atr", atr) }),
		exact("adx", func(Settings) Strategy { return single("adx", adx) }),
		exact("roc", func(Settings) Strategy {
			return single("roc", func(in Inputs) []float64 { return roc(in.Close) })
		}),
		exact("mom", func(Settings) Strategy {
			return single("mom", func(in Inputs) []float64 { return mom(in.Close, momPeriod) })
		}),
		exact("simple_rtn", func(Settings) Strategy {
			return single("simple_rtn", func(in Inputs) []float64 { return simpleReturn(in.Close) })
		}),
		exact("super_trend", func(s Settings) Strategy {
			return Strategy{
				Name:     "super_trend",
				Outputs:  []string{"super_trend", "super_trend_lower", "super_trend_upper"},
				Stateful: true,
				compute: func(in Inputs) [][]float64 {
					st := SuperTrend(in.High, in.Low, in.Close, s.SuperTrend)
					return [][]float64{st.Direction, st.Lower, st.Upper}
				},
			}
		}),
		exact("super_trend_direction", func(s Settings) Strategy {
			st := single("super_trend_direction", func(in Inputs) []float64 {
				res := SuperTrend(in.High, in.Low, in.Close, s.SuperTrend)
				return ShiftForward(res.Direction, 1)
			})
			st.Stateful = true
			return st
		}),
	}
}
