package market

import (
	"math"
	"time"
)

// Bar is one OHLCV record keyed by its open time in epoch milliseconds.
// Gap-fill bars carry NaN in every value field.
type Bar struct {
	OpenTime int64   `json:"open_time"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   float64 `json:"volume"`
}

// GapBar returns an empty bar for a grid slot the exchange returned nothing for.
func GapBar(ts int64) Bar {
	nan := math.NaN()
	return Bar{OpenTime: ts, Open: nan, High: nan, Low: nan, Close: nan, Volume: nan}
}

func (b Bar) IsGap() bool {
	return math.IsNaN(b.Open) && math.IsNaN(b.High) && math.IsNaN(b.Low) && math.IsNaN(b.Close) && math.IsNaN(b.Volume)
}

func (b Bar) Time() time.Time {
	return time.UnixMilli(b.OpenTime).UTC()
}
