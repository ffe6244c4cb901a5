package market

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Base columns seeded from bars.
const (
	ColOpen   = "open"
	ColHigh   = "high"
	ColLow    = "low"
	ColClose  = "close"
	ColVolume = "volume"
)

var baseColumns = []string{ColOpen, ColHigh, ColLow, ColClose, ColVolume}

// Series is a timestamp-indexed column frame for one symbol/timeframe pair.
// Indicator columns are appended in place; every column has Len() values.
type Series struct {
	Symbol    string
	Timeframe string

	index []int64
	names []string
	cols  map[string][]float64
}

// NewSeries builds a series from bars that are already ordered and unique.
func NewSeries(symbol, timeframe string, bars []Bar) *Series {
	s := &Series{
		Symbol:    symbol,
		Timeframe: timeframe,
		index:     make([]int64, len(bars)),
		names:     append([]string(nil), baseColumns...),
		cols:      make(map[string][]float64, len(baseColumns)),
	}
	open := make([]float64, len(bars))
	high := make([]float64, len(bars))
	low := make([]float64, len(bars))
	closes := make([]float64, len(bars))
	volume := make([]float64, len(bars))
	for i, b := range bars {
		s.index[i] = b.OpenTime
		open[i] = b.Open
		high[i] = b.High
		low[i] = b.Low
		closes[i] = b.Close
		volume[i] = b.Volume
	}
	s.cols[ColOpen] = open
	s.cols[ColHigh] = high
	s.cols[ColLow] = low
	s.cols[ColClose] = closes
	s.cols[ColVolume] = volume
	return s
}

func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.index)
}

// Index returns a copy of the timestamp index.
func (s *Series) Index() []int64 {
	if s == nil {
		return nil
	}
	return append([]int64(nil), s.index...)
}

// Columns returns column names in insertion order.
func (s *Series) Columns() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.names...)
}

func (s *Series) HasColumn(name string) bool {
	if s == nil {
		return false
	}
	_, ok := s.cols[name]
	return ok
}

// Column returns the backing slice of a column. Callers must not modify it.
func (s *Series) Column(name string) ([]float64, bool) {
	if s == nil {
		return nil, false
	}
	v, ok := s.cols[name]
	return v, ok
}

// SetColumn appends a new column or replaces an existing one.
func (s *Series) SetColumn(name string, values []float64) error {
	if name == "" {
		return fmt.Errorf("column name is required")
	}
	if len(values) != len(s.index) {
		return fmt.Errorf("column %s has %d values, series has %d rows", name, len(values), len(s.index))
	}
	if _, ok := s.cols[name]; !ok {
		s.names = append(s.names, name)
	}
	s.cols[name] = values
	return nil
}

// DropColumns removes the named columns; unknown names are ignored.
func (s *Series) DropColumns(names ...string) {
	if len(names) == 0 {
		return
	}
	drop := make(map[string]struct{}, len(names))
	for _, n := range names {
		drop[n] = struct{}{}
	}
	kept := s.names[:0]
	for _, n := range s.names {
		if _, ok := drop[n]; ok {
			delete(s.cols, n)
			continue
		}
		kept = append(kept, n)
	}
	s.names = kept
}

// KeepColumns drops every column not in keep.
func (s *Series) KeepColumns(keep map[string]struct{}) {
	var drop []string
	for _, n := range s.names {
		if _, ok := keep[n]; !ok {
			drop = append(drop, n)
		}
	}
	s.DropColumns(drop...)
}

// Bars rebuilds bars from the base columns; dropped columns read as NaN.
func (s *Series) Bars() []Bar {
	out := make([]Bar, len(s.index))
	get := func(name string, i int) float64 {
		if col, ok := s.cols[name]; ok {
			return col[i]
		}
		return math.NaN()
	}
	for i, ts := range s.index {
		out[i] = Bar{
			OpenTime: ts,
			Open:     get(ColOpen, i),
			High:     get(ColHigh, i),
			Low:      get(ColLow, i),
			Close:    get(ColClose, i),
			Volume:   get(ColVolume, i),
		}
	}
	return out
}

// Rows renders the frame row by row with NaN as nil, in column order.
func (s *Series) Rows() []map[string]any {
	rows := make([]map[string]any, len(s.index))
	for i, ts := range s.index {
		row := make(map[string]any, len(s.names)+2)
		row["timestamp"] = ts
		row["time"] = time.UnixMilli(ts).UTC().Format(time.RFC3339)
		for _, n := range s.names {
			v := s.cols[n][i]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				row[n] = nil
				continue
			}
			row[n] = v
		}
		rows[i] = row
	}
	return rows
}

func (s *Series) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Symbol    string           `json:"symbol"`
		Timeframe string           `json:"timeframe"`
		Count     int              `json:"count"`
		Columns   []string         `json:"columns"`
		Rows      []map[string]any `json:"rows"`
	}{
		Symbol:    s.Symbol,
		Timeframe: s.Timeframe,
		Count:     s.Len(),
		Columns:   s.Columns(),
		Rows:      s.Rows(),
	})
}
