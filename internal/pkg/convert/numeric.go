// Package convert turns exchange number encodings into float64 values.
package convert

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseFloat parses a decimal string the way exchanges send prices ("0.00012300").
// Empty strings are an error rather than zero.
func ParseFloat(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("empty number")
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", raw, err)
	}
	return d.InexactFloat64(), nil
}

// ToFloat64 converts the loosely typed values found in decoded JSON payloads.
func ToFloat64(v any) (float64, error) {
	switch t := v.(type) {
	case nil:
		return 0, fmt.Errorf("nil number")
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case int32:
		return float64(t), nil
	case json.Number:
		return ParseFloat(t.String())
	case string:
		return ParseFloat(t)
	default:
		return 0, fmt.Errorf("unsupported number type %T", v)
	}
}

// ParseFields parses a fixed list of price strings, stopping at the first bad one.
func ParseFields(raws ...string) ([]float64, error) {
	out := make([]float64, len(raws))
	for i, raw := range raws {
		v, err := ParseFloat(raw)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
