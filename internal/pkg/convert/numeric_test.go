package convert

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFloat(t *testing.T) {
	v, err := ParseFloat(" 0.00012300 ")
	require.NoError(t, err)
	assert.InDelta(t, 0.000123, v, 1e-12)

	_, err = ParseFloat("")
	assert.Error(t, err)
	_, err = ParseFloat("abc")
	assert.Error(t, err)
}

func TestToFloat64(t *testing.T) {
	cases := []struct {
		in   any
		want float64
	}{
		{1.5, 1.5},
		{float32(2), 2},
		{3, 3},
		{int64(4), 4},
		{json.Number("5.25"), 5.25},
		{"6.5", 6.5},
	}
	for _, tc := range cases {
		got, err := ToFloat64(tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
	_, err := ToFloat64(nil)
	assert.Error(t, err)
	_, err = ToFloat64(true)
	assert.Error(t, err)
}

func TestParseFields(t *testing.T) {
	vals, err := ParseFields("1", "2.5", "3")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2.5, 3}, vals)

	_, err = ParseFields("1", "x")
	assert.Error(t, err)
}
