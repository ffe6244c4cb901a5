package acquire

import (
	"testing"
	"time"

	"cryptoseries/internal/market"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustTimeframe(t *testing.T, key string) market.Timeframe {
	t.Helper()
	tf, err := market.ParseTimeframe(key)
	require.NoError(t, err)
	return tf
}

func TestSplit_DailyScenario(t *testing.T) {
	tf := mustTimeframe(t, "day")
	start := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2021, 1, 10, 0, 0, 0, 0, time.UTC)
	total := tf.BarsBetween(start, end)
	require.Equal(t, 9, total)

	windows := Split(start.UnixMilli(), tf, total, 5)
	day5 := start.AddDate(0, 0, 5).UnixMilli()
	assert.Equal(t, []Window{
		{Since: start.UnixMilli(), Limit: 5},
		{Since: day5, Limit: 4},
	}, windows)
}

func TestSplit_Properties(t *testing.T) {
	tf := mustTimeframe(t, "1h")
	since := time.Date(2022, 3, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	for _, tc := range []struct{ total, max int }{
		{1, 5}, {5, 5}, {10, 5}, {11, 5}, {1000, 7}, {24 * 31, 1000}, {24 * 90, 1000},
	} {
		windows := Split(since, tf, tc.total, tc.max)
		sum := 0
		for i, w := range windows {
			assert.LessOrEqual(t, w.Limit, tc.max)
			assert.Positive(t, w.Limit)
			if i > 0 {
				assert.Equal(t, windows[i-1].Since+int64(tc.max)*tf.StepMillis(), w.Since)
			}
			sum += w.Limit
		}
		assert.Equal(t, tc.total, sum, "total=%d max=%d", tc.total, tc.max)
		last := windows[len(windows)-1].Limit
		if tc.total%tc.max == 0 {
			assert.Equal(t, tc.max, last)
		} else if tc.total > tc.max {
			assert.Equal(t, tc.total%tc.max, last)
		}
	}
}

func TestSplit_Passthrough(t *testing.T) {
	tf := mustTimeframe(t, "1m")
	assert.Equal(t, []Window{{Since: 42, Limit: 5000}}, Split(42, tf, 5000, 0))
	assert.Equal(t, []Window{{Since: 42, Limit: 0}}, Split(42, tf, 0, 100))
	assert.Equal(t, []Window{{Since: 42, Limit: -3}}, Split(42, tf, -3, 100))
}

func TestEffectiveWindow(t *testing.T) {
	tf := mustTimeframe(t, "1d")
	assert.Equal(t, market.DefaultMaxWindow, EffectiveWindow(tf, 0))
	assert.Equal(t, 500, EffectiveWindow(tf, 500))
	assert.Equal(t, market.DefaultMaxWindow, EffectiveWindow(tf, 1500))
	assert.Equal(t, 0, EffectiveWindow(tf.WithMaxWindow(0), 1500))
}
