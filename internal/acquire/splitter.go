package acquire

import "cryptoseries/internal/market"

// Window is one bounded sub-request.
type Window struct {
	Since int64 `json:"since"`
	Limit int   `json:"limit"`
}

// Split cuts a request of totalLimit bars starting at since into contiguous windows
// of at most maxSize bars. The limits always sum to totalLimit.
// Unbounded requests (maxSize<=0) and degenerate totals (totalLimit<=0) pass through as one window.
func Split(since int64, tf market.Timeframe, totalLimit, maxSize int) []Window {
	if maxSize <= 0 || totalLimit <= 0 || totalLimit <= maxSize {
		return []Window{{Since: since, Limit: totalLimit}}
	}
	step := int64(maxSize) * tf.StepMillis()
	n := totalLimit / maxSize
	rem := totalLimit % maxSize
	if rem > 0 {
		n++
	}
	out := make([]Window, 0, n)
	cursor := since
	for i := 0; i < n; i++ {
		limit := maxSize
		if i == n-1 && rem > 0 {
			limit = rem
		}
		out = append(out, Window{Since: cursor, Limit: limit})
		cursor += step
	}
	return out
}

// EffectiveWindow picks the chunk size for a timeframe/source pair: the smaller positive
// of the timeframe's window and the source's per-request cap.
func EffectiveWindow(tf market.Timeframe, sourceMax int) int {
	if !tf.Bounded() {
		return 0
	}
	if sourceMax > 0 && sourceMax < tf.MaxWindow {
		return sourceMax
	}
	return tf.MaxWindow
}
