package market

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// DefaultMaxWindow 是单次请求允许的最大 K 线数量（可被配置覆盖）。
const DefaultMaxWindow = 1000

// Timeframe 描述周期信息：网格步长、数据源 interval 以及单次请求上限。
type Timeframe struct {
	Key            string
	Duration       time.Duration
	SourceInterval string
	// MaxWindow 为 0 表示不分块。
	MaxWindow  int
	BarsPerDay int
}

var supportedTimeframes = map[string]Timeframe{
	"1m":  {Key: "1m", Duration: time.Minute, SourceInterval: "1m", MaxWindow: DefaultMaxWindow, BarsPerDay: 24 * 60},
	"5m":  {Key: "5m", Duration: 5 * time.Minute, SourceInterval: "5m", MaxWindow: DefaultMaxWindow, BarsPerDay: 24 * 12},
	"15m": {Key: "15m", Duration: 15 * time.Minute, SourceInterval: "15m", MaxWindow: DefaultMaxWindow, BarsPerDay: 24 * 4},
	"1h":  {Key: "1h", Duration: time.Hour, SourceInterval: "1h", MaxWindow: DefaultMaxWindow, BarsPerDay: 24},
	"4h":  {Key: "4h", Duration: 4 * time.Hour, SourceInterval: "4h", MaxWindow: DefaultMaxWindow, BarsPerDay: 6},
	"1d":  {Key: "1d", Duration: 24 * time.Hour, SourceInterval: "1d", MaxWindow: DefaultMaxWindow, BarsPerDay: 1},
}

var timeframeAliases = map[string]string{
	"minute": "1m",
	"hour":   "1h",
	"day":    "1d",
}

// ParseTimeframe 返回标准化周期定义。
func ParseTimeframe(input string) (Timeframe, error) {
	key := strings.ToLower(strings.TrimSpace(input))
	if alias, ok := timeframeAliases[key]; ok {
		key = alias
	}
	tf, ok := supportedTimeframes[key]
	if !ok {
		return Timeframe{}, fmt.Errorf("unsupported timeframe: %s", input)
	}
	return tf, nil
}

// SupportedTimeframes 返回所有支持的 key（排序后）。
func SupportedTimeframes() []string {
	keys := make([]string, 0, len(supportedTimeframes))
	for k := range supportedTimeframes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// WithMaxWindow 返回覆盖单次请求上限后的副本；n<=0 表示不分块。
func (tf Timeframe) WithMaxWindow(n int) Timeframe {
	if n < 0 {
		n = 0
	}
	tf.MaxWindow = n
	return tf
}

// Bounded 表示该周期受单次请求上限约束。
func (tf Timeframe) Bounded() bool {
	return tf.MaxWindow > 0
}

func (tf Timeframe) StepMillis() int64 {
	return tf.Duration.Milliseconds()
}

func alignDown(ts, step int64) int64 {
	if step <= 0 {
		return ts
	}
	rem := ts % step
	if rem < 0 {
		rem += step
	}
	return ts - rem
}

// AlignDown 将毫秒时间向下对齐到周期网格。
func (tf Timeframe) AlignDown(ts int64) int64 {
	return alignDown(ts, tf.StepMillis())
}

// Grid 返回 [start, end) 区间内按周期步长排列的全部时间戳。
func (tf Timeframe) Grid(start, end int64) []int64 {
	step := tf.StepMillis()
	if step <= 0 || end <= start {
		return nil
	}
	out := make([]int64, 0, (end-start+step-1)/step)
	for ts := start; ts < end; ts += step {
		out = append(out, ts)
	}
	return out
}

// BarsBetween 按整天数换算 [start, end) 区间的 K 线数量，与按日期请求时的 limit 推导一致。
func (tf Timeframe) BarsBetween(start, end time.Time) int {
	if !end.After(start) {
		return 0
	}
	days := int(end.Sub(start) / (24 * time.Hour))
	return days * tf.BarsPerDay
}
