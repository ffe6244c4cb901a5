package app

import (
	"fmt"
	"strings"
)

type StartupSummary struct {
	Env          string
	HTTPAddr     string
	ActiveSource string
	Exchanges    []string
	Timeframes   []string
	Indicators   []string
	Acquire      AcquireSummary
}

type AcquireSummary struct {
	MaxConcurrent   int
	RateLimitPerMin int
	RequestTimeout  string
	WindowSizes     []string
}

func (s *StartupSummary) Print() {
	fmt.Println(s.String())
}

func (s *StartupSummary) String() string {
	var b strings.Builder
	line := strings.Repeat("=", 80)
	title := "启动配置摘要 (STARTUP SUMMARY)"
	fmt.Fprintln(&b, line)
	fmt.Fprintf(&b, "%*s\n", 40+len(title)/2, title)
	fmt.Fprintln(&b, line)

	fmt.Fprintln(&b, "[服务 (SERVICE)]")
	fmt.Fprintf(&b, "  环境: %s\n", orDash(s.Env))
	fmt.Fprintf(&b, "  监听: %s\n", orDash(s.HTTPAddr))
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "[行情源 (EXCHANGES)]")
	fmt.Fprintf(&b, "  默认: %s\n", orDash(s.ActiveSource))
	fmt.Fprintf(&b, "  已启用: %s\n", formatList(s.Exchanges))
	fmt.Fprintf(&b, "  周期: %s\n", formatList(s.Timeframes))
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "[分块获取 (ACQUIRE)]")
	fmt.Fprintf(&b, "  并发上限: %d\n", s.Acquire.MaxConcurrent)
	if s.Acquire.RateLimitPerMin > 0 {
		fmt.Fprintf(&b, "  限速: %d/min\n", s.Acquire.RateLimitPerMin)
	} else {
		fmt.Fprintln(&b, "  限速: (无)")
	}
	fmt.Fprintf(&b, "  单窗口超时: %s\n", orDash(s.Acquire.RequestTimeout))
	fmt.Fprintf(&b, "  窗口覆盖: %s\n", formatList(s.Acquire.WindowSizes))
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "[指标 (INDICATORS)]")
	for _, p := range s.Indicators {
		fmt.Fprintf(&b, "  - %s\n", p)
	}
	b.WriteString(line)
	return b.String()
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}

func orDash(v string) string {
	if strings.TrimSpace(v) == "" {
		return "-"
	}
	return v
}
