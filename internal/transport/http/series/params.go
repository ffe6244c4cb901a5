package serieshttp

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"cryptoseries/internal/acquire"

	"github.com/gin-gonic/gin"
)

// dateLayouts are tried in order; the first is the dd_mm_yyyy form used by older clients.
var dateLayouts = []string{"02_01_2006", "2006-01-02", time.RFC3339}

// parseDate accepts the layouts above or epoch milliseconds. Dates are UTC.
func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil && len(raw) > 8 {
		return time.UnixMilli(ms).UTC(), nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q (want dd_mm_yyyy, yyyy-mm-dd, RFC3339 or epoch ms)", raw)
}

func parseSeriesRequest(c *gin.Context) (acquire.Request, error) {
	req := acquire.Request{
		Exchange:  strings.TrimSpace(c.Query("exchange")),
		Symbol:    strings.TrimSpace(c.Query("symbol")),
		Timeframe: strings.TrimSpace(c.DefaultQuery("timeframe", "1d")),
	}
	if req.Symbol == "" {
		return req, fmt.Errorf("symbol is required")
	}
	start, err := parseDate(c.Query("start"))
	if err != nil {
		return req, fmt.Errorf("start: %w", err)
	}
	req.Start = start
	if raw := c.Query("end"); strings.TrimSpace(raw) != "" {
		end, err := parseDate(raw)
		if err != nil {
			return req, fmt.Errorf("end: %w", err)
		}
		req.End = &end
	}
	length, err := intQuery(c, "length", 0)
	if err != nil || length < 0 {
		return req, fmt.Errorf("length must be a positive integer")
	}
	req.Length = length
	req.Indicators = splitList(c.QueryArray("indicators"))
	if raw := c.Query("keep_only"); raw != "" {
		keep, err := strconv.ParseBool(raw)
		if err != nil {
			return req, fmt.Errorf("keep_only must be a boolean")
		}
		req.KeepOnlyRequested = keep
	}
	return req, nil
}

// splitList flattens repeated and comma-separated values.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
