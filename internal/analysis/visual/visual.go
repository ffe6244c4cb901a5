// Package visual draws a series as an interactive ECharts page and optionally screenshots it.
package visual

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"cryptoseries/internal/market"
)

const (
	colorBackground    = "#060c1b"
	colorTextPrimary   = "#eceff4"
	colorTextSecondary = "#9ca3af"
	colorBull          = "#34d399"
	colorBear          = "#f87171"
	colorBandLower     = "#22d3ee"
	colorBandUpper     = "#fb7185"

	volumeShare = 0.3
)

// overlayPalette colours price-scale indicator lines in column order.
var overlayPalette = []string{"#3b82f6", "#fbbf24", "#f472b6", "#a78bfa", "#4ade80", "#f97316"}

// Options 控制图表尺寸、主题和截图超时。
type Options struct {
	Width         int
	Height        int
	Theme         string
	RenderTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = 1280
	}
	if o.Height <= 0 {
		o.Height = 640
	}
	if strings.TrimSpace(o.Theme) == "" {
		o.Theme = types.ThemeWesteros
	}
	if o.RenderTimeout <= 0 {
		o.RenderTimeout = 20 * time.Second
	}
	return o
}

type ImageResult struct {
	Bytes    []byte `json:"-"`
	Filename string `json:"filename"`
}

func (r *ImageResult) DataURI() string {
	if r == nil || len(r.Bytes) == 0 {
		return ""
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(r.Bytes)
}

// Renderer turns series into chart pages.
type Renderer struct {
	opts Options
}

func NewRenderer(o Options) *Renderer {
	return &Renderer{opts: o.withDefaults()}
}

// HTML renders candles, price-scale indicator overlays, the super-trend bands and volume.
func (r *Renderer) HTML(s *market.Series) ([]byte, error) {
	if s == nil || s.Len() == 0 {
		return nil, fmt.Errorf("empty series")
	}
	for _, col := range []string{market.ColOpen, market.ColHigh, market.ColLow, market.ColClose} {
		if !s.HasColumn(col) {
			return nil, fmt.Errorf("series has no %s column", col)
		}
	}
	xAxis := buildXAxis(s.Index(), s.Timeframe)
	priceHeight := int(float64(r.opts.Height) * (1 - volumeShare))
	volumeHeight := r.opts.Height - priceHeight

	kline := r.buildKline(s, xAxis, priceHeight)
	if overlay := buildOverlays(s, xAxis); overlay != nil {
		kline.Overlap(overlay)
	}

	page := components.NewPage()
	page.PageTitle = fmt.Sprintf("%s %s", s.Symbol, s.Timeframe)
	page.SetLayout(components.PageFlexLayout)
	page.AddCharts(kline)
	if s.HasColumn(market.ColVolume) {
		page.AddCharts(r.buildVolume(s, xAxis, volumeHeight))
	}

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// PNG renders the HTML page in headless Chrome and returns a full-page screenshot.
func (r *Renderer) PNG(ctx context.Context, s *market.Series) (ImageResult, error) {
	if err := EnsureHeadlessAvailable(ctx); err != nil {
		return ImageResult{}, fmt.Errorf("headless chrome unavailable: %w", err)
	}
	html, err := r.HTML(s)
	if err != nil {
		return ImageResult{}, err
	}
	png, err := renderHTMLToPNG(ctx, html, r.opts.Width, r.opts.Height, r.opts.RenderTimeout)
	if err != nil {
		return ImageResult{}, err
	}
	name := strings.ToLower(strings.ReplaceAll(s.Symbol, "/", "_"))
	return ImageResult{Bytes: png, Filename: fmt.Sprintf("%s_%s.png", name, s.Timeframe)}, nil
}

func (r *Renderer) buildKline(s *market.Series, xAxis []string, height int) *charts.Kline {
	minPrice, maxPrice := priceBounds(s)
	padding := (maxPrice - minPrice) * 0.05
	if padding <= 0 {
		padding = math.Max(1, math.Abs(maxPrice)*0.01)
	}
	kline := charts.NewKLine()
	kline.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           r.opts.Theme,
			Width:           fmt.Sprintf("%dpx", r.opts.Width),
			Height:          fmt.Sprintf("%dpx", height),
			BackgroundColor: colorBackground,
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), TextStyle: &opts.TextStyle{Color: colorTextPrimary}}),
		charts.WithTitleOpts(opts.Title{
			Title:         fmt.Sprintf("%s %s", strings.ToUpper(s.Symbol), s.Timeframe),
			Subtitle:      subtitle(s),
			Left:          "left",
			TitleStyle:    &opts.TextStyle{Color: colorTextPrimary, FontSize: 18},
			SubtitleStyle: &opts.TextStyle{Color: colorTextSecondary},
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", XAxisIndex: []int{0}}),
		charts.WithXAxisOpts(opts.XAxis{
			Type:      "category",
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(false)},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Scale:     opts.Bool(true),
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
			Min:       round(minPrice-padding, 4),
			Max:       round(maxPrice+padding, 4),
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextSecondary, Opacity: opts.Float(0.2)}},
		}),
	)
	kline.SetSeriesOptions(
		charts.WithItemStyleOpts(opts.ItemStyle{
			Color:        colorBull,
			Color0:       colorBear,
			BorderColor:  colorBull,
			BorderColor0: colorBear,
		}),
	)
	kline.SetXAxis(xAxis)
	kline.AddSeries("Price", buildKlineData(s))
	return kline
}

func (r *Renderer) buildVolume(s *market.Series, xAxis []string, height int) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           r.opts.Theme,
			Width:           fmt.Sprintf("%dpx", r.opts.Width),
			Height:          fmt.Sprintf("%dpx", height),
			BackgroundColor: colorBackground,
		}),
		charts.WithTitleOpts(opts.Title{Title: "Volume", Left: "left", TitleStyle: &opts.TextStyle{Color: colorTextPrimary}}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{AxisLabel: &opts.AxisLabel{Show: opts.Bool(false)}}),
		charts.WithYAxisOpts(opts.YAxis{
			AxisLabel: &opts.AxisLabel{Show: opts.Bool(true), Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextSecondary, Opacity: opts.Float(0.15)}},
		}),
	)
	open, _ := s.Column(market.ColOpen)
	closes, _ := s.Column(market.ColClose)
	volume, _ := s.Column(market.ColVolume)
	data := make([]opts.BarData, len(volume))
	for i, v := range volume {
		if math.IsNaN(v) {
			data[i] = opts.BarData{Value: nil}
			continue
		}
		color := colorBear
		if closes[i] >= open[i] {
			color = colorBull
		}
		data[i] = opts.BarData{Value: v, ItemStyle: &opts.ItemStyle{Color: color, Opacity: opts.Float(0.6)}}
	}
	bar.SetXAxis(xAxis)
	bar.AddSeries("Volume", data)
	return bar
}

// overlayColumns reports which indicator columns share the price scale.
func overlayColumns(s *market.Series) []string {
	var out []string
	for _, name := range s.Columns() {
		switch {
		case name == "super_trend_lower", name == "super_trend_upper":
		case strings.HasPrefix(name, "sma_"), strings.HasPrefix(name, "ema_"), strings.HasPrefix(name, "wma_"),
			strings.HasPrefix(name, "bb_"):
			out = append(out, name)
		}
	}
	return out
}

func buildOverlays(s *market.Series, xAxis []string) *charts.Line {
	names := overlayColumns(s)
	_, hasLower := s.Column("super_trend_lower")
	_, hasUpper := s.Column("super_trend_upper")
	if len(names) == 0 && !hasLower && !hasUpper {
		return nil
	}
	line := charts.NewLine()
	line.SetSeriesOptions(charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}))
	line.SetXAxis(xAxis)
	for i, name := range names {
		col, _ := s.Column(name)
		line.AddSeries(name, toLineData(col),
			charts.WithLineStyleOpts(opts.LineStyle{Color: overlayPalette[i%len(overlayPalette)], Width: 1}))
	}
	if lower, ok := s.Column("super_trend_lower"); ok {
		line.AddSeries("Trend Support", toLineData(lower),
			charts.WithLineStyleOpts(opts.LineStyle{Color: colorBandLower, Width: 2}))
	}
	if upper, ok := s.Column("super_trend_upper"); ok {
		line.AddSeries("Trend Resistance", toLineData(upper),
			charts.WithLineStyleOpts(opts.LineStyle{Color: colorBandUpper, Width: 2}))
	}
	return line
}

func subtitle(s *market.Series) string {
	idx := s.Index()
	first := time.UnixMilli(idx[0]).UTC().Format("2006-01-02 15:04")
	last := time.UnixMilli(idx[len(idx)-1]).UTC().Format("2006-01-02 15:04")
	gaps := 0
	if closes, ok := s.Column(market.ColClose); ok {
		for _, v := range closes {
			if math.IsNaN(v) {
				gaps++
			}
		}
	}
	return fmt.Sprintf("%s ~ %s | %d bars | %d gaps", first, last, s.Len(), gaps)
}

func buildXAxis(index []int64, timeframe string) []string {
	layout := "01-02 15:04"
	if timeframe == "1d" {
		layout = "2006-01-02"
	}
	x := make([]string, len(index))
	for i, ts := range index {
		x[i] = time.UnixMilli(ts).UTC().Format(layout)
	}
	return x
}

func buildKlineData(s *market.Series) []opts.KlineData {
	open, _ := s.Column(market.ColOpen)
	high, _ := s.Column(market.ColHigh)
	low, _ := s.Column(market.ColLow)
	closes, _ := s.Column(market.ColClose)
	data := make([]opts.KlineData, len(open))
	for i := range open {
		if math.IsNaN(open[i]) || math.IsNaN(closes[i]) {
			data[i] = opts.KlineData{Value: nil}
			continue
		}
		data[i] = opts.KlineData{Value: [4]float64{open[i], closes[i], low[i], high[i]}}
	}
	return data
}

func toLineData(series []float64) []opts.LineData {
	line := make([]opts.LineData, len(series))
	for i, val := range series {
		if math.IsNaN(val) || math.IsInf(val, 0) {
			line[i] = opts.LineData{Value: nil}
			continue
		}
		line[i] = opts.LineData{Value: round(val, 4)}
	}
	return line
}

func round(val float64, decimals int) float64 {
	if decimals <= 0 {
		return math.Round(val)
	}
	scale := math.Pow10(decimals)
	return math.Round(val*scale) / scale
}

// priceBounds ignores gap bars.
func priceBounds(s *market.Series) (minVal, maxVal float64) {
	high, _ := s.Column(market.ColHigh)
	low, _ := s.Column(market.ColLow)
	minVal, maxVal = math.Inf(1), math.Inf(-1)
	for i := range high {
		if !math.IsNaN(low[i]) && low[i] < minVal {
			minVal = low[i]
		}
		if !math.IsNaN(high[i]) && high[i] > maxVal {
			maxVal = high[i]
		}
	}
	if math.IsInf(minVal, 1) {
		return 0, 0
	}
	return minVal, maxVal
}

var (
	headlessOnce sync.Once
	headlessErr  error
)

func EnsureHeadlessAvailable(ctx context.Context) error {
	headlessOnce.Do(func() {
		targetCtx := ctx
		if targetCtx == nil {
			targetCtx = context.Background()
		}
		parent, cancel := chromedp.NewContext(targetCtx)
		defer cancel()
		headlessErr = chromedp.Run(parent)
	})
	return headlessErr
}

func renderHTMLToPNG(ctx context.Context, html []byte, width, height int, timeout time.Duration) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	parent, cancel := chromedp.NewContext(ctx)
	defer cancel()

	timeoutCtx, cancelTimeout := context.WithTimeout(parent, timeout)
	defer cancelTimeout()

	dataURI := "data:text/html;base64," + base64.StdEncoding.EncodeToString(html)
	var screenshot []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(width), int64(height)),
		chromedp.Navigate(dataURI),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(1500 * time.Millisecond),
		chromedp.FullScreenshot(&screenshot, 100),
	}
	if err := chromedp.Run(timeoutCtx, tasks...); err != nil {
		return nil, err
	}
	return screenshot, nil
}
