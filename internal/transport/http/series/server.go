package serieshttp

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cryptoseries/internal/acquire"
	"cryptoseries/internal/analysis/trendstats"
	"cryptoseries/internal/analysis/visual"
	"cryptoseries/internal/logger"
	"cryptoseries/internal/market"

	"github.com/gin-gonic/gin"
)

var log = logger.Component("http")

// SeriesService is the acquisition surface the HTTP layer needs.
type SeriesService interface {
	Acquire(ctx context.Context, req acquire.Request) (*acquire.Acquisition, error)
	ListSymbols(ctx context.Context, exchange, quote string) ([]string, error)
	Exchanges() []string
}

// ChartRenderer draws a series.
type ChartRenderer interface {
	HTML(s *market.Series) ([]byte, error)
	PNG(ctx context.Context, s *market.Series) (visual.ImageResult, error)
}

// Server 提供行情序列相关的 HTTP API。
type Server struct {
	addr   string
	svc    SeriesService
	charts ChartRenderer
	router *gin.Engine
}

// Config 描述 HTTP Server 的依赖。
type Config struct {
	Addr    string
	Service SeriesService
	Charts  ChartRenderer
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.Service == nil {
		return nil, errors.New("series service is required")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9991"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{
		addr:   cfg.Addr,
		svc:    cfg.Service,
		charts: cfg.Charts,
		router: router,
	}
	s.registerRoutes()
	return s, nil
}

// Handler exposes the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.GET("/healthz", s.handleHealth)
	api := s.router.Group("/api")
	api.GET("/series", s.handleSeries)
	api.GET("/series/trend", s.handleTrend)
	api.GET("/series/chart", s.handleChart)
	api.GET("/symbols", s.handleSymbols)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "exchanges": s.svc.Exchanges()})
}

func (s *Server) handleSeries(c *gin.Context) {
	req, err := parseSeriesRequest(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	acq, err := s.svc.Acquire(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, acq)
}

func (s *Server) handleTrend(c *gin.Context) {
	req, err := parseSeriesRequest(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	horizon, err := intQuery(c, "horizon", 1)
	if err != nil || horizon <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "horizon must be a positive integer"})
		return
	}
	acq, err := s.svc.Acquire(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	report, err := trendstats.Compute(acq.Series)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	upRatio, err := trendstats.TrendUpRatio(acq.Series, horizon)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"request_id":     acq.Plan.RequestID,
		"symbol":         acq.Plan.Symbol,
		"timeframe":      acq.Plan.Timeframe,
		"report":         report,
		"horizon":        horizon,
		"horizon_up_pct": upRatio,
	})
}

func (s *Server) handleChart(c *gin.Context) {
	if s.charts == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "chart rendering disabled"})
		return
	}
	req, err := parseSeriesRequest(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !contains(req.Indicators, "super_trend") {
		req.Indicators = append(req.Indicators, "super_trend")
	}
	acq, err := s.svc.Acquire(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	if strings.EqualFold(c.Query("format"), "png") {
		img, err := s.charts.PNG(c.Request.Context(), acq.Series)
		if err != nil {
			log.Errorf("req=%s render png: %v", acq.Plan.RequestID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Header("Content-Disposition", `inline; filename="`+img.Filename+`"`)
		c.Data(http.StatusOK, "image/png", img.Bytes)
		return
	}
	html, err := s.charts.HTML(acq.Series)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", html)
}

func (s *Server) handleSymbols(c *gin.Context) {
	symbols, err := s.svc.ListSymbols(c.Request.Context(), c.Query("exchange"), c.Query("quote"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbols": symbols, "count": len(symbols)})
}

// writeError maps acquisition failures onto status codes.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	var cfgErr *acquire.ConfigurationError
	var fetchErr *acquire.FetchError
	switch {
	case errors.As(err, &cfgErr):
		status = http.StatusBadRequest
	case errors.Is(err, acquire.ErrSymbolNotFound), errors.Is(err, acquire.ErrEmptyResult):
		status = http.StatusNotFound
	case errors.As(err, &fetchErr):
		status = http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	body := gin.H{"error": err.Error()}
	if fetchErr != nil {
		body["failed_windows"] = fetchErr.Failed
		body["total_windows"] = fetchErr.Total
		body["transient"] = errors.Is(err, market.ErrTransient)
	}
	if status >= http.StatusInternalServerError {
		log.Warnf("%s %s -> %d: %v", c.Request.Method, c.Request.URL.Path, status, err)
	}
	c.JSON(status, body)
}

func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

func intQuery(c *gin.Context, key string, def int) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
