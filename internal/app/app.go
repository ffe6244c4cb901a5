package app

import (
	"context"
	"fmt"

	"cryptoseries/internal/acquire"
	"cryptoseries/internal/config"
	"cryptoseries/internal/logger"
	serieshttp "cryptoseries/internal/transport/http/series"

	"golang.org/x/sync/errgroup"
)

// App 负责应用级编排：加载配置→构建数据源与获取服务→启动 HTTP 接口。
type App struct {
	cfg     *config.Config
	service *acquire.Service
	http    *serieshttp.Server
	Summary *StartupSummary
}

// NewApp 根据配置构建应用对象（不启动）
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return NewAppBuilder(cfg).Build(context.Background())
}

// Run serves the HTTP API until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.Summary != nil {
		a.Summary.Print()
	}
	if a.http == nil {
		return fmt.Errorf("http server not initialized")
	}
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := a.http.Start(ctx); err != nil {
			return fmt.Errorf("series http server error: %w", err)
		}
		return nil
	})
	return group.Wait()
}

// Service exposes the acquisition service (for tests and embedding).
func (a *App) Service() *acquire.Service {
	if a == nil {
		return nil
	}
	return a.service
}
