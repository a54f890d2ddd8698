package app

import (
	"context"
	"fmt"
	"time"

	"arena/internal/broadcast"
	"arena/internal/config"
	"arena/internal/engine"
	"arena/internal/logger"
	"arena/internal/store"
	"arena/internal/store/decisionlog"
	livehttp "arena/internal/transport/http/live"

	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// App 负责应用级编排：加载配置→初始化依赖→启动引擎与 HTTP 服务。
type App struct {
	cfg      *config.Config
	engine   *engine.Engine
	hub      *broadcast.Hub
	httpSrv  *livehttp.Server
	saver    *store.Saver
	journal  *decisionlog.DecisionLogStore
	onConfig func(config.RiskConfig)
	Summary  *StartupSummary
}

// NewApp 根据配置构建应用对象（不启动）。
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Run 启动 HTTP 服务与交易引擎，ctx 取消后停止引擎并强制落盘。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil || a.engine == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.Summary != nil {
		a.Summary.Print()
	}
	if a.cfg.App.WatchRisk && a.cfg.Path != "" {
		if err := config.WatchRisk(a.cfg.Path, a.onConfig); err != nil {
			logger.Warnf("风控热加载未启用: %v", err)
		}
	}

	group, gctx := errgroup.WithContext(ctx)
	if a.httpSrv != nil {
		group.Go(func() error {
			if err := a.httpSrv.Start(gctx); err != nil {
				return fmt.Errorf("http server error: %w", err)
			}
			return nil
		})
	}
	if a.cfg.Engine.AutoStart {
		if err := a.engine.Start(context.WithoutCancel(ctx)); err != nil {
			return err
		}
	}
	group.Go(func() error {
		<-gctx.Done()
		return nil
	})

	err := group.Wait()
	a.shutdown()
	return err
}

// shutdown 停止引擎，写出最后一份快照，再关闭存储与推送。
func (a *App) shutdown() {
	logger.Infof("正在关闭，保存交易数据...")
	a.engine.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.engine.Flush(ctx); err != nil {
		logger.Errorf("关闭前保存快照失败: %v", err)
	}
	if a.saver != nil {
		if err := a.saver.Close(ctx); err != nil {
			logger.Errorf("关闭存储失败: %v", err)
		}
	}
	if a.journal != nil {
		_ = a.journal.Close()
	}
	if a.hub != nil {
		a.hub.Close()
	}
	logger.Infof("交易数据已保存")
}

// Engine 暴露引擎实例，供测试与命令行工具使用。
func (a *App) Engine() *engine.Engine {
	if a == nil {
		return nil
	}
	return a.engine
}
