package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"arena/internal/broadcast"
	"arena/internal/config"
	"arena/internal/decision"
	"arena/internal/engine"
	"arena/internal/executor"
	"arena/internal/gateway/notifier"
	"arena/internal/gateway/provider"
	"arena/internal/ledger"
	"arena/internal/logger"
	"arena/internal/market"
	"arena/internal/metrics"
	"arena/internal/profile"
	"arena/internal/prompt"
	"arena/internal/risk"
	"arena/internal/store"
	"arena/internal/store/decisionlog"
	livehttp "arena/internal/transport/http/live"
)

type AppBuilder struct {
	cfg *config.Config

	marketSourceFn func(config.MarketConfig) (market.Source, error)
	backendFn      func(config.PersistenceConfig) (store.Backend, error)
	textNotifierFn func(config.NotifyConfig) notifier.TextNotifier
	httpServerFn   func(config.AppConfig, livehttp.ServerConfig) (*livehttp.Server, error)
}

type AppBuilderOption func(*AppBuilder)

// WithBackend 替换快照后端，测试使用。
func WithBackend(b store.Backend) AppBuilderOption {
	return func(ab *AppBuilder) {
		ab.backendFn = func(config.PersistenceConfig) (store.Backend, error) { return b, nil }
	}
}

// WithMarketSource 替换行情源。
func WithMarketSource(src market.Source) AppBuilderOption {
	return func(ab *AppBuilder) {
		ab.marketSourceFn = func(config.MarketConfig) (market.Source, error) { return src, nil }
	}
}

// WithoutHTTP 不启动 HTTP 服务。
func WithoutHTTP() AppBuilderOption {
	return func(ab *AppBuilder) {
		ab.httpServerFn = func(config.AppConfig, livehttp.ServerConfig) (*livehttp.Server, error) { return nil, nil }
	}
}

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:            cfg,
		marketSourceFn: buildMarketSource,
		backendFn:      OpenBackend,
		textNotifierFn: buildTextNotifier,
		httpServerFn:   buildHTTPServer,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	logger.SetLevel(cfg.App.LogLevel)
	if cfg.App.LogFormat != "" {
		logger.SetFormat(cfg.App.LogFormat)
	}

	profiles, err := profile.Resolve(cfg, profile.NewPromptLoader(profile.BuiltinPersonas{}, promptDirs(cfg)...))
	if err != nil {
		return nil, err
	}
	logger.Infof("✓ 已加载 %d 个交易员", len(profiles))

	src, err := b.marketSourceFn(cfg.Market)
	if err != nil {
		return nil, err
	}
	feed := market.NewFeed(src, market.NewHistory(cfg.Market.HistorySize))
	logger.Infof("✓ 行情源: %s symbols=%v", src.Name(), cfg.Market.Symbols)

	backend, err := b.backendFn(cfg.Persistence)
	if err != nil {
		return nil, err
	}
	saver := store.NewSaver(backend, time.Duration(cfg.Persistence.DebounceMillis)*time.Millisecond)
	logger.Infof("✓ 快照存储: %s", backend.Name())

	var (
		journal    *decisionlog.DecisionLogStore
		journalAPI decision.Journal
		lister     livehttp.DecisionLister
	)
	if cfg.DecisionLog.Enabled {
		journal, err = decisionlog.NewDecisionLogStore(cfg.DecisionLog.Path)
		if err != nil {
			_ = backend.Close()
			return nil, fmt.Errorf("init decision log: %w", err)
		}
		journalAPI, lister = journal, journal
		logger.Infof("✓ 决策日志: %s", cfg.DecisionLog.Path)
	}

	riskState := &atomic.Pointer[config.RiskConfig]{}
	initialRisk := cfg.Risk
	riskState.Store(&initialRisk)
	symbols := append([]string(nil), cfg.Market.Symbols...)
	rules := func() prompt.Rules {
		rc := riskState.Load()
		return prompt.Rules{
			MaxRiskPercent: rc.MaxRiskPerTradePercent,
			MaxPositions:   rc.MaxPositionsPerAgent,
			MaxLeverage:    rc.MaxLeverage,
			Symbols:        symbols,
		}
	}

	factory := &provider.Factory{
		Providers:           cfg.Providers,
		SimulateMissingKeys: cfg.Engine.SimulateMissingKeys,
		Builder:             prompt.NewBuilder(""),
		Rules:               rules,
		Journal:             journalAPI,
		Seed:                cfg.Market.Seed,
	}
	participants := make([]engine.Participant, 0, len(profiles))
	for _, p := range profiles {
		dp, err := factory.Build(p)
		if err != nil {
			_ = backend.Close()
			return nil, err
		}
		participants = append(participants, engine.Participant{
			Spec: ledger.Spec{
				Name:           p.Name,
				Provider:       p.Provider,
				Strategy:       p.Strategy,
				Color:          p.Color,
				InitialBalance: p.InitialBalance,
			},
			Provider: dp,
		})
		logger.Infof("  - %s provider=%s (%s) strategy=%s", p.Name, p.Provider, dp.ID(), p.Strategy)
	}

	riskCfg, limits := riskFromConfig(cfg.Risk)
	hub := broadcast.NewHub(0)
	recorder := metrics.New()
	opts := engine.Options{
		Participants:        participants,
		Limits:              limits,
		Symbols:             symbols,
		Feed:                feed,
		Validator:           risk.NewValidator(riskCfg),
		Executor:            executor.New(executor.Options{DefaultSizePercent: cfg.Risk.DefaultSizePercent}),
		Publisher:           hub,
		Persister:           &meteredSaver{Saver: saver, metrics: recorder},
		Metrics:             recorder,
		SweepInterval:       seconds(cfg.Engine.SweepIntervalSeconds),
		RuntimeTick:         seconds(cfg.Engine.RuntimeTickSeconds),
		ChartSample:         seconds(cfg.Engine.ChartSampleSeconds),
		ChartMaxPoints:      cfg.Engine.ChartMaxPoints,
		MessageHistory:      cfg.Engine.MessageHistory,
		RuntimePersistEvery: cfg.Engine.RuntimePersistEvery,
		RestartOnReset:      cfg.Engine.RestartOnReset,
	}
	if tn := b.textNotifierFn(cfg.Notify); tn != nil {
		opts.Notifier = notifier.NewTradeAlerts(tn)
	}
	eng, err := engine.New(opts)
	if err != nil {
		_ = backend.Close()
		return nil, err
	}

	restored := false
	if doc, err := backend.Load(ctx); err == nil {
		eng.Restore(doc)
		restored = true
	} else if !errors.Is(err, store.ErrNoSnapshot) {
		logger.Warnf("加载快照失败，使用初始状态: %v", err)
	}

	httpSrv, err := b.httpServerFn(cfg.App, livehttp.ServerConfig{
		Engine:    eng,
		Hub:       hub,
		Decisions: lister,
		Metrics:   recorder,
	})
	if err != nil {
		_ = backend.Close()
		return nil, err
	}

	return &App{
		cfg:     cfg,
		engine:  eng,
		hub:     hub,
		httpSrv: httpSrv,
		saver:   saver,
		journal: journal,
		onConfig: func(rc config.RiskConfig) {
			riskState.Store(&rc)
			rcfg, lim := riskFromConfig(rc)
			eng.SetRisk(rcfg, lim)
		},
		Summary: buildSummary(cfg, profiles, src.Name(), backend.Name(), restored),
	}, nil
}

func riskFromConfig(rc config.RiskConfig) (risk.Config, ledger.Limits) {
	cfg := risk.Config{
		MaxLeverage:            rc.MaxLeverage,
		MaxRiskPerTradePercent: rc.MaxRiskPerTradePercent,
		RecoveryMaxLeverage:    rc.RecoveryMaxLeverage,
		RecoverySizeFactor:     rc.RecoverySizeFactor,
		DefaultStopLossPercent: rc.DefaultStopLossPercent,
	}
	limits := ledger.Limits{
		MaxPositions:  rc.MaxPositionsPerAgent,
		RecoveryFloor: rc.RecoveryBalance,
	}
	return cfg, limits
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// promptDirs 人设文件的搜索目录：配置文件所在目录及其 prompts 子目录。
func promptDirs(cfg *config.Config) []string {
	dirs := []string{"prompts"}
	if cfg.Path != "" {
		base := filepath.Dir(cfg.Path)
		dirs = append(dirs, base, filepath.Join(base, "prompts"))
	}
	return dirs
}

func buildTextNotifier(nc config.NotifyConfig) notifier.TextNotifier {
	if !nc.Telegram.Enabled {
		return nil
	}
	logger.Infof("✓ Telegram 通知已启用")
	return notifier.NewTelegram(nc.Telegram.BotToken, nc.Telegram.ChatID)
}

func buildHTTPServer(ac config.AppConfig, sc livehttp.ServerConfig) (*livehttp.Server, error) {
	sc.Addr = ac.HTTPAddr
	return livehttp.NewServer(sc)
}

// meteredSaver 在强制写出失败时计数。
type meteredSaver struct {
	*store.Saver
	metrics *metrics.Recorder
}

func (m *meteredSaver) Flush(ctx context.Context) error {
	err := m.Saver.Flush(ctx)
	if err != nil {
		m.metrics.PersistError()
	}
	return err
}
