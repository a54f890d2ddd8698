package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"arena/internal/broadcast"
	"arena/internal/decision"
	"arena/internal/ledger"
	"arena/internal/logger"
	"arena/internal/risk"
	"arena/internal/scheduler"
	"arena/internal/store"
)

var ErrUnknownAgent = errors.New("unknown agent")

// Engine 持有全部交易员账本并驱动三个周期任务：决策扫描、运行计时、曲线采样。
// 状态修改都在 mu 下完成，推送也在 mu 下发出，保证订阅者看到的顺序与提交顺序一致。
// 模型调用发生在锁外。
type Engine struct {
	opts      Options
	providers map[string]decision.Provider

	// lifecycle 串行化 Start/Stop/Reset
	lifecycle sync.Mutex
	running   bool
	cancel    context.CancelFunc
	done      chan struct{}

	mu       sync.Mutex
	agents   []*ledger.Agent
	chart    []store.ChartPoint
	messages []store.Message
	elapsed  int64
	ticks    int
}

func New(opts Options) (*Engine, error) {
	opts.withDefaults()
	if opts.Feed == nil {
		return nil, fmt.Errorf("engine: quote feed is required")
	}
	if len(opts.Participants) == 0 {
		return nil, fmt.Errorf("engine: no participants")
	}
	e := &Engine{
		opts:      opts,
		providers: make(map[string]decision.Provider, len(opts.Participants)),
		chart:     []store.ChartPoint{},
		messages:  []store.Message{},
	}
	for _, p := range opts.Participants {
		if p.Provider == nil {
			return nil, fmt.Errorf("engine: agent %s has no provider", p.Spec.Name)
		}
		if _, dup := e.providers[p.Spec.Name]; dup {
			return nil, fmt.Errorf("engine: duplicate agent %s", p.Spec.Name)
		}
		e.providers[p.Spec.Name] = p.Provider
	}
	e.agents = e.freshAgents()
	return e, nil
}

func (e *Engine) freshAgents() []*ledger.Agent {
	now := e.opts.Now()
	agents := make([]*ledger.Agent, 0, len(e.opts.Participants))
	for _, p := range e.opts.Participants {
		agents = append(agents, ledger.NewAgent(p.Spec, e.opts.Limits, now))
	}
	return agents
}

// Start 启动调度。已在运行时只记录警告。
func (e *Engine) Start(ctx context.Context) error {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()
	if e.running {
		logger.Warnf("Trading engine is already running")
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	sched := scheduler.New(
		scheduler.Task{Name: "sweep", Interval: e.opts.SweepInterval, Mode: scheduler.FixedDelay, RunImmediately: true, Run: e.Sweep},
		scheduler.Task{Name: "runtime", Interval: e.opts.RuntimeTick, Mode: scheduler.FixedRate, Run: e.TickRuntime},
		scheduler.Task{Name: "chart", Interval: e.opts.ChartSample, Mode: scheduler.FixedRate, Run: e.SampleChart},
	)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := sched.Run(runCtx); err != nil {
			logger.Errorf("engine scheduler: %v", err)
		}
	}()
	e.running, e.cancel, e.done = true, cancel, done

	logger.Infof("Trading engine started with %d agents", len(e.opts.Participants))
	e.mu.Lock()
	e.opts.Publisher.Publish(broadcast.System("Trading engine started. AI traders are analyzing markets..."))
	e.mu.Unlock()
	if n := e.opts.Notifier; n != nil {
		go n.System("Trading engine started")
	}
	return nil
}

// Stop 取消调度并等待进行中的周期提交完毕。未运行时直接返回。
func (e *Engine) Stop() {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()
	e.stopLocked()
}

func (e *Engine) stopLocked() bool {
	if !e.running {
		return false
	}
	e.cancel()
	<-e.done
	e.running, e.cancel, e.done = false, nil, nil

	logger.Infof("Trading engine stopped")
	e.mu.Lock()
	e.opts.Publisher.Publish(broadcast.System("Trading engine stopped"))
	e.persistLocked()
	e.mu.Unlock()
	if n := e.opts.Notifier; n != nil {
		go n.System("Trading engine stopped")
	}
	return true
}

func (e *Engine) Running() bool {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()
	return e.running
}

// Reset 把所有交易员恢复到初始资金，清空曲线与消息并立即落盘。
// 只有配置了 RestartOnReset 时才会重新启动。
func (e *Engine) Reset(ctx context.Context) error {
	e.lifecycle.Lock()
	e.stopLocked()

	e.mu.Lock()
	e.agents = e.freshAgents()
	e.chart = []store.ChartPoint{}
	e.messages = []store.Message{}
	e.elapsed = 0
	e.ticks = 0
	e.opts.Metrics.ResetAgents()
	for _, a := range e.agents {
		e.opts.Metrics.SetAgent(a.Name, a.CurrentBalance, 0)
	}
	e.opts.Publisher.Publish(broadcast.NewEvent(broadcast.KindInitialState, e.documentLocked()))
	e.opts.Publisher.Publish(broadcast.System("Trading data has been reset"))
	e.persistLocked()
	e.mu.Unlock()
	e.lifecycle.Unlock()

	logger.Infof("Trading data reset")
	if err := e.opts.Persister.Flush(ctx); err != nil {
		logger.Errorf("reset: 保存快照失败: %v", err)
	}
	if e.opts.RestartOnReset {
		return e.Start(context.WithoutCancel(ctx))
	}
	return nil
}

// SetRisk 热更新风控参数，之后的决策立即生效。
func (e *Engine) SetRisk(cfg risk.Config, limits ledger.Limits) {
	e.opts.Validator.SetConfig(cfg)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.opts.Limits = limits
	for _, a := range e.agents {
		a.SetLimits(limits)
	}
}

// TickRuntime 推进运行秒数，每 RuntimePersistEvery 次落一次盘。
func (e *Engine) TickRuntime(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.elapsed += max(1, int64(e.opts.RuntimeTick/time.Second))
	e.opts.Publisher.Publish(broadcast.NewEvent(broadcast.KindRuntimeUpdate, map[string]int64{"timeElapsed": e.elapsed}))
	e.ticks++
	if e.ticks%e.opts.RuntimePersistEvery == 0 {
		e.persistLocked()
	}
}

// SampleChart 为每个交易员追加一个余额点，超过上限时丢弃最旧的点。
func (e *Engine) SampleChart(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	point := store.ChartPoint{
		Time:     e.opts.Now().Format("15:04:05"),
		Balances: make(map[string]float64, len(e.agents)),
	}
	for _, a := range e.agents {
		point.Balances[a.Name] = a.CurrentBalance
	}
	e.chart = append(e.chart, point)
	if over := len(e.chart) - e.opts.ChartMaxPoints; over > 0 {
		e.chart = append([]store.ChartPoint(nil), e.chart[over:]...)
	}
	e.opts.Publisher.Publish(broadcast.NewEvent(broadcast.KindChartUpdate, point.Clone()))
	e.persistLocked()
}

// persistLocked 需要持有 mu。
func (e *Engine) persistLocked() {
	e.opts.Persister.Save(e.documentLocked())
}

// Flush 同步写出最新状态，进程退出前调用。
func (e *Engine) Flush(ctx context.Context) error {
	e.mu.Lock()
	e.persistLocked()
	e.mu.Unlock()
	return e.opts.Persister.Flush(ctx)
}
