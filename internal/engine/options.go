package engine

import (
	"context"
	"time"

	"arena/internal/broadcast"
	"arena/internal/decision"
	"arena/internal/executor"
	"arena/internal/ledger"
	"arena/internal/market"
	"arena/internal/metrics"
	"arena/internal/risk"
	"arena/internal/store"
)

// Participant 是一个参赛交易员及其决策源。
type Participant struct {
	Spec     ledger.Spec
	Provider decision.Provider
}

// QuoteFeed 每次扫描提供一份共享的行情快照。
type QuoteFeed interface {
	Snapshot(ctx context.Context, symbols []string) (market.Board, error)
}

type Publisher interface {
	Publish(evt broadcast.Event)
}

// Persister 接收完整快照；Save 可以合并，Flush 必须同步写出。
type Persister interface {
	Save(doc *store.Document)
	Flush(ctx context.Context) error
}

// TradeNotifier 接收平仓与引擎状态通知，实现需要自行处理耗时与失败。
type TradeNotifier interface {
	TradeClosed(agent string, balance float64, t ledger.Trade)
	System(text string)
}

type Options struct {
	Participants []Participant
	Limits       ledger.Limits
	Symbols      []string
	Feed         QuoteFeed
	Validator    *risk.Validator
	Executor     *executor.Executor

	Publisher Publisher
	Persister Persister
	Notifier  TradeNotifier
	Metrics   *metrics.Recorder

	SweepInterval       time.Duration
	RuntimeTick         time.Duration
	ChartSample         time.Duration
	ChartMaxPoints      int
	MessageHistory      int
	RuntimePersistEvery int
	RestartOnReset      bool

	Now func() time.Time
}

func (o *Options) withDefaults() {
	if o.SweepInterval <= 0 {
		o.SweepInterval = 45 * time.Second
	}
	if o.RuntimeTick <= 0 {
		o.RuntimeTick = time.Second
	}
	if o.ChartSample <= 0 {
		o.ChartSample = 5 * time.Second
	}
	if o.ChartMaxPoints <= 0 {
		o.ChartMaxPoints = 500
	}
	if o.MessageHistory <= 0 {
		o.MessageHistory = 100
	}
	if o.RuntimePersistEvery <= 0 {
		o.RuntimePersistEvery = 10
	}
	if o.Limits.MaxPositions <= 0 {
		o.Limits.MaxPositions = 3
	}
	if o.Validator == nil {
		o.Validator = risk.NewValidator(risk.DefaultConfig())
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Executor == nil {
		o.Executor = executor.New(executor.Options{Now: o.Now})
	}
	if o.Publisher == nil {
		o.Publisher = nopPublisher{}
	}
	if o.Persister == nil {
		o.Persister = nopPersister{}
	}
}

type nopPublisher struct{}

func (nopPublisher) Publish(broadcast.Event) {}

type nopPersister struct{}

func (nopPersister) Save(*store.Document) {}

func (nopPersister) Flush(context.Context) error { return nil }
