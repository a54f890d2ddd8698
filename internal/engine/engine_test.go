package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"arena/internal/broadcast"
	"arena/internal/decision"
	"arena/internal/ledger"
	"arena/internal/market"
	"arena/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 1, 9, 30, 15, 0, time.UTC)

type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) ID() string { return "mock" }

func (m *MockProvider) Decide(ctx context.Context, tc decision.TradingContext) (decision.TradingDecision, error) {
	args := m.Called(ctx, tc)
	return args.Get(0).(decision.TradingDecision), args.Error(1)
}

type funcProvider func(ctx context.Context, tc decision.TradingContext) (decision.TradingDecision, error)

func (f funcProvider) ID() string { return "func" }

func (f funcProvider) Decide(ctx context.Context, tc decision.TradingContext) (decision.TradingDecision, error) {
	return f(ctx, tc)
}

func holdProvider(reason string) funcProvider {
	return func(context.Context, decision.TradingContext) (decision.TradingDecision, error) {
		return decision.Hold(reason, "PATIENCE"), nil
	}
}

// scriptProvider 依次返回预设决策，用完后一直 HOLD。
func scriptProvider(steps ...decision.TradingDecision) funcProvider {
	var mu sync.Mutex
	return func(context.Context, decision.TradingContext) (decision.TradingDecision, error) {
		mu.Lock()
		defer mu.Unlock()
		if len(steps) == 0 {
			return decision.Hold("nothing to do", "PATIENCE"), nil
		}
		d := steps[0]
		steps = steps[1:]
		return d, nil
	}
}

type fakeFeed struct {
	mu     sync.Mutex
	prices map[string]float64
	err    error
	calls  int
}

func newFeed(prices map[string]float64) *fakeFeed {
	return &fakeFeed{prices: prices}
}

func (f *fakeFeed) set(sym string, px float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices[sym] = px
}

func (f *fakeFeed) Snapshot(ctx context.Context, symbols []string) (market.Board, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return market.Board{}, f.err
	}
	quotes := make([]market.Quote, 0, len(f.prices))
	for sym, px := range f.prices {
		quotes = append(quotes, market.Quote{Symbol: sym, Price: px})
	}
	return market.NewBoard(quotes), nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []broadcast.Event
}

func (p *recordingPublisher) Publish(evt broadcast.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
}

func (p *recordingPublisher) ofKind(kind broadcast.Kind) []broadcast.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []broadcast.Event
	for _, e := range p.events {
		if e.Type == kind {
			out = append(out, e)
		}
	}
	return out
}

type memPersister struct {
	mu      sync.Mutex
	saves   int
	flushes int
	last    *store.Document
}

func (p *memPersister) Save(doc *store.Document) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saves++
	p.last = doc
}

func (p *memPersister) Flush(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.flushes++
	return nil
}

func (p *memPersister) counts() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saves, p.flushes
}

type chanNotifier struct {
	closed chan ledger.Trade
}

func (n *chanNotifier) TradeClosed(agent string, balance float64, t ledger.Trade) {
	n.closed <- t
}

func (n *chanNotifier) System(string) {}

type fixture struct {
	engine    *Engine
	feed      *fakeFeed
	publisher *recordingPublisher
	persister *memPersister
}

func participant(name string, p decision.Provider) Participant {
	return Participant{Spec: ledger.Spec{Name: name, Provider: "test", Strategy: "TEST", InitialBalance: 200}, Provider: p}
}

func newFixture(t *testing.T, tweak func(*Options), participants ...Participant) *fixture {
	t.Helper()
	f := &fixture{
		feed:      newFeed(map[string]float64{"BTC-USD": 100, "ETH-USD": 2000}),
		publisher: &recordingPublisher{},
		persister: &memPersister{},
	}
	opts := Options{
		Participants:  participants,
		Limits:        ledger.Limits{MaxPositions: 3, RecoveryFloor: 50},
		Symbols:       []string{"BTC-USD", "ETH-USD"},
		Feed:          f.feed,
		Publisher:     f.publisher,
		Persister:     f.persister,
		SweepInterval: time.Hour,
		Now:           func() time.Time { return fixedNow },
	}
	if tweak != nil {
		tweak(&opts)
	}
	e, err := New(opts)
	require.NoError(t, err)
	f.engine = e
	return f
}

func agentOf(t *testing.T, doc *store.Document, name string) *ledger.Agent {
	t.Helper()
	a, ok := doc.Agent(name)
	require.True(t, ok, "agent %s missing", name)
	return a
}

func TestNewValidatesOptions(t *testing.T) {
	_, err := New(Options{Participants: []Participant{participant("GROK", holdProvider("x"))}})
	assert.Error(t, err, "feed is required")

	_, err = New(Options{Feed: newFeed(nil)})
	assert.Error(t, err)

	_, err = New(Options{Feed: newFeed(nil), Participants: []Participant{
		participant("GROK", holdProvider("x")),
		participant("GROK", holdProvider("y")),
	}})
	assert.ErrorContains(t, err, "duplicate agent GROK")

	_, err = New(Options{Feed: newFeed(nil), Participants: []Participant{{Spec: ledger.Spec{Name: "GROK"}}}})
	assert.ErrorContains(t, err, "no provider")
}

func TestSweepIsolatesFailingAgent(t *testing.T) {
	failing := new(MockProvider)
	failing.On("Decide", mock.Anything, mock.Anything).Return(decision.TradingDecision{}, errors.New("upstream 503"))

	f := newFixture(t, nil,
		participant("GROK", failing),
		participant("CLAUDE", scriptProvider(decision.TradingDecision{
			Action: decision.ActionOpenLong, Symbol: "BTC-USD",
			Size: decision.Float(10), Leverage: decision.Float(5), StopLoss: decision.Float(95),
			Reasoning: "breakout",
		})),
		participant("CHATGPT", holdProvider("waiting for confirmation")),
	)

	f.engine.Sweep(context.Background())

	doc := f.engine.State()
	grok := agentOf(t, doc, "GROK")
	assert.Equal(t, ledger.StatusError, grok.Status)
	assert.Equal(t, "Error: upstream 503", grok.LastAction)
	assert.Equal(t, 200.0, grok.CurrentBalance)
	assert.Empty(t, grok.OpenPositions)

	claude := agentOf(t, doc, "CLAUDE")
	assert.Equal(t, ledger.StatusTrading, claude.Status)
	assert.Equal(t, "OPEN_LONG BTC-USD @ 5X", claude.LastAction)
	require.Len(t, claude.OpenPositions, 1)
	assert.Equal(t, 100.0, claude.OpenPositions[0].EntryPrice)

	chatgpt := agentOf(t, doc, "CHATGPT")
	assert.Equal(t, ledger.StatusWaiting, chatgpt.Status)
	assert.Equal(t, "HOLD @ 1X", chatgpt.LastAction)

	errs := f.publisher.ofKind(broadcast.KindError)
	require.Len(t, errs, 1)
	assert.Equal(t, "GROK", errs[0].Trader)
	assert.Equal(t, "upstream 503", errs[0].Message)

	require.Len(t, doc.Messages, 2)
	assert.Equal(t, "CHATGPT", doc.Messages[0].Trader, "newest first")
	assert.Equal(t, "CLAUDE", doc.Messages[1].Trader)
	assert.Equal(t, "breakout", doc.Messages[1].Message)

	trades := f.publisher.ofKind(broadcast.KindTradeMessage)
	require.Len(t, trades, 2)
	assert.Equal(t, map[string]string{"action": "OPEN_LONG", "symbol": "BTC-USD"}, trades[0].Data)
	failing.AssertExpectations(t)
}

func TestProviderPanicIsContained(t *testing.T) {
	boom := funcProvider(func(context.Context, decision.TradingContext) (decision.TradingDecision, error) {
		panic("kaboom")
	})
	f := newFixture(t, nil, participant("GROK", boom), participant("CLAUDE", holdProvider("calm")))

	assert.NotPanics(t, func() { f.engine.Sweep(context.Background()) })

	doc := f.engine.State()
	assert.Equal(t, ledger.StatusError, agentOf(t, doc, "GROK").Status)
	assert.Equal(t, "Error: kaboom", agentOf(t, doc, "GROK").LastAction)
	assert.Equal(t, ledger.StatusWaiting, agentOf(t, doc, "CLAUDE").Status)
}

func TestSafeHoldFromGuardLeavesAgentWaiting(t *testing.T) {
	guarded := decision.Guard(funcProvider(func(context.Context, decision.TradingContext) (decision.TradingDecision, error) {
		return decision.TradingDecision{}, errors.New("rate limited")
	}), decision.GuardOptions{})
	f := newFixture(t, nil, participant("GROK", guarded))

	f.engine.Sweep(context.Background())

	grok := agentOf(t, f.engine.State(), "GROK")
	assert.Equal(t, ledger.StatusWaiting, grok.Status)
	assert.Equal(t, "HOLD @ 1X", grok.LastAction)
	assert.Empty(t, f.publisher.ofKind(broadcast.KindError))
}

func TestContextCarriesSharedBoard(t *testing.T) {
	var seen []decision.TradingContext
	var mu sync.Mutex
	record := funcProvider(func(_ context.Context, tc decision.TradingContext) (decision.TradingDecision, error) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, tc)
		return decision.Hold("ok", "PATIENCE"), nil
	})
	f := newFixture(t, nil, participant("GROK", record), participant("CLAUDE", record))

	f.engine.Sweep(context.Background())

	require.Len(t, seen, 2)
	assert.Equal(t, "GROK", seen[0].Agent)
	assert.Equal(t, "CLAUDE", seen[1].Agent)
	assert.ElementsMatch(t, seen[0].Market, seen[1].Market)
	assert.Equal(t, 200.0, seen[0].CurrentBalance)
	assert.Equal(t, 3, seen[0].MaxPositions)
	assert.Equal(t, 1, f.feed.calls, "one snapshot per sweep")
}

func TestCloseRealizesTradeAndNotifies(t *testing.T) {
	notifier := &chanNotifier{closed: make(chan ledger.Trade, 1)}
	f := newFixture(t, func(o *Options) { o.Notifier = notifier },
		participant("GROK", scriptProvider(
			decision.TradingDecision{Action: decision.ActionOpenLong, Symbol: "BTC-USD", Size: decision.Float(10), Leverage: decision.Float(5), Reasoning: "enter"},
			decision.TradingDecision{Action: decision.ActionClose, Reasoning: "take profit"},
		)),
	)

	f.engine.Sweep(context.Background())
	f.feed.set("BTC-USD", 110)
	f.engine.Sweep(context.Background())

	grok := agentOf(t, f.engine.State(), "GROK")
	assert.Empty(t, grok.OpenPositions)
	assert.InDelta(t, 205.0, grok.CurrentBalance, 1e-9)
	assert.Equal(t, 1, grok.TotalTrades)
	assert.Equal(t, "CLOSE_POSITION @ 1X", grok.LastAction)

	select {
	case trade := <-notifier.closed:
		assert.Equal(t, "BTC-USD", trade.Symbol)
		assert.InDelta(t, 5.0, trade.PnL, 1e-9)
		assert.InDelta(t, 10.0, trade.PnLPercent, 1e-9)
	case <-time.After(time.Second):
		t.Fatal("trade notification not delivered")
	}
}

func TestSweepRefreshesValuations(t *testing.T) {
	f := newFixture(t, nil, participant("GROK", scriptProvider(
		decision.TradingDecision{Action: decision.ActionOpenShort, Symbol: "ETH-USD", Size: decision.Float(10), Leverage: decision.Float(2)},
	)))
	f.engine.Sweep(context.Background())
	f.feed.set("ETH-USD", 1900)
	f.engine.Sweep(context.Background())

	pos := agentOf(t, f.engine.State(), "GROK").OpenPositions
	require.Len(t, pos, 1)
	assert.Equal(t, 1900.0, pos[0].CurrentPrice)
	assert.InDelta(t, 1.0, pos[0].UnrealizedPnL, 1e-9)
}

func TestRiskAdjustmentAppliedBeforeExecution(t *testing.T) {
	f := newFixture(t, nil, participant("GROK", scriptProvider(
		decision.TradingDecision{Action: decision.ActionOpenLong, Symbol: "BTC-USD", Size: decision.Float(150), Leverage: decision.Float(50)},
		decision.TradingDecision{Action: decision.ActionOpenLong, Symbol: "DOGE-USD", Size: decision.Float(10)},
	)))
	f.engine.Sweep(context.Background())
	f.engine.Sweep(context.Background())

	grok := agentOf(t, f.engine.State(), "GROK")
	require.Len(t, grok.OpenPositions, 1)
	p := grok.OpenPositions[0]
	assert.Equal(t, 20.0, p.Size)
	assert.Equal(t, 10.0, p.Leverage)
	assert.InDelta(t, 95.0, p.StopLoss, 1e-9)
	assert.Equal(t, "HOLD @ 1X", grok.LastAction, "unknown symbol downgraded to HOLD")
	assert.Equal(t, ledger.StatusWaiting, grok.Status)
}

func TestMessageHistoryCapped(t *testing.T) {
	n := 0
	counter := funcProvider(func(context.Context, decision.TradingContext) (decision.TradingDecision, error) {
		n++
		return decision.Hold(fmt.Sprintf("r%d", n), "PATIENCE"), nil
	})
	f := newFixture(t, func(o *Options) { o.MessageHistory = 3 }, participant("GROK", counter))

	for i := 0; i < 5; i++ {
		f.engine.Sweep(context.Background())
	}

	msgs := f.engine.State().Messages
	require.Len(t, msgs, 3)
	assert.Equal(t, "r5", msgs[0].Message)
	assert.Equal(t, "r3", msgs[2].Message)
}

func TestSampleChartKeepsRollingWindow(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.ChartMaxPoints = 2 },
		participant("GROK", holdProvider("x")), participant("CLAUDE", holdProvider("y")))

	for i := 0; i < 3; i++ {
		f.engine.SampleChart(context.Background())
	}

	chart := f.engine.State().ChartData
	require.Len(t, chart, 2)
	assert.Equal(t, "09:30:15", chart[1].Time)
	assert.Equal(t, map[string]float64{"GROK": 200, "CLAUDE": 200}, chart[1].Balances)

	updates := f.publisher.ofKind(broadcast.KindChartUpdate)
	require.Len(t, updates, 3)
	raw, err := json.Marshal(updates[0].Data)
	require.NoError(t, err)
	assert.JSONEq(t, `{"time":"09:30:15","GROK":200,"CLAUDE":200}`, string(raw))
}

func TestRuntimeTickPersistsPeriodically(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.RuntimePersistEvery = 3 }, participant("GROK", holdProvider("x")))

	for i := 0; i < 7; i++ {
		f.engine.TickRuntime(context.Background())
	}

	saves, _ := f.persister.counts()
	assert.Equal(t, 2, saves)
	assert.Equal(t, int64(7), f.engine.State().TimeElapsed)
	assert.Len(t, f.publisher.ofKind(broadcast.KindRuntimeUpdate), 7)
}

func TestMarketDataFailureSkipsSweep(t *testing.T) {
	m := new(MockProvider)
	f := newFixture(t, nil, participant("GROK", m))
	f.feed.err = errors.New("exchange down")

	f.engine.Sweep(context.Background())

	m.AssertNotCalled(t, "Decide", mock.Anything, mock.Anything)
	errs := f.publisher.ofKind(broadcast.KindError)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "market data unavailable: exchange down")
	assert.Equal(t, ledger.StatusWaiting, agentOf(t, f.engine.State(), "GROK").Status)
}

func TestStartStopIdempotent(t *testing.T) {
	called := make(chan struct{}, 8)
	signal := funcProvider(func(context.Context, decision.TradingContext) (decision.TradingDecision, error) {
		called <- struct{}{}
		return decision.Hold("ok", "PATIENCE"), nil
	})
	f := newFixture(t, nil, participant("GROK", signal))

	require.NoError(t, f.engine.Start(context.Background()))
	require.NoError(t, f.engine.Start(context.Background()))
	assert.True(t, f.engine.Running())

	select {
	case <-called:
	case <-time.After(2 * time.Second):
		t.Fatal("first sweep did not run immediately")
	}

	f.engine.Stop()
	assert.False(t, f.engine.Running())
	f.engine.Stop()

	var started, stopped int
	for _, evt := range f.publisher.ofKind(broadcast.KindSystem) {
		switch evt.Message {
		case "Trading engine started. AI traders are analyzing markets...":
			started++
		case "Trading engine stopped":
			stopped++
		}
	}
	assert.Equal(t, 1, started)
	assert.Equal(t, 1, stopped)
}

func TestStopCancelsPendingDecision(t *testing.T) {
	entered := make(chan struct{})
	blocking := funcProvider(func(ctx context.Context, _ decision.TradingContext) (decision.TradingDecision, error) {
		close(entered)
		<-ctx.Done()
		return decision.TradingDecision{}, ctx.Err()
	})
	f := newFixture(t, nil, participant("GROK", blocking))

	require.NoError(t, f.engine.Start(context.Background()))
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("provider not called")
	}
	f.engine.Stop()

	grok := agentOf(t, f.engine.State(), "GROK")
	assert.Equal(t, ledger.StatusWaiting, grok.Status)
	assert.Empty(t, f.publisher.ofKind(broadcast.KindError))
}

func TestStopDropsGuardedDecisionInFlight(t *testing.T) {
	entered := make(chan struct{})
	blocking := funcProvider(func(ctx context.Context, _ decision.TradingContext) (decision.TradingDecision, error) {
		close(entered)
		<-ctx.Done()
		return decision.TradingDecision{}, ctx.Err()
	})
	f := newFixture(t, nil, participant("GROK", decision.Guard(blocking, decision.GuardOptions{Timeout: time.Minute})))

	require.NoError(t, f.engine.Start(context.Background()))
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("provider not called")
	}
	f.engine.Stop()

	doc := f.engine.State()
	grok := agentOf(t, doc, "GROK")
	assert.Equal(t, ledger.StatusWaiting, grok.Status)
	assert.Empty(t, doc.Messages, "a cancelled decision is not committed")
	assert.Empty(t, f.publisher.ofKind(broadcast.KindTradeMessage))
}

func TestResetRestoresInitialState(t *testing.T) {
	f := newFixture(t, nil, participant("GROK", scriptProvider(
		decision.TradingDecision{Action: decision.ActionOpenLong, Symbol: "BTC-USD", Size: decision.Float(10)},
	)))
	f.engine.Sweep(context.Background())
	f.engine.SampleChart(context.Background())
	f.engine.TickRuntime(context.Background())

	require.NoError(t, f.engine.Reset(context.Background()))

	doc := f.engine.State()
	grok := agentOf(t, doc, "GROK")
	assert.Equal(t, 200.0, grok.CurrentBalance)
	assert.Empty(t, grok.OpenPositions)
	assert.Equal(t, ledger.StatusWaiting, grok.Status)
	assert.Empty(t, doc.ChartData)
	assert.Empty(t, doc.Messages)
	assert.Zero(t, doc.TimeElapsed)
	assert.False(t, f.engine.Running())

	_, flushes := f.persister.counts()
	assert.Equal(t, 1, flushes)
	assert.Len(t, f.publisher.ofKind(broadcast.KindInitialState), 1)
}

func TestResetRestartsWhenConfigured(t *testing.T) {
	f := newFixture(t, func(o *Options) { o.RestartOnReset = true }, participant("GROK", holdProvider("x")))
	require.NoError(t, f.engine.Reset(context.Background()))
	assert.True(t, f.engine.Running())
	f.engine.Stop()
}

func TestResetDuringDecisionDropsResult(t *testing.T) {
	var e *Engine
	resetting := funcProvider(func(ctx context.Context, _ decision.TradingContext) (decision.TradingDecision, error) {
		require.NoError(t, e.Reset(ctx))
		return decision.TradingDecision{Action: decision.ActionOpenLong, Symbol: "BTC-USD", Size: decision.Float(10)}, nil
	})
	f := newFixture(t, nil, participant("GROK", resetting))
	e = f.engine

	f.engine.Sweep(context.Background())

	doc := f.engine.State()
	assert.Empty(t, agentOf(t, doc, "GROK").OpenPositions)
	assert.Empty(t, doc.Messages)
}

func TestRestoreMatchesRosterByName(t *testing.T) {
	f := newFixture(t, nil, participant("GROK", holdProvider("x")), participant("CLAUDE", holdProvider("y")))

	saved := ledger.NewAgent(ledger.Spec{Name: "GROK", InitialBalance: 200}, ledger.Limits{}, fixedNow)
	saved.CurrentBalance = 250
	saved.Status = ledger.StatusAnalyzing
	ghost := ledger.NewAgent(ledger.Spec{Name: "GHOST", InitialBalance: 200}, ledger.Limits{}, fixedNow)
	f.engine.Restore(&store.Document{
		AITraders:   []*ledger.Agent{saved, ghost},
		ChartData:   []store.ChartPoint{{Time: "09:00:00", Balances: map[string]float64{"GROK": 250}}},
		Messages:    []store.Message{{Trader: "GROK", Message: "restored"}},
		TimeElapsed: 99,
	})

	doc := f.engine.State()
	require.Len(t, doc.AITraders, 2)
	grok := agentOf(t, doc, "GROK")
	assert.Equal(t, 250.0, grok.CurrentBalance)
	assert.Equal(t, ledger.StatusWaiting, grok.Status)
	assert.Equal(t, 200.0, agentOf(t, doc, "CLAUDE").CurrentBalance)
	_, hasGhost := doc.Agent("GHOST")
	assert.False(t, hasGhost)
	assert.Len(t, doc.ChartData, 1)
	assert.Equal(t, int64(99), doc.TimeElapsed)

	perf, err := f.engine.AgentPerformance("GROK")
	require.NoError(t, err)
	assert.Equal(t, "GROK", perf.Agent)
	_, err = f.engine.AgentPerformance("GHOST")
	assert.ErrorIs(t, err, ErrUnknownAgent)
}

func TestInitialStateDeliveredBeforeLaterEvents(t *testing.T) {
	hub := broadcast.NewHub(16)
	f := newFixture(t, func(o *Options) { o.Publisher = hub }, participant("GROK", holdProvider("x")))

	var sub *broadcast.Subscriber
	f.engine.WithInitialState(func(doc *store.Document) {
		sub = hub.Subscribe(broadcast.NewEvent(broadcast.KindInitialState, doc))
	})
	f.engine.SampleChart(context.Background())

	var first, second broadcast.Event
	require.NoError(t, json.Unmarshal(<-sub.C, &first))
	require.NoError(t, json.Unmarshal(<-sub.C, &second))
	assert.Equal(t, broadcast.KindInitialState, first.Type)
	assert.Equal(t, broadcast.KindChartUpdate, second.Type)
	assert.Less(t, first.Seq, second.Seq)
}

func TestSetRiskTakesEffectOnNextDecision(t *testing.T) {
	f := newFixture(t, nil, participant("GROK", scriptProvider(
		decision.TradingDecision{Action: decision.ActionOpenLong, Symbol: "BTC-USD", Size: decision.Float(10), Leverage: decision.Float(8)},
	)))
	cfg := f.engine.opts.Validator.Config()
	cfg.MaxLeverage = 3
	f.engine.SetRisk(cfg, ledger.Limits{MaxPositions: 1, RecoveryFloor: 50})

	f.engine.Sweep(context.Background())

	grok := agentOf(t, f.engine.State(), "GROK")
	require.Len(t, grok.OpenPositions, 1)
	assert.Equal(t, 3.0, grok.OpenPositions[0].Leverage)
	assert.Equal(t, "OPEN_LONG BTC-USD @ 3X", grok.LastAction)
}

func TestFormatAction(t *testing.T) {
	assert.Equal(t, "HOLD @ 1X", formatAction(decision.Hold("", "")))
	assert.Equal(t, "OPEN_SHORT ETH-USD @ 2.5X", formatAction(decision.TradingDecision{Action: decision.ActionOpenShort, Symbol: "ETH-USD", Leverage: decision.Float(2.5)}))
	assert.Equal(t, "CLOSE_POSITION BTC-USD @ 1X", formatAction(decision.TradingDecision{Action: decision.ActionClose, Symbol: "BTC-USD"}))
}
