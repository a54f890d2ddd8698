package engine

import (
	"fmt"

	"arena/internal/ledger"
	"arena/internal/logger"
	"arena/internal/store"
)

// documentLocked 返回当前状态的深拷贝，需要持有 mu。
func (e *Engine) documentLocked() *store.Document {
	doc := &store.Document{
		AITraders:   make([]*ledger.Agent, 0, len(e.agents)),
		ChartData:   make([]store.ChartPoint, 0, len(e.chart)),
		Messages:    append(make([]store.Message, 0, len(e.messages)), e.messages...),
		TimeElapsed: e.elapsed,
	}
	for _, a := range e.agents {
		doc.AITraders = append(doc.AITraders, a.Clone())
	}
	for _, p := range e.chart {
		doc.ChartData = append(doc.ChartData, p.Clone())
	}
	return doc
}

// State 返回完整状态快照，调用方可以随意修改。
func (e *Engine) State() *store.Document {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.documentLocked()
}

// WithInitialState 在引擎锁内用当前快照调用 fn。
// 新订阅者在 fn 内完成订阅，之后的推送一定晚于这份快照。
func (e *Engine) WithInitialState(fn func(doc *store.Document)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.documentLocked())
}

// Restore 用持久化快照覆盖内存状态。只恢复名单中仍存在的交易员，
// 中断时处于 analyzing/trading 的状态统一退回 waiting。
func (e *Engine) Restore(doc *store.Document) {
	if doc == nil {
		return
	}
	doc = doc.Clone()
	e.mu.Lock()
	defer e.mu.Unlock()

	restored := 0
	for i, a := range e.agents {
		saved, ok := doc.Agent(a.Name)
		if !ok {
			continue
		}
		saved.SetLimits(e.opts.Limits)
		if saved.Status == ledger.StatusAnalyzing || saved.Status == ledger.StatusTrading || saved.Status == "" {
			saved.Status = ledger.StatusWaiting
		}
		if saved.OpenPositions == nil {
			saved.OpenPositions = []ledger.Position{}
		}
		if saved.TradeHistory == nil {
			saved.TradeHistory = []ledger.Trade{}
		}
		e.agents[i] = saved
		e.opts.Metrics.SetAgent(saved.Name, saved.CurrentBalance, saved.PositionCount())
		restored++
	}
	if doc.ChartData != nil {
		e.chart = doc.ChartData
		if over := len(e.chart) - e.opts.ChartMaxPoints; over > 0 {
			e.chart = e.chart[over:]
		}
	}
	if doc.Messages != nil {
		e.messages = doc.Messages
		if len(e.messages) > e.opts.MessageHistory {
			e.messages = e.messages[:e.opts.MessageHistory]
		}
	}
	e.elapsed = doc.TimeElapsed
	logger.Infof("已恢复快照 agents=%d/%d chart=%d messages=%d elapsed=%ds",
		restored, len(e.agents), len(e.chart), len(e.messages), e.elapsed)
}

// AgentPerformance 返回单个交易员的收益统计。
func (e *Engine) AgentPerformance(name string) (ledger.Performance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	a := e.agentLocked(name)
	if a == nil {
		return ledger.Performance{}, fmt.Errorf("%w: %s", ErrUnknownAgent, name)
	}
	return a.Performance(), nil
}

// Agents 返回所有交易员的推送视图。
func (e *Engine) Agents() []ledger.View {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]ledger.View, 0, len(e.agents))
	for _, a := range e.agents {
		out = append(out, a.View())
	}
	return out
}
