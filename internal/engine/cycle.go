package engine

import (
	"context"
	"fmt"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"arena/internal/broadcast"
	"arena/internal/decision"
	"arena/internal/ledger"
	"arena/internal/logger"
	"arena/internal/market"
	"arena/internal/store"
)

// Sweep 取一份行情快照，按顺序让每个交易员完成一次决策周期。
func (e *Engine) Sweep(ctx context.Context) {
	started := time.Now()
	board, err := e.opts.Feed.Snapshot(ctx, e.opts.Symbols)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		logger.Errorf("sweep: 获取行情失败: %v", err)
		e.mu.Lock()
		e.opts.Publisher.Publish(broadcast.Error("", fmt.Sprintf("market data unavailable: %v", err)))
		e.mu.Unlock()
		return
	}

	names := e.refresh(board)
	for _, name := range names {
		if ctx.Err() != nil {
			return
		}
		e.runCycle(ctx, name, board)
	}
	e.opts.Metrics.ObserveSweep(time.Since(started))
	logger.Debugf("sweep 完成 agents=%d quotes=%d cost=%s", len(names), board.Len(), time.Since(started))
}

// refresh 用本轮行情更新所有持仓估值，返回本轮参与的交易员。
func (e *Engine) refresh(board market.Board) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	names := make([]string, 0, len(e.agents))
	for _, a := range e.agents {
		a.RefreshValuations(board.Price)
		names = append(names, a.Name)
	}
	return names
}

func (e *Engine) agentLocked(name string) *ledger.Agent {
	for _, a := range e.agents {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// runCycle 完成一个交易员的一次决策。模型调用在锁外进行，
// 其余状态变更与推送都在锁内，panic 在这里收敛为该交易员的 error 状态。
func (e *Engine) runCycle(ctx context.Context, name string, board market.Board) {
	provider := e.providers[name]
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("agent %s cycle panic: %v\n%s", name, r, debug.Stack())
			e.failAgent(name, nil, fmt.Errorf("%v", r))
		}
	}()

	agent, tc := e.beginCycle(name, board)
	if agent == nil {
		return
	}

	started := time.Now()
	d, err := provider.Decide(ctx, tc)
	latency := time.Since(started)
	if err != nil {
		if ctx.Err() != nil {
			e.abandonCycle(agent)
			return
		}
		logger.Errorf("agent %s decide: %v", name, err)
		e.failAgent(name, agent, err)
		return
	}

	closed, ok := e.commitCycle(agent, d, board, latency)
	if ok && closed != nil && e.opts.Notifier != nil {
		go e.opts.Notifier.TradeClosed(name, closed.balance, closed.trade)
	}
}

func (e *Engine) beginCycle(name string, board market.Board) (*ledger.Agent, decision.TradingContext) {
	e.mu.Lock()
	defer e.mu.Unlock()
	agent := e.agentLocked(name)
	if agent == nil {
		return nil, decision.TradingContext{}
	}
	now := e.opts.Now()
	agent.SetStatus(ledger.StatusAnalyzing, now)
	tc := decision.NewContext(agent, board, now)
	e.opts.Publisher.Publish(broadcast.NewEvent(broadcast.KindTraderUpdate, agent.View()))
	return agent, tc
}

// abandonCycle 在 Stop 取消了等待中的模型调用时把状态退回 waiting。
func (e *Engine) abandonCycle(agent *ledger.Agent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.agentLocked(agent.Name) != agent {
		return
	}
	agent.SetStatus(ledger.StatusWaiting, e.opts.Now())
	e.opts.Publisher.Publish(broadcast.NewEvent(broadcast.KindTraderUpdate, agent.View()))
}

type closedTrade struct {
	balance float64
	trade   ledger.Trade
}

// commitCycle 校验并执行决策。Reset 在模型调用期间替换了账本时，本轮结果直接丢弃。
func (e *Engine) commitCycle(agent *ledger.Agent, d decision.TradingDecision, board market.Board, latency time.Duration) (*closedTrade, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.agentLocked(agent.Name) != agent {
		logger.Warnf("agent %s 在决策期间被重置，丢弃本轮结果", agent.Name)
		return nil, false
	}
	now := e.opts.Now()

	res := e.opts.Validator.Check(d, agent, board)
	final := res.Decision
	if res.Adjusted() {
		logger.Infof("agent %s 风控调整: %s", agent.Name, strings.Join(res.Adjustments, "; "))
	}

	var closed *closedTrade
	if final.Action != decision.ActionHold {
		agent.SetStatus(ledger.StatusTrading, now)
		trade, err := e.opts.Executor.Execute(final, agent, board)
		if err != nil {
			e.failAgentLocked(agent, err)
			return nil, false
		}
		if trade != nil {
			closed = &closedTrade{balance: agent.CurrentBalance, trade: *trade}
			e.opts.Metrics.ObserveTrade(agent.Name, trade.PnL)
			logger.Infof("agent %s 平仓 %s %s pnl=%.2f balance=%.2f", agent.Name, trade.Symbol, trade.Side, trade.PnL, agent.CurrentBalance)
		}
	} else {
		agent.SetStatus(ledger.StatusWaiting, now)
	}
	agent.SetLastAction(formatAction(final))
	agent.UpdatedAt = now

	e.pushMessageLocked(store.Message{
		Trader:    agent.Name,
		Message:   final.Reasoning,
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	})
	e.opts.Publisher.Publish(broadcast.NewEvent(broadcast.KindTraderUpdate, agent.View()))
	e.opts.Publisher.Publish(broadcast.Event{
		Type:      broadcast.KindTradeMessage,
		Trader:    agent.Name,
		Message:   final.Reasoning,
		Data:      map[string]string{"action": string(final.Action), "symbol": final.Symbol},
		Timestamp: now.UnixMilli(),
	})
	e.opts.Metrics.ObserveDecision(agent.Name, string(final.Action), latency, res.Adjusted())
	e.opts.Metrics.SetAgent(agent.Name, agent.CurrentBalance, agent.PositionCount())
	e.persistLocked()
	return closed, true
}

func (e *Engine) pushMessageLocked(m store.Message) {
	msgs := make([]store.Message, 0, min(len(e.messages)+1, e.opts.MessageHistory))
	msgs = append(msgs, m)
	for _, old := range e.messages {
		if len(msgs) >= e.opts.MessageHistory {
			break
		}
		msgs = append(msgs, old)
	}
	e.messages = msgs
}

// failAgent 把交易员置为 error，账本不做其它修改。agent 为 nil 时按名称查找。
func (e *Engine) failAgent(name string, agent *ledger.Agent, cause error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	current := e.agentLocked(name)
	if current == nil || (agent != nil && current != agent) {
		return
	}
	e.failAgentLocked(current, cause)
}

func (e *Engine) failAgentLocked(agent *ledger.Agent, cause error) {
	msg := cause.Error()
	agent.SetStatus(ledger.StatusError, e.opts.Now())
	agent.SetLastAction("Error: " + msg)
	e.opts.Publisher.Publish(broadcast.NewEvent(broadcast.KindTraderUpdate, agent.View()))
	e.opts.Publisher.Publish(broadcast.Error(agent.Name, msg))
	e.opts.Metrics.AgentError(agent.Name)
	e.persistLocked()
}

// formatAction 生成 "OPEN_LONG BTC-USD @ 10X" 形式的摘要，HOLD 为 "HOLD @ 1X"。
func formatAction(d decision.TradingDecision) string {
	lev := 1.0
	if d.Leverage != nil && *d.Leverage > 0 {
		lev = *d.Leverage
	}
	parts := []string{string(d.Action)}
	if d.Symbol != "" {
		parts = append(parts, d.Symbol)
	}
	parts = append(parts, "@", strconv.FormatFloat(lev, 'f', -1, 64)+"X")
	return strings.Join(parts, " ")
}
