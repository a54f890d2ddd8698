package ledger

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrPositionLimit    = errors.New("maximum open positions reached")
	ErrPositionNotFound = errors.New("position not found")
)

const recentTradeCount = 10

// Agent 是单个参赛模型的账本。所有修改都由引擎在持锁状态下完成。
type Agent struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Provider       string     `json:"provider"`
	Color          string     `json:"color"`
	Strategy       string     `json:"strategy"`
	InitialBalance float64    `json:"initialBalance"`
	CurrentBalance float64    `json:"currentBalance"`
	TotalPnL       float64    `json:"totalPnl"`
	TotalTrades    int        `json:"totalTrades"`
	WinningTrades  int        `json:"winningTrades"`
	WinRate        float64    `json:"winRate"`
	Status         Status     `json:"status"`
	LastAction     string     `json:"lastAction"`
	OpenPositions  []Position `json:"openPositions"`
	TradeHistory   []Trade    `json:"tradeHistory"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`

	limits Limits
}

// NewAgent 按 spec 创建一个全新账本，余额等于初始资金。
func NewAgent(spec Spec, limits Limits, now time.Time) *Agent {
	return &Agent{
		ID:             agentID(spec.Name),
		Name:           spec.Name,
		Provider:       spec.Provider,
		Color:          spec.Color,
		Strategy:       spec.Strategy,
		InitialBalance: spec.InitialBalance,
		CurrentBalance: spec.InitialBalance,
		Status:         StatusWaiting,
		OpenPositions:  []Position{},
		TradeHistory:   []Trade{},
		CreatedAt:      now,
		UpdatedAt:      now,
		limits:         limits,
	}
}

func agentID(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// SetLimits 在从快照恢复后重新挂载约束。
func (a *Agent) SetLimits(l Limits) {
	a.limits = l
}

func (a *Agent) Limits() Limits {
	return a.limits
}

func (a *Agent) Balance() float64 {
	return a.CurrentBalance
}

func (a *Agent) PositionCount() int {
	return len(a.OpenPositions)
}

func (a *Agent) MaxPositions() int {
	return a.limits.MaxPositions
}

func (a *Agent) CanOpenPosition() bool {
	return a.limits.MaxPositions <= 0 || len(a.OpenPositions) < a.limits.MaxPositions
}

// IsInRecoveryMode 余额跌破恢复线时返回 true。
func (a *Agent) IsInRecoveryMode() bool {
	return a.CurrentBalance < a.limits.RecoveryFloor
}

func (a *Agent) OpenPosition(p Position) error {
	if !a.CanOpenPosition() {
		return fmt.Errorf("%s: %w (%d/%d)", a.Name, ErrPositionLimit, len(a.OpenPositions), a.limits.MaxPositions)
	}
	a.OpenPositions = append(a.OpenPositions, p)
	return nil
}

// ClosePosition 移除并返回指定持仓。
func (a *Agent) ClosePosition(id string) (Position, error) {
	for i, p := range a.OpenPositions {
		if p.ID != id {
			continue
		}
		a.OpenPositions = append(a.OpenPositions[:i:i], a.OpenPositions[i+1:]...)
		return p, nil
	}
	return Position{}, fmt.Errorf("%s: %w: %s", a.Name, ErrPositionNotFound, id)
}

// OldestPosition 返回最早开的仓位。
func (a *Agent) OldestPosition() (Position, bool) {
	if len(a.OpenPositions) == 0 {
		return Position{}, false
	}
	return a.OpenPositions[0], true
}

// ApplyRealizedTrade 记入一笔已实现成交，并重新计算累计统计。
func (a *Agent) ApplyRealizedTrade(t Trade) {
	a.TradeHistory = append(a.TradeHistory, t)
	a.TotalTrades++
	if t.PnL > 0 {
		a.WinningTrades++
	}
	a.CurrentBalance += t.PnL
	a.TotalPnL = a.CurrentBalance - a.InitialBalance
	a.WinRate = 0
	if a.TotalTrades > 0 {
		a.WinRate = float64(a.WinningTrades) / float64(a.TotalTrades) * 100
	}
	a.UpdatedAt = t.ClosedAt
}

// RefreshValuations 用最新报价更新持仓的当前价与浮动盈亏，不影响已实现余额。
func (a *Agent) RefreshValuations(price func(symbol string) (float64, bool)) {
	for i := range a.OpenPositions {
		p := &a.OpenPositions[i]
		px, ok := price(p.Symbol)
		if !ok || px <= 0 {
			continue
		}
		p.CurrentPrice = px
		p.UnrealizedPnL = PnL(p.Side, p.EntryPrice, px, p.Size, p.Leverage)
	}
}

func (a *Agent) SetStatus(s Status, now time.Time) {
	a.Status = s
	a.UpdatedAt = now
}

func (a *Agent) SetLastAction(action string) {
	a.LastAction = action
}

// Clone 深拷贝账本，快照与推送都基于拷贝，避免与引擎共享切片。
func (a *Agent) Clone() *Agent {
	if a == nil {
		return nil
	}
	cp := *a
	cp.OpenPositions = make([]Position, len(a.OpenPositions))
	for i, p := range a.OpenPositions {
		if p.TakeProfit != nil {
			tp := *p.TakeProfit
			p.TakeProfit = &tp
		}
		cp.OpenPositions[i] = p
	}
	cp.TradeHistory = append(make([]Trade, 0, len(a.TradeHistory)), a.TradeHistory...)
	return &cp
}

func (a *Agent) View() View {
	cp := a.Clone()
	recent := cp.TradeHistory
	if len(recent) > recentTradeCount {
		recent = recent[len(recent)-recentTradeCount:]
	}
	return View{
		ID:             cp.ID,
		Name:           cp.Name,
		Provider:       cp.Provider,
		Color:          cp.Color,
		Strategy:       cp.Strategy,
		Balance:        cp.CurrentBalance,
		InitialBalance: cp.InitialBalance,
		TotalPnL:       cp.TotalPnL,
		WinRate:        cp.WinRate,
		TotalTrades:    cp.TotalTrades,
		WinningTrades:  cp.WinningTrades,
		Status:         cp.Status,
		LastAction:     cp.LastAction,
		OpenPositions:  cp.OpenPositions,
		RecentTrades:   recent,
		RecoveryMode:   cp.IsInRecoveryMode(),
	}
}
