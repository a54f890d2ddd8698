package decision

import (
	"context"
	"strings"
	"time"

	"arena/internal/ledger"
	"arena/internal/market"
)

// Action 是模型可以给出的交易指令。
type Action string

const (
	ActionOpenLong  Action = "OPEN_LONG"
	ActionOpenShort Action = "OPEN_SHORT"
	ActionClose     Action = "CLOSE_POSITION"
	ActionHold      Action = "HOLD"
)

const (
	StrategyErrorRecovery = "ERROR_RECOVERY"
	StrategyRiskLimit     = "RISK_LIMIT"
)

// ParseAction 忽略大小写与首尾空白，兼容 open-long 这类写法。
func ParseAction(s string) (Action, bool) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	norm = strings.ReplaceAll(norm, "-", "_")
	norm = strings.ReplaceAll(norm, " ", "_")
	switch Action(norm) {
	case "CLOSE", "CLOSE_LONG", "CLOSE_SHORT":
		return ActionClose, true
	case ActionOpenLong, ActionOpenShort, ActionClose, ActionHold:
		return Action(norm), true
	default:
		return "", false
	}
}

func (a Action) Opens() bool {
	return a == ActionOpenLong || a == ActionOpenShort
}

// Side 返回开仓方向，非开仓指令返回空。
func (a Action) Side() ledger.Side {
	switch a {
	case ActionOpenLong:
		return ledger.SideLong
	case ActionOpenShort:
		return ledger.SideShort
	default:
		return ""
	}
}

// TradingDecision 是一次决策的结构化结果。可选数值用指针区分“未给出”和 0。
type TradingDecision struct {
	Action     Action   `json:"action"`
	Symbol     string   `json:"symbol,omitempty"`
	Size       *float64 `json:"size,omitempty"`
	Leverage   *float64 `json:"leverage,omitempty"`
	StopLoss   *float64 `json:"stopLoss,omitempty"`
	TakeProfit *float64 `json:"takeProfit,omitempty"`
	Reasoning  string   `json:"reasoning"`
	Confidence float64  `json:"confidence"`
	Strategy   string   `json:"strategy"`
}

// Float 取地址的小工具。
func Float(v float64) *float64 {
	return &v
}

func Hold(reasoning, strategy string) TradingDecision {
	return TradingDecision{Action: ActionHold, Reasoning: reasoning, Strategy: strategy}
}

// SafeHold 是所有失败路径统一返回的兜底决策。
func SafeHold(detail string) TradingDecision {
	return Hold(detail, StrategyErrorRecovery)
}

func (d TradingDecision) IsSafeHold() bool {
	return d.Action == ActionHold && d.Strategy == StrategyErrorRecovery
}

func (d TradingDecision) Clone() TradingDecision {
	cp := d
	cp.Size = clonePtr(d.Size)
	cp.Leverage = clonePtr(d.Leverage)
	cp.StopLoss = clonePtr(d.StopLoss)
	cp.TakeProfit = clonePtr(d.TakeProfit)
	return cp
}

func clonePtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// History 是提供给模型的累计表现。
type History struct {
	TotalPnL    float64 `json:"totalPnl"`
	WinRate     float64 `json:"winRate"`
	TotalTrades int     `json:"totalTrades"`
}

// TradingContext 是一次决策的输入快照，构造后不再与账本共享内存。
type TradingContext struct {
	Agent          string            `json:"agent"`
	Strategy       string            `json:"strategy"`
	CurrentBalance float64           `json:"currentBalance"`
	OpenPositions  []ledger.Position `json:"openPositions"`
	Market         []market.Quote    `json:"marketData"`
	History        History           `json:"tradingHistory"`
	RecoveryMode   bool              `json:"recoveryMode"`
	MaxPositions   int               `json:"maxPositions"`
	Timestamp      time.Time         `json:"timestamp"`
}

// NewContext 从账本拷贝构造决策上下文。
func NewContext(agent *ledger.Agent, board market.Board, now time.Time) TradingContext {
	cp := agent.Clone()
	return TradingContext{
		Agent:          cp.Name,
		Strategy:       cp.Strategy,
		CurrentBalance: cp.CurrentBalance,
		OpenPositions:  cp.OpenPositions,
		Market:         board.Quotes(),
		History: History{
			TotalPnL:    cp.TotalPnL,
			WinRate:     cp.WinRate,
			TotalTrades: cp.TotalTrades,
		},
		RecoveryMode: cp.IsInRecoveryMode(),
		MaxPositions: cp.MaxPositions(),
		Timestamp:    now,
	}
}

// Provider 为一个 agent 产出交易决策。
type Provider interface {
	ID() string
	Decide(ctx context.Context, tc TradingContext) (TradingDecision, error)
}

// JournalEntry 是一次模型调用的审计记录。
type JournalEntry struct {
	Agent      string
	Provider   string
	Action     Action
	Symbol     string
	Reasoning  string
	Strategy   string
	Confidence float64
	RawOutput  string
	Error      string
	Latency    time.Duration
	CreatedAt  time.Time
}

// Journal 持久化模型调用记录，写入失败不影响决策。
type Journal interface {
	Record(ctx context.Context, e JournalEntry) error
}
