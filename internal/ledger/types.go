package ledger

import "time"

// Side 持仓方向。
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Status 表示 agent 当前所处的决策阶段。
type Status string

const (
	StatusAnalyzing Status = "analyzing"
	StatusTrading   Status = "trading"
	StatusWaiting   Status = "waiting"
	StatusError     Status = "error"
)

// Position 是一笔未平仓的杠杆头寸。Size 为保证金（USD），名义价值为 Size*Leverage。
type Position struct {
	ID            string    `json:"id"`
	Symbol        string    `json:"symbol"`
	Side          Side      `json:"side"`
	EntryPrice    float64   `json:"entryPrice"`
	CurrentPrice  float64   `json:"currentPrice"`
	Size          float64   `json:"size"`
	Leverage      float64   `json:"leverage"`
	StopLoss      float64   `json:"stopLoss"`
	TakeProfit    *float64  `json:"takeProfit,omitempty"`
	UnrealizedPnL float64   `json:"unrealizedPnl"`
	OpenedAt      time.Time `json:"openedAt"`
}

// Trade 是一笔已实现的平仓记录。
type Trade struct {
	ID         string    `json:"id"`
	Symbol     string    `json:"symbol"`
	Side       Side      `json:"side"`
	EntryPrice float64   `json:"entryPrice"`
	ExitPrice  float64   `json:"exitPrice"`
	Size       float64   `json:"size"`
	Leverage   float64   `json:"leverage"`
	PnL        float64   `json:"pnl"`
	PnLPercent float64   `json:"pnlPercent"`
	Reasoning  string    `json:"reasoning"`
	Strategy   string    `json:"strategy"`
	// Confidence 0-100，取自平仓决策。
	Confidence float64   `json:"confidence"`
	OpenedAt   time.Time `json:"openedAt"`
	ClosedAt   time.Time `json:"closedAt"`
}

// Spec 描述 agent 的静态身份，重置时据此重建账本。
type Spec struct {
	Name           string
	Provider       string
	Strategy       string
	Color          string
	InitialBalance float64
}

// Limits 为账本层面的硬约束。
type Limits struct {
	MaxPositions  int
	RecoveryFloor float64
}

// View 是推送给前端的精简视图，只带最近 10 笔成交。
type View struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Provider       string     `json:"provider"`
	Color          string     `json:"color"`
	Strategy       string     `json:"strategy"`
	Balance        float64    `json:"balance"`
	InitialBalance float64    `json:"initialBalance"`
	TotalPnL       float64    `json:"totalPnl"`
	WinRate        float64    `json:"winRate"`
	TotalTrades    int        `json:"totalTrades"`
	WinningTrades  int        `json:"winningTrades"`
	Status         Status     `json:"status"`
	LastAction     string     `json:"lastAction"`
	OpenPositions  []Position `json:"openPositions"`
	RecentTrades   []Trade    `json:"recentTrades"`
	RecoveryMode   bool       `json:"recoveryMode"`
}
