package executor

import (
	"errors"
	"fmt"
	"time"

	"arena/internal/decision"
	"arena/internal/ledger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrNoQuote = errors.New("no market quote")

type QuoteLookup interface {
	Price(symbol string) (float64, bool)
}

type Options struct {
	// DefaultSizePercent 决策未给出 size 时按余额的百分比开仓。
	DefaultSizePercent float64
	Now                func() time.Time
	NewID              func() string
}

// Executor 把已校验的决策落到账本上。
type Executor struct {
	defaultSizePct decimal.Decimal
	nowFn          func() time.Time
	idFn           func() string
}

func New(opts Options) *Executor {
	if opts.DefaultSizePercent <= 0 {
		opts.DefaultSizePercent = 5
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Executor{
		defaultSizePct: decimal.NewFromFloat(opts.DefaultSizePercent),
		nowFn:          opts.Now,
		idFn:           opts.NewID,
	}
}

// Execute 执行开仓或平仓。开仓返回 nil trade；平仓返回记入账本的成交；
// 没有持仓可平时返回 (nil, nil)。
func (e *Executor) Execute(d decision.TradingDecision, agent *ledger.Agent, quotes QuoteLookup) (*ledger.Trade, error) {
	switch {
	case d.Action.Opens():
		return nil, e.open(d, agent, quotes)
	case d.Action == decision.ActionClose:
		return e.closeOldest(d, agent, quotes)
	default:
		return nil, nil
	}
}

func (e *Executor) open(d decision.TradingDecision, agent *ledger.Agent, quotes QuoteLookup) error {
	price, ok := quotes.Price(d.Symbol)
	if !ok {
		return fmt.Errorf("open %s: %w", d.Symbol, ErrNoQuote)
	}
	size := e.defaultSize(agent.Balance())
	if d.Size != nil && *d.Size > 0 {
		size = *d.Size
	}
	leverage := 1.0
	if d.Leverage != nil && *d.Leverage > 0 {
		leverage = *d.Leverage
	}
	stopLoss := 0.0
	if d.StopLoss != nil {
		stopLoss = *d.StopLoss
	}
	var takeProfit *float64
	if d.TakeProfit != nil {
		tp := *d.TakeProfit
		takeProfit = &tp
	}
	pos := ledger.Position{
		ID:           e.idFn(),
		Symbol:       d.Symbol,
		Side:         d.Action.Side(),
		EntryPrice:   price,
		CurrentPrice: price,
		Size:         size,
		Leverage:     leverage,
		StopLoss:     stopLoss,
		TakeProfit:   takeProfit,
		OpenedAt:     e.nowFn(),
	}
	return agent.OpenPosition(pos)
}

func (e *Executor) defaultSize(balance float64) float64 {
	v, _ := decimal.NewFromFloat(balance).Mul(e.defaultSizePct).Div(decimal.NewFromInt(100)).Round(8).Float64()
	return v
}

// closeOldest 平掉最早的仓位。按持仓自身的 symbol 取价，取不到时用最近一次估值价。
func (e *Executor) closeOldest(d decision.TradingDecision, agent *ledger.Agent, quotes QuoteLookup) (*ledger.Trade, error) {
	pos, ok := agent.OldestPosition()
	if !ok {
		return nil, nil
	}
	exit, ok := quotes.Price(pos.Symbol)
	if !ok {
		exit = pos.CurrentPrice
	}
	if exit <= 0 {
		return nil, fmt.Errorf("close %s: %w", pos.Symbol, ErrNoQuote)
	}
	if _, err := agent.ClosePosition(pos.ID); err != nil {
		return nil, err
	}
	pnl := ledger.PnL(pos.Side, pos.EntryPrice, exit, pos.Size, pos.Leverage)
	trade := ledger.Trade{
		ID:         e.idFn(),
		Symbol:     pos.Symbol,
		Side:       pos.Side,
		EntryPrice: pos.EntryPrice,
		ExitPrice:  exit,
		Size:       pos.Size,
		Leverage:   pos.Leverage,
		PnL:        pnl,
		PnLPercent: ledger.PnLPercent(pnl, pos.Size, pos.Leverage),
		Reasoning:  d.Reasoning,
		Strategy:   d.Strategy,
		Confidence: d.Confidence,
		OpenedAt:   pos.OpenedAt,
		ClosedAt:   e.nowFn(),
	}
	agent.ApplyRealizedTrade(trade)
	return &trade, nil
}
