package notifier

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"arena/internal/ledger"
	"arena/internal/logger"
)

// TradeAlerts 把平仓结果和引擎事件格式化后推送出去。发送失败只记日志。
type TradeAlerts struct {
	out     TextNotifier
	timeout time.Duration
	nowFn   func() time.Time
}

func NewTradeAlerts(out TextNotifier) *TradeAlerts {
	if out == nil {
		out = Nop{}
	}
	return &TradeAlerts{out: out, timeout: 20 * time.Second, nowFn: time.Now}
}

func (a *TradeAlerts) TradeClosed(agent string, balance float64, t ledger.Trade) {
	badge := "🟢"
	if t.PnL < 0 {
		badge = "🔴"
	}
	card := AlertCard{
		Badge:  badge,
		Header: fmt.Sprintf("%s 平仓 %s %s", agent, t.Side, t.Symbol),
		Note:   t.Reasoning,
		At:     a.nowFn(),
	}
	card.Add("价格", "%.4f -> %.4f", t.EntryPrice, t.ExitPrice)
	card.Add("仓位", "%.2f x%s", t.Size, strconv.FormatFloat(t.Leverage, 'f', -1, 64))
	card.Add("盈亏", "%+.2f (%+.2f%%)", t.PnL, t.PnLPercent)
	card.Add("余额", "%.2f", balance)
	a.send(card.Markdown())
}

func (a *TradeAlerts) System(text string) {
	a.send(AlertCard{Badge: "ℹ️", Header: "AI Trading Arena", Note: text, At: a.nowFn()}.Markdown())
}

func (a *TradeAlerts) send(text string) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	if err := a.out.SendText(ctx, text); err != nil {
		logger.Warnf("notify: 推送失败: %v", err)
	}
}
