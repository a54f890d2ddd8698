package ledger

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// PnL 计算按名义价值（size*leverage）结算的盈亏。
//
//	LONG:  (exit-entry)/entry * size * leverage
//	SHORT: (entry-exit)/entry * size * leverage
func PnL(side Side, entry, exit, size, leverage float64) float64 {
	if entry <= 0 {
		return 0
	}
	e := decimal.NewFromFloat(entry)
	x := decimal.NewFromFloat(exit)
	diff := x.Sub(e)
	if side == SideShort {
		diff = e.Sub(x)
	}
	notional := decimal.NewFromFloat(size).Mul(decimal.NewFromFloat(leverage))
	v, _ := diff.Div(e).Mul(notional).Round(8).Float64()
	return v
}

// PnLPercent 返回盈亏占名义价值的百分比。
func PnLPercent(pnl, size, leverage float64) float64 {
	notional := decimal.NewFromFloat(size).Mul(decimal.NewFromFloat(leverage))
	if notional.IsZero() {
		return 0
	}
	v, _ := decimal.NewFromFloat(pnl).Div(notional).Mul(hundred).Round(8).Float64()
	return v
}
