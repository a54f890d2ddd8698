package risk

import (
	"fmt"
	"math"
	"sync/atomic"

	"arena/internal/decision"
)

// Config 是风控规则参数，可在运行时整体替换。
type Config struct {
	MaxLeverage            float64
	MaxRiskPerTradePercent float64
	RecoveryMaxLeverage    float64
	RecoverySizeFactor     float64
	DefaultStopLossPercent float64
}

func DefaultConfig() Config {
	return Config{
		MaxLeverage:            10,
		MaxRiskPerTradePercent: 10,
		RecoveryMaxLeverage:    2,
		RecoverySizeFactor:     0.5,
		DefaultStopLossPercent: 5,
	}
}

// Account 是校验所需的账本视图。
type Account interface {
	CanOpenPosition() bool
	Balance() float64
	IsInRecoveryMode() bool
	PositionCount() int
	MaxPositions() int
}

type QuoteLookup interface {
	Price(symbol string) (float64, bool)
}

// Result 是校验后的决策与逐条调整说明。
type Result struct {
	Decision    decision.TradingDecision
	Adjustments []string
}

func (r Result) Adjusted() bool {
	return len(r.Adjustments) > 0
}

// Validator 按固定顺序执行规则，后面的规则只会收紧，不会放宽。
type Validator struct {
	cfg atomic.Pointer[Config]
}

func NewValidator(cfg Config) *Validator {
	v := &Validator{}
	v.SetConfig(cfg)
	return v
}

func (v *Validator) SetConfig(cfg Config) {
	v.cfg.Store(&cfg)
}

func (v *Validator) Config() Config {
	return *v.cfg.Load()
}

func (v *Validator) Validate(d decision.TradingDecision, acct Account, quotes QuoteLookup) decision.TradingDecision {
	return v.Check(d, acct, quotes).Decision
}

// Check 返回规则处理后的决策拷贝，输入不被修改。
func (v *Validator) Check(in decision.TradingDecision, acct Account, quotes QuoteLookup) Result {
	cfg := v.Config()
	d := in.Clone()
	res := Result{}
	note := func(format string, args ...any) {
		res.Adjustments = append(res.Adjustments, fmt.Sprintf(format, args...))
	}

	// 1. 非开仓指令原样通过
	if !d.Action.Opens() {
		res.Decision = d
		return res
	}

	// 2. 持仓数量上限
	if !acct.CanOpenPosition() {
		note("position cap %d/%d", acct.PositionCount(), acct.MaxPositions())
		res.Decision = decision.Hold(
			fmt.Sprintf("Cannot open position: maximum positions reached (%d/%d)", acct.PositionCount(), acct.MaxPositions()),
			decision.StrategyRiskLimit,
		)
		return res
	}

	price, ok := quotes.Price(d.Symbol)
	if !ok {
		note("no quote for %q", d.Symbol)
		res.Decision = decision.Hold(
			fmt.Sprintf("Cannot open position: no market quote for %q", d.Symbol),
			decision.StrategyRiskLimit,
		)
		return res
	}

	balance := acct.Balance()
	sizeCap := balance * cfg.MaxRiskPerTradePercent / 100
	recovery := acct.IsInRecoveryMode()

	// 非有限数值直接丢弃，交给后面的缺省值处理
	for _, f := range []struct {
		name string
		v    **float64
	}{{"size", &d.Size}, {"leverage", &d.Leverage}, {"stop loss", &d.StopLoss}, {"take profit", &d.TakeProfit}} {
		if *f.v != nil && !isFinite(**f.v) {
			note("%s %v dropped", f.name, **f.v)
			*f.v = nil
		}
	}

	// 3. 单笔风险上限
	if d.Size != nil && *d.Size > sizeCap {
		note("size %.4f capped to %.4f", *d.Size, sizeCap)
		d.Size = decision.Float(sizeCap)
	}
	// 4. 杠杆上限
	if d.Leverage != nil && *d.Leverage > cfg.MaxLeverage {
		note("leverage %.2f capped to %.2f", *d.Leverage, cfg.MaxLeverage)
		d.Leverage = decision.Float(cfg.MaxLeverage)
	}
	// 5. 恢复模式：杠杆不超过恢复上限，仓位不超过上限的一定比例。
	//    用比例上限而不是直接减半，重复校验时结果不变。
	if recovery {
		if d.Leverage != nil && *d.Leverage > cfg.RecoveryMaxLeverage {
			note("recovery leverage %.2f -> %.2f", *d.Leverage, cfg.RecoveryMaxLeverage)
			d.Leverage = decision.Float(cfg.RecoveryMaxLeverage)
		}
		recoveryCap := sizeCap * cfg.RecoverySizeFactor
		if d.Size != nil && *d.Size > recoveryCap {
			note("recovery size %.4f -> %.4f", *d.Size, recoveryCap)
			d.Size = decision.Float(recoveryCap)
		}
	}
	// 6. 缺省止损
	if d.StopLoss == nil || *d.StopLoss <= 0 || !isFinite(*d.StopLoss) {
		pct := cfg.DefaultStopLossPercent / 100
		sl := price * (1 - pct)
		if d.Action == decision.ActionOpenShort {
			sl = price * (1 + pct)
		}
		note("default stop loss %.6f", sl)
		d.StopLoss = decision.Float(sl)
	}

	res.Decision = d
	return res
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
