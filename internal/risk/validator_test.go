package risk

import (
	"fmt"
	"math"
	"testing"

	"arena/internal/decision"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAccount struct {
	balance   float64
	positions int
	max       int
	recovery  bool
}

func (s stubAccount) CanOpenPosition() bool  { return s.positions < s.max }
func (s stubAccount) Balance() float64       { return s.balance }
func (s stubAccount) IsInRecoveryMode() bool { return s.recovery }
func (s stubAccount) PositionCount() int     { return s.positions }
func (s stubAccount) MaxPositions() int      { return s.max }

type quotes map[string]float64

func (q quotes) Price(sym string) (float64, bool) {
	p, ok := q[sym]
	return p, ok
}

var board = quotes{"BTC-USD": 100, "ETH-USD": 2000}

func healthy() stubAccount {
	return stubAccount{balance: 200, max: 3}
}

func TestValidateCapsSizeLeverageAndAddsStopLoss(t *testing.T) {
	v := NewValidator(DefaultConfig())
	in := decision.TradingDecision{Action: decision.ActionOpenLong, Symbol: "BTC-USD", Size: decision.Float(500), Leverage: decision.Float(15)}

	res := v.Check(in, healthy(), board)
	out := res.Decision
	require.NotNil(t, out.Size)
	assert.Equal(t, 20.0, *out.Size)
	assert.Equal(t, 10.0, *out.Leverage)
	assert.InDelta(t, 95.0, *out.StopLoss, 1e-9)
	assert.True(t, res.Adjusted())
	assert.Len(t, res.Adjustments, 3)

	assert.Equal(t, 500.0, *in.Size, "input must not be mutated")
	assert.Nil(t, in.StopLoss)
}

func TestValidateShortStopLossAbovePrice(t *testing.T) {
	v := NewValidator(DefaultConfig())
	out := v.Validate(decision.TradingDecision{Action: decision.ActionOpenShort, Symbol: "ETH-USD"}, healthy(), board)
	assert.InDelta(t, 2100.0, *out.StopLoss, 1e-9)
	assert.Nil(t, out.Size)
}

func TestValidateKeepsExplicitStopLoss(t *testing.T) {
	v := NewValidator(DefaultConfig())
	out := v.Validate(decision.TradingDecision{Action: decision.ActionOpenLong, Symbol: "BTC-USD", StopLoss: decision.Float(90)}, healthy(), board)
	assert.Equal(t, 90.0, *out.StopLoss)
}

func TestNonOpeningDecisionsPassThrough(t *testing.T) {
	v := NewValidator(DefaultConfig())
	full := stubAccount{balance: 10, positions: 3, max: 3, recovery: true}
	for _, a := range []decision.Action{decision.ActionHold, decision.ActionClose} {
		in := decision.TradingDecision{Action: a, Symbol: "BTC-USD", Leverage: decision.Float(50), Reasoning: "r"}
		res := v.Check(in, full, board)
		assert.Equal(t, in, res.Decision)
		assert.False(t, res.Adjusted())
	}
}

func TestPositionCapDowngradesToHold(t *testing.T) {
	v := NewValidator(DefaultConfig())
	acct := stubAccount{balance: 200, positions: 3, max: 3}
	out := v.Validate(decision.TradingDecision{Action: decision.ActionOpenLong, Symbol: "BTC-USD"}, acct, board)
	assert.Equal(t, decision.ActionHold, out.Action)
	assert.Equal(t, "Cannot open position: maximum positions reached (3/3)", out.Reasoning)
	assert.Equal(t, decision.StrategyRiskLimit, out.Strategy)
}

func TestMissingQuoteDowngradesToHold(t *testing.T) {
	v := NewValidator(DefaultConfig())
	out := v.Validate(decision.TradingDecision{Action: decision.ActionOpenLong, Symbol: "DOGE-USD"}, healthy(), board)
	assert.Equal(t, decision.ActionHold, out.Action)
	assert.Contains(t, out.Reasoning, "no market quote")
}

func TestRecoveryModeTightens(t *testing.T) {
	v := NewValidator(DefaultConfig())
	acct := stubAccount{balance: 40, max: 3, recovery: true}
	for _, lev := range []float64{2.5, 5, 15, 100} {
		out := v.Validate(decision.TradingDecision{Action: decision.ActionOpenLong, Symbol: "BTC-USD", Leverage: decision.Float(lev), Size: decision.Float(100)}, acct, board)
		assert.Equal(t, 2.0, *out.Leverage, "leverage %v", lev)
		assert.InDelta(t, 2.0, *out.Size, 1e-9)
	}
	out := v.Validate(decision.TradingDecision{Action: decision.ActionOpenLong, Symbol: "BTC-USD", Leverage: decision.Float(1.5), Size: decision.Float(1)}, acct, board)
	assert.Equal(t, 1.5, *out.Leverage)
	assert.Equal(t, 1.0, *out.Size)
}

// 恢复模式按减半后的上限收紧，上限以内的小仓位保持原值。
func TestRecoveryModeUsesHalvedCap(t *testing.T) {
	v := NewValidator(DefaultConfig())
	acct := stubAccount{balance: 40, max: 3, recovery: true}
	out := v.Validate(decision.TradingDecision{Action: decision.ActionOpenLong, Symbol: "BTC-USD", Size: decision.Float(3)}, acct, board)
	assert.InDelta(t, 2.0, *out.Size, 1e-9, "cap 4 * 0.5")
	out = v.Validate(decision.TradingDecision{Action: decision.ActionOpenLong, Symbol: "BTC-USD", Size: decision.Float(1.5)}, acct, board)
	assert.InDelta(t, 1.5, *out.Size, 1e-9)
}

func TestNonFiniteValuesAreDropped(t *testing.T) {
	v := NewValidator(DefaultConfig())
	in := decision.TradingDecision{
		Action:     decision.ActionOpenLong,
		Symbol:     "BTC-USD",
		Size:       decision.Float(math.NaN()),
		Leverage:   decision.Float(math.Inf(1)),
		StopLoss:   decision.Float(math.Inf(1)),
		TakeProfit: decision.Float(math.NaN()),
	}
	res := v.Check(in, healthy(), board)
	out := res.Decision
	assert.Nil(t, out.Size)
	assert.Nil(t, out.Leverage)
	assert.Nil(t, out.TakeProfit)
	require.NotNil(t, out.StopLoss)
	assert.InDelta(t, 95.0, *out.StopLoss, 1e-9)
	assert.True(t, res.Adjusted())
	assert.True(t, math.IsInf(*in.StopLoss, 1), "input must not be mutated")
}

func TestValidateIsIdempotent(t *testing.T) {
	v := NewValidator(DefaultConfig())
	accounts := []stubAccount{
		healthy(),
		{balance: 30, max: 3, recovery: true},
		{balance: 200, positions: 3, max: 3},
	}
	decisions := []decision.TradingDecision{
		{Action: decision.ActionOpenLong, Symbol: "BTC-USD", Size: decision.Float(500), Leverage: decision.Float(15)},
		{Action: decision.ActionOpenShort, Symbol: "ETH-USD", Size: decision.Float(3), Leverage: decision.Float(3)},
		{Action: decision.ActionOpenLong, Symbol: "BTC-USD"},
		{Action: decision.ActionOpenLong, Symbol: "MISSING"},
		{Action: decision.ActionClose},
	}
	for i, acct := range accounts {
		for j, d := range decisions {
			once := v.Validate(d, acct, board)
			twice := v.Validate(once, acct, board)
			assert.Equal(t, once, twice, fmt.Sprintf("account %d decision %d", i, j))
		}
	}
}

func TestSetConfigTakesEffect(t *testing.T) {
	v := NewValidator(DefaultConfig())
	cfg := DefaultConfig()
	cfg.MaxLeverage = 3
	v.SetConfig(cfg)
	out := v.Validate(decision.TradingDecision{Action: decision.ActionOpenLong, Symbol: "BTC-USD", Leverage: decision.Float(8)}, healthy(), board)
	assert.Equal(t, 3.0, *out.Leverage)
	assert.Equal(t, 3.0, v.Config().MaxLeverage)
}
