package provider

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"

	"arena/internal/decision"
	"arena/internal/market"
)

// SimulatedProvider 不访问网络，按简单的动量规则给出决策。
// 没有 API Key 的模型用它顶替，保证竞技场在离线环境也能跑起来。
type SimulatedProvider struct {
	id string

	mu  sync.Mutex
	rng *rand.Rand
}

func NewSimulatedProvider(id string, seed int64) *SimulatedProvider {
	return &SimulatedProvider{id: id, rng: rand.New(rand.NewSource(seed))}
}

func (p *SimulatedProvider) ID() string { return p.id }

func (p *SimulatedProvider) Decide(ctx context.Context, tc decision.TradingContext) (decision.TradingDecision, error) {
	if err := ctx.Err(); err != nil {
		return decision.TradingDecision{}, err
	}
	p.mu.Lock()
	roll := p.rng.Float64()
	p.mu.Unlock()

	if len(tc.OpenPositions) > 0 && (roll < 0.25 || len(tc.OpenPositions) >= tc.MaxPositions) {
		pos := tc.OpenPositions[0]
		return decision.TradingDecision{
			Action:     decision.ActionClose,
			Symbol:     pos.Symbol,
			Reasoning:  fmt.Sprintf("Taking %s %s off the table (unrealized %.2f)", pos.Side, pos.Symbol, pos.UnrealizedPnL),
			Strategy:   "SIMULATED_EXIT",
			Confidence: 55,
		}, nil
	}

	best, ok := strongestMove(tc.Market)
	if !ok || math.Abs(best.PriceChange24h) < 1 || roll > 0.8 {
		return decision.Hold("No clear momentum in the current market", "SIMULATED_PATIENCE"), nil
	}
	action := decision.ActionOpenLong
	if best.PriceChange24h < 0 {
		action = decision.ActionOpenShort
	}
	leverage := 2.0
	if tc.RecoveryMode {
		leverage = 1
	}
	return decision.TradingDecision{
		Action:     action,
		Symbol:     best.Symbol,
		Size:       decision.Float(math.Round(tc.CurrentBalance*5) / 100),
		Leverage:   decision.Float(leverage),
		Reasoning:  fmt.Sprintf("%s moved %.2f%% in 24h, following the move", best.Symbol, best.PriceChange24h),
		Strategy:   "SIMULATED_MOMENTUM",
		Confidence: math.Min(90, 50+math.Abs(best.PriceChange24h)*5),
	}, nil
}

func strongestMove(quotes []market.Quote) (market.Quote, bool) {
	var best market.Quote
	found := false
	for _, q := range quotes {
		if q.Price <= 0 {
			continue
		}
		if !found || math.Abs(q.PriceChange24h) > math.Abs(best.PriceChange24h) {
			best = q
			found = true
		}
	}
	return best, found
}
