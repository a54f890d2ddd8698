package market

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

var defaultBasePrices = map[string]float64{
	"BTC-USD":  65000,
	"ETH-USD":  3200,
	"SOL-USD":  150,
	"ARB-USD":  1.1,
	"AVAX-USD": 35,
}

type walkState struct {
	price  float64
	open   float64
	high   float64
	low    float64
	volume float64
}

// SimulatedSource 用带种子的随机游走生成行情，相同种子产生相同序列。
type SimulatedSource struct {
	mu         sync.Mutex
	rng        *rand.Rand
	volatility float64
	state      map[string]*walkState
	nowFn      func() time.Time
}

func NewSimulatedSource(seed int64, volatility float64) *SimulatedSource {
	if volatility <= 0 {
		volatility = 0.01
	}
	return &SimulatedSource{
		rng:        rand.New(rand.NewSource(seed)),
		volatility: volatility,
		state:      make(map[string]*walkState),
		nowFn:      time.Now,
	}
}

func (s *SimulatedSource) Name() string { return "simulated" }

func (s *SimulatedSource) Quotes(ctx context.Context, symbols []string) ([]Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nowFn().UnixMilli()
	out := make([]Quote, 0, len(symbols))
	for _, sym := range symbols {
		st := s.stateFor(sym)
		step := (s.rng.Float64()*2 - 1) * s.volatility
		st.price *= 1 + step
		if st.price > st.high {
			st.high = st.price
		}
		if st.price < st.low {
			st.low = st.price
		}
		st.volume += st.price * (50 + s.rng.Float64()*450)
		out = append(out, Quote{
			Symbol:         sym,
			Price:          st.price,
			Volume24h:      st.volume,
			PriceChange24h: (st.price - st.open) / st.open * 100,
			High24h:        st.high,
			Low24h:         st.low,
			Timestamp:      now,
		})
	}
	return out, nil
}

func (s *SimulatedSource) stateFor(sym string) *walkState {
	if st, ok := s.state[sym]; ok {
		return st
	}
	base, ok := defaultBasePrices[sym]
	if !ok {
		base = 10 + s.rng.Float64()*990
	}
	st := &walkState{price: base, open: base, high: base, low: base, volume: base * 1e4}
	s.state[sym] = st
	return st
}
