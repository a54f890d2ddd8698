package market

import (
	"sync"

	"github.com/markcheno/go-talib"
)

const (
	rsiPeriod = 14
	emaPeriod = 20
)

// History 按 symbol 保存最近的收盘价，用于计算 RSI/EMA。
type History struct {
	mu     sync.Mutex
	max    int
	closes map[string][]float64
}

func NewHistory(max int) *History {
	if max < emaPeriod+1 {
		max = emaPeriod + 1
	}
	return &History{max: max, closes: make(map[string][]float64)}
}

func (h *History) Append(sym string, price float64) {
	if price <= 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	series := append(h.closes[sym], price)
	if len(series) > h.max {
		series = series[len(series)-h.max:]
	}
	h.closes[sym] = series
}

func (h *History) Closes(sym string) []float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]float64(nil), h.closes[sym]...)
}

// Enrich 先记录报价，再在样本足够时补充指标。
func (h *History) Enrich(quotes []Quote) []Quote {
	out := make([]Quote, len(quotes))
	for i, q := range quotes {
		h.Append(q.Symbol, q.Price)
		closes := h.Closes(q.Symbol)
		if len(closes) > rsiPeriod {
			if v, ok := last(talib.Rsi(closes, rsiPeriod)); ok {
				q.RSI14 = &v
			}
		}
		if len(closes) >= emaPeriod {
			if v, ok := last(talib.Ema(closes, emaPeriod)); ok {
				q.EMA20 = &v
			}
		}
		out[i] = q
	}
	return out
}

func last(series []float64) (float64, bool) {
	if len(series) == 0 {
		return 0, false
	}
	v := series[len(series)-1]
	return v, v != 0
}
