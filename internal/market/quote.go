package market

import (
	"context"
	"sort"
)

// Quote 是某一时刻的行情快照。RSI14/EMA20 在历史样本不足时为空。
type Quote struct {
	Symbol         string   `json:"symbol"`
	Price          float64  `json:"price"`
	Volume24h      float64  `json:"volume24h"`
	PriceChange24h float64  `json:"priceChange24h"`
	High24h        float64  `json:"high24h"`
	Low24h         float64  `json:"low24h"`
	RSI14          *float64 `json:"rsi14,omitempty"`
	EMA20          *float64 `json:"ema20,omitempty"`
	Timestamp      int64    `json:"timestamp"`
}

// Source 提供批量报价。
type Source interface {
	Name() string
	Quotes(ctx context.Context, symbols []string) ([]Quote, error)
}

// Board 是一次扫描使用的报价集合，扫描期间所有 agent 共享同一份。
type Board struct {
	quotes map[string]Quote
	order  []string
}

func NewBoard(quotes []Quote) Board {
	b := Board{quotes: make(map[string]Quote, len(quotes))}
	for _, q := range quotes {
		if q.Symbol == "" {
			continue
		}
		if _, ok := b.quotes[q.Symbol]; !ok {
			b.order = append(b.order, q.Symbol)
		}
		b.quotes[q.Symbol] = q
	}
	return b
}

// Price 返回最新成交价；缺失或非正价格视为无报价。
func (b Board) Price(symbol string) (float64, bool) {
	q, ok := b.quotes[symbol]
	if !ok || q.Price <= 0 {
		return 0, false
	}
	return q.Price, true
}

func (b Board) Quote(symbol string) (Quote, bool) {
	q, ok := b.quotes[symbol]
	return q, ok
}

// Quotes 按首次出现顺序返回报价拷贝。
func (b Board) Quotes() []Quote {
	out := make([]Quote, 0, len(b.order))
	for _, sym := range b.order {
		out = append(out, b.quotes[sym])
	}
	return out
}

func (b Board) Symbols() []string {
	out := append([]string(nil), b.order...)
	sort.Strings(out)
	return out
}

func (b Board) Len() int {
	return len(b.quotes)
}
