package binance

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"arena/internal/market"
	symbolpkg "arena/internal/pkg/symbol"

	"github.com/adshao/go-binance/v2/futures"
)

const (
	defaultFuturesURL = "https://fapi.binance.com"
	defaultTimeout    = 15 * time.Second
)

// Config 为空时连接 USDT 永续主网。
type Config struct {
	RESTBaseURL string
	HTTPTimeout time.Duration
}

// Source 基于 go-binance SDK 的 24h ticker 实现 market.Source。
type Source struct {
	cfg    Config
	client *futures.Client
}

func New(cfg Config) *Source {
	if cfg.RESTBaseURL = strings.TrimSpace(cfg.RESTBaseURL); cfg.RESTBaseURL == "" {
		cfg.RESTBaseURL = defaultFuturesURL
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = defaultTimeout
	}
	// 行情接口无需签名
	client := futures.NewClient("", "")
	client.BaseURL = cfg.RESTBaseURL
	client.HTTPClient = &http.Client{Timeout: cfg.HTTPTimeout}
	return &Source{cfg: cfg, client: client}
}

func (s *Source) Name() string { return "binance" }

// Quotes 一次拉取全部 24h ticker，再按请求的 symbol 过滤并换回竞技场代码。
func (s *Source) Quotes(ctx context.Context, symbols []string) ([]market.Quote, error) {
	mapping := symbolpkg.BinanceMapping(symbols)
	if len(mapping) == 0 {
		return nil, fmt.Errorf("no tradable symbols in %v", symbols)
	}
	stats, err := s.client.NewListPriceChangeStatsService().Do(ctx)
	if err != nil {
		return nil, err
	}
	bySymbol := make(map[string]market.Quote, len(mapping))
	for _, st := range stats {
		if st == nil {
			continue
		}
		arena, ok := mapping[strings.ToUpper(st.Symbol)]
		if !ok {
			continue
		}
		bySymbol[arena] = market.Quote{
			Symbol:         arena,
			Price:          parseFloat(st.LastPrice),
			Volume24h:      parseFloat(st.QuoteVolume),
			PriceChange24h: parseFloat(st.PriceChangePercent),
			High24h:        parseFloat(st.HighPrice),
			Low24h:         parseFloat(st.LowPrice),
			Timestamp:      st.CloseTime,
		}
	}
	out := make([]market.Quote, 0, len(bySymbol))
	for _, sym := range symbols {
		if q, ok := bySymbol[symbolpkg.Normalize(sym)]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}

func parseFloat(v string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0
	}
	return f
}
