package gateway

import (
	"fmt"
	"strings"

	"arena/internal/config"
	"arena/internal/gateway/binance"
	"arena/internal/market"
)

// NewSourceFromConfig 按 market.source 构建行情源。
func NewSourceFromConfig(mc config.MarketConfig) (market.Source, error) {
	name := strings.ToLower(strings.TrimSpace(mc.Source))
	switch name {
	case "", "simulated", "sim":
		return market.NewSimulatedSource(mc.Seed, mc.Volatility), nil
	case "binance", "binance-futures":
		return binance.New(binance.Config{RESTBaseURL: mc.RESTBaseURL}), nil
	default:
		return nil, fmt.Errorf("unsupported market source: %s", mc.Source)
	}
}
