package app

import (
	"arena/internal/config"
	"arena/internal/gateway"
	"arena/internal/market"
)

func buildMarketSource(mc config.MarketConfig) (market.Source, error) {
	return gateway.NewSourceFromConfig(mc)
}
