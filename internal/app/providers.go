package app

import (
	"context"

	"arena/internal/config"
	"arena/internal/market"
)

type appBuilderDeps interface {
	Build(context.Context) (*App, error)
}

// builderOptions 是注入到 AppBuilder 的可替换组件。
type builderOptions []AppBuilderOption

// provideMarketSource 在组装其它组件之前先确定行情源，配置错误时尽早失败。
func provideMarketSource(cfg *config.Config) (market.Source, error) {
	return buildMarketSource(cfg.Market)
}

func provideBuilderOptions(src market.Source) builderOptions {
	return builderOptions{WithMarketSource(src)}
}

func provideAppBuilder(cfg *config.Config, opts builderOptions) *AppBuilder {
	return NewAppBuilder(cfg, opts...)
}

func provideAppFromBuilder(ctx context.Context, b appBuilderDeps) (*App, error) {
	return b.Build(ctx)
}
