//go:build wireinject

package app

import (
	"context"

	"arena/internal/config"

	"github.com/google/wire"
)

var arenaSet = wire.NewSet(
	provideMarketSource,
	provideBuilderOptions,
	provideAppBuilder,
	wire.Bind(new(appBuilderDeps), new(*AppBuilder)),
	provideAppFromBuilder,
)

func buildAppWithWire(ctx context.Context, cfg *config.Config) (*App, error) {
	wire.Build(arenaSet)
	return nil, nil
}
