//go:build wireinject
// +build wireinject

package app

import (
	"github.com/google/wire"

	"binance-mirror/internal/market"
)

// InitializeApp builds App for one market selection via Wire.
func InitializeApp(cfg *Config, sel market.Selection) (*App, error) {
	wire.Build(
		ProvideLogger,
		ProvideFs,
		ProvideClock,
		ProvideTableSaver,
		ProvideLayout,
		ProvideStore,
		ProvideCatalog,
		ProvidePipeline,
		ProvideSyncer,
		wire.Struct(new(App), "*"),
	)
	return nil, nil
}
