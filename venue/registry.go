package venue

import (
	"fmt"

	"github.com/rs/zerolog"

	"exchangegw/gateway"
	"exchangegw/gw"
)

// Factory builds an Adapter from a resolved Config.
type Factory func(cfg gw.Config, logger zerolog.Logger) (gateway.Adapter, error)

var registry = map[string]Factory{
	"binance":  newBinance,
	"coinbase": newCoinbase,
	"kraken":   newKraken,
	"bitmex":   newBitmex,
	"hitbtc":   func(cfg gw.Config, l zerolog.Logger) (gateway.Adapter, error) { return newHitBtc(cfg, l, false) },
	"bequant":  func(cfg gw.Config, l zerolog.Logger) (gateway.Adapter, error) { return newHitBtc(cfg, l, true) },
	"bitfinex": func(cfg gw.Config, l zerolog.Logger) (gateway.Adapter, error) { return newBitfinex(cfg, l, false) },
	"ethfinex": func(cfg gw.Config, l zerolog.Logger) (gateway.Adapter, error) { return newBitfinex(cfg, l, true) },
	"kucoin":   newKuCoin,
	"poloniex": newPoloniex,
}

// New constructs the adapter registered for the given venue name. The
// name is case-sensitive and matches the gateway's config "exchange"
// field exactly (e.g. "binance", "bequant", "ethfinex").
func New(name string, cfg gw.Config, logger zerolog.Logger) (gateway.Adapter, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("venue: unknown exchange %q", name)
	}
	return factory(cfg, logger)
}

// Names lists every registered venue, for config validation and help text.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}
