// Package gateway hosts the venue-agnostic exchange gateway: the tick
// driver, handshake cache, order command dispatch and reporting surface
// that every Adapter implementation plugs into.
package gateway

import (
	"context"

	"exchangegw/gw"
)

// HandshakeReply is what a venue's handshake() call resolves, merged
// into the running Config per the precedence rules in Merge.
type HandshakeReply struct {
	TickPrice float64
	TickSize  float64
	MinSize   float64
	MinValue  float64
	MakeFee   float64
	TakeFee   float64
	WebMarket string
	WebOrders string
	Base      string
	Quote     string
	Symbol    string
	Margin    gw.Future
}

// Merge applies a HandshakeReply onto a Config using the original
// venue's precedence: tickPrice, webMarket, webOrders, base, quote and
// symbol come from the reply when it carries a non-zero/non-empty value
// and otherwise keep the config's; tickSize and margin always come from
// the reply; minSize, makeFee and
// takeFee only take the reply's value when the running config doesn't
// already carry a non-zero one — an operator-supplied override wins.
// minValue always takes the reply's value; it has no operator-override
// knob in the original.
func (r HandshakeReply) Merge(cfg *gw.Config) {
	keep := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	if r.TickPrice != 0 {
		cfg.TickPrice = r.TickPrice
	}
	cfg.TickSize = r.TickSize
	keep(&cfg.WebMarket, r.WebMarket)
	keep(&cfg.WebOrders, r.WebOrders)
	keep(&cfg.Base, r.Base)
	keep(&cfg.Quote, r.Quote)
	keep(&cfg.Symbol, r.Symbol)
	cfg.Margin = r.Margin
	cfg.MinValue = r.MinValue

	if cfg.MinSize == 0 {
		cfg.MinSize = r.MinSize
	}
	if cfg.MakeFee == 0 {
		cfg.MakeFee = r.MakeFee
	}
	if cfg.TakeFee == 0 {
		cfg.TakeFee = r.TakeFee
	}
}

// EventSink is the upward path a venue.Adapter pushes normalised market
// and order events through. *Gateway implements it and binds itself to
// the adapter once, at construction time.
type EventSink interface {
	// PublishLevels republishes a full book snapshot (overwrite policy:
	// only the newest unconsumed snapshot survives).
	PublishLevels(levels gw.Levels)
	// PublishTrade queues a single print (FIFO policy: every trade is
	// eventually delivered).
	PublishTrade(trade gw.Trade)
	// ConsumeUpdate applies a raw order update via Order::update and
	// republishes the order event.
	ConsumeUpdate(o *gw.Order)
}

// Adapter is the interface every venue implements. A Gateway drives
// exactly one Adapter for the lifetime of the process.
type Adapter interface {
	Name() string

	// Handshake resolves venue-specific market structure (tick sizes,
	// fees, canonical symbol) via a REST call. The gateway caches the
	// result on disk and only calls this when the cache is stale.
	Handshake(ctx context.Context, cfg gw.Config) (HandshakeReply, error)

	Connect(ctx context.Context) error
	Disconnect()
	Connected() bool

	// Bind wires the adapter's consume() path to the gateway's event
	// channels. Called once, before Connect.
	Bind(sink EventSink)

	PlaceOrder(ctx context.Context, o *gw.Order) error
	ReplaceOrder(ctx context.Context, o *gw.Order, price float64) error
	CancelOrder(ctx context.Context, o *gw.Order) error
	CancelAll(ctx context.Context) error

	Wallets(ctx context.Context) (gw.Wallets, error)
	Fees(ctx context.Context) (makeFee, takeFee float64, err error)

	Features() gw.FeatureFlags
}
