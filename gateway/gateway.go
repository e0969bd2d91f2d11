package gateway

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"exchangegw/decimalfmt"
	"exchangegw/evchan"
	"exchangegw/gw"
	"exchangegw/metrics"
)

const (
	walletPollTicks    = 15
	cancelAllPollTicks = 300
)

// Gateway drives a single Adapter through handshake, connect,
// subscribe and the 1Hz tick loop, publishing every domain event onto
// typed channels a strategy (or, in this repo, the reporting surface and
// tests) can consume.
type Gateway struct {
	cfg      gw.Config
	features gw.FeatureFlags
	adapter  Adapter
	clock    gw.Clock
	logger   zerolog.Logger

	Formatters decimalfmt.Formatters

	Connectivity *evchan.EventChan[gw.Connectivity]
	Levels       *evchan.EventChan[gw.Levels]
	Orders       *evchan.EventChan[*gw.Order]
	Trades       *evchan.EventChan[gw.Trade]
	Wallets      *evchan.EventChan[gw.Wallets]

	mu            sync.Mutex
	tick          uint64
	orderBook     map[string]*gw.Order // keyed by OrderID, our client order id
	lastWallets   gw.Wallets
	wasConnected  bool
	lastPrice     float64
	sessionValue  float64
	sessionMarked bool
}

// New builds a Gateway for the given adapter and config, wiring the
// standard set of event channels with their documented delivery policy:
// Connectivity and Levels overwrite, Orders and Trades queue in FIFO.
// The gateway binds itself to the adapter as its EventSink so the
// adapter's consume() path can publish onto these channels.
func New(cfg gw.Config, adapter Adapter, clock gw.Clock, logger zerolog.Logger) *Gateway {
	g := &Gateway{
		cfg:          cfg,
		features:     adapter.Features(),
		adapter:      adapter,
		clock:        clock,
		logger:       logger,
		Connectivity: evchan.New[gw.Connectivity](evchan.Overwrite, 1),
		Levels:       evchan.New[gw.Levels](evchan.Overwrite, 1),
		Orders:       evchan.New[*gw.Order](evchan.FIFO, 0),
		Trades:       evchan.New[gw.Trade](evchan.FIFO, 0),
		Wallets:      evchan.New[gw.Wallets](evchan.Overwrite, 1),
		orderBook:    make(map[string]*gw.Order),
	}
	adapter.Bind(g)
	return g
}

// Bootstrap resolves the handshake (cache-or-REST, forced fresh when
// nocache is true), initialises the decimal formatters from the
// resolved ticks, and connects the adapter. Must be called once before
// Run.
func (g *Gateway) Bootstrap(ctx context.Context, nocache bool) error {
	reply, err := resolveHandshake(ctx, g.adapter, g.cfg, g.clock, nocache)
	if err != nil {
		return err
	}
	reply.Merge(&g.cfg)
	g.Formatters.Init(g.cfg.TickPrice, g.cfg.TickSize)

	g.logger.Info().
		Str("component", "gateway").
		Str("venue", g.adapter.Name()).
		Str("symbol", g.cfg.Symbol).
		Msg(g.disclaimer())

	return g.adapter.Connect(ctx)
}

// PublishLevels republishes a full book snapshot, truncated to the
// configured MaxLevel per side, onto the overwrite-policy Levels
// channel. Adapters call this from their consume() path.
func (g *Gateway) PublishLevels(levels gw.Levels) {
	levels.Reduce(g.cfg.MaxLevel)
	if len(levels.Bids) > 0 && len(levels.Asks) > 0 {
		mid := (levels.Bids[0].Price + levels.Asks[0].Price) / 2
		g.mu.Lock()
		g.lastPrice = mid
		g.mu.Unlock()
	}
	g.Levels.TryWrite(levels)
}

// PublishTrade queues a single print onto the FIFO-policy Trades
// channel. Adapters call this from their consume() path.
func (g *Gateway) PublishTrade(trade gw.Trade) {
	g.mu.Lock()
	g.lastPrice = trade.Price
	g.mu.Unlock()
	g.Trades.TryWrite(trade)
}

// markWallets fills in Value (mark-to-quote, using the last known book
// mid or trade print) and Profit (percent change of total portfolio
// value since the first wallet snapshot of the session) on both buckets.
func (g *Gateway) markWallets(wallets gw.Wallets) gw.Wallets {
	g.mu.Lock()
	price := g.lastPrice
	wallets.Base.Value = wallets.Base.Total * price
	wallets.Quote.Value = wallets.Quote.Total
	total := wallets.Base.Value + wallets.Quote.Value

	if !g.sessionMarked && total > 0 {
		g.sessionValue = total
		g.sessionMarked = true
	}
	if g.sessionValue > 0 {
		profit := (total - g.sessionValue) / g.sessionValue * 100
		wallets.Base.Profit = profit
		wallets.Quote.Profit = profit
	}
	g.mu.Unlock()
	return wallets
}

// Run ticks the gateway at 1Hz until ctx is cancelled, driving the
// wallet and cancel-all polling cadence and publishing Connectivity.
func (g *Gateway) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			g.adapter.Disconnect()
			return ctx.Err()
		case <-ticker.C:
			g.onTick(ctx)
		}
	}
}

func (g *Gateway) onTick(ctx context.Context) {
	g.mu.Lock()
	g.tick++
	tick := g.tick
	g.mu.Unlock()

	connected := g.adapter.Connected()
	g.Connectivity.TryWrite(connectivityOf(connected))

	g.mu.Lock()
	changed := g.wasConnected != connected
	flippedToDisconnected := g.wasConnected && !connected
	g.wasConnected = connected
	g.mu.Unlock()
	if changed {
		state := "disconnected"
		if connected {
			state = "connected"
		}
		metrics.RecordConnectivity(g.adapter.Name(), state)
	}
	if flippedToDisconnected {
		g.Levels.TryWrite(gw.Levels{})
	}

	if g.features.AskForFees && tick%walletPollTicks == 0 {
		if wallets, err := g.adapter.Wallets(ctx); err == nil {
			wallets = g.markWallets(wallets)
			g.mu.Lock()
			g.lastWallets = wallets
			g.mu.Unlock()
			g.Wallets.TryWrite(wallets)
		} else {
			g.logger.Warn().Err(err).Str("component", "gateway").Msg("wallet poll failed")
		}
	}

	if g.features.AskForCancelAll && tick%cancelAllPollTicks == 0 {
		if err := g.adapter.CancelAll(ctx); err != nil {
			g.logger.Warn().Err(err).Str("component", "gateway").Msg("cancel-all poll failed")
		}
	}
}

func connectivityOf(connected bool) gw.Connectivity {
	if connected {
		return gw.Connected
	}
	return gw.Disconnected
}

// PlaceOrder submits a new order, assigning it an id if absent.
func (g *Gateway) PlaceOrder(ctx context.Context, o *gw.Order) error {
	if o.OrderID == "" {
		o.OrderID = uuid.NewString()
	}
	g.mu.Lock()
	g.orderBook[o.OrderID] = o
	g.mu.Unlock()

	metrics.RecordOrderCommand(g.adapter.Name(), "place")
	if err := g.adapter.PlaceOrder(ctx, o); err != nil {
		return fmt.Errorf("place order %s: %w", o.OrderID, err)
	}
	return nil
}

// ReplaceOrder amends price/isPong on an existing working order.
func (g *Gateway) ReplaceOrder(ctx context.Context, orderID string, price float64, isPong bool) error {
	g.mu.Lock()
	o, ok := g.orderBook[orderID]
	g.mu.Unlock()
	if !ok {
		return fmt.Errorf("replace order %s: unknown order", orderID)
	}
	now := gw.Millis(g.clock)
	if !gw.Replace(price, isPong, o, now) {
		return fmt.Errorf("replace order %s: not eligible", orderID)
	}
	metrics.RecordOrderCommand(g.adapter.Name(), "replace")
	if err := g.adapter.ReplaceOrder(ctx, o, price); err != nil {
		return fmt.Errorf("replace order %s: %w", orderID, err)
	}
	return nil
}

// CancelOrder cancels a single working order.
func (g *Gateway) CancelOrder(ctx context.Context, orderID string) error {
	g.mu.Lock()
	o, ok := g.orderBook[orderID]
	g.mu.Unlock()
	if !ok {
		return fmt.Errorf("cancel order %s: unknown order", orderID)
	}
	now := gw.Millis(g.clock)
	if !gw.Cancel(o, now) {
		return fmt.Errorf("cancel order %s: not eligible", orderID)
	}
	metrics.RecordOrderCommand(g.adapter.Name(), "cancel")
	if err := g.adapter.CancelOrder(ctx, o); err != nil {
		return fmt.Errorf("cancel order %s: %w", orderID, err)
	}
	return nil
}

// Purge cancels every resting order on shutdown, unless dustybot is
// true — a dusty-bot run is expected to leave its orders resting and
// skips the cancel-all entirely.
func (g *Gateway) Purge(ctx context.Context, dustybot bool) error {
	if dustybot {
		return nil
	}
	g.logger.Info().Str("component", "gateway").Str("venue", g.adapter.Name()).
		Msg("Attempting to cancel all open orders...")
	metrics.RecordOrderCommand(g.adapter.Name(), "cancelAll")
	if err := g.adapter.CancelAll(ctx); err != nil {
		return fmt.Errorf("purge: %w", err)
	}
	g.logger.Info().Str("component", "gateway").Str("venue", g.adapter.Name()).
		Msg("Attempting to cancel all open orders...OK")
	return nil
}

// ConsumeUpdate applies a raw order update from the adapter's consume()
// path onto the tracked order, records a one-shot latency verdict on the
// first Working transition, and republishes the order event.
func (g *Gateway) ConsumeUpdate(raw *gw.Order) {
	g.mu.Lock()
	o, ok := g.orderBook[raw.OrderID]
	if !ok {
		o = &gw.Order{OrderID: raw.OrderID}
		g.orderBook[raw.OrderID] = o
	}
	hadLatency := o.Latency != 0
	gw.Update(raw, o)
	firstWorking := o.Status == gw.Working && !hadLatency && o.Latency != 0
	g.mu.Unlock()

	if firstWorking {
		metrics.RecordLatency(g.adapter.Name(), g.cfg.Symbol, float64(o.Latency)/1000.0)
		g.logger.Info().
			Str("component", "gateway").
			Str("venue", g.adapter.Name()).
			Str("orderId", o.OrderID).
			Str("verdict", g.latency(o.Latency)).
			Msg("order acknowledged")
	}

	g.Orders.TryWrite(o)
}

// latency classifies a round-trip in milliseconds into the five
// verdict buckets every venue report shares.
func (g *Gateway) latency(ms int64) string {
	switch {
	case ms < 200:
		return "very good"
	case ms < 500:
		return "good"
	case ms < 700:
		return "a bit bad"
	case ms < 1000:
		return "bad"
	default:
		return "very bad"
	}
}

// disclaimer emits a licensing notice when Unlock is non-empty, with the
// apikey half-redacted (first half shown, second half replaced with #).
// With Unlock empty it degrades to the plain startup banner.
func (g *Gateway) disclaimer() string {
	margin := "spot"
	switch g.cfg.Margin {
	case gw.Inverse:
		margin = "inverse margin"
	case gw.Linear:
		margin = "linear margin"
	}
	banner := fmt.Sprintf("connected to %s, trading %s (%s), tick price %v / tick size %v",
		g.adapter.Name(), g.cfg.Symbol, margin, g.cfg.TickPrice, g.cfg.TickSize)

	if g.cfg.Unlock == "" {
		return banner
	}
	return fmt.Sprintf("%s — licensed to %s, apikey %s", banner, g.cfg.Unlock, redactHalf(g.cfg.APIKey))
}

// redactHalf shows the first half of s and replaces the second half with
// '#', rounding the shown half down so a redaction is always visible.
func redactHalf(s string) string {
	if s == "" {
		return s
	}
	shown := len(s) / 2
	return s[:shown] + strings.Repeat("#", len(s)-shown)
}

// Report renders the normalised post-handshake summary: symbol
// (formatted differently for Linear futures), minSize with optional
// quote minValue, make/take fees as percentages. notes, if non-empty,
// is appended verbatim; nocache forces a fresh handshake before
// rendering.
func (g *Gateway) Report(ctx context.Context, notes string, nocache bool) string {
	if nocache {
		if reply, err := resolveHandshake(ctx, g.adapter, g.cfg, g.clock, true); err == nil {
			reply.Merge(&g.cfg)
		} else {
			g.logger.Warn().Err(err).Str("component", "gateway").Msg("nocache report handshake failed")
		}
	}

	var symbol string
	switch g.cfg.Margin {
	case gw.Linear:
		symbol = fmt.Sprintf("%s (%s)", g.cfg.Symbol, g.Formatters.Funds.Str(g.cfg.TickSize))
	default:
		symbol = fmt.Sprintf("%s/%s (%s/%s)", g.cfg.Base, g.cfg.Quote,
			g.Formatters.Amount.Str(g.cfg.TickSize), g.Formatters.Price.Str(g.cfg.TickPrice))
	}

	unit := "Contract(s)"
	if g.cfg.Margin == gw.Spot {
		unit = g.cfg.Base
	}
	minSize := fmt.Sprintf("min size %s %s", g.Formatters.Amount.Str(g.cfg.MinSize), unit)
	if g.cfg.MinValue > 0 {
		minSize = fmt.Sprintf("%s or %s %s", minSize, g.Formatters.Funds.Str(g.cfg.MinValue), g.cfg.Quote)
	}

	fees := fmt.Sprintf("make %s%%, take %s%%",
		g.Formatters.Percent.Str(g.cfg.MakeFee*100), g.Formatters.Percent.Str(g.cfg.TakeFee*100))

	report := fmt.Sprintf("%s %s, %s, %s", g.adapter.Name(), symbol, minSize, fees)
	if notes != "" {
		report = fmt.Sprintf("%s (%s)", report, notes)
	}
	return report
}
