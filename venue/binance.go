package venue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/rs/zerolog"

	"exchangegw/gateway"
	"exchangegw/gw"
)

// binanceAdapter drives USD-M futures via the go-binance/v2 SDK for
// every REST call (orders, balances, exchange info) and the shared
// transport.WS for market/user data streaming — the SDK's own websocket
// helpers use a callback style that doesn't fit the gateway's single
// state machine, so only its REST surface is used.
type binanceAdapter struct {
	wsBase
	cfg    gw.Config
	client *futures.Client
}

func newBinance(cfg gw.Config, logger zerolog.Logger) (gateway.Adapter, error) {
	client := futures.NewClient(cfg.APIKey, cfg.Secret)
	a := &binanceAdapter{cfg: cfg, client: client}

	streamURL := fmt.Sprintf("wss://fstream.binance.com/ws/%s@bookTicker", lowerSymbol(cfg.Symbol))
	a.wsBase = wsBase{
		name:   "binance",
		logger: logger,
	}
	a.ws = newWS(streamURL, nil, a.onMessage, nil, logger)
	return a, nil
}

func (a *binanceAdapter) Features() gw.FeatureFlags {
	return gw.FeatureFlags{AskForFees: true, AskForReplace: false, AskForCancelAll: true}
}

func (a *binanceAdapter) onMessage(frame []byte) {
	var tick struct {
		BidPrice string `json:"b"`
		BidQty   string `json:"B"`
		AskPrice string `json:"a"`
		AskQty   string `json:"A"`
	}
	if json.Unmarshal(frame, &tick) != nil {
		a.logger.Debug().Str("component", "venue").Str("venue", "binance").Msg("dropped unparsable frame")
		return
	}
	if a.sink == nil {
		return
	}
	a.sink.PublishLevels(gw.Levels{
		Bids: []gw.Level{{Price: parseFloatOr(tick.BidPrice, 0), Size: parseFloatOr(tick.BidQty, 0)}},
		Asks: []gw.Level{{Price: parseFloatOr(tick.AskPrice, 0), Size: parseFloatOr(tick.AskQty, 0)}},
	})
}

func (a *binanceAdapter) Handshake(ctx context.Context, cfg gw.Config) (gateway.HandshakeReply, error) {
	info, err := a.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return gateway.HandshakeReply{}, fmt.Errorf("binance exchangeInfo: %w", err)
	}
	var reply gateway.HandshakeReply
	reply.Symbol = cfg.Symbol
	reply.Margin = gw.Linear
	for _, sym := range info.Symbols {
		if sym.Symbol != cfg.Symbol {
			continue
		}
		reply.Base = sym.BaseAsset
		reply.Quote = sym.QuoteAsset
		for _, f := range sym.Filters {
			switch f["filterType"] {
			case "PRICE_FILTER":
				reply.TickPrice = parseFloatOr(f["tickSize"], 0)
			case "LOT_SIZE":
				reply.TickSize = parseFloatOr(f["stepSize"], 0)
				reply.MinSize = parseFloatOr(f["minQty"], 0)
			case "MIN_NOTIONAL":
				reply.MinValue = parseFloatOr(f["notional"], 0)
			}
		}
		break
	}
	return reply, nil
}

func (a *binanceAdapter) PlaceOrder(ctx context.Context, o *gw.Order) error {
	side := futures.SideTypeBuy
	if o.Side == gw.Ask {
		side = futures.SideTypeSell
	}
	orderType := futures.OrderTypeLimit
	tif := futures.TimeInForceTypeGTC
	switch o.TimeInForce {
	case gw.IOC:
		tif = futures.TimeInForceTypeIOC
	case gw.FOK:
		tif = futures.TimeInForceTypeFOK
	}
	if o.Type == gw.Market {
		orderType = futures.OrderTypeMarket
	}

	svc := a.client.NewCreateOrderService().
		Symbol(a.cfg.Symbol).
		Side(side).
		Type(orderType).
		Quantity(strconv.FormatFloat(o.Quantity, 'f', -1, 64)).
		NewClientOrderID(o.OrderID)
	if orderType == futures.OrderTypeLimit {
		svc = svc.Price(strconv.FormatFloat(o.Price, 'f', -1, 64)).TimeInForce(tif)
	}

	resp, err := svc.Do(ctx)
	if err != nil {
		return fmt.Errorf("binance place order: %w", err)
	}
	o.ExchangeID = strconv.FormatInt(resp.OrderID, 10)
	return nil
}

func (a *binanceAdapter) ReplaceOrder(ctx context.Context, o *gw.Order, price float64) error {
	// Binance futures has no native amend; replace is cancel-then-place.
	if err := a.CancelOrder(ctx, o); err != nil {
		return err
	}
	o.Price = price
	return a.PlaceOrder(ctx, o)
}

func (a *binanceAdapter) CancelOrder(ctx context.Context, o *gw.Order) error {
	if o.ExchangeID == "" {
		return fmt.Errorf("cancel order: no exchange id")
	}
	orderID, err := strconv.ParseInt(o.ExchangeID, 10, 64)
	if err != nil {
		return fmt.Errorf("cancel order: bad exchange id %q: %w", o.ExchangeID, err)
	}
	_, err = a.client.NewCancelOrderService().Symbol(a.cfg.Symbol).OrderID(orderID).Do(ctx)
	if err != nil {
		return fmt.Errorf("binance cancel order: %w", err)
	}
	return nil
}

func (a *binanceAdapter) CancelAll(ctx context.Context) error {
	if err := a.client.NewCancelAllOpenOrdersService().Symbol(a.cfg.Symbol).Do(ctx); err != nil {
		return fmt.Errorf("binance cancel all: %w", err)
	}
	return nil
}

func (a *binanceAdapter) Wallets(ctx context.Context) (gw.Wallets, error) {
	balances, err := a.client.NewGetBalanceService().Do(ctx)
	if err != nil {
		return gw.Wallets{}, fmt.Errorf("binance balances: %w", err)
	}
	var wallets gw.Wallets
	for _, b := range balances {
		amount := parseFloatOr(b.Balance, 0)
		switch b.Asset {
		case a.cfg.Base:
			wallets.Base.Currency = b.Asset
			wallets.Base.Reset(amount, 0)
		case a.cfg.Quote:
			wallets.Quote.Currency = b.Asset
			wallets.Quote.Reset(amount, 0)
		}
	}
	return wallets, nil
}

func (a *binanceAdapter) Fees(ctx context.Context) (float64, float64, error) {
	// Binance futures fee schedule is tier-based and not exposed on a
	// simple per-symbol endpoint; the gateway keeps whatever the
	// operator configured (config values win over a zero reply).
	return 0, 0, nil
}

func lowerSymbol(s string) string {
	out := make([]byte, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}

func parseFloatOr(s string, fallback float64) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fallback
	}
	return v
}
