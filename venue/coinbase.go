package venue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"exchangegw/gateway"
	"exchangegw/gw"
	"exchangegw/transport"
)

// coinbaseAdapter is the one venue using the FIX-over-socket transport:
// order entry rides a FIX session, market data rides a plain public
// WebSocket. The FIX logon is built by transport.FixSession and carries
// only EncryptMethod and HeartBtInt; no CB-ACCESS-* auth is added to it.
// REST is
// still used for handshake and wallet queries, authenticated with
// CB-ACCESS-KEY/SIGN/TIMESTAMP/PASSPHRASE headers.
type coinbaseAdapter struct {
	cfg    gw.Config
	rest   *resty.Client
	market *transport.WS
	fix    *transport.FixSession
	logger zerolog.Logger
	sink   gateway.EventSink
}

func newCoinbase(cfg gw.Config, logger zerolog.Logger) (gateway.Adapter, error) {
	a := &coinbaseAdapter{cfg: cfg, rest: newRestClient("https://api.exchange.coinbase.com"), logger: logger}
	a.rest.OnBeforeRequest(a.sign)
	a.market = newWS("wss://ws-feed.exchange.coinbase.com", a.subscribeMarket, a.onMarketMessage, nil, logger)
	a.fix = transport.NewFixSession("fix.exchange.coinbase.com:4198", "FIX.4.2", cfg.APIKey, "Coinbase",
		a.onFixMessage, nil, nil, logger)
	return a, nil
}

func (a *coinbaseAdapter) Name() string { return "coinbase" }

func (a *coinbaseAdapter) Connect(ctx context.Context) error {
	if err := a.market.Connect(); err != nil {
		return fmt.Errorf("coinbase market ws: %w", err)
	}
	if err := a.fix.Connect(); err != nil {
		return fmt.Errorf("coinbase fix: %w", err)
	}
	return nil
}

func (a *coinbaseAdapter) Disconnect() {
	a.fix.Disconnect()
	a.market.Disconnect()
}

func (a *coinbaseAdapter) Connected() bool {
	return a.market.Connected() && a.fix.Connected()
}

func (a *coinbaseAdapter) Bind(sink gateway.EventSink) { a.sink = sink }

func (a *coinbaseAdapter) Features() gw.FeatureFlags {
	return gw.FeatureFlags{AskForFees: true, AskForReplace: true, AskForCancelAll: true}
}

func (a *coinbaseAdapter) subscribeMarket() error {
	msg, _ := json.Marshal(map[string]any{
		"type": "subscribe", "product_ids": []string{a.cfg.Symbol}, "channels": []string{"level2", "matches"},
	})
	return a.market.Emit(msg)
}

// onMarketMessage decodes Coinbase's level2 (snapshot/l2update) and
// matches channel frames into Levels/Trade events.
func (a *coinbaseAdapter) onMarketMessage(frame []byte) {
	var env struct {
		Type    string     `json:"type"`
		Bids    [][]string `json:"bids"`
		Asks    [][]string `json:"asks"`
		Changes [][]string `json:"changes"`
		Side    string     `json:"side"`
		Price   string     `json:"price"`
		Size    string     `json:"size"`
		Time    string     `json:"time"`
	}
	if json.Unmarshal(frame, &env) != nil || a.sink == nil {
		return
	}
	switch env.Type {
	case "snapshot":
		levels := gw.Levels{
			Bids: make([]gw.Level, 0, len(env.Bids)),
			Asks: make([]gw.Level, 0, len(env.Asks)),
		}
		for _, b := range env.Bids {
			if len(b) < 2 {
				continue
			}
			levels.Bids = append(levels.Bids, gw.Level{Price: parseFloatOr(b[0], 0), Size: parseFloatOr(b[1], 0)})
		}
		for _, ask := range env.Asks {
			if len(ask) < 2 {
				continue
			}
			levels.Asks = append(levels.Asks, gw.Level{Price: parseFloatOr(ask[0], 0), Size: parseFloatOr(ask[1], 0)})
		}
		a.sink.PublishLevels(levels)
	case "l2update":
		var levels gw.Levels
		for _, c := range env.Changes {
			if len(c) < 3 {
				continue
			}
			lvl := gw.Level{Price: parseFloatOr(c[1], 0), Size: parseFloatOr(c[2], 0)}
			if c[0] == "buy" {
				levels.Bids = append(levels.Bids, lvl)
			} else {
				levels.Asks = append(levels.Asks, lvl)
			}
		}
		a.sink.PublishLevels(levels)
	case "match":
		side := gw.Bid
		if env.Side == "sell" {
			side = gw.Ask
		}
		a.sink.PublishTrade(gw.Trade{
			Side:     side,
			Price:    parseFloatOr(env.Price, 0),
			Quantity: parseFloatOr(env.Size, 0),
			Time:     coinbaseTradeTime(env.Time),
		})
	}
}

func coinbaseTradeTime(ts string) int64 {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return 0
	}
	return t.UnixMilli()
}

// onFixMessage decodes ExecutionReport (35=8) frames into order updates.
func (a *coinbaseAdapter) onFixMessage(msg transport.FixMessage) {
	if a.sink == nil || msg.MsgType != "8" {
		return
	}
	clOrdID, _ := msg.Get(11)
	orderID, _ := msg.Get(37)
	ordStatus, _ := msg.Get(39)
	price, _ := msg.Get(44)
	a.sink.ConsumeUpdate(&gw.Order{
		OrderID:    clOrdID,
		ExchangeID: orderID,
		Price:      parseFloatOr(price, 0),
		Status:     coinbaseFixStatus(ordStatus),
	})
}

func coinbaseFixStatus(ordStatus string) gw.Status {
	switch ordStatus {
	case "2", "4", "8", "C": // Filled, Canceled, Rejected, Expired
		return gw.Terminated
	case "0", "1": // New, PartiallyFilled
		return gw.Working
	default:
		return gw.Waiting
	}
}

func (a *coinbaseAdapter) sign(c *resty.Client, r *resty.Request) error {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	body := ""
	if r.Body != nil {
		if raw, err := json.Marshal(r.Body); err == nil {
			body = string(raw)
		}
	}
	prefix := timestamp + r.Method + r.URL + body
	sig := hmacSHA256Base64(a.cfg.Secret, prefix)

	r.SetHeader("CB-ACCESS-KEY", a.cfg.APIKey)
	r.SetHeader("CB-ACCESS-SIGN", sig)
	r.SetHeader("CB-ACCESS-TIMESTAMP", timestamp)
	r.SetHeader("CB-ACCESS-PASSPHRASE", a.cfg.Pass)
	return nil
}

func (a *coinbaseAdapter) Handshake(ctx context.Context, cfg gw.Config) (gateway.HandshakeReply, error) {
	var product struct {
		BaseCurrency   string `json:"base_currency"`
		QuoteCurrency  string `json:"quote_currency"`
		QuoteIncrement string `json:"quote_increment"`
		BaseIncrement  string `json:"base_increment"`
		MinMarketFunds string `json:"min_market_funds"`
	}
	resp, err := a.rest.R().SetContext(ctx).SetResult(&product).Get("/products/" + cfg.Symbol)
	if err != nil || resp.IsError() {
		return gateway.HandshakeReply{}, fmt.Errorf("coinbase product: %w", err)
	}
	return gateway.HandshakeReply{
		TickPrice: parseFloatOr(product.QuoteIncrement, 0),
		TickSize:  parseFloatOr(product.BaseIncrement, 0),
		MinValue:  parseFloatOr(product.MinMarketFunds, 0),
		Base:      product.BaseCurrency,
		Quote:     product.QuoteCurrency,
		Symbol:    cfg.Symbol,
		Margin:    gw.Spot,
	}, nil
}

// PlaceOrder/ReplaceOrder/CancelOrder go over the FIX session
// (NewOrderSingle=D, OrderCancelReplaceRequest=G, OrderCancelRequest=F),
// not REST — Coinbase's FIX gateway is the order-entry path of record.
// CancelAll uses REST (DELETE /orders).
func (a *coinbaseAdapter) PlaceOrder(ctx context.Context, o *gw.Order) error {
	side := "1"
	if o.Side == gw.Ask {
		side = "2"
	}
	ordType := "2" // limit
	if o.Type == gw.Market {
		ordType = "1"
	}
	msg := transport.FixMessage{MsgType: "D"}
	msg.Set(11, o.OrderID).Set(55, a.cfg.Symbol).Set(54, side).Set(40, ordType).
		Set(38, formatAmount(o.Quantity)).Set(44, formatAmount(o.Price)).Set(59, fixTIF(o.TimeInForce))
	return a.fix.Beam(msg)
}

func (a *coinbaseAdapter) ReplaceOrder(ctx context.Context, o *gw.Order, price float64) error {
	if o.ExchangeID == "" {
		return fmt.Errorf("replace order: no exchange id")
	}
	msg := transport.FixMessage{MsgType: "G"}
	msg.Set(37, o.ExchangeID).Set(11, o.OrderID).Set(55, a.cfg.Symbol).Set(44, formatAmount(price))
	return a.fix.Beam(msg)
}

func (a *coinbaseAdapter) CancelOrder(ctx context.Context, o *gw.Order) error {
	if o.ExchangeID == "" {
		return fmt.Errorf("cancel order: no exchange id")
	}
	msg := transport.FixMessage{MsgType: "F"}
	msg.Set(37, o.ExchangeID).Set(11, o.OrderID).Set(55, a.cfg.Symbol)
	return a.fix.Beam(msg)
}

func (a *coinbaseAdapter) CancelAll(ctx context.Context) error {
	resp, err := a.rest.R().SetContext(ctx).SetQueryParam("product_id", a.cfg.Symbol).Delete("/orders")
	if err != nil || resp.IsError() {
		return fmt.Errorf("coinbase cancel all: %w", err)
	}
	return nil
}

func (a *coinbaseAdapter) Wallets(ctx context.Context) (gw.Wallets, error) {
	var accounts []struct {
		Currency  string `json:"currency"`
		Available string `json:"available"`
		Hold      string `json:"hold"`
	}
	resp, err := a.rest.R().SetContext(ctx).SetResult(&accounts).Get("/accounts")
	if err != nil || resp.IsError() {
		return gw.Wallets{}, fmt.Errorf("coinbase accounts: %w", err)
	}
	var wallets gw.Wallets
	for _, acc := range accounts {
		amount := parseFloatOr(acc.Available, 0)
		held := parseFloatOr(acc.Hold, 0)
		switch acc.Currency {
		case a.cfg.Base:
			wallets.Base.Currency = acc.Currency
			wallets.Base.Reset(amount, held)
		case a.cfg.Quote:
			wallets.Quote.Currency = acc.Currency
			wallets.Quote.Reset(amount, held)
		}
	}
	return wallets, nil
}

func (a *coinbaseAdapter) Fees(ctx context.Context) (float64, float64, error) { return 0, 0, nil }

func fixTIF(tif gw.TimeInForce) string {
	switch tif {
	case gw.IOC:
		return "3"
	case gw.FOK:
		return "4"
	default:
		return "1" // GTC
	}
}
