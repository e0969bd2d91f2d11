package venue

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"exchangegw/gateway"
	"exchangegw/gw"
)

// poloniexTickSize and poloniexMinSize are hardcoded: Poloniex's REST
// API exposes neither a tick size nor a minimum order size per market.
const (
	poloniexTickSize = 1e-8
	poloniexMinSize  = 1e-3
)

// poloniexAdapter speaks Poloniex's REST trading API with form-
// urlencoded Key/Sign auth (Sign = hmac-sha512 over the urlencoded
// body) and renders symbols as "quote_base", the reverse of this
// gateway's own "base/quote" convention.
type poloniexAdapter struct {
	wsBase
	cfg gw.Config
	rest *resty.Client
}

func newPoloniex(cfg gw.Config, logger zerolog.Logger) (gateway.Adapter, error) {
	a := &poloniexAdapter{cfg: cfg, rest: newRestClient("https://poloniex.com")}
	a.rest.OnBeforeRequest(a.sign)
	a.wsBase = wsBase{name: "poloniex", logger: logger}
	a.ws = newWS("wss://ws.poloniex.com/ws/public", a.subscribe, a.onMessage, nil, logger)
	return a, nil
}

func (a *poloniexAdapter) Features() gw.FeatureFlags {
	return gw.FeatureFlags{AskForFees: true, AskForReplace: false, AskForCancelAll: true}
}

// poloniexMarket reverses base/quote into Poloniex's quote_base order.
func poloniexMarket(cfg gw.Config) string {
	return cfg.Quote + "_" + cfg.Base
}

func (a *poloniexAdapter) subscribe() error {
	msg, _ := json.Marshal(map[string]any{"event": "subscribe", "channel": []string{"book"}, "symbols": []string{a.cfg.Symbol}})
	return a.ws.Emit(msg)
}

// onMessage decodes Poloniex's v2 book channel push: {"channel":"book",
// "data":[{"asks":[["price","size"],...],"bids":[...]}]}.
func (a *poloniexAdapter) onMessage(frame []byte) {
	var env struct {
		Channel string `json:"channel"`
		Data    []struct {
			Asks [][2]string `json:"asks"`
			Bids [][2]string `json:"bids"`
		} `json:"data"`
	}
	if json.Unmarshal(frame, &env) != nil || a.sink == nil || env.Channel != "book" || len(env.Data) == 0 {
		return
	}
	row := env.Data[len(env.Data)-1]
	levels := gw.Levels{
		Bids: make([]gw.Level, 0, len(row.Bids)),
		Asks: make([]gw.Level, 0, len(row.Asks)),
	}
	for _, b := range row.Bids {
		levels.Bids = append(levels.Bids, gw.Level{Price: parseFloatOr(b[0], 0), Size: parseFloatOr(b[1], 0)})
	}
	for _, ask := range row.Asks {
		levels.Asks = append(levels.Asks, gw.Level{Price: parseFloatOr(ask[0], 0), Size: parseFloatOr(ask[1], 0)})
	}
	a.sink.PublishLevels(levels)
}

func (a *poloniexAdapter) sign(c *resty.Client, r *resty.Request) error {
	nonce := strconv.FormatInt(time.Now().UnixNano()/1e6, 10)
	form := url.Values{}
	for k, v := range r.FormData {
		if len(v) > 0 {
			form.Set(k, v[0])
		}
	}
	form.Set("nonce", nonce)
	r.SetFormData(map[string]string{"nonce": nonce})

	sig := hmacSHA512Hex(a.cfg.Secret, form.Encode())
	r.SetHeader("Key", a.cfg.APIKey)
	r.SetHeader("Sign", sig)
	return nil
}

func (a *poloniexAdapter) Handshake(ctx context.Context, cfg gw.Config) (gateway.HandshakeReply, error) {
	market := poloniexMarket(cfg)
	if !strings.Contains(cfg.Symbol, "_") {
		cfg.Symbol = market
	}
	return gateway.HandshakeReply{
		TickPrice: poloniexTickSize,
		TickSize:  poloniexTickSize,
		MinSize:   poloniexMinSize,
		Base:      cfg.Base,
		Quote:     cfg.Quote,
		Symbol:    cfg.Symbol,
		Margin:    gw.Spot,
	}, nil
}

func (a *poloniexAdapter) PlaceOrder(ctx context.Context, o *gw.Order) error {
	command := "buy"
	if o.Side == gw.Ask {
		command = "sell"
	}
	var result struct {
		OrderNumber string `json:"orderNumber"`
	}
	resp, err := a.rest.R().SetContext(ctx).SetResult(&result).SetFormData(map[string]string{
		"command": command, "currencyPair": a.cfg.Symbol,
		"rate": formatAmount(o.Price), "amount": formatAmount(o.Quantity),
	}).Post("/tradingApi")
	if err != nil || resp.IsError() {
		return fmt.Errorf("poloniex place order: %w", err)
	}
	o.ExchangeID = result.OrderNumber
	return nil
}

func (a *poloniexAdapter) ReplaceOrder(ctx context.Context, o *gw.Order, price float64) error {
	if o.ExchangeID == "" {
		return fmt.Errorf("replace order: no exchange id")
	}
	resp, err := a.rest.R().SetContext(ctx).SetFormData(map[string]string{
		"command": "moveOrder", "orderNumber": o.ExchangeID, "rate": formatAmount(price),
	}).Post("/tradingApi")
	if err != nil || resp.IsError() {
		return fmt.Errorf("poloniex replace order: %w", err)
	}
	return nil
}

func (a *poloniexAdapter) CancelOrder(ctx context.Context, o *gw.Order) error {
	if o.ExchangeID == "" {
		return fmt.Errorf("cancel order: no exchange id")
	}
	resp, err := a.rest.R().SetContext(ctx).SetFormData(map[string]string{
		"command": "cancelOrder", "orderNumber": o.ExchangeID,
	}).Post("/tradingApi")
	if err != nil || resp.IsError() {
		return fmt.Errorf("poloniex cancel order: %w", err)
	}
	return nil
}

func (a *poloniexAdapter) CancelAll(ctx context.Context) error {
	resp, err := a.rest.R().SetContext(ctx).SetFormData(map[string]string{
		"command": "cancelAllOrders", "currencyPair": a.cfg.Symbol,
	}).Post("/tradingApi")
	if err != nil || resp.IsError() {
		return fmt.Errorf("poloniex cancel all: %w", err)
	}
	return nil
}

func (a *poloniexAdapter) Wallets(ctx context.Context) (gw.Wallets, error) {
	var balances map[string]string
	resp, err := a.rest.R().SetContext(ctx).SetResult(&balances).SetFormData(map[string]string{
		"command": "returnBalances",
	}).Post("/tradingApi")
	if err != nil || resp.IsError() {
		return gw.Wallets{}, fmt.Errorf("poloniex balances: %w", err)
	}
	var wallets gw.Wallets
	if v, ok := balances[a.cfg.Base]; ok {
		wallets.Base.Currency = a.cfg.Base
		wallets.Base.Reset(parseFloatOr(v, 0), 0)
	}
	if v, ok := balances[a.cfg.Quote]; ok {
		wallets.Quote.Currency = a.cfg.Quote
		wallets.Quote.Reset(parseFloatOr(v, 0), 0)
	}
	return wallets, nil
}

func (a *poloniexAdapter) Fees(ctx context.Context) (float64, float64, error) { return 0, 0, nil }
