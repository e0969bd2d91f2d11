package venue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"exchangegw/gateway"
	"exchangegw/gw"
)

// hitBtcAdapter speaks HitBtc's v2 REST+WS API over HTTP Basic auth.
// Bequant is the same API under a different host; bequant is a
// constructor-option re-pointing, not a distinct implementation.
type hitBtcAdapter struct {
	wsBase
	cfg     gw.Config
	rest    *resty.Client
	bequant bool
}

func newHitBtc(cfg gw.Config, logger zerolog.Logger, bequant bool) (gateway.Adapter, error) {
	restHost := "https://api.hitbtc.com/api/2"
	wsURL := "wss://api.hitbtc.com/api/2/ws"
	name := "hitbtc"
	if bequant {
		restHost = "https://api.bequant.io/api/2"
		wsURL = "wss://api.bequant.io/api/2/ws"
		name = "bequant"
	}

	a := &hitBtcAdapter{cfg: cfg, bequant: bequant, rest: newRestClient(restHost)}
	a.rest.SetBasicAuth(cfg.APIKey, cfg.Secret)
	a.wsBase = wsBase{name: name, logger: logger}
	a.ws = newWS(wsURL, a.subscribe, a.onMessage, nil, logger)
	return a, nil
}

func (a *hitBtcAdapter) Features() gw.FeatureFlags {
	return gw.FeatureFlags{AskForFees: true, AskForReplace: true, AskForCancelAll: true}
}

func (a *hitBtcAdapter) subscribe() error {
	msg, _ := json.Marshal(map[string]any{
		"method": "subscribeOrderbook",
		"params": map[string]string{"symbol": a.cfg.Symbol},
		"id":     1,
	})
	return a.ws.Emit(msg)
}

func (a *hitBtcAdapter) onMessage(frame []byte) {
	var env struct {
		Method string `json:"method"`
		Params struct {
			Ask []struct {
				Price string `json:"price"`
				Size  string `json:"size"`
			} `json:"ask"`
			Bid []struct {
				Price string `json:"price"`
				Size  string `json:"size"`
			} `json:"bid"`
		} `json:"params"`
	}
	if json.Unmarshal(frame, &env) != nil || a.sink == nil {
		return
	}
	switch env.Method {
	case "snapshotOrderbook", "updateOrderbook":
		levels := gw.Levels{
			Bids: make([]gw.Level, 0, len(env.Params.Bid)),
			Asks: make([]gw.Level, 0, len(env.Params.Ask)),
		}
		for _, b := range env.Params.Bid {
			levels.Bids = append(levels.Bids, gw.Level{Price: parseFloatOr(b.Price, 0), Size: parseFloatOr(b.Size, 0)})
		}
		for _, ask := range env.Params.Ask {
			levels.Asks = append(levels.Asks, gw.Level{Price: parseFloatOr(ask.Price, 0), Size: parseFloatOr(ask.Size, 0)})
		}
		a.sink.PublishLevels(levels)
	}
}

func (a *hitBtcAdapter) Handshake(ctx context.Context, cfg gw.Config) (gateway.HandshakeReply, error) {
	var sym struct {
		ID              string `json:"id"`
		BaseCurrency    string `json:"baseCurrency"`
		QuoteCurrency   string `json:"quoteCurrency"`
		QuantityIncrement string `json:"quantityIncrement"`
		TickSize        string `json:"tickSize"`
		TakeLiquidityRate string `json:"takeLiquidityRate"`
		ProvideLiquidityRate string `json:"provideLiquidityRate"`
	}
	resp, err := a.rest.R().SetContext(ctx).SetResult(&sym).Get("/public/symbol/" + cfg.Symbol)
	if err != nil || resp.IsError() {
		return gateway.HandshakeReply{}, fmt.Errorf("hitbtc symbol: %w", err)
	}
	return gateway.HandshakeReply{
		TickPrice: parseFloatOr(sym.TickSize, 0),
		TickSize:  parseFloatOr(sym.QuantityIncrement, 0),
		Base:      sym.BaseCurrency,
		Quote:     sym.QuoteCurrency,
		Symbol:    sym.ID,
		MakeFee:   parseFloatOr(sym.ProvideLiquidityRate, 0),
		TakeFee:   parseFloatOr(sym.TakeLiquidityRate, 0),
		Margin:    gw.Spot,
	}, nil
}

func (a *hitBtcAdapter) PlaceOrder(ctx context.Context, o *gw.Order) error {
	side := "buy"
	if o.Side == gw.Ask {
		side = "sell"
	}
	var result struct {
		ID int64 `json:"id"`
	}
	resp, err := a.rest.R().SetContext(ctx).SetResult(&result).SetFormData(map[string]string{
		"symbol": a.cfg.Symbol, "side": side,
		"quantity": formatAmount(o.Quantity), "price": formatAmount(o.Price),
		"clientOrderId": o.OrderID,
	}).Post("/order")
	if err != nil || resp.IsError() {
		return fmt.Errorf("hitbtc place order: %w", err)
	}
	o.ExchangeID = fmt.Sprintf("%d", result.ID)
	return nil
}

func (a *hitBtcAdapter) ReplaceOrder(ctx context.Context, o *gw.Order, price float64) error {
	if o.ExchangeID == "" {
		return fmt.Errorf("replace order: no exchange id")
	}
	resp, err := a.rest.R().SetContext(ctx).SetFormData(map[string]string{
		"price": formatAmount(price), "quantity": formatAmount(o.Quantity),
	}).Patch("/order/" + o.ExchangeID)
	if err != nil || resp.IsError() {
		return fmt.Errorf("hitbtc replace order: %w", err)
	}
	return nil
}

func (a *hitBtcAdapter) CancelOrder(ctx context.Context, o *gw.Order) error {
	if o.ExchangeID == "" {
		return fmt.Errorf("cancel order: no exchange id")
	}
	resp, err := a.rest.R().SetContext(ctx).Delete("/order/" + o.ExchangeID)
	if err != nil || resp.IsError() {
		return fmt.Errorf("hitbtc cancel order: %w", err)
	}
	return nil
}

func (a *hitBtcAdapter) CancelAll(ctx context.Context) error {
	resp, err := a.rest.R().SetContext(ctx).SetQueryParam("symbol", a.cfg.Symbol).Delete("/order")
	if err != nil || resp.IsError() {
		return fmt.Errorf("hitbtc cancel all: %w", err)
	}
	return nil
}

func (a *hitBtcAdapter) Wallets(ctx context.Context) (gw.Wallets, error) {
	var balances []struct {
		Currency  string `json:"currency"`
		Available string `json:"available"`
		Reserved  string `json:"reserved"`
	}
	resp, err := a.rest.R().SetContext(ctx).SetResult(&balances).Get("/trading/balance")
	if err != nil || resp.IsError() {
		return gw.Wallets{}, fmt.Errorf("hitbtc balance: %w", err)
	}
	var wallets gw.Wallets
	for _, b := range balances {
		amount := parseFloatOr(b.Available, 0)
		held := parseFloatOr(b.Reserved, 0)
		switch b.Currency {
		case a.cfg.Base:
			wallets.Base.Currency = b.Currency
			wallets.Base.Reset(amount, held)
		case a.cfg.Quote:
			wallets.Quote.Currency = b.Currency
			wallets.Quote.Reset(amount, held)
		}
	}
	return wallets, nil
}

func (a *hitBtcAdapter) Fees(ctx context.Context) (float64, float64, error) { return 0, 0, nil }

func formatAmount(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}
