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
)

// kuCoinAdapter speaks KuCoin's v2 REST+WS API: KC-API-* headers with
// the signature over base64(hmac(timestamp+method+path+body)), and the
// passphrase itself hmac'd again with the secret (v2 signing).
type kuCoinAdapter struct {
	wsBase
	cfg  gw.Config
	rest *resty.Client
}

func newKuCoin(cfg gw.Config, logger zerolog.Logger) (gateway.Adapter, error) {
	a := &kuCoinAdapter{cfg: cfg, rest: newRestClient("https://api.kucoin.com")}
	a.rest.OnBeforeRequest(a.sign)
	a.wsBase = wsBase{name: "kucoin", logger: logger}
	// KuCoin's WS endpoint is allocated per-session via a REST bullet
	// token; the adapter resolves it lazily on first Connect.
	return a, nil
}

func (a *kuCoinAdapter) Connect(ctx context.Context) error {
	if a.ws == nil {
		token, url, err := a.bullet(ctx)
		if err != nil {
			return fmt.Errorf("kucoin bullet token: %w", err)
		}
		a.ws = newWS(fmt.Sprintf("%s?token=%s", url, token), a.subscribe, a.onMessage, nil, a.logger)
	}
	return a.ws.Connect()
}

func (a *kuCoinAdapter) bullet(ctx context.Context) (token, endpoint string, err error) {
	var result struct {
		Data struct {
			Token           string `json:"token"`
			InstanceServers []struct {
				Endpoint string `json:"endpoint"`
			} `json:"instanceServers"`
		} `json:"data"`
	}
	resp, err := a.rest.R().SetContext(ctx).SetResult(&result).Post("/api/v1/bullet-public")
	if err != nil || resp.IsError() {
		return "", "", fmt.Errorf("bullet-public: %w", err)
	}
	if len(result.Data.InstanceServers) == 0 {
		return "", "", fmt.Errorf("bullet-public: no instance servers")
	}
	return result.Data.Token, result.Data.InstanceServers[0].Endpoint, nil
}

func (a *kuCoinAdapter) sign(c *resty.Client, r *resty.Request) error {
	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	body := ""
	if r.Body != nil {
		if raw, err := json.Marshal(r.Body); err == nil {
			body = string(raw)
		}
	}
	path := r.URL
	prefix := timestamp + r.Method + path + body
	sig := hmacSHA256Base64(a.cfg.Secret, prefix)
	passSig := hmacSHA256Base64(a.cfg.Secret, a.cfg.Pass)

	r.SetHeader("KC-API-KEY", a.cfg.APIKey)
	r.SetHeader("KC-API-SIGN", sig)
	r.SetHeader("KC-API-TIMESTAMP", timestamp)
	r.SetHeader("KC-API-PASSPHRASE", passSig)
	r.SetHeader("KC-API-KEY-VERSION", "2")
	return nil
}

func (a *kuCoinAdapter) Features() gw.FeatureFlags {
	return gw.FeatureFlags{AskForFees: true, AskForReplace: false, AskForCancelAll: true}
}

func (a *kuCoinAdapter) subscribe() error {
	msg, _ := json.Marshal(map[string]any{
		"id": 1, "type": "subscribe",
		"topic": "/market/level2:" + a.cfg.Symbol, "privateChannel": false, "response": true,
	})
	return a.ws.Emit(msg)
}

func (a *kuCoinAdapter) onMessage(frame []byte) {
	var env struct {
		Subject string `json:"subject"`
		Data    struct {
			Changes struct {
				Asks [][]string `json:"asks"`
				Bids [][]string `json:"bids"`
			} `json:"changes"`
		} `json:"data"`
	}
	if json.Unmarshal(frame, &env) != nil || a.sink == nil || env.Subject != "trade.l2update" {
		return
	}
	levels := gw.Levels{
		Bids: make([]gw.Level, 0, len(env.Data.Changes.Bids)),
		Asks: make([]gw.Level, 0, len(env.Data.Changes.Asks)),
	}
	for _, b := range env.Data.Changes.Bids {
		if len(b) < 2 {
			continue
		}
		levels.Bids = append(levels.Bids, gw.Level{Price: parseFloatOr(b[0], 0), Size: parseFloatOr(b[1], 0)})
	}
	for _, ask := range env.Data.Changes.Asks {
		if len(ask) < 2 {
			continue
		}
		levels.Asks = append(levels.Asks, gw.Level{Price: parseFloatOr(ask[0], 0), Size: parseFloatOr(ask[1], 0)})
	}
	a.sink.PublishLevels(levels)
}

func (a *kuCoinAdapter) Handshake(ctx context.Context, cfg gw.Config) (gateway.HandshakeReply, error) {
	var result struct {
		Data struct {
			BaseCurrency   string `json:"baseCurrency"`
			QuoteCurrency  string `json:"quoteCurrency"`
			BaseIncrement  string `json:"baseIncrement"`
			PriceIncrement string `json:"priceIncrement"`
			BaseMinSize    string `json:"baseMinSize"`
		} `json:"data"`
	}
	resp, err := a.rest.R().SetContext(ctx).SetResult(&result).
		SetQueryParam("symbol", cfg.Symbol).Get("/api/v1/symbols/" + cfg.Symbol)
	if err != nil || resp.IsError() {
		return gateway.HandshakeReply{}, fmt.Errorf("kucoin symbol: %w", err)
	}
	d := result.Data
	return gateway.HandshakeReply{
		TickPrice: parseFloatOr(d.PriceIncrement, 0),
		TickSize:  parseFloatOr(d.BaseIncrement, 0),
		MinSize:   parseFloatOr(d.BaseMinSize, 0),
		Base:      d.BaseCurrency,
		Quote:     d.QuoteCurrency,
		Symbol:    cfg.Symbol,
		Margin:    gw.Spot,
	}, nil
}

func (a *kuCoinAdapter) PlaceOrder(ctx context.Context, o *gw.Order) error {
	side := "buy"
	if o.Side == gw.Ask {
		side = "sell"
	}
	orderType := "limit"
	if o.Type == gw.Market {
		orderType = "market"
	}
	var result struct {
		Data struct {
			OrderID string `json:"orderId"`
		} `json:"data"`
	}
	resp, err := a.rest.R().SetContext(ctx).SetResult(&result).SetBody(map[string]any{
		"clientOid": o.OrderID, "side": side, "symbol": a.cfg.Symbol, "type": orderType,
		"price": formatAmount(o.Price), "size": formatAmount(o.Quantity),
	}).Post("/api/v1/orders")
	if err != nil || resp.IsError() {
		return fmt.Errorf("kucoin place order: %w", err)
	}
	o.ExchangeID = result.Data.OrderID
	return nil
}

func (a *kuCoinAdapter) ReplaceOrder(ctx context.Context, o *gw.Order, price float64) error {
	// KuCoin has no native amend; the gateway's feature flags report
	// AskForReplace=false so callers are expected to cancel-then-place.
	return fmt.Errorf("kucoin: replace not supported, cancel and re-place")
}

func (a *kuCoinAdapter) CancelOrder(ctx context.Context, o *gw.Order) error {
	if o.ExchangeID == "" {
		return fmt.Errorf("cancel order: no exchange id")
	}
	resp, err := a.rest.R().SetContext(ctx).Delete("/api/v1/orders/" + o.ExchangeID)
	if err != nil || resp.IsError() {
		return fmt.Errorf("kucoin cancel order: %w", err)
	}
	return nil
}

func (a *kuCoinAdapter) CancelAll(ctx context.Context) error {
	resp, err := a.rest.R().SetContext(ctx).SetQueryParam("symbol", a.cfg.Symbol).Delete("/api/v1/orders")
	if err != nil || resp.IsError() {
		return fmt.Errorf("kucoin cancel all: %w", err)
	}
	return nil
}

func (a *kuCoinAdapter) Wallets(ctx context.Context) (gw.Wallets, error) {
	var result struct {
		Data []struct {
			Currency  string `json:"currency"`
			Available string `json:"available"`
			Holds     string `json:"holds"`
		} `json:"data"`
	}
	resp, err := a.rest.R().SetContext(ctx).SetResult(&result).
		SetQueryParam("type", "trade").Get("/api/v1/accounts")
	if err != nil || resp.IsError() {
		return gw.Wallets{}, fmt.Errorf("kucoin accounts: %w", err)
	}
	var wallets gw.Wallets
	for _, acc := range result.Data {
		amount := parseFloatOr(acc.Available, 0)
		held := parseFloatOr(acc.Holds, 0)
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

func (a *kuCoinAdapter) Fees(ctx context.Context) (float64, float64, error) { return 0, 0, nil }
