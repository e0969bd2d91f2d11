package venue

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"exchangegw/gateway"
	"exchangegw/gw"
)

// bitfinexTickSize is the order-size step, hardcoded to 1e-8 for every
// symbol rather than read from an exchangeInfo field (Bitfinex doesn't
// publish a tick size endpoint).
const bitfinexTickSize = 1e-8

// bitfinexAdapter speaks Bitfinex's v2 REST+WS API, authenticated via
// bfx-* headers (bfx-apikey/bfx-nonce/bfx-signature). Ethfinex is the
// same API under Bitfinex's Ethereum-token-focused brand, selected by a
// constructor option rather than a distinct type; the option changes only
// the adapter's name, and both use Bitfinex's REST and WS URLs.
type bitfinexAdapter struct {
	wsBase
	cfg      gw.Config
	rest     *resty.Client
	ethfinex bool
}

func newBitfinex(cfg gw.Config, logger zerolog.Logger, ethfinex bool) (gateway.Adapter, error) {
	name := "bitfinex"
	if ethfinex {
		name = "ethfinex"
	}
	a := &bitfinexAdapter{cfg: cfg, ethfinex: ethfinex, rest: newRestClient("https://api.bitfinex.com")}
	a.rest.OnBeforeRequest(a.sign)
	a.wsBase = wsBase{name: name, logger: logger}
	a.ws = newWS("wss://api-pub.bitfinex.com/ws/2", a.subscribe, a.onMessage, nil, logger)
	return a, nil
}

func (a *bitfinexAdapter) sign(c *resty.Client, r *resty.Request) error {
	nonce := strconv.FormatInt(time.Now().UnixNano(), 10)
	body := ""
	if r.Body != nil {
		if raw, err := json.Marshal(r.Body); err == nil {
			body = string(raw)
		}
	}
	payload := "/api" + r.URL + nonce + body
	sig := hmacSHA256Hex(a.cfg.Secret, payload)

	r.SetHeader("bfx-apikey", a.cfg.APIKey)
	r.SetHeader("bfx-nonce", nonce)
	r.SetHeader("bfx-signature", sig)
	return nil
}

func (a *bitfinexAdapter) Features() gw.FeatureFlags {
	return gw.FeatureFlags{AskForFees: true, AskForReplace: true, AskForCancelAll: true}
}

func (a *bitfinexAdapter) subscribe() error {
	msg, _ := json.Marshal(map[string]any{"event": "subscribe", "channel": "book", "symbol": "t" + a.cfg.Symbol})
	return a.ws.Emit(msg)
}

// onMessage decodes Bitfinex's positional book channel frames:
// [chanId, [[price, count, amount], ...]] for a snapshot, or
// [chanId, [price, count, amount]] for a single update. count == 0
// marks a deletion (price level removed); amount's sign is the side.
func (a *bitfinexAdapter) onMessage(frame []byte) {
	if a.sink == nil || len(frame) == 0 || frame[0] == '{' {
		return // control frames (subscribed/info/error) are JSON objects
	}

	var raw []json.RawMessage
	if json.Unmarshal(frame, &raw) != nil || len(raw) < 2 {
		return
	}
	var tag string
	if json.Unmarshal(raw[1], &tag) == nil {
		return // "hb" heartbeat
	}

	if snapshot, err := decodeBitfinexTriples(raw[1]); err == nil {
		levels := bitfinexLevels(snapshot)
		a.sink.PublishLevels(levels)
	}
}

func decodeBitfinexTriples(data json.RawMessage) ([][3]float64, error) {
	var snapshot [][3]float64
	if err := json.Unmarshal(data, &snapshot); err == nil {
		return snapshot, nil
	}
	var single [3]float64
	if err := json.Unmarshal(data, &single); err != nil {
		return nil, err
	}
	return [][3]float64{single}, nil
}

func bitfinexLevels(triples [][3]float64) gw.Levels {
	var levels gw.Levels
	for _, t := range triples {
		price, count, amount := t[0], t[1], t[2]
		size := amount
		if size < 0 {
			size = -size
		}
		if count == 0 {
			size = 0 // deletion marker
		}
		if amount > 0 {
			levels.Bids = append(levels.Bids, gw.Level{Price: price, Size: size})
		} else {
			levels.Asks = append(levels.Asks, gw.Level{Price: price, Size: size})
		}
	}
	return levels
}

// tickPrice implements the original's tickPrice() formula,
// 10^(max(floor(log10(price)), -4) - 4): a step that keeps the price in
// 5 significant digits, rather than a fixed decimal step.
func tickPrice(price float64) float64 {
	exp := -4
	if price > 0 {
		if e := int(math.Floor(math.Log10(price))); e > exp {
			exp = e
		}
	}
	return math.Pow10(exp - 4)
}

func (a *bitfinexAdapter) Handshake(ctx context.Context, cfg gw.Config) (gateway.HandshakeReply, error) {
	var ticker []float64
	resp, err := a.rest.R().SetContext(ctx).SetResult(&ticker).Get("/v2/ticker/t" + cfg.Symbol)
	if err != nil || resp.IsError() || len(ticker) < 7 {
		return gateway.HandshakeReply{}, fmt.Errorf("bitfinex ticker: %w", err)
	}
	lastPrice := ticker[6]
	return gateway.HandshakeReply{
		TickPrice: tickPrice(lastPrice),
		TickSize:  bitfinexTickSize,
		Symbol:    cfg.Symbol,
		Margin:    gw.Spot,
	}, nil
}

func (a *bitfinexAdapter) PlaceOrder(ctx context.Context, o *gw.Order) error {
	amount := o.Quantity
	if o.Side == gw.Ask {
		amount = -amount
	}
	orderType := "EXCHANGE LIMIT"
	if o.Type == gw.Market {
		orderType = "EXCHANGE MARKET"
	}
	var result []any
	resp, err := a.rest.R().SetContext(ctx).SetResult(&result).SetBody(map[string]any{
		"type": orderType, "symbol": "t" + a.cfg.Symbol,
		"amount": strconv.FormatFloat(amount, 'f', -1, 64),
		"price":  strconv.FormatFloat(o.Price, 'f', -1, 64),
		"cid":    o.OrderID,
	}).Post("/v2/auth/w/order/submit")
	if err != nil || resp.IsError() {
		return fmt.Errorf("bitfinex place order: %w", err)
	}
	o.ExchangeID = o.OrderID // Bitfinex echoes cid; exchange id resolved async via consume()
	return nil
}

func (a *bitfinexAdapter) ReplaceOrder(ctx context.Context, o *gw.Order, price float64) error {
	if o.ExchangeID == "" {
		return fmt.Errorf("replace order: no exchange id")
	}
	resp, err := a.rest.R().SetContext(ctx).SetBody(map[string]any{
		"id": o.ExchangeID, "price": strconv.FormatFloat(price, 'f', -1, 64),
	}).Post("/v2/auth/w/order/update")
	if err != nil || resp.IsError() {
		return fmt.Errorf("bitfinex replace order: %w", err)
	}
	return nil
}

func (a *bitfinexAdapter) CancelOrder(ctx context.Context, o *gw.Order) error {
	if o.ExchangeID == "" {
		return fmt.Errorf("cancel order: no exchange id")
	}
	resp, err := a.rest.R().SetContext(ctx).SetBody(map[string]any{"id": o.ExchangeID}).Post("/v2/auth/w/order/cancel")
	if err != nil || resp.IsError() {
		return fmt.Errorf("bitfinex cancel order: %w", err)
	}
	return nil
}

func (a *bitfinexAdapter) CancelAll(ctx context.Context) error {
	resp, err := a.rest.R().SetContext(ctx).SetBody(map[string]any{"all": 1}).Post("/v2/auth/w/order/cancel/multi")
	if err != nil || resp.IsError() {
		return fmt.Errorf("bitfinex cancel all: %w", err)
	}
	return nil
}

func (a *bitfinexAdapter) Wallets(ctx context.Context) (gw.Wallets, error) {
	var rows [][]any
	resp, err := a.rest.R().SetContext(ctx).SetResult(&rows).Post("/v2/auth/r/wallets")
	if err != nil || resp.IsError() {
		return gw.Wallets{}, fmt.Errorf("bitfinex wallets: %w", err)
	}
	var wallets gw.Wallets
	for _, row := range rows {
		if len(row) < 3 {
			continue
		}
		currency, _ := row[1].(string)
		amount, _ := row[2].(float64)
		switch currency {
		case a.cfg.Base:
			wallets.Base.Currency = currency
			wallets.Base.Reset(amount, 0)
		case a.cfg.Quote:
			wallets.Quote.Currency = currency
			wallets.Quote.Reset(amount, 0)
		}
	}
	return wallets, nil
}

func (a *bitfinexAdapter) Fees(ctx context.Context) (float64, float64, error) { return 0, 0, nil }
