package venue

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
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
	"exchangegw/transport"
)

// krakenAdapter uses the WS-twin transport: a public feed plus an
// authenticated sibling whose URL is the public one with "-auth"
// inserted right after "ws." — krakenWSAuthURL implements that rewrite.
// REST auth is API-Key/API-Sign headers, API-Sign = base64(hmac-sha512(
// path + sha256(nonce+body), base64-decoded secret)).
type krakenAdapter struct {
	name string
	cfg  gw.Config
	rest *resty.Client
	twin *transport.WSTwin
	sink gateway.EventSink
}

func newKraken(cfg gw.Config, logger zerolog.Logger) (gateway.Adapter, error) {
	a := &krakenAdapter{name: "kraken", cfg: cfg, rest: newRestClient("https://api.kraken.com")}
	a.rest.OnBeforeRequest(a.sign)
	a.twin = transport.NewWSTwin(
		"wss://ws.kraken.com",
		krakenWSAuthURL,
		a.subscribePublic, a.subscribeAuth,
		a.onPublicMessage, a.onAuthMessage,
		nil,
		logger,
	)
	return a, nil
}

// krakenWSAuthURL inserts "-auth" right after "ws." in the public URL,
// e.g. "wss://ws.kraken.com" -> "wss://ws-auth.kraken.com".
func krakenWSAuthURL(public string) string {
	const marker = "ws."
	idx := strings.Index(public, marker)
	if idx < 0 {
		return public
	}
	return public[:idx] + "ws-auth." + public[idx+len(marker):]
}

func (a *krakenAdapter) Name() string                      { return a.name }
func (a *krakenAdapter) Connect(ctx context.Context) error { return a.twin.Connect() }
func (a *krakenAdapter) Disconnect()                       { a.twin.Disconnect() }
func (a *krakenAdapter) Connected() bool                   { return a.twin.Connected() }
func (a *krakenAdapter) Bind(sink gateway.EventSink)       { a.sink = sink }

func (a *krakenAdapter) Features() gw.FeatureFlags {
	return gw.FeatureFlags{AskForFees: true, AskForReplace: false, AskForCancelAll: true}
}

func (a *krakenAdapter) subscribePublic() error {
	msg, _ := json.Marshal(map[string]any{
		"event": "subscribe", "pair": []string{a.cfg.Symbol},
		"subscription": map[string]string{"name": "book"},
	})
	return a.twin.EmitPublic(msg)
}

func (a *krakenAdapter) subscribeAuth() error {
	msg, _ := json.Marshal(map[string]any{"event": "subscribe", "subscription": map[string]string{"name": "openOrders"}})
	return a.twin.EmitAuth(msg)
}

// onPublicMessage decodes Kraken's book channel frames: a trailing
// [channelName, pair] pair wrapping one or more {"as"/"bs"} snapshot or
// {"a"/"b"} update objects, each a list of [price, volume, timestamp]
// string triples. Non-array frames (subscriptionStatus, heartbeat) are
// JSON objects and are ignored.
func (a *krakenAdapter) onPublicMessage(frame []byte) {
	if a.sink == nil || len(frame) == 0 || frame[0] != '[' {
		return
	}
	var raw []json.RawMessage
	if json.Unmarshal(frame, &raw) != nil || len(raw) < 4 {
		return
	}
	end := len(raw) - 2
	var levels gw.Levels
	for _, part := range raw[1:end] {
		var book struct {
			As [][3]string `json:"as"`
			Bs [][3]string `json:"bs"`
			A  [][3]string `json:"a"`
			B  [][3]string `json:"b"`
		}
		if json.Unmarshal(part, &book) != nil {
			continue
		}
		levels.Asks = append(levels.Asks, krakenLevels(book.As)...)
		levels.Asks = append(levels.Asks, krakenLevels(book.A)...)
		levels.Bids = append(levels.Bids, krakenLevels(book.Bs)...)
		levels.Bids = append(levels.Bids, krakenLevels(book.B)...)
	}
	if len(levels.Bids) > 0 || len(levels.Asks) > 0 {
		a.sink.PublishLevels(levels)
	}
}

func krakenLevels(rows [][3]string) []gw.Level {
	out := make([]gw.Level, 0, len(rows))
	for _, r := range rows {
		out = append(out, gw.Level{Price: parseFloatOr(r[0], 0), Size: parseFloatOr(r[1], 0)})
	}
	return out
}

// onAuthMessage decodes openOrders updates: [[{txid: {status, avg_price,
// ...}}, ...], "openOrders"].
func (a *krakenAdapter) onAuthMessage(frame []byte) {
	if a.sink == nil || len(frame) == 0 || frame[0] != '[' {
		return
	}
	var raw []json.RawMessage
	if json.Unmarshal(frame, &raw) != nil || len(raw) < 2 {
		return
	}
	var channel string
	if json.Unmarshal(raw[len(raw)-1], &channel) != nil || channel != "openOrders" {
		return
	}
	var entries []map[string]struct {
		Status   string `json:"status"`
		AvgPrice string `json:"avg_price"`
	}
	if json.Unmarshal(raw[0], &entries) != nil {
		return
	}
	for _, entry := range entries {
		for txid, o := range entry {
			a.sink.ConsumeUpdate(&gw.Order{
				ExchangeID: txid,
				Price:      parseFloatOr(o.AvgPrice, 0),
				Status:     krakenStatus(o.Status),
			})
		}
	}
}

func krakenStatus(status string) gw.Status {
	switch status {
	case "closed", "canceled", "expired":
		return gw.Terminated
	case "open":
		return gw.Working
	default:
		return gw.Waiting
	}
}

func (a *krakenAdapter) sign(c *resty.Client, r *resty.Request) error {
	nonce := strconv.FormatInt(time.Now().UnixNano()/1e6, 10)
	path := r.URL

	body := url.Values{}
	for k, v := range r.FormData {
		if len(v) > 0 {
			body.Set(k, v[0])
		}
	}
	body.Set("nonce", nonce)
	r.SetFormData(map[string]string{"nonce": nonce})
	payload := body.Encode()

	sig := krakenSign(a.cfg.Secret, path, nonce, payload)
	r.SetHeader("API-Key", a.cfg.APIKey)
	r.SetHeader("API-Sign", sig)
	return nil
}

// krakenSign implements Kraken's API-Sign: base64(hmac-sha512(path +
// sha256(nonce+postdata), base64-decoded secret)).
func krakenSign(secret, path, nonce, postdata string) string {
	shaSum := sha256.Sum256([]byte(nonce + postdata))
	decodedSecret, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		decodedSecret = []byte(secret)
	}
	mac := hmac.New(sha512.New, decodedSecret)
	mac.Write([]byte(path))
	mac.Write(shaSum[:])
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (a *krakenAdapter) Handshake(ctx context.Context, cfg gw.Config) (gateway.HandshakeReply, error) {
	var result struct {
		Result map[string]struct {
			Base         string   `json:"base"`
			Quote        string   `json:"quote"`
			PairDecimals int      `json:"pair_decimals"`
			LotDecimals  int      `json:"lot_decimals"`
			Fees         [][2]float64 `json:"fees"`
			FeesMaker    [][2]float64 `json:"fees_maker"`
		} `json:"result"`
	}
	resp, err := a.rest.R().SetContext(ctx).SetResult(&result).
		SetQueryParam("pair", cfg.Symbol).Get("/0/public/AssetPairs")
	if err != nil || resp.IsError() {
		return gateway.HandshakeReply{}, fmt.Errorf("kraken AssetPairs: %w", err)
	}
	for pair, info := range result.Result {
		reply := gateway.HandshakeReply{
			TickPrice: 1 / pow10(info.PairDecimals),
			TickSize:  1 / pow10(info.LotDecimals),
			Base:      info.Base,
			Quote:     info.Quote,
			Symbol:    pair,
			Margin:    gw.Spot,
		}
		if len(info.FeesMaker) > 0 {
			reply.MakeFee = info.FeesMaker[0][1] / 100
		}
		if len(info.Fees) > 0 {
			reply.TakeFee = info.Fees[0][1] / 100
		}
		return reply, nil
	}
	return gateway.HandshakeReply{}, fmt.Errorf("kraken AssetPairs: %s not found", cfg.Symbol)
}

func pow10(n int) float64 {
	v := 1.0
	for i := 0; i < n; i++ {
		v *= 10
	}
	return v
}

func (a *krakenAdapter) PlaceOrder(ctx context.Context, o *gw.Order) error {
	side := "buy"
	if o.Side == gw.Ask {
		side = "sell"
	}
	orderType := "limit"
	if o.Type == gw.Market {
		orderType = "market"
	}
	var result struct {
		Result struct {
			TxID []string `json:"txid"`
		} `json:"result"`
		Error []string `json:"error"`
	}
	resp, err := a.rest.R().SetContext(ctx).SetResult(&result).SetFormData(map[string]string{
		"pair": a.cfg.Symbol, "type": side, "ordertype": orderType,
		"price": formatAmount(o.Price), "volume": formatAmount(o.Quantity),
		"userref": o.OrderID,
	}).Post("/0/private/AddOrder")
	if err != nil || resp.IsError() || len(result.Error) > 0 {
		return fmt.Errorf("kraken AddOrder: %w %v", err, result.Error)
	}
	if len(result.Result.TxID) > 0 {
		o.ExchangeID = result.Result.TxID[0]
	}
	return nil
}

func (a *krakenAdapter) ReplaceOrder(ctx context.Context, o *gw.Order, price float64) error {
	return fmt.Errorf("kraken: replace not supported, cancel and re-place")
}

func (a *krakenAdapter) CancelOrder(ctx context.Context, o *gw.Order) error {
	if o.ExchangeID == "" {
		return fmt.Errorf("cancel order: no exchange id")
	}
	resp, err := a.rest.R().SetContext(ctx).SetFormData(map[string]string{"txid": o.ExchangeID}).Post("/0/private/CancelOrder")
	if err != nil || resp.IsError() {
		return fmt.Errorf("kraken CancelOrder: %w", err)
	}
	return nil
}

func (a *krakenAdapter) CancelAll(ctx context.Context) error {
	resp, err := a.rest.R().SetContext(ctx).Post("/0/private/CancelAll")
	if err != nil || resp.IsError() {
		return fmt.Errorf("kraken CancelAll: %w", err)
	}
	return nil
}

func (a *krakenAdapter) Wallets(ctx context.Context) (gw.Wallets, error) {
	var result struct {
		Result map[string]string `json:"result"`
	}
	resp, err := a.rest.R().SetContext(ctx).SetResult(&result).Post("/0/private/Balance")
	if err != nil || resp.IsError() {
		return gw.Wallets{}, fmt.Errorf("kraken Balance: %w", err)
	}
	var wallets gw.Wallets
	if v, ok := result.Result[a.cfg.Base]; ok {
		wallets.Base.Currency = a.cfg.Base
		wallets.Base.Reset(parseFloatOr(v, 0), 0)
	}
	if v, ok := result.Result[a.cfg.Quote]; ok {
		wallets.Quote.Currency = a.cfg.Quote
		wallets.Quote.Reset(parseFloatOr(v, 0), 0)
	}
	return wallets, nil
}

func (a *krakenAdapter) Fees(ctx context.Context) (float64, float64, error) { return 0, 0, nil }
