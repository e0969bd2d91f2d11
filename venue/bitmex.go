package venue

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"exchangegw/gateway"
	"exchangegw/gw"
)

// bitmexAdapter speaks Bitmex's REST API (HMAC-SHA256 over
// verb+path+expires+body) and its public/private WebSocket.
type bitmexAdapter struct {
	wsBase
	cfg  gw.Config
	rest *resty.Client
}

func newBitmex(cfg gw.Config, logger zerolog.Logger) (gateway.Adapter, error) {
	a := &bitmexAdapter{
		cfg:  cfg,
		rest: newRestClient("https://www.bitmex.com/api/v1"),
	}
	a.rest.OnBeforeRequest(a.sign)
	a.wsBase = wsBase{name: "bitmex", logger: logger}
	a.ws = newWS("wss://www.bitmex.com/realtime", a.subscribe, a.onMessage, nil, logger)
	return a, nil
}

func (a *bitmexAdapter) sign(c *resty.Client, r *resty.Request) error {
	expires := strconv.FormatInt(time.Now().Add(10*time.Second).Unix(), 10)
	verb := r.Method
	path := "/api/v1" + r.URL
	body := ""
	if r.Body != nil {
		if raw, err := json.Marshal(r.Body); err == nil {
			body = string(raw)
		}
	}
	mac := hmac.New(sha256.New, []byte(a.cfg.Secret))
	mac.Write([]byte(verb + path + expires + body))
	sig := hex.EncodeToString(mac.Sum(nil))

	r.SetHeader("api-expires", expires)
	r.SetHeader("api-key", a.cfg.APIKey)
	r.SetHeader("api-signature", sig)
	return nil
}

func (a *bitmexAdapter) subscribe() error {
	msg, _ := json.Marshal(map[string]any{"op": "subscribe", "args": []string{"quote:" + a.cfg.Symbol, "order:" + a.cfg.Symbol}})
	return a.ws.Emit(msg)
}

func (a *bitmexAdapter) onMessage(frame []byte) {
	var env struct {
		Table string          `json:"table"`
		Data  json.RawMessage `json:"data"`
	}
	if json.Unmarshal(frame, &env) != nil || a.sink == nil {
		return
	}

	switch env.Table {
	case "quote":
		var quotes []struct {
			BidPrice float64 `json:"bidPrice"`
			BidSize  float64 `json:"bidSize"`
			AskPrice float64 `json:"askPrice"`
			AskSize  float64 `json:"askSize"`
		}
		if json.Unmarshal(env.Data, &quotes) != nil || len(quotes) == 0 {
			return
		}
		q := quotes[len(quotes)-1]
		a.sink.PublishLevels(gw.Levels{
			Bids: []gw.Level{{Price: q.BidPrice, Size: q.BidSize}},
			Asks: []gw.Level{{Price: q.AskPrice, Size: q.AskSize}},
		})
	case "order":
		var orders []struct {
			ClOrdID   string  `json:"clOrdID"`
			OrderID   string  `json:"orderID"`
			OrdStatus string  `json:"ordStatus"`
			Price     float64 `json:"price"`
			Timestamp string  `json:"timestamp"`
		}
		if json.Unmarshal(env.Data, &orders) != nil {
			return
		}
		for _, o := range orders {
			if o.ClOrdID == "" {
				continue
			}
			a.sink.ConsumeUpdate(&gw.Order{
				OrderID:    o.ClOrdID,
				ExchangeID: o.OrderID,
				Price:      o.Price,
				Status:     bitmexStatus(o.OrdStatus),
				Time:       bitmexTimestamp(o.Timestamp),
			})
		}
	}
}

func bitmexStatus(ordStatus string) gw.Status {
	switch ordStatus {
	case "Filled", "Canceled", "Rejected", "Expired":
		return gw.Terminated
	case "New", "PartiallyFilled", "Replaced":
		return gw.Working
	default:
		return gw.Waiting
	}
}

func bitmexTimestamp(ts string) int64 {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return 0
	}
	return t.UnixMilli()
}

func (a *bitmexAdapter) Features() gw.FeatureFlags {
	return gw.FeatureFlags{AskForFees: true, AskForReplace: true, AskForCancelAll: true}
}

func (a *bitmexAdapter) Handshake(ctx context.Context, cfg gw.Config) (gateway.HandshakeReply, error) {
	var instruments []struct {
		Symbol      string  `json:"symbol"`
		TickSize    float64 `json:"tickSize"`
		LotSize     float64 `json:"lotSize"`
		RootSymbol  string  `json:"rootSymbol"`
		QuoteCurr   string  `json:"quoteCurrency"`
		IsInverse   bool    `json:"isInverse"`
		MakerFee    float64 `json:"makerFee"`
		TakerFee    float64 `json:"takerFee"`
	}
	resp, err := a.rest.R().SetContext(ctx).SetResult(&instruments).
		SetQueryParam("symbol", cfg.Symbol).Get("/instrument")
	if err != nil || resp.IsError() {
		return gateway.HandshakeReply{}, fmt.Errorf("bitmex instrument: %w", err)
	}
	if len(instruments) == 0 {
		return gateway.HandshakeReply{}, fmt.Errorf("bitmex instrument: %s not found", cfg.Symbol)
	}
	in := instruments[0]
	reply := gateway.HandshakeReply{
		TickPrice: in.TickSize,
		TickSize:  in.LotSize,
		Base:      in.RootSymbol,
		Quote:     in.QuoteCurr,
		Symbol:    in.Symbol,
		MakeFee:   in.MakerFee,
		TakeFee:   in.TakerFee,
	}
	if in.IsInverse {
		reply.Margin = gw.Inverse
	} else {
		reply.Margin = gw.Linear
	}
	return reply, nil
}

func (a *bitmexAdapter) PlaceOrder(ctx context.Context, o *gw.Order) error {
	side := "Buy"
	if o.Side == gw.Ask {
		side = "Sell"
	}
	ordType := "Limit"
	if o.Type == gw.Market {
		ordType = "Market"
	}
	var result struct {
		OrderID string `json:"orderID"`
	}
	resp, err := a.rest.R().SetContext(ctx).SetResult(&result).SetBody(map[string]any{
		"symbol": a.cfg.Symbol, "side": side, "orderQty": o.Quantity, "price": o.Price,
		"ordType": ordType, "clOrdID": o.OrderID, "timeInForce": tifString(o.TimeInForce),
	}).Post("/order")
	if err != nil || resp.IsError() {
		return fmt.Errorf("bitmex place order: %w (%s)", err, resp.String())
	}
	o.ExchangeID = result.OrderID
	return nil
}

func (a *bitmexAdapter) ReplaceOrder(ctx context.Context, o *gw.Order, price float64) error {
	if o.ExchangeID == "" {
		return fmt.Errorf("replace order: no exchange id")
	}
	resp, err := a.rest.R().SetContext(ctx).SetBody(map[string]any{
		"orderID": o.ExchangeID, "price": price,
	}).Put("/order")
	if err != nil || resp.IsError() {
		return fmt.Errorf("bitmex replace order: %w", err)
	}
	return nil
}

func (a *bitmexAdapter) CancelOrder(ctx context.Context, o *gw.Order) error {
	if o.ExchangeID == "" {
		return fmt.Errorf("cancel order: no exchange id")
	}
	resp, err := a.rest.R().SetContext(ctx).SetBody(map[string]any{"orderID": o.ExchangeID}).Delete("/order")
	if err != nil || resp.IsError() {
		return fmt.Errorf("bitmex cancel order: %w", err)
	}
	return nil
}

func (a *bitmexAdapter) CancelAll(ctx context.Context) error {
	resp, err := a.rest.R().SetContext(ctx).SetBody(map[string]any{"symbol": a.cfg.Symbol}).Delete("/order/all")
	if err != nil || resp.IsError() {
		return fmt.Errorf("bitmex cancel all: %w", err)
	}
	return nil
}

func (a *bitmexAdapter) Wallets(ctx context.Context) (gw.Wallets, error) {
	var margin struct {
		Currency     string  `json:"currency"`
		WalletBalance float64 `json:"walletBalance"`
		MarginBalance float64 `json:"marginBalance"`
	}
	resp, err := a.rest.R().SetContext(ctx).SetResult(&margin).SetQueryParam("currency", "all").Get("/user/margin")
	if err != nil || resp.IsError() {
		return gw.Wallets{}, fmt.Errorf("bitmex margin: %w", err)
	}
	var wallets gw.Wallets
	wallets.Quote.Currency = margin.Currency
	wallets.Quote.Reset(margin.WalletBalance/1e8, 0)
	return wallets, nil
}

func (a *bitmexAdapter) Fees(ctx context.Context) (float64, float64, error) {
	return 0, 0, nil
}

func tifString(tif gw.TimeInForce) string {
	switch tif {
	case gw.IOC:
		return "ImmediateOrCancel"
	case gw.FOK:
		return "FillOrKill"
	default:
		return "GoodTillCancel"
	}
}
