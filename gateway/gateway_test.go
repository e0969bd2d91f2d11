package gateway

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"exchangegw/gw"
)

type fakeAdapter struct {
	name        string
	connected   bool
	walletCalls int
	cancelAlls  int
	reply       HandshakeReply
	sink        EventSink
}

func (f *fakeAdapter) Name() string { return f.name }
func (f *fakeAdapter) Handshake(ctx context.Context, cfg gw.Config) (HandshakeReply, error) {
	return f.reply, nil
}
func (f *fakeAdapter) Connect(ctx context.Context) error { f.connected = true; return nil }
func (f *fakeAdapter) Disconnect()                       { f.connected = false }
func (f *fakeAdapter) Connected() bool                   { return f.connected }
func (f *fakeAdapter) Bind(sink EventSink)                { f.sink = sink }
func (f *fakeAdapter) PlaceOrder(ctx context.Context, o *gw.Order) error          { return nil }
func (f *fakeAdapter) ReplaceOrder(ctx context.Context, o *gw.Order, p float64) error { return nil }
func (f *fakeAdapter) CancelOrder(ctx context.Context, o *gw.Order) error         { return nil }
func (f *fakeAdapter) CancelAll(ctx context.Context) error                       { f.cancelAlls++; return nil }
func (f *fakeAdapter) Wallets(ctx context.Context) (gw.Wallets, error) {
	f.walletCalls++
	return gw.Wallets{}, nil
}
func (f *fakeAdapter) Fees(ctx context.Context) (float64, float64, error) { return 0, 0, nil }
func (f *fakeAdapter) Features() gw.FeatureFlags {
	return gw.FeatureFlags{AskForFees: true, AskForReplace: true, AskForCancelAll: true}
}

func TestBootstrapMergesHandshakeAndConnects(t *testing.T) {
	dir := t.TempDir()
	cfg := gw.Config{Symbol: "BTCUSD", Base: "BTC", Quote: "USD", CacheHome: dir}
	adapter := &fakeAdapter{name: "fake", reply: HandshakeReply{TickPrice: 0.5, TickSize: 0.001, MinSize: 1, Symbol: "BTCUSD", Base: "BTC", Quote: "USD"}}
	g := New(cfg, adapter, gw.SystemClock{}, zerolog.Nop())

	if adapter.sink == nil {
		t.Fatalf("expected New to Bind the gateway as the adapter's event sink")
	}
	if err := g.Bootstrap(context.Background(), false); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if !adapter.connected {
		t.Fatalf("expected adapter connected after bootstrap")
	}
	if g.Formatters.Price.Step() != 0.5 {
		t.Fatalf("expected formatters initialised from handshake, got step %v", g.Formatters.Price.Step())
	}
	if _, err := os.Stat(cachePath(dir, "fake", "BTC", "USD")); err != nil {
		t.Fatalf("expected handshake cache file written: %v", err)
	}
}

func TestOnTickPollsWalletsAndCancelAllOnCadence(t *testing.T) {
	cfg := gw.Config{Symbol: "BTCUSD"}
	adapter := &fakeAdapter{name: "fake", connected: true}
	g := New(cfg, adapter, gw.SystemClock{}, zerolog.Nop())

	for i := 0; i < cancelAllPollTicks; i++ {
		g.onTick(context.Background())
	}
	if adapter.walletCalls == 0 {
		t.Fatalf("expected at least one wallet poll over %d ticks", cancelAllPollTicks)
	}
	if adapter.cancelAlls != 1 {
		t.Fatalf("expected exactly one cancel-all poll over %d ticks, got %d", cancelAllPollTicks, adapter.cancelAlls)
	}
}

func TestConsumeUpdateRecordsLatencyOnce(t *testing.T) {
	cfg := gw.Config{Symbol: "BTCUSD"}
	adapter := &fakeAdapter{name: "fake"}
	g := New(cfg, adapter, gw.SystemClock{}, zerolog.Nop())

	g.orderBook["o1"] = &gw.Order{OrderID: "o1", Status: gw.Waiting, Time: 1000}
	g.ConsumeUpdate(&gw.Order{OrderID: "o1", Status: gw.Working, Time: 1300})

	o := g.orderBook["o1"]
	if o.Latency != 300 {
		t.Fatalf("expected latency 300, got %d", o.Latency)
	}

	g.ConsumeUpdate(&gw.Order{OrderID: "o1", Status: gw.Working, Time: 1900})
	if o.Latency != 300 {
		t.Fatalf("expected latency to stay one-shot at 300, got %d", o.Latency)
	}
	if o.Time != 1900 {
		t.Fatalf("expected time always overwritten, got %d", o.Time)
	}
}

func TestLatencyBuckets(t *testing.T) {
	g := &Gateway{}
	cases := map[int64]string{100: "very good", 499: "good", 699: "a bit bad", 999: "bad", 5000: "very bad"}
	for ms, want := range cases {
		if got := g.latency(ms); got != want {
			t.Fatalf("latency(%d) = %s, want %s", ms, got, want)
		}
	}
}

func TestPurgeSkipsCancelAllWhenDustybot(t *testing.T) {
	cfg := gw.Config{Symbol: "BTCUSD"}
	adapter := &fakeAdapter{name: "fake"}
	g := New(cfg, adapter, gw.SystemClock{}, zerolog.Nop())

	if err := g.Purge(context.Background(), true); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if adapter.cancelAlls != 0 {
		t.Fatalf("expected dustybot purge to skip cancel-all, got %d calls", adapter.cancelAlls)
	}
}

func TestPurgeCancelsAllWhenNotDustybot(t *testing.T) {
	cfg := gw.Config{Symbol: "BTCUSD"}
	adapter := &fakeAdapter{name: "fake"}
	g := New(cfg, adapter, gw.SystemClock{}, zerolog.Nop())

	if err := g.Purge(context.Background(), false); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if adapter.cancelAlls != 1 {
		t.Fatalf("expected exactly one cancel-all, got %d", adapter.cancelAlls)
	}
}

func TestDisclaimerGatedOnUnlock(t *testing.T) {
	cfg := gw.Config{Symbol: "BTCUSD", Margin: gw.Spot}
	adapter := &fakeAdapter{name: "fake"}
	g := New(cfg, adapter, gw.SystemClock{}, zerolog.Nop())

	if got := g.disclaimer(); strings.Contains(got, "licensed") {
		t.Fatalf("expected plain banner with Unlock unset, got %q", got)
	}

	g.cfg.Unlock = "acme corp"
	g.cfg.APIKey = "abcdefgh"
	got := g.disclaimer()
	if !strings.Contains(got, "abcd####") {
		t.Fatalf("expected apikey half-redacted as abcd####, got %q", got)
	}
}

func TestLevelsPublishedEmptyOnDisconnect(t *testing.T) {
	cfg := gw.Config{Symbol: "BTCUSD"}
	adapter := &fakeAdapter{name: "fake", connected: true}
	g := New(cfg, adapter, gw.SystemClock{}, zerolog.Nop())

	g.onTick(context.Background()) // establishes wasConnected=true
	g.PublishLevels(gw.Levels{Bids: []gw.Level{{Price: 1, Size: 1}}})

	adapter.connected = false
	g.onTick(context.Background())

	var got gw.Levels
	got.Bids = []gw.Level{{Price: 99}} // sentinel, must be overwritten by Drain
	g.Levels.Write(func(l gw.Levels) { got = l })
	g.Levels.Drain()

	if len(got.Bids) != 0 || len(got.Asks) != 0 {
		t.Fatalf("expected empty Levels published on disconnect, got %+v", got)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	cfg := gw.Config{Symbol: "BTCUSD"}
	adapter := &fakeAdapter{name: "fake", connected: true}
	g := New(cfg, adapter, gw.SystemClock{}, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := g.Run(ctx); err == nil {
		t.Fatalf("expected Run to return context error")
	}
	if adapter.connected {
		t.Fatalf("expected Disconnect called on shutdown")
	}
}
