package venue

import (
	"testing"

	"github.com/rs/zerolog"

	"exchangegw/gw"
)

func TestRegistryKnowsAllEightVenues(t *testing.T) {
	want := []string{"binance", "coinbase", "kraken", "bitmex", "hitbtc", "bequant", "bitfinex", "ethfinex", "kucoin", "poloniex"}
	for _, name := range want {
		if _, err := New(name, gw.Config{APIKey: "k", Secret: "s", Symbol: "BTCUSD"}, zerolog.Nop()); err != nil {
			t.Fatalf("New(%q) failed: %v", name, err)
		}
	}
}

func TestRegistryRejectsUnknownVenue(t *testing.T) {
	if _, err := New("nonexistent", gw.Config{}, zerolog.Nop()); err == nil {
		t.Fatalf("expected error for unknown venue")
	}
}

func TestKrakenAuthURLRewrite(t *testing.T) {
	got := krakenWSAuthURL("wss://ws.kraken.com")
	if got != "wss://ws-auth.kraken.com" {
		t.Fatalf("want wss://ws-auth.kraken.com, got %s", got)
	}
}

func TestPoloniexMarketReversesBaseQuote(t *testing.T) {
	got := poloniexMarket(gw.Config{Base: "BTC", Quote: "USDT"})
	if got != "USDT_BTC" {
		t.Fatalf("want USDT_BTC, got %s", got)
	}
}

func TestBitfinexTickPriceKeepsFiveSignificantDigits(t *testing.T) {
	if got := tickPrice(50000); got != 1 {
		t.Fatalf("want 1 for a price of 50000, got %v", got)
	}
	if got := tickPrice(500); got != 0.01 {
		t.Fatalf("want 0.01 for a price of 500, got %v", got)
	}
}

func TestHitBtcAndBequantAreDistinctNamesSameImplementation(t *testing.T) {
	hitbtc, err := New("hitbtc", gw.Config{Symbol: "BTCUSD"}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	bequant, err := New("bequant", gw.Config{Symbol: "BTCUSD"}, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if hitbtc.Name() == bequant.Name() {
		t.Fatalf("expected distinct names, got %s for both", hitbtc.Name())
	}
	if _, ok := bequant.(*hitBtcAdapter); !ok {
		t.Fatalf("expected bequant to use the hitbtc implementation, got %T", bequant)
	}
}
