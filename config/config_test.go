package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "exchange: binance\nsymbol: BTCUSDT\n")
	f, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if f.CacheHome != "./.cache" {
		t.Fatalf("expected default cache_home, got %s", f.CacheHome)
	}
	if f.MaxLevel != 10 {
		t.Fatalf("expected default max_level 10, got %d", f.MaxLevel)
	}
}

func TestLoadRejectsMissingExchange(t *testing.T) {
	path := writeConfig(t, "symbol: BTCUSDT\n")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for missing exchange")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, "exchange: binance\nsymbol: BTCUSDT\nsecret: filesecret\n")
	t.Setenv("GW_SECRET", "envsecret")
	f, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if f.Secret != "envsecret" {
		t.Fatalf("expected env override to win, got %s", f.Secret)
	}
}

func TestToGatewayConfigProjectsFields(t *testing.T) {
	f := File{Exchange: "binance", Symbol: "BTCUSDT", Base: "BTC", Quote: "USDT", MinSize: 0.001}
	cfg := f.ToGatewayConfig()
	if cfg.Exchange != "binance" || cfg.Symbol != "BTCUSDT" || cfg.MinSize != 0.001 {
		t.Fatalf("unexpected projection: %+v", cfg)
	}
}
