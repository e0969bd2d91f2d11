package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"exchangegw/gw"
	"exchangegw/metrics"
)

// freshnessWindow is how long a cached handshake reply is trusted before
// a fresh REST call is forced: 7 hours, in milliseconds.
const freshnessWindow = 25_200_000

type cachedHandshake struct {
	SavedAt int64          `json:"savedAt"`
	Reply   HandshakeReply `json:"reply"`
}

func cachePath(home, venue, base, quote string) string {
	return filepath.Join(home, "cache", fmt.Sprintf("handshake.%s.%s.%s.json", venue, base, quote))
}

// resolveHandshake loads a fresh cached reply if one exists within
// freshnessWindow of clk.Now() and nocache is false, otherwise calls
// adapter.Handshake and atomically persists the result (temp file +
// rename, so a crash mid write never leaves a corrupt cache on disk).
func resolveHandshake(ctx context.Context, adapter Adapter, cfg gw.Config, clk gw.Clock, nocache bool) (HandshakeReply, error) {
	path := cachePath(cfg.CacheHome, adapter.Name(), cfg.Base, cfg.Quote)
	now := gw.Millis(clk)

	if !nocache {
		if raw, err := os.ReadFile(path); err == nil {
			var cached cachedHandshake
			if json.Unmarshal(raw, &cached) == nil && now-cached.SavedAt < freshnessWindow {
				metrics.RecordHandshakeCache(adapter.Name(), true)
				return cached.Reply, nil
			}
		}
	}

	metrics.RecordHandshakeCache(adapter.Name(), false)
	reply, err := adapter.Handshake(ctx, cfg)
	if err != nil {
		return HandshakeReply{}, fmt.Errorf("handshake %s: %w", adapter.Name(), err)
	}

	if cfg.CacheHome != "" && handshakeComplete(reply) {
		if err := saveHandshakeCache(path, cachedHandshake{SavedAt: now, Reply: reply}); err != nil {
			return reply, fmt.Errorf("cache handshake: %w", err)
		}
	}
	return reply, nil
}

// handshakeComplete reports whether a reply is trustworthy enough to
// cache: non-zero ticks and a resolved base/quote pair.
func handshakeComplete(r HandshakeReply) bool {
	return r.TickPrice > 0 && r.TickSize > 0 && r.MinSize > 0 && r.Base != "" && r.Quote != ""
}

func saveHandshakeCache(path string, entry cachedHandshake) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
