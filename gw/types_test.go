package gw

import "testing"

func TestWalletResetInvariant(t *testing.T) {
	var w Wallet
	w.Reset(12.5, 3.5)
	if w.Total != w.Amount+w.Held {
		t.Fatalf("total invariant broken: total=%v amount=%v held=%v", w.Total, w.Amount, w.Held)
	}
	if w.Total != 16.0 {
		t.Fatalf("expected total 16.0, got %v", w.Total)
	}
}

func TestLevelsReduce(t *testing.T) {
	l := Levels{
		Bids: []Level{{Price: 3}, {Price: 2}, {Price: 1}},
		Asks: []Level{{Price: 4}, {Price: 5}, {Price: 6}},
	}
	l.Reduce(2)
	if len(l.Bids) != 2 || len(l.Asks) != 2 {
		t.Fatalf("expected truncation to 2/2, got %d/%d", len(l.Bids), len(l.Asks))
	}
}

func TestLevelsReduceUnlimited(t *testing.T) {
	l := Levels{Bids: []Level{{Price: 1}, {Price: 2}, {Price: 3}}}
	l.Reduce(0)
	if len(l.Bids) != 3 {
		t.Fatalf("maxLevel=0 must not truncate, got %d", len(l.Bids))
	}
}
