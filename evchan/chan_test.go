package evchan

import "testing"

func TestOverwriteKeepsOnlyLatest(t *testing.T) {
	ch := New[int](Overwrite, 0)
	ch.TryWrite(1)
	ch.TryWrite(2)
	ch.TryWrite(3)

	var got []int
	ch.Write(func(v int) { got = append(got, v) })
	ch.Drain()

	if len(got) != 1 || got[0] != 3 {
		t.Fatalf("expected only the latest value [3], got %v", got)
	}
}

func TestFIFODeliversEveryEvent(t *testing.T) {
	ch := New[int](FIFO, 0)
	ch.TryWrite(1)
	ch.TryWrite(2)
	ch.TryWrite(3)

	var got []int
	ch.Write(func(v int) { got = append(got, v) })
	ch.Drain()

	if len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Fatalf("expected [1 2 3], got %v", got)
	}
}

func TestFIFODropsOldestPastDepth(t *testing.T) {
	ch := New[int](FIFO, 2)
	ch.TryWrite(1)
	ch.TryWrite(2)
	ch.TryWrite(3) // over depth 2: drops 1

	var got []int
	ch.Write(func(v int) { got = append(got, v) })
	ch.Drain()

	if len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Fatalf("expected [2 3] after dropping the oldest, got %v", got)
	}
}

func TestDrainWithNoConsumerDiscardsSafely(t *testing.T) {
	ch := New[int](FIFO, 0)
	ch.TryWrite(1)
	ch.Drain() // must not panic
	ch.Write(func(v int) {})
	ch.Drain() // second drain after teardown-like sequence: no leftover value
}

func TestAskForAndProducer(t *testing.T) {
	ch := New[int](Overwrite, 0)
	called := false
	ch.WaitFor(func() []int {
		called = true
		return []int{42}
	})

	if ch.Pending() {
		t.Fatalf("should not be pending before AskFor")
	}
	ch.AskFor()
	if !ch.Pending() {
		t.Fatalf("expected Pending true after AskFor")
	}
	if ch.Pending() {
		t.Fatalf("Pending must clear itself after being observed")
	}

	vals := ch.Producer()()
	if !called || len(vals) != 1 || vals[0] != 42 {
		t.Fatalf("producer not invoked correctly: called=%v vals=%v", called, vals)
	}
}
