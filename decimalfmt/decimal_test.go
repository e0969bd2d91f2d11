package decimalfmt

import "testing"

func TestStrTrimsTrailingZeros(t *testing.T) {
	var d Decimal
	d.Precision(0.01)
	if got := d.Str(1.50); got != "1.5" {
		t.Fatalf("want 1.5, got %s", got)
	}
	if got := d.Str(1.0); got != "1" {
		t.Fatalf("want 1, got %s", got)
	}
}

func TestStrRoundsToStep(t *testing.T) {
	var d Decimal
	d.Precision(0.0001)
	if got := d.Str(1.23456789); got != "1.2346" {
		t.Fatalf("want 1.2346, got %s", got)
	}
}

func TestStrRoundTripAtTickPrice(t *testing.T) {
	var d Decimal
	d.Precision(0.5)
	x := 101.5
	s := d.Str(x)
	if s != "101.5" {
		t.Fatalf("want 101.5, got %s", s)
	}
}

func TestRoundToStepGrid(t *testing.T) {
	var d Decimal
	d.Precision(0.5)
	if got := d.Round(101.3); got != 101.5 {
		t.Fatalf("want 101.5, got %v", got)
	}
}

func TestFormattersInit(t *testing.T) {
	var f Formatters
	f.Init(0.01, 0.001)
	if got := f.Funds.Str(0.0000000149); got != "0.00000001" {
		t.Fatalf("funds precision not applied: %s", got)
	}
	if f.Percent.Str(0.1234) != "0.12" {
		t.Fatalf("percent precision not applied: %s", f.Percent.Str(0.1234))
	}
}
