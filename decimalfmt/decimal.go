// Package decimalfmt formats and parses prices/sizes at venue-defined
// ticks, avoiding the float rounding venues reject orders for.
package decimalfmt

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Decimal rounds and formats values to a fixed step (e.g. a venue's
// tickPrice or tickSize) and trims trailing zeros beyond the step's own
// significant digits.
type Decimal struct {
	step  float64
	scale int32
}

// Precision initialises the formatter for a given step, e.g. 1e-8 or a
// venue's tickPrice/tickSize. A non-positive step means "uninitialised"
// and Str falls back to a funds-precision-like default of 8 decimals.
func (d *Decimal) Precision(step float64) {
	d.step = step
	d.scale = decimalPlaces(step)
}

// Step returns the configured step.
func (d *Decimal) Step() float64 {
	return d.step
}

// Str rounds x to the step's decimal places and trims trailing zeros,
// using shopspring/decimal so repeated round-trips never drift the way
// naive float64 rounding would.
func (d *Decimal) Str(x float64) string {
	scale := d.scale
	if scale == 0 && d.step <= 0 {
		scale = 8
	}
	rounded := decimal.NewFromFloat(x).Round(scale)
	s := rounded.StringFixed(scale)
	if scale > 0 {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	if s == "" || s == "-" {
		s = "0"
	}
	return s
}

// decimalPlaces returns how many digits after the decimal point a step
// like 1e-8 or 0.0001 needs, by inspecting the step's own decimal string.
func decimalPlaces(step float64) int32 {
	if step <= 0 {
		return 0
	}
	// shopspring/decimal.NewFromFloat keeps the shortest exact repr of the
	// float64, which is exactly what we need to recover the step's scale
	// (a tick like 1e-8 or 0.5 parsed via strconv would otherwise pick up
	// float64 binary noise).
	d := decimal.NewFromFloat(step)
	places := -d.Exponent()
	if places < 0 {
		places = 0
	}
	// Clamp to a sane ceiling; no real venue tick needs more than 12 places.
	if places > 12 {
		places = 12
	}
	return int32(places)
}

// Round rounds x to the nearest multiple of the step without formatting, for callers
// that need the numeric value rather than its string form.
func (d *Decimal) Round(x float64) float64 {
	if d.step <= 0 {
		return x
	}
	steps := math.Round(x / d.step)
	return steps * d.step
}

// Formatters bundles the four decimal precisions a gateway needs: funds
// (fixed 1e-8), price (tickPrice), amount (tickSize), and percent (1e-2).
type Formatters struct {
	Funds   Decimal
	Price   Decimal
	Amount  Decimal
	Percent Decimal
}

// Init sets up all four formatters from a handshake's resolved ticks.
func (f *Formatters) Init(tickPrice, tickSize float64) {
	f.Funds.Precision(1e-8)
	f.Price.Precision(tickPrice)
	f.Amount.Precision(tickSize)
	f.Percent.Precision(1e-2)
}
