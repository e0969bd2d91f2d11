package gw

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdate_LatencyOneShot(t *testing.T) {
	o := &Order{OrderID: "c1", Time: 1000}
	raw := &Order{Status: Working, Time: 1200, ExchangeID: "e1"}

	Update(raw, o)
	assert.Equal(t, Working, o.Status)
	assert.Equal(t, int64(200), o.Latency)
	assert.Equal(t, "e1", o.ExchangeID)
	assert.Equal(t, int64(1200), o.Time)

	// a second Working update must not overwrite the latency measurement.
	raw2 := &Order{Status: Working, Time: 1500}
	Update(raw2, o)
	assert.Equal(t, int64(200), o.Latency)
	assert.Equal(t, int64(1500), o.Time, "time is overwritten unconditionally")
}

func TestUpdate_TimeAlwaysOverwritten(t *testing.T) {
	o := &Order{OrderID: "c1", Status: Working, Time: 1000, Latency: 50}
	raw := &Order{Status: Working, Time: 2000}

	Update(raw, o)
	assert.Equal(t, int64(2000), o.Time)
	assert.Equal(t, int64(50), o.Latency)
}

func TestUpdate_ExchangeIDMonotonic(t *testing.T) {
	o := &Order{ExchangeID: "e1"}
	raw := &Order{ExchangeID: ""}
	Update(raw, o)
	assert.Equal(t, "e1", o.ExchangeID, "exchangeId never transitions non-empty to empty")
}

func TestUpdate_ZeroFieldsDontClobber(t *testing.T) {
	o := &Order{Price: 100, Quantity: 5}
	raw := &Order{Price: 0, Quantity: 0, Time: 10}
	Update(raw, o)
	assert.Equal(t, 100.0, o.Price)
	assert.Equal(t, 5.0, o.Quantity)
}

func TestReplace_RequiresExchangeID(t *testing.T) {
	o := &Order{}
	ok := Replace(123, true, o, 99)
	assert.False(t, ok)
	assert.Equal(t, int64(0), o.Time)

	o.ExchangeID = "e1"
	ok = Replace(123, true, o, 99)
	assert.True(t, ok)
	assert.Equal(t, 123.0, o.Price)
	assert.True(t, o.IsPong)
	assert.Equal(t, int64(99), o.Time)
}

func TestCancel_Idempotence(t *testing.T) {
	o := &Order{ExchangeID: "e1", Status: Waiting, Time: 5}
	ok := Cancel(o, 42)
	assert.False(t, ok, "cancel on an order already Waiting must fail")
	assert.Equal(t, int64(5), o.Time, "time untouched on failed cancel")

	o.Status = Working
	ok = Cancel(o, 42)
	assert.True(t, ok)
	assert.Equal(t, Waiting, o.Status)
	assert.Equal(t, int64(42), o.Time)
}

func TestCancel_RequiresExchangeID(t *testing.T) {
	o := &Order{Status: Working}
	ok := Cancel(o, 1)
	assert.False(t, ok)
}

func TestTerminatedIsAbsorbing(t *testing.T) {
	o := &Order{ExchangeID: "e1", Status: Terminated, Time: 10}
	raw := &Order{Status: Working, Time: 20}
	Update(raw, o)
	// once Terminated, a later status reported by the adapter is ignored.
	assert.Equal(t, Terminated, o.Status)
}

func TestOrderJSONRoundTrip(t *testing.T) {
	o := Order{
		OrderID:     "abc",
		ExchangeID:  "xyz",
		Side:        Bid,
		Price:       101.5,
		Quantity:    2.25,
		Type:        Limit,
		TimeInForce: GTC,
		Manual:      true,
	}

	raw, err := json.Marshal(o)
	require.NoError(t, err)

	var back Order
	require.NoError(t, json.Unmarshal(raw, &back))

	assert.Equal(t, o.OrderID, back.OrderID)
	assert.Equal(t, o.Price, back.Price)
	assert.Equal(t, o.Quantity, back.Quantity)
	assert.Equal(t, o.Side, back.Side)
	assert.Equal(t, o.Type, back.Type)
	assert.Equal(t, o.TimeInForce, back.TimeInForce)
	assert.Equal(t, o.Manual, back.Manual)
}

func TestTimeInForceDefaultsToIOC(t *testing.T) {
	var f TimeInForce
	require.NoError(t, json.Unmarshal([]byte(`"bogus"`), &f))
	assert.Equal(t, IOC, f)
}
