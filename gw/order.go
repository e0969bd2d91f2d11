package gw

// Order is identified by the client-assigned OrderID for its whole life and
// acquires the venue-assigned ExchangeID once the venue acknowledges it.
//
// Lifecycle rules (update/Replace/Cancel) are ported field-for-field from
// the original GwExchangeData::Order::update/replace/cancel: ExchangeID is
// monotonic (never cleared once set), Terminated is absorbing, and Time is
// overwritten unconditionally by update regardless of what else changed.
type Order struct {
	OrderID     string      `json:"orderId"`
	ExchangeID  string      `json:"exchangeId"`
	Side        Side        `json:"side"`
	Price       float64     `json:"price"`
	Quantity    float64     `json:"quantity"`
	Type        OrderType   `json:"type"`
	TimeInForce TimeInForce `json:"timeInForce"`
	IsPong      bool        `json:"isPong"`
	Manual      bool        `json:"manual"`
	Status      Status      `json:"status"`
	Filled      float64     `json:"filled,omitempty"`
	Time        int64       `json:"time"`
	Latency     int64       `json:"latency"`
}

// Update applies a raw event reported by an adapter's consume() to o.
//
// raw.Status overwrites o.Status unless o is already Terminated, which is
// absorbing. If the status lands on Working and o's
// latency hasn't been measured yet, this one-shot records place→ack time.
// o.Time is then overwritten unconditionally (not only on the Working
// branch) — this matches the original's single assignment after the status
// check, not a conditional copy. ExchangeID, Price and Quantity only copy
// over when raw carries a non-empty/non-zero value, so a fill message that
// omits price doesn't clobber the resting price.
func Update(raw, o *Order) {
	if o == nil {
		return
	}
	if o.Status != Terminated {
		o.Status = raw.Status
	}
	if o.Status == Working && o.Latency == 0 {
		o.Latency = raw.Time - o.Time
	}
	o.Time = raw.Time
	if raw.ExchangeID != "" {
		o.ExchangeID = raw.ExchangeID
	}
	if raw.Price != 0 {
		o.Price = raw.Price
	}
	if raw.Quantity != 0 {
		o.Quantity = raw.Quantity
	}
}

// Replace sets a new resting price on o, but only once the venue has
// acknowledged it (ExchangeID known). Returns false without mutating o
// otherwise — the precondition fault from spec §7.
func Replace(price float64, isPong bool, o *Order, now int64) bool {
	if o == nil || o.ExchangeID == "" {
		return false
	}
	o.Price = price
	o.IsPong = isPong
	o.Time = now
	return true
}

// Cancel marks o as cancellation-in-flight (Status = Waiting). Returns
// false without mutating o if the venue hasn't acked it yet, if a
// cancel is already in flight — double-cancel is a no-op, not an error —
// or if o is already Terminated.
func Cancel(o *Order, now int64) bool {
	if o == nil || o.ExchangeID == "" || o.Status == Waiting || o.Status == Terminated {
		return false
	}
	o.Status = Waiting
	o.Time = now
	return true
}
