package gw

// Config is a venue's static configuration. Most fields are set by the
// operator up front; TickPrice/TickSize/MinSize/MinValue/MakeFee/TakeFee/
// Symbol/Base/Quote/WebMarket/WebOrders/Margin are resolved (or refined)
// by Handshake and are frozen afterwards.
//
// Invariants after a successful handshake: TickPrice > 0, TickSize > 0,
// MinSize > 0, Base != "", Quote != "".
type Config struct {
	Exchange string
	APIKey   string
	Secret   string
	Pass     string // passphrase, only required by some venues

	Base   string
	Quote  string
	Symbol string // venue-formatted pair, e.g. "BTCUSDT" or "XBTUSD"

	HTTP string
	WS   string
	Fix  string

	WebMarket string
	WebOrders string

	TickPrice float64
	TickSize  float64
	MinSize   float64
	MinValue  float64
	MakeFee   float64
	TakeFee   float64

	MaxLevel int
	Leverage float64
	Margin   Future

	Debug          int
	Unlock         string // non-empty enables the disclaimer
	AdminAgreement Connectivity

	// CacheHome is the directory holding cache/handshake.<exchange>.<base>.<quote>.json.
	CacheHome string
}

// FeatureFlags are the per-adapter capability toggles driving the poll
// scheme in the tick driver (spec §4.4).
type FeatureFlags struct {
	AskForFees      bool // enables the 15-tick wallet poll; the gateway does not call Adapter.Fees
	AskForReplace   bool // venue supports in-place modify
	AskForCancelAll bool // venue supports a bulk cancel
}
