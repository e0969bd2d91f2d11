package transport

import "github.com/rs/zerolog"

// WSTwin pairs a public socket with an authenticated sibling, for venues
// (Kraken) whose private channel lives on a second URL or
// requires a distinct subscribe handshake. Connected only once both legs
// are up; Disconnect tears the authenticated leg down first.
type WSTwin struct {
	Public *WS
	Auth   *WS
}

// NewWSTwin builds both legs. rewriteURL turns the public URL into the
// authenticated one (e.g. Kraken's "-auth" insertion after "ws."); pass a
// function that returns the same URL unchanged for venues whose auth leg
// uses an identical endpoint with a different subscribe payload.
func NewWSTwin(publicURL string, rewriteURL func(string) string,
	subscribePublic, subscribeAuth func() error,
	onPublicMessage, onAuthMessage func([]byte),
	onStateChange func(connected bool),
	logger zerolog.Logger,
) *WSTwin {
	t := &WSTwin{}
	combined := func(leg string, fn func(bool)) func(bool) {
		return func(up bool) {
			if fn != nil {
				fn(t.Connected())
			}
			_ = leg
		}
	}
	t.Public = NewWS(publicURL, subscribePublic, onPublicMessage, combined("public", onStateChange), logger)
	t.Auth = NewWS(rewriteURL(publicURL), subscribeAuth, onAuthMessage, combined("auth", onStateChange), logger)
	return t
}

// Connected reports true only when both legs are open.
func (t *WSTwin) Connected() bool {
	return t.Public.Connected() && t.Auth.Connected()
}

// Connect opens the public leg first and the authenticated leg only once
// the public one is up.
func (t *WSTwin) Connect() error {
	if err := t.Public.Connect(); err != nil {
		return err
	}
	return t.Auth.Connect()
}

// Tick advances both legs' countdowns independently; each leg backs off
// on its own schedule since a venue may keep one side up while the other
// flaps.
func (t *WSTwin) Tick() {
	t.Public.Tick()
	t.Auth.Tick()
}

// Disconnect tears the authenticated leg down before the public one, the
// reverse of connect order.
func (t *WSTwin) Disconnect() {
	t.Auth.Disconnect()
	t.Public.Disconnect()
}

// EmitPublic and EmitAuth send on the respective leg.
func (t *WSTwin) EmitPublic(payload []byte) error { return t.Public.Emit(payload) }
func (t *WSTwin) EmitAuth(payload []byte) error    { return t.Auth.Emit(payload) }
