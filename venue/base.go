package venue

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"

	"github.com/rs/zerolog"

	"exchangegw/gateway"
	"exchangegw/gw"
	"exchangegw/transport"
)

// wsBase is embedded by every single-WebSocket venue adapter; it owns
// the transport.WS instance and implements the Connect/Disconnect/
// Connected trio so each adapter only has to wire its URL, subscribe
// frame and message dispatch.
type wsBase struct {
	name   string
	ws     *transport.WS
	logger zerolog.Logger
	sink   gateway.EventSink
}

func (b *wsBase) Name() string { return b.name }

// Bind wires the gateway as this adapter's EventSink. Called once by
// gateway.New before Connect.
func (b *wsBase) Bind(sink gateway.EventSink) { b.sink = sink }

func (b *wsBase) Connect(ctx context.Context) error {
	return b.ws.Connect()
}

func (b *wsBase) Disconnect() {
	if b.ws != nil {
		b.ws.Disconnect()
	}
}

func (b *wsBase) Connected() bool {
	return b.ws != nil && b.ws.Connected()
}

// Features returns the conservative default: no fee polling, no
// replace support, no cancel-all polling. Adapters override by
// embedding wsBase and redefining Features.
func (b *wsBase) Features() gw.FeatureFlags { return gw.FeatureFlags{} }

func hmacSHA256Hex(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func hmacSHA256Base64(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func hmacSHA512Hex(secret, payload string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// newWS is a thin convenience wrapper so adapters don't have to name
// transport.NewWS's full signature inline.
func newWS(url string, subscribe func() error, onMessage func([]byte), onState func(bool), logger zerolog.Logger) *transport.WS {
	return transport.NewWS(url, subscribe, onMessage, onState, logger)
}
