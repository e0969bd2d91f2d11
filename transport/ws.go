// Package transport implements the three venue-transport state machines:
// a single WebSocket, a WebSocket-twin (public + authenticated sibling),
// and a FIX-over-socket variant paired with a public WebSocket.
//
// All three share the same tiny state machine described in spec §4.3:
// Down -> Connecting -> Open-Unsubscribed -> Open-Subscribed -> Down. The
// gateway's tick driver calls Tick once per second; everything else
// (reading frames, dispatching to consume()) runs on a background
// goroutine per connection, the Go-idiomatic analogue of registering a
// socket on the loop's loopfd.
package transport

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

const (
	initialCountdown = 1 // ticks before the first connect attempt
	backoffCountdown = 7 // ticks before a post-failure reconnect attempt
)

// WS is the single-WebSocket transport variant.
type WS struct {
	url    string
	dialer websocket.Dialer
	logger zerolog.Logger

	mu         sync.RWMutex
	conn       *websocket.Conn
	subscribed bool
	countdown  uint32

	breaker *gobreaker.CircuitBreaker

	subscribeFn   func() error
	onMessage     func([]byte)
	onStateChange func(connected bool) // fired on every up/down transition

	closed atomic.Bool
}

// NewWS builds a single-socket transport.
//
//   - subscribeFn is emitted once, by the Tick whose countdown opens the socket.
//   - onMessage receives every complete, non-empty frame.
//   - onStateChange is called with true on a successful connect and false
//     on disconnect (send/recv error or explicit Disconnect).
func NewWS(url string, subscribeFn func() error, onMessage func([]byte), onStateChange func(bool), logger zerolog.Logger) *WS {
	return &WS{
		url:           url,
		dialer:        websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		logger:        logger,
		countdown:     initialCountdown,
		subscribeFn:   subscribeFn,
		onMessage:     onMessage,
		onStateChange: onStateChange,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "ws-connect",
			Timeout: time.Duration(backoffCountdown) * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}),
	}
}

// Connected reports whether the underlying socket is currently open.
func (w *WS) Connected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.conn != nil
}

// Connect dials the socket, guarded by the circuit breaker so a venue in
// a hard outage fails fast instead of retrying every tick.
func (w *WS) Connect() error {
	_, err := w.breaker.Execute(func() (any, error) {
		conn, _, err := w.dialer.Dial(w.url, nil)
		if err != nil {
			return nil, fmt.Errorf("ws connect %s: %w", w.url, err)
		}
		w.mu.Lock()
		w.conn = conn
		w.subscribed = false
		w.mu.Unlock()

		go w.readLoop(conn)
		return nil, nil
	})
	if err != nil {
		w.logger.Warn().Err(err).Str("component", "transport").Msg("WS connect failed")
		return err
	}
	if w.onStateChange != nil {
		w.onStateChange(true)
	}
	return nil
}

// Tick advances the reconnect countdown and is a no-op once it has run
// out. When the countdown reaches zero, Tick calls Connect; on success it
// emits subscribeFn once in the same tick, and on failure it re-arms the
// countdown via scheduleReconnect.
func (w *WS) Tick() {
	w.mu.Lock()
	cd := w.countdown
	w.mu.Unlock()
	if cd == 0 {
		return
	}
	cd--
	w.mu.Lock()
	w.countdown = cd
	w.mu.Unlock()
	if cd == 0 {
		if err := w.Connect(); err != nil {
			w.scheduleReconnect()
		} else if w.subscribeFn != nil {
			w.mu.Lock()
			already := w.subscribed
			w.subscribed = true
			w.mu.Unlock()
			if !already {
				if err := w.subscribeFn(); err != nil {
					w.logger.Warn().Err(err).Msg("subscribe failed")
				}
			}
		}
	}
}

func (w *WS) readLoop(conn *websocket.Conn) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			w.logger.Warn().Err(err).Str("component", "transport").Msg("WS recv error, reconnecting")
			w.teardown()
			return
		}
		if len(msg) == 0 {
			continue
		}
		if w.onMessage != nil {
			w.onMessage(msg)
		}
	}
}

// Emit sends a text frame.
func (w *WS) Emit(payload []byte) error {
	w.mu.RLock()
	conn := w.conn
	w.mu.RUnlock()
	if conn == nil {
		return fmt.Errorf("ws emit: not connected")
	}
	return conn.WriteMessage(websocket.TextMessage, payload)
}

// Disconnect sends a close frame and cleans up, publishing Disconnected
// and arming the backoff countdown.
func (w *WS) Disconnect() {
	w.mu.RLock()
	conn := w.conn
	w.mu.RUnlock()
	if conn != nil {
		_ = conn.WriteMessage(websocket.CloseMessage, nil)
	}
	w.teardown()
}

func (w *WS) teardown() {
	w.mu.Lock()
	if w.conn != nil {
		w.conn.Close()
		w.conn = nil
	}
	w.subscribed = false
	w.countdown = backoffCountdown
	w.mu.Unlock()

	if w.onStateChange != nil {
		w.onStateChange(false)
	}
}

func (w *WS) scheduleReconnect() {
	w.mu.Lock()
	w.countdown = backoffCountdown
	w.mu.Unlock()
}
