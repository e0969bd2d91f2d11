package transport

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// No library in the pack speaks FIX tag=value framing, so this one piece
// of the transport layer is hand-rolled against the stdlib net package —
// everything else in transport rides on gorilla/websocket and gobreaker.

const fixSOH = "\x01"

// FixField is a single tag=value pair in encounter order.
type FixField struct {
	Tag   int
	Value string
}

// FixMessage is an ordered field list; BeginString/BodyLength/CheckSum are
// filled in by encodeFix, not supplied by callers.
type FixMessage struct {
	MsgType string
	Fields  []FixField
}

// Set appends a field. Order is preserved for non-header
// tags; repeated Set calls with the same tag append duplicates, matching
// how venues structured in repeating groups expect the wire form.
func (m *FixMessage) Set(tag int, value string) *FixMessage {
	m.Fields = append(m.Fields, FixField{Tag: tag, Value: value})
	return m
}

// Get returns the first field with the given tag.
func (m *FixMessage) Get(tag int) (string, bool) {
	for _, f := range m.Fields {
		if f.Tag == tag {
			return f.Value, true
		}
	}
	return "", false
}

func encodeFix(beginString string, seqNum int, senderCompID, targetCompID string, m FixMessage) string {
	var body strings.Builder
	fmt.Fprintf(&body, "35=%s%s", m.MsgType, fixSOH)
	fmt.Fprintf(&body, "49=%s%s", senderCompID, fixSOH)
	fmt.Fprintf(&body, "56=%s%s", targetCompID, fixSOH)
	fmt.Fprintf(&body, "34=%d%s", seqNum, fixSOH)
	fmt.Fprintf(&body, "52=%s%s", time.Now().UTC().Format("20060102-15:04:05.000"), fixSOH)
	for _, f := range m.Fields {
		fmt.Fprintf(&body, "%d=%s%s", f.Tag, f.Value, fixSOH)
	}

	head := fmt.Sprintf("8=%s%s9=%d%s", beginString, fixSOH, body.Len(), fixSOH)
	full := head + body.String()

	sum := 0
	for i := 0; i < len(full); i++ {
		sum += int(full[i])
	}
	return full + fmt.Sprintf("10=%03d%s", sum%256, fixSOH)
}

func decodeFix(line string) (FixMessage, error) {
	var m FixMessage
	parts := strings.Split(strings.TrimRight(line, fixSOH), fixSOH)
	for _, p := range parts {
		if p == "" {
			continue
		}
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		tag, err := strconv.Atoi(kv[0])
		if err != nil {
			continue
		}
		switch tag {
		case 35:
			m.MsgType = kv[1]
		case 8, 9, 49, 56, 34, 52, 10:
			// header/trailer, not surfaced as a body field
		default:
			m.Fields = append(m.Fields, FixField{Tag: tag, Value: kv[1]})
		}
	}
	return m, nil
}

// FixSession is a logon/logout FIX-over-TCP session (the logon announces
// HeartBtInt=30; no heartbeat messages are sent), paired by
// the gateway with a public WS for market data (Coinbase's transport per
// venue table).
type FixSession struct {
	addr         string
	beginString  string
	senderCompID string
	targetCompID string
	logger       zerolog.Logger

	mu     sync.Mutex
	conn   net.Conn
	seqNum int

	onMessage func(FixMessage)
	onLogon   func()
	onLogout  func()
}

func NewFixSession(addr, beginString, senderCompID, targetCompID string,
	onMessage func(FixMessage), onLogon, onLogout func(), logger zerolog.Logger,
) *FixSession {
	return &FixSession{
		addr: addr, beginString: beginString,
		senderCompID: senderCompID, targetCompID: targetCompID,
		onMessage: onMessage, onLogon: onLogon, onLogout: onLogout,
		logger: logger, seqNum: 1,
	}
}

// Connected reports whether the TCP session is open.
func (s *FixSession) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Connect dials the FIX endpoint and sends a MsgType=A logon.
func (s *FixSession) Connect() error {
	conn, err := net.DialTimeout("tcp", s.addr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("fix dial %s: %w", s.addr, err)
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	go s.readLoop(conn)

	logon := FixMessage{MsgType: "A"}
	logon.Set(98, "0").Set(108, "30")
	if err := s.Beam(logon); err != nil {
		return err
	}
	if s.onLogon != nil {
		s.onLogon()
	}
	return nil
}

// Beam encodes and writes a message, incrementing the sequence number.
func (s *FixSession) Beam(m FixMessage) error {
	s.mu.Lock()
	conn := s.conn
	seq := s.seqNum
	s.seqNum++
	s.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("fix beam: not connected")
	}
	wire := encodeFix(s.beginString, seq, s.senderCompID, s.targetCompID, m)
	_, err := conn.Write([]byte(wire))
	return err
}

// readLoop accumulates SOH-delimited fields until it sees the trailing
// checksum tag (10=...), then hands the whole message to decodeFix. FIX
// messages don't carry an outer frame delimiter beyond that, so the
// checksum field is the only reliable end-of-message marker.
func (s *FixSession) readLoop(conn net.Conn) {
	reader := bufio.NewReader(conn)
	var msg strings.Builder
	for {
		field, err := reader.ReadString(byte(0x01))
		if err != nil {
			s.logger.Warn().Err(err).Str("component", "transport").Msg("FIX recv error, disconnecting")
			s.teardown()
			return
		}
		msg.WriteString(field)
		if !strings.HasPrefix(field, "10=") {
			continue
		}

		decoded, decErr := decodeFix(msg.String())
		msg.Reset()
		if decErr != nil {
			continue
		}
		if decoded.MsgType == "5" { // Logout
			s.teardown()
			return
		}
		if s.onMessage != nil {
			s.onMessage(decoded)
		}
	}
}

// Disconnect sends a MsgType=5 logout and closes the socket.
func (s *FixSession) Disconnect() {
	_ = s.Beam(FixMessage{MsgType: "5"})
	s.teardown()
}

func (s *FixSession) teardown() {
	s.mu.Lock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.mu.Unlock()
	if s.onLogout != nil {
		s.onLogout()
	}
}
