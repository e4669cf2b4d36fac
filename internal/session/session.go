// Package session implements the server-side state machine for one
// logged-in client: it owns the client's socket, its own outbound
// packet counter, and the receive loop that dispatches frames by type.
package session

import (
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/sirupsen/logrus"

	"roomrelay/internal/roster"
	"roomrelay/internal/wire"
)

// Recorder receives counts of things worth scraping. A nil Recorder is
// valid everywhere it is used; it just means nobody is counting.
type Recorder interface {
	MessageFannedOut()
	Nacked()
	Disconnected()
}

// Session is the sole writer of its own socket; every other goroutine
// reaches it only through Roster.SendTo / Roster.BroadcastExcept, which
// call Send below under the roster's read-lock.
type Session struct {
	conn     net.Conn
	connID   string
	username string
	roster   *roster.Roster
	metrics  Recorder
	log      *logrus.Entry

	// outMu serialises writes to conn so that concurrent fan-out and
	// this session's own replies never interleave two frames on the
	// wire (§9: per-session output serialisation).
	outMu sync.Mutex

	// counter is touched only by this session's own goroutine. Its
	// initial value is the packet_number the acceptor's login echo
	// used; it is advanced for every later frame the server originates
	// on this session (WHO reply, ERROR, join/leave broadcast), but
	// never for ACK/NACK, which echo the client's packet_number instead.
	counter uint16
}

// New constructs a Session around an already-accepted connection.
// initialCounter is the server's first outbound packet_number for this
// client (1, per the acceptor's login-response).
func New(conn net.Conn, connID, username string, initialCounter uint16, r *roster.Roster, m Recorder) *Session {
	return &Session{
		conn:     conn,
		connID:   connID,
		username: username,
		roster:   r,
		metrics:  m,
		counter:  initialCounter,
		log: logrus.WithFields(logrus.Fields{
			"conn": connID,
			"user": username,
		}),
	}
}

// Username implements roster.Entry.
func (s *Session) Username() string { return s.username }

// Send implements roster.Entry: it writes frame as a single call under
// the per-session output mutex.
func (s *Session) Send(frame []byte) error {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	_, err := s.conn.Write(frame)
	return err
}

// nextCounter increments first and returns the new value, mirroring
// the wrap-at-2^16 counter used for every server-originated frame
// after the login echo, which already claimed the initial value.
func (s *Session) nextCounter() uint16 {
	s.counter++
	return s.counter
}

func (s *Session) originate(t wire.MessageType, dest string) *wire.HeaderBuilder {
	return wire.NewHeaderBuilder().
		PacketNumber(s.nextCounter()).
		SourceUsername(wire.ServerUsername).
		DestUsername(dest).
		Type(t)
}

// Run sends the join broadcast, executes the receive loop to
// completion, then evicts this session from the roster and closes its
// socket exactly once.
func (s *Session) Run() {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorf("[Session] recovered from panic: %v", r)
		}
		s.roster.Remove(s.username)
		s.conn.Close()
		s.log.Info("[Session] closed")
	}()

	s.broadcastJoin()
	s.receiveLoop()
}

func (s *Session) broadcastJoin() {
	text := []byte(fmt.Sprintf("User: %s entered the room.", s.username))
	raw := s.originate(wire.TypeMessage, wire.AllUsername).Payload(text).Build()
	s.roster.BroadcastExcept(s.username, wire.Frame{Header: raw, Payload: text}.Bytes())
}

func (s *Session) broadcastLeave() {
	text := []byte(fmt.Sprintf("User: %s disconnected from the room.", s.username))
	raw := s.originate(wire.TypeMessage, wire.AllUsername).Payload(text).Build()
	s.roster.BroadcastExcept(s.username, wire.Frame{Header: raw, Payload: text}.Bytes())
	if s.metrics != nil {
		s.metrics.Disconnected()
	}
}

// receiveLoop reads exactly one 166-byte header per iteration, and for
// MESSAGE frames the payload that follows it, until the socket closes,
// a protocol error ends the session, or DISCONNECT is received.
func (s *Session) receiveLoop() {
	headerBuf := make([]byte, wire.HeaderSize)
	for {
		if _, err := io.ReadFull(s.conn, headerBuf); err != nil {
			s.log.WithError(err).Debug("[Session] connection closed")
			return
		}

		h, err := wire.Parse(headerBuf)
		if err != nil {
			s.log.Warn("[Session] dropping frame with bad header checksum")
			continue
		}

		if h.Version() != wire.ProtocolVersion {
			s.log.Warnf("[Session] dropping frame with unsupported version %d", h.Version())
			continue
		}

		if s.dispatch(h) {
			return
		}
	}
}

// dispatch handles one parsed header and reports whether the session
// should end (true only for DISCONNECT or an unrecoverable read error).
func (s *Session) dispatch(h wire.ParsedHeader) bool {
	switch h.MessageType() {
	case wire.TypeLogin:
		s.sendError("You already logged in")

	case wire.TypeError:
		// Clients do not author errors to the server; ignored.

	case wire.TypeWho:
		s.sendWho()

	case wire.TypeAck, wire.TypeNack:
		// The server never retransmits; only the client does, on a
		// server NACK. Client-originated ACK/NACK are ignored.

	case wire.TypeMessage:
		return s.handleMessage(h)

	case wire.TypeDisconnect:
		s.broadcastLeave()
		return true

	default:
		s.log.Warnf("[Session] ignoring unknown message type %d", uint8(h.MessageType()))
	}
	return false
}

// handleMessage reads the payload, verifies its checksum, ACKs or NACKs
// the sender, and fans a verified MESSAGE out unchanged. It reports
// whether the session should end (true on a read failure only).
func (s *Session) handleMessage(h wire.ParsedHeader) bool {
	payload := make([]byte, h.DataPacketLength())
	if len(payload) > 0 {
		if _, err := io.ReadFull(s.conn, payload); err != nil {
			s.log.WithError(err).Warn("[Session] short read on message payload")
			return true
		}
	}

	if !wire.VerifyDataChecksum(h.DataChecksum(), payload) {
		s.sendNack(h.PacketNumber())
		if s.metrics != nil {
			s.metrics.Nacked()
		}
		return false
	}
	s.sendAck(h.PacketNumber())

	raw := h.Raw()
	frame := make([]byte, 0, wire.HeaderSize+len(payload))
	frame = append(frame, raw[:]...)
	frame = append(frame, payload...)

	dest := h.DestUsername()
	if dest == wire.AllUsername {
		s.roster.BroadcastExcept(s.username, frame)
		if s.metrics != nil {
			s.metrics.MessageFannedOut()
		}
		return false
	}

	if !s.roster.SendTo(dest, frame) {
		s.sendError(fmt.Sprintf("User: %s does not exist.", dest))
	} else if s.metrics != nil {
		s.metrics.MessageFannedOut()
	}
	return false
}

func (s *Session) sendAck(packetNumber uint16) {
	raw := wire.NewHeaderBuilder().
		PacketNumber(packetNumber).
		SourceUsername(wire.ServerUsername).
		DestUsername(s.username).
		Type(wire.TypeAck).
		Build()
	if err := s.Send(raw[:]); err != nil {
		s.log.WithError(err).Warn("[Session] failed to send ACK")
	}
}

func (s *Session) sendNack(packetNumber uint16) {
	raw := wire.NewHeaderBuilder().
		PacketNumber(packetNumber).
		SourceUsername(wire.ServerUsername).
		DestUsername(s.username).
		Type(wire.TypeNack).
		Build()
	if err := s.Send(raw[:]); err != nil {
		s.log.WithError(err).Warn("[Session] failed to send NACK")
	}
}

func (s *Session) sendError(reason string) {
	payload := []byte(reason + "\x00")
	raw := s.originate(wire.TypeError, s.username).Payload(payload).Build()
	if err := s.Send(wire.Frame{Header: raw, Payload: payload}.Bytes()); err != nil {
		s.log.WithError(err).Warn("[Session] failed to send ERROR")
	}
}

func (s *Session) sendWho() {
	payload := []byte(s.roster.ListNames())
	raw := s.originate(wire.TypeWho, s.username).Payload(payload).Build()
	if err := s.Send(wire.Frame{Header: raw, Payload: payload}.Bytes()); err != nil {
		s.log.WithError(err).Warn("[Session] failed to send WHO reply")
	}
}
